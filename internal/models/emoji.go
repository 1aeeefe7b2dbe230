package models

// EmojiGlyphs maps the named emoji pings the frames can animate to their display glyph
var EmojiGlyphs = map[string]string{
	"heart":         "❤️",
	"pink_heart":    "\U0001F497",
	"sparkle_heart": "\U0001F496",
	"stars":         "✨",
}

// EmojiDisplay returns the glyph for a named emoji, or name itself when unknown
func EmojiDisplay(name string) string {
	if glyph, ok := EmojiGlyphs[name]; ok {
		return glyph
	}
	return name
}
