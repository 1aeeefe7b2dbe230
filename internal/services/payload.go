package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	apperrors "photo-frame-portal/internal/errors"
	"photo-frame-portal/internal/imaging"
	"photo-frame-portal/internal/models"

	"github.com/forPelevin/gomoji"
)

// MaxMessageLength is the longest message text, in runes
const MaxMessageLength = 500

// ValidEmoji reports whether name is one of the named pings or a single
// literal emoji with nothing around it.
func ValidEmoji(name string) bool {
	if _, ok := models.EmojiGlyphs[name]; ok {
		return true
	}
	found := gomoji.CollectAll(name)
	return len(found) == 1 && found[0].Character == name
}

// ValidatePayload checks payload against the schema of eventType and returns
// it re-encoded in canonical form.
func ValidatePayload(eventType models.EventType, payload json.RawMessage) (json.RawMessage, error) {
	switch eventType {
	case models.EventMessage:
		var p models.MessagePayload
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		p.Text = strings.TrimSpace(p.Text)
		if p.Text == "" {
			return nil, apperrors.MissingRequired("text")
		}
		if utf8.RuneCountInString(p.Text) > MaxMessageLength {
			return nil, apperrors.ValidationError(fmt.Sprintf("text exceeds %d characters", MaxMessageLength))
		}
		p.SenderLabel = strings.TrimSpace(p.SenderLabel)
		return json.Marshal(p)

	case models.EventEmoji:
		var p models.EmojiPayload
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		if p.Emoji == "" {
			return nil, apperrors.MissingRequired("emoji")
		}
		if !ValidEmoji(p.Emoji) {
			return nil, apperrors.ValidationError("emoji must be a known name or a single emoji")
		}
		if p.X < 0 || p.X > imaging.FrameWidth || p.Y < 0 || p.Y > imaging.FrameHeight {
			return nil, apperrors.ValidationError("emoji position is outside the frame").
				WithDetails(map[string]interface{}{"x": p.X, "y": p.Y})
		}
		return json.Marshal(p)

	case models.EventPhotoNav:
		var p models.PhotoNavPayload
		if err := decodePayload(payload, &p); err != nil {
			return nil, err
		}
		if p.Index < 0 {
			return nil, apperrors.ValidationError("index must not be negative")
		}
		return json.Marshal(p)

	default:
		return nil, apperrors.ValidationError(fmt.Sprintf("unknown event type %q", eventType))
	}
}

func decodePayload(payload json.RawMessage, v interface{}) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		return apperrors.MissingRequired("payload")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return apperrors.ValidationError("payload is malformed").WithCause(err)
	}
	return nil
}
