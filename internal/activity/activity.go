// Package activity keeps the recent-activity list and the toast shown on a
// device. Neither type is safe for concurrent use.
package activity

import (
	"time"

	"photo-frame-portal/internal/models"
)

const (
	MaxEntries   = 20
	ToastTimeout = 3 * time.Second
)

// Kind classifies activity entries
type Kind string

const (
	KindMessage Kind = "message"
	KindEmoji   Kind = "emoji"
	KindNav     Kind = "nav"
	KindPhoto   Kind = "photo"
	KindSystem  Kind = "system"
)

// Entry is one line of the activity list
type Entry struct {
	At   time.Time
	Kind Kind
	Text string
}

// Log is a newest-first list capped at MaxEntries
type Log struct {
	entries []Entry
	now     func() time.Time
}

// NewLog creates an empty log using clock for timestamps; nil means time.Now
func NewLog(clock func() time.Time) *Log {
	if clock == nil {
		clock = time.Now
	}
	return &Log{now: clock}
}

// Add records an entry at the front, dropping the oldest past the cap
func (l *Log) Add(kind Kind, text string) Entry {
	e := Entry{At: l.now(), Kind: kind, Text: text}
	l.entries = append([]Entry{e}, l.entries...)
	if len(l.entries) > MaxEntries {
		l.entries = l.entries[:MaxEntries]
	}
	return e
}

// Entries returns the entries newest first
func (l *Log) Entries() []Entry {
	return l.entries
}

// Toaster shows one message at a time for ToastTimeout
type Toaster struct {
	text  string
	until time.Time
	now   func() time.Time
}

// NewToaster creates a toaster using clock; nil means time.Now
func NewToaster(clock func() time.Time) *Toaster {
	if clock == nil {
		clock = time.Now
	}
	return &Toaster{now: clock}
}

// Show replaces any visible toast with text
func (t *Toaster) Show(text string) {
	t.text = text
	t.until = t.now().Add(ToastTimeout)
}

// Visible returns the toast text while it has not expired
func (t *Toaster) Visible() (string, bool) {
	if t.text == "" || !t.now().Before(t.until) {
		return "", false
	}
	return t.text, true
}

// MessageText renders a received message the way the toast and log show it
func MessageText(p models.MessagePayload) string {
	if p.SenderLabel == "" {
		return p.Text
	}
	return p.SenderLabel + ": " + p.Text
}

// EmojiText renders a received emoji ping
func EmojiText(p models.EmojiPayload) string {
	return models.EmojiDisplay(p.Emoji)
}
