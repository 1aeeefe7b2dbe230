package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"photo-frame-portal/internal/activity"
	"photo-frame-portal/internal/app"
	"photo-frame-portal/internal/models"
)

// termView prints what changed between renders
type termView struct {
	mu  sync.Mutex
	out io.Writer

	counter   string
	current   string
	toast     string
	lightbox  int
	online    bool
	rendered  bool
	lastEntry activity.Entry
}

func newTermView(out io.Writer) *termView {
	return &termView{out: out, lightbox: -1}
}

func (v *termView) Render(s app.Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.rendered || s.PartnerOnline != v.online {
		if s.PartnerOnline {
			fmt.Fprintln(v.out, "· other device is online")
		} else if v.rendered {
			fmt.Fprintln(v.out, "· other device went offline")
		}
		v.online = s.PartnerOnline
	}

	current := ""
	if len(s.Photos) > 0 {
		current = s.Photos[s.Cursor].URL
	}
	if !v.rendered || s.Counter != v.counter || current != v.current {
		fmt.Fprintf(v.out, "[%s] %s\n", s.Counter, current)
		v.counter, v.current = s.Counter, current
	}

	lightbox := -1
	if s.LightboxOpen {
		lightbox = s.Lightbox
	}
	if lightbox != v.lightbox {
		if lightbox >= 0 {
			fmt.Fprintf(v.out, "lightbox: %s\n", s.Photos[lightbox].URL)
		} else {
			fmt.Fprintln(v.out, "lightbox closed")
		}
		v.lightbox = lightbox
	}

	for _, e := range v.newEntries(s.Activity) {
		fmt.Fprintf(v.out, "%s  %-7s %s\n", e.At.Local().Format("15:04"), e.Kind, e.Text)
	}
	if len(s.Activity) > 0 {
		v.lastEntry = s.Activity[0]
	}

	if s.Toast != "" && s.Toast != v.toast {
		fmt.Fprintf(v.out, ">> %s\n", s.Toast)
	}
	v.toast = s.Toast

	if s.Emoji != nil {
		fmt.Fprintf(v.out, "%s at (%d, %d)\n", models.EmojiDisplay(s.Emoji.Emoji), s.Emoji.X, s.Emoji.Y)
	}
	v.rendered = true
}

// newEntries returns entries added since the last render, oldest first
func (v *termView) newEntries(entries []activity.Entry) []activity.Entry {
	n := len(entries)
	for i, e := range entries {
		if e == v.lastEntry {
			n = i
			break
		}
	}
	fresh := make([]activity.Entry, 0, n)
	for i := n - 1; i >= 0; i-- {
		fresh = append(fresh, entries[i])
	}
	return fresh
}

// command is one line typed during watch
type command struct {
	op   string
	arg  int
	text string
}

const watchHelp = `commands: n next, p prev, g I go to photo, o I open lightbox, c close,
          s TEXT message, e NAME emoji, d I delete, r reload, q quit`

func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, fmt.Errorf("empty command")
	}
	cmd := command{op: fields[0]}
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))

	switch cmd.op {
	case "n", "p", "c", "r", "q", "?":
		return cmd, nil
	case "g", "o", "d":
		if len(fields) != 2 {
			return command{}, fmt.Errorf("%s needs a photo number", cmd.op)
		}
		i, err := strconv.Atoi(fields[1])
		if err != nil || i < 1 {
			return command{}, fmt.Errorf("invalid photo number %q", fields[1])
		}
		// photo numbers are shown one-based
		cmd.arg = i - 1
		return cmd, nil
	case "s", "e":
		if rest == "" {
			return command{}, fmt.Errorf("%s needs text", cmd.op)
		}
		cmd.text = rest
		return cmd, nil
	default:
		return command{}, fmt.Errorf("unknown command %q", cmd.op)
	}
}
