package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	apperrors "photo-frame-portal/internal/errors"
	"photo-frame-portal/internal/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// the server pings every 30s; two missed pings mean the link is dead
	readWait  = 65 * time.Second
	writeWait = 10 * time.Second

	reconnectInitial = 500 * time.Millisecond
	reconnectMax     = 30 * time.Second

	// seq is assigned at insert but fanned out after commit, so a lower seq can
	// arrive after a higher one; reconnects replay this far below the newest seq
	resumeOverlap = 64
	seenCapacity  = 1024
)

// Handlers receive live feed traffic. All callbacks run on the Run goroutine;
// nil callbacks are skipped.
type Handlers struct {
	// OnEvent gets events sent by the other device, each seq at most once
	OnEvent func(*models.Event)
	// OnPhotoChange gets photo_insert and photo_delete notifications
	OnPhotoChange func(models.Notification)
	// OnResync runs after every reconnect; notifications may have been missed
	OnResync func()
	// OnStatus gets the pair_status frame sent after each connect
	OnStatus func(models.WSMessage)
}

// Feed is a reconnecting subscription to the pair's live change feed
type Feed struct {
	client     *Client
	dialer     *websocket.Dialer
	newBackOff func() backoff.BackOff
	overlap    int64

	lastSeq atomic.Int64
	floor   atomic.Int64
	// seen is only touched by the Run goroutine
	seen *seqWindow
}

// Feed returns a live feed bound to this client's server and token
func (c *Client) Feed() *Feed {
	return &Feed{
		client: c,
		dialer: websocket.DefaultDialer,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = reconnectInitial
			b.MaxInterval = reconnectMax
			b.MaxElapsedTime = 0
			return b
		},
		overlap: resumeOverlap,
		seen:    newSeqWindow(seenCapacity),
	}
}

// Resume treats every event up to seq as already handled
func (f *Feed) Resume(seq int64) {
	f.floor.Store(seq)
	if seq > f.lastSeq.Load() {
		f.lastSeq.Store(seq)
	}
}

// LastSeq returns the highest event seq seen so far
func (f *Feed) LastSeq() int64 {
	return f.lastSeq.Load()
}

// resumeFrom is the seq the next connection replays after. It reaches back
// below the newest seq so events that committed late are not skipped.
func (f *Feed) resumeFrom() int64 {
	return max(f.floor.Load(), f.lastSeq.Load()-f.overlap, 0)
}

// Run keeps the feed connected until ctx is cancelled or the server rejects
// the device. It returns ctx.Err() on cancellation.
func (f *Feed) Run(ctx context.Context, pairID string, role models.DeviceRole, h Handlers) error {
	b := f.newBackOff()
	connected := false

	for {
		err := f.session(ctx, pairID, role, h, func() {
			b.Reset()
			if connected && h.OnResync != nil {
				h.OnResync()
			}
			connected = true
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return permanent.Err
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			return err
		}
		log.Warn().Err(err).Str("pair_id", pairID).Dur("retry_in", wait).Msg("Live feed disconnected")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// session runs one connection until it fails
func (f *Feed) session(ctx context.Context, pairID string, role models.DeviceRole, h Handlers, onConnect func()) error {
	wsURL, err := f.url()
	if err != nil {
		return backoff.Permanent(err)
	}

	conn, resp, err := f.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusNotFound) {
			return backoff.Permanent(decodeError(resp))
		}
		return fmt.Errorf("failed to dial live feed: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		conn.Close()
	})
	defer stop()

	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(readWait))
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	onConnect()
	log.Info().Str("pair_id", pairID).Str("role", string(role)).Int64("since", f.resumeFrom()).Msg("Live feed connected")

	for {
		var msg models.WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("failed to read live feed: %w", err)
		}

		switch msg.Type {
		case models.WSPairStatus:
			if msg.PairID != "" && msg.PairID != pairID {
				return backoff.Permanent(apperrors.Conflict("device now belongs to pair " + msg.PairID))
			}
			if h.OnStatus != nil {
				h.OnStatus(msg)
			}
		case models.WSNotification:
			if msg.Notification != nil {
				f.dispatch(role, *msg.Notification, h)
			}
		case models.WSError:
			log.Warn().Str("code", msg.Code).Str("message", msg.Message).Msg("Live feed reported an error")
		default:
			log.Debug().Str("type", msg.Type).Msg("Ignoring unknown live feed frame")
		}
	}
}

func (f *Feed) dispatch(role models.DeviceRole, n models.Notification, h Handlers) {
	switch n.Kind {
	case models.NotifyEvent:
		e := n.Event
		if e == nil || e.Seq <= f.floor.Load() || !f.seen.add(e.Seq) {
			return
		}
		if e.Seq > f.lastSeq.Load() {
			f.lastSeq.Store(e.Seq)
		}
		// our own events come back on the shared channel
		if e.Sender == role {
			return
		}
		if h.OnEvent != nil {
			h.OnEvent(e)
		}
	case models.NotifyPhotoInsert, models.NotifyPhotoDelete:
		if h.OnPhotoChange != nil {
			h.OnPhotoChange(n)
		}
	}
}

func (f *Feed) url() (string, error) {
	u, err := url.Parse(f.client.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server URL scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"

	q := url.Values{}
	q.Set("token", f.client.Token())
	if seq := f.resumeFrom(); seq > 0 {
		q.Set("since", strconv.FormatInt(seq, 10))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// seqWindow remembers the most recent event seqs, in arrival order
type seqWindow struct {
	limit int
	order []int64
	set   map[int64]struct{}
}

func newSeqWindow(limit int) *seqWindow {
	return &seqWindow{limit: limit, set: make(map[int64]struct{}, limit)}
}

// add records seq and reports whether it was new
func (w *seqWindow) add(seq int64) bool {
	if _, ok := w.set[seq]; ok {
		return false
	}
	if len(w.order) == w.limit {
		delete(w.set, w.order[0])
		w.order = w.order[1:]
	}
	w.order = append(w.order, seq)
	w.set[seq] = struct{}{}
	return true
}
