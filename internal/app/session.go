// Package app is the device-side application state. A Session owns the
// gallery, the activity list and the toast, and mutates them only on the
// goroutine running Session.Run. UI commands and live feed traffic are queued
// as actions for that goroutine.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"photo-frame-portal/internal/activity"
	"photo-frame-portal/internal/client"
	"photo-frame-portal/internal/gallery"
	"photo-frame-portal/internal/imaging"
	"photo-frame-portal/internal/models"

	"github.com/rs/zerolog/log"
)

const actionBuffer = 64

// Emoji pings land at a random spot inside the frame canvas
const (
	emojiMinX = 20
	emojiMaxX = 220
	emojiMinY = 20
	emojiMaxY = 260
)

// Backend is the portal API as the session uses it
type Backend interface {
	ListPhotos(ctx context.Context) ([]*models.Photo, error)
	UploadPhotos(ctx context.Context, files []imaging.Source) (*models.UploadReport, error)
	DeletePhoto(ctx context.Context, photoID string) error
	PublishEvent(ctx context.Context, eventType models.EventType, payload any) (*models.Event, error)
}

// View draws the session state
type View interface {
	Render(Snapshot)
}

// Snapshot is everything a view needs to draw one frame
type Snapshot struct {
	Photos        []*models.Photo
	Cursor        int
	Counter       string
	Lightbox      int
	LightboxOpen  bool
	Toast         string
	Activity      []activity.Entry
	PartnerOnline bool
	// Emoji is set on the render that follows a received emoji ping
	Emoji *models.EmojiPayload
}

type action func(ctx context.Context)

// Session is one signed-in, paired device
type Session struct {
	backend Backend
	view    View
	info    *models.PairInfo

	gallery       *gallery.Controller
	activity      *activity.Log
	toast         *activity.Toaster
	partnerOnline bool
	emoji         *models.EmojiPayload

	actions chan action
	done    chan struct{}
	intn    func(n int) int
}

// New creates a session for the pair described by info
func New(backend Backend, view View, info *models.PairInfo) *Session {
	return newSession(backend, view, info, time.Now)
}

func newSession(backend Backend, view View, info *models.PairInfo, clock func() time.Time) *Session {
	return &Session{
		backend:  backend,
		view:     view,
		info:     info,
		gallery:  gallery.New(),
		activity: activity.NewLog(clock),
		toast:    activity.NewToaster(clock),
		actions:  make(chan action, actionBuffer),
		done:     make(chan struct{}),
		intn:     rand.Intn,
	}
}

// Role returns this device's role in the pair
func (s *Session) Role() models.DeviceRole {
	return s.info.Member.DeviceRole
}

// Run loads the gallery and then processes actions until ctx is cancelled
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)

	s.reload(ctx)
	if st := s.info.State; st != nil {
		s.gallery.SeedNav(st.NavSeq)
		s.gallery.Jump(st.CurrentIndex, 0)
	}
	s.render()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case a := <-s.actions:
			a(ctx)
			s.render()
		}
	}
}

func (s *Session) enqueue(a action) {
	select {
	case s.actions <- a:
	case <-s.done:
	}
}

// Next shows the following photo on both devices
func (s *Session) Next() {
	s.enqueue(func(ctx context.Context) {
		if s.gallery.Next() {
			s.shareNav(ctx)
		}
	})
}

// Prev shows the previous photo on both devices
func (s *Session) Prev() {
	s.enqueue(func(ctx context.Context) {
		if s.gallery.Prev() {
			s.shareNav(ctx)
		}
	})
}

// Select shows photo i on both devices
func (s *Session) Select(i int) {
	s.enqueue(func(ctx context.Context) {
		if s.gallery.Jump(i, 0) {
			s.shareNav(ctx)
		}
	})
}

// OpenLightbox shows photo i full size on this device only
func (s *Session) OpenLightbox(i int) {
	s.enqueue(func(context.Context) {
		s.gallery.OpenLightbox(i)
	})
}

// CloseLightbox hides the lightbox
func (s *Session) CloseLightbox() {
	s.enqueue(func(context.Context) {
		s.gallery.CloseLightbox()
	})
}

// Reload refetches the photo list
func (s *Session) Reload() {
	s.enqueue(s.reload)
}

// SendMessage sends text to the other device
func (s *Session) SendMessage(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	s.enqueue(func(ctx context.Context) {
		payload := models.MessagePayload{Text: text, SenderLabel: s.info.Member.DisplayName}
		if _, err := s.backend.PublishEvent(ctx, models.EventMessage, payload); err != nil {
			s.sendFailed(err, models.EventMessage)
			return
		}
		s.toast.Show("Message sent!")
		s.activity.Add(activity.KindMessage, "You: "+text)
	})
}

// SendEmoji sends a named or literal emoji ping to the other device
func (s *Session) SendEmoji(name string) {
	s.enqueue(func(ctx context.Context) {
		payload := EmojiAt(name, s.intn)
		if _, err := s.backend.PublishEvent(ctx, models.EventEmoji, payload); err != nil {
			s.sendFailed(err, models.EventEmoji)
			return
		}
		s.activity.Add(activity.KindEmoji, "You sent "+models.EmojiDisplay(name))
	})
}

// EmojiAt places an emoji ping at a random spot chosen with intn
func EmojiAt(name string, intn func(n int) int) models.EmojiPayload {
	return models.EmojiPayload{
		Emoji: name,
		X:     emojiMinX + intn(emojiMaxX-emojiMinX),
		Y:     emojiMinY + intn(emojiMaxY-emojiMinY),
	}
}

// Upload sends files as one batch and reports the outcome. done, if not nil,
// receives the report (nil on request failure) once the gallery is reloaded.
func (s *Session) Upload(files []imaging.Source, done func(*models.UploadReport, error)) {
	s.enqueue(func(ctx context.Context) {
		report, err := s.backend.UploadPhotos(ctx, files)
		if err != nil {
			log.Error().Err(err).Int("files", len(files)).Msg("Upload failed")
			s.toast.Show("Upload failed")
			s.activity.Add(activity.KindSystem, "Upload failed: "+err.Error())
			if done != nil {
				done(nil, err)
			}
			return
		}

		for _, f := range report.Failures {
			s.toast.Show(fmt.Sprintf("Failed to process %s: %s", f.Filename, f.Message))
			s.activity.Add(activity.KindSystem, fmt.Sprintf("Could not upload %s (%s)", f.Filename, f.Code))
		}
		s.reload(ctx)
		if report.Succeeded > 0 {
			s.toast.Show(uploadedText(report.Succeeded))
			s.activity.Add(activity.KindPhoto, uploadedText(report.Succeeded))
		}
		if done != nil {
			done(report, nil)
		}
	})
}

func uploadedText(n int) string {
	if n == 1 {
		return "1 photo uploaded!"
	}
	return fmt.Sprintf("%d photos uploaded!", n)
}

// Delete removes the photo at index i from both frames
func (s *Session) Delete(i int) {
	s.enqueue(func(ctx context.Context) {
		photos := s.gallery.Photos()
		if i < 0 || i >= len(photos) {
			return
		}
		if err := s.backend.DeletePhoto(ctx, photos[i].ID); err != nil {
			log.Error().Err(err).Str("photo_id", photos[i].ID).Msg("Delete failed")
			s.toast.Show("Failed to delete photo")
			return
		}
		s.gallery.CloseLightbox()
		s.reload(ctx)
		s.toast.Show("Photo deleted")
	})
}

// Handlers routes live feed traffic into the action loop
func (s *Session) Handlers() client.Handlers {
	return client.Handlers{
		OnEvent: func(e *models.Event) {
			s.enqueue(func(context.Context) { s.applyRemote(e) })
		},
		OnPhotoChange: func(models.Notification) {
			s.enqueue(s.reload)
		},
		OnResync: func() {
			s.enqueue(func(ctx context.Context) {
				s.activity.Add(activity.KindSystem, "Reconnected")
				s.reload(ctx)
			})
		},
		OnStatus: func(msg models.WSMessage) {
			s.enqueue(func(context.Context) {
				s.partnerOnline = msg.PartnerOnline != nil && *msg.PartnerOnline
			})
		},
	}
}

func (s *Session) applyRemote(e *models.Event) {
	if e.Sender == s.Role() {
		return
	}

	switch e.EventType {
	case models.EventPhotoNav:
		var p models.PhotoNavPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			log.Warn().Err(err).Int64("seq", e.Seq).Msg("Malformed photo_nav payload")
			return
		}
		if s.gallery.Jump(p.Index, e.Seq) {
			s.activity.Add(activity.KindNav, fmt.Sprintf("Other device moved to photo %d", p.Index+1))
		}
	case models.EventMessage:
		var p models.MessagePayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			log.Warn().Err(err).Int64("seq", e.Seq).Msg("Malformed message payload")
			return
		}
		s.toast.Show("\U0001F4AC " + p.Text)
		s.activity.Add(activity.KindMessage, activity.MessageText(p))
	case models.EventEmoji:
		var p models.EmojiPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			log.Warn().Err(err).Int64("seq", e.Seq).Msg("Malformed emoji payload")
			return
		}
		s.toast.Show(activity.EmojiText(p) + " received!")
		s.activity.Add(activity.KindEmoji, "Received "+activity.EmojiText(p))
		s.emoji = &p
	}
}

func (s *Session) shareNav(ctx context.Context) {
	event, err := s.backend.PublishEvent(ctx, models.EventPhotoNav, models.PhotoNavPayload{Index: s.gallery.Cursor()})
	if err != nil {
		s.sendFailed(err, models.EventPhotoNav)
		return
	}
	// a peer jump older than ours must not pull us back
	s.gallery.SeedNav(event.Seq)
}

func (s *Session) sendFailed(err error, eventType models.EventType) {
	log.Error().Err(err).Str("event_type", string(eventType)).Msg("Failed to send event")
	s.toast.Show("Failed to send, check connection")
}

func (s *Session) reload(ctx context.Context) {
	photos, err := s.backend.ListPhotos(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load photos")
		s.toast.Show("Could not load photos")
		return
	}
	s.gallery.Reload(photos)
}

func (s *Session) render() {
	if s.view == nil {
		return
	}
	snap := Snapshot{
		Photos:        s.gallery.Photos(),
		Cursor:        s.gallery.Cursor(),
		Counter:       s.gallery.Counter(),
		Activity:      s.activity.Entries(),
		PartnerOnline: s.partnerOnline,
		Emoji:         s.emoji,
	}
	snap.Lightbox, snap.LightboxOpen = s.gallery.Lightbox()
	snap.Toast, _ = s.toast.Visible()
	s.emoji = nil
	s.view.Render(snap)
}
