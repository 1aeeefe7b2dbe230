package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	apperrors "photo-frame-portal/internal/errors"
	"photo-frame-portal/internal/models"

	"github.com/rs/zerolog/log"
)

// ReplayLimit caps how many missed events one replay returns
const ReplayLimit = 100

const pushTimeout = 10 * time.Second

// EventService appends cross-device events and fans them out to the pair
type EventService struct {
	eventRepo EventStore
	pairRepo  PairStore
	bus       Publisher
	presence  Presence
	notifier  Notifier
	pushes    sync.WaitGroup
}

// NewEventService creates a new event service. presence and notifier may be
// nil, in which case no push notifications are sent.
func NewEventService(eventRepo EventStore, pairRepo PairStore, bus Publisher, presence Presence, notifier Notifier) *EventService {
	return &EventService{
		eventRepo: eventRepo,
		pairRepo:  pairRepo,
		bus:       bus,
		presence:  presence,
		notifier:  notifier,
	}
}

// Publish validates and records an event from sender, then delivers it to
// every live subscriber of the pair. Delivery problems are logged only; the
// event is durable once this returns.
func (s *EventService) Publish(ctx context.Context, pairID string, sender models.DeviceRole, eventType models.EventType, payload json.RawMessage) (*models.Event, error) {
	if !sender.Valid() {
		return nil, apperrors.ValidationError(fmt.Sprintf("unknown device role %q", sender))
	}
	canonical, err := ValidatePayload(eventType, payload)
	if err != nil {
		return nil, err
	}

	event := &models.Event{
		PairID:    pairID,
		Sender:    sender,
		EventType: eventType,
		Payload:   canonical,
	}
	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, apperrors.Backend("insert event", err)
	}

	if eventType == models.EventPhotoNav {
		var nav models.PhotoNavPayload
		_ = json.Unmarshal(canonical, &nav)
		if err := s.pairRepo.UpdateNavState(ctx, pairID, nav.Index, event.Seq); err != nil {
			log.Error().Err(err).Str("pair_id", pairID).Int64("seq", event.Seq).Msg("Failed to update pair state")
		}
	}

	if err := s.bus.Publish(ctx, models.Notification{Kind: models.NotifyEvent, PairID: pairID, Event: event}); err != nil {
		log.Error().Err(err).Str("pair_id", pairID).Int64("seq", event.Seq).Msg("Failed to publish event")
	}

	log.Debug().
		Str("pair_id", pairID).
		Str("sender", string(sender)).
		Str("event_type", string(eventType)).
		Int64("seq", event.Seq).
		Msg("Event published")

	s.maybePush(ctx, event)
	return event, nil
}

// Replay returns the pair's events after afterSeq, oldest first
func (s *EventService) Replay(ctx context.Context, pairID string, afterSeq int64) ([]*models.Event, error) {
	events, err := s.eventRepo.ListSince(ctx, pairID, afterSeq, ReplayLimit)
	if err != nil {
		return nil, apperrors.Backend("list events", err)
	}
	return events, nil
}

// Wait blocks until push notifications already started have finished
func (s *EventService) Wait() {
	s.pushes.Wait()
}

// maybePush alerts the peer device through APNs when it has no live feed
// open. The push runs in the background and outlives the publishing request.
func (s *EventService) maybePush(ctx context.Context, event *models.Event) {
	if s.notifier == nil || event.EventType == models.EventPhotoNav {
		return
	}
	if s.presence != nil && s.presence.Online(event.PairID, event.Sender.Peer()) {
		return
	}

	s.pushes.Add(1)
	go func() {
		defer s.pushes.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
		defer cancel()
		s.push(ctx, event)
	}()
}

func (s *EventService) push(ctx context.Context, event *models.Event) {
	peer := event.Sender.Peer()
	token, err := s.pairRepo.GetPushToken(ctx, event.PairID, peer)
	if err != nil {
		log.Warn().Err(err).Str("pair_id", event.PairID).Msg("Failed to look up peer push token")
		return
	}
	if token == nil {
		return
	}

	if err := s.notifier.Notify(ctx, *token, pushAlert(event)); err != nil {
		log.Warn().Err(err).Str("pair_id", event.PairID).Int64("seq", event.Seq).Msg("Push notification failed")
	}
}

func pushAlert(event *models.Event) string {
	switch event.EventType {
	case models.EventMessage:
		var p models.MessagePayload
		_ = json.Unmarshal(event.Payload, &p)
		if p.SenderLabel != "" {
			return p.SenderLabel + ": " + p.Text
		}
		return p.Text
	case models.EventEmoji:
		var p models.EmojiPayload
		_ = json.Unmarshal(event.Payload, &p)
		return models.EmojiDisplay(p.Emoji)
	}
	return string(event.EventType)
}
