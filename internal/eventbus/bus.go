package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"photo-frame-portal/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const subscriberBuffer = 64

// Channel returns the Redis channel carrying a pair's notifications
func Channel(pairID string) string {
	return fmt.Sprintf("pair:%s", pairID)
}

// Subscription receives every notification of one pair
type Subscription struct {
	PairID string
	Role   models.DeviceRole
	C      chan models.Notification
	Done   chan struct{}
}

// Bus fans pair notifications out to live subscribers. With a Redis client
// notifications travel through Redis pub/sub so every server instance sees
// them; without one they stay in-process.
type Bus struct {
	redis  *redis.Client
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	relays map[string]*redis.PubSub
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a bus. rdb may be nil.
func New(rdb *redis.Client) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		redis:  rdb,
		subs:   make(map[string]map[*Subscription]struct{}),
		relays: make(map[string]*redis.PubSub),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Subscribe registers a live subscriber for a pair
func (b *Bus) Subscribe(ctx context.Context, pairID string, role models.DeviceRole) (*Subscription, error) {
	sub := &Subscription{
		PairID: pairID,
		Role:   role,
		C:      make(chan models.Notification, subscriberBuffer),
		Done:   make(chan struct{}),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[pairID] == nil {
		if b.redis != nil {
			if err := b.startRelay(ctx, pairID); err != nil {
				return nil, err
			}
		}
		b.subs[pairID] = make(map[*Subscription]struct{})
	}
	b.subs[pairID][sub] = struct{}{}

	log.Info().
		Str("pair_id", pairID).
		Str("role", string(role)).
		Int("subscribers", len(b.subs[pairID])).
		Msg("Live feed subscriber registered")

	return sub, nil
}

// Unsubscribe removes a subscriber and closes its Done channel
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subs[sub.PairID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.Done)

	if len(subs) == 0 {
		delete(b.subs, sub.PairID)
		if relay, ok := b.relays[sub.PairID]; ok {
			relay.Close()
			delete(b.relays, sub.PairID)
		}
	}

	log.Info().
		Str("pair_id", sub.PairID).
		Str("role", string(sub.Role)).
		Msg("Live feed subscriber unregistered")
}

// Publish delivers n to every subscriber of n.PairID
func (b *Bus) Publish(ctx context.Context, n models.Notification) error {
	if b.redis == nil {
		b.broadcast(n)
		return nil
	}

	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := b.redis.Publish(ctx, Channel(n.PairID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

// Online reports whether role has a live subscriber for the pair on this instance
func (b *Bus) Online(pairID string, role models.DeviceRole) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs[pairID] {
		if sub.Role == role {
			return true
		}
	}
	return false
}

// SubscriberCount returns the number of local subscribers of a pair
func (b *Bus) SubscriberCount(pairID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[pairID])
}

// Close stops all relays and releases every subscriber
func (b *Bus) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, relay := range b.relays {
		relay.Close()
	}
	for _, subs := range b.subs {
		for sub := range subs {
			close(sub.Done)
		}
	}
	b.subs = make(map[string]map[*Subscription]struct{})
	b.relays = make(map[string]*redis.PubSub)
}

// startRelay subscribes to the pair's Redis channel and forwards messages to
// local subscribers. Caller holds b.mu.
func (b *Bus) startRelay(ctx context.Context, pairID string) error {
	pubsub := b.redis.Subscribe(b.ctx, Channel(pairID))
	// wait for the subscription to be confirmed so no publish is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", Channel(pairID), err)
	}
	b.relays[pairID] = pubsub

	go b.relay(pairID, pubsub)
	return nil
}

func (b *Bus) relay(pairID string, pubsub *redis.PubSub) {
	ch := pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var n models.Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				log.Error().Err(err).Str("pair_id", pairID).Msg("Failed to decode notification")
				continue
			}
			b.broadcast(n)
		}
	}
}

func (b *Bus) broadcast(n models.Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs[n.PairID] {
		select {
		case sub.C <- n:
		default:
			log.Warn().
				Str("pair_id", n.PairID).
				Str("role", string(sub.Role)).
				Msg("Subscriber buffer full, dropping notification")
		}
	}
}
