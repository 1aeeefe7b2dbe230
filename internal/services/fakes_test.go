package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"photo-frame-portal/internal/imaging"
	"photo-frame-portal/internal/models"
	"photo-frame-portal/internal/repository"
)

// memStore is an in-memory stand-in for the Postgres repositories that keeps
// the same constraints (unique email, pair code, user and role per pair).
type memStore struct {
	mu      sync.Mutex
	users   map[string]*models.User
	pairs   map[string]*models.Pair
	members map[string]*models.PairUser
	states  map[string]*models.PairState
	photos  map[string]*models.Photo
	events  []*models.Event
	seq     int64

	failPhotoDelete bool
	failPhotoCreate map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		users:           make(map[string]*models.User),
		pairs:           make(map[string]*models.Pair),
		members:         make(map[string]*models.PairUser),
		states:          make(map[string]*models.PairState),
		photos:          make(map[string]*models.Photo),
		failPhotoCreate: make(map[string]bool),
	}
}

// users

type memUsers struct{ *memStore }

func (s memUsers) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return fmt.Errorf("%w: email", repository.ErrDuplicateEmail)
		}
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, fmt.Errorf("user %w", repository.ErrNotFound)
}

func (s memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user %w", repository.ErrNotFound)
}

func (s memUsers) UpdatePushToken(_ context.Context, userID string, pushToken *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.PushToken = pushToken
	return nil
}

// pairs

type memPairs struct{ *memStore }

func (s memPairs) CreateWithOwner(_ context.Context, pair *models.Pair, owner *models.PairUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pairs {
		if p.PairCode == pair.PairCode {
			return fmt.Errorf("%w: %s", repository.ErrDuplicateCode, pair.PairCode)
		}
	}
	if _, ok := s.members[owner.UserID]; ok {
		return repository.ErrAlreadyPaired
	}
	pc := *pair
	oc := *owner
	s.pairs[pair.ID] = &pc
	s.members[owner.UserID] = &oc
	s.states[pair.ID] = &models.PairState{PairID: pair.ID, UpdatedAt: pair.CreatedAt}
	return nil
}

func (s memPairs) LookupPairIDByCode(_ context.Context, code string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pairs {
		if p.PairCode == code {
			return p.ID, nil
		}
	}
	return "", repository.ErrNotFound
}

func (s memPairs) AddMember(_ context.Context, member *models.PairUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[member.UserID]; ok {
		return repository.ErrAlreadyPaired
	}
	for _, m := range s.members {
		if m.PairID == member.PairID && m.DeviceRole == member.DeviceRole {
			return repository.ErrRoleTaken
		}
	}
	cp := *member
	s.members[member.UserID] = &cp
	return nil
}

func (s memPairs) GetMembership(_ context.Context, userID string) (*models.PairUser, *models.Pair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[userID]
	if !ok {
		return nil, nil, repository.ErrNotFound
	}
	mc := *m
	pc := *s.pairs[m.PairID]
	return &mc, &pc, nil
}

func (s memPairs) GetMembers(_ context.Context, pairID string) ([]*models.PairUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.PairUser
	for _, m := range s.members {
		if m.PairID == pairID {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceRole < out[j].DeviceRole })
	return out, nil
}

func (s memPairs) GetState(_ context.Context, pairID string) (*models.PairState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[pairID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

func (s memPairs) UpdateNavState(_ context.Context, pairID string, index int, seq int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[pairID]
	if !ok {
		st = &models.PairState{PairID: pairID}
		s.states[pairID] = st
	}
	if seq > st.NavSeq {
		st.CurrentIndex = index
		st.NavSeq = seq
	}
	return nil
}

func (s memPairs) GetPushToken(_ context.Context, pairID string, role models.DeviceRole) (*string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members {
		if m.PairID == pairID && m.DeviceRole == role {
			if u, ok := s.users[m.UserID]; ok {
				return u.PushToken, nil
			}
		}
	}
	return nil, nil
}

// photos

type memPhotos struct{ *memStore }

func (s memPhotos) Create(_ context.Context, photo *models.Photo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPhotoCreate[photo.StoragePath] {
		return errors.New("insert failed")
	}
	cp := *photo
	s.photos[photo.ID] = &cp
	return nil
}

func (s memPhotos) GetByID(_ context.Context, id string) (*models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.photos[id]
	if !ok {
		return nil, fmt.Errorf("photo %w", repository.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s memPhotos) CountByPairID(_ context.Context, pairID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.photos {
		if p.PairID == pairID {
			n++
		}
	}
	return n, nil
}

func (s memPhotos) ListByPairID(_ context.Context, pairID string) ([]*models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Photo
	for _, p := range s.photos {
		if p.PairID == pairID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s memPhotos) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPhotoDelete {
		return errors.New("delete failed")
	}
	delete(s.photos, id)
	return nil
}

// events

type memEvents struct{ *memStore }

func (s memEvents) Create(_ context.Context, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	event.Seq = s.seq
	cp := *event
	s.events = append(s.events, &cp)
	return nil
}

func (s memEvents) ListSince(_ context.Context, pairID string, afterSeq int64, limit int) ([]*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Event
	for _, e := range s.events {
		if e.PairID == pairID && e.Seq > afterSeq && len(out) < limit {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// memObjects is an in-memory blob store
type memObjects struct {
	mu         sync.Mutex
	blobs      map[string][]byte
	failPut    map[string]bool
	failDelete bool
}

func newMemObjects() *memObjects {
	return &memObjects{blobs: make(map[string][]byte), failPut: make(map[string]bool)}
}

func (o *memObjects) Put(_ context.Context, path string, data []byte, _ string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failPut[path] {
		return errors.New("put failed")
	}
	o.blobs[path] = data
	return nil
}

func (o *memObjects) Delete(_ context.Context, path string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failDelete {
		return errors.New("remove failed")
	}
	delete(o.blobs, path)
	return nil
}

func (o *memObjects) PublicURL(path string) string {
	return "https://cdn.example.com/storage/v1/object/public/photos/" + path
}

func (o *memObjects) has(path string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.blobs[path]
	return ok
}

// fakeProcessor passes bytes through and fails on the listed filenames
type fakeProcessor struct {
	fail map[string]error
}

func (p *fakeProcessor) Process(_ context.Context, src imaging.Source) ([]byte, error) {
	if err, ok := p.fail[src.Filename]; ok {
		return nil, err
	}
	return append([]byte("jpeg:"), src.Data...), nil
}

// recordingBus captures published notifications
type recordingBus struct {
	mu     sync.Mutex
	sent   []models.Notification
	online map[models.DeviceRole]bool
}

func (b *recordingBus) Publish(_ context.Context, n models.Notification) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, n)
	return nil
}

func (b *recordingBus) Online(_ string, role models.DeviceRole) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.online[role]
}

func (b *recordingBus) kinds() []models.NotificationKind {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.NotificationKind, len(b.sent))
	for i, n := range b.sent {
		out[i] = n.Kind
	}
	return out
}

// fakeNotifier records pushes
type fakeNotifier struct {
	mu     sync.Mutex
	tokens []string
	alerts []string
}

func (n *fakeNotifier) Notify(_ context.Context, deviceToken, alert string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tokens = append(n.tokens, deviceToken)
	n.alerts = append(n.alerts, alert)
	return nil
}
