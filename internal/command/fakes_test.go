package command

import (
	"context"
	"errors"
	"sync"

	"github.com/eaglebank/identity-service/internal/repository"
	"github.com/eaglebank/identity-service/shared/models"
)

// ---- in-memory user directory with version checks ----

type memoryUserStore struct {
	mu       sync.Mutex
	users    map[string]models.User
	getErr   error
	updateFn func(next *models.User) error
	updates  int
}

func newMemoryUserStore(users ...models.User) *memoryUserStore {
	s := &memoryUserStore{users: make(map[string]models.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memoryUserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	u.MessageIDs = append([]string(nil), u.MessageIDs...)
	return &u, nil
}

func (s *memoryUserStore) Update(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateFn != nil {
		if err := s.updateFn(user); err != nil {
			return err
		}
	}
	current, ok := s.users[user.ID]
	if !ok {
		return repository.ErrUserNotFound
	}
	if current.Version != user.Version {
		return repository.ErrConcurrentUpdate
	}
	stored := *user
	stored.MessageIDs = append([]string(nil), user.MessageIDs...)
	stored.Version++
	s.users[user.ID] = stored
	user.Version++
	s.updates++
	return nil
}

func (s *memoryUserStore) get(id string) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id]
}

// ---- publisher recording every attempt ----

type publishedEvent struct {
	stream    string
	eventType string
	data      any
}

type recordingPublisher struct {
	mu        sync.Mutex
	attempts  []publishedEvent
	published []publishedEvent
	failOn    map[string]error
}

func (p *recordingPublisher) Publish(ctx context.Context, stream, eventType string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e := publishedEvent{stream: stream, eventType: eventType, data: data}
	p.attempts = append(p.attempts, e)
	if err, ok := p.failOn[eventType]; ok {
		return err
	}
	p.published = append(p.published, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.published))
	for _, e := range p.published {
		out = append(out, e.eventType)
	}
	return out
}

func (p *recordingPublisher) find(eventType string) (publishedEvent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.published {
		if e.eventType == eventType {
			return e, true
		}
	}
	return publishedEvent{}, false
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempts = nil
	p.published = nil
	p.failOn = nil
}

// ---- counter and view cache ----

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) RecordDebit(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = make(map[string]int)
	}
	r.counts[userID]++
}

func (r *countingRecorder) count(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[userID]
}

type mockViewCache struct {
	mu      sync.Mutex
	views   map[string]models.UserView
	evicted []string
	err     error
}

func (c *mockViewCache) CacheUserView(ctx context.Context, view *models.UserView) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	if c.views == nil {
		c.views = make(map[string]models.UserView)
	}
	c.views[view.ID] = *view
	return nil
}

func (c *mockViewCache) EvictUserView(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.evicted = append(c.evicted, id)
	delete(c.views, id)
	return nil
}

var errStoreDown = errors.New("dial tcp 10.0.0.5:5432: connection refused")
