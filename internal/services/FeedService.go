package services

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"mentiond/internal/models"
	"mentiond/internal/structures"
)

// BackendClientInterface is the REST surface the feed needs: the bounded
// snapshot and the lead mutation. Implemented by feed.RestClient.
type BackendClientInterface interface {
	FetchSnapshot(ctx context.Context, scopeID string, limit int) ([]*models.MentionRecord, error)
	SetLead(ctx context.Context, id string, desired bool) (*models.MentionRecord, error)
}

const (
	FeedEventInit    = "init"
	FeedEventMention = "mention"
	FeedEventLead    = "lead"
)

type FeedEvent struct {
	Type   string
	Record *models.MentionRecord
}

type FeedListenerFunc func(event FeedEvent)

type FeedServiceInterface interface {
	Initialize(ctx context.Context) error
	ApplyInit(records []*models.MentionRecord)
	ApplyMention(rec *models.MentionRecord)
	ToggleLead(ctx context.Context, id string, desired bool) (*models.MentionRecord, error)
	RestoreFeed(records []*models.MentionRecord)
	GetFeed() []*models.MentionRecord
	GetMention(id string) (*models.MentionRecord, bool)
	FeedLen() int
	PendingLen() int
	Initialized() bool
	Subscribe(fn FeedListenerFunc)
	Teardown()
	Active() bool
}

type FeedService struct {
	config *structures.Config
	client BackendClientInterface
	store  *models.FeedStore

	mu          sync.Mutex
	pending     []*models.MentionRecord
	listeners   []FeedListenerFunc
	active      atomic.Bool
	initialized atomic.Bool
}

func NewFeedService(config *structures.Config, client BackendClientInterface) FeedServiceInterface {
	s := &FeedService{
		config: config,
		client: client,
		store:  models.NewFeedStore(),
	}
	s.active.Store(true)
	return s
}

// Initialize fetches the REST snapshot and installs it as the feed
// baseline. The stream runs concurrently: if its init event has already
// replaced the feed by the time the snapshot resolves, the snapshot is
// discarded — the stream's view is authoritative.
func (s *FeedService) Initialize(ctx context.Context) error {
	if !s.active.Load() {
		return fmt.Errorf("feed service is torn down")
	}

	records, err := s.client.FetchSnapshot(ctx, s.config.Backend.ScopeID, s.config.Backend.SnapshotLimit)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if !s.active.Load() || s.initialized.Load() {
		s.mu.Unlock()
		return nil
	}
	s.store.Replace(records)
	s.initialized.Store(true)
	s.flushPendingLocked()
	s.mu.Unlock()

	s.notify(FeedEvent{Type: FeedEventInit})
	return nil
}

// ApplyInit installs the stream's authoritative snapshot, replacing
// whatever is present — including a REST snapshot that resolved earlier.
// Buffered pre-init mentions are re-applied in receipt order.
func (s *FeedService) ApplyInit(records []*models.MentionRecord) {
	if !s.active.Load() {
		return
	}

	s.mu.Lock()
	s.store.Replace(records)
	s.initialized.Store(true)
	s.flushPendingLocked()
	s.mu.Unlock()

	s.notify(FeedEvent{Type: FeedEventInit})
}

// ApplyMention ingests a single pushed mention. Before initialization
// completes the record is buffered; the buffer is bounded and drops its
// oldest entry on overflow.
func (s *FeedService) ApplyMention(rec *models.MentionRecord) {
	if !s.active.Load() || rec == nil || rec.ID == "" {
		return
	}

	s.mu.Lock()
	if !s.initialized.Load() {
		if len(s.pending) >= s.config.Feed.MaxPendingEvents {
			s.pending = s.pending[1:]
		}
		s.pending = append(s.pending, rec)
		s.mu.Unlock()
		return
	}
	s.store.Upsert(rec)
	stored, _ := s.store.Get(rec.ID)
	s.mu.Unlock()

	// Broadcast the stored record, not the inbound one: a redelivery
	// refreshes content only and must not leak its stale lead flag.
	s.notify(FeedEvent{Type: FeedEventMention, Record: stored})
}

// ToggleLead applies the desired lead value optimistically, then asks the
// backend. The server's answer wins; a transport failure rolls the flag
// back and is returned for user-visible feedback. No automatic retry.
func (s *FeedService) ToggleLead(ctx context.Context, id string, desired bool) (*models.MentionRecord, error) {
	if !s.active.Load() {
		return nil, fmt.Errorf("feed service is torn down")
	}

	prev, ok := s.store.SetLead(id, desired)
	if !ok {
		return nil, fmt.Errorf("unknown mention id: %s", id)
	}
	if rec, found := s.store.Get(id); found {
		s.notify(FeedEvent{Type: FeedEventLead, Record: rec})
	}

	confirmed, err := s.client.SetLead(ctx, id, desired)
	if err != nil {
		if s.active.Load() {
			s.store.SetLead(id, prev)
			if rec, found := s.store.Get(id); found {
				s.notify(FeedEvent{Type: FeedEventLead, Record: rec})
			}
		}
		return nil, err
	}

	if !s.active.Load() {
		return confirmed, nil
	}

	// Server value wins even when it differs from what was requested,
	// e.g. a concurrent change from another session.
	s.store.SetLead(id, confirmed.IsLead)
	rec, found := s.store.Get(id)
	if !found {
		return confirmed, nil
	}
	if rec.IsLead != desired {
		s.notify(FeedEvent{Type: FeedEventLead, Record: rec})
	}
	return rec, nil
}

// RestoreFeed seeds the feed from the persisted warm-start snapshot. It
// does not count as initialization: the next REST snapshot or stream init
// still replaces it wholesale.
func (s *FeedService) RestoreFeed(records []*models.MentionRecord) {
	if !s.active.Load() || s.initialized.Load() {
		return
	}
	s.mu.Lock()
	s.store.Replace(records)
	s.mu.Unlock()
	s.notify(FeedEvent{Type: FeedEventInit})
}

func (s *FeedService) flushPendingLocked() {
	for _, rec := range s.pending {
		s.store.Upsert(rec)
	}
	s.pending = nil
}

func (s *FeedService) GetFeed() []*models.MentionRecord {
	return s.store.Snapshot()
}

func (s *FeedService) GetMention(id string) (*models.MentionRecord, bool) {
	return s.store.Get(id)
}

func (s *FeedService) FeedLen() int {
	return s.store.Len()
}

func (s *FeedService) PendingLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *FeedService) Initialized() bool {
	return s.initialized.Load()
}

func (s *FeedService) Subscribe(fn FeedListenerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *FeedService) notify(event FeedEvent) {
	s.mu.Lock()
	listeners := make([]FeedListenerFunc, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(event)
	}
}

// Teardown discards buffered state and blocks any late writes from
// in-flight fetches or queued stream events. Safe to call repeatedly.
func (s *FeedService) Teardown() {
	s.active.Store(false)
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
	s.store.Clear()
}

func (s *FeedService) Active() bool {
	return s.active.Load()
}
