package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentiond/internal/models"
	"mentiond/internal/structures"
)

func testConfig() *structures.Config {
	return &structures.Config{
		Backend: structures.BackendConfig{
			ScopeID:       "team-42",
			SnapshotLimit: 50,
		},
		Feed: structures.FeedConfig{
			MaxPendingEvents: 4,
		},
	}
}

// local mock backend to avoid import cycle with testutil
type testBackend struct {
	mu           sync.Mutex
	fetchFn      func(ctx context.Context, scopeID string, limit int) ([]*models.MentionRecord, error)
	setLeadFn    func(ctx context.Context, id string, desired bool) (*models.MentionRecord, error)
	fetchCalls   int
	setLeadCalls int
}

func (b *testBackend) FetchSnapshot(ctx context.Context, scopeID string, limit int) ([]*models.MentionRecord, error) {
	b.mu.Lock()
	b.fetchCalls++
	b.mu.Unlock()
	if b.fetchFn != nil {
		return b.fetchFn(ctx, scopeID, limit)
	}
	return nil, nil
}

func (b *testBackend) SetLead(ctx context.Context, id string, desired bool) (*models.MentionRecord, error) {
	b.mu.Lock()
	b.setLeadCalls++
	b.mu.Unlock()
	if b.setLeadFn != nil {
		return b.setLeadFn(ctx, id, desired)
	}
	return &models.MentionRecord{ID: id, IsLead: desired}, nil
}

func mention(id string) *models.MentionRecord {
	return &models.MentionRecord{
		ID:        id,
		GroupName: "group",
		UserName:  "user-" + id,
		Message:   "message " + id,
		Keyword:   "kw",
		Timestamp: "2026-08-23T10:00:00Z",
	}
}

func newService(client BackendClientInterface) *FeedService {
	return NewFeedService(testConfig(), client).(*FeedService)
}

func feedIDs(s FeedServiceInterface) []string {
	out := []string{}
	for _, r := range s.GetFeed() {
		out = append(out, r.ID)
	}
	return out
}

func TestFeedService_InitializeInstallsSnapshot(t *testing.T) {
	client := &testBackend{
		fetchFn: func(_ context.Context, scopeID string, limit int) ([]*models.MentionRecord, error) {
			assert.Equal(t, "team-42", scopeID)
			assert.Equal(t, 50, limit)
			return []*models.MentionRecord{mention("b"), mention("a")}, nil
		},
	}
	s := newService(client)

	require.NoError(t, s.Initialize(context.Background()))

	assert.True(t, s.Initialized())
	assert.Equal(t, []string{"b", "a"}, feedIDs(s))
}

func TestFeedService_InitializeErrorLeavesFeedUntouched(t *testing.T) {
	client := &testBackend{
		fetchFn: func(_ context.Context, _ string, _ int) ([]*models.MentionRecord, error) {
			return nil, fmt.Errorf("backend down")
		},
	}
	s := newService(client)

	err := s.Initialize(context.Background())
	assert.Error(t, err)
	assert.False(t, s.Initialized())
	assert.Equal(t, 0, s.FeedLen())
}

func TestFeedService_StreamInitSupersedesLateSnapshot(t *testing.T) {
	snapshot := []*models.MentionRecord{mention("snap1"), mention("snap2")}
	client := &testBackend{
		fetchFn: func(_ context.Context, _ string, _ int) ([]*models.MentionRecord, error) {
			return snapshot, nil
		},
	}
	s := newService(client)

	// Stream init lands first.
	s.ApplyInit([]*models.MentionRecord{mention("live1"), mention("live2")})
	require.True(t, s.Initialized())

	// The slower REST snapshot must be discarded.
	require.NoError(t, s.Initialize(context.Background()))

	assert.Equal(t, []string{"live1", "live2"}, feedIDs(s))
}

func TestFeedService_StreamInitReplacesEarlierSnapshot(t *testing.T) {
	client := &testBackend{
		fetchFn: func(_ context.Context, _ string, _ int) ([]*models.MentionRecord, error) {
			return []*models.MentionRecord{mention("snap1")}, nil
		},
	}
	s := newService(client)
	require.NoError(t, s.Initialize(context.Background()))

	s.ApplyInit([]*models.MentionRecord{mention("live1"), mention("live2")})

	assert.Equal(t, []string{"live1", "live2"}, feedIDs(s))
}

func TestFeedService_PreInitMentionsAreBufferedAndFlushed(t *testing.T) {
	s := newService(&testBackend{})

	s.ApplyMention(mention("early1"))
	s.ApplyMention(mention("early2"))

	assert.Equal(t, 0, s.FeedLen())
	assert.Equal(t, 2, s.PendingLen())

	s.ApplyInit([]*models.MentionRecord{mention("base")})

	assert.Equal(t, 0, s.PendingLen())
	assert.Equal(t, []string{"early2", "early1", "base"}, feedIDs(s))
}

func TestFeedService_PendingBufferDropsOldestOnOverflow(t *testing.T) {
	s := newService(&testBackend{}) // MaxPendingEvents = 4

	for i := 1; i <= 6; i++ {
		s.ApplyMention(mention(fmt.Sprintf("m%d", i)))
	}
	assert.Equal(t, 4, s.PendingLen())

	s.ApplyInit(nil)

	// m1 and m2 were dropped, the rest flushed newest-first.
	assert.Equal(t, []string{"m6", "m5", "m4", "m3"}, feedIDs(s))
}

func TestFeedService_ApplyMentionAfterInitInsertsAtHead(t *testing.T) {
	s := newService(&testBackend{})
	s.ApplyInit([]*models.MentionRecord{mention("a")})

	s.ApplyMention(mention("b"))

	assert.Equal(t, []string{"b", "a"}, feedIDs(s))
}

func TestFeedService_RedeliveredMentionRefreshesInPlace(t *testing.T) {
	s := newService(&testBackend{})
	s.ApplyInit([]*models.MentionRecord{mention("a"), mention("b")})

	dup := mention("b")
	dup.Message = "edited"
	s.ApplyMention(dup)

	assert.Equal(t, []string{"a", "b"}, feedIDs(s))
	got, ok := s.GetMention("b")
	require.True(t, ok)
	assert.Equal(t, "edited", got.Message)
}

func TestFeedService_RedeliveryEventKeepsLeadFlag(t *testing.T) {
	s := newService(&testBackend{})
	s.ApplyInit([]*models.MentionRecord{mention("a")})

	_, err := s.ToggleLead(context.Background(), "a", true)
	require.NoError(t, err)

	var got []FeedEvent
	var mu sync.Mutex
	s.Subscribe(func(e FeedEvent) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})

	// Stream redelivery of "a" carries the pre-toggle lead flag.
	dup := mention("a")
	dup.Message = "edited"
	s.ApplyMention(dup)

	stored, ok := s.GetMention("a")
	require.True(t, ok)
	assert.True(t, stored.IsLead)
	assert.Equal(t, "edited", stored.Message)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, FeedEventMention, got[0].Type)
	assert.True(t, got[0].Record.IsLead, "event must carry the store's lead flag")
	assert.Equal(t, "edited", got[0].Record.Message)
}

func TestFeedService_ToggleLeadSuccess(t *testing.T) {
	client := &testBackend{}
	s := newService(client)
	s.ApplyInit([]*models.MentionRecord{mention("a")})

	rec, err := s.ToggleLead(context.Background(), "a", true)
	require.NoError(t, err)
	assert.True(t, rec.IsLead)

	got, _ := s.GetMention("a")
	assert.True(t, got.IsLead)
	assert.Equal(t, 1, client.setLeadCalls)
}

func TestFeedService_ToggleLeadRollsBackOnFailure(t *testing.T) {
	client := &testBackend{
		setLeadFn: func(_ context.Context, _ string, _ bool) (*models.MentionRecord, error) {
			return nil, fmt.Errorf("backend rejected")
		},
	}
	s := newService(client)
	s.ApplyInit([]*models.MentionRecord{mention("a")})

	_, err := s.ToggleLead(context.Background(), "a", true)
	assert.Error(t, err)

	got, _ := s.GetMention("a")
	assert.False(t, got.IsLead, "failed toggle must roll back")
}

func TestFeedService_ToggleLeadServerValueWins(t *testing.T) {
	client := &testBackend{
		setLeadFn: func(_ context.Context, id string, _ bool) (*models.MentionRecord, error) {
			// Server disagrees with the requested value.
			return &models.MentionRecord{ID: id, IsLead: false}, nil
		},
	}
	s := newService(client)
	s.ApplyInit([]*models.MentionRecord{mention("a")})

	rec, err := s.ToggleLead(context.Background(), "a", true)
	require.NoError(t, err)
	assert.False(t, rec.IsLead)

	got, _ := s.GetMention("a")
	assert.False(t, got.IsLead)
}

func TestFeedService_ToggleLeadUnknownID(t *testing.T) {
	client := &testBackend{}
	s := newService(client)
	s.ApplyInit(nil)

	_, err := s.ToggleLead(context.Background(), "ghost", true)
	assert.Error(t, err)
	assert.Equal(t, 0, client.setLeadCalls, "no backend call for unknown ids")
}

func TestFeedService_ToggleLeadEmitsOptimisticEvent(t *testing.T) {
	client := &testBackend{}
	s := newService(client)
	s.ApplyInit([]*models.MentionRecord{mention("a")})

	var events []FeedEvent
	var mu sync.Mutex
	s.Subscribe(func(e FeedEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	_, err := s.ToggleLead(context.Background(), "a", true)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, events)
	assert.Equal(t, FeedEventLead, events[0].Type)
	assert.True(t, events[0].Record.IsLead)
}

func TestFeedService_ToggleLeadRollbackEmitsSecondEvent(t *testing.T) {
	client := &testBackend{
		setLeadFn: func(_ context.Context, _ string, _ bool) (*models.MentionRecord, error) {
			return nil, fmt.Errorf("timeout")
		},
	}
	s := newService(client)
	s.ApplyInit([]*models.MentionRecord{mention("a")})

	var events []FeedEvent
	var mu sync.Mutex
	s.Subscribe(func(e FeedEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	_, err := s.ToggleLead(context.Background(), "a", true)
	assert.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	assert.True(t, events[0].Record.IsLead, "optimistic event")
	assert.False(t, events[1].Record.IsLead, "rollback event")
}

func TestFeedService_RestoreFeedDoesNotInitialize(t *testing.T) {
	s := newService(&testBackend{})

	s.RestoreFeed([]*models.MentionRecord{mention("warm1"), mention("warm2")})

	assert.False(t, s.Initialized())
	assert.Equal(t, []string{"warm1", "warm2"}, feedIDs(s))

	// The live init still replaces the restored view wholesale.
	s.ApplyInit([]*models.MentionRecord{mention("live1")})
	assert.Equal(t, []string{"live1"}, feedIDs(s))
}

func TestFeedService_RestoreFeedIgnoredAfterInit(t *testing.T) {
	s := newService(&testBackend{})
	s.ApplyInit([]*models.MentionRecord{mention("live1")})

	s.RestoreFeed([]*models.MentionRecord{mention("warm1")})

	assert.Equal(t, []string{"live1"}, feedIDs(s))
}

func TestFeedService_TeardownBlocksLateWrites(t *testing.T) {
	s := newService(&testBackend{})
	s.ApplyInit([]*models.MentionRecord{mention("a")})

	s.Teardown()

	assert.False(t, s.Active())
	assert.Equal(t, 0, s.FeedLen())

	// Late arrivals from in-flight work must be dropped.
	s.ApplyMention(mention("late"))
	s.ApplyInit([]*models.MentionRecord{mention("late2")})
	assert.Equal(t, 0, s.FeedLen())

	_, err := s.ToggleLead(context.Background(), "a", true)
	assert.Error(t, err)
	assert.Error(t, s.Initialize(context.Background()))
}

func TestFeedService_TeardownIdempotent(t *testing.T) {
	s := newService(&testBackend{})
	s.Teardown()
	s.Teardown()
	assert.False(t, s.Active())
}

func TestFeedService_SubscribersSeeMentionEvents(t *testing.T) {
	s := newService(&testBackend{})
	s.ApplyInit(nil)

	var got []FeedEvent
	var mu sync.Mutex
	s.Subscribe(func(e FeedEvent) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	})

	s.ApplyMention(mention("a"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, FeedEventMention, got[0].Type)
	assert.Equal(t, "a", got[0].Record.ID)
}

// Full session: warm restore, early stream mentions, late snapshot, live
// init, then ongoing deliveries with a redelivery mixed in.
func TestFeedService_FullSessionMerge(t *testing.T) {
	snapshotReady := make(chan struct{})
	client := &testBackend{
		fetchFn: func(_ context.Context, _ string, _ int) ([]*models.MentionRecord, error) {
			<-snapshotReady
			return []*models.MentionRecord{mention("stale1"), mention("stale2")}, nil
		},
	}
	s := newService(client)

	s.RestoreFeed([]*models.MentionRecord{mention("warm")})

	done := make(chan error, 1)
	go func() { done <- s.Initialize(context.Background()) }()

	// Stream connects and pushes before the snapshot resolves.
	s.ApplyMention(mention("early"))
	s.ApplyInit([]*models.MentionRecord{mention("m2"), mention("m1")})

	close(snapshotReady)
	require.NoError(t, <-done)

	// Snapshot lost the race: live view plus the buffered early mention.
	assert.Equal(t, []string{"early", "m2", "m1"}, feedIDs(s))

	s.ApplyMention(mention("m3"))
	dup := mention("m1")
	dup.Message = "edited"
	s.ApplyMention(dup)

	assert.Equal(t, []string{"m3", "early", "m2", "m1"}, feedIDs(s))
	got, _ := s.GetMention("m1")
	assert.Equal(t, "edited", got.Message)
}
