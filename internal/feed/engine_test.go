package feed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentiond/internal/models"
	"mentiond/internal/services"
	"mentiond/internal/structures"
	"mentiond/internal/testutil"
)

func engineConfig(filePath string) *structures.Config {
	return &structures.Config{
		Backend: structures.BackendConfig{
			ScopeID:       "team-42",
			SnapshotLimit: 50,
		},
		Stream: structures.StreamConfig{
			ReconnectDelay: 20 * time.Millisecond,
		},
		Persistence: structures.Persistence{
			FilePath:     filePath,
			SaveInterval: 1 * time.Second,
		},
	}
}

type fakeHandle struct {
	events    chan StreamEvent
	closeOnce sync.Once
	err       error
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{events: make(chan StreamEvent, 16)}
}

func (h *fakeHandle) Events() <-chan StreamEvent { return h.events }
func (h *fakeHandle) Err() error                 { return h.err }
func (h *fakeHandle) Close() error {
	h.closeOnce.Do(func() { close(h.events) })
	return nil
}

type fakeDialer struct {
	openFn func(ctx context.Context, scopeID string) (StreamHandleInterface, error)
	mu     sync.Mutex
	calls  int
}

func (d *fakeDialer) Open(ctx context.Context, scopeID string) (StreamHandleInterface, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	return d.openFn(ctx, scopeID)
}

func (d *fakeDialer) openCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// blockingDialer parks every dial attempt until the engine stops.
func blockUntilDone(ctx context.Context, _ string) (StreamHandleInterface, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func newTestEngine(conf *structures.Config, svc services.FeedServiceInterface, dialer StreamDialerInterface, metrics *testutil.MockMetrics) *SyncEngine {
	logger := &testutil.MockLogger{}
	fm := NewFileManager(conf, &testutil.MockCompressor{}, svc, logger)
	return NewSyncEngine(conf, logger, svc, dialer, fm, metrics).(*SyncEngine)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition was not met in time")
}

func TestSyncEngine_AppliesStreamEvents(t *testing.T) {
	handle := newFakeHandle()
	handle.events <- StreamEvent{
		Type:    StreamEventInit,
		Records: []*models.MentionRecord{{ID: "m2"}, {ID: "m1"}},
	}
	handle.events <- StreamEvent{
		Type:   StreamEventMention,
		Record: &models.MentionRecord{ID: "m3"},
	}

	dialCount := 0
	dialer := &fakeDialer{openFn: func(ctx context.Context, scopeID string) (StreamHandleInterface, error) {
		assert.Equal(t, "team-42", scopeID)
		dialCount++
		if dialCount == 1 {
			return handle, nil
		}
		return blockUntilDone(ctx, scopeID)
	}}

	svc := &testutil.MockFeedService{}
	metrics := testutil.NewMockMetrics()
	e := newTestEngine(engineConfig(filepath.Join(t.TempDir(), "feed.dat")), svc, dialer, metrics)

	e.Init()
	defer e.Stop()

	waitFor(t, func() bool {
		return svc.InitCallCount() == 1 && svc.MentionCallCount() == 1
	})

	require.Len(t, svc.InitCalls[0], 2)
	assert.Equal(t, "m2", svc.InitCalls[0][0].ID)
	assert.Equal(t, "m3", svc.MentionCalls[0].ID)
}

func TestSyncEngine_ReconnectsAfterDrop(t *testing.T) {
	dialer := &fakeDialer{}
	dialer.openFn = func(ctx context.Context, scopeID string) (StreamHandleInterface, error) {
		if dialer.openCalls() <= 2 {
			h := newFakeHandle()
			h.err = errors.New("connection reset")
			h.Close()
			return h, nil
		}
		return blockUntilDone(ctx, scopeID)
	}

	svc := &testutil.MockFeedService{}
	metrics := testutil.NewMockMetrics()
	e := newTestEngine(engineConfig(filepath.Join(t.TempDir(), "feed.dat")), svc, dialer, metrics)

	e.Init()
	defer e.Stop()

	waitFor(t, func() bool { return dialer.openCalls() >= 3 })
	assert.GreaterOrEqual(t, metrics.Reconnects, 2)
}

func TestSyncEngine_RetriesAfterDialFailure(t *testing.T) {
	dialer := &fakeDialer{}
	dialer.openFn = func(ctx context.Context, scopeID string) (StreamHandleInterface, error) {
		if dialer.openCalls() == 1 {
			return nil, errors.New("no route to host")
		}
		return blockUntilDone(ctx, scopeID)
	}

	svc := &testutil.MockFeedService{}
	e := newTestEngine(engineConfig(filepath.Join(t.TempDir(), "feed.dat")), svc, dialer, testutil.NewMockMetrics())

	e.Init()
	defer e.Stop()

	waitFor(t, func() bool { return dialer.openCalls() >= 2 })
}

func TestSyncEngine_StopUnblocksOpenConnection(t *testing.T) {
	handle := newFakeHandle()
	dialer := &fakeDialer{openFn: func(ctx context.Context, scopeID string) (StreamHandleInterface, error) {
		return handle, nil
	}}

	svc := &testutil.MockFeedService{}
	e := newTestEngine(engineConfig(filepath.Join(t.TempDir(), "feed.dat")), svc, dialer, testutil.NewMockMetrics())

	e.Init()
	waitFor(t, func() bool { return e.State() == StateOpen })

	done := make(chan struct{})
	go func() {
		e.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return while a stream was open")
	}
	assert.Equal(t, StateTornDown, e.State())
}

func TestSyncEngine_StopWithoutInit(t *testing.T) {
	svc := &testutil.MockFeedService{}
	dialer := &fakeDialer{openFn: blockUntilDone}
	e := newTestEngine(engineConfig(filepath.Join(t.TempDir(), "feed.dat")), svc, dialer, testutil.NewMockMetrics())

	// Should not panic before Init.
	e.Stop()
	assert.Equal(t, StateTornDown, e.State())
}

func TestSyncEngine_SnapshotFailureIsNonFatal(t *testing.T) {
	handle := newFakeHandle()
	handle.events <- StreamEvent{
		Type:    StreamEventInit,
		Records: []*models.MentionRecord{{ID: "live"}},
	}

	dialCount := 0
	dialer := &fakeDialer{openFn: func(ctx context.Context, scopeID string) (StreamHandleInterface, error) {
		dialCount++
		if dialCount == 1 {
			return handle, nil
		}
		return blockUntilDone(ctx, scopeID)
	}}

	svc := &testutil.MockFeedService{
		InitializeFn: func(_ context.Context) error {
			return errors.New("backend unavailable")
		},
	}
	e := newTestEngine(engineConfig(filepath.Join(t.TempDir(), "feed.dat")), svc, dialer, testutil.NewMockMetrics())

	e.Init()
	defer e.Stop()

	// The stream still establishes the feed.
	waitFor(t, func() bool { return svc.InitCallCount() == 1 })
}

func TestSyncEngine_PersistAndRestore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.dat")
	conf := engineConfig(path)

	svc := &testutil.MockFeedService{
		Feed: []*models.MentionRecord{{ID: "m1"}, {ID: "m2"}},
	}
	dialer := &fakeDialer{openFn: blockUntilDone}
	e := newTestEngine(conf, svc, dialer, testutil.NewMockMetrics())

	require.NoError(t, e.Persist())
	_, err := os.Stat(path)
	assert.NoError(t, err)

	svc2 := &testutil.MockFeedService{}
	e2 := newTestEngine(conf, svc2, dialer, testutil.NewMockMetrics())
	require.NoError(t, e2.Restore())

	require.Len(t, svc2.RestoreCalls, 1)
	assert.Len(t, svc2.RestoreCalls[0], 2)
}

func TestSyncEngine_RestoreMissingFile(t *testing.T) {
	conf := engineConfig(filepath.Join(t.TempDir(), "missing.dat"))
	svc := &testutil.MockFeedService{}
	e := newTestEngine(conf, svc, &fakeDialer{openFn: blockUntilDone}, testutil.NewMockMetrics())

	assert.NoError(t, e.Restore())
	assert.Empty(t, svc.RestoreCalls)
}

func TestSyncEngine_StateStartsIdle(t *testing.T) {
	svc := &testutil.MockFeedService{}
	e := newTestEngine(engineConfig("/tmp/feed.dat"), svc, &fakeDialer{openFn: blockUntilDone}, testutil.NewMockMetrics())
	assert.Equal(t, StateIdle, e.State())
}
