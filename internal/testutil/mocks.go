package testutil

import (
	"context"
	"sync"
	"time"

	"mentiond/internal/models"
	"mentiond/internal/providers"
	"mentiond/internal/services"
)

// MockLogger implements providers.Logger and records calls.
type MockLogger struct {
	mu   sync.Mutex
	Logs []LogEntry
}

type LogEntry struct {
	Level  string
	Type   providers.TypeEnum
	Format string
	Args   []interface{}
}

func (m *MockLogger) record(level string, t providers.TypeEnum, format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logs = append(m.Logs, LogEntry{Level: level, Type: t, Format: format, Args: args})
}

func (m *MockLogger) Errorf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("error", t, format, args...)
}
func (m *MockLogger) Warnf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("warn", t, format, args...)
}
func (m *MockLogger) Debugf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("debug", t, format, args...)
}
func (m *MockLogger) Infof(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("info", t, format, args...)
}
func (m *MockLogger) Fatalf(t providers.TypeEnum, format string, args ...interface{}) {
	m.record("fatal", t, format, args...)
}
func (m *MockLogger) Close() {}

// Entries returns a copy of the recorded log entries.
func (m *MockLogger) Entries() []LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LogEntry, len(m.Logs))
	copy(out, m.Logs)
	return out
}

// MockBackendClient implements services.BackendClientInterface with
// injectable behavior.
type MockBackendClient struct {
	mu           sync.Mutex
	FetchFn      func(ctx context.Context, scopeID string, limit int) ([]*models.MentionRecord, error)
	SetLeadFn    func(ctx context.Context, id string, desired bool) (*models.MentionRecord, error)
	FetchCalls   int
	SetLeadCalls []SetLeadCall
}

type SetLeadCall struct {
	ID      string
	Desired bool
}

func (m *MockBackendClient) FetchSnapshot(ctx context.Context, scopeID string, limit int) ([]*models.MentionRecord, error) {
	m.mu.Lock()
	m.FetchCalls++
	m.mu.Unlock()
	if m.FetchFn != nil {
		return m.FetchFn(ctx, scopeID, limit)
	}
	return nil, nil
}

func (m *MockBackendClient) SetLead(ctx context.Context, id string, desired bool) (*models.MentionRecord, error) {
	m.mu.Lock()
	m.SetLeadCalls = append(m.SetLeadCalls, SetLeadCall{ID: id, Desired: desired})
	m.mu.Unlock()
	if m.SetLeadFn != nil {
		return m.SetLeadFn(ctx, id, desired)
	}
	return &models.MentionRecord{ID: id, IsLead: desired}, nil
}

// MockFeedService implements services.FeedServiceInterface.
type MockFeedService struct {
	mu            sync.Mutex
	Feed          []*models.MentionRecord
	Mentions      map[string]*models.MentionRecord
	InitCalls     [][]*models.MentionRecord
	MentionCalls  []*models.MentionRecord
	RestoreCalls  [][]*models.MentionRecord
	ToggleFn      func(ctx context.Context, id string, desired bool) (*models.MentionRecord, error)
	InitializeFn  func(ctx context.Context) error
	GetFeedFn     func() []*models.MentionRecord
	Listeners     []services.FeedListenerFunc
	IsInitialized bool
	Pending       int
	TornDown      bool
}

func (m *MockFeedService) Initialize(ctx context.Context) error {
	if m.InitializeFn != nil {
		return m.InitializeFn(ctx)
	}
	return nil
}

func (m *MockFeedService) ApplyInit(records []*models.MentionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InitCalls = append(m.InitCalls, records)
	m.Feed = records
	m.IsInitialized = true
}

func (m *MockFeedService) ApplyMention(rec *models.MentionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MentionCalls = append(m.MentionCalls, rec)
}

func (m *MockFeedService) ToggleLead(ctx context.Context, id string, desired bool) (*models.MentionRecord, error) {
	if m.ToggleFn != nil {
		return m.ToggleFn(ctx, id, desired)
	}
	return &models.MentionRecord{ID: id, IsLead: desired}, nil
}

func (m *MockFeedService) RestoreFeed(records []*models.MentionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RestoreCalls = append(m.RestoreCalls, records)
	m.Feed = records
}

func (m *MockFeedService) GetFeed() []*models.MentionRecord {
	m.mu.Lock()
	fn := m.GetFeedFn
	feed := m.Feed
	m.mu.Unlock()
	if fn != nil {
		return fn()
	}
	return feed
}

func (m *MockFeedService) GetMention(id string) (*models.MentionRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Mentions != nil {
		rec, ok := m.Mentions[id]
		return rec, ok
	}
	return nil, false
}

func (m *MockFeedService) FeedLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Feed)
}

func (m *MockFeedService) PendingLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Pending
}

func (m *MockFeedService) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.IsInitialized
}

func (m *MockFeedService) Subscribe(fn services.FeedListenerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Listeners = append(m.Listeners, fn)
}

// InitCallCount reports how many times ApplyInit was invoked.
func (m *MockFeedService) InitCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.InitCalls)
}

// MentionCallCount reports how many times ApplyMention was invoked.
func (m *MockFeedService) MentionCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.MentionCalls)
}

// Emit invokes every subscribed listener with the given event.
func (m *MockFeedService) Emit(event services.FeedEvent) {
	m.mu.Lock()
	listeners := make([]services.FeedListenerFunc, len(m.Listeners))
	copy(listeners, m.Listeners)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn(event)
	}
}

func (m *MockFeedService) Teardown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TornDown = true
}

func (m *MockFeedService) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.TornDown
}

// MockCache implements providers.CacheProviderInterface.
type MockCache struct {
	mu   sync.Mutex
	Data map[string][]byte
}

func NewMockCache() *MockCache {
	return &MockCache{Data: make(map[string][]byte)}
}

func (m *MockCache) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.Data[key]
	return val, ok
}

func (m *MockCache) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Data[key] = value
}

func (m *MockCache) Del(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Data, key)
}

// MockCompressor implements interfaces.CompressorInterface with injectable behavior.
type MockCompressor struct {
	CompressFn   func([]byte) ([]byte, error)
	DecompressFn func([]byte) ([]byte, error)
}

func (m *MockCompressor) Compress(val []byte) ([]byte, error) {
	if m.CompressFn != nil {
		return m.CompressFn(val)
	}
	// Default: return as-is (identity)
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Decompress(val []byte) ([]byte, error) {
	if m.DecompressFn != nil {
		return m.DecompressFn(val)
	}
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

func (m *MockCompressor) Close() {}

// MockMetrics implements providers.MetricsProviderInterface and counts calls.
type MockMetrics struct {
	mu            sync.Mutex
	Requests      map[string]int
	CacheHits     int
	CacheMisses   int
	StreamEvents  map[string]int
	DroppedFrames int
	Reconnects    int
}

func NewMockMetrics() *MockMetrics {
	return &MockMetrics{
		Requests:     make(map[string]int),
		StreamEvents: make(map[string]int),
	}
}

func (m *MockMetrics) IncRequestsTotal(endpoint string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests[endpoint]++
}

func (m *MockMetrics) ObserveRequestDuration(endpoint string, duration time.Duration) {}

func (m *MockMetrics) IncCacheHits() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheHits++
}

func (m *MockMetrics) IncCacheMisses() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheMisses++
}

func (m *MockMetrics) IncStreamEvents(eventType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StreamEvents[eventType]++
}

func (m *MockMetrics) IncDroppedFrames() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DroppedFrames++
}

func (m *MockMetrics) IncReconnects() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reconnects++
}

func (m *MockMetrics) ObserveSnapshotDuration(duration time.Duration)    {}
func (m *MockMetrics) ObservePersistenceDuration(duration time.Duration) {}
