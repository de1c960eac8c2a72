package feed

import (
	"context"
	"sync"
	"time"

	"github.com/roylee0704/gron"
	"go.uber.org/atomic"

	"mentiond/internal/feed/interfaces"
	"mentiond/internal/providers"
	"mentiond/internal/services"
	"mentiond/internal/structures"
)

const (
	StateIdle         = "idle"
	StateConnecting   = "connecting"
	StateOpen         = "open"
	StateReconnecting = "reconnecting"
	StateTornDown     = "torn_down"
)

// SyncEngine owns the push connection's lifecycle and the warm-start
// persistence schedule. Reconnection is fixed-interval and runs until
// Stop; every successful (re)connect is expected to deliver a fresh init
// event that re-establishes the authoritative feed.
type SyncEngine struct {
	config      *structures.Config
	logger      providers.Logger
	metrics     providers.MetricsProviderInterface
	service     services.FeedServiceInterface
	dialer      StreamDialerInterface
	fileManager *FileManager
	cron        *gron.Cron
	opsMu       sync.Mutex

	state  atomic.String
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSyncEngine(config *structures.Config, logger providers.Logger, service services.FeedServiceInterface, dialer StreamDialerInterface, fileManager *FileManager, metrics providers.MetricsProviderInterface) interfaces.EngineInterface {
	e := &SyncEngine{
		config:      config,
		logger:      logger,
		metrics:     metrics,
		service:     service,
		dialer:      dialer,
		fileManager: fileManager,
	}
	e.state.Store(StateIdle)
	return e
}

func (e *SyncEngine) Init() {
	e.cron = gron.New()
	e.cron.AddFunc(gron.Every(e.config.Persistence.SaveInterval), func() {
		e.opsMu.Lock()
		defer e.opsMu.Unlock()

		start := time.Now()
		err := e.fileManager.SaveToFile(e.config.Persistence.FilePath)
		if err != nil {
			e.logger.Errorf(providers.TypeApp, "Error while persisting feed: %s", err)
			return
		}
		e.metrics.ObservePersistenceDuration(time.Since(start))
		e.logger.Infof(providers.TypeApp, "Persisted feed to file %s", e.config.Persistence.FilePath)
	})
	e.cron.Start()

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})

	go e.fetchSnapshot(ctx)
	go e.runStream(ctx)
}

// fetchSnapshot loads the REST baseline. A failure is non-fatal: the
// stream init will establish the feed on its own.
func (e *SyncEngine) fetchSnapshot(ctx context.Context) {
	start := time.Now()
	err := e.service.Initialize(ctx)
	if err != nil {
		if ctx.Err() == nil {
			e.logger.Warnf(providers.TypeApp, "Snapshot fetch failed: %s", err)
		}
		return
	}
	e.metrics.ObserveSnapshotDuration(time.Since(start))
	e.logger.Infof(providers.TypeApp, "Snapshot loaded: %d records", e.service.FeedLen())
}

func (e *SyncEngine) runStream(ctx context.Context) {
	defer close(e.done)

	for {
		if ctx.Err() != nil {
			return
		}
		e.state.Store(StateConnecting)

		handle, err := e.dialer.Open(ctx, e.config.Backend.ScopeID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			e.logger.Warnf(providers.TypeStream, "Stream connect failed: %s", err)
			if !e.waitReconnect(ctx) {
				return
			}
			continue
		}

		e.state.Store(StateOpen)
		e.logger.Infof(providers.TypeStream, "Stream connected")

		// Unblock the event loop when the engine stops mid-connection.
		watchDone := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				handle.Close()
			case <-watchDone:
			}
		}()

		for event := range handle.Events() {
			switch event.Type {
			case StreamEventInit:
				e.metrics.IncStreamEvents(StreamEventInit)
				e.service.ApplyInit(event.Records)
				e.logger.Infof(providers.TypeStream, "Stream init applied: %d records", len(event.Records))
			case StreamEventMention:
				e.metrics.IncStreamEvents(StreamEventMention)
				e.service.ApplyMention(event.Record)
			}
		}
		close(watchDone)
		handle.Close()

		if ctx.Err() != nil {
			return
		}
		if reason := handle.Err(); reason != nil {
			e.logger.Warnf(providers.TypeStream, "Stream closed: %s", reason)
		}
		if !e.waitReconnect(ctx) {
			return
		}
	}
}

// waitReconnect sleeps the fixed reconnect delay. Returns false when the
// engine was stopped while waiting.
func (e *SyncEngine) waitReconnect(ctx context.Context) bool {
	e.state.Store(StateReconnecting)
	e.metrics.IncReconnects()

	timer := time.NewTimer(e.config.Stream.ReconnectDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (e *SyncEngine) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
	if e.cron != nil {
		e.cron.Stop()
	}
	e.state.Store(StateTornDown)
}

func (e *SyncEngine) Restore() error {
	return e.fileManager.LoadFromFile(e.config.Persistence.FilePath)
}

func (e *SyncEngine) Persist() error {
	e.opsMu.Lock()
	defer e.opsMu.Unlock()

	e.logger.Infof(providers.TypeApp, "Persisting feed to file...")
	err := e.fileManager.SaveToFile(e.config.Persistence.FilePath)
	if err != nil {
		e.logger.Errorf(providers.TypeApp, "Error while persisting feed: %s", err)
		return err
	}
	return nil
}

func (e *SyncEngine) State() string {
	return e.state.Load()
}
