package feed

import (
	"context"
	"fmt"
	"net/url"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"mentiond/internal/models"
	"mentiond/internal/providers"
	"mentiond/internal/structures"
)

const (
	StreamEventInit    = "init"
	StreamEventMention = "mention"

	readDeadline  = 60 * time.Second
	pingInterval  = 30 * time.Second
	writeDeadline = 10 * time.Second
)

// StreamEvent is the decoded tagged union delivered by the push stream.
type StreamEvent struct {
	Type    string
	Records []*models.MentionRecord
	Record  *models.MentionRecord
}

type StreamHandleInterface interface {
	Events() <-chan StreamEvent
	Close() error
	Err() error
}

type StreamDialerInterface interface {
	Open(ctx context.Context, scopeID string) (StreamHandleInterface, error)
}

type StreamClient struct {
	url     string
	token   string
	logger  providers.Logger
	metrics providers.MetricsProviderInterface
}

func NewStreamClient(conf *structures.Config, logger providers.Logger, metrics providers.MetricsProviderInterface) StreamDialerInterface {
	return &StreamClient{
		url:     conf.Stream.URL,
		token:   conf.Backend.Token,
		logger:  logger,
		metrics: metrics,
	}
}

// Open dials the push endpoint. The credential travels as a query
// parameter because the transport cannot carry custom headers at connect
// time; without a token the dial is refused outright rather than opening
// an unauthenticated connection.
func (c *StreamClient) Open(ctx context.Context, scopeID string) (StreamHandleInterface, error) {
	if c.token == "" {
		return nil, fmt.Errorf("stream token is not configured")
	}

	u, err := url.Parse(c.url)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("token", c.token)
	q.Set("scope", scopeID)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}

	handle := &StreamHandle{
		conn:   conn,
		events: make(chan StreamEvent, 64),
		done:   make(chan struct{}),
	}
	go handle.readPump(c.logger, c.metrics)
	go handle.pingLoop()
	return handle, nil
}

type StreamHandle struct {
	conn   *websocket.Conn
	events chan StreamEvent
	done   chan struct{}
	err    error
}

func (h *StreamHandle) Events() <-chan StreamEvent {
	return h.events
}

// Err reports why the stream ended. Valid once Events is closed.
func (h *StreamHandle) Err() error {
	return h.err
}

func (h *StreamHandle) Close() error {
	return h.conn.Close()
}

type streamFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// readPump decodes frames until the connection dies. A malformed frame is
// dropped and counted; it never terminates the stream.
func (h *StreamHandle) readPump(logger providers.Logger, metrics providers.MetricsProviderInterface) {
	defer func() {
		close(h.done)
		close(h.events)
		h.conn.Close()
	}()

	h.conn.SetReadDeadline(time.Now().Add(readDeadline))
	h.conn.SetPongHandler(func(string) error {
		h.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, message, err := h.conn.ReadMessage()
		if err != nil {
			h.err = err
			return
		}
		h.conn.SetReadDeadline(time.Now().Add(readDeadline))

		event, ok := decodeFrame(message)
		if !ok {
			metrics.IncDroppedFrames()
			logger.Debugf(providers.TypeStream, "Dropped malformed stream frame")
			continue
		}
		h.events <- event
	}
}

func (h *StreamHandle) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := h.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func decodeFrame(message []byte) (StreamEvent, bool) {
	var frame streamFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		return StreamEvent{}, false
	}

	switch frame.Type {
	case StreamEventInit:
		var raw []map[string]interface{}
		if err := json.Unmarshal(frame.Data, &raw); err != nil {
			return StreamEvent{}, false
		}
		return StreamEvent{
			Type:    StreamEventInit,
			Records: NormalizeAll(raw),
		}, true
	case StreamEventMention:
		var raw map[string]interface{}
		if err := json.Unmarshal(frame.Data, &raw); err != nil {
			return StreamEvent{}, false
		}
		rec := Normalize(raw)
		if rec == nil {
			return StreamEvent{}, false
		}
		return StreamEvent{
			Type:   StreamEventMention,
			Record: rec,
		}, true
	default:
		return StreamEvent{}, false
	}
}
