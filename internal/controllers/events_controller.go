package controllers

import (
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"mentiond/internal/providers"
	"mentiond/internal/services"
)

const (
	clientSendBuffer  = 256
	clientPingPeriod  = 30 * time.Second
	clientWriteWait   = 10 * time.Second
	clientReadTimeout = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The daemon serves a local dashboard only.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// eventEnvelope wraps every changefeed frame sent to dashboard clients.
type eventEnvelope struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// EventsController pushes feed changes to connected dashboard clients
// over a websocket changefeed.
type EventsController struct {
	logger     providers.Logger
	service    services.FeedServiceInterface
	clients    map[*wsClient]struct{}
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
}

func NewEventsController(logger providers.Logger, service services.FeedServiceInterface) *EventsController {
	ec := &EventsController{
		logger:     logger,
		service:    service,
		clients:    make(map[*wsClient]struct{}),
		broadcast:  make(chan []byte, clientSendBuffer),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
	}
	go ec.run()

	service.Subscribe(func(event services.FeedEvent) {
		ec.publish(event)
	})
	return ec
}

func (ec *EventsController) run() {
	for {
		select {
		case client := <-ec.register:
			ec.clients[client] = struct{}{}
			ec.logger.Debugf(providers.TypeApp, "Changefeed client connected (total: %d)", len(ec.clients))

		case client := <-ec.unregister:
			if _, ok := ec.clients[client]; ok {
				delete(ec.clients, client)
				close(client.send)
			}
			ec.logger.Debugf(providers.TypeApp, "Changefeed client disconnected (total: %d)", len(ec.clients))

		case message := <-ec.broadcast:
			for client := range ec.clients {
				select {
				case client.send <- message:
				default:
					// Slow client, drop it.
					close(client.send)
					delete(ec.clients, client)
				}
			}
		}
	}
}

func (ec *EventsController) publish(event services.FeedEvent) {
	envelope := eventEnvelope{
		Type:      event.Type,
		Timestamp: time.Now().Unix(),
	}
	if event.Type == services.FeedEventInit {
		envelope.Data = ec.service.GetFeed()
	} else {
		envelope.Data = event.Record
	}

	message, err := json.Marshal(envelope)
	if err != nil {
		ec.logger.Errorf(providers.TypeApp, "Failed to marshal changefeed event: %s", err)
		return
	}

	select {
	case ec.broadcast <- message:
	default:
		ec.logger.Warnf(providers.TypeApp, "Changefeed broadcast buffer full, dropping event")
	}
}

// Events upgrades the request and replays the current feed as an init
// frame so a fresh client renders immediately.
func (ec *EventsController) Events(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ec.logger.Warnf(providers.TypeGet, "Changefeed upgrade failed: %s", err)
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
	}

	if initial, err := json.Marshal(eventEnvelope{
		Type:      services.FeedEventInit,
		Data:      ec.service.GetFeed(),
		Timestamp: time.Now().Unix(),
	}); err == nil {
		client.send <- initial
	}

	ec.register <- client

	go ec.writePump(client)
	go ec.readPump(client)
}

func (ec *EventsController) writePump(client *wsClient) {
	ticker := time.NewTicker(clientPingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.send:
			client.conn.SetWriteDeadline(time.Now().Add(clientWriteWait))
			if !ok {
				client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			client.conn.SetWriteDeadline(time.Now().Add(clientWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound messages; it exists to notice the close.
func (ec *EventsController) readPump(client *wsClient) {
	defer func() {
		ec.unregister <- client
		client.conn.Close()
	}()

	client.conn.SetReadDeadline(time.Now().Add(clientReadTimeout))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(clientReadTimeout))
		return nil
	})

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
		client.conn.SetReadDeadline(time.Now().Add(clientReadTimeout))
	}
}
