package feed

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"reelpay-ledger/internal/domain"
	"reelpay-ledger/internal/observability"
)

// HubConfig configures the broadcast hub.
type HubConfig struct {
	// SendBuffer is the per-subscriber outbound queue length. Slow
	// subscribers drop messages instead of blocking the ledger.
	SendBuffer int
	// WriteTimeout is the deadline for a single websocket write.
	WriteTimeout time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
}

// DefaultHubConfig returns default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		SendBuffer:   64,
		WriteTimeout: 10 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

// EventMessage is the JSON wire shape pushed to subscribers. Raw carries
// the comma-separated reconciliation line alongside the structured fields.
type EventMessage struct {
	Type      uint32 `json:"type"`
	RefID     string `json:"refId"`
	Amount    uint64 `json:"amount"`
	Actor     string `json:"actor"`
	Mint      string `json:"mint"`
	EmittedAt int64  `json:"emittedAt"`
	Raw       string `json:"raw"`
}

// Hub broadcasts committed ledger events to websocket subscribers. It
// implements ledger.EventSink; Publish never blocks on a slow consumer.
type Hub struct {
	config  HubConfig
	logger  *log.Logger
	metrics *observability.Metrics

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates a Hub. logger and metrics may be nil.
func NewHub(config HubConfig, logger *log.Logger, metrics *observability.Metrics) *Hub {
	if config.SendBuffer <= 0 {
		config.SendBuffer = DefaultHubConfig().SendBuffer
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultHubConfig().WriteTimeout
	}
	if config.PingInterval <= 0 {
		config.PingInterval = DefaultHubConfig().PingInterval
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		config:  config,
		logger:  logger,
		metrics: metrics,
		clients: make(map[*client]struct{}),
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeHTTP upgrades the request and registers the connection as a
// subscriber until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("Error upgrading feed connection: %v", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, h.config.SendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.FeedSubscribers.Set(float64(count))
	}

	go h.writeLoop(c)
	h.readLoop(c)

	h.mu.Lock()
	delete(h.clients, c)
	count = len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.FeedSubscribers.Set(float64(count))
	}

	close(c.done)
	conn.Close()
}

// Publish fans the event out to every subscriber. A full subscriber
// queue drops the message for that subscriber only.
func (h *Hub) Publish(_ context.Context, e *domain.LedgerEvent) error {
	msg := EventMessage{
		Type:      uint32(e.Type),
		RefID:     e.RefID,
		Amount:    e.Amount,
		Actor:     e.Actor,
		Mint:      e.Mint,
		EmittedAt: e.EmittedAt,
		Raw:       e.String(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			if h.metrics != nil {
				h.metrics.FeedMessagesDropped.Inc()
			}
		}
	}
	return nil
}

// Close disconnects all subscribers. The hub accepts no new connections
// afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.conn.Close()
	}
}

// SubscriberCount returns the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

// readLoop drains inbound frames so pings and close frames are handled.
// Subscribers are read-only; any payload is discarded.
func (h *Hub) readLoop(c *client) {
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(h.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.conn.Close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.conn.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}
