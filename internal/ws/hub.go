package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/nischay-chauhan/video-transcode/internal/observability/metrics"
)

// HubConfig configures a progress Hub.
type HubConfig struct {
	Logger  *slog.Logger
	Metrics *metrics.Recorder
	// HeartbeatInterval controls how often the hub sends WebSocket ping
	// frames to connected clients. A zero value disables heartbeats.
	HeartbeatInterval time.Duration
	// SendBuffer is the per-client outbound queue depth. Events beyond the
	// buffer are dropped for that client rather than blocking the sender.
	SendBuffer int
}

// Hub fans job events out to WebSocket clients. Each client watches at
// most one job at a time; a subscribe message switches the watched job.
type Hub struct {
	logger            *slog.Logger
	metrics           *metrics.Recorder
	heartbeatInterval time.Duration
	sendBuffer        int

	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}
	conns map[*client]struct{}
}

// NewHub initialises a hub using the provided configuration.
func NewHub(cfg HubConfig) *Hub {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	buffer := cfg.SendBuffer
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{
		logger:            logger,
		metrics:           cfg.Metrics,
		heartbeatInterval: cfg.HeartbeatInterval,
		sendBuffer:        buffer,
		rooms:             make(map[string]map[*client]struct{}),
		conns:             make(map[*client]struct{}),
	}
}

// HandleConnection upgrades the HTTP request to a WebSocket connection and
// starts the client loops.
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := Accept(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-r.Context().Done()
		cancel()
	}()

	c := &client{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, h.sendBuffer),
		cancel: cancel,
	}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.WSClientConnected()
	}

	go c.writeLoop()
	if h.heartbeatInterval > 0 {
		go c.heartbeatLoop(ctx, h.heartbeatInterval)
	}
	go c.readLoop(ctx)
}

// Broadcast delivers the event to every client subscribed to its job.
// Clients whose outbound queue is full miss the event.
func (h *Hub) Broadcast(event Event) {
	if event.JobID == "" {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	recipients := h.rooms[event.JobID]
	if len(recipients) == 0 {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to marshal job event", "error", err, "job_id", event.JobID)
		return
	}
	for c := range recipients {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("dropping event for slow websocket client", "job_id", event.JobID, "type", event.Type)
		}
	}
}

// Shutdown disconnects every client. New connections arriving afterwards
// are still served; callers stop the HTTP listener first.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.conns))
	for c := range h.conns {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
	return ctx.Err()
}

// Subscribers reports how many clients currently watch the given job.
func (h *Hub) Subscribers(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[jobID])
}

func (h *Hub) subscribe(c *client, jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.jobID == jobID {
		return
	}
	if c.jobID != "" {
		h.detachLocked(c)
	}
	c.jobID = jobID
	room := h.rooms[jobID]
	if room == nil {
		room = make(map[*client]struct{})
		h.rooms[jobID] = room
	}
	room[c] = struct{}{}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detachLocked(c)
	delete(h.conns, c)
}

func (h *Hub) detachLocked(c *client) {
	if c.jobID == "" {
		return
	}
	if room := h.rooms[c.jobID]; room != nil {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, c.jobID)
		}
	}
	c.jobID = ""
}

type client struct {
	hub    *Hub
	conn   *Conn
	send   chan []byte
	cancel context.CancelFunc
	closed sync.Once

	// jobID is guarded by the hub mutex.
	jobID string
}

type inboundMessage struct {
	Type  string `json:"type"`
	JobID string `json:"jobId"`
}

func (c *client) writeLoop() {
	defer c.close()
	for payload := range c.send {
		if err := c.conn.WriteText(payload); err != nil {
			return
		}
	}
}

func (c *client) heartbeatLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.Ping(); err != nil {
				c.close()
				return
			}
		}
	}
}

func (c *client) readLoop(ctx context.Context) {
	defer c.close()
	for {
		payload, err := c.conn.ReadMessage(ctx)
		if err != nil {
			return
		}
		var msg inboundMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.sendError("invalid payload")
			continue
		}
		switch msg.Type {
		case "subscribe":
			if msg.JobID == "" {
				c.sendError("jobId required")
				continue
			}
			c.hub.subscribe(c, msg.JobID)
		default:
			c.sendError("unknown command")
		}
	}
}

func (c *client) sendError(message string) {
	payload, err := json.Marshal(Event{Type: EventTypeError, Data: ErrorData{Message: message}})
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (c *client) close() {
	c.closed.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		c.hub.drop(c)
		close(c.send)
		_ = c.conn.Close()
		if c.hub.metrics != nil {
			c.hub.metrics.WSClientDisconnected()
		}
	})
}
