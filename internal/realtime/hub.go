// Package realtime pushes workflow events to connected frontends over
// WebSocket so their caches drop stale entries without polling. Clients
// subscribe to topics; services publish fire-and-forget events.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/middleware"
	"github.com/ricardoFranciscoSP/infra-estacaoterapia-sub014/internal/models"
)

// Event is the wire format delivered to subscribed clients.
type Event struct {
	Event     string      `json:"event"`
	Topic     string      `json:"topic"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ClientMessage is the inbound subscription control frame.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

// Metrics receives connection and delivery counters. Implemented by the
// Prometheus metrics service.
type Metrics interface {
	SetWebsocketClients(count int)
	CountWebsocketEvent(event string)
}

// Conn abstracts the WebSocket connection for tests.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one connected frontend with its topic subscriptions. Allowed
// holds the topics the authenticated user may join; subscription requests
// outside that set are dropped silently.
type Client struct {
	ID      string
	Topics  []string
	Allowed map[string]struct{}
	Send    chan []byte
	conn    Conn
}

// Hub tracks clients per topic and fans events out to them. All operations
// are safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	all     map[*Client]struct{}
	metrics Metrics
	logger  *zap.Logger
	bufSize int
}

// NewHub builds a hub. metrics may be nil.
func NewHub(metrics Metrics, bufSize int, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bufSize <= 0 {
		bufSize = 256
	}
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		metrics: metrics,
		logger:  logger,
		bufSize: bufSize,
	}
}

// Register adds the client and its initial topic subscriptions.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.all[client] = struct{}{}
	for _, topic := range client.Topics {
		if h.clients[topic] == nil {
			h.clients[topic] = make(map[*Client]struct{})
		}
		h.clients[topic][client] = struct{}{}
	}
	count := len(h.all)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.SetWebsocketClients(count)
	}
}

// Unregister drops the client from every topic and closes its send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.all[client]; !ok {
		h.mu.Unlock()
		return
	}
	for _, topic := range client.Topics {
		if subscribers, ok := h.clients[topic]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.clients, topic)
			}
		}
	}
	delete(h.all, client)
	close(client.Send)
	count := len(h.all)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.SetWebsocketClients(count)
	}
}

// Subscribe adds topics the client is allowed to join.
func (h *Hub) Subscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, topic := range topics {
		if !client.mayJoin(topic) {
			continue
		}
		if h.clients[topic] == nil {
			h.clients[topic] = make(map[*Client]struct{})
		}
		h.clients[topic][client] = struct{}{}
		client.Topics = append(client.Topics, topic)
	}
}

// Unsubscribe removes topics from the client.
func (h *Hub) Unsubscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	removeSet := make(map[string]struct{}, len(topics))
	for _, topic := range topics {
		removeSet[topic] = struct{}{}
		if subscribers, ok := h.clients[topic]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.clients, topic)
			}
		}
	}

	remaining := make([]string, 0, len(client.Topics))
	for _, topic := range client.Topics {
		if _, rm := removeSet[topic]; !rm {
			remaining = append(remaining, topic)
		}
	}
	client.Topics = remaining
}

// ProcessMessage routes an inbound control frame.
func (h *Hub) ProcessMessage(client *Client, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		h.Subscribe(client, msg.Topics)
	case "unsubscribe":
		h.Unsubscribe(client, msg.Topics)
	}
}

// Publish fans the event out to every subscriber of the topic. Slow
// clients are skipped rather than blocking the caller.
func (h *Hub) Publish(topic, event string, payload interface{}) {
	data, err := json.Marshal(Event{
		Event:     event,
		Topic:     topic,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		h.logger.Warn("failed to marshal realtime event", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	subscribers, ok := h.clients[topic]
	if !ok {
		return
	}
	for client := range subscribers {
		select {
		case client.Send <- data:
			if h.metrics != nil {
				h.metrics.CountWebsocketEvent(event)
			}
		default:
			h.logger.Warn("dropping realtime event for slow client", zap.String("client_id", client.ID), zap.String("event", event))
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// TopicCount returns the number of clients subscribed to a topic.
func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

func (c *Client) mayJoin(topic string) bool {
	if c.Allowed == nil {
		return false
	}
	_, ok := c.Allowed[topic]
	return ok
}

// AllowedTopics maps the authenticated user to the topics they may join.
// Everyone gets their own user channel; admins also get the shared
// back-office channel.
func AllowedTopics(claims *models.JWTClaims) map[string]struct{} {
	allowed := make(map[string]struct{}, 2)
	if claims == nil {
		return allowed
	}
	allowed["user:"+claims.UserID] = struct{}{}
	if claims.Role == models.RoleAdmin {
		allowed["admin"] = struct{}{}
	}
	return allowed
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades authenticated HTTP requests to WebSocket connections.
type Handler struct {
	hub    *Hub
	logger *zap.Logger
}

// NewHandler builds the upgrade handler.
func NewHandler(hub *Hub, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{hub: hub, logger: logger}
}

// Connect upgrades the request and starts the read and write pumps. The
// client is auto-subscribed to its own user topic.
func (h *Handler) Connect(c *gin.Context) {
	claimsValue, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	claims, ok := claimsValue.(*models.JWTClaims)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	allowed := AllowedTopics(claims)
	client := &Client{
		ID:      uuid.NewString(),
		Topics:  []string{"user:" + claims.UserID},
		Allowed: allowed,
		Send:    make(chan []byte, h.hub.bufSize),
		conn:    ws,
	}
	h.hub.Register(client)

	go h.writePump(client)
	go h.readPump(client)
}

func (h *Handler) readPump(client *Client) {
	defer func() {
		h.hub.Unregister(client)
		client.conn.Close()
	}()

	for {
		_, message, err := client.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		h.hub.ProcessMessage(client, msg)
	}
}

func (h *Handler) writePump(client *Client) {
	defer client.conn.Close()

	for message := range client.Send {
		if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}
