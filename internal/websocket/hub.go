package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"supplychain/internal/apperror"
	"supplychain/internal/identity"
	"supplychain/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBuffer     = 256
	broadcastQueue = 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message is the frame pushed to subscribers
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type envelope struct {
	orgID   int64
	payload []byte
}

// Client represents a single connected WebSocket client
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	orgID int64
}

// Hub keeps the connected clients grouped by organization. Events only
// reach the clients of the organization they were published for.
type Hub struct {
	clients    map[int64]map[*Client]struct{}
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	log        *zap.Logger
}

// NewHub initializes a new WS Hub instance
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]struct{}),
		broadcast:  make(chan envelope, broadcastQueue),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run starts the dispatch loop and returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, set := range h.clients {
				for client := range set {
					close(client.send)
				}
			}
			h.clients = make(map[int64]map[*Client]struct{})
			return
		case client := <-h.register:
			set, ok := h.clients[client.orgID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.orgID] = set
			}
			set[client] = struct{}{}
			h.log.Debug("websocket client connected", zap.Int64("organization_id", client.orgID))
		case client := <-h.unregister:
			h.drop(client)
		case msg := <-h.broadcast:
			for client := range h.clients[msg.orgID] {
				select {
				case client.send <- msg.payload:
				default:
					h.drop(client)
				}
			}
		}
	}
}

func (h *Hub) drop(client *Client) {
	set, ok := h.clients[client.orgID]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	close(client.send)
	if len(set) == 0 {
		delete(h.clients, client.orgID)
	}
	h.log.Debug("websocket client disconnected", zap.Int64("organization_id", client.orgID))
}

// Publish queues an event for the clients of orgID. It never blocks; when
// the queue is full the event is dropped.
func (h *Hub) Publish(orgID int64, event string, data interface{}) {
	payload, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		h.log.Warn("failed to encode websocket event", zap.String("event", event), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- envelope{orgID: orgID, payload: payload}:
	default:
		h.log.Warn("websocket queue full, event dropped",
			zap.String("event", event),
			zap.Int64("organization_id", orgID))
	}
}

// writePump handles writing messages from the Hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump keeps the connection alive and detects disconnects
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Info("websocket read failed", zap.Error(err))
			}
			return
		}
	}
}

// ServeWs authenticates the token query parameter and subscribes the
// connection to the caller's organization.
func ServeWs(hub *Hub, resolver *identity.Resolver, c *gin.Context) {
	p, err := resolver.ResolveToken(c.Request.Context(), c.Query("token"))
	if err != nil {
		hub.log.Info("websocket connection rejected", zap.Error(err))
		response.Abort(c, err)
		return
	}
	if !p.HasOrganization() {
		response.Abort(c, apperror.Forbidden("websocket.Serve", "account has no organization"))
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := &Client{hub: hub, conn: conn, send: make(chan []byte, sendBuffer), orgID: p.OrgID()}
	select {
	case hub.register <- client:
	case <-hub.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
