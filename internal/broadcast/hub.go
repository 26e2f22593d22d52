package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/boardtycoon/tycoon-server-go/internal/apperrors"
	"github.com/boardtycoon/tycoon-server-go/internal/config"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Message types exchanged with websocket clients.
const (
	TypeSubscribe    = "subscribe"
	TypeUnsubscribe  = "unsubscribe"
	TypeSubscribed   = "subscribed"
	TypeUnsubscribed = "unsubscribed"
	TypeCommand      = "command"
	TypeEvent        = "event"
	TypeResult       = "result"
	TypeError        = "error"
)

const maxMessageSize = 64 << 10

// Message is the websocket frame format in both directions.
type Message struct {
	Type      string         `json:"type"`
	Topic     string         `json:"topic,omitempty"`
	Command   string         `json:"command,omitempty"`
	RequestID string         `json:"requestId,omitempty"`
	Payload   any            `json:"payload,omitempty"`
	Error     map[string]any `json:"error,omitempty"`
}

type inbound struct {
	Type      string         `json:"type"`
	Topic     string         `json:"topic"`
	Command   string         `json:"command"`
	RequestID string         `json:"requestId"`
	Payload   map[string]any `json:"payload"`
}

// CommandHandler executes a named game command received over a socket.
type CommandHandler interface {
	HandleCommand(ctx context.Context, command string, args map[string]any) (map[string]any, error)
}

// Client is one websocket connection.
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	topics map[string]struct{} // owned by the hub loop
}

type subscription struct {
	client *Client
	topic  string
	add    bool
}

type envelope struct {
	topic string
	data  []byte
}

type direct struct {
	client *Client
	data   []byte
}

// Hub tracks websocket clients and their topic subscriptions. All client and
// subscription state is owned by the Run goroutine.
type Hub struct {
	cfg      config.WebSocketConfig
	logger   *zap.Logger
	upgrader websocket.Upgrader

	register      chan *Client
	unregister    chan *Client
	subscriptions chan subscription
	publish       chan envelope
	replies       chan direct
	done          chan struct{}

	clients map[*Client]struct{}
	topics  map[string]map[*Client]struct{}
}

var _ Publisher = (*Hub)(nil)

// NewHub creates a hub. Call Run before serving connections.
func NewHub(cfg config.WebSocketConfig, logger *zap.Logger) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}

	h := &Hub{
		cfg:           cfg,
		logger:        logger,
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		subscriptions: make(chan subscription),
		publish:       make(chan envelope, 1024),
		replies:       make(chan direct, 256),
		done:          make(chan struct{}),
		clients:       make(map[*Client]struct{}),
		topics:        make(map[string]map[*Client]struct{}),
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// Run processes registrations and deliveries until ctx is canceled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.remove(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.logger.Debug("websocket client registered", zap.String("client_id", client.id))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.remove(client)
				h.logger.Debug("websocket client unregistered", zap.String("client_id", client.id))
			}

		case sub := <-h.subscriptions:
			h.applySubscription(sub)

		case env := <-h.publish:
			for client := range h.topics[env.topic] {
				h.deliver(client, env.data)
			}

		case reply := <-h.replies:
			if _, ok := h.clients[reply.client]; ok {
				h.deliver(reply.client, reply.data)
			}
		}
	}
}

func (h *Hub) applySubscription(sub subscription) {
	client := sub.client
	if _, ok := h.clients[client]; !ok {
		return
	}

	ack := Message{Type: TypeSubscribed, Topic: sub.topic}
	if sub.add {
		subs, ok := h.topics[sub.topic]
		if !ok {
			subs = make(map[*Client]struct{})
			h.topics[sub.topic] = subs
		}
		subs[client] = struct{}{}
		client.topics[sub.topic] = struct{}{}
	} else {
		h.unsubscribe(client, sub.topic)
		ack.Type = TypeUnsubscribed
	}

	if data, err := json.Marshal(ack); err == nil {
		h.deliver(client, data)
	}
}

func (h *Hub) unsubscribe(client *Client, topic string) {
	delete(client.topics, topic)
	if subs, ok := h.topics[topic]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
}

// deliver queues data without blocking; a client whose buffer is full is
// dropped.
func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		h.logger.Warn("dropping slow websocket client", zap.String("client_id", client.id))
		h.remove(client)
	}
}

func (h *Hub) remove(client *Client) {
	for topic := range client.topics {
		h.unsubscribe(client, topic)
	}
	delete(h.clients, client)
	close(client.send)
}

// Publish fans payload out to every subscriber of topic.
func (h *Hub) Publish(topic string, payload any) {
	data, err := json.Marshal(Message{Type: TypeEvent, Topic: topic, Payload: payload})
	if err != nil {
		h.logger.Error("failed to encode broadcast", zap.String("topic", topic), zap.Error(err))
		return
	}

	select {
	case h.publish <- envelope{topic: topic, data: data}:
	case <-h.done:
	}
}

func (h *Hub) reply(client *Client, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to encode reply", zap.String("client_id", client.id), zap.Error(err))
		return
	}
	select {
	case h.replies <- direct{client: client, data: data}:
	case <-h.done:
	}
}

// Handler returns the websocket endpoint. Command frames are executed by
// commands on the connection's read goroutine.
func (h *Hub) Handler(commands CommandHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			id:     uuid.NewString(),
			conn:   conn,
			send:   make(chan []byte, h.cfg.SendBuffer),
			topics: make(map[string]struct{}),
		}

		select {
		case h.register <- client:
		case <-h.done:
			conn.Close()
			return
		}

		go h.writePump(client)
		h.readPump(r.Context(), client, commands)
	})
}

func (h *Hub) readPump(ctx context.Context, c *Client, commands CommandHandler) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			var netErr net.Error
			switch {
			case errors.As(err, &netErr) && netErr.Timeout():
				h.logger.Debug("websocket client stopped answering pings", zap.String("client_id", c.id))
			case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure):
				h.logger.Debug("websocket read failed", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.reply(c, Message{
				Type:  TypeError,
				Error: apperrors.Payload(apperrors.InvalidArgument("malformed message")),
			})
			continue
		}

		switch msg.Type {
		case TypeSubscribe, TypeUnsubscribe:
			if msg.Topic == "" {
				h.reply(c, Message{
					Type:  TypeError,
					Error: apperrors.Payload(apperrors.InvalidArgument("topic is required")),
				})
				continue
			}
			select {
			case h.subscriptions <- subscription{client: c, topic: msg.Topic, add: msg.Type == TypeSubscribe}:
			case <-h.done:
				return
			}

		case TypeCommand:
			h.runCommand(ctx, c, commands, msg)

		default:
			h.reply(c, Message{
				Type:      TypeError,
				RequestID: msg.RequestID,
				Error:     apperrors.Payload(apperrors.InvalidArgument("unknown message type %q", msg.Type)),
			})
		}
	}
}

func (h *Hub) runCommand(ctx context.Context, c *Client, commands CommandHandler, msg inbound) {
	if commands == nil {
		h.reply(c, Message{
			Type:      TypeError,
			Command:   msg.Command,
			RequestID: msg.RequestID,
			Error:     apperrors.Payload(apperrors.InvalidAction("commands are not accepted on this endpoint")),
		})
		return
	}

	result, err := commands.HandleCommand(ctx, msg.Command, msg.Payload)
	if err != nil {
		h.reply(c, Message{
			Type:      TypeError,
			Command:   msg.Command,
			RequestID: msg.RequestID,
			Error:     apperrors.Payload(err),
		})
		return
	}

	h.reply(c, Message{
		Type:      TypeResult,
		Command:   msg.Command,
		RequestID: msg.RequestID,
		Payload:   result,
	})
}

// writePump drains the client's queue and pings it so that readPump's
// deadline only expires on a dead peer.
func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(h.cfg.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
