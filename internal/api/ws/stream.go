package ws

import (
	"net/http"
	"strings"
	"time"

	"github.com/GriffinCanCode/Shelf/backend/internal/events"
	"github.com/GriffinCanCode/Shelf/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Shelf/backend/internal/infrastructure/monitoring"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMessage = 4096
)

// Message is the envelope for everything sent over the stream
type Message struct {
	Type      string   `json:"type"`
	Topic     string   `json:"topic,omitempty"`
	Payload   any      `json:"payload,omitempty"`
	Topics    []string `json:"topics,omitempty"`
	Message   string   `json:"message,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// Handler relays bus notifications to WebSocket clients
type Handler struct {
	bus      events.Subscriber
	metrics  *monitoring.Metrics
	logger   *logging.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket handler
func NewHandler(bus events.Subscriber, metrics *monitoring.Metrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		bus:     bus,
		metrics: metrics,
		logger:  logger.Named("ws"),
		upgrader: websocket.Upgrader{
			// origin policy is enforced by the CORS middleware
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleConnection upgrades the request and streams events until the
// client goes away. The optional topics query parameter is a comma
// separated list of topics or globs; it defaults to every topic.
func (h *Handler) HandleConnection(c *gin.Context) {
	topics := parseTopics(c.Query("topics"))

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()

	sub := h.bus.Subscribe(topics...)
	defer sub.Unsubscribe()

	replies := make(chan Message, 4)
	done := make(chan struct{})
	go h.read(conn, replies, done)

	if err := h.send(conn, Message{Type: "system", Message: "connected", Topics: topics}); err != nil {
		return
	}
	h.write(conn, sub, replies, done)
}

func (h *Handler) read(conn *websocket.Conn, replies chan<- Message, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(maxMessage)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket read error", zap.Error(err))
			}
			return
		}
		h.metrics.RecordWSMessage("in", "client")

		var msg Message
		reply := Message{Type: "pong"}
		if err := sonic.Unmarshal(data, &msg); err != nil {
			reply = Message{Type: "error", Message: "invalid message"}
		} else if msg.Type != "ping" {
			reply = Message{Type: "error", Message: "unknown message type"}
		}

		select {
		case replies <- reply:
		default:
		}
	}
}

func (h *Handler) write(conn *websocket.Conn, sub *events.Subscription, replies <-chan Message, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-sub.C():
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}
			if err := h.send(conn, Message{Type: "event", Topic: evt.Topic, Payload: evt.Payload}); err != nil {
				return
			}
		case reply := <-replies:
			if err := h.send(conn, reply); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func (h *Handler) send(conn *websocket.Conn, msg Message) error {
	msg.Timestamp = time.Now().Unix()
	data, err := sonic.Marshal(msg)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.logger.Debug("WebSocket write failed", zap.Error(err))
		return err
	}
	h.metrics.RecordWSMessage("out", msg.Type)
	return nil
}

func parseTopics(raw string) []string {
	var topics []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}
