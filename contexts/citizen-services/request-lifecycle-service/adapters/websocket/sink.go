package websocket

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"pqrsd/contexts/citizen-services/request-lifecycle-service/application/notifications"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Message is the JSON frame sent to browsers for every lifecycle notification.
type Message struct {
	Type       string `json:"type"`
	RequestID  string `json:"request_id"`
	Radicado   string `json:"radicado"`
	EventType  string `json:"event_type"`
	State      string `json:"state"`
	Sequence   int64  `json:"sequence"`
	OccurredAt string `json:"occurred_at"`
	ActorID    string `json:"actor_id"`
	ToActorID  string `json:"to_actor_id,omitempty"`
}

// Sink streams dispatcher notifications to websocket clients. Each connection
// holds its own subscription, so a stalled browser only loses its own events.
type Sink struct {
	Dispatcher *notifications.Dispatcher
	Upgrader   websocket.Upgrader
	Logger     *slog.Logger
}

func NewSink(dispatcher *notifications.Dispatcher, allowedOrigins []string, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}
	return &Sink{
		Dispatcher: dispatcher,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(allowed) == 0 {
					return true
				}
				_, ok := allowed[origin]
				if !ok {
					_, ok = allowed["*"]
				}
				return ok
			},
		},
		Logger: logger,
	}
}

func (s *Sink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Warn("websocket upgrade failed",
			"event", "lifecycle_ws_upgrade_failed",
			"module", "citizen-services/request-lifecycle-service",
			"layer", "adapter",
			"error", err.Error(),
		)
		return
	}
	defer conn.Close()

	events, cancel := s.Dispatcher.Subscribe(r.Context())
	defer cancel()

	closed := make(chan struct{})
	go s.readPump(conn, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	s.Logger.Debug("websocket subscriber connected",
		"event", "lifecycle_ws_connected",
		"module", "citizen-services/request-lifecycle-service",
		"layer", "adapter",
		"remote_addr", r.RemoteAddr,
	)
	for {
		select {
		case <-closed:
			return
		case notification, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(toMessage(notification)); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains client frames so control messages are processed.
func (s *Sink) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func toMessage(notification notifications.LifecycleNotification) Message {
	msg := Message{
		Type:       "request_" + string(notification.EventType),
		RequestID:  notification.RequestID,
		Radicado:   notification.Radicado,
		EventType:  string(notification.EventType),
		State:      string(notification.State),
		Sequence:   notification.Sequence,
		OccurredAt: notification.OccurredAt.UTC().Format(time.RFC3339),
		ActorID:    notification.FromActor.ID,
	}
	if notification.ToActor != nil {
		msg.ToActorID = notification.ToActor.ID
	}
	return msg
}
