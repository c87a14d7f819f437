package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	KindWebsocket = "websocket"

	closeGracePeriod = time.Second
)

// WebsocketSubscriber delivers frames as text messages on a browser
// connection. It owns the connection: a read pump notices when the peer goes
// away and closes it.
type WebsocketSubscriber struct {
	id   string
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

var _ Subscriber = (*WebsocketSubscriber)(nil)

// NewWebsocketSubscriber wraps an upgraded connection and starts its read
// pump.
func NewWebsocketSubscriber(conn *websocket.Conn) *WebsocketSubscriber {
	s := &WebsocketSubscriber{
		id:   uuid.NewString(),
		conn: conn,
		done: make(chan struct{}),
	}
	go s.readPump()
	return s
}

func (s *WebsocketSubscriber) ID() string   { return s.id }
func (s *WebsocketSubscriber) Kind() string { return KindWebsocket }

// Done is closed once the connection is closed by either side.
func (s *WebsocketSubscriber) Done() <-chan struct{} { return s.done }

// Send writes one frame. The write deadline follows ctx.
func (s *WebsocketSubscriber) Send(ctx context.Context, frame []byte) error {
	select {
	case <-s.done:
		return websocket.ErrCloseSent
	default:
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(closeGracePeriod)
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

// Close sends a close frame on a best-effort basis and closes the connection.
func (s *WebsocketSubscriber) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(closeGracePeriod))
		s.writeMu.Unlock()

		err = s.conn.Close()
		close(s.done)
	})
	return err
}

// readPump discards anything the client sends; its only job is to observe
// the disconnect.
func (s *WebsocketSubscriber) readPump() {
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			_ = s.Close()
			return
		}
	}
}
