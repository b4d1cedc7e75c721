// ws.go — websocket-транспорт: чтение запросов на вступление в группы
// и отправка событий из очереди подключения.
package realtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Handler обслуживает GET /ws.
type Handler struct {
	hub        *Hub
	sendBuffer int
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// NewHandler создаёт websocket handler.
// sendBuffer — размер очереди исходящих событий на подключение (FM_WS_SEND_BUFFER).
func NewHandler(hub *Hub, sendBuffer int, logger *slog.Logger) *Handler {
	return &Handler{
		hub:        hub,
		sendBuffer: sendBuffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger.With(slog.String("component", "realtime.ws")),
	}
}

// ServeHTTP переводит соединение в websocket и обслуживает его до отключения.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		h.logger.Debug("Ошибка websocket upgrade", slog.String("error", err.Error()))
		return
	}

	c := NewConn(h.sendBuffer)
	h.hub.Register(c)
	h.logger.Debug("Websocket подключён",
		slog.String("conn_id", c.ID()),
		slog.String("remote_addr", r.RemoteAddr),
	)

	done := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(ws, c, done)
	}()

	h.readLoop(ws, c)

	h.hub.Remove(c)
	close(done)
	<-writerDone
	_ = ws.Close()
	h.logger.Debug("Websocket отключён", slog.String("conn_id", c.ID()))
}

// readLoop обрабатывает запросы клиента до ошибки чтения.
func (h *Handler) readLoop(ws *websocket.Conn, c *Conn) {
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("Websocket закрыт с ошибкой",
					slog.String("conn_id", c.ID()),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		kind, ok := joinKind(msg.Event)
		if !ok {
			continue
		}
		key, ok := joinKey(msg.Data)
		if !ok {
			continue
		}
		if h.hub.Join(c, kind, key) {
			h.logger.Debug("Подключение вступило в группу",
				slog.String("conn_id", c.ID()),
				slog.String("kind", kind),
				slog.String("key", key),
			)
		}
	}
}

// writeLoop отправляет кадры из очереди и ping до закрытия done.
func (h *Handler) writeLoop(ws *websocket.Conn, c *Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.Messages():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.closeOnWriteError(ws, c, err)
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.closeOnWriteError(ws, c, err)
				return
			}
		case <-done:
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// closeOnWriteError закрывает соединение, чтобы readLoop завершился.
func (h *Handler) closeOnWriteError(ws *websocket.Conn, c *Conn, err error) {
	if !errors.Is(err, websocket.ErrCloseSent) {
		h.logger.Debug("Ошибка записи в websocket",
			slog.String("conn_id", c.ID()),
			slog.String("error", err.Error()),
		)
	}
	_ = ws.Close()
}

func joinKind(event string) (string, bool) {
	switch event {
	case EventJoinCategory:
		return KindCategory, true
	case EventJoinPost:
		return KindPost, true
	default:
		return "", false
	}
}
