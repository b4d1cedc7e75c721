// Пакет realtime — рассылка событий форума подключённым браузерам.
// Файл events.go — формат сообщений websocket.
//
// Каждый кадр — текстовый JSON {"event": "...", "data": ...} в обе стороны.
package realtime

import (
	"encoding/json"
	"strconv"
	"strings"
)

// События клиента.
const (
	EventJoinCategory = "join:category"
	EventJoinPost     = "join:post"
)

// События сервера.
const (
	EventPostNew      = "post:new"
	EventReplyNew     = "reply:new"
	EventPostClosed   = "post:closed"
	EventPostReopened = "post:reopened"
)

// Message — кадр websocket.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// outgoing — кадр сервера до сериализации.
type outgoing struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// postStatePayload — данные post:closed / post:reopened.
type postStatePayload struct {
	PostID int64 `json:"post_id"`
}

func encode(event string, data any) ([]byte, error) {
	return json.Marshal(outgoing{Event: event, Data: data})
}

// joinKey извлекает ключ группы из data: строка или число.
func joinKey(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if i, err := n.Int64(); err == nil {
			return strconv.FormatInt(i, 10), true
		}
	}
	return "", false
}
