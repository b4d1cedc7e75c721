// hub.go — реестр websocket-подключений и групп рассылки.
//
// Группы: category:{key} — страница раздела, post:{id} — страница темы.
// Доставка не блокирует публикующего: событие кладётся в буфер подключения,
// при переполненном буфере событие для этого подключения отбрасывается.
package realtime

import (
	"log/slog"
	"strconv"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/forum-module/internal/domain/model"
)

// Виды групп.
const (
	KindCategory = "category"
	KindPost     = "post"
)

// Ограничения ключей групп.
const (
	maxCategoryKeyLen = 100
	maxPostKeyLen     = 50
)

var (
	wsConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "forum_ws_connections",
		Help: "Открытые websocket-подключения",
	})

	wsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_ws_events_delivered_total",
		Help: "События, поставленные в очередь подключения",
	}, []string{"event"})

	wsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_ws_events_dropped_total",
		Help: "События, отброшенные из-за переполненной очереди подключения",
	}, []string{"event"})
)

// Conn — подключение клиента с очередью исходящих кадров.
type Conn struct {
	id   string
	send chan []byte
}

// NewConn создаёт подключение с очередью на buffer кадров.
func NewConn(buffer int) *Conn {
	if buffer < 1 {
		buffer = 1
	}
	return &Conn{id: uuid.NewString(), send: make(chan []byte, buffer)}
}

// ID — идентификатор подключения (для логов).
func (c *Conn) ID() string { return c.id }

// Messages — очередь исходящих кадров.
func (c *Conn) Messages() <-chan []byte { return c.send }

// enqueue кладёт кадр в очередь без ожидания.
func (c *Conn) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// CategoryGroup — имя группы раздела.
func CategoryGroup(key string) string { return KindCategory + ":" + key }

// PostGroup — имя группы темы.
func PostGroup(postID int64) string { return KindPost + ":" + strconv.FormatInt(postID, 10) }

// Hub — реестр групп. Безопасен для конкурентного использования.
type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[*Conn]struct{}
	member map[*Conn]map[string]struct{}
	logger *slog.Logger
}

// NewHub создаёт пустой реестр.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		groups: make(map[string]map[*Conn]struct{}),
		member: make(map[*Conn]map[string]struct{}),
		logger: logger.With(slog.String("component", "realtime")),
	}
}

// Register регистрирует подключение без групп.
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.member[c]; ok {
		return
	}
	h.member[c] = make(map[string]struct{})
	wsConnections.Inc()
}

// Join добавляет подключение в группу. Некорректный запрос
// игнорируется: возвращается false, клиенту ошибка не отправляется.
func (h *Hub) Join(c *Conn, kind, key string) bool {
	group, ok := groupName(kind, key)
	if !ok {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	groups, ok := h.member[c]
	if !ok {
		groups = make(map[string]struct{})
		h.member[c] = groups
		wsConnections.Inc()
	}
	conns, ok := h.groups[group]
	if !ok {
		conns = make(map[*Conn]struct{})
		h.groups[group] = conns
	}
	conns[c] = struct{}{}
	groups[group] = struct{}{}
	return true
}

// Remove удаляет подключение из всех групп.
func (h *Hub) Remove(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	groups, ok := h.member[c]
	if !ok {
		return
	}
	for g := range groups {
		conns := h.groups[g]
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.groups, g)
		}
	}
	delete(h.member, c)
	wsConnections.Dec()
}

// GroupSize — количество подключений в группе.
func (h *Hub) GroupSize(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// PublishNewPost рассылает post:new в группу раздела.
func (h *Hub) PublishNewPost(categoryKey string, ev model.NewPostEvent) {
	h.broadcast(EventPostNew, ev, CategoryGroup(categoryKey))
}

// PublishNewReply рассылает reply:new в группу темы.
func (h *Hub) PublishNewReply(postID int64, ev model.NewReplyEvent) {
	h.broadcast(EventReplyNew, ev, PostGroup(postID))
}

// PublishClosed рассылает post:closed в группу темы и раздела.
func (h *Hub) PublishClosed(postID int64, categoryKey string) {
	h.broadcast(EventPostClosed, postStatePayload{PostID: postID}, stateGroups(postID, categoryKey)...)
}

// PublishReopened рассылает post:reopened в группу темы и раздела.
func (h *Hub) PublishReopened(postID int64, categoryKey string) {
	h.broadcast(EventPostReopened, postStatePayload{PostID: postID}, stateGroups(postID, categoryKey)...)
}

func stateGroups(postID int64, categoryKey string) []string {
	groups := []string{PostGroup(postID)}
	if categoryKey != "" {
		groups = append(groups, CategoryGroup(categoryKey))
	}
	return groups
}

// broadcast сериализует событие один раз и ставит его в очереди
// подключений. Подключение в нескольких группах получает одну копию.
func (h *Hub) broadcast(event string, data any, groups ...string) {
	frame, err := encode(event, data)
	if err != nil {
		h.logger.Error("Ошибка сериализации события",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[*Conn]struct{})
	var delivered, dropped int
	for _, g := range groups {
		for c := range h.groups[g] {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			if c.enqueue(frame) {
				delivered++
			} else {
				dropped++
			}
		}
	}

	wsDelivered.WithLabelValues(event).Add(float64(delivered))
	if dropped > 0 {
		wsDropped.WithLabelValues(event).Add(float64(dropped))
		h.logger.Debug("События отброшены: очередь подключения заполнена",
			slog.String("event", event),
			slog.Int("dropped", dropped),
		)
	}
}

// groupName проверяет запрос на вступление и возвращает имя группы.
func groupName(kind, key string) (string, bool) {
	switch kind {
	case KindCategory:
		if key == "" || utf8.RuneCountInString(key) >= maxCategoryKeyLen {
			return "", false
		}
		return CategoryGroup(key), true
	case KindPost:
		if key == "" || len(key) >= maxPostKeyLen || !isDigits(key) {
			return "", false
		}
		// "042" и "42" — одна тема
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return "", false
		}
		return PostGroup(id), true
	default:
		return "", false
	}
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
