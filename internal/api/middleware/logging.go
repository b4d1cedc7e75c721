// logging.go — access-лог Forum Module через slog.
// Статус и размер ответа снимаются обёрткой ResponseWriter, пользователь
// запроса — из accessInfo, который заполняет Identity.
package middleware

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
)

type accessInfoKey struct{}

// accessInfo — данные запроса, известные только внутренним middleware.
type accessInfo struct {
	userID string
}

// noteUser сообщает access-логу, кто выполнил запрос.
func noteUser(ctx context.Context, userID string) {
	if info, ok := ctx.Value(accessInfoKey{}).(*accessInfo); ok {
		info.userID = userID
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
	upgraded   bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Hijack нужен websocket upgrade на /ws.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	conn, buf, err := http.NewResponseController(rw.ResponseWriter).Hijack()
	if err == nil {
		rw.statusCode = http.StatusSwitchingProtocols
		rw.upgraded = true
	}
	return conn, buf, err
}

// RequestLogger возвращает middleware access-лога.
// Каждому запросу назначается request_id (заголовок X-Request-Id).
// Уровень: ERROR для 5xx, WARN для 4xx, DEBUG для probe и /metrics, иначе INFO.
// Для websocket запись пишется при отключении, duration — время жизни соединения.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		logged := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			info := &accessInfo{}
			wrapped := newResponseWriter(w)

			next.ServeHTTP(wrapped, r.WithContext(context.WithValue(r.Context(), accessInfoKey{}, info)))

			attrs := []slog.Attr{
				slog.String("request_id", chimw.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", wrapped.written),
				slog.String("remote_addr", r.RemoteAddr),
			}
			if info.userID != "" {
				attrs = append(attrs, slog.String("user_id", info.userID))
			}

			msg := "HTTP запрос"
			if wrapped.upgraded {
				msg = "Websocket-соединение закрыто"
			}
			logger.LogAttrs(r.Context(), accessLevel(r.URL.Path, wrapped.statusCode), msg, attrs...)
		})
		return chimw.RequestID(logged)
	}
}

func accessLevel(path string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case strings.HasPrefix(path, "/health/") || path == "/metrics":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
