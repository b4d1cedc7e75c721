// identity.go — определение пользователя запроса по cookie-сессии.
//
// Для вошедшего пользователя на каждом запросе:
//  1. синхронизация ролей с Discord (throttle внутри сервиса);
//  2. бейджи из локального снимка ролей;
//  3. проверка admin-доступа.
//
// Ошибки шагов не прерывают запрос: пользователь видит форум с последними
// известными ролями, ошибка пишется в лог.
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/goartstore/forum-module/internal/api/errors"
	"github.com/bigkaa/goartstore/forum-module/internal/auth"
	"github.com/bigkaa/goartstore/forum-module/internal/domain/model"
)

type contextKey string

// ContextKeyViewer — Viewer в контексте запроса.
const ContextKeyViewer contextKey = "viewer"

// Viewer — вошедший пользователь.
type Viewer struct {
	ID       string
	Username string
	Badges   []model.Badge
	IsAdmin  bool
}

// RoleSyncer — синхронизация ролей (service.RoleSyncService).
type RoleSyncer interface {
	Sync(ctx context.Context, userID string) error
}

// BadgeResolver — бейджи пользователя (service.BadgeService).
type BadgeResolver interface {
	Resolve(ctx context.Context, userID string) ([]model.Badge, error)
}

// AdminChecker — проверка admin-доступа (service.AdminAccessService).
type AdminChecker interface {
	CanAdmin(ctx context.Context, userID string) (bool, error)
}

// Identity — middleware, кладущий Viewer в контекст.
type Identity struct {
	sessions *auth.SessionManager
	sync     RoleSyncer
	badges   BadgeResolver
	admin    AdminChecker
	logger   *slog.Logger
}

// NewIdentity создаёт middleware идентификации.
func NewIdentity(
	sessions *auth.SessionManager,
	sync RoleSyncer,
	badges BadgeResolver,
	admin AdminChecker,
	logger *slog.Logger,
) *Identity {
	return &Identity{
		sessions: sessions,
		sync:     sync,
		badges:   badges,
		admin:    admin,
		logger:   logger.With(slog.String("component", "identity")),
	}
}

// Middleware возвращает HTTP middleware. Анонимный запрос проходит без Viewer.
func (id *Identity) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := id.sessions.GetSessionFromRequest(r)
			if err != nil {
				id.logger.Debug("Ошибка чтения сессии",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				id.sessions.ClearSessionCookie(w)
				session = nil
			}
			if session != nil && session.IsExpired() {
				id.sessions.ClearSessionCookie(w)
				session = nil
			}
			if session == nil || session.UserID == "" {
				next.ServeHTTP(w, r)
				return
			}

			noteUser(r.Context(), session.UserID)
			viewer := id.resolve(r.Context(), session)
			ctx := context.WithValue(r.Context(), ContextKeyViewer, viewer)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (id *Identity) resolve(ctx context.Context, session *auth.SessionData) *Viewer {
	v := &Viewer{ID: session.UserID, Username: session.Username, Badges: []model.Badge{}}
	log := id.logger.With(slog.String("user_id", v.ID))

	if err := id.sync.Sync(ctx, v.ID); err != nil {
		log.Warn("Синхронизация ролей не удалась, используется прежний снимок",
			slog.String("error", err.Error()),
		)
	}

	badges, err := id.badges.Resolve(ctx, v.ID)
	if err != nil {
		log.Warn("Бейджи не получены", slog.String("error", err.Error()))
	} else {
		v.Badges = badges
	}

	isAdmin, err := id.admin.CanAdmin(ctx, v.ID)
	if err != nil {
		log.Warn("Проверка admin доступа не удалась", slog.String("error", err.Error()))
		isAdmin = false
	}
	v.IsAdmin = isAdmin

	return v
}

// ViewerFromContext возвращает Viewer или nil для анонимного запроса.
func ViewerFromContext(ctx context.Context) *Viewer {
	v, _ := ctx.Value(ContextKeyViewer).(*Viewer)
	return v
}

// RequireAuth отвечает 401, если пользователь не вошёл.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ViewerFromContext(r.Context()) == nil {
			apierrors.Unauthorized(w, "Требуется вход через Discord")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin отвечает 401 анониму и 403 пользователю без admin-доступа.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := ViewerFromContext(r.Context())
		if v == nil {
			apierrors.Unauthorized(w, "Требуется вход через Discord")
			return
		}
		if !v.IsAdmin {
			apierrors.Forbidden(w, "Недостаточно прав")
			return
		}
		next.ServeHTTP(w, r)
	})
}
