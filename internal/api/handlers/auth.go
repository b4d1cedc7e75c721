// auth.go — вход через Discord OAuth2 и выход.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/bigkaa/goartstore/forum-module/internal/auth"
	"github.com/bigkaa/goartstore/forum-module/internal/discord"
	"github.com/bigkaa/goartstore/forum-module/internal/domain/model"
)

// OAuthFlow — шаги OAuth-входа (auth.DiscordOAuth).
type OAuthFlow interface {
	Begin(w http.ResponseWriter) (string, error)
	Complete(ctx context.Context, w http.ResponseWriter, r *http.Request) (*oauth2.Token, error)
}

// CurrentUserFetcher — профиль по токену пользователя (discord.Client).
type CurrentUserFetcher interface {
	FetchCurrentUser(ctx context.Context, accessToken string) (*discord.User, error)
}

// LoginRecorder — сохранение пользователя при входе (service.UserService).
type LoginRecorder interface {
	UpsertFromLogin(ctx context.Context, p model.Profile) (*model.User, error)
}

// RoleSyncer — синхронизация ролей (service.RoleSyncService).
type RoleSyncer interface {
	Sync(ctx context.Context, userID string) error
}

// AuthHandler — обработчики входа и выхода.
type AuthHandler struct {
	oauth    OAuthFlow
	profiles CurrentUserFetcher
	users    LoginRecorder
	sync     RoleSyncer
	sessions *auth.SessionManager
	logger   *slog.Logger
}

// NewAuthHandler создаёт обработчик входа.
func NewAuthHandler(
	oauth OAuthFlow,
	profiles CurrentUserFetcher,
	users LoginRecorder,
	sync RoleSyncer,
	sessions *auth.SessionManager,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		oauth:    oauth,
		profiles: profiles,
		users:    users,
		sync:     sync,
		sessions: sessions,
		logger:   logger.With(slog.String("component", "auth")),
	}
}

// HandleLogin — GET /login. Redirect на авторизацию Discord.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	authURL, err := h.oauth.Begin(w)
	if err != nil {
		h.logger.Error("Ошибка начала входа", slog.String("error", err.Error()))
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleCallback — GET /auth/discord/callback.
// Обменивает code на токен, сохраняет пользователя, синхронизирует роли
// и создаёт сессию.
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tok, err := h.oauth.Complete(ctx, w, r)
	if err != nil {
		h.logger.Warn("Вход через Discord не выполнен", slog.String("error", err.Error()))
		if errors.Is(err, auth.ErrInvalidState) {
			http.Error(w, "Сессия входа истекла, попробуйте ещё раз", http.StatusBadRequest)
			return
		}
		http.Error(w, "Ошибка входа через Discord", http.StatusBadGateway)
		return
	}

	du, err := h.profiles.FetchCurrentUser(ctx, tok.AccessToken)
	if err != nil {
		h.logger.Warn("Профиль Discord не получен", slog.String("error", err.Error()))
		http.Error(w, "Discord недоступен, попробуйте позже", http.StatusBadGateway)
		return
	}

	user, err := h.users.UpsertFromLogin(ctx, model.Profile{
		ID:            du.ID,
		Username:      du.Username,
		Discriminator: du.Discriminator,
		Avatar:        du.Avatar,
	})
	if err != nil {
		h.logger.Error("Ошибка сохранения пользователя",
			slog.String("user_id", du.ID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	if err := h.sync.Sync(ctx, user.ID); err != nil {
		h.logger.Warn("Синхронизация ролей при входе не удалась",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := h.sessions.SetSessionCookie(w, auth.NewSession(user.ID, user.Username)); err != nil {
		h.logger.Error("Ошибка создания сессии", slog.String("error", err.Error()))
		http.Error(w, "Внутренняя ошибка сервера", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

// HandleLogout — GET|POST /logout.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
