// Пакет handlers — HTTP-обработчики JSON API Forum Module.
// handler.go — общие DTO, разбор запросов и перевод ошибок сервисов в HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/forum-module/internal/api/errors"
	"github.com/bigkaa/goartstore/forum-module/internal/domain/model"
	"github.com/bigkaa/goartstore/forum-module/internal/service"
)

// maxBodyBytes — ограничение тела JSON-запроса.
const maxBodyBytes = 64 << 10

type userDTO struct {
	ID        string        `json:"id"`
	Username  string        `json:"username"`
	AvatarURL string        `json:"avatar_url,omitempty"`
	Badges    []model.Badge `json:"badges"`
}

type categoryDTO struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsLocked    bool   `json:"is_locked"`
}

type postDTO struct {
	ID           int64      `json:"id"`
	CategoryKey  string     `json:"category_key"`
	CategoryName string     `json:"category_name"`
	Title        string     `json:"title"`
	Body         string     `json:"body"`
	Author       userDTO    `json:"author"`
	CreatedAt    time.Time  `json:"created_at"`
	IsClosed     bool       `json:"is_closed"`
	ClosedBy     *string    `json:"closed_by,omitempty"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`
	ReplyCount   int        `json:"reply_count"`
}

type replyDTO struct {
	ID        int64     `json:"id"`
	PostID    int64     `json:"post_id"`
	Body      string    `json:"body"`
	Author    userDTO   `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserDTO(id string, u *model.User, badges map[string][]model.Badge) userDTO {
	dto := userDTO{ID: id, Badges: badges[id]}
	if u != nil {
		dto.Username = u.Username
		dto.AvatarURL = u.AvatarURL()
	}
	if dto.Badges == nil {
		dto.Badges = []model.Badge{}
	}
	return dto
}

func toCategoryDTO(c *model.Category) categoryDTO {
	return categoryDTO{Key: c.Key, Name: c.Name, Description: c.Description, IsLocked: c.IsLocked}
}

func toPostDTO(p *model.Post, badges map[string][]model.Badge) postDTO {
	return postDTO{
		ID:           p.ID,
		CategoryKey:  p.CategoryKey,
		CategoryName: p.CategoryName,
		Title:        p.Title,
		Body:         p.Body,
		Author:       toUserDTO(p.AuthorID, p.Author, badges),
		CreatedAt:    p.CreatedAt,
		IsClosed:     p.IsClosed,
		ClosedBy:     p.ClosedBy,
		ClosedAt:     p.ClosedAt,
		ReplyCount:   p.ReplyCount,
	}
}

func toReplyDTO(rp *model.Reply, badges map[string][]model.Badge) replyDTO {
	return replyDTO{
		ID:        rp.ID,
		PostID:    rp.PostID,
		Body:      rp.Body,
		Author:    toUserDTO(rp.AuthorID, rp.Author, badges),
		CreatedAt: rp.CreatedAt,
	}
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON читает тело запроса. false — ответ 400 уже отправлен.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return false
	}
	return true
}

// postIDParam разбирает {id} из пути. false — ответ 400 уже отправлен.
func postIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		apierrors.ValidationError(w, "Некорректный ID темы")
		return 0, false
	}
	return id, true
}

// writeServiceError переводит ошибку сервисного слоя в HTTP-ответ.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, "Некорректные данные, попробуйте ещё раз")
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Не найдено")
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, "Недостаточно прав")
	case errors.Is(err, service.ErrPostClosed):
		apierrors.PostClosed(w, "Тема закрыта")
	case errors.Is(err, service.ErrCooldown):
		apierrors.TooManyRequests(w, "Слишком частые публикации, попробуйте позже")
	case errors.Is(err, service.ErrUpstream):
		logger.Warn("Discord недоступен", slog.String("error", err.Error()))
		apierrors.DiscordUnavailable(w, "Discord недоступен, попробуйте позже")
	default:
		logger.Error("Внутренняя ошибка", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}
