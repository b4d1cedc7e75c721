// forum.go — разделы, темы и ответы.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/goartstore/forum-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/forum-module/internal/domain/model"
	"github.com/bigkaa/goartstore/forum-module/internal/service"
)

// ForumService — операции форума (service.ForumService).
type ForumService interface {
	ListCategories(ctx context.Context) ([]*model.Category, error)
	ListPosts(ctx context.Context, categoryKey string) (*model.Category, []*model.Post, error)
	GetPost(ctx context.Context, id int64) (*model.Post, []*model.Reply, error)
	CreatePost(ctx context.Context, actor service.Actor, categoryKey, title, body string) (*model.Post, error)
	CreateReply(ctx context.Context, actor service.Actor, postID int64, body string) (*model.Reply, error)
	SetClosed(ctx context.Context, actor service.Actor, postID int64, closed bool) (*model.Post, error)
}

// BadgeLister — бейджи пачки пользователей (service.BadgeService).
type BadgeLister interface {
	ResolveMany(ctx context.Context, userIDs []string) (map[string][]model.Badge, error)
}

// ForumHandler — обработчик API форума.
type ForumHandler struct {
	forum  ForumService
	badges BadgeLister
	logger *slog.Logger
}

// NewForumHandler создаёт обработчик форума.
func NewForumHandler(forum ForumService, badges BadgeLister, logger *slog.Logger) *ForumHandler {
	return &ForumHandler{
		forum:  forum,
		badges: badges,
		logger: logger.With(slog.String("component", "api.forum")),
	}
}

type createPostRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type createReplyRequest struct {
	Body string `json:"body"`
}

// ListCategories — GET /api/v1/categories.
func (h *ForumHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.forum.ListCategories(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	items := make([]categoryDTO, 0, len(cats))
	for _, c := range cats {
		items = append(items, toCategoryDTO(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": items})
}

// ListPosts — GET /api/v1/categories/{key}/posts.
func (h *ForumHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	cat, posts, err := h.forum.ListPosts(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.AuthorID)
	}
	badges := h.resolveBadges(r.Context(), ids)

	items := make([]postDTO, 0, len(posts))
	for _, p := range posts {
		items = append(items, toPostDTO(p, badges))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"category": toCategoryDTO(cat),
		"posts":    items,
	})
}

// GetPost — GET /api/v1/posts/{id}.
func (h *ForumHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, ok := postIDParam(w, r)
	if !ok {
		return
	}
	post, replies, err := h.forum.GetPost(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	ids := []string{post.AuthorID}
	for _, rp := range replies {
		ids = append(ids, rp.AuthorID)
	}
	badges := h.resolveBadges(r.Context(), ids)

	items := make([]replyDTO, 0, len(replies))
	for _, rp := range replies {
		items = append(items, toReplyDTO(rp, badges))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"post":    toPostDTO(post, badges),
		"replies": items,
	})
}

// CreatePost — POST /api/v1/categories/{key}/posts.
func (h *ForumHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.ViewerFromContext(r.Context())
	var req createPostRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	post, err := h.forum.CreatePost(r.Context(), actorOf(viewer), chi.URLParam(r, "key"), req.Title, req.Body)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	dto := toPostDTO(post, map[string][]model.Badge{viewer.ID: viewer.Badges})
	dto.Author.Username = viewer.Username
	writeJSON(w, http.StatusCreated, dto)
}

// CreateReply — POST /api/v1/posts/{id}/replies.
func (h *ForumHandler) CreateReply(w http.ResponseWriter, r *http.Request) {
	viewer := middleware.ViewerFromContext(r.Context())
	id, ok := postIDParam(w, r)
	if !ok {
		return
	}
	var req createReplyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	reply, err := h.forum.CreateReply(r.Context(), actorOf(viewer), id, req.Body)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	dto := toReplyDTO(reply, map[string][]model.Badge{viewer.ID: viewer.Badges})
	dto.Author.Username = viewer.Username
	writeJSON(w, http.StatusCreated, dto)
}

// ClosePost — POST /api/v1/posts/{id}/close.
func (h *ForumHandler) ClosePost(w http.ResponseWriter, r *http.Request) {
	h.setClosed(w, r, true)
}

// ReopenPost — POST /api/v1/posts/{id}/reopen.
func (h *ForumHandler) ReopenPost(w http.ResponseWriter, r *http.Request) {
	h.setClosed(w, r, false)
}

func (h *ForumHandler) setClosed(w http.ResponseWriter, r *http.Request, closed bool) {
	viewer := middleware.ViewerFromContext(r.Context())
	id, ok := postIDParam(w, r)
	if !ok {
		return
	}
	post, err := h.forum.SetClosed(r.Context(), actorOf(viewer), id, closed)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toPostDTO(post, h.resolveBadges(r.Context(), []string{post.AuthorID})))
}

// resolveBadges — бейджи авторов; при ошибке страница отдаётся без бейджей.
func (h *ForumHandler) resolveBadges(ctx context.Context, userIDs []string) map[string][]model.Badge {
	badges, err := h.badges.ResolveMany(ctx, userIDs)
	if err != nil {
		h.logger.Warn("Бейджи авторов не получены", slog.String("error", err.Error()))
		return map[string][]model.Badge{}
	}
	return badges
}

func actorOf(v *middleware.Viewer) service.Actor {
	return service.Actor{ID: v.ID, Username: v.Username, IsAdmin: v.IsAdmin}
}
