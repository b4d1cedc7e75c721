// admin.go — администрирование: пользователи, allowlist ролей доступа,
// переопределения отображения ролей. Все маршруты за RequireAdmin.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/goartstore/forum-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/forum-module/internal/domain/model"
)

// UserLister — пользователи (service.UserService).
type UserLister interface {
	ListRecent(ctx context.Context, limit int) ([]*model.User, error)
}

// AccessRoleManager — allowlist admin-доступа (service.AdminAccessService).
type AccessRoleManager interface {
	List(ctx context.Context) ([]string, error)
	Add(ctx context.Context, roleID string) error
	Remove(ctx context.Context, roleID string) error
}

// RoleLabelManager — переопределения ролей (service.RoleLabelService).
type RoleLabelManager interface {
	List(ctx context.Context) ([]model.RoleLabel, error)
	Upsert(ctx context.Context, roleID, label, style string) (model.RoleLabel, error)
	Delete(ctx context.Context, roleID string) error
}

// AdminHandler — обработчик admin API.
type AdminHandler struct {
	users  UserLister
	access AccessRoleManager
	labels RoleLabelManager
	badges BadgeLister
	logger *slog.Logger
}

// NewAdminHandler создаёт обработчик admin API.
func NewAdminHandler(
	users UserLister,
	access AccessRoleManager,
	labels RoleLabelManager,
	badges BadgeLister,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		users:  users,
		access: access,
		labels: labels,
		badges: badges,
		logger: logger.With(slog.String("component", "api.admin")),
	}
}

type adminUserDTO struct {
	userDTO
	CreatedAt  time.Time  `json:"created_at"`
	LastSeenAt time.Time  `json:"last_seen_at"`
	LastPostAt *time.Time `json:"last_post_at,omitempty"`
}

type roleLabelDTO struct {
	RoleID string `json:"role_id"`
	Label  string `json:"label"`
	Style  string `json:"style"`
}

type accessRoleRequest struct {
	RoleID string `json:"role_id"`
}

type roleLabelRequest struct {
	Label string `json:"label"`
	Style string `json:"style"`
}

// ListUsers — GET /api/v1/admin/users?limit=N.
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	users, err := h.users.ListRecent(r.Context(), limit)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	badges, err := h.badges.ResolveMany(r.Context(), ids)
	if err != nil {
		h.logger.Warn("Бейджи пользователей не получены", slog.String("error", err.Error()))
		badges = map[string][]model.Badge{}
	}

	items := make([]adminUserDTO, 0, len(users))
	for _, u := range users {
		items = append(items, adminUserDTO{
			userDTO:    toUserDTO(u.ID, u, badges),
			CreatedAt:  u.CreatedAt,
			LastSeenAt: u.LastSeenAt,
			LastPostAt: u.LastPostAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": items})
}

// ListAccessRoles — GET /api/v1/admin/access-roles.
func (h *AdminHandler) ListAccessRoles(w http.ResponseWriter, r *http.Request) {
	ids, err := h.access.List(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"role_ids": ids})
}

// AddAccessRole — POST /api/v1/admin/access-roles.
func (h *AdminHandler) AddAccessRole(w http.ResponseWriter, r *http.Request) {
	var req accessRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.access.Add(r.Context(), req.RoleID); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	h.audit(r, "Роль добавлена в admin allowlist", req.RoleID)
	writeJSON(w, http.StatusCreated, accessRoleRequest{RoleID: req.RoleID})
}

// RemoveAccessRole — DELETE /api/v1/admin/access-roles/{roleID}.
func (h *AdminHandler) RemoveAccessRole(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "roleID")
	if err := h.access.Remove(r.Context(), roleID); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	h.audit(r, "Роль удалена из admin allowlist", roleID)
	w.WriteHeader(http.StatusNoContent)
}

// ListRoleLabels — GET /api/v1/admin/role-labels.
func (h *AdminHandler) ListRoleLabels(w http.ResponseWriter, r *http.Request) {
	list, err := h.labels.List(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	items := make([]roleLabelDTO, 0, len(list))
	for _, rl := range list {
		items = append(items, roleLabelDTO(rl))
	}
	writeJSON(w, http.StatusOK, map[string]any{"role_labels": items})
}

// PutRoleLabel — PUT /api/v1/admin/role-labels/{roleID}.
func (h *AdminHandler) PutRoleLabel(w http.ResponseWriter, r *http.Request) {
	var req roleLabelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rl, err := h.labels.Upsert(r.Context(), chi.URLParam(r, "roleID"), req.Label, req.Style)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	h.audit(r, "Переопределение роли сохранено", rl.RoleID)
	writeJSON(w, http.StatusOK, roleLabelDTO(rl))
}

// DeleteRoleLabel — DELETE /api/v1/admin/role-labels/{roleID}.
func (h *AdminHandler) DeleteRoleLabel(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "roleID")
	if err := h.labels.Delete(r.Context(), roleID); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	h.audit(r, "Переопределение роли удалено", roleID)
	w.WriteHeader(http.StatusNoContent)
}

// audit — запись действия администратора.
func (h *AdminHandler) audit(r *http.Request, msg, roleID string) {
	actor := ""
	if v := middleware.ViewerFromContext(r.Context()); v != nil {
		actor = v.ID
	}
	h.logger.Info(msg,
		slog.String("role_id", roleID),
		slog.String("actor_id", actor),
	)
}
