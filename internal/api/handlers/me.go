package handlers

import (
	"net/http"

	"github.com/bigkaa/goartstore/forum-module/internal/api/middleware"
	"github.com/bigkaa/goartstore/forum-module/internal/domain/model"
)

type meResponse struct {
	Authenticated bool    `json:"authenticated"`
	User          *meUser `json:"user,omitempty"`
}

type meUser struct {
	ID       string        `json:"id"`
	Username string        `json:"username"`
	Badges   []model.Badge `json:"badges"`
	IsAdmin  bool          `json:"is_admin"`
}

// Me — GET /api/v1/me. Аноним получает authenticated=false.
func Me(w http.ResponseWriter, r *http.Request) {
	v := middleware.ViewerFromContext(r.Context())
	if v == nil {
		writeJSON(w, http.StatusOK, meResponse{})
		return
	}
	badges := v.Badges
	if badges == nil {
		badges = []model.Badge{}
	}
	writeJSON(w, http.StatusOK, meResponse{
		Authenticated: true,
		User: &meUser{
			ID:       v.ID,
			Username: v.Username,
			Badges:   badges,
			IsAdmin:  v.IsAdmin,
		},
	})
}
