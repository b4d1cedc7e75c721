package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/forum-module/internal/auth"
	"github.com/bigkaa/goartstore/forum-module/internal/domain/model"
)

type fakeSyncer struct {
	calls []string
	err   error
}

func (f *fakeSyncer) Sync(_ context.Context, userID string) error {
	f.calls = append(f.calls, userID)
	return f.err
}

type fakeBadges struct {
	badges []model.Badge
	err    error
}

func (f *fakeBadges) Resolve(_ context.Context, _ string) ([]model.Badge, error) {
	return f.badges, f.err
}

type fakeAdmin struct {
	admins map[string]bool
	err    error
}

func (f *fakeAdmin) CanAdmin(_ context.Context, userID string) (bool, error) {
	return f.admins[userID], f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sessionCookie(t *testing.T, sm *auth.SessionManager, s *auth.SessionData) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	if err := sm.SetSessionCookie(rec, s); err != nil {
		t.Fatalf("SetSessionCookie: %v", err)
	}
	return rec.Result().Cookies()[0]
}

// captureViewer — handler, сохраняющий Viewer из контекста.
func captureViewer(dst **Viewer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*dst = ViewerFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

// TestIdentity_Anonymous — без cookie Viewer отсутствует, Discord не вызывается.
func TestIdentity_Anonymous(t *testing.T) {
	sm, _ := auth.NewSessionManager("", false)
	syncer := &fakeSyncer{}
	id := NewIdentity(sm, syncer, &fakeBadges{}, &fakeAdmin{}, testLogger())

	var viewer *Viewer
	rec := httptest.NewRecorder()
	id.Middleware()(captureViewer(&viewer)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if viewer != nil {
		t.Errorf("ожидался анонимный запрос, получено %+v", viewer)
	}
	if len(syncer.calls) != 0 {
		t.Errorf("Sync вызван %d раз для анонима", len(syncer.calls))
	}
}

// TestIdentity_LoggedIn — синхронизация, бейджи и admin-доступ.
func TestIdentity_LoggedIn(t *testing.T) {
	sm, _ := auth.NewSessionManager("", false)
	syncer := &fakeSyncer{}
	badges := &fakeBadges{badges: []model.Badge{{RoleID: "r1", Label: "Admin", Style: "admin"}}}
	id := NewIdentity(sm, syncer, badges, &fakeAdmin{admins: map[string]bool{"u1": true}}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(sessionCookie(t, sm, auth.NewSession("u1", "alice")))

	var viewer *Viewer
	id.Middleware()(captureViewer(&viewer)).ServeHTTP(httptest.NewRecorder(), req)

	if viewer == nil {
		t.Fatal("ожидался Viewer")
	}
	if viewer.ID != "u1" || viewer.Username != "alice" || !viewer.IsAdmin {
		t.Errorf("Viewer = %+v", viewer)
	}
	if len(viewer.Badges) != 1 || viewer.Badges[0].Label != "Admin" {
		t.Errorf("Badges = %+v", viewer.Badges)
	}
	if len(syncer.calls) != 1 || syncer.calls[0] != "u1" {
		t.Errorf("Sync calls = %v", syncer.calls)
	}
}

// TestIdentity_Degraded — ошибки Discord и БД не прерывают запрос.
func TestIdentity_Degraded(t *testing.T) {
	sm, _ := auth.NewSessionManager("", false)
	id := NewIdentity(sm,
		&fakeSyncer{err: errors.New("discord down")},
		&fakeBadges{err: errors.New("db down")},
		&fakeAdmin{admins: map[string]bool{"u1": true}, err: errors.New("db down")},
		testLogger(),
	)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(sessionCookie(t, sm, auth.NewSession("u1", "alice")))

	var viewer *Viewer
	rec := httptest.NewRecorder()
	id.Middleware()(captureViewer(&viewer)).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, ожидался 204", rec.Code)
	}
	if viewer == nil {
		t.Fatal("ожидался Viewer")
	}
	if viewer.IsAdmin {
		t.Error("при ошибке проверки доступа admin не выдаётся")
	}
	if viewer.Badges == nil || len(viewer.Badges) != 0 {
		t.Errorf("Badges = %v, ожидался пустой срез", viewer.Badges)
	}
}

// TestIdentity_BadOrExpiredSession — cookie очищается, запрос анонимный.
func TestIdentity_BadOrExpiredSession(t *testing.T) {
	sm, _ := auth.NewSessionManager("", false)
	id := NewIdentity(sm, &fakeSyncer{}, &fakeBadges{}, &fakeAdmin{}, testLogger())

	expired := &auth.SessionData{UserID: "u1", Username: "a", ExpiresAt: time.Now().Add(-time.Hour).Unix()}
	cookies := []*http.Cookie{
		{Name: auth.SessionCookieName, Value: "garbage"},
		sessionCookie(t, sm, expired),
	}
	for _, c := range cookies {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(c)
		rec := httptest.NewRecorder()

		var viewer *Viewer
		id.Middleware()(captureViewer(&viewer)).ServeHTTP(rec, req)
		if viewer != nil {
			t.Errorf("ожидался анонимный запрос, получено %+v", viewer)
		}
		set := rec.Result().Cookies()
		if len(set) == 0 || set[0].MaxAge >= 0 {
			t.Errorf("cookie сессии не очищен: %v", set)
		}
	}
}

// TestRequireAuthAndAdmin проверяет коды ответов guard-ов.
func TestRequireAuthAndAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name      string
		viewer    *Viewer
		wantAuth  int
		wantAdmin int
	}{
		{"аноним", nil, http.StatusUnauthorized, http.StatusUnauthorized},
		{"пользователь", &Viewer{ID: "u1"}, http.StatusOK, http.StatusForbidden},
		{"администратор", &Viewer{ID: "u2", IsAdmin: true}, http.StatusOK, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.viewer != nil {
				req = req.WithContext(context.WithValue(req.Context(), ContextKeyViewer, tt.viewer))
			}

			rec := httptest.NewRecorder()
			RequireAuth(ok).ServeHTTP(rec, req)
			if rec.Code != tt.wantAuth {
				t.Errorf("RequireAuth: status = %d, ожидалось %d", rec.Code, tt.wantAuth)
			}

			rec = httptest.NewRecorder()
			RequireAdmin(ok).ServeHTTP(rec, req)
			if rec.Code != tt.wantAdmin {
				t.Errorf("RequireAdmin: status = %d, ожидалось %d", rec.Code, tt.wantAdmin)
			}
		})
	}
}
