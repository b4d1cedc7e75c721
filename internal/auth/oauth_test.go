package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

// newTokenServer — Discord token endpoint, проверяющий PKCE verifier.
func newTokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v10/oauth2/token" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.PostForm.Get("code") != "good-code" || r.PostForm.Get("code_verifier") == "" ||
			r.PostForm.Get("client_id") != "client" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"user-token","token_type":"Bearer","expires_in":604800,"scope":"identify"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestOAuth(t *testing.T, apiURL string) *DiscordOAuth {
	t.Helper()
	o, err := NewDiscordOAuth("client", "secret", "http://forum.local/auth/discord/callback", apiURL, []byte("0123456789abcdef0123456789abcdef"), false)
	if err != nil {
		t.Fatalf("NewDiscordOAuth: %v", err)
	}
	return o
}

// begin выполняет Begin и возвращает state из URL и state cookie.
func begin(t *testing.T, o *DiscordOAuth) (string, *http.Cookie, *url.URL) {
	t.Helper()
	rec := httptest.NewRecorder()
	authURL, err := o.Begin(rec)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	u, err := url.Parse(authURL)
	if err != nil {
		t.Fatalf("URL авторизации: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != StateCookieName {
		t.Fatalf("ожидался state cookie, получено %v", cookies)
	}
	return u.Query().Get("state"), cookies[0], u
}

// TestOAuthBegin проверяет URL авторизации Discord.
func TestOAuthBegin(t *testing.T) {
	o := newTestOAuth(t, "https://discord.com/api/v10")
	state, cookie, u := begin(t, o)

	if u.Host != "discord.com" || u.Path != "/oauth2/authorize" {
		t.Errorf("URL авторизации = %s", u)
	}
	q := u.Query()
	checks := map[string]string{
		"client_id":             "client",
		"response_type":         "code",
		"scope":                 "identify",
		"code_challenge_method": "S256",
		"redirect_uri":          "http://forum.local/auth/discord/callback",
	}
	for k, want := range checks {
		if got := q.Get(k); got != want {
			t.Errorf("%s = %q, ожидалось %q", k, got, want)
		}
	}
	if state == "" || q.Get("code_challenge") == "" {
		t.Error("ожидались state и code_challenge")
	}
	if !cookie.HttpOnly || cookie.MaxAge <= 0 {
		t.Errorf("state cookie = %+v", cookie)
	}
}

// TestOAuthComplete проверяет обмен code на токен.
func TestOAuthComplete(t *testing.T) {
	srv := newTokenServer(t)
	o := newTestOAuth(t, srv.URL+"/api/v10")
	state, cookie, _ := begin(t, o)

	req := httptest.NewRequest(http.MethodGet, "/auth/discord/callback?code=good-code&state="+url.QueryEscape(state), nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()

	tok, err := o.Complete(context.Background(), rec, req)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if tok.AccessToken != "user-token" {
		t.Errorf("AccessToken = %q", tok.AccessToken)
	}
	cleared := rec.Result().Cookies()
	if len(cleared) == 0 || cleared[0].Name != StateCookieName || cleared[0].MaxAge >= 0 {
		t.Errorf("state cookie не удалён: %v", cleared)
	}
}

// TestOAuthComplete_InvalidState проверяет отказ при неверном state.
func TestOAuthComplete_InvalidState(t *testing.T) {
	srv := newTokenServer(t)
	o := newTestOAuth(t, srv.URL+"/api/v10")
	state, cookie, _ := begin(t, o)

	other := newTestOAuth(t, srv.URL+"/api/v10")
	other.stateKey = []byte("another-key")
	_, foreignCookie, _ := begin(t, other)

	tests := []struct {
		name   string
		query  string
		cookie *http.Cookie
	}{
		{"state не совпадает", "code=good-code&state=forged", cookie},
		{"нет cookie", "code=good-code&state=" + url.QueryEscape(state), nil},
		{"чужая подпись", "code=good-code&state=" + url.QueryEscape(state), foreignCookie},
		{"нет code", "state=" + url.QueryEscape(state), cookie},
		{"испорченный cookie", "code=good-code&state=" + url.QueryEscape(state),
			&http.Cookie{Name: StateCookieName, Value: strings.Repeat("x", 20)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/discord/callback?"+tt.query, nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			_, err := o.Complete(context.Background(), httptest.NewRecorder(), req)
			if !errors.Is(err, ErrInvalidState) {
				t.Errorf("ожидалась ErrInvalidState, получено: %v", err)
			}
		})
	}
}

// TestOAuthComplete_DiscordErrors проверяет отказ Discord и ошибку обмена.
func TestOAuthComplete_DiscordErrors(t *testing.T) {
	srv := newTokenServer(t)
	o := newTestOAuth(t, srv.URL+"/api/v10")
	state, cookie, _ := begin(t, o)

	req := httptest.NewRequest(http.MethodGet, "/auth/discord/callback?error=access_denied", nil)
	if _, err := o.Complete(context.Background(), httptest.NewRecorder(), req); err == nil {
		t.Error("ожидалась ошибка при error=access_denied")
	}

	req = httptest.NewRequest(http.MethodGet, "/auth/discord/callback?code=bad-code&state="+url.QueryEscape(state), nil)
	req.AddCookie(cookie)
	_, err := o.Complete(context.Background(), httptest.NewRecorder(), req)
	if err == nil || errors.Is(err, ErrInvalidState) {
		t.Errorf("ожидалась ошибка обмена code, получено: %v", err)
	}
}

// TestNewDiscordOAuth_InvalidURL проверяет валидацию URL API.
func TestNewDiscordOAuth_InvalidURL(t *testing.T) {
	if _, err := NewDiscordOAuth("c", "s", "http://cb", "not a url", []byte("k"), false); err == nil {
		t.Error("ожидалась ошибка для некорректного URL")
	}
}
