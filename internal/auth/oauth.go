// oauth.go — Discord OAuth2 (Authorization Code + PKCE).
//
// Параметр state — случайный nonce. Nonce и PKCE verifier хранятся
// в короткоживущем cookie, подписанном HS256 (JWT).
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// StateCookieName — cookie с подписанным state на время входа.
const StateCookieName = "forum_oauth_state"

// StateTTL — время на прохождение входа в Discord.
const StateTTL = 5 * time.Minute

// ErrInvalidState — state отсутствует, подделан, истёк или не совпал.
var ErrInvalidState = errors.New("некорректный OAuth state")

// stateClaims — содержимое state cookie.
type stateClaims struct {
	Verifier string `json:"pkce"`
	jwt.RegisteredClaims
}

// DiscordOAuth — клиент входа через Discord.
type DiscordOAuth struct {
	config   *oauth2.Config
	stateKey []byte
	secure   bool
}

// NewDiscordOAuth создаёт OAuth-клиент.
// apiURL — базовый URL Discord API (https://discord.com/api/v10): token endpoint
// берётся относительно него, authorize — на том же хосте.
// sessionKey — ключ сессий, из него выводится ключ подписи state.
func NewDiscordOAuth(clientID, clientSecret, callbackURL, apiURL string, sessionKey []byte, secure bool) (*DiscordOAuth, error) {
	endpoint, err := discordEndpoint(apiURL)
	if err != nil {
		return nil, err
	}

	mac := hmac.New(sha256.New, sessionKey)
	mac.Write([]byte("oauth-state"))

	return &DiscordOAuth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Endpoint:     endpoint,
			Scopes:       []string{"identify"},
		},
		stateKey: mac.Sum(nil),
		secure:   secure,
	}, nil
}

func discordEndpoint(apiURL string) (oauth2.Endpoint, error) {
	u, err := url.Parse(apiURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return oauth2.Endpoint{}, fmt.Errorf("некорректный URL Discord API: %q", apiURL)
	}
	origin := u.Scheme + "://" + u.Host
	return oauth2.Endpoint{
		AuthURL:   origin + "/oauth2/authorize",
		TokenURL:  strings.TrimRight(apiURL, "/") + "/oauth2/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}, nil
}

// Begin начинает вход: записывает state cookie и возвращает URL авторизации Discord.
func (o *DiscordOAuth) Begin(w http.ResponseWriter) (string, error) {
	nonce, err := randomString(24)
	if err != nil {
		return "", fmt.Errorf("ошибка генерации state: %w", err)
	}
	verifier := oauth2.GenerateVerifier()

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, stateClaims{
		Verifier: verifier,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        nonce,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(StateTTL)),
		},
	})
	signed, err := token.SignedString(o.stateKey)
	if err != nil {
		return "", fmt.Errorf("ошибка подписи state: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    signed,
		Path:     "/",
		MaxAge:   int(StateTTL / time.Second),
		HttpOnly: true,
		Secure:   o.secure,
		SameSite: http.SameSiteLaxMode,
	})

	return o.config.AuthCodeURL(nonce, oauth2.S256ChallengeOption(verifier)), nil
}

// Complete проверяет state и обменивает code на токен Discord.
// State cookie удаляется в любом случае.
func (o *DiscordOAuth) Complete(ctx context.Context, w http.ResponseWriter, r *http.Request) (*oauth2.Token, error) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   o.secure,
		SameSite: http.SameSiteLaxMode,
	})

	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		return nil, fmt.Errorf("Discord отклонил вход: %s", e)
	}
	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		return nil, fmt.Errorf("%w: отсутствует code или state", ErrInvalidState)
	}

	cookie, err := r.Cookie(StateCookieName)
	if err != nil {
		return nil, fmt.Errorf("%w: нет state cookie", ErrInvalidState)
	}
	claims, err := o.parseState(cookie.Value)
	if err != nil {
		return nil, err
	}
	if !hmac.Equal([]byte(claims.ID), []byte(state)) {
		return nil, fmt.Errorf("%w: state не совпадает", ErrInvalidState)
	}

	tok, err := o.config.Exchange(ctx, code, oauth2.VerifierOption(claims.Verifier))
	if err != nil {
		return nil, fmt.Errorf("обмен code на токен: %w", err)
	}
	return tok, nil
}

func (o *DiscordOAuth) parseState(raw string) (*stateClaims, error) {
	var claims stateClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return o.stateKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	if claims.ID == "" || claims.Verifier == "" {
		return nil, fmt.Errorf("%w: неполный state", ErrInvalidState)
	}
	return &claims, nil
}

func randomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
