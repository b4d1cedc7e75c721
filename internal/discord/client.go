// client.go — HTTP-клиент к Discord REST API (v10).
// Запросы от имени бота (Authorization: Bot <token>) читают роли гильдии
// и роли участника; запрос от имени пользователя (Bearer) возвращает профиль
// при входе через OAuth2.
//
// Все исходящие запросы проходят через общий rate.Limiter. Ответ 429
// повторяется не более одного раза после Retry-After (с ограничением сверху).
package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Ошибки клиента Discord.
var (
	// ErrUpstream — Discord недоступен или отклонил запрос.
	ErrUpstream = errors.New("ошибка Discord API")
	// ErrMemberNotFound — пользователь не состоит в гильдии.
	ErrMemberNotFound = errors.New("участник гильдии не найден")

	errUnknownMember = fmt.Errorf("%w: Unknown Member", ErrUpstream)
)

// codeUnknownMember — JSON-код Discord "Unknown Member". Остальные 404
// (например, 10004 Unknown Guild) означают ошибку конфигурации или доступа.
const codeUnknownMember = 10007

// maxRetryWait — верхняя граница ожидания перед повтором после 429.
const maxRetryWait = 5 * time.Second

// Client — HTTP-клиент к Discord REST API.
type Client struct {
	baseURL  string // Базовый URL API (без trailing slash), например https://discord.com/api/v10
	botToken string

	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger

	// maxRetryWait переопределяется в тестах
	maxRetryWait time.Duration
}

// New создаёт клиент Discord.
// rps — ограничение исходящих запросов в секунду (burst = ceil(rps)).
// httpClient может быть nil — тогда используется клиент с таймаутом 10s.
func New(baseURL, botToken string, rps float64, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	burst := int(rps)
	if float64(burst) < rps {
		burst++
	}
	if burst < 1 {
		burst = 1
	}

	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		botToken:     botToken,
		httpClient:   httpClient,
		limiter:      rate.NewLimiter(rate.Limit(rps), burst),
		logger:       logger.With(slog.String("component", "discord_client")),
		maxRetryWait: maxRetryWait,
	}
}

// BaseURL возвращает базовый URL API (для мониторинга зависимостей).
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchGuildRoles возвращает все роли гильдии.
func (c *Client) FetchGuildRoles(ctx context.Context, guildID string) ([]Role, error) {
	var roles []Role
	path := "/guilds/" + url.PathEscape(guildID) + "/roles"
	if err := c.get(ctx, path, "Bot "+c.botToken, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// FetchMemberRoleIDs возвращает ID ролей участника гильдии.
// Если пользователь не состоит в гильдии (404 с кодом 10007) — ErrMemberNotFound.
func (c *Client) FetchMemberRoleIDs(ctx context.Context, guildID, userID string) ([]string, error) {
	var member Member
	path := "/guilds/" + url.PathEscape(guildID) + "/members/" + url.PathEscape(userID)
	if err := c.get(ctx, path, "Bot "+c.botToken, &member); err != nil {
		if errors.Is(err, errUnknownMember) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	if member.Roles == nil {
		return []string{}, nil
	}
	return member.Roles, nil
}

// FetchCurrentUser возвращает профиль владельца OAuth2 access token.
func (c *Client) FetchCurrentUser(ctx context.Context, accessToken string) (*User, error) {
	var u User
	if err := c.get(ctx, "/users/@me", "Bearer "+accessToken, &u); err != nil {
		return nil, err
	}
	if u.ID == "" {
		return nil, fmt.Errorf("%w: пустой id пользователя в ответе", ErrUpstream)
	}
	return &u, nil
}

// --- HTTP helpers ---

// get выполняет GET-запрос с одним повтором после 429.
func (c *Client) get(ctx context.Context, path, authorization string, target any) error {
	for attempt := 0; ; attempt++ {
		resp, err := c.do(ctx, path, authorization)
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt == 0 {
			wait := c.retryAfter(resp)
			resp.Body.Close()

			c.logger.Warn("Discord rate limit, повтор запроса",
				slog.String("path", path),
				slog.Duration("retry_after", wait),
			)

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%w: %v", ErrUpstream, ctx.Err())
			case <-timer.C:
			}
			continue
		}

		return decodeResponse(resp, target)
	}
}

// do отправляет один запрос, предварительно дождавшись лимитера.
func (c *Client) do(ctx context.Context, path, authorization string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: ожидание лимитера: %v", ErrUpstream, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("создание запроса: %w", err)
	}
	req.Header.Set("Authorization", authorization)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	return resp, nil
}

// retryAfter определяет паузу перед повтором: заголовок Retry-After
// или поле retry_after в теле ответа. Результат ограничен maxRetryWait.
func (c *Client) retryAfter(resp *http.Response) time.Duration {
	var wait time.Duration

	if h := resp.Header.Get("Retry-After"); h != "" {
		if secs, err := strconv.ParseFloat(h, 64); err == nil {
			wait = time.Duration(secs * float64(time.Second))
		}
	}
	if wait == 0 {
		var body rateLimitBody
		if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err == nil {
			wait = time.Duration(body.RetryAfter * float64(time.Second))
		}
	}

	if wait < 0 {
		wait = 0
	}
	if wait > c.maxRetryWait {
		wait = c.maxRetryWait
	}
	return wait
}

// decodeResponse проверяет статус и декодирует JSON-ответ в target.
func decodeResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		var apiErr apiErrorBody
		_ = json.Unmarshal(body, &apiErr)
		if resp.StatusCode == http.StatusNotFound && apiErr.Code == codeUnknownMember {
			return errUnknownMember
		}
		return fmt.Errorf("%w: статус %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("%w: декодирование ответа: %v", ErrUpstream, err)
	}
	return nil
}
