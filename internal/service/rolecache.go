// rolecache.go — кэш имён ролей гильдии Discord.
//
// Кэш — один снимок role_id → name на процесс. Снимок заменяется целиком
// (atomic.Pointer), читатели видят либо старый, либо новый набор, но не смесь.
// Свежий снимок (моложе TTL и непустой) повторно не запрашивается; пустой
// кэш запрашивается всегда. Параллельные обновления схлопываются в один
// запрос к Discord (singleflight). Общий запрос не зависит от отмены
// контекста вызвавшего его клиента и ограничен timeout.
// При ошибке прежний снимок сохраняется.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bigkaa/goartstore/forum-module/internal/discord"
)

// GuildRoleFetcher — источник ролей гильдии (discord.Client).
type GuildRoleFetcher interface {
	FetchGuildRoles(ctx context.Context, guildID string) ([]discord.Role, error)
}

type roleSnapshot struct {
	names     map[string]string
	fetchedAt time.Time
}

// RoleCache — кэш имён ролей гильдии.
type RoleCache struct {
	fetcher GuildRoleFetcher
	guildID string
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger

	snap  atomic.Pointer[roleSnapshot]
	group singleflight.Group
}

// NewRoleCache создаёт пустой кэш ролей. Первое обращение к Refresh
// всегда идёт в Discord. timeout — ограничение на запрос (FM_DISCORD_TIMEOUT).
func NewRoleCache(fetcher GuildRoleFetcher, guildID string, ttl, timeout time.Duration, logger *slog.Logger) *RoleCache {
	return &RoleCache{
		fetcher: fetcher,
		guildID: guildID,
		ttl:     ttl,
		timeout: timeout,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "role_cache")),
	}
}

// Get возвращает имя роли из текущего снимка.
func (c *RoleCache) Get(roleID string) (string, bool) {
	s := c.snap.Load()
	if s == nil {
		return "", false
	}
	name, ok := s.names[roleID]
	return name, ok
}

// Len — количество ролей в текущем снимке.
func (c *RoleCache) Len() int {
	if s := c.snap.Load(); s != nil {
		return len(s.names)
	}
	return 0
}

// fresh — снимок непустой и моложе TTL.
func (c *RoleCache) fresh() bool {
	s := c.snap.Load()
	return s != nil && len(s.names) > 0 && c.now().Sub(s.fetchedAt) < c.ttl
}

// Refresh обновляет снимок, если он устарел или пуст.
// Ошибка оборачивает ErrUpstream; прежний снимок при этом не меняется.
// Отмена ctx прерывает только ожидание этого вызова, общий запрос продолжается.
func (c *RoleCache) Refresh(ctx context.Context) error {
	if c.fresh() {
		return nil
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan("guild_roles", func() (any, error) {
		return nil, c.fetch(fetchCtx)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return fmt.Errorf("обновление кэша ролей: %w", ctx.Err())
	}
}

func (c *RoleCache) fetch(ctx context.Context) error {
	// Другой вызов мог обновить снимок, пока этот ждал
	if c.fresh() {
		return nil
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	roles, err := c.fetcher.FetchGuildRoles(ctx, c.guildID)
	if err != nil {
		roleCacheRefreshTotal.WithLabelValues("error").Inc()
		if !errors.Is(err, ErrUpstream) {
			err = fmt.Errorf("%w: %w", ErrUpstream, err)
		}
		return fmt.Errorf("обновление кэша ролей: %w", err)
	}

	names := make(map[string]string, len(roles))
	for _, r := range roles {
		names[r.ID] = r.Name
	}
	c.snap.Store(&roleSnapshot{names: names, fetchedAt: c.now()})

	roleCacheRefreshTotal.WithLabelValues("ok").Inc()
	roleCacheSize.Set(float64(len(names)))
	c.logger.Debug("Кэш ролей гильдии обновлён", slog.Int("roles", len(names)))
	return nil
}

// CheckReady — состояние кэша для /health/ready.
// Пустой кэш не блокирует готовность: бейджи будут без имён ролей Discord.
func (c *RoleCache) CheckReady() (status string, message string) {
	s := c.snap.Load()
	if s == nil {
		return "degraded", "роли гильдии ещё не загружены"
	}
	return "ok", fmt.Sprintf("ролей: %d, обновлено %s назад", len(s.names), c.now().Sub(s.fetchedAt).Truncate(time.Second))
}
