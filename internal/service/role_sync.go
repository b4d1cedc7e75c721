// role_sync.go — синхронизация ролей пользователя из Discord в user_roles.
//
// Порядок:
//  1. Throttle — не чаще одного раза в окно на пользователя.
//  2. Запрос ролей участника гильдии с ограничением по времени.
//  3. Полная замена user_roles в одной транзакции.
//
// Ошибки возвращаются вызывающему для логирования; для запроса пользователя
// они не фатальны — бейджи строятся по последнему успешному снимку.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bigkaa/goartstore/forum-module/internal/discord"
	"github.com/bigkaa/goartstore/forum-module/internal/repository"
)

// MemberRoleFetcher — источник ролей участника гильдии (discord.Client).
type MemberRoleFetcher interface {
	FetchMemberRoleIDs(ctx context.Context, guildID, userID string) ([]string, error)
}

// RoleSyncService — синхронизация ролей пользователей с Discord.
type RoleSyncService struct {
	fetcher  MemberRoleFetcher
	roles    repository.UserRoleRepository
	throttle SyncThrottle
	guildID  string
	timeout  time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewRoleSyncService создаёт сервис синхронизации ролей.
// timeout — ограничение на запрос к Discord (FM_DISCORD_TIMEOUT).
func NewRoleSyncService(
	fetcher MemberRoleFetcher,
	roles repository.UserRoleRepository,
	throttle SyncThrottle,
	guildID string,
	timeout time.Duration,
	logger *slog.Logger,
) *RoleSyncService {
	return &RoleSyncService{
		fetcher:  fetcher,
		roles:    roles,
		throttle: throttle,
		guildID:  guildID,
		timeout:  timeout,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "role_sync")),
	}
}

// Sync синхронизирует роли пользователя. Пропущенная из-за throttle
// синхронизация — не ошибка. Пользователь, покинувший гильдию,
// получает пустой набор ролей.
func (s *RoleSyncService) Sync(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: пустой user id", ErrValidation)
	}
	if !s.throttle.ShouldSync(ctx, userID, s.now()) {
		roleSyncTotal.WithLabelValues("throttled").Inc()
		return nil
	}

	start := time.Now()
	result := "ok"
	defer func() {
		roleSyncTotal.WithLabelValues(result).Inc()
		roleSyncDuration.Observe(time.Since(start).Seconds())
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	roleIDs, err := s.fetcher.FetchMemberRoleIDs(fetchCtx, s.guildID, userID)
	cancel()
	if err != nil {
		if !errors.Is(err, discord.ErrMemberNotFound) {
			result = "upstream_error"
			if !errors.Is(err, ErrUpstream) {
				err = fmt.Errorf("%w: %w", ErrUpstream, err)
			}
			return fmt.Errorf("получение ролей пользователя %s: %w", userID, err)
		}
		result = "member_not_found"
		roleIDs = []string{}
		s.logger.Info("Пользователь не состоит в гильдии, роли очищены",
			slog.String("user_id", userID),
		)
	}

	if err := s.roles.ReplaceForUser(ctx, userID, roleIDs); err != nil {
		result = "store_error"
		return fmt.Errorf("сохранение ролей пользователя %s: %w", userID, err)
	}

	s.logger.Debug("Роли пользователя синхронизированы",
		slog.String("user_id", userID),
		slog.Int("roles", len(roleIDs)),
	)
	return nil
}
