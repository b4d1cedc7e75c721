package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bigkaa/goartstore/forum-module/internal/domain/badge"
	"github.com/bigkaa/goartstore/forum-module/internal/domain/model"
	"github.com/bigkaa/goartstore/forum-module/internal/repository"
)

// BadgeService строит бейджи пользователей из локального снимка ролей,
// переопределений администратора и кэша ролей гильдии.
type BadgeService struct {
	roles  repository.UserRoleRepository
	labels repository.RoleLabelRepository
	cache  *RoleCache
	logger *slog.Logger
}

// NewBadgeService создаёт сервис бейджей.
func NewBadgeService(
	roles repository.UserRoleRepository,
	labels repository.RoleLabelRepository,
	cache *RoleCache,
	logger *slog.Logger,
) *BadgeService {
	return &BadgeService{
		roles:  roles,
		labels: labels,
		cache:  cache,
		logger: logger.With(slog.String("component", "badges")),
	}
}

// Resolve возвращает отсортированные бейджи пользователя.
func (s *BadgeService) Resolve(ctx context.Context, userID string) ([]model.Badge, error) {
	roleIDs, err := s.roles.ListRoleIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("получение ролей пользователя: %w", err)
	}
	overrides, err := s.overrides(ctx)
	if err != nil {
		return nil, err
	}
	s.refreshCache(ctx)

	return badge.Resolve(roleIDs, overrides, s.cache.Get), nil
}

// ResolveMany возвращает бейджи для списка пользователей
// (одно чтение переопределений, одно обновление кэша, один запрос ролей).
func (s *BadgeService) ResolveMany(ctx context.Context, userIDs []string) (map[string][]model.Badge, error) {
	result := make(map[string][]model.Badge, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	byUser, err := s.roles.ListRoleIDsForUsers(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("получение ролей пользователей: %w", err)
	}
	overrides, err := s.overrides(ctx)
	if err != nil {
		return nil, err
	}
	s.refreshCache(ctx)

	for _, id := range userIDs {
		if _, done := result[id]; done {
			continue
		}
		result[id] = badge.Resolve(byUser[id], overrides, s.cache.Get)
	}
	return result, nil
}

func (s *BadgeService) overrides(ctx context.Context) (map[string]model.RoleLabel, error) {
	list, err := s.labels.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("получение переопределений ролей: %w", err)
	}
	m := make(map[string]model.RoleLabel, len(list))
	for _, rl := range list {
		m[rl.RoleID] = rl
	}
	return m, nil
}

// refreshCache обновляет кэш ролей; при ошибке бейджи строятся по прежнему снимку.
func (s *BadgeService) refreshCache(ctx context.Context) {
	if err := s.cache.Refresh(ctx); err != nil {
		s.logger.Warn("Кэш ролей гильдии не обновлён, используется прежний снимок",
			slog.Int("cached_roles", s.cache.Len()),
			slog.String("error", err.Error()),
		)
	}
}
