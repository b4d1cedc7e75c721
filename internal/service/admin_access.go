package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bigkaa/goartstore/forum-module/internal/repository"
)

// AdminAccessService — доступ к администрированию по allowlist ролей.
type AdminAccessService struct {
	repo   repository.AdminAccessRoleRepository
	logger *slog.Logger
}

// NewAdminAccessService создаёт сервис admin-доступа.
func NewAdminAccessService(repo repository.AdminAccessRoleRepository, logger *slog.Logger) *AdminAccessService {
	return &AdminAccessService{
		repo:   repo,
		logger: logger.With(slog.String("component", "admin_access")),
	}
}

// CanAdmin — пересекаются ли роли пользователя с allowlist.
// Только чтение локальных данных, без обращения к Discord.
func (s *AdminAccessService) CanAdmin(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	ok, err := s.repo.UserHasAccess(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("проверка admin доступа: %w", err)
	}
	return ok, nil
}

// List возвращает ID ролей allowlist.
func (s *AdminAccessService) List(ctx context.Context) ([]string, error) {
	ids, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// Add добавляет роль в allowlist.
func (s *AdminAccessService) Add(ctx context.Context, roleID string) error {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return fmt.Errorf("%w: role_id обязателен", ErrValidation)
	}
	if err := s.repo.Add(ctx, roleID); err != nil {
		return err
	}
	s.logger.Info("Роль добавлена в admin allowlist", slog.String("role_id", roleID))
	return nil
}

// Remove удаляет роль из allowlist.
func (s *AdminAccessService) Remove(ctx context.Context, roleID string) error {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return fmt.Errorf("%w: role_id обязателен", ErrValidation)
	}
	if err := s.repo.Remove(ctx, roleID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: роль %s не в allowlist", ErrNotFound, roleID)
		}
		return err
	}
	s.logger.Info("Роль удалена из admin allowlist", slog.String("role_id", roleID))
	return nil
}
