package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bigkaa/goartstore/forum-module/internal/domain/badge"
	"github.com/bigkaa/goartstore/forum-module/internal/domain/model"
	"github.com/bigkaa/goartstore/forum-module/internal/repository"
)

// RoleLabelService — управление переопределениями отображения ролей.
type RoleLabelService struct {
	repo   repository.RoleLabelRepository
	logger *slog.Logger
}

// NewRoleLabelService создаёт сервис переопределений ролей.
func NewRoleLabelService(repo repository.RoleLabelRepository, logger *slog.Logger) *RoleLabelService {
	return &RoleLabelService{
		repo:   repo,
		logger: logger.With(slog.String("component", "role_labels")),
	}
}

// List возвращает все переопределения.
func (s *RoleLabelService) List(ctx context.Context) ([]model.RoleLabel, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.RoleLabel{}
	}
	return list, nil
}

// Upsert сохраняет переопределение. Неизвестный стиль заменяется на neutral.
func (s *RoleLabelService) Upsert(ctx context.Context, roleID, label, style string) (model.RoleLabel, error) {
	rl := model.RoleLabel{
		RoleID: strings.TrimSpace(roleID),
		Label:  strings.TrimSpace(label),
		Style:  badge.NormalizeStyle(style),
	}
	if rl.RoleID == "" || rl.Label == "" {
		return model.RoleLabel{}, fmt.Errorf("%w: role_id и label обязательны", ErrValidation)
	}

	if err := s.repo.Upsert(ctx, rl); err != nil {
		return model.RoleLabel{}, err
	}
	s.logger.Info("Переопределение роли сохранено",
		slog.String("role_id", rl.RoleID),
		slog.String("label", rl.Label),
		slog.String("style", rl.Style),
	)
	return rl, nil
}

// Delete удаляет переопределение роли.
func (s *RoleLabelService) Delete(ctx context.Context, roleID string) error {
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return fmt.Errorf("%w: role_id обязателен", ErrValidation)
	}
	if err := s.repo.Delete(ctx, roleID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: переопределение роли %s", ErrNotFound, roleID)
		}
		return err
	}
	s.logger.Info("Переопределение роли удалено", slog.String("role_id", roleID))
	return nil
}
