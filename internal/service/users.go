package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bigkaa/goartstore/forum-module/internal/domain/model"
	"github.com/bigkaa/goartstore/forum-module/internal/repository"
)

// maxRecentUsers — верхняя граница списка пользователей в админке.
const maxRecentUsers = 200

// UserService — пользователи форума.
type UserService struct {
	repo   repository.UserRepository
	logger *slog.Logger
}

// NewUserService создаёт сервис пользователей.
func NewUserService(repo repository.UserRepository, logger *slog.Logger) *UserService {
	return &UserService{
		repo:   repo,
		logger: logger.With(slog.String("component", "users")),
	}
}

// UpsertFromLogin создаёт или обновляет пользователя по профилю Discord.
func (s *UserService) UpsertFromLogin(ctx context.Context, p model.Profile) (*model.User, error) {
	p.ID = strings.TrimSpace(p.ID)
	p.Username = strings.TrimSpace(p.Username)
	if p.ID == "" || p.Username == "" {
		return nil, fmt.Errorf("%w: профиль Discord без id или username", ErrValidation)
	}
	if p.Discriminator != nil && *p.Discriminator == "" {
		p.Discriminator = nil
	}
	if p.Avatar != nil && *p.Avatar == "" {
		p.Avatar = nil
	}

	u, err := s.repo.Upsert(ctx, p)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Вход пользователя",
		slog.String("user_id", u.ID),
		slog.String("username", u.Username),
	)
	return u, nil
}

// Get возвращает пользователя по ID.
func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: пользователь %s", ErrNotFound, id)
		}
		return nil, err
	}
	return u, nil
}

// ListRecent возвращает последних зарегистрированных пользователей (не более 200).
func (s *UserService) ListRecent(ctx context.Context, limit int) ([]*model.User, error) {
	if limit <= 0 || limit > maxRecentUsers {
		limit = maxRecentUsers
	}
	users, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []*model.User{}
	}
	return users, nil
}
