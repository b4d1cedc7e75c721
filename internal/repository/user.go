package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/forum-module/internal/domain/model"
)

// UserRepository — интерфейс доступа к таблице users.
type UserRepository interface {
	// Upsert создаёт пользователя или обновляет профиль и last_seen_at.
	Upsert(ctx context.Context, p model.Profile) (*model.User, error)
	// GetByID возвращает пользователя по Discord ID.
	GetByID(ctx context.Context, id string) (*model.User, error)
	// ListRecent возвращает последних зарегистрированных пользователей.
	ListRecent(ctx context.Context, limit int) ([]*model.User, error)
}

type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

const userColumns = `id, username, discriminator, avatar, created_at, last_seen_at, last_post_at`

func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(
		&u.ID, &u.Username, &u.Discriminator, &u.Avatar,
		&u.CreatedAt, &u.LastSeenAt, &u.LastPostAt,
	)
	return u, err
}

func (r *userRepo) Upsert(ctx context.Context, p model.Profile) (*model.User, error) {
	query := fmt.Sprintf(`
		INSERT INTO users (id, username, discriminator, avatar)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			discriminator = EXCLUDED.discriminator,
			avatar = EXCLUDED.avatar,
			last_seen_at = NOW()
		RETURNING %s`, userColumns)

	u, err := scanUser(r.db.QueryRow(ctx, query, p.ID, p.Username, p.Discriminator, p.Avatar))
	if err != nil {
		return nil, fmt.Errorf("ошибка upsert пользователя: %w", err)
	}
	return u, nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	u, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return u, nil
}

func (r *userRepo) ListRecent(ctx context.Context, limit int) ([]*model.User, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM users
		ORDER BY created_at DESC
		LIMIT $1`, userColumns)

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка пользователей: %w", err)
	}
	defer rows.Close()

	var result []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования пользователя: %w", err)
		}
		result = append(result, u)
	}
	return result, rows.Err()
}
