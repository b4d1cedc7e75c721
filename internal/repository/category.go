package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/forum-module/internal/domain/model"
)

// CategoryRepository — разделы форума (только чтение, набор задаётся миграцией).
type CategoryRepository interface {
	List(ctx context.Context) ([]*model.Category, error)
	GetByKey(ctx context.Context, key string) (*model.Category, error)
}

type categoryRepo struct {
	db DBTX
}

// NewCategoryRepository создаёт репозиторий разделов.
func NewCategoryRepository(db DBTX) CategoryRepository {
	return &categoryRepo{db: db}
}

const categoryColumns = `id, key, name, description, is_locked`

func (r *categoryRepo) List(ctx context.Context) ([]*model.Category, error) {
	query := fmt.Sprintf(`SELECT %s FROM categories ORDER BY id`, categoryColumns)
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения разделов: %w", err)
	}
	defer rows.Close()

	var result []*model.Category
	for rows.Next() {
		c := &model.Category{}
		if err := rows.Scan(&c.ID, &c.Key, &c.Name, &c.Description, &c.IsLocked); err != nil {
			return nil, fmt.Errorf("ошибка сканирования раздела: %w", err)
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (r *categoryRepo) GetByKey(ctx context.Context, key string) (*model.Category, error) {
	query := fmt.Sprintf(`SELECT %s FROM categories WHERE key = $1`, categoryColumns)
	c := &model.Category{}
	err := r.db.QueryRow(ctx, query, key).Scan(&c.ID, &c.Key, &c.Name, &c.Description, &c.IsLocked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения раздела: %w", err)
	}
	return c, nil
}
