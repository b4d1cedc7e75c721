package repository

import (
	"context"
	"fmt"

	"github.com/bigkaa/goartstore/forum-module/internal/domain/model"
)

// RoleLabelRepository — переопределения отображения ролей (таблица role_labels).
type RoleLabelRepository interface {
	// List возвращает все переопределения, отсортированные по label.
	List(ctx context.Context) ([]model.RoleLabel, error)
	// Upsert создаёт или обновляет переопределение роли.
	Upsert(ctx context.Context, rl model.RoleLabel) error
	// Delete удаляет переопределение. ErrNotFound, если его не было.
	Delete(ctx context.Context, roleID string) error
}

type roleLabelRepo struct {
	db DBTX
}

// NewRoleLabelRepository создаёт репозиторий переопределений ролей.
func NewRoleLabelRepository(db DBTX) RoleLabelRepository {
	return &roleLabelRepo{db: db}
}

func (r *roleLabelRepo) List(ctx context.Context) ([]model.RoleLabel, error) {
	rows, err := r.db.Query(ctx, `SELECT role_id, label, style FROM role_labels ORDER BY label, role_id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка role labels: %w", err)
	}
	defer rows.Close()

	var result []model.RoleLabel
	for rows.Next() {
		var rl model.RoleLabel
		if err := rows.Scan(&rl.RoleID, &rl.Label, &rl.Style); err != nil {
			return nil, fmt.Errorf("ошибка сканирования role label: %w", err)
		}
		result = append(result, rl)
	}
	return result, rows.Err()
}

func (r *roleLabelRepo) Upsert(ctx context.Context, rl model.RoleLabel) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO role_labels (role_id, label, style)
		VALUES ($1, $2, $3)
		ON CONFLICT (role_id) DO UPDATE SET
			label = EXCLUDED.label,
			style = EXCLUDED.style`,
		rl.RoleID, rl.Label, rl.Style,
	)
	if err != nil {
		return fmt.Errorf("ошибка upsert role label: %w", err)
	}
	return nil
}

func (r *roleLabelRepo) Delete(ctx context.Context, roleID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM role_labels WHERE role_id = $1`, roleID)
	if err != nil {
		return fmt.Errorf("ошибка удаления role label: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
