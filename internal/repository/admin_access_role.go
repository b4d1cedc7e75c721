package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// AdminAccessRoleRepository — роли с доступом к администрированию.
type AdminAccessRoleRepository interface {
	// List возвращает ID ролей allowlist по возрастанию.
	List(ctx context.Context) ([]string, error)
	// Add добавляет роль (повторное добавление — не ошибка).
	Add(ctx context.Context, roleID string) error
	// Remove удаляет роль. ErrNotFound, если её не было.
	Remove(ctx context.Context, roleID string) error
	// UserHasAccess — есть ли у пользователя хотя бы одна роль из allowlist.
	UserHasAccess(ctx context.Context, userID string) (bool, error)
}

type adminAccessRoleRepo struct {
	db DBTX
}

// NewAdminAccessRoleRepository создаёт репозиторий allowlist ролей.
func NewAdminAccessRoleRepository(db DBTX) AdminAccessRoleRepository {
	return &adminAccessRoleRepo{db: db}
}

func (r *adminAccessRoleRepo) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT role_id FROM admin_access_roles ORDER BY role_id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения admin access roles: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования admin access roles: %w", err)
	}
	return ids, nil
}

func (r *adminAccessRoleRepo) Add(ctx context.Context, roleID string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO admin_access_roles (role_id) VALUES ($1) ON CONFLICT (role_id) DO NOTHING`,
		roleID,
	)
	if err != nil {
		return fmt.Errorf("ошибка добавления admin access role: %w", err)
	}
	return nil
}

func (r *adminAccessRoleRepo) Remove(ctx context.Context, roleID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM admin_access_roles WHERE role_id = $1`, roleID)
	if err != nil {
		return fmt.Errorf("ошибка удаления admin access role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *adminAccessRoleRepo) UserHasAccess(ctx context.Context, userID string) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM user_roles ur
			JOIN admin_access_roles aar ON aar.role_id = ur.role_id
			WHERE ur.user_id = $1
		)`, userID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки admin доступа: %w", err)
	}
	return ok, nil
}
