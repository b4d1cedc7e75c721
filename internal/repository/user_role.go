package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// UserRoleRepository — снимки ролей пользователей (таблица user_roles).
type UserRoleRepository interface {
	// ReplaceForUser атомарно заменяет все роли пользователя новым набором.
	// При ошибке в БД остаётся предыдущий снимок.
	ReplaceForUser(ctx context.Context, userID string, roleIDs []string) error
	// ListRoleIDs возвращает роли пользователя в порядке последней синхронизации.
	ListRoleIDs(ctx context.Context, userID string) ([]string, error)
	// ListRoleIDsForUsers возвращает роли нескольких пользователей одним запросом.
	ListRoleIDsForUsers(ctx context.Context, userIDs []string) (map[string][]string, error)
}

type userRoleRepo struct {
	db DBTX
	tx *TxRunner
}

// NewUserRoleRepository создаёт репозиторий ролей пользователей.
func NewUserRoleRepository(db DBTX) UserRoleRepository {
	return &userRoleRepo{db: db, tx: NewTxRunner(db)}
}

func (r *userRoleRepo) ReplaceForUser(ctx context.Context, userID string, roleIDs []string) error {
	if roleIDs == nil {
		roleIDs = []string{}
	}

	return r.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("ошибка удаления ролей пользователя: %w", err)
		}
		if len(roleIDs) == 0 {
			return nil
		}

		// Дубликаты в ответе Discord отбрасываются, первая позиция сохраняется
		_, err := tx.Exec(ctx, `
			INSERT INTO user_roles (user_id, role_id, position)
			SELECT $1, r.role_id, r.pos
			FROM unnest($2::text[]) WITH ORDINALITY AS r(role_id, pos)
			ON CONFLICT (user_id, role_id) DO NOTHING`,
			userID, roleIDs,
		)
		if err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("%w: пользователь %s", ErrNotFound, userID)
			}
			return fmt.Errorf("ошибка записи ролей пользователя: %w", err)
		}
		return nil
	})
}

func (r *userRoleRepo) ListRoleIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.Query(ctx, `
		SELECT role_id
		FROM user_roles
		WHERE user_id = $1
		ORDER BY position, role_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения ролей пользователя: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования ролей пользователя: %w", err)
	}
	return ids, nil
}

func (r *userRoleRepo) ListRoleIDsForUsers(ctx context.Context, userIDs []string) (map[string][]string, error) {
	result := make(map[string][]string, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT user_id, role_id
		FROM user_roles
		WHERE user_id = ANY($1)
		ORDER BY user_id, position, role_id`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения ролей пользователей: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID, roleID string
		if err := rows.Scan(&userID, &roleID); err != nil {
			return nil, fmt.Errorf("ошибка сканирования ролей пользователей: %w", err)
		}
		result[userID] = append(result[userID], roleID)
	}
	return result, rows.Err()
}
