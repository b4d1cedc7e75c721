package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/forum-module/internal/domain/model"
)

// PostRepository — темы форума.
type PostRepository interface {
	// Create создаёт тему и отмечает время публикации автора в одной транзакции.
	// cooldown > 0 — минимальный интервал между публикациями (ErrCooldown).
	Create(ctx context.Context, p *model.Post, cooldown time.Duration) error
	// GetByID возвращает тему с данными раздела и автора.
	GetByID(ctx context.Context, id int64) (*model.Post, error)
	// ListByCategory возвращает темы раздела, новые сверху.
	ListByCategory(ctx context.Context, categoryID int64, limit int) ([]*model.Post, error)
	// SetClosed закрывает или открывает тему.
	// changed = false, если тема уже была в этом состоянии.
	SetClosed(ctx context.Context, id int64, closed bool, actorID string) (changed bool, err error)
}

type postRepo struct {
	db DBTX
	tx *TxRunner
}

// NewPostRepository создаёт репозиторий тем.
func NewPostRepository(db DBTX) PostRepository {
	return &postRepo{db: db, tx: NewTxRunner(db)}
}

const postSelect = `
	SELECT p.id, p.category_id, p.author_id, p.title, p.body, p.created_at,
		p.is_closed, p.closed_by, p.closed_at,
		c.key, c.name,
		u.id, u.username, u.discriminator, u.avatar, u.created_at, u.last_seen_at, u.last_post_at,
		(SELECT COUNT(*) FROM replies r WHERE r.post_id = p.id)
	FROM posts p
	JOIN categories c ON c.id = p.category_id
	JOIN users u ON u.id = p.author_id`

func scanPost(row pgx.Row) (*model.Post, error) {
	p := &model.Post{Author: &model.User{}}
	a := p.Author
	err := row.Scan(
		&p.ID, &p.CategoryID, &p.AuthorID, &p.Title, &p.Body, &p.CreatedAt,
		&p.IsClosed, &p.ClosedBy, &p.ClosedAt,
		&p.CategoryKey, &p.CategoryName,
		&a.ID, &a.Username, &a.Discriminator, &a.Avatar, &a.CreatedAt, &a.LastSeenAt, &a.LastPostAt,
		&p.ReplyCount,
	)
	return p, err
}

func (r *postRepo) Create(ctx context.Context, p *model.Post, cooldown time.Duration) error {
	return r.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		if err := markPosted(ctx, tx, p.AuthorID, cooldown); err != nil {
			return err
		}

		err := tx.QueryRow(ctx, `
			INSERT INTO posts (category_id, author_id, title, body)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at`,
			p.CategoryID, p.AuthorID, p.Title, p.Body,
		).Scan(&p.ID, &p.CreatedAt)
		if err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("%w: раздел %d", ErrNotFound, p.CategoryID)
			}
			return fmt.Errorf("ошибка создания темы: %w", err)
		}
		return nil
	})
}

func (r *postRepo) GetByID(ctx context.Context, id int64) (*model.Post, error) {
	p, err := scanPost(r.db.QueryRow(ctx, postSelect+` WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения темы: %w", err)
	}
	return p, nil
}

func (r *postRepo) ListByCategory(ctx context.Context, categoryID int64, limit int) ([]*model.Post, error) {
	rows, err := r.db.Query(ctx, postSelect+`
		WHERE p.category_id = $1
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $2`, categoryID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения тем раздела: %w", err)
	}
	defer rows.Close()

	var result []*model.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования темы: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *postRepo) SetClosed(ctx context.Context, id int64, closed bool, actorID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE posts SET
			is_closed = $2,
			closed_by = CASE WHEN $2 THEN $3 ELSE NULL END,
			closed_at = CASE WHEN $2 THEN NOW() ELSE NULL END
		WHERE id = $1 AND is_closed <> $2`,
		id, closed, actorID,
	)
	if err != nil {
		return false, fmt.Errorf("ошибка изменения состояния темы: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	// Ничего не обновлено: тема уже в нужном состоянии или не существует
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM posts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("ошибка проверки темы: %w", err)
	}
	if !exists {
		return false, ErrNotFound
	}
	return false, nil
}

// markPosted обновляет users.last_post_at с учётом cooldown.
// Условие проверяется в UPDATE, поэтому параллельные публикации одного
// пользователя не проходят ограничение одновременно.
func markPosted(ctx context.Context, db DBTX, userID string, cooldown time.Duration) error {
	tag, err := db.Exec(ctx, `
		UPDATE users SET last_post_at = NOW()
		WHERE id = $1
			AND (last_post_at IS NULL OR last_post_at <= NOW() - make_interval(secs => $2))`,
		userID, cooldown.Seconds(),
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления last_post_at: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return fmt.Errorf("ошибка проверки пользователя: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: пользователь %s", ErrNotFound, userID)
	}
	return ErrCooldown
}
