package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/forum-module/internal/domain/model"
)

// ReplyRepository — ответы в темах.
type ReplyRepository interface {
	// Create добавляет ответ. ErrNotFound — темы нет, ErrClosed — тема закрыта,
	// ErrCooldown — автор публикует слишком часто.
	Create(ctx context.Context, rp *model.Reply, cooldown time.Duration) error
	// ListByPost возвращает ответы темы, старые сверху.
	ListByPost(ctx context.Context, postID int64) ([]*model.Reply, error)
}

type replyRepo struct {
	db DBTX
	tx *TxRunner
}

// NewReplyRepository создаёт репозиторий ответов.
func NewReplyRepository(db DBTX) ReplyRepository {
	return &replyRepo{db: db, tx: NewTxRunner(db)}
}

func (r *replyRepo) Create(ctx context.Context, rp *model.Reply, cooldown time.Duration) error {
	return r.tx.RunInTx(ctx, func(tx pgx.Tx) error {
		// FOR SHARE не даёт закрыть тему между проверкой и вставкой
		var closed bool
		err := tx.QueryRow(ctx, `SELECT is_closed FROM posts WHERE id = $1 FOR SHARE`, rp.PostID).Scan(&closed)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("ошибка проверки темы: %w", err)
		}
		if closed {
			return ErrClosed
		}

		if err := markPosted(ctx, tx, rp.AuthorID, cooldown); err != nil {
			return err
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO replies (post_id, author_id, body)
			VALUES ($1, $2, $3)
			RETURNING id, created_at`,
			rp.PostID, rp.AuthorID, rp.Body,
		).Scan(&rp.ID, &rp.CreatedAt)
		if err != nil {
			return fmt.Errorf("ошибка создания ответа: %w", err)
		}
		return nil
	})
}

func (r *replyRepo) ListByPost(ctx context.Context, postID int64) ([]*model.Reply, error) {
	rows, err := r.db.Query(ctx, `
		SELECT r.id, r.post_id, r.author_id, r.body, r.created_at,
			u.id, u.username, u.discriminator, u.avatar, u.created_at, u.last_seen_at, u.last_post_at
		FROM replies r
		JOIN users u ON u.id = r.author_id
		WHERE r.post_id = $1
		ORDER BY r.created_at, r.id`, postID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения ответов: %w", err)
	}
	defer rows.Close()

	var result []*model.Reply
	for rows.Next() {
		rp := &model.Reply{Author: &model.User{}}
		a := rp.Author
		if err := rows.Scan(
			&rp.ID, &rp.PostID, &rp.AuthorID, &rp.Body, &rp.CreatedAt,
			&a.ID, &a.Username, &a.Discriminator, &a.Avatar, &a.CreatedAt, &a.LastSeenAt, &a.LastPostAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования ответа: %w", err)
		}
		result = append(result, rp)
	}
	return result, rows.Err()
}
