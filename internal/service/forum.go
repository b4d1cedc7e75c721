// forum.go — разделы, темы и ответы.
//
// Realtime-события публикуются только после успешного коммита записи.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bigkaa/goartstore/forum-module/internal/domain/model"
	"github.com/bigkaa/goartstore/forum-module/internal/repository"
)

// Ограничения длины текста (в символах).
const (
	minTitleLen = 3
	maxTitleLen = 200
	minBodyLen  = 5
	maxBodyLen  = 20000

	// postsPageSize — темы на странице раздела.
	postsPageSize = 100
)

// EventPublisher — публикация realtime-событий (realtime.Hub).
type EventPublisher interface {
	PublishNewPost(categoryKey string, ev model.NewPostEvent)
	PublishNewReply(postID int64, ev model.NewReplyEvent)
	PublishClosed(postID int64, categoryKey string)
	PublishReopened(postID int64, categoryKey string)
}

// Actor — автор действия.
type Actor struct {
	ID       string
	Username string
	IsAdmin  bool
}

// ForumService — бизнес-логика форума.
type ForumService struct {
	categories repository.CategoryRepository
	posts      repository.PostRepository
	replies    repository.ReplyRepository
	publisher  EventPublisher
	cooldown   time.Duration
	logger     *slog.Logger
}

// NewForumService создаёт сервис форума.
// cooldown — минимальный интервал между публикациями пользователя (0 — без ограничения).
func NewForumService(
	categories repository.CategoryRepository,
	posts repository.PostRepository,
	replies repository.ReplyRepository,
	publisher EventPublisher,
	cooldown time.Duration,
	logger *slog.Logger,
) *ForumService {
	return &ForumService{
		categories: categories,
		posts:      posts,
		replies:    replies,
		publisher:  publisher,
		cooldown:   cooldown,
		logger:     logger.With(slog.String("component", "forum")),
	}
}

// ListCategories возвращает все разделы.
func (s *ForumService) ListCategories(ctx context.Context) ([]*model.Category, error) {
	cats, err := s.categories.List(ctx)
	if err != nil {
		return nil, err
	}
	if cats == nil {
		cats = []*model.Category{}
	}
	return cats, nil
}

// GetCategory возвращает раздел по ключу.
func (s *ForumService) GetCategory(ctx context.Context, key string) (*model.Category, error) {
	cat, err := s.categories.GetByKey(ctx, key)
	if err != nil {
		return nil, mapRepoError(err, "раздел "+key)
	}
	return cat, nil
}

// ListPosts возвращает раздел и его темы, новые сверху.
func (s *ForumService) ListPosts(ctx context.Context, categoryKey string) (*model.Category, []*model.Post, error) {
	cat, err := s.GetCategory(ctx, categoryKey)
	if err != nil {
		return nil, nil, err
	}
	posts, err := s.posts.ListByCategory(ctx, cat.ID, postsPageSize)
	if err != nil {
		return nil, nil, err
	}
	if posts == nil {
		posts = []*model.Post{}
	}
	return cat, posts, nil
}

// GetPost возвращает тему и ответы (старые сверху).
func (s *ForumService) GetPost(ctx context.Context, id int64) (*model.Post, []*model.Reply, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, nil, mapRepoError(err, fmt.Sprintf("тема %d", id))
	}
	replies, err := s.replies.ListByPost(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if replies == nil {
		replies = []*model.Reply{}
	}
	return post, replies, nil
}

// CreatePost создаёт тему в разделе и публикует post:new в группу раздела.
func (s *ForumService) CreatePost(ctx context.Context, actor Actor, categoryKey, title, body string) (*model.Post, error) {
	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)
	if n := utf8.RuneCountInString(title); n < minTitleLen || n > maxTitleLen {
		return nil, fmt.Errorf("%w: длина заголовка должна быть от %d до %d символов", ErrValidation, minTitleLen, maxTitleLen)
	}
	if n := utf8.RuneCountInString(body); n < minBodyLen || n > maxBodyLen {
		return nil, fmt.Errorf("%w: длина текста должна быть от %d до %d символов", ErrValidation, minBodyLen, maxBodyLen)
	}

	cat, err := s.GetCategory(ctx, categoryKey)
	if err != nil {
		return nil, err
	}
	if cat.IsLocked && !actor.IsAdmin {
		return nil, fmt.Errorf("%w: раздел %s закрыт для новых тем", ErrForbidden, cat.Key)
	}

	post := &model.Post{
		CategoryID:   cat.ID,
		AuthorID:     actor.ID,
		Title:        title,
		Body:         body,
		CategoryKey:  cat.Key,
		CategoryName: cat.Name,
	}
	if err := s.posts.Create(ctx, post, s.cooldown); err != nil {
		return nil, mapRepoError(err, "автор "+actor.ID)
	}

	s.logger.Info("Тема создана",
		slog.Int64("post_id", post.ID),
		slog.String("category", cat.Key),
		slog.String("author_id", actor.ID),
	)

	s.publisher.PublishNewPost(cat.Key, model.NewPostEvent{
		ID:          post.ID,
		CategoryKey: cat.Key,
		Title:       post.Title,
		Author:      actor.Username,
		CreatedAt:   post.CreatedAt.Unix(),
	})
	return post, nil
}

// CreateReply добавляет ответ и публикует reply:new в группу темы.
func (s *ForumService) CreateReply(ctx context.Context, actor Actor, postID int64, body string) (*model.Reply, error) {
	body = strings.TrimSpace(body)
	if n := utf8.RuneCountInString(body); n == 0 || n > maxBodyLen {
		return nil, fmt.Errorf("%w: длина ответа должна быть от 1 до %d символов", ErrValidation, maxBodyLen)
	}

	reply := &model.Reply{PostID: postID, AuthorID: actor.ID, Body: body}
	if err := s.replies.Create(ctx, reply, s.cooldown); err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("тема %d", postID))
	}

	s.logger.Info("Ответ добавлен",
		slog.Int64("post_id", postID),
		slog.Int64("reply_id", reply.ID),
		slog.String("author_id", actor.ID),
	)

	s.publisher.PublishNewReply(postID, model.NewReplyEvent{
		PostID:    postID,
		Body:      body,
		Author:    actor.Username,
		CreatedAt: reply.CreatedAt.Unix(),
	})
	return reply, nil
}

// SetClosed закрывает или открывает тему. Разрешено автору и администратору.
// Повторное действие в том же состоянии ничего не публикует.
func (s *ForumService) SetClosed(ctx context.Context, actor Actor, postID int64, closed bool) (*model.Post, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("тема %d", postID))
	}
	if post.AuthorID != actor.ID && !actor.IsAdmin {
		return nil, fmt.Errorf("%w: закрывать тему может автор или администратор", ErrForbidden)
	}

	changed, err := s.posts.SetClosed(ctx, postID, closed, actor.ID)
	if err != nil {
		return nil, mapRepoError(err, fmt.Sprintf("тема %d", postID))
	}
	post.IsClosed = closed
	if !changed {
		return post, nil
	}

	if closed {
		now := time.Now().UTC()
		post.ClosedBy = &actor.ID
		post.ClosedAt = &now
		s.publisher.PublishClosed(postID, post.CategoryKey)
	} else {
		post.ClosedBy = nil
		post.ClosedAt = nil
		s.publisher.PublishReopened(postID, post.CategoryKey)
	}

	s.logger.Info("Состояние темы изменено",
		slog.Int64("post_id", postID),
		slog.Bool("closed", closed),
		slog.String("actor_id", actor.ID),
	)
	return post, nil
}

// mapRepoError переводит ошибки репозиториев в ошибки сервисного слоя.
func mapRepoError(err error, subject string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, subject)
	case errors.Is(err, repository.ErrClosed):
		return fmt.Errorf("%w: %s", ErrPostClosed, subject)
	case errors.Is(err, repository.ErrCooldown):
		return ErrCooldown
	default:
		return err
	}
}
