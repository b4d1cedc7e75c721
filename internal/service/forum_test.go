package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bigkaa/goartstore/forum-module/internal/domain/model"
	"github.com/bigkaa/goartstore/forum-module/internal/repository"
)

type forumFixture struct {
	svc     *ForumService
	posts   *fakePostRepo
	replies *fakeReplyRepo
	pub     *fakePublisher
}

func newForumFixture() *forumFixture {
	cats := &fakeCategoryRepo{cats: []*model.Category{
		{ID: 1, Key: "feedback", Name: "Feedback"},
		{ID: 2, Key: "refunds", Name: "Refunds", IsLocked: true},
	}}
	posts := newFakePostRepo()
	replies := &fakeReplyRepo{posts: posts}
	pub := &fakePublisher{}
	return &forumFixture{
		svc:     NewForumService(cats, posts, replies, pub, 0, testLogger()),
		posts:   posts,
		replies: replies,
		pub:     pub,
	}
}

var (
	author = Actor{ID: "u1", Username: "alice"}
	other  = Actor{ID: "u2", Username: "bob"}
	admin  = Actor{ID: "u3", Username: "root", IsAdmin: true}
)

// TestCreatePost_Validation проверяет ограничения заголовка и текста.
func TestCreatePost_Validation(t *testing.T) {
	tests := []struct {
		name  string
		title string
		body  string
		ok    bool
	}{
		{"корректная тема", "Hello", "Hello world", true},
		{"короткий заголовок", "Hi", "Hello world", false},
		{"заголовок из пробелов", "     ", "Hello world", false},
		{"заголовок 200 символов", strings.Repeat("я", 200), "Hello world", true},
		{"заголовок 201 символ", strings.Repeat("я", 201), "Hello world", false},
		{"короткий текст", "Hello", "abcd", false},
		{"текст с пробелами по краям", "Hello", "   abcd   ", false},
		{"длинный текст", "Hello", strings.Repeat("a", 20001), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newForumFixture()
			_, err := f.svc.CreatePost(context.Background(), author, "feedback", tt.title, tt.body)
			if tt.ok && err != nil {
				t.Fatalf("ожидался успех, получено: %v", err)
			}
			if !tt.ok {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ожидалась ErrValidation, получено: %v", err)
				}
				if len(f.pub.events) != 0 {
					t.Errorf("при ошибке валидации опубликовано %d событий", len(f.pub.events))
				}
			}
		})
	}
}

// TestCreatePost_PublishesAfterCommit — post:new уходит в группу раздела.
func TestCreatePost_PublishesAfterCommit(t *testing.T) {
	f := newForumFixture()
	post, err := f.svc.CreatePost(context.Background(), author, "feedback", "  Bug in checkout ", "Checkout fails")
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	if post.Title != "Bug in checkout" {
		t.Errorf("Title = %q, ожидался обрезанный заголовок", post.Title)
	}
	if len(f.pub.events) != 1 {
		t.Fatalf("событий: %d, ожидалось 1", len(f.pub.events))
	}
	ev := f.pub.events[0]
	if ev.kind != "post:new" || ev.categoryKey != "feedback" {
		t.Errorf("событие = %s в %q", ev.kind, ev.categoryKey)
	}
	want := model.NewPostEvent{
		ID:          post.ID,
		CategoryKey: "feedback",
		Title:       "Bug in checkout",
		Author:      "alice",
		CreatedAt:   post.CreatedAt.Unix(),
	}
	if ev.newPost != want {
		t.Errorf("payload = %+v, ожидалось %+v", ev.newPost, want)
	}
}

// TestCreatePost_Errors проверяет ошибки раздела, прав и частоты публикаций.
func TestCreatePost_Errors(t *testing.T) {
	tests := []struct {
		name      string
		actor     Actor
		category  string
		createErr error
		wantErr   error
	}{
		{"неизвестный раздел", author, "nope", nil, ErrNotFound},
		{"закрытый раздел", author, "refunds", nil, ErrForbidden},
		{"слишком часто", author, "feedback", repository.ErrCooldown, ErrCooldown},
		{"автор не найден", author, "feedback", repository.ErrNotFound, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newForumFixture()
			f.posts.createErr = tt.createErr
			_, err := f.svc.CreatePost(context.Background(), tt.actor, tt.category, "Hello", "Hello world")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ожидалась %v, получено: %v", tt.wantErr, err)
			}
			if len(f.pub.events) != 0 {
				t.Errorf("при ошибке опубликовано %d событий", len(f.pub.events))
			}
		})
	}
}

// TestCreatePost_LockedCategoryAdmin — администратор пишет в закрытый раздел.
func TestCreatePost_LockedCategoryAdmin(t *testing.T) {
	f := newForumFixture()
	if _, err := f.svc.CreatePost(context.Background(), admin, "refunds", "Policy", "Refund policy text"); err != nil {
		t.Fatalf("CreatePost администратором: %v", err)
	}
}

// TestCreateReply проверяет ответы и событие reply:new.
func TestCreateReply(t *testing.T) {
	f := newForumFixture()
	ctx := context.Background()
	post, err := f.svc.CreatePost(ctx, author, "feedback", "Hello", "Hello world")
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	f.pub.events = nil

	if _, err := f.svc.CreateReply(ctx, other, post.ID, "   "); !errors.Is(err, ErrValidation) {
		t.Errorf("пустой ответ: ожидалась ErrValidation, получено %v", err)
	}
	if _, err := f.svc.CreateReply(ctx, other, 999, "ok"); !errors.Is(err, ErrNotFound) {
		t.Errorf("несуществующая тема: ожидалась ErrNotFound, получено %v", err)
	}

	reply, err := f.svc.CreateReply(ctx, other, post.ID, " +1 ")
	if err != nil {
		t.Fatalf("CreateReply: %v", err)
	}
	if len(f.pub.events) != 1 {
		t.Fatalf("событий: %d, ожидалось 1", len(f.pub.events))
	}
	ev := f.pub.events[0]
	want := model.NewReplyEvent{PostID: post.ID, Body: "+1", Author: "bob", CreatedAt: reply.CreatedAt.Unix()}
	if ev.kind != "reply:new" || ev.postID != post.ID || ev.newReply != want {
		t.Errorf("событие = %+v, ожидалось reply:new %+v", ev, want)
	}

	_, replies, err := f.svc.GetPost(ctx, post.ID)
	if err != nil {
		t.Fatalf("GetPost: %v", err)
	}
	if len(replies) != 1 || replies[0].Body != "+1" {
		t.Errorf("ответы = %v", replies)
	}
}

// TestSetClosed проверяет права, идемпотентность и события закрытия.
func TestSetClosed(t *testing.T) {
	f := newForumFixture()
	ctx := context.Background()
	post, err := f.svc.CreatePost(ctx, author, "feedback", "Hello", "Hello world")
	if err != nil {
		t.Fatalf("CreatePost: %v", err)
	}
	f.pub.events = nil

	if _, err := f.svc.SetClosed(ctx, other, post.ID, true); !errors.Is(err, ErrForbidden) {
		t.Fatalf("чужая тема: ожидалась ErrForbidden, получено %v", err)
	}

	got, err := f.svc.SetClosed(ctx, author, post.ID, true)
	if err != nil {
		t.Fatalf("SetClosed автором: %v", err)
	}
	if !got.IsClosed || got.ClosedBy == nil || *got.ClosedBy != author.ID {
		t.Errorf("тема после закрытия: %+v", got)
	}

	// Повторное закрытие ничего не публикует
	if _, err := f.svc.SetClosed(ctx, admin, post.ID, true); err != nil {
		t.Fatalf("повторный SetClosed: %v", err)
	}

	if _, err := f.svc.CreateReply(ctx, other, post.ID, "late"); !errors.Is(err, ErrPostClosed) {
		t.Errorf("ответ в закрытую тему: ожидалась ErrPostClosed, получено %v", err)
	}

	if _, err := f.svc.SetClosed(ctx, admin, post.ID, false); err != nil {
		t.Fatalf("открытие администратором: %v", err)
	}

	kinds := make([]string, len(f.pub.events))
	for i, ev := range f.pub.events {
		kinds[i] = ev.kind
		if ev.postID != post.ID || ev.categoryKey != "feedback" {
			t.Errorf("событие %s: post=%d category=%q", ev.kind, ev.postID, ev.categoryKey)
		}
	}
	if strings.Join(kinds, ",") != "post:closed,post:reopened" {
		t.Errorf("события = %v, ожидалось [post:closed post:reopened]", kinds)
	}

	if _, err := f.svc.SetClosed(ctx, admin, 999, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("несуществующая тема: ожидалась ErrNotFound, получено %v", err)
	}
}

// TestListPosts проверяет раздел и пустой список тем.
func TestListPosts(t *testing.T) {
	f := newForumFixture()
	ctx := context.Background()

	cat, posts, err := f.svc.ListPosts(ctx, "refunds")
	if err != nil {
		t.Fatalf("ListPosts: %v", err)
	}
	if cat.Key != "refunds" || posts == nil || len(posts) != 0 {
		t.Errorf("ListPosts = %v, %v", cat, posts)
	}
	if _, _, err := f.svc.ListPosts(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}

	cats, err := f.svc.ListCategories(ctx)
	if err != nil || len(cats) != 2 {
		t.Errorf("ListCategories = %v, %v", cats, err)
	}
}
