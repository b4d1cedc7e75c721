package service

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bigkaa/goartstore/forum-module/internal/discord"
	"github.com/bigkaa/goartstore/forum-module/internal/domain/model"
	"github.com/bigkaa/goartstore/forum-module/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Discord ---

type fakeGuildFetcher struct {
	calls atomic.Int32
	delay time.Duration

	mu    sync.Mutex
	roles []discord.Role
	err   error
}

func (f *fakeGuildFetcher) set(roles []discord.Role, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles, f.err = roles, err
}

func (f *fakeGuildFetcher) FetchGuildRoles(ctx context.Context, _ string) ([]discord.Role, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.roles), f.err
}

type fakeMemberFetcher struct {
	calls   int
	roleIDs []string
	err     error
}

func (f *fakeMemberFetcher) FetchMemberRoleIDs(_ context.Context, _, _ string) ([]string, error) {
	f.calls++
	return f.roleIDs, f.err
}

// --- Репозитории ---

type fakeUserRoleRepo struct {
	mu         sync.Mutex
	roles      map[string][]string
	replaceErr error
	replaced   int
}

func newFakeUserRoleRepo() *fakeUserRoleRepo {
	return &fakeUserRoleRepo{roles: map[string][]string{}}
}

func (f *fakeUserRoleRepo) ReplaceForUser(_ context.Context, userID string, roleIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.replaced++
	f.roles[userID] = slices.Clone(roleIDs)
	return nil
}

func (f *fakeUserRoleRepo) ListRoleIDs(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.roles[userID]), nil
}

func (f *fakeUserRoleRepo) ListRoleIDsForUsers(_ context.Context, userIDs []string) (map[string][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string][]string)
	for _, id := range userIDs {
		if r, ok := f.roles[id]; ok {
			out[id] = slices.Clone(r)
		}
	}
	return out, nil
}

type fakeRoleLabelRepo struct {
	labels map[string]model.RoleLabel
}

func (f *fakeRoleLabelRepo) List(_ context.Context) ([]model.RoleLabel, error) {
	out := make([]model.RoleLabel, 0, len(f.labels))
	for _, rl := range f.labels {
		out = append(out, rl)
	}
	return out, nil
}

func (f *fakeRoleLabelRepo) Upsert(_ context.Context, rl model.RoleLabel) error {
	if f.labels == nil {
		f.labels = map[string]model.RoleLabel{}
	}
	f.labels[rl.RoleID] = rl
	return nil
}

func (f *fakeRoleLabelRepo) Delete(_ context.Context, roleID string) error {
	if _, ok := f.labels[roleID]; !ok {
		return repository.ErrNotFound
	}
	delete(f.labels, roleID)
	return nil
}

type fakeAdminRepo struct {
	allow     map[string]bool
	userRoles map[string][]string
	err       error
}

func (f *fakeAdminRepo) List(_ context.Context) ([]string, error) {
	var out []string
	for id := range f.allow {
		out = append(out, id)
	}
	slices.Sort(out)
	return out, nil
}

func (f *fakeAdminRepo) Add(_ context.Context, roleID string) error {
	if f.allow == nil {
		f.allow = map[string]bool{}
	}
	f.allow[roleID] = true
	return nil
}

func (f *fakeAdminRepo) Remove(_ context.Context, roleID string) error {
	if !f.allow[roleID] {
		return repository.ErrNotFound
	}
	delete(f.allow, roleID)
	return nil
}

func (f *fakeAdminRepo) UserHasAccess(_ context.Context, userID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	for _, r := range f.userRoles[userID] {
		if f.allow[r] {
			return true, nil
		}
	}
	return false, nil
}

type fakeCategoryRepo struct {
	cats []*model.Category
}

func (f *fakeCategoryRepo) List(_ context.Context) ([]*model.Category, error) {
	return f.cats, nil
}

func (f *fakeCategoryRepo) GetByKey(_ context.Context, key string) (*model.Category, error) {
	for _, c := range f.cats {
		if c.Key == key {
			return c, nil
		}
	}
	return nil, repository.ErrNotFound
}

type fakePostRepo struct {
	posts     map[int64]*model.Post
	nextID    int64
	createErr error
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{posts: map[int64]*model.Post{}}
}

func (f *fakePostRepo) Create(_ context.Context, p *model.Post, _ time.Duration) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.nextID++
	p.ID = f.nextID
	p.CreatedAt = time.Unix(1700000000+f.nextID, 0).UTC()
	cp := *p
	f.posts[p.ID] = &cp
	return nil
}

func (f *fakePostRepo) GetByID(_ context.Context, id int64) (*model.Post, error) {
	p, ok := f.posts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakePostRepo) ListByCategory(_ context.Context, categoryID int64, limit int) ([]*model.Post, error) {
	var out []*model.Post
	for _, p := range f.posts {
		if p.CategoryID == categoryID && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePostRepo) SetClosed(_ context.Context, id int64, closed bool, _ string) (bool, error) {
	p, ok := f.posts[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if p.IsClosed == closed {
		return false, nil
	}
	p.IsClosed = closed
	return true, nil
}

type fakeReplyRepo struct {
	posts   *fakePostRepo
	replies []*model.Reply
	err     error
}

func (f *fakeReplyRepo) Create(_ context.Context, rp *model.Reply, _ time.Duration) error {
	if f.err != nil {
		return f.err
	}
	p, ok := f.posts.posts[rp.PostID]
	if !ok {
		return repository.ErrNotFound
	}
	if p.IsClosed {
		return repository.ErrClosed
	}
	rp.ID = int64(len(f.replies) + 1)
	rp.CreatedAt = time.Unix(1700001000, 0).UTC()
	f.replies = append(f.replies, rp)
	return nil
}

func (f *fakeReplyRepo) ListByPost(_ context.Context, postID int64) ([]*model.Reply, error) {
	var out []*model.Reply
	for _, r := range f.replies {
		if r.PostID == postID {
			out = append(out, r)
		}
	}
	return out, nil
}

// --- Публикация событий ---

type publishedEvent struct {
	kind        string
	categoryKey string
	postID      int64
	newPost     model.NewPostEvent
	newReply    model.NewReplyEvent
}

type fakePublisher struct {
	events []publishedEvent
}

func (f *fakePublisher) PublishNewPost(categoryKey string, ev model.NewPostEvent) {
	f.events = append(f.events, publishedEvent{kind: "post:new", categoryKey: categoryKey, postID: ev.ID, newPost: ev})
}

func (f *fakePublisher) PublishNewReply(postID int64, ev model.NewReplyEvent) {
	f.events = append(f.events, publishedEvent{kind: "reply:new", postID: postID, newReply: ev})
}

func (f *fakePublisher) PublishClosed(postID int64, categoryKey string) {
	f.events = append(f.events, publishedEvent{kind: "post:closed", postID: postID, categoryKey: categoryKey})
}

func (f *fakePublisher) PublishReopened(postID int64, categoryKey string) {
	f.events = append(f.events, publishedEvent{kind: "post:reopened", postID: postID, categoryKey: categoryKey})
}
