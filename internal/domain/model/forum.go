package model

import "time"

// Category — раздел форума. Набор фиксирован (seed-миграция).
type Category struct {
	ID          int64
	Key         string
	Name        string
	Description string
	// IsLocked — новые темы может создавать только администратор
	IsLocked bool
}

// Post — тема в разделе.
type Post struct {
	ID         int64
	CategoryID int64
	AuthorID   string
	Title      string
	Body       string
	CreatedAt  time.Time
	IsClosed   bool
	ClosedBy   *string
	ClosedAt   *time.Time

	// Денормализованные поля из JOIN (заполняются при чтении)
	CategoryKey  string
	CategoryName string
	Author       *User
	ReplyCount   int
}

// Reply — ответ в теме.
type Reply struct {
	ID        int64
	PostID    int64
	AuthorID  string
	Body      string
	CreatedAt time.Time

	Author *User
}

// --- Realtime-события ---

// NewPostEvent — payload события post:new.
type NewPostEvent struct {
	ID          int64  `json:"id"`
	CategoryKey string `json:"category_key"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	// CreatedAt — unix-время в секундах
	CreatedAt int64 `json:"created_at"`
}

// NewReplyEvent — payload события reply:new.
type NewReplyEvent struct {
	PostID    int64  `json:"post_id"`
	Body      string `json:"body"`
	Author    string `json:"author"`
	CreatedAt int64  `json:"created_at"`
}

// PostStateEvent — payload событий post:closed и post:reopened.
type PostStateEvent struct {
	PostID int64 `json:"post_id"`
}
