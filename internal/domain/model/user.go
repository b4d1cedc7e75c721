// Пакет model — доменные модели Forum Module.
package model

import (
	"fmt"
	"strconv"
	"time"
)

// User — пользователь форума. ID совпадает с Discord user ID.
// Создаётся/обновляется при каждом успешном входе через Discord.
type User struct {
	// ID — Discord snowflake
	ID       string
	Username string
	// Discriminator — устаревший тег Discord (может отсутствовать)
	Discriminator *string
	// Avatar — hash аватара Discord (может отсутствовать)
	Avatar     *string
	CreatedAt  time.Time
	LastSeenAt time.Time
	// LastPostAt — время последнего поста или ответа (nil — ещё не писал)
	LastPostAt *time.Time
}

// AvatarURL возвращает URL аватара на CDN Discord.
// Без собственного аватара — одна из пяти стандартных картинок по discriminator.
func (u *User) AvatarURL() string {
	if u == nil {
		return ""
	}
	if u.Avatar != nil && *u.Avatar != "" {
		return fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.png?size=96", u.ID, *u.Avatar)
	}
	disc := 0
	if u.Discriminator != nil {
		if n, err := strconv.Atoi(*u.Discriminator); err == nil && n > 0 {
			disc = n
		}
	}
	return fmt.Sprintf("https://cdn.discordapp.com/embed/avatars/%d.png", disc%5)
}

// Profile — данные пользователя, полученные от Discord при входе.
type Profile struct {
	ID            string
	Username      string
	Discriminator *string
	Avatar        *string
}

// Badge — отображаемый бейдж роли. Не хранится в БД,
// вычисляется из user_roles + role_labels + кэша ролей гильдии.
type Badge struct {
	RoleID string `json:"role_id"`
	Label  string `json:"label"`
	Style  string `json:"style"`
}

// RoleLabel — переопределение отображения роли, заданное администратором.
// Хранится в таблице role_labels.
type RoleLabel struct {
	RoleID string
	Label  string
	Style  string
}
