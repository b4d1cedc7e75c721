// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"

	"github.com/bigkaa/goartstore/forum-module/internal/discord"
)

var (
	// ErrUpstream — Discord недоступен или отклонил запрос.
	// Для запросов пользователя не фатальна: данные ролей остаются прежними.
	ErrUpstream = discord.ErrUpstream
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrForbidden — недостаточно прав.
	ErrForbidden = errors.New("недостаточно прав")
	// ErrPostClosed — тема закрыта для ответов.
	ErrPostClosed = errors.New("тема закрыта")
	// ErrCooldown — публикации слишком часто.
	ErrCooldown = errors.New("слишком частые публикации, попробуйте позже")
)
