// Пакет badge — правила построения бейджей пользователя из ролей гильдии.
// Бейдж не хранится: он вычисляется из снимка ролей пользователя,
// переопределений администратора (role_labels) и кэша имён ролей Discord.
//
// Приоритет источников для каждой роли:
//  1. переопределение администратора (label и style как есть);
//  2. имя роли из кэша гильдии (style угадывается по имени);
//  3. иначе роль не даёт бейджа.
package badge

import (
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/bigkaa/goartstore/forum-module/internal/domain/model"
)

// Допустимые стили бейджей.
const (
	StyleOwner    = "owner"
	StyleAdmin    = "admin"
	StyleMod      = "mod"
	StyleVerified = "verified"
	StyleSeller   = "seller"
	StyleNeutral  = "neutral"
)

var validStyles = map[string]bool{
	StyleOwner:    true,
	StyleAdmin:    true,
	StyleMod:      true,
	StyleVerified: true,
	StyleSeller:   true,
	StyleNeutral:  true,
}

// styleRule — подстроки имени роли, дающие стиль. Порядок правил — приоритет.
type styleRule struct {
	style   string
	needles []string
}

var styleRules = []styleRule{
	{StyleOwner, []string{"owner", "founder"}},
	{StyleAdmin, []string{"admin"}},
	{StyleMod, []string{"mod"}},
	{StyleVerified, []string{"verify"}},
	{StyleSeller, []string{"seller", "vendor"}},
}

// Styles возвращает допустимые стили в порядке приоритета.
func Styles() []string {
	return []string{StyleOwner, StyleAdmin, StyleMod, StyleVerified, StyleSeller, StyleNeutral}
}

// GuessStyle угадывает стиль по имени роли (регистронезависимый поиск подстроки).
func GuessStyle(name string) string {
	n := strings.ToLower(name)
	for _, rule := range styleRules {
		for _, needle := range rule.needles {
			if strings.Contains(n, needle) {
				return rule.style
			}
		}
	}
	return StyleNeutral
}

// NormalizeStyle приводит стиль к допустимому значению.
// Неизвестный или пустой стиль становится neutral.
func NormalizeStyle(style string) string {
	s := strings.ToLower(strings.TrimSpace(style))
	if validStyles[s] {
		return s
	}
	return StyleNeutral
}

// Build строит бейджи для списка ролей пользователя.
// lookup возвращает имя роли из кэша гильдии.
// Порядок результата совпадает с порядком roleIDs; сортировку выполняет Sort.
func Build(roleIDs []string, overrides map[string]model.RoleLabel, lookup func(roleID string) (string, bool)) []model.Badge {
	badges := make([]model.Badge, 0, len(roleIDs))
	for _, rid := range roleIDs {
		if ov, ok := overrides[rid]; ok {
			badges = append(badges, model.Badge{
				RoleID: rid,
				Label:  ov.Label,
				Style:  NormalizeStyle(ov.Style),
			})
			continue
		}
		if lookup == nil {
			continue
		}
		name, ok := lookup(rid)
		if !ok || name == "" {
			continue
		}
		badges = append(badges, model.Badge{
			RoleID: rid,
			Label:  name,
			Style:  GuessStyle(name),
		})
	}
	return badges
}

// Sort сортирует бейджи по label с учётом правил английской локали.
// Сортировка стабильная: при равных label сохраняется исходный порядок ролей.
func Sort(badges []model.Badge) {
	// collate.Collator не потокобезопасен, поэтому создаётся на каждый вызов
	c := collate.New(language.English)
	slices.SortStableFunc(badges, func(a, b model.Badge) int {
		return c.CompareString(a.Label, b.Label)
	})
}

// Resolve — Build + Sort.
func Resolve(roleIDs []string, overrides map[string]model.RoleLabel, lookup func(roleID string) (string, bool)) []model.Badge {
	badges := Build(roleIDs, overrides, lookup)
	Sort(badges)
	return badges
}
