package service

import (
	"context"
	"errors"
	"testing"
)

// TestAdminAccess_CanAdmin проверяет пересечение ролей с allowlist.
func TestAdminAccess_CanAdmin(t *testing.T) {
	repo := &fakeAdminRepo{
		allow: map[string]bool{"admin-role": true},
		userRoles: map[string][]string{
			"admin":   {"member", "admin-role"},
			"member":  {"member"},
			"noroles": {},
		},
	}
	s := NewAdminAccessService(repo, testLogger())

	tests := []struct {
		name   string
		userID string
		want   bool
	}{
		{"роль из allowlist", "admin", true},
		{"без роли из allowlist", "member", false},
		{"без ролей", "noroles", false},
		{"неизвестный пользователь", "ghost", false},
		{"пустой id", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.CanAdmin(context.Background(), tt.userID)
			if err != nil {
				t.Fatalf("CanAdmin: %v", err)
			}
			if got != tt.want {
				t.Errorf("CanAdmin(%q) = %v, ожидалось %v", tt.userID, got, tt.want)
			}
		})
	}
}

// TestAdminAccess_EmptyAllowlist — пустой allowlist не даёт доступа никому.
func TestAdminAccess_EmptyAllowlist(t *testing.T) {
	repo := &fakeAdminRepo{userRoles: map[string][]string{"u1": {"r1"}}}
	s := NewAdminAccessService(repo, testLogger())

	ok, err := s.CanAdmin(context.Background(), "u1")
	if err != nil || ok {
		t.Errorf("CanAdmin = %v, %v; ожидалось false, nil", ok, err)
	}
}

// TestAdminAccess_StoreError — ошибка БД возвращается, доступ не даётся.
func TestAdminAccess_StoreError(t *testing.T) {
	dbErr := errors.New("connection refused")
	s := NewAdminAccessService(&fakeAdminRepo{err: dbErr}, testLogger())

	ok, err := s.CanAdmin(context.Background(), "u1")
	if ok || !errors.Is(err, dbErr) {
		t.Errorf("CanAdmin = %v, %v; ожидалось false и ошибка БД", ok, err)
	}
}

// TestAdminAccess_Manage проверяет добавление и удаление ролей.
func TestAdminAccess_Manage(t *testing.T) {
	repo := &fakeAdminRepo{}
	s := NewAdminAccessService(repo, testLogger())
	ctx := context.Background()

	if err := s.Add(ctx, "  "); !errors.Is(err, ErrValidation) {
		t.Errorf("Add пустой роли: ожидалась ErrValidation, получено %v", err)
	}
	if err := s.Add(ctx, " r1 "); err != nil {
		t.Fatalf("Add: %v", err)
	}
	list, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0] != "r1" {
		t.Errorf("List = %v, ожидалось [r1]", list)
	}
	if err := s.Remove(ctx, "r1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Remove(ctx, "r1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("повторный Remove: ожидалась ErrNotFound, получено %v", err)
	}
	list, _ = s.List(ctx)
	if list == nil || len(list) != 0 {
		t.Errorf("List = %v, ожидался пустой срез (не nil)", list)
	}
}

// TestRoleLabelService проверяет нормализацию и валидацию переопределений.
func TestRoleLabelService(t *testing.T) {
	repo := &fakeRoleLabelRepo{}
	s := NewRoleLabelService(repo, testLogger())
	ctx := context.Background()

	rl, err := s.Upsert(ctx, "r1", " VIP ", " Seller ")
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if rl.Label != "VIP" || rl.Style != "seller" {
		t.Errorf("Upsert = %+v, ожидалось VIP/seller", rl)
	}

	rl, err = s.Upsert(ctx, "r2", "Gold", "golden")
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if rl.Style != "neutral" {
		t.Errorf("неизвестный стиль: %q, ожидалось neutral", rl.Style)
	}

	if _, err := s.Upsert(ctx, "r3", "", "admin"); !errors.Is(err, ErrValidation) {
		t.Errorf("пустой label: ожидалась ErrValidation, получено %v", err)
	}
	if err := s.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete: ожидалась ErrNotFound, получено %v", err)
	}
}
