package middleware

import "testing"

// TestNormalizePath проверяет шаблоны путей для лейблов метрик.
func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health/live", "/health/live"},
		{"/api/v1/categories", "/api/v1/categories"},
		{"/api/v1/categories/bugs/posts", "/api/v1/categories/{key}/posts"},
		{"/api/v1/posts/42", "/api/v1/posts/{id}"},
		{"/api/v1/posts/42/replies", "/api/v1/posts/{id}/replies"},
		{"/api/v1/posts/42/close", "/api/v1/posts/{id}/close"},
		{"/api/v1/posts/42/reopen", "/api/v1/posts/{id}/reopen"},
		{"/api/v1/posts/42/unknown", "/api/v1/posts/{id}/{other}"},
		{"/api/v1/admin/role-labels/123456789", "/api/v1/admin/role-labels/{roleID}"},
		{"/api/v1/admin/access-roles/123456789", "/api/v1/admin/access-roles/{roleID}"},
		{"/api/v1/posts/", "/other"},
		{"/favicon.ico", "/other"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, ожидалось %q", tt.path, got, tt.want)
		}
	}
}
