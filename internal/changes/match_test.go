package changes

import "testing"

func TestMatchGlobPattern(t *testing.T) {
	tests := []struct {
		path    string
		pattern string
		want    bool
	}{
		{"a/b/c/d/file.go", "**/c/**", true},
		{"internal/auth/login.go", "**/auth/**", true},
		{"auth/login.go", "**/auth/**", true},
		{"migrations/001_init.sql", "migrations/**", true},
		{"config/settings.yaml", "config/settings.yaml", true},
		{"internal/auth_handler.go", "internal/auth*", true},
		{"web/app/page.tsx", "web/*/page.tsx", true},
		{"src/db/schema/users.sql", "**/schema/*.sql", true},
		{"api/handler.go", "**/auth/**", false},
		{"internal/authz/x.go", "**/auth/**", false},
		{"web/app/page.tsx", "web/page.tsx", false},
		{"a/b", "a/[", false},
	}
	for _, tt := range tests {
		if got := matchGlobPattern(tt.path, tt.pattern); got != tt.want {
			t.Errorf("matchGlobPattern(%q, %q) = %v, want %v", tt.path, tt.pattern, got, tt.want)
		}
	}
}
