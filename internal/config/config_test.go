package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestHomeContext(t *testing.T) {
	t.Parallel()
	if h, ok := HomeFrom(context.Background()); ok {
		t.Fatalf("HomeFrom on empty context: got %q", h)
	}
	ctx := WithHome(context.Background(), "/srv/postcraft")
	if h, ok := HomeFrom(ctx); !ok || h != "/srv/postcraft" {
		t.Fatalf("HomeFrom: got %q ok=%v", h, ok)
	}
	if h := MustHomeFrom(ctx); h != "/srv/postcraft" {
		t.Fatalf("MustHomeFrom: got %q", h)
	}
}

func TestMustHomeFrom_emptyPanics(t *testing.T) {
	t.Parallel()
	for name, ctx := range map[string]context.Context{
		"missing": context.Background(),
		"empty":   WithHome(context.Background(), ""),
	} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("%s: expected panic", name)
				}
			}()
			MustHomeFrom(ctx)
		}()
	}
}

func TestResolveHome(t *testing.T) {
	userHome, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("UserHomeDir: %v", err)
	}
	tests := []struct {
		name, override, env, want string
	}{
		{"flag wins", "/flag/home/", "/env/home", "/flag/home"},
		{"env", "", "/env/home", "/env/home"},
		{"default", "", "", filepath.Join(userHome, ".postcraft")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvHome, tt.env)
			got, err := ResolveHome(tt.override)
			if err != nil {
				t.Fatalf("ResolveHome: %v", err)
			}
			if got != filepath.Clean(tt.want) {
				t.Fatalf("ResolveHome(%q): got %q, want %q", tt.override, got, tt.want)
			}
		})
	}
}
