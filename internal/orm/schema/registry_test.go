package schema

import (
	"strings"
	"testing"
)

func TestRegistry(t *testing.T) {
	t.Run("register and get schema", func(t *testing.T) {
		registry := NewRegistry()

		rs := NewBuilder("Post").Text("title").MustBuild()
		if err := registry.Register(rs); err != nil {
			t.Errorf("unexpected error: %v", err)
		}

		retrieved, exists := registry.Get("Post")
		if !exists {
			t.Error("schema should exist")
		}
		if retrieved.Name != "Post" {
			t.Errorf("expected Post, got %s", retrieved.Name)
		}
	})

	t.Run("duplicate registration", func(t *testing.T) {
		registry := NewRegistry()

		rs := NewBuilder("Post").MustBuild()
		registry.Register(rs)
		if err := registry.Register(rs); err == nil {
			t.Error("expected error for duplicate registration")
		}
	})

	t.Run("nil schema", func(t *testing.T) {
		if err := NewRegistry().Register(nil); err == nil {
			t.Error("expected error for nil schema")
		}
	})

	t.Run("list keeps registration order", func(t *testing.T) {
		registry := NewRegistry()
		for _, name := range []string{"User", "Post", "Comment"} {
			registry.Register(NewBuilder(name).MustBuild())
		}

		if got := strings.Join(registry.List(), ","); got != "User,Post,Comment" {
			t.Errorf("expected User,Post,Comment got %s", got)
		}
	})

	t.Run("count exists and clear", func(t *testing.T) {
		registry := NewRegistry()
		if registry.Count() != 0 {
			t.Error("empty registry should have count 0")
		}

		registry.Register(NewBuilder("Post").MustBuild())
		if registry.Count() != 1 {
			t.Error("registry should have count 1")
		}
		if !registry.Exists("Post") {
			t.Error("Post should exist")
		}
		if registry.Exists("User") {
			t.Error("User should not exist")
		}

		registry.Clear()
		if registry.Count() != 0 || len(registry.List()) != 0 {
			t.Error("registry should be empty after Clear")
		}
	})

	t.Run("must get panics on missing", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected panic")
			}
		}()
		NewRegistry().MustGet("Missing")
	})
}
