package cmd

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"quorum/internal/store/sqlite"
)

func TestShortID(t *testing.T) {
	if got := shortID("0123456789abcdef"); got != "01234567" {
		t.Errorf("shortID() = %q, want 8-char prefix", got)
	}
	if got := shortID("r-1"); got != "r-1" {
		t.Errorf("shortID() = %q, want unchanged short ID", got)
	}
}

func TestResolveRound(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "rounds.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	for _, id := range []string{"aaaa-1111", "aaaa-2222", "bbbb-3333"} {
		if err := store.CreateRound(ctx, sqlite.Round{ID: id, Task: "t"}); err != nil {
			t.Fatalf("CreateRound(%s) error = %v", id, err)
		}
	}

	t.Run("exact match", func(t *testing.T) {
		r, err := resolveRound(ctx, store, "aaaa-1111")
		if err != nil {
			t.Fatalf("resolveRound() error = %v", err)
		}
		if r.ID != "aaaa-1111" {
			t.Errorf("ID = %q", r.ID)
		}
	})

	t.Run("unique prefix", func(t *testing.T) {
		r, err := resolveRound(ctx, store, "bbbb")
		if err != nil {
			t.Fatalf("resolveRound() error = %v", err)
		}
		if r.ID != "bbbb-3333" {
			t.Errorf("ID = %q", r.ID)
		}
	})

	t.Run("ambiguous prefix", func(t *testing.T) {
		_, err := resolveRound(ctx, store, "aaaa")
		if err == nil || !strings.Contains(err.Error(), "ambiguous") {
			t.Errorf("error = %v, want ambiguous-prefix error", err)
		}
	})

	t.Run("no match", func(t *testing.T) {
		_, err := resolveRound(ctx, store, "zzzz")
		if err == nil {
			t.Error("resolveRound() succeeded for unknown prefix")
		}
	})
}
