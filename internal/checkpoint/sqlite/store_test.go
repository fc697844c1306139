package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ankittk/postcraft/pkg/models"
)

func TestOpenClose(t *testing.T) {
	home := filepath.Join(t.TempDir(), "home")
	st, err := Open(home, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestMigrate_idempotent(t *testing.T) {
	home := filepath.Join(t.TempDir(), "home")
	st, err := Open(home, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = st.Close() }()
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate again: %v", err)
	}
}

func TestGetPut_roundTrip(t *testing.T) {
	home := filepath.Join(t.TempDir(), "home")
	st, err := Open(home, "")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = st.Close() }()
	ctx := context.Background()

	if _, ok, err := st.Get(ctx, "thread-1"); err != nil || ok {
		t.Fatalf("Get missing: ok=%v err=%v", ok, err)
	}
	c := models.Context{Draft: "first", WaitingForQA: true, Channel: models.ChannelLinkedIn}
	if err := st.Put(ctx, "thread-1", c); err != nil {
		t.Fatalf("Put: %v", err)
	}
	c.Draft = "second"
	if err := st.Put(ctx, "thread-1", c); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, ok, err := st.Get(ctx, "thread-1")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Draft != "second" || got.Channel != models.ChannelLinkedIn || !got.WaitingForQA {
		t.Fatalf("Get: got %+v", got)
	}
}

func TestParseMigrationVersion(t *testing.T) {
	v, err := parseMigrationVersion("0007_add_index.sql")
	if err != nil || v != 7 {
		t.Fatalf("parseMigrationVersion: got %d, %v", v, err)
	}
	if _, err := parseMigrationVersion("bad.sql"); err == nil {
		t.Fatal("parseMigrationVersion: expected error")
	}
}
