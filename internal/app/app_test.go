package app

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ankittk/postcraft/internal/config"
	"github.com/ankittk/postcraft/internal/review"
	"github.com/ankittk/postcraft/pkg/models"
)

func newOfflineApp(t *testing.T, driver string) *App {
	t.Helper()
	s := config.Defaults()
	s.Checkpoint.Driver = driver
	clock := func() time.Time { return time.Date(2025, time.May, 20, 9, 0, 0, 0, time.Local) }
	a, err := New(context.Background(), Options{Home: t.TempDir(), Settings: s, Offline: true, Clock: clock})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNew_offlineEndToEnd(t *testing.T) {
	t.Parallel()
	a := newOfflineApp(t, config.DriverSQLite)
	if a.Gemini != nil || a.Images != nil {
		t.Fatalf("offline app should not construct remote clients: %s", a.Mode())
	}
	if got := a.Mode(); got != "text=offline images=off checkpoint=sqlite" {
		t.Fatalf("Mode: got %q", got)
	}
	ctx := context.Background()

	c, err := a.Engine.RunTurn(ctx, "t1", "write linkedin post about remote hiring")
	if err != nil {
		t.Fatalf("RunTurn generate: %v", err)
	}
	if !c.WaitingForQA || c.Draft == "" || c.Channel != models.ChannelLinkedIn {
		t.Fatalf("generate: got %+v", c)
	}
	c, err = a.Engine.RunTurn(ctx, "t1", "approve")
	if err != nil {
		t.Fatalf("RunTurn approve: %v", err)
	}
	if c.Result != review.MsgSaved {
		t.Fatalf("approve: got %q", c.Result)
	}
	if n, _ := a.Similarity.Len(); n != 1 {
		t.Fatalf("saved post should be indexed, got %d vectors", n)
	}

	c, err = a.Engine.RunTurn(ctx, "t1", "schedule last post for tomorrow")
	if err != nil {
		t.Fatalf("RunTurn schedule: %v", err)
	}
	if c.Result != "Scheduled." {
		t.Fatalf("schedule: got %q", c.Result)
	}
	rows, err := a.Queue.List(ctx, "")
	if err != nil || len(rows) != 1 || rows[0].ScheduledFor != "2025-05-21" {
		t.Fatalf("queue: got %+v %v", rows, err)
	}
}

func TestNew_requiresHome(t *testing.T) {
	t.Parallel()
	if _, err := New(context.Background(), Options{Settings: config.Defaults()}); err == nil {
		t.Fatal("expected error without home")
	}
}

func TestOpenCheckpointer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cp, err := OpenCheckpointer(ctx, t.TempDir(), config.CheckpointSettings{Driver: config.DriverMemory})
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	_ = cp.Close()
	if _, err := OpenCheckpointer(ctx, t.TempDir(), config.CheckpointSettings{Driver: "etcd"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestNewLogger(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	l := NewLogger(&buf, "warn", "json")
	l.Info("hidden")
	l.Warn("shown", "k", "v")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"msg":"shown"`) {
		t.Fatalf("NewLogger: got %q", out)
	}
	if ParseLevel("DEBUG") != slog.LevelDebug || ParseLevel("nope") != slog.LevelInfo {
		t.Fatal("ParseLevel")
	}
}
