package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ankittk/postcraft/internal/dates"
	"github.com/ankittk/postcraft/internal/store"
	"github.com/ankittk/postcraft/pkg/models"
)

func fixedClock() time.Time {
	return time.Date(2025, time.May, 20, 9, 30, 0, 0, time.Local)
}

type fixture struct {
	h     *Handler
	posts *store.PostStore
	queue *store.ScheduleQueue
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	posts := store.NewPostStore(filepath.Join(dir, "posts.json"), nil)
	base := time.Date(2025, time.May, 19, 8, 0, 0, 0, time.UTC)
	n := 0
	posts.Now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Hour)
	}
	posts.NewID = func() string {
		return fmt.Sprintf("%d%07d-0000-4000-8000-000000000000", n, n)
	}
	queue := store.NewScheduleQueue(filepath.Join(dir, "schedule.json"))
	return fixture{
		h:     &Handler{Posts: posts, Queue: queue, Dates: dates.NewParser(fixedClock)},
		posts: posts,
		queue: queue,
	}
}

func (f fixture) save(t *testing.T, ch models.Channel, text string) string {
	t.Helper()
	id, err := f.posts.Save(context.Background(), ch, text, "", "")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	return id
}

func (f fixture) run(input string) string {
	return f.h.Handle(context.Background(), models.Context{UserInput: input})
}

func TestHandle_scheduleLastTomorrow(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.save(t, models.ChannelInstagram, "older post")
	id := f.save(t, models.ChannelLinkedIn, "newest post")

	if got := f.run("schedule last post for tomorrow"); got != "Scheduled." {
		t.Fatalf("schedule last: got %q", got)
	}
	rows, err := f.queue.List(context.Background(), "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 1 || rows[0].PostID != id || rows[0].ScheduledFor != "2025-05-21" {
		t.Fatalf("queue: got %+v", rows)
	}
}

func TestHandle_scheduleImpossibleDate(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	id := f.save(t, models.ChannelLinkedIn, "newest post")

	for _, expr := range []string{"2025-02-30", "2025-13-45"} {
		if got, want := f.run("schedule last post for "+expr), "Couldn't parse date '"+expr+"'."; got != want {
			t.Fatalf("schedule for %s: got %q, want %q", expr, got, want)
		}
	}
	if got := f.run("schedule last post for 2025-06-01 please"); got != "Scheduled." {
		t.Fatalf("schedule with trailing words: got %q", got)
	}
	rows, err := f.queue.List(context.Background(), "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rows) != 1 || rows[0].PostID != id || rows[0].ScheduledFor != "2025-06-01" {
		t.Fatalf("queue: got %+v", rows)
	}
}

func TestHandle_scheduleLastChannel(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ig := f.save(t, models.ChannelInstagram, "insta post")
	f.save(t, models.ChannelLinkedIn, "li post")

	if got := f.run("schedule last insta post on 2025-06-01"); got != "Scheduled." {
		t.Fatalf("schedule last insta: got %q", got)
	}
	rows, _ := f.queue.List(context.Background(), models.ChannelInstagram)
	if len(rows) != 1 || rows[0].PostID != ig {
		t.Fatalf("queue: got %+v", rows)
	}
	if got := f.run("schedule last ig post for 2025-06-01"); got != "Error: Instagram already has a post on 2025-06-01." {
		t.Fatalf("slot conflict: got %q", got)
	}
}

func TestHandle_scheduleByPrefix(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	id := f.save(t, models.ChannelX, "x post")
	prefix := strings.ToUpper(id[:5])

	if got := f.run("schedule " + prefix + " for May 30 2025"); got != "Scheduled." {
		t.Fatalf("schedule by prefix: got %q", got)
	}
	if got := f.run("schedule zzzz for tomorrow"); got != "Post 'zzzz' not found." {
		t.Fatalf("unknown prefix: got %q", got)
	}
	if got := f.run("schedule " + id[:5] + " for whenever you like"); got != "Couldn't parse date 'whenever you like'." {
		t.Fatalf("bad date: got %q", got)
	}
	if got := f.run("schedule " + id[:5]); !strings.HasPrefix(got, "Missing date") {
		t.Fatalf("missing date: got %q", got)
	}
	if got := f.run("schedule"); got != "Unrecognised scheduler command. Type 'help' for list." {
		t.Fatalf("bare schedule: got %q", got)
	}
}

func TestHandle_noPosts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	if got := f.run("schedule last post for tomorrow"); got != "No posts available." {
		t.Fatalf("got %q", got)
	}
	if got := f.run("show queue"); got != "Nothing found." {
		t.Fatalf("show queue: got %q", got)
	}
	if got := f.run("show posts"); got != "Nothing found." {
		t.Fatalf("show posts: got %q", got)
	}
	if got := f.run("remove last"); got != "Nothing to remove." {
		t.Fatalf("remove last: got %q", got)
	}
}

func TestHandle_showQueueSorted(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	a := f.save(t, models.ChannelX, "a post")
	b := f.save(t, models.ChannelFacebook, "b post")
	_ = f.queue.Add(ctx, a, models.ChannelX, "a post", "2025-06-02")
	_ = f.queue.Add(ctx, b, models.ChannelFacebook, "b post", "2025-06-02")
	_ = f.queue.Add(ctx, a, models.ChannelInstagram, "a post", "2025-06-01")

	got := f.run("show queue")
	want := strings.Join([]string{
		fmt.Sprintf(`- 2025-06-01 - Instagram - %s... "a post..."`, a[:8]),
		fmt.Sprintf(`- 2025-06-02 - Facebook - %s... "b post..."`, b[:8]),
		fmt.Sprintf(`- 2025-06-02 - X - %s... "a post..."`, a[:8]),
	}, "\n")
	if got != want {
		t.Fatalf("show queue:\ngot  %q\nwant %q", got, want)
	}
	if got := f.run("show fb queue"); strings.Count(got, "\n") != 0 || !strings.Contains(got, "Facebook") {
		t.Fatalf("show fb queue: got %q", got)
	}
	if got := f.run("show scheduled posts"); got != want {
		t.Fatalf("show scheduled posts: got %q", got)
	}
}

func TestHandle_showPostsAnnotated(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	long := strings.Repeat("y", 80)
	a := f.save(t, models.ChannelLinkedIn, long)
	imgID, err := f.posts.Save(ctx, models.ChannelInstagram, "with picture", "https://img/1.png", "/tmp/1.png")
	if err != nil {
		t.Fatal(err)
	}
	_ = f.queue.Add(ctx, a, models.ChannelLinkedIn, long, "2025-06-03")

	got := f.run("show posts")
	lines := strings.Split(got, "\n")
	if len(lines) != 2 {
		t.Fatalf("show posts: got %q", got)
	}
	wantFirst := fmt.Sprintf(`- 2025-05-19 [SCHEDULED 2025-06-03] - LinkedIn - %s... "%s..."`, a[:8], strings.Repeat("y", 60))
	if lines[0] != wantFirst {
		t.Fatalf("show posts line 1:\ngot  %q\nwant %q", lines[0], wantFirst)
	}
	if !strings.HasSuffix(lines[1], " Image: https://img/1.png") || !strings.Contains(lines[1], imgID[:8]) {
		t.Fatalf("show posts line 2: got %q", lines[1])
	}
	if got := f.run("show linkedin posts"); strings.Contains(got, "Instagram") {
		t.Fatalf("channel filter: got %q", got)
	}
	if got := f.run("show scheduled linkedin posts"); !strings.HasPrefix(got, "- 2025-06-03 - LinkedIn") {
		t.Fatalf("scheduled filter: got %q", got)
	}
}

func TestHandle_remove(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	a := f.save(t, models.ChannelX, "first")
	b := f.save(t, models.ChannelX, "second")
	_ = f.queue.Add(ctx, a, models.ChannelX, "first", "2025-06-01")
	_ = f.queue.Add(ctx, b, models.ChannelX, "second", "2025-06-02")
	_ = f.queue.Add(ctx, b, models.ChannelLinkedIn, "second", "2025-06-05")

	if got := f.run("remove " + b[:6] + " from june 5 2025"); got != "Removed." {
		t.Fatalf("remove with date: got %q", got)
	}
	if got := f.run("remove " + b[:6] + " from 2025-07-01"); got != "Nothing matched." {
		t.Fatalf("remove wrong date: got %q", got)
	}
	if got := f.run("remove last x"); got != "Removed." {
		t.Fatalf("remove last: got %q", got)
	}
	rows, _ := f.queue.List(ctx, "")
	if len(rows) != 1 || rows[0].PostID != a {
		t.Fatalf("after remove last: got %+v", rows)
	}
	if got := f.run("unschedule " + a); got != "Removed." {
		t.Fatalf("unschedule: got %q", got)
	}
	if got := f.run("remove nope"); got != "Nothing matched." {
		t.Fatalf("remove unknown: got %q", got)
	}
	if got := f.run("remove"); got != "Unrecognised scheduler command. Type 'help' for list." {
		t.Fatalf("bare remove: got %q", got)
	}
}

func TestHandle_history(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	var hist []models.Exchange
	for i := 0; i < 12; i++ {
		hist = append(hist, models.Exchange{User: fmt.Sprintf("q%d", i), Bot: fmt.Sprintf("a%d", i)})
	}
	hist[11].Bot = strings.Repeat("b", 250)
	hist = append(hist, models.Exchange{User: "show history"})

	got := f.h.Handle(context.Background(), models.Context{UserInput: "show history", History: hist})
	lines := strings.Split(got, "\n")
	if lines[0] != "=== Conversation History (Last 10 Interactions) ===" {
		t.Fatalf("header: got %q", lines[0])
	}
	if lines[1] != "User: q3" {
		t.Fatalf("first entry should be q3, got %q", lines[1])
	}
	if strings.Contains(got, "User: show history") {
		t.Fatal("show history echo should be suppressed")
	}
	if want := "Bot: " + strings.Repeat("b", 200) + "..."; lines[len(lines)-1] != want {
		t.Fatalf("truncated bot: got %q", lines[len(lines)-1])
	}
	if got := f.h.Handle(context.Background(), models.Context{UserInput: "show history"}); got != "No conversation history found." {
		t.Fatalf("empty history: got %q", got)
	}
}

func TestHandle_helpAndFallback(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	if got := f.run("help"); got != HelpText {
		t.Fatalf("help: got %q", got)
	}
	if got := f.run("?"); got != HelpText {
		t.Fatalf("?: got %q", got)
	}
	if got := f.run("publish everything"); got != "Unrecognised scheduler command. Type 'help' for list." {
		t.Fatalf("fallback: got %q", got)
	}
	if got := f.run("   "); got != "Unrecognised scheduler command. Type 'help'." {
		t.Fatalf("empty: got %q", got)
	}
}
