package workflow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ankittk/postcraft/internal/checkpoint"
	"github.com/ankittk/postcraft/internal/review"
	"github.com/ankittk/postcraft/internal/router"
	"github.com/ankittk/postcraft/internal/store"
	"github.com/ankittk/postcraft/pkg/models"
)

type fakeGenerator struct {
	calls int
}

func (g *fakeGenerator) Handle(_ context.Context, c models.Context) models.Context {
	g.calls++
	c.Draft = fmt.Sprintf("Draft %d for %s", g.calls, c.Channel)
	c.WaitingForQA = true
	c.Result = ""
	if c.WithImage && !c.ImageDone {
		c.ImageURL = "https://img/1.png"
		c.ImageDone = true
	}
	return c
}

type fakeScheduler struct {
	mu    sync.Mutex
	calls []string
}

func (s *fakeScheduler) Handle(_ context.Context, c models.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c.UserInput)
	return "sched: " + c.UserInput
}

type fakeKB struct {
	err error
}

func (k fakeKB) Query(_ context.Context, q string) (string, error) {
	if k.err != nil {
		return "", k.err
	}
	return "answer to " + q, nil
}

type brokenCheckpoints struct{ checkpoint.Checkpointer }

func (brokenCheckpoints) Get(context.Context, string) (models.Context, bool, error) {
	return models.Context{}, false, errors.New("db down")
}

type fixture struct {
	eng    *Engine
	gen    *fakeGenerator
	sched  *fakeScheduler
	posts  *store.PostStore
	events []models.Event
	mu     sync.Mutex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		gen:   &fakeGenerator{},
		sched: &fakeScheduler{},
		posts: store.NewPostStore(filepath.Join(t.TempDir(), "posts.json"), nil),
	}
	f.eng = &Engine{
		Classifier:  router.RegexClassifier{},
		Generate:    f.gen,
		Scheduler:   f.sched,
		KB:          fakeKB{},
		Gate:        &review.Gate{Posts: f.posts},
		Checkpoints: checkpoint.NewMemory(),
		Emit: func(ev models.Event) {
			f.mu.Lock()
			f.events = append(f.events, ev)
			f.mu.Unlock()
		},
	}
	return f
}

func (f *fixture) turn(t *testing.T, thread, input string) models.Context {
	t.Helper()
	c, err := f.eng.RunTurn(context.Background(), thread, input)
	if err != nil {
		t.Fatalf("RunTurn(%q): %v", input, err)
	}
	return c
}

func TestEngine_generateThenApprove(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	c := f.turn(t, "t1", "write linkedin post with image about AI")
	if c.Route != models.RouteGenerate || c.Channel != models.ChannelLinkedIn || !c.WithImage {
		t.Fatalf("route: got %+v", c)
	}
	if !c.WaitingForQA || c.Draft != "Draft 1 for LinkedIn" || c.Result != "" {
		t.Fatalf("draft: got %+v", c)
	}
	if len(c.History) != 1 || c.History[0].Bot != c.Draft {
		t.Fatalf("history: got %+v", c.History)
	}

	c = f.turn(t, "t1", "approve")
	if c.WaitingForQA || c.Draft != "" || c.ImageURL != "" || c.Result != review.MsgSaved {
		t.Fatalf("approve: got %+v", c)
	}
	posts, err := f.posts.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(posts) != 1 || posts[0].Text != "Draft 1 for LinkedIn" || posts[0].Image() != "https://img/1.png" {
		t.Fatalf("posts: got %+v", posts)
	}
	if last := c.History[len(c.History)-1]; last.User != "approve" || last.Bot != review.MsgSaved {
		t.Fatalf("history after approve: got %+v", last)
	}

	saved, ok, err := f.eng.Checkpoints.Get(ctx, "t1")
	if err != nil || !ok || saved.WaitingForQA {
		t.Fatalf("checkpoint: got %+v %v %v", saved, ok, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var types []string
	for _, ev := range f.events {
		types = append(types, ev.Type)
	}
	if strings.Join(types, ",") != "turn,review,post_saved" {
		t.Fatalf("events: got %v", types)
	}
}

func TestEngine_pendingDraftCapturesInput(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.turn(t, "t1", "write x post about launches")

	c := f.turn(t, "t1", "show queue")
	if !c.WaitingForQA || c.Result != review.MsgInvalid {
		t.Fatalf("pending draft: got %+v", c)
	}
	if len(f.sched.calls) != 0 {
		t.Fatalf("scheduler must not run while a draft is pending, got %v", f.sched.calls)
	}

	c = f.turn(t, "t1", "e Launch day is here!")
	if c.Draft != "Launch day is here!" || !c.WaitingForQA {
		t.Fatalf("edit: got %+v", c)
	}
	if last := c.History[len(c.History)-1]; !strings.HasPrefix(last.Bot, "--- DRAFT ---\nLaunch day is here!") {
		t.Fatalf("edit reply: got %q", last.Bot)
	}

	c = f.turn(t, "t1", "reject")
	if c.WaitingForQA || c.Result != review.MsgRejected {
		t.Fatalf("reject: got %+v", c)
	}
	c = f.turn(t, "t1", "show queue")
	if c.Route != models.RouteScheduler || c.Result != "sched: show queue" {
		t.Fatalf("after reject: got %+v", c)
	}
}

func TestEngine_schedulerHistory(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.turn(t, "t1", "show queue")
	f.turn(t, "t1", "Show Queue")
	c := f.turn(t, "t1", "show history")

	if c.Result != "sched: show history" {
		t.Fatalf("result: got %q", c.Result)
	}
	if len(c.History) != 2 {
		t.Fatalf("history should be deduplicated, got %+v", c.History)
	}
	if c.History[0].User != "Show Queue" || c.History[0].Bot != "sched: Show Queue" {
		t.Fatalf("most recent duplicate should survive, got %+v", c.History[0])
	}
	if c.History[1].User != "show history" || c.History[1].Bot != "" {
		t.Fatalf("show history reply is not recorded, got %+v", c.History[1])
	}
}

func TestEngine_kb(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	c := f.turn(t, "t1", "what does the company do?")
	if c.Route != models.RouteKB || c.Result != "answer to what does the company do?" {
		t.Fatalf("kb: got %+v", c)
	}

	f.eng.KB = fakeKB{err: errors.New("index missing")}
	c = f.turn(t, "t2", "who are our clients?")
	if !strings.Contains(c.Result, "index missing") {
		t.Fatalf("kb failure should degrade into the answer, got %q", c.Result)
	}
}

func TestEngine_emptyInputEnds(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	c := f.turn(t, "t1", "   ")
	if c.Route != models.RouteEnd || len(c.History) != 0 || c.Result != "" {
		t.Fatalf("empty input: got %+v", c)
	}
}

func TestEngine_threadsIndependent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.turn(t, "a", "write instagram post about partnerships")
	c := f.turn(t, "b", "show posts")
	if c.WaitingForQA || c.Route != models.RouteScheduler {
		t.Fatalf("thread b should not see thread a's draft: %+v", c)
	}
	a, _, _ := f.eng.Checkpoints.Get(context.Background(), "a")
	if !a.WaitingForQA || a.Channel != models.ChannelInstagram {
		t.Fatalf("thread a: got %+v", a)
	}
}

func TestEngine_concurrentTurnsSameThread(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = f.eng.RunTurn(context.Background(), "t1", fmt.Sprintf("show queue %d", i))
		}(i)
	}
	wg.Wait()
	c, _, _ := f.eng.Checkpoints.Get(context.Background(), "t1")
	if len(c.History) != 20 {
		t.Fatalf("serialized turns should keep every utterance, got %d", len(c.History))
	}
	for _, h := range c.History {
		if h.Bot == "" {
			t.Fatalf("unanswered entry: %+v", h)
		}
	}
	if len(f.eng.locks.locks) != 0 {
		t.Fatalf("locks should be released, got %d", len(f.eng.locks.locks))
	}
}

func TestEngine_checkpointError(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.eng.Checkpoints = brokenCheckpoints{}
	if _, err := f.eng.RunTurn(context.Background(), "t1", "show queue"); err == nil || !strings.Contains(err.Error(), "db down") {
		t.Fatalf("RunTurn: expected checkpoint error, got %v", err)
	}
}
