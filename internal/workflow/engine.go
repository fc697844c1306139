// Package workflow runs one conversation turn through the graph:
// router, then generate / scheduler / kb, then the approval gate for drafts.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ankittk/postcraft/internal/checkpoint"
	"github.com/ankittk/postcraft/internal/otel"
	"github.com/ankittk/postcraft/internal/review"
	"github.com/ankittk/postcraft/internal/router"
	"github.com/ankittk/postcraft/pkg/models"
)

// Generator produces a draft for the generate route.
type Generator interface {
	Handle(ctx context.Context, c models.Context) models.Context
}

// Scheduler answers scheduler commands.
type Scheduler interface {
	Handle(ctx context.Context, c models.Context) string
}

// Lookup answers free-form questions from the knowledge base.
type Lookup interface {
	Query(ctx context.Context, question string) (string, error)
}

// Reviewer applies a user command to a pending draft.
type Reviewer interface {
	Review(ctx context.Context, c models.Context) (models.Context, review.Outcome)
}

// Engine runs turns. Turns of one thread are serialized; different threads run concurrently.
// Emit, if set, receives one event per finished turn.
type Engine struct {
	Classifier  router.Classifier
	Generate    Generator
	Scheduler   Scheduler
	KB          Lookup
	Gate        Reviewer
	Checkpoints checkpoint.Checkpointer
	Emit        func(models.Event)

	locks keyedMutex
}

// RunTurn processes input for threadID to completion and checkpoints the resulting Context.
// While a draft is pending every input goes to the approval gate. The only errors are checkpoint failures.
func (e *Engine) RunTurn(ctx context.Context, threadID, input string) (models.Context, error) {
	unlock := e.locks.Lock(threadID)
	defer unlock()

	start := time.Now()
	c, _, err := e.Checkpoints.Get(ctx, threadID)
	if err != nil {
		return models.Context{}, fmt.Errorf("load thread %s: %w", threadID, err)
	}
	c.UserInput = input
	c.Result = ""
	c.QAProcessed = false

	var outcome review.Outcome
	if c.WaitingForQA {
		c, outcome = e.review(ctx, c)
	} else {
		c = e.route(ctx, c)
		c = e.dispatch(ctx, c)
	}

	if err := e.Checkpoints.Put(ctx, threadID, c); err != nil {
		return c, fmt.Errorf("save thread %s: %w", threadID, err)
	}
	route := string(c.Route)
	if outcome != "" {
		route = "review"
	}
	otel.RecordTurn(ctx, route, time.Since(start))
	slog.Debug("turn", "thread", threadID, "route", route, "waiting_for_qa", c.WaitingForQA)
	e.emit(threadID, c, outcome)
	return c, nil
}

// route is the router node: it records the utterance and stamps route and parameters.
func (e *Engine) route(_ context.Context, c models.Context) models.Context {
	intent := e.Classifier.Classify(c.UserInput)
	c.Route = intent.Route
	if intent.Route == models.RouteEnd {
		return c
	}
	c = c.RecordUtterance(c.UserInput)
	if intent.Route == models.RouteGenerate {
		c.Channel = intent.Channel
		c.WithImage = intent.WithImage
	}
	return c
}

func (e *Engine) dispatch(ctx context.Context, c models.Context) models.Context {
	switch c.Route {
	case models.RouteGenerate:
		return e.generate(ctx, c)
	case models.RouteScheduler:
		return e.schedule(ctx, c)
	case models.RouteKB:
		return e.lookup(ctx, c)
	case models.RouteEnd:
		return c
	default:
		slog.Warn("unknown route", "route", c.Route)
		c.Route = models.RouteEnd
		return c
	}
}

func (e *Engine) generate(ctx context.Context, c models.Context) models.Context {
	c.ImageDone = false
	c = e.Generate.Handle(ctx, c)
	return c.AnswerLast(c.UserInput, c.Draft)
}

func (e *Engine) schedule(ctx context.Context, c models.Context) models.Context {
	c.Result = e.Scheduler.Handle(ctx, c)
	if strings.EqualFold(strings.TrimSpace(c.UserInput), "show history") {
		c.History = models.DedupHistory(c.History)
		return c
	}
	return c.AnswerLast(c.UserInput, c.Result)
}

func (e *Engine) lookup(ctx context.Context, c models.Context) models.Context {
	answer, err := e.KB.Query(ctx, c.UserInput)
	if err != nil {
		slog.Warn("knowledge lookup failed", "err", err)
		answer = fmt.Sprintf("Sorry, I couldn't search the knowledge base: %v", err)
	}
	c.Result = answer
	return c.AnswerLast(c.UserInput, answer)
}

// review hands a pending draft to the gate. An edited draft is shown again as the reply.
func (e *Engine) review(ctx context.Context, c models.Context) (models.Context, review.Outcome) {
	c = c.RecordUtterance(c.UserInput)
	c, outcome := e.Gate.Review(ctx, c)
	return c.AnswerLast(c.UserInput, review.Reply(c)), outcome
}

func (e *Engine) emit(threadID string, c models.Context, outcome review.Outcome) {
	if e.Emit == nil {
		return
	}
	ev := models.Event{
		Type:         models.EventTurn,
		ThreadID:     threadID,
		Route:        c.Route,
		Result:       c.Result,
		WaitingForQA: c.WaitingForQA,
		Time:         time.Now().UTC(),
	}
	if outcome != "" {
		ev.Type = models.EventReview
		ev.Outcome = string(outcome)
	}
	e.Emit(ev)
	if outcome == review.OutcomeSaved {
		ev.Type = models.EventPostSaved
		e.Emit(ev)
	}
}

// keyedMutex hands out one mutex per key and forgets it once nobody holds or waits for it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refLock)
	}
	l := k.locks[key]
	if l == nil {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
