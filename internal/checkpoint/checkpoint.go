// Package checkpoint persists the conversation Context of each thread between turns.
// Memory lives here; durable backends are in the sqlite, postgres and redis subpackages.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ankittk/postcraft/pkg/models"
)

// ErrNotFound is returned by Load when a thread has no checkpoint.
var ErrNotFound = errors.New("checkpoint not found")

// Checkpointer stores one Context per thread id.
// Get reports false (and no error) when the thread has never been saved.
type Checkpointer interface {
	Get(ctx context.Context, threadID string) (models.Context, bool, error)
	Put(ctx context.Context, threadID string, c models.Context) error
	Close() error
}

// Load is Get with a missing thread turned into ErrNotFound.
func Load(ctx context.Context, cp Checkpointer, threadID string) (models.Context, error) {
	c, ok, err := cp.Get(ctx, threadID)
	if err != nil {
		return models.Context{}, err
	}
	if !ok {
		return models.Context{}, fmt.Errorf("thread %q: %w", threadID, ErrNotFound)
	}
	return c, nil
}

// Encode serializes a Context for the durable backends.
func Encode(c models.Context) ([]byte, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode checkpoint: %w", err)
	}
	return b, nil
}

// Decode is the inverse of Encode.
func Decode(b []byte) (models.Context, error) {
	var c models.Context
	if err := json.Unmarshal(b, &c); err != nil {
		return models.Context{}, fmt.Errorf("decode checkpoint: %w", err)
	}
	return c, nil
}

// Memory is an in-process Checkpointer. State is lost when the process exits.
type Memory struct {
	mu      sync.RWMutex
	threads map[string]models.Context
}

// NewMemory returns an empty Memory checkpointer.
func NewMemory() *Memory {
	return &Memory{threads: make(map[string]models.Context)}
}

func (m *Memory) Get(_ context.Context, threadID string) (models.Context, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.threads[threadID]
	if !ok {
		return models.Context{}, false, nil
	}
	return c.Clone(), true, nil
}

func (m *Memory) Put(_ context.Context, threadID string, c models.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threads[threadID] = c.Clone()
	return nil
}

func (m *Memory) Close() error { return nil }
