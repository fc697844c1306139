// Package redis is a Checkpointer backed by Redis, for shells that already run a Redis instance.
package redis

import (
	"context"
	"fmt"
	"time"

	r "gopkg.in/redis.v5"

	"github.com/ankittk/postcraft/internal/checkpoint"
	"github.com/ankittk/postcraft/pkg/models"
)

const prefix = "postcraft:thread:"

// Store keeps each thread Context as a JSON value under postcraft:thread:<id>.
type Store struct {
	client *r.Client
	ttl    time.Duration
}

var _ checkpoint.Checkpointer = (*Store)(nil)

// Open connects to url (redis://[:password@]host:port/db). A zero ttl keeps checkpoints forever.
func Open(url string, ttl time.Duration) (*Store, error) {
	opts, err := r.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := r.NewClient(opts)
	if err := client.Ping().Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{client: client, ttl: ttl}, nil
}

// redis.v5 commands take no context; ctx is accepted for the interface only.
func (s *Store) Get(_ context.Context, threadID string) (models.Context, bool, error) {
	b, err := s.client.Get(prefix + threadID).Bytes()
	if err == r.Nil {
		return models.Context{}, false, nil
	}
	if err != nil {
		return models.Context{}, false, fmt.Errorf("get checkpoint %q: %w", threadID, err)
	}
	c, err := checkpoint.Decode(b)
	if err != nil {
		return models.Context{}, false, err
	}
	return c, true, nil
}

func (s *Store) Put(_ context.Context, threadID string, c models.Context) error {
	b, err := checkpoint.Encode(c)
	if err != nil {
		return err
	}
	if err := s.client.Set(prefix+threadID, b, s.ttl).Err(); err != nil {
		return fmt.Errorf("put checkpoint %q: %w", threadID, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
