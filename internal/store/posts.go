// Package store holds the JSON-file stores for approved posts and the publish schedule.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ankittk/postcraft/pkg/models"
)

// Indexer receives the text of every newly saved post, for later similarity checks.
type Indexer interface {
	Index(ctx context.Context, text string) error
}

// PostStore is the append-only list of approved posts in a JSON file. Posts are never updated or deleted.
type PostStore struct {
	path    string
	indexer Indexer
	mu      sync.Mutex

	// Now and NewID are replaceable in tests.
	Now   func() time.Time
	NewID func() string
}

// NewPostStore returns a store backed by path. indexer may be nil.
func NewPostStore(path string, indexer Indexer) *PostStore {
	return &PostStore{
		path:    path,
		indexer: indexer,
		Now:     time.Now,
		NewID:   func() string { return uuid.NewString() },
	}
}

// Path returns the backing file.
func (s *PostStore) Path() string { return s.path }

// Save trims text and appends a new post, returning its id. Identical trimmed text already in the store
// yields ErrDuplicatePost and nothing is written. imageURL and imagePath may be empty.
func (s *PostStore) Save(ctx context.Context, channel models.Channel, text, imageURL, imagePath string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyPost
	}

	s.mu.Lock()
	posts, err := s.load()
	if err != nil {
		s.mu.Unlock()
		return "", err
	}
	for _, p := range posts {
		if strings.TrimSpace(p.Text) == text {
			s.mu.Unlock()
			return "", ErrDuplicatePost
		}
	}
	post := models.Post{
		ID:        s.NewID(),
		Datetime:  s.Now().UTC().Format(models.PostTimeLayout),
		Channel:   channel,
		Text:      text,
		ImageURL:  optional(imageURL),
		ImagePath: optional(imagePath),
	}
	posts = append(posts, post)
	if err := writeJSON(s.path, posts); err != nil {
		s.mu.Unlock()
		return "", fmt.Errorf("save post: %w", err)
	}
	s.mu.Unlock()

	if s.indexer != nil {
		if err := s.indexer.Index(ctx, text); err != nil {
			slog.Warn("post saved but not indexed", "id", post.ID, "err", err)
		}
	}
	return post.ID, nil
}

// LoadAll returns every post in insertion order.
func (s *PostStore) LoadAll(_ context.Context) ([]models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Latest returns the most recently created post, optionally restricted to channel. On equal timestamps the later
// insertion wins. The second result is false when nothing matches.
func (s *PostStore) Latest(ctx context.Context, channel models.Channel) (models.Post, bool, error) {
	posts, err := s.LoadAll(ctx)
	if err != nil {
		return models.Post{}, false, err
	}
	p, ok := LatestPost(posts, channel)
	return p, ok, nil
}

// FindByPrefix returns the first post (in store order) whose id starts with prefix.
func (s *PostStore) FindByPrefix(ctx context.Context, prefix string) (models.Post, bool, error) {
	if prefix == "" {
		return models.Post{}, false, nil
	}
	posts, err := s.LoadAll(ctx)
	if err != nil {
		return models.Post{}, false, err
	}
	for _, p := range posts {
		if strings.HasPrefix(p.ID, prefix) {
			return p, true, nil
		}
	}
	return models.Post{}, false, nil
}

// LatestPost picks the newest post of channel (any channel when empty) from posts.
func LatestPost(posts []models.Post, channel models.Channel) (models.Post, bool) {
	var (
		best  models.Post
		found bool
	)
	for _, p := range posts {
		if channel != "" && !models.SameChannel(p.Channel, channel) {
			continue
		}
		if !found || p.Datetime >= best.Datetime {
			best, found = p, true
		}
	}
	return best, found
}

func (s *PostStore) load() ([]models.Post, error) {
	var posts []models.Post
	if err := readJSON(s.path, &posts); err != nil {
		return nil, fmt.Errorf("load posts: %w", err)
	}
	return posts, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
