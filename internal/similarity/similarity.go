// Package similarity keeps embeddings of approved posts and flags new topics that are too close to one of them.
package similarity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"
)

// DefaultThreshold is the cosine similarity at or above which a topic counts as a repeat.
const DefaultThreshold = 0.85

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type indexFile struct {
	Vectors [][]float32 `json:"vectors"`
}

// Index is a flat cosine index persisted as JSON.
type Index struct {
	path      string
	emb       Embedder
	threshold float64

	mu     sync.Mutex
	loaded bool
	vecs   [][]float32
}

// NewIndex returns an index stored at path. A threshold <= 0 means DefaultThreshold.
func NewIndex(path string, emb Embedder, threshold float64) *Index {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Index{path: path, emb: emb, threshold: threshold}
}

// Index embeds text and appends it to the index.
func (ix *Index) Index(ctx context.Context, text string) error {
	v, err := ix.emb.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.loadLocked(); err != nil {
		return err
	}
	ix.vecs = append(ix.vecs, normalize(v))
	return ix.saveLocked()
}

// TooSimilar reports whether text is at least threshold-similar to any indexed post.
// Vectors from a different embedder (other dimension) are ignored.
func (ix *Index) TooSimilar(ctx context.Context, text string) (bool, error) {
	ix.mu.Lock()
	if err := ix.loadLocked(); err != nil {
		ix.mu.Unlock()
		return false, err
	}
	n := len(ix.vecs)
	ix.mu.Unlock()
	if n == 0 {
		return false, nil
	}

	v, err := ix.emb.Embed(ctx, text)
	if err != nil {
		return false, fmt.Errorf("embed: %w", err)
	}
	q := normalize(v)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	best := math.Inf(-1)
	for _, w := range ix.vecs {
		if len(w) != len(q) {
			continue
		}
		if s := dot(q, w); s > best {
			best = s
		}
	}
	return best >= ix.threshold, nil
}

// Len returns the number of indexed posts.
func (ix *Index) Len() (int, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.loadLocked(); err != nil {
		return 0, err
	}
	return len(ix.vecs), nil
}

func (ix *Index) loadLocked() error {
	if ix.loaded {
		return nil
	}
	b, err := os.ReadFile(ix.path)
	if errors.Is(err, fs.ErrNotExist) {
		ix.loaded = true
		return nil
	}
	if err != nil {
		return err
	}
	var f indexFile
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(ix.path), err)
	}
	ix.vecs = f.Vectors
	ix.loaded = true
	return nil
}

func (ix *Index) saveLocked() error {
	b, err := json.Marshal(indexFile{Vectors: ix.vecs})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(ix.path), 0o755); err != nil {
		return err
	}
	tmp := ix.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, ix.path)
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	n := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

// HashEmbedder is an offline Embedder: lower-cased word and word-bigram counts hashed into Dims buckets.
type HashEmbedder struct {
	Dims int
}

func (h HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	dims := h.Dims
	if dims <= 0 {
		dims = 512
	}
	v := make([]float32, dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	add := func(tok string, w float32) {
		f := fnv.New32a()
		_, _ = f.Write([]byte(tok))
		v[f.Sum32()%uint32(dims)] += w
	}
	for i, w := range words {
		add(w, 1)
		if i > 0 {
			add(words[i-1]+" "+w, 0.5)
		}
	}
	return v, nil
}
