package similarity

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestIndex_TooSimilar(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.json")
	ix := NewIndex(path, HashEmbedder{}, 0)

	if sim, err := ix.TooSimilar(ctx, "anything"); err != nil || sim {
		t.Fatalf("TooSimilar on empty index: sim=%v err=%v", sim, err)
	}
	if err := ix.Index(ctx, "How we shipped our mobile banking app in six weeks"); err != nil {
		t.Fatalf("Index: %v", err)
	}
	sim, err := ix.TooSimilar(ctx, "how we shipped our mobile banking app in six weeks!")
	if err != nil || !sim {
		t.Fatalf("TooSimilar near-duplicate: sim=%v err=%v", sim, err)
	}
	sim, _ = ix.TooSimilar(ctx, "Hiring: senior designers wanted for our Cairo studio")
	if sim {
		t.Fatal("TooSimilar unrelated: expected false")
	}

	// Reload from disk.
	ix2 := NewIndex(path, HashEmbedder{}, 0)
	if n, err := ix2.Len(); err != nil || n != 1 {
		t.Fatalf("Len after reload: n=%d err=%v", n, err)
	}
}

func TestIndex_dimensionMismatchIgnored(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "vectors.json")
	if err := NewIndex(path, HashEmbedder{Dims: 64}, 0).Index(ctx, "same text"); err != nil {
		t.Fatal(err)
	}
	sim, err := NewIndex(path, HashEmbedder{Dims: 128}, 0).TooSimilar(ctx, "same text")
	if err != nil || sim {
		t.Fatalf("TooSimilar across dims: sim=%v err=%v", sim, err)
	}
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("quota")
}

func TestIndex_embedError(t *testing.T) {
	t.Parallel()
	ix := NewIndex(filepath.Join(t.TempDir(), "v.json"), failingEmbedder{}, 0)
	if err := ix.Index(context.Background(), "x"); err == nil {
		t.Fatal("Index: expected error")
	}
}

func TestHashEmbedder_deterministic(t *testing.T) {
	t.Parallel()
	a, _ := HashEmbedder{Dims: 32}.Embed(context.Background(), "Hello, World")
	b, _ := HashEmbedder{Dims: 32}.Embed(context.Background(), "hello world")
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("HashEmbedder: vectors differ at %d", i)
		}
	}
}
