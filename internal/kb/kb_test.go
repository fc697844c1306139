package kb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const page = `<html><head><title>Acme</title><style>body{color:red}</style></head>
<body><script>var tracking = 1;</script>
<h1>Acme builds mobile apps</h1>
<p>We shipped 120 apps for banks and retailers.</p>
<p>Our studio is in Cairo.</p>
</body></html>`

func TestPageText(t *testing.T) {
	t.Parallel()
	got := PageText(page)
	if strings.Contains(got, "tracking") || strings.Contains(got, "color:red") {
		t.Fatalf("PageText kept script/style: %q", got)
	}
	for _, want := range []string{"Acme builds mobile apps", "We shipped 120 apps for banks and retailers.", "Our studio is in Cairo."} {
		if !strings.Contains(got, want) {
			t.Fatalf("PageText missing %q: %q", want, got)
		}
	}
}

func TestCorpus_IngestAndQuery(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	c := &Corpus{Dir: filepath.Join(t.TempDir(), "kb"), HTTP: srv.Client(), TopK: 1}
	ctx := context.Background()
	name, err := c.Ingest(ctx, srv.URL+"/about")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if _, err := os.Stat(filepath.Join(c.Dir, name)); err != nil {
		t.Fatalf("Ingest file: %v", err)
	}
	_ = c.AddText("hiring.txt", "We are hiring designers in Berlin.")

	got, err := c.Query(ctx, "Which banks did you build apps for?")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if !strings.Contains(got, "banks") {
		t.Fatalf("Query: got %q", got)
	}
}

func TestCorpus_Ingest_badURL(t *testing.T) {
	t.Parallel()
	c := &Corpus{Dir: t.TempDir()}
	if _, err := c.Ingest(context.Background(), "ftp://example.com"); err == nil {
		t.Fatal("Ingest: expected error for non-http url")
	}
}

func TestCorpus_Query_empty(t *testing.T) {
	t.Parallel()
	c := &Corpus{Dir: filepath.Join(t.TempDir(), "none")}
	got, err := c.Query(context.Background(), "anything")
	if err != nil || got != EmptyAnswer {
		t.Fatalf("Query empty: got %q, %v", got, err)
	}
}

type fakeModel struct {
	prompt string
	err    error
}

func (f *fakeModel) Complete(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return "Acme is in Cairo.", f.err
}

func TestCorpus_Query_model(t *testing.T) {
	t.Parallel()
	m := &fakeModel{}
	c := &Corpus{Dir: t.TempDir(), Model: m}
	_ = c.AddText("a.txt", "Our studio is in Cairo.")
	got, _ := c.Query(context.Background(), "where is the studio?")
	if got != "Acme is in Cairo." || !strings.Contains(m.prompt, "Our studio is in Cairo.") {
		t.Fatalf("Query with model: got %q, prompt %q", got, m.prompt)
	}

	m.err = errors.New("quota")
	got, _ = c.Query(context.Background(), "where is the studio?")
	if got != "Our studio is in Cairo." {
		t.Fatalf("Query model failure should return passages, got %q", got)
	}
}

func TestChunk(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("line of text\n", 10)
	chunks := Chunk(text, 30)
	if len(chunks) < 4 {
		t.Fatalf("Chunk: got %d chunks", len(chunks))
	}
	for _, c := range chunks {
		if len(c) > 30 {
			t.Fatalf("Chunk: chunk too long %q", c)
		}
	}
}

func TestRank(t *testing.T) {
	t.Parallel()
	chunks := []string{"we love cats", "mobile banking apps", "banking regulation in egypt"}
	got := Rank(chunks, "mobile banking", 2)
	if len(got) != 2 || got[0] != "mobile banking apps" {
		t.Fatalf("Rank: got %v", got)
	}
	got = Rank(chunks, "zebra", 2)
	if len(got) != 2 || got[0] != "we love cats" {
		t.Fatalf("Rank no match: got %v", got)
	}
}
