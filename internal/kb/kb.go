// Package kb is the company knowledge base: scraped pages stored as text, retrieved by keyword overlap and
// optionally summarised by a text model.
package kb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/anaskhan96/soup"
)

// EmptyAnswer is returned by Query when nothing has been ingested.
const EmptyAnswer = "The knowledge base is empty. Run 'postcraft kb ingest <url>' first."

const (
	chunkSize   = 800
	defaultTopK = 5
	maxPageSize = 5 << 20
)

// Completer is a text model.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Corpus is a directory of .txt documents.
type Corpus struct {
	Dir   string
	Model Completer // nil answers with the best matching passages
	TopK  int
	HTTP  *http.Client
}

// Ingest downloads url, strips markup and scripts, and stores the visible text. It returns the written file.
func (c *Corpus) Ingest(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid url %q", rawURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", u, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("fetch %s: status %d", u, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return "", err
	}
	text := PageText(string(body))
	if text == "" {
		return "", fmt.Errorf("fetch %s: no text content", u)
	}
	name := slug(u.Host+u.Path) + ".txt"
	return name, c.AddText(name, text)
}

// AddText stores text as a document named name.
func (c *Corpus) AddText(name, text string) error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.Dir, filepath.Base(name)), []byte(text), 0o644)
}

// PageText returns the visible text of an HTML page, one block per line.
func PageText(html string) string {
	doc := soup.HTMLParse(html)
	if doc.Error != nil {
		return ""
	}
	for _, tag := range []string{"script", "style", "noscript"} {
		for _, n := range doc.FindAll(tag) {
			if n.Pointer != nil && n.Pointer.Parent != nil {
				n.Pointer.Parent.RemoveChild(n.Pointer)
			}
		}
	}
	root := doc
	if b := doc.Find("body"); b.Error == nil {
		root = b
	}
	var lines []string
	for _, line := range strings.Split(root.FullText(), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// Documents lists the stored document names.
func (c *Corpus) Documents() ([]string, error) {
	entries, err := os.ReadDir(c.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".txt") {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// Query answers question from the stored documents. With a Model the best passages are given to it as
// context; without one, or when the model fails, the passages themselves are returned.
func (c *Corpus) Query(ctx context.Context, question string) (string, error) {
	chunks, err := c.chunks()
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return EmptyAnswer, nil
	}
	k := c.TopK
	if k <= 0 {
		k = defaultTopK
	}
	top := Rank(chunks, question, k)
	passages := strings.Join(top, "\n---\n")
	if c.Model == nil {
		return passages, nil
	}
	prompt := fmt.Sprintf("Answer the question using only the context below. If the context does not contain the answer, say so.\n\nCONTEXT\n=======\n%s\n=======\n\nQuestion: %s", passages, question)
	answer, err := c.Model.Complete(ctx, prompt)
	if err != nil {
		slog.Warn("knowledge base model failed, returning passages", "err", err)
		return passages, nil
	}
	return answer, nil
}

func (c *Corpus) chunks() ([]string, error) {
	names, err := c.Documents()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, name := range names {
		b, err := os.ReadFile(filepath.Join(c.Dir, name))
		if err != nil {
			return nil, err
		}
		out = append(out, Chunk(string(b), chunkSize)...)
	}
	return out, nil
}

// Chunk splits text on line boundaries into pieces of at most size bytes (a single longer line stays whole).
func Chunk(text string, size int) []string {
	var (
		out []string
		cur strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}
	for _, line := range strings.Split(text, "\n") {
		if cur.Len() > 0 && cur.Len()+len(line)+1 > size {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
	}
	flush()
	return out
}

// Rank returns up to k chunks ordered by how many distinct query terms they contain, weighted by term rarity.
// Ties keep document order. Chunks sharing no term are dropped unless nothing matches, in which case the first
// k chunks are returned.
func Rank(chunks []string, query string, k int) []string {
	terms := terms(query)
	df := make(map[string]int, len(terms))
	sets := make([]map[string]bool, len(chunks))
	for i, ch := range chunks {
		sets[i] = make(map[string]bool)
		for _, t := range Terms(ch) {
			sets[i][t] = true
		}
		for t := range terms {
			if sets[i][t] {
				df[t]++
			}
		}
	}
	type scored struct {
		idx   int
		score float64
	}
	var hits []scored
	for i := range chunks {
		var s float64
		for t := range terms {
			if sets[i][t] {
				s += 1 / float64(df[t])
			}
		}
		if s > 0 {
			hits = append(hits, scored{i, s})
		}
	}
	if len(hits) == 0 {
		if len(chunks) > k {
			return chunks[:k]
		}
		return chunks
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })
	if len(hits) > k {
		hits = hits[:k]
	}
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = chunks[h.idx]
	}
	return out
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "about": true, "as": true, "at": true, "be": true,
	"by": true, "do": true, "does": true, "for": true, "from": true, "how": true, "in": true, "is": true,
	"it": true, "of": true, "on": true, "or": true, "our": true, "the": true, "to": true, "what": true,
	"who": true, "with": true, "you": true, "your": true, "we": true, "list": true, "short": true,
}

func terms(s string) map[string]bool {
	out := make(map[string]bool)
	for _, t := range Terms(s) {
		out[t] = true
	}
	return out
}

// Terms splits s into lower-cased words, dropping stopwords and one-letter tokens.
func Terms(s string) []string {
	var out []string
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(w) > 1 && !stopwords[w] {
			out = append(out, w)
		}
	}
	return out
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	s = strings.Trim(slugRe.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if s == "" {
		return "page"
	}
	if len(s) > 80 {
		s = s[:80]
	}
	return s
}
