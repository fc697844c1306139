// Package brand provides the brand voice profile used when drafting posts.
// The profile is extracted once from the knowledge base by a text model and cached as JSON.
package brand

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
)

// Profile is the brand voice: tone adjectives, target audience and writing rules.
type Profile struct {
	Tone       []string `json:"tone"`
	Audience   string   `json:"audience"`
	StyleRules []string `json:"style_rules"`
}

// Default is the neutral profile used when no profile can be built.
func Default() Profile {
	return Profile{
		Tone:       []string{"clear", "confident", "friendly"},
		Audience:   "Decision makers and practitioners who follow the company on social media.",
		StyleRules: []string{"Lead with the main point", "Keep sentences short", "End with a call to action"},
	}
}

// Source supplies the brand profile.
type Source interface {
	Profile(ctx context.Context) (Profile, error)
}

// Completer is a text model.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Retriever answers questions from the knowledge base.
type Retriever interface {
	Query(ctx context.Context, question string) (string, error)
}

const profilePrompt = `You are a brand-voice analyst.

Given the CONTEXT below, output *ONLY valid JSON* with:
- "tone"        : array of 3-5 adjectives
- "audience"    : 1-2 full sentences
- "style_rules" : short list of rules (max 6)

CONTEXT
=======
%s
=======
`

// Cache loads the profile from Path, building and writing it on first use.
// Model and KB may be nil, in which case a missing cache yields Default.
type Cache struct {
	Path  string
	Name  string // brand or company name used in the extraction question
	Model Completer
	KB    Retriever

	once sync.Once
	mu   sync.Mutex
	p    Profile
}

// Profile returns the cached profile, loading or building it once per process. It never fails:
// build errors are logged and Default is used.
func (c *Cache) Profile(ctx context.Context) (Profile, error) {
	c.once.Do(func() {
		p, err := c.load()
		if err == nil {
			c.set(p)
			return
		}
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("brand profile unreadable, rebuilding", "path", c.Path, "err", err)
		}
		p, err = c.Rebuild(ctx)
		if err != nil {
			slog.Warn("brand profile unavailable, using default", "err", err)
			c.set(Default())
			return
		}
		c.set(p)
	})
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.p, nil
}

// Rebuild extracts a fresh profile and overwrites the cache file.
func (c *Cache) Rebuild(ctx context.Context) (Profile, error) {
	if c.Model == nil {
		return Profile{}, errors.New("no text model configured")
	}
	name := c.Name
	if name == "" {
		name = "the company"
	}
	var summary string
	if c.KB != nil {
		s, err := c.KB.Query(ctx, fmt.Sprintf("Summarise %s's writing style, customers, and product area in one paragraph.", name))
		if err != nil {
			return Profile{}, fmt.Errorf("query knowledge base: %w", err)
		}
		summary = s
	}
	raw, err := c.Model.Complete(ctx, fmt.Sprintf(profilePrompt, summary))
	if err != nil {
		return Profile{}, fmt.Errorf("extract profile: %w", err)
	}
	p, err := Parse(raw)
	if err != nil {
		return Profile{}, err
	}
	if err := c.save(p); err != nil {
		return Profile{}, err
	}
	c.set(p)
	return p, nil
}

func (c *Cache) set(p Profile) {
	c.mu.Lock()
	c.p = p
	c.mu.Unlock()
}

func (c *Cache) load() (Profile, error) {
	b, err := os.ReadFile(c.Path)
	if err != nil {
		return Profile{}, err
	}
	return Parse(string(b))
}

func (c *Cache) save(p Profile) error {
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(c.Path, append(b, '\n'), 0o644)
}

// Parse extracts a Profile from model output, tolerating code fences and prose around the JSON object.
// A "tone" given as one comma-separated string is split.
func Parse(raw string) (Profile, error) {
	start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return Profile{}, errors.New("brand profile: no JSON object in model output")
	}
	js := raw[start : end+1]
	if !gjson.Valid(js) {
		return Profile{}, errors.New("brand profile: invalid JSON in model output")
	}
	doc := gjson.Parse(js)
	p := Profile{
		Tone:       stringList(doc.Get("tone")),
		Audience:   strings.TrimSpace(doc.Get("audience").String()),
		StyleRules: stringList(doc.Get("style_rules")),
	}
	if len(p.Tone) == 0 && p.Audience == "" && len(p.StyleRules) == 0 {
		return Profile{}, errors.New("brand profile: no tone, audience or style_rules")
	}
	return p, nil
}

func stringList(v gjson.Result) []string {
	var out []string
	if v.IsArray() {
		for _, e := range v.Array() {
			if s := strings.TrimSpace(e.String()); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	for _, s := range strings.Split(v.String(), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
