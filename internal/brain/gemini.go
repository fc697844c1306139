// Package brain holds the model clients: Gemini for text and embeddings, DALL-E for images,
// and offline stand-ins used when no API key is configured.
package brain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/ankittk/postcraft/internal/generate"
)

// DefaultEmbeddingModel is the Gemini embedding model used for similarity checks.
const DefaultEmbeddingModel = "text-embedding-004"

// ModelConfig is one text model in the fallback chain with its request budget.
type ModelConfig struct {
	Name string `yaml:"name"`
	RPM  int    `yaml:"rpm"`
	RPD  int    `yaml:"rpd"`
}

// DefaultModels is the fallback chain used when none is configured.
func DefaultModels() []ModelConfig {
	return []ModelConfig{
		{Name: "gemini-2.5-flash", RPM: 10, RPD: 250},
		{Name: "gemini-2.5-flash-lite", RPM: 15, RPD: 1000},
	}
}

// ErrNoModelAvailable is returned when every model in the chain is over budget or rate limited.
var ErrNoModelAvailable = errors.New("no model available")

// Gemini calls the Gemini API. Models are tried in order; a model that is over its per-minute or per-day
// budget, or that answers with a rate-limit or not-found error, is skipped.
type Gemini struct {
	Client         *genai.Client
	Models         []ModelConfig
	EmbeddingModel string
	Temperature    float32

	mu           sync.Mutex
	dailyCount   map[string]int
	minuteCount  map[string]int
	lastResetDay time.Time
	lastResetMin time.Time
	now          func() time.Time
}

// NewGemini builds a client. An empty apiKey falls back to GEMINI_API_KEY, then GOOGLE_API_KEY.
func NewGemini(ctx context.Context, apiKey string, models []ModelConfig) (*Gemini, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		models = DefaultModels()
	}
	now := time.Now()
	return &Gemini{
		Client:         client,
		Models:         models,
		EmbeddingModel: DefaultEmbeddingModel,
		Temperature:    0.7,
		dailyCount:     make(map[string]int),
		minuteCount:    make(map[string]int),
		lastResetDay:   now,
		lastResetMin:   now,
		now:            time.Now,
	}, nil
}

// Generate implements generate.ContentGenerator.
func (g *Gemini) Generate(ctx context.Context, req generate.Request) (string, error) {
	out, err := g.Complete(ctx, generate.Prompt(req))
	if err != nil {
		return "", err
	}
	return cleanFences(out), nil
}

// Complete sends a single prompt and returns the text of the first candidate.
func (g *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{Temperature: genai.Ptr(g.Temperature)}
	var lastErr error
	for _, m := range g.Models {
		if !g.canUse(m) {
			continue
		}
		result, err := g.Client.Models.GenerateContent(ctx, m.Name, genai.Text(prompt), cfg)
		if err != nil {
			if retryable(err) {
				lastErr = err
				continue
			}
			return "", fmt.Errorf("%s: %w", m.Name, err)
		}
		if result != nil && len(result.Candidates) > 0 && result.Candidates[0].Content != nil && len(result.Candidates[0].Content.Parts) > 0 {
			g.record(m)
			return strings.TrimSpace(result.Candidates[0].Content.Parts[0].Text), nil
		}
		lastErr = fmt.Errorf("%s: empty response", m.Name)
	}
	if lastErr != nil {
		return "", fmt.Errorf("%w: %v", ErrNoModelAvailable, lastErr)
	}
	return "", ErrNoModelAvailable
}

// Embed implements similarity.Embedder.
func (g *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := g.Client.Models.EmbedContent(ctx, g.EmbeddingModel, genai.Text(text), nil)
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, errors.New("empty embedding response")
	}
	return resp.Embeddings[0].Values, nil
}

func (g *Gemini) canUse(m ModelConfig) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if now.YearDay() != g.lastResetDay.YearDay() || now.Year() != g.lastResetDay.Year() {
		g.dailyCount = make(map[string]int)
		g.lastResetDay = now
	}
	if now.Sub(g.lastResetMin) >= time.Minute {
		g.minuteCount = make(map[string]int)
		g.lastResetMin = now
	}
	if m.RPD > 0 && g.dailyCount[m.Name] >= m.RPD {
		return false
	}
	if m.RPM > 0 && g.minuteCount[m.Name] >= m.RPM {
		return false
	}
	return true
}

func (g *Gemini) record(m ModelConfig) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dailyCount[m.Name]++
	g.minuteCount[m.Name]++
}

func retryable(err error) bool {
	s := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "rate limit", "exhausted", "quota", "404", "not found"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func cleanFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```text")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
