// Package app builds the postcraft service graph from the home directory and settings.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ankittk/postcraft/internal/brain"
	"github.com/ankittk/postcraft/internal/brand"
	"github.com/ankittk/postcraft/internal/capabilities"
	"github.com/ankittk/postcraft/internal/checkpoint"
	"github.com/ankittk/postcraft/internal/checkpoint/postgres"
	"github.com/ankittk/postcraft/internal/checkpoint/redis"
	"github.com/ankittk/postcraft/internal/checkpoint/sqlite"
	"github.com/ankittk/postcraft/internal/config"
	"github.com/ankittk/postcraft/internal/dates"
	"github.com/ankittk/postcraft/internal/generate"
	"github.com/ankittk/postcraft/internal/kb"
	"github.com/ankittk/postcraft/internal/review"
	"github.com/ankittk/postcraft/internal/router"
	"github.com/ankittk/postcraft/internal/scheduler"
	"github.com/ankittk/postcraft/internal/similarity"
	"github.com/ankittk/postcraft/internal/store"
	"github.com/ankittk/postcraft/internal/workflow"
)

// Options configures New.
type Options struct {
	Home     string
	Settings config.Settings
	// Offline skips every remote model even when API keys are present.
	Offline bool
	// Clock drives relative dates; nil means time.Now.
	Clock func() time.Time
}

// App holds the constructed services. Close releases the checkpoint backend.
type App struct {
	Home         string
	Settings     config.Settings
	Posts        *store.PostStore
	Queue        *store.ScheduleQueue
	Similarity   *similarity.Index
	KB           *kb.Corpus
	Brand        *brand.Cache
	Gemini       *brain.Gemini // nil when offline
	Images       generate.ImageGenerator
	Capabilities *capabilities.Registry
	Checkpoints  checkpoint.Checkpointer
	Scheduler    *scheduler.Handler
	Engine       *workflow.Engine
}

// New wires every component. Missing API keys switch the text model to brain.Offline and disable images.
func New(ctx context.Context, opts Options) (*App, error) {
	if opts.Home == "" {
		return nil, errors.New("home is required")
	}
	if err := os.MkdirAll(opts.Home, 0o755); err != nil {
		return nil, err
	}
	s := opts.Settings
	a := &App{Home: opts.Home, Settings: s}

	if !opts.Offline {
		g, err := brain.NewGemini(ctx, "", geminiModels(s.Models))
		if err != nil {
			slog.Info("text model offline", "reason", err)
		} else {
			g.EmbeddingModel = s.EmbeddingModel
			if s.Temperature > 0 {
				g.Temperature = s.Temperature
			}
			a.Gemini = g
		}
		if s.Images {
			d, err := brain.NewDallE("", config.ImagesDir(opts.Home))
			if err != nil {
				slog.Info("image generation disabled", "reason", err)
			} else {
				a.Images = d
			}
		}
	}

	var emb similarity.Embedder = similarity.HashEmbedder{}
	if a.Gemini != nil {
		emb = a.Gemini
	}
	a.Similarity = similarity.NewIndex(config.VectorsPath(opts.Home), emb, s.SimilarityThreshold)
	a.Posts = store.NewPostStore(config.PostsPath(opts.Home), a.Similarity)
	a.Queue = store.NewScheduleQueue(config.SchedulePath(opts.Home))

	a.KB = &kb.Corpus{Dir: config.KBDir(opts.Home), TopK: s.KBTopK}
	a.Brand = &brand.Cache{Path: config.BrandPath(opts.Home), Name: s.BrandName, KB: a.KB}
	if a.Gemini != nil {
		a.KB.Model = a.Gemini
		a.Brand.Model = a.Gemini
	}

	a.Capabilities = capabilities.NewRegistry()
	a.Capabilities.Register(capabilities.LogSink{})
	if s.Slack.WebhookURL != "" {
		a.Capabilities.Register(capabilities.SlackWebhook{WebhookURL: s.Slack.WebhookURL, Channel: s.Slack.Channel, Username: "postcraft"})
	}

	cp, err := OpenCheckpointer(ctx, opts.Home, s.Checkpoint)
	if err != nil {
		return nil, err
	}
	a.Checkpoints = cp

	gen := &generate.Handler{
		Content:    brain.Offline{},
		Similarity: a.Similarity,
		Knowledge:  a.KB,
		Brand:      a.Brand,
		BrandName:  s.BrandName,
	}
	if a.Gemini != nil {
		gen.Content = a.Gemini
	}
	if a.Images != nil {
		gen.Images = a.Images
	}
	a.Scheduler = &scheduler.Handler{Posts: a.Posts, Queue: a.Queue, Dates: dates.NewParser(opts.Clock)}
	a.Engine = &workflow.Engine{
		Classifier:  router.RegexClassifier{},
		Generate:    gen,
		Scheduler:   a.Scheduler,
		KB:          a.KB,
		Gate:        &review.Gate{Posts: a.Posts, Notifier: a.Capabilities},
		Checkpoints: cp,
	}
	return a, nil
}

// Mode describes which model backends are active, for status output.
func (a *App) Mode() string {
	text := "offline"
	if a.Gemini != nil {
		text = "gemini"
	}
	images := "off"
	if a.Images != nil {
		images = "dall-e-3"
	}
	return fmt.Sprintf("text=%s images=%s checkpoint=%s", text, images, a.Settings.Checkpoint.Driver)
}

// Close releases the checkpoint backend.
func (a *App) Close() error {
	if a.Checkpoints == nil {
		return nil
	}
	return a.Checkpoints.Close()
}

// OpenCheckpointer opens the backend named by cs.Driver.
func OpenCheckpointer(ctx context.Context, home string, cs config.CheckpointSettings) (checkpoint.Checkpointer, error) {
	switch cs.Driver {
	case config.DriverMemory:
		return checkpoint.NewMemory(), nil
	case config.DriverSQLite, "":
		st, err := sqlite.Open(home, cs.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite checkpoints: %w", err)
		}
		return st, nil
	case config.DriverPostgres:
		st, err := postgres.Open(ctx, cs.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres checkpoints: %w", err)
		}
		return st, nil
	case config.DriverRedis:
		st, err := redis.Open(cs.DSN, cs.TTL)
		if err != nil {
			return nil, fmt.Errorf("open redis checkpoints: %w", err)
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown checkpoint driver %q", cs.Driver)
	}
}

func geminiModels(ms []config.Model) []brain.ModelConfig {
	if len(ms) == 0 {
		return brain.DefaultModels()
	}
	out := make([]brain.ModelConfig, 0, len(ms))
	for _, m := range ms {
		out = append(out, brain.ModelConfig{Name: m.Name, RPM: m.RPM, RPD: m.RPD})
	}
	return out
}

// NewLogger returns a slog logger writing text (default) or JSON at the given level.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps debug/info/warn/error to a slog level; anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
