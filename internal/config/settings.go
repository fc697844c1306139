package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Checkpoint drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Model is one text model in the fallback chain with its request budget.
type Model struct {
	Name string `yaml:"name"`
	RPM  int    `yaml:"rpm"`
	RPD  int    `yaml:"rpd"`
}

// CheckpointSettings selects where thread state is kept between turns.
type CheckpointSettings struct {
	Driver string        `yaml:"driver"`
	DSN    string        `yaml:"dsn"`
	TTL    time.Duration `yaml:"ttl"` // redis only; 0 keeps threads forever
}

// HTTPSettings configures `postcraft serve`.
type HTTPSettings struct {
	Addr   string `yaml:"addr"`
	APIKey string `yaml:"api_key"`
}

// SlackSettings enables approval notifications when WebhookURL is set.
type SlackSettings struct {
	WebhookURL string `yaml:"webhook_url"`
	Channel    string `yaml:"channel"`
}

// Settings is <home>/config.yaml.
type Settings struct {
	BrandName           string             `yaml:"brand_name"`
	Models              []Model            `yaml:"models"`
	EmbeddingModel      string             `yaml:"embedding_model"`
	Temperature         float32            `yaml:"temperature"`
	Images              bool               `yaml:"images"`
	SimilarityThreshold float64            `yaml:"similarity_threshold"`
	KBTopK              int                `yaml:"kb_top_k"`
	Checkpoint          CheckpointSettings `yaml:"checkpoint"`
	HTTP                HTTPSettings       `yaml:"http"`
	Slack               SlackSettings      `yaml:"slack"`
	LogLevel            string             `yaml:"log_level"`
	LogFormat           string             `yaml:"log_format"`
}

// Defaults returns the settings used when config.yaml is missing or leaves a field empty.
func Defaults() Settings {
	return Settings{
		Models: []Model{
			{Name: "gemini-2.5-flash", RPM: 10, RPD: 250},
			{Name: "gemini-2.5-flash-lite", RPM: 15, RPD: 1000},
		},
		EmbeddingModel:      "text-embedding-004",
		Temperature:         0.7,
		Images:              true,
		SimilarityThreshold: 0.85,
		KBTopK:              4,
		Checkpoint:          CheckpointSettings{Driver: DriverSQLite},
		HTTP:                HTTPSettings{Addr: "127.0.0.1:8080"},
		LogLevel:            "info",
		LogFormat:           "text",
	}
}

// LoadSettings reads <home>/config.yaml over the defaults, then applies environment overrides.
// A missing file is not an error.
func LoadSettings(home string) (Settings, error) {
	s := Defaults()
	data, err := os.ReadFile(SettingsPath(home))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return s, err
	default:
		if err := yaml.Unmarshal(data, &s); err != nil {
			return s, fmt.Errorf("parse %s: %w", SettingsPath(home), err)
		}
	}
	s.applyEnv()
	s.fillDefaults()
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// SaveSettings writes s to <home>/config.yaml.
func SaveSettings(home string, s Settings) error {
	if err := os.MkdirAll(home, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(SettingsPath(home), data, 0o644)
}

// Validate checks fields that have a closed set of values.
func (s Settings) Validate() error {
	switch s.Checkpoint.Driver {
	case DriverMemory, DriverSQLite, DriverPostgres, DriverRedis:
	default:
		return fmt.Errorf("unknown checkpoint driver %q (want memory, sqlite, postgres or redis)", s.Checkpoint.Driver)
	}
	if s.SimilarityThreshold <= 0 || s.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be in (0, 1], got %v", s.SimilarityThreshold)
	}
	return nil
}

func (s *Settings) applyEnv() {
	setString(&s.BrandName, "POSTCRAFT_BRAND_NAME")
	setString(&s.Checkpoint.Driver, "POSTCRAFT_CHECKPOINT_DRIVER")
	setString(&s.Checkpoint.DSN, "POSTCRAFT_CHECKPOINT_DSN")
	setString(&s.HTTP.Addr, "POSTCRAFT_HTTP_ADDR")
	setString(&s.HTTP.APIKey, "POSTCRAFT_API_KEY")
	setString(&s.Slack.WebhookURL, "SLACK_WEBHOOK_URL")
	setString(&s.Slack.Channel, "SLACK_CHANNEL")
	setString(&s.LogLevel, "POSTCRAFT_LOG_LEVEL")
	setString(&s.LogFormat, "POSTCRAFT_LOG_FORMAT")
	if v := os.Getenv("POSTCRAFT_IMAGES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			s.Images = b
		}
	}
	if s.Checkpoint.Driver == DriverRedis && s.Checkpoint.DSN == "" {
		s.Checkpoint.DSN = os.Getenv("REDIS_URL")
	}
	s.Checkpoint.Driver = strings.ToLower(strings.TrimSpace(s.Checkpoint.Driver))
}

func (s *Settings) fillDefaults() {
	d := Defaults()
	if len(s.Models) == 0 {
		s.Models = d.Models
	}
	if s.EmbeddingModel == "" {
		s.EmbeddingModel = d.EmbeddingModel
	}
	if s.SimilarityThreshold == 0 {
		s.SimilarityThreshold = d.SimilarityThreshold
	}
	if s.KBTopK <= 0 {
		s.KBTopK = d.KBTopK
	}
	if s.Checkpoint.Driver == "" {
		s.Checkpoint.Driver = d.Checkpoint.Driver
	}
	if s.HTTP.Addr == "" {
		s.HTTP.Addr = d.HTTP.Addr
	}
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

// LoadEnv loads KEY=VALUE files into the process environment without overriding variables that are
// already set. With no paths it loads ./.env if present; explicitly named files must exist.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		return godotenv.Load()
	}
	return godotenv.Load(paths...)
}
