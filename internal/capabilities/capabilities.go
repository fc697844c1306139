// Package capabilities holds outbound integrations told about approved posts.
package capabilities

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ankittk/postcraft/pkg/models"
)

// Capability is an integration that can deliver a short message (e.g. a Slack channel).
type Capability interface {
	Name() string
	Notify(ctx context.Context, message string) error
}

// DefaultNotifyTimeout bounds each capability's Notify call in NotifyAll.
const DefaultNotifyTimeout = 10 * time.Second

// Registry is the set of configured capabilities, kept in registration order.
type Registry struct {
	Timeout time.Duration

	mu   sync.RWMutex
	caps []Capability
}

func NewRegistry() *Registry {
	return &Registry{Timeout: DefaultNotifyTimeout}
}

// Register adds c, replacing a capability registered under the same name.
func (r *Registry) Register(c Capability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, have := range r.caps {
		if have.Name() == c.Name() {
			r.caps[i] = c
			return
		}
	}
	r.caps = append(r.caps, c)
}

// Names lists the registered capabilities in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.caps))
	for i, c := range r.caps {
		out[i] = c.Name()
	}
	return out
}

// NotifyAll sends message to every capability concurrently and joins their errors in registration order.
func (r *Registry) NotifyAll(ctx context.Context, message string) error {
	r.mu.RLock()
	caps := append([]Capability(nil), r.caps...)
	r.mu.RUnlock()

	errs := make([]error, len(caps))
	var wg sync.WaitGroup
	for i, c := range caps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, r.timeout())
			defer cancel()
			if err := c.Notify(cctx, message); err != nil {
				errs[i] = fmt.Errorf("%s: %w", c.Name(), err)
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (r *Registry) timeout() time.Duration {
	if r.Timeout <= 0 {
		return DefaultNotifyTimeout
	}
	return r.Timeout
}

// PostSaved notifies every capability that a post was approved. Failures are logged only.
func (r *Registry) PostSaved(ctx context.Context, id string, channel models.Channel, text string) {
	if r == nil {
		return
	}
	if err := r.NotifyAll(ctx, SavedMessage(id, channel, text)); err != nil {
		slog.Warn("post saved notification failed", "id", id, "err", err)
	}
}

// SavedMessage is the notification text for an approved post.
func SavedMessage(id string, channel models.Channel, text string) string {
	return fmt.Sprintf("New %s post approved (%s): %s", channel, shortID(id), preview(text))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func preview(text string) string {
	r := []rune(text)
	if len(r) > 140 {
		r = append(r[:140], []rune("...")...)
	}
	return string(r)
}

// SlackWebhook posts to a Slack incoming webhook.
type SlackWebhook struct {
	WebhookURL string
	Channel    string // overrides the webhook's default channel
	Username   string
	Client     *http.Client
}

type slackPayload struct {
	Text     string `json:"text"`
	Channel  string `json:"channel,omitempty"`
	Username string `json:"username,omitempty"`
}

func (s SlackWebhook) Name() string { return "slack" }

func (s SlackWebhook) Notify(ctx context.Context, message string) error {
	if s.WebhookURL == "" {
		return errors.New("slack webhook URL not set")
	}
	body, err := json.Marshal(slackPayload{Text: message, Channel: s.Channel, Username: s.Username})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	hc := s.Client
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("slack webhook: status %d", resp.StatusCode)
	}
	return nil
}

// LogSink writes notifications to the structured log.
type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Notify(_ context.Context, message string) error {
	slog.Info("notification", "message", message)
	return nil
}
