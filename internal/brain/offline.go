package brain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ankittk/postcraft/internal/generate"
	"github.com/ankittk/postcraft/pkg/models"
)

// ErrImagesDisabled is returned by Offline.CreateImage.
var ErrImagesDisabled = errors.New("image generation is not configured (set OPENAI_API_KEY)")

// Offline is a deterministic stand-in for the model clients. It lets the agent run end to end without
// network access: drafts are assembled from the request and images are refused.
type Offline struct{}

func (Offline) Name() string { return "offline" }

// Generate implements generate.ContentGenerator.
func (Offline) Generate(_ context.Context, req generate.Request) (string, error) {
	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "%s post: %s", req.Channel, topicOnly(req.Topic))
	if facts := strings.TrimSpace(req.Facts); facts != "" {
		_, _ = fmt.Fprintf(&b, "\n\n%s", firstLines(facts, 3))
	}
	if len(req.Profile.Tone) > 0 {
		_, _ = fmt.Fprintf(&b, "\n\n#%s", strings.Join(req.Profile.Tone, " #"))
	}
	return b.String(), nil
}

// CreateImage implements generate.ImageGenerator.
func (Offline) CreateImage(context.Context, string, models.Channel) (generate.Image, error) {
	return generate.Image{}, ErrImagesDisabled
}

func topicOnly(topic string) string {
	low := strings.ToLower(topic)
	if i := strings.Index(low, " post"); i >= 0 {
		rest := strings.TrimSpace(topic[i+len(" post"):])
		if rest != "" {
			return rest
		}
	}
	return topic
}

func firstLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}
