// Package generate drafts a post for the approval gate from a "write ... post" command.
package generate

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/ankittk/postcraft/internal/brand"
	"github.com/ankittk/postcraft/internal/kb"
	"github.com/ankittk/postcraft/internal/otel"
	"github.com/ankittk/postcraft/internal/router"
	"github.com/ankittk/postcraft/pkg/models"
)

// FreshAngleHint is appended to a topic that is too close to an approved post.
const FreshAngleHint = " (fresh angle, avoid repeating earlier posts)"

// Placeholder rules given to the content generator.
const (
	RuleClientPlaceholder = "If you mention a client, write it as [Client Name]."
	RuleNoPlaceholder     = "Avoid [Client Name] placeholders."
)

var needsClientRe = regexp.MustCompile(`(?i)\b(client|case\s*study|testimonial)\b`)

// Request is everything the content generator needs to write one post.
type Request struct {
	Topic           string
	Channel         models.Channel
	Facts           string
	Profile         brand.Profile
	PlaceholderRule string
	BrandName       string
}

// Image is a generated picture: its remote URL and the local copy.
type Image struct {
	URL  string
	Path string
}

// ContentGenerator writes post text.
type ContentGenerator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// ImageGenerator creates an illustration for a post.
type ImageGenerator interface {
	CreateImage(ctx context.Context, prompt string, channel models.Channel) (Image, error)
}

// SimilarityChecker reports whether text repeats an approved post.
type SimilarityChecker interface {
	TooSimilar(ctx context.Context, text string) (bool, error)
}

// KnowledgeLookup answers a question from the knowledge base.
type KnowledgeLookup interface {
	Query(ctx context.Context, question string) (string, error)
}

// Handler runs the generate route. Content is required; the other collaborators are optional.
type Handler struct {
	Content    ContentGenerator
	Images     ImageGenerator
	Similarity SimilarityChecker
	Knowledge  KnowledgeLookup
	Brand      brand.Source
	BrandName  string
}

// Handle writes a draft for c.UserInput and hands it to the approval gate: the returned Context always has
// WaitingForQA set and an empty Result. Collaborator failures never abort the turn; they become notes in
// the draft. An image is requested at most once per draft.
func (h *Handler) Handle(ctx context.Context, c models.Context) models.Context {
	out := c.Clone()
	channel := c.Channel
	if channel == "" {
		channel = models.DefaultChannel
	}
	withImage := c.WithImage || router.HasImageDirective(c.UserInput)

	topic := router.StripImageDirective(c.UserInput)
	if h.Similarity != nil {
		similar, err := h.Similarity.TooSimilar(ctx, topic)
		if err != nil {
			slog.Warn("similarity check failed", "err", err)
		} else if similar {
			topic += FreshAngleHint
		}
	}

	req := Request{
		Topic:           topic,
		Channel:         channel,
		Facts:           h.facts(ctx, topic),
		Profile:         h.profile(ctx),
		PlaceholderRule: PlaceholderRule(topic),
		BrandName:       h.BrandName,
	}

	start := time.Now()
	draft, err := h.Content.Generate(ctx, req)
	otel.RecordGeneration(ctx, "text", time.Since(start), err)
	draft = strings.TrimSpace(draft)
	if err != nil {
		slog.Warn("content generation failed", "channel", channel, "err", err)
		draft = fmt.Sprintf("(Note: content generation error: %v)", err)
	} else if draft == "" {
		draft = "(Note: content generation returned no text)"
	}

	if withImage && !c.ImageDone && h.Images != nil {
		start := time.Now()
		img, err := h.Images.CreateImage(ctx, fmt.Sprintf("Create an engaging %s image about '%s'.", channel, topic), channel)
		otel.RecordGeneration(ctx, "image", time.Since(start), err)
		if err != nil {
			slog.Warn("image generation failed", "channel", channel, "err", err)
			draft += fmt.Sprintf("\n\n(Note: image generation error: %v)", err)
		} else {
			out.ImageURL = img.URL
			out.ImagePath = img.Path
			out.ImageDone = true
		}
	}

	out.Channel = channel
	out.WithImage = withImage
	out.Draft = draft
	out.WaitingForQA = true
	out.QAProcessed = false
	out.Result = ""
	return out
}

func (h *Handler) facts(ctx context.Context, topic string) string {
	if h.Knowledge == nil {
		return ""
	}
	name := h.BrandName
	if name == "" {
		name = "the company"
	}
	facts, err := h.Knowledge.Query(ctx, fmt.Sprintf("List 3 short facts about %s relevant to '%s'.", name, topic))
	if err != nil {
		slog.Warn("knowledge lookup failed", "err", err)
		return ""
	}
	if facts == kb.EmptyAnswer {
		return ""
	}
	return strings.TrimSpace(facts)
}

func (h *Handler) profile(ctx context.Context) brand.Profile {
	if h.Brand == nil {
		return brand.Default()
	}
	p, err := h.Brand.Profile(ctx)
	if err != nil {
		slog.Warn("brand profile failed", "err", err)
		return brand.Default()
	}
	return p
}

// PlaceholderRule allows [Client Name] only when the topic is about a client, a case study or a testimonial.
func PlaceholderRule(topic string) string {
	if needsClientRe.MatchString(topic) {
		return RuleClientPlaceholder
	}
	return RuleNoPlaceholder
}

// Prompt renders req as a single instruction for a text model.
func Prompt(req Request) string {
	name := req.BrandName
	if name == "" {
		name = "the company"
	}
	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "Write a %s post.\n", req.Channel)
	_, _ = fmt.Fprintf(&b, "Audience: %s\n", req.Profile.Audience)
	_, _ = fmt.Fprintf(&b, "Tone: %s\n", strings.Join(req.Profile.Tone, ", "))
	_, _ = fmt.Fprintf(&b, "Style rules: %s\n\n", strings.Join(req.Profile.StyleRules, "; "))
	if req.Facts != "" {
		_, _ = fmt.Fprintf(&b, "Facts about %s:\n%s\n\n", name, req.Facts)
	}
	_, _ = fmt.Fprintf(&b, "Topic: %s\n\n", req.Topic)
	_, _ = fmt.Fprintf(&b, "%s\nReturn ONLY the post text.", req.PlaceholderRule)
	return b.String()
}
