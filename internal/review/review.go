// Package review is the human approval gate every generated draft passes before it is stored.
//
// A pending draft is Showing. approve moves it to Saved, reject and quit/cancel discard it, edit
// replaces the text and shows it again. The gate spans turns: the Context's WaitingForQA flag is the
// only resumption marker.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/ankittk/postcraft/internal/otel"
	"github.com/ankittk/postcraft/internal/store"
	"github.com/ankittk/postcraft/pkg/models"
)

// Outcome is the result of one gate decision.
type Outcome string

const (
	OutcomeNone      Outcome = "none" // no draft pending, nothing changed
	OutcomePending   Outcome = "pending"
	OutcomeSaved     Outcome = "saved"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeRejected  Outcome = "rejected"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeEdited    Outcome = "edited"
	OutcomeBlocked   Outcome = "blocked"
	OutcomeInvalid   Outcome = "invalid"
	OutcomeFailed    Outcome = "failed"
)

// Terminal reports whether the draft was resolved (saved or discarded).
func (o Outcome) Terminal() bool {
	switch o {
	case OutcomeSaved, OutcomeDuplicate, OutcomeRejected, OutcomeCancelled:
		return true
	}
	return false
}

// Messages shown to the user.
const (
	MsgSaved         = "✅ Saved & approved"
	MsgDuplicate     = "Duplicate post: identical text is already saved. Draft discarded."
	MsgRejected      = "Draft rejected."
	MsgCancelled     = "Action cancelled."
	MsgEdited        = "Draft updated."
	MsgEmptyEdit     = "Please provide text to edit the draft."
	MsgPlaceholder   = "⚠️ Draft still has placeholders like [Client Name]. Edit before approving."
	MsgInvalid       = "Invalid command. Please use: approve (a), edit <new text> (e <new text>), reject (r), or quit (q)."
	CommandHint      = "[A]pprove  [E]dit  [R]eject  [Q]uit"
	draftHeader      = "--- DRAFT ---"
	imageLinePattern = "Generated image: %s"
)

var placeholderRe = regexp.MustCompile(`\[[^\]]+\]`)

// HasPlaceholder reports whether text still contains a bracketed span such as [Client Name].
func HasPlaceholder(text string) bool {
	return placeholderRe.MatchString(text)
}

// Saver persists an approved post.
type Saver interface {
	Save(ctx context.Context, channel models.Channel, text, imageURL, imagePath string) (string, error)
}

// Notifier is told about every newly saved post.
type Notifier interface {
	PostSaved(ctx context.Context, id string, channel models.Channel, text string)
}

// Gate applies one user command to the pending draft.
type Gate struct {
	Posts    Saver
	Notifier Notifier // optional
}

// Review applies c.UserInput to the pending draft. With no draft pending the Context is returned
// unchanged with OutcomeNone, so a repeated call after a terminal decision is a no-op.
func (g *Gate) Review(ctx context.Context, c models.Context) (models.Context, Outcome) {
	if !c.WaitingForQA || c.Draft == "" {
		return c, OutcomeNone
	}
	out, outcome := g.decide(ctx, c.Clone())
	out.QAProcessed = true
	otel.RecordReview(ctx, string(outcome))
	slog.Debug("review", "outcome", outcome, "channel", out.Channel)
	return out, outcome
}

func (g *Gate) decide(ctx context.Context, c models.Context) (models.Context, Outcome) {
	raw := strings.TrimSpace(c.UserInput)
	cmd := strings.ToLower(raw)

	switch {
	case cmd == "approve" || cmd == "a":
		return g.approve(ctx, c)
	case cmd == "reject" || cmd == "r":
		c = c.ResolveDraft()
		c.Result = MsgRejected
		return c, OutcomeRejected
	case cmd == "quit" || cmd == "q" || cmd == "cancel" || cmd == "exit":
		c = c.ResolveDraft()
		c.Result = MsgCancelled
		return c, OutcomeCancelled
	case cmd == "edit" || cmd == "e" || strings.HasPrefix(cmd, "edit ") || strings.HasPrefix(cmd, "e "):
		text := editText(raw)
		if text == "" {
			c.Result = MsgEmptyEdit
			return c, OutcomeInvalid
		}
		c.Draft = text
		c.Result = MsgEdited
		return c, OutcomeEdited
	default:
		c.Result = MsgInvalid
		return c, OutcomeInvalid
	}
}

func (g *Gate) approve(ctx context.Context, c models.Context) (models.Context, Outcome) {
	if HasPlaceholder(c.Draft) {
		c.Result = MsgPlaceholder
		return c, OutcomeBlocked
	}
	channel := c.Channel
	if channel == "" {
		channel = models.DefaultChannel
	}
	id, err := g.Posts.Save(ctx, channel, c.Draft, c.ImageURL, c.ImagePath)
	switch {
	case errors.Is(err, store.ErrDuplicatePost):
		c = c.ResolveDraft()
		c.Result = MsgDuplicate
		return c, OutcomeDuplicate
	case err != nil:
		slog.Warn("save approved post", "err", err)
		c.Result = fmt.Sprintf("Could not save the post: %v", err)
		return c, OutcomeFailed
	}
	if g.Notifier != nil {
		g.Notifier.PostSaved(ctx, id, channel, strings.TrimSpace(c.Draft))
	}
	c = c.ResolveDraft()
	c.Result = MsgSaved
	return c, OutcomeSaved
}

// editText returns the replacement text after the edit keyword, keeping the user's casing.
func editText(raw string) string {
	i := strings.IndexAny(raw, " \t\n")
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(raw[i+1:])
}

// Reply is the text a shell shows after a turn: the draft block while a draft awaits review and was just
// produced or edited, otherwise the turn's result.
func Reply(c models.Context) string {
	if c.WaitingForQA && (c.Result == "" || c.Result == MsgEdited) {
		return Present(c)
	}
	return c.Result
}

// Present renders the pending draft with its image link and the command hint.
func Present(c models.Context) string {
	var b strings.Builder
	b.WriteString(draftHeader)
	b.WriteString("\n")
	b.WriteString(c.Draft)
	b.WriteString("\n\n")
	if c.ImageURL != "" {
		fmt.Fprintf(&b, imageLinePattern, c.ImageURL)
		b.WriteString("\n\n")
	}
	b.WriteString(CommandHint)
	return b.String()
}
