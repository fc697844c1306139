// Package scheduler answers the queue and post-listing commands typed into the chat:
// show queue/posts/history, schedule, remove and help.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ankittk/postcraft/internal/dates"
	"github.com/ankittk/postcraft/internal/otel"
	"github.com/ankittk/postcraft/internal/router"
	"github.com/ankittk/postcraft/internal/store"
	"github.com/ankittk/postcraft/pkg/models"
)

// HelpText is the scheduler command reference.
const HelpText = `Scheduler commands:
  show queue | show <channel> queue
  show posts | show <channel> posts
  show scheduled posts | show scheduled <channel> posts
  show history
  schedule last [<channel>] post for <date>
  schedule <id> for <date>
  remove last [<channel>] | remove <id> [from <date>]`

const (
	msgEmpty        = "Unrecognised scheduler command. Type 'help'."
	msgUnrecognised = "Unrecognised scheduler command. Type 'help' for list."
	msgNothing      = "Nothing found."
	msgNoHistory    = "No conversation history found."
	msgScheduled    = "Scheduled."
	msgRemoved      = "Removed."
	msgNoPosts      = "No posts available."
	msgNothingToRm  = "Nothing to remove."
	msgNoMatch      = "Nothing matched."
	historyHeader   = "=== Conversation History (Last 10 Interactions) ==="
)

// PostSource reads the approved posts.
type PostSource interface {
	LoadAll(ctx context.Context) ([]models.Post, error)
}

// Queue is the schedule store.
type Queue interface {
	Add(ctx context.Context, postID string, channel models.Channel, text, isoDate string) error
	Remove(ctx context.Context, postID, isoDate string) (bool, error)
	List(ctx context.Context, channel models.Channel) ([]models.ScheduleEntry, error)
	PostDates(ctx context.Context) (map[string]string, error)
}

// Handler runs one scheduler command. It never returns an error: every failure becomes the reply text.
type Handler struct {
	Posts PostSource
	Queue Queue
	Dates *dates.Parser
}

type row struct {
	when     string
	channel  models.Channel
	id       string
	text     string
	imageURL string
}

// Handle executes c.UserInput and returns the text shown to the user. c.History is read for "show history".
func (h *Handler) Handle(ctx context.Context, c models.Context) string {
	toks := strings.Fields(strings.ToLower(c.UserInput))
	if len(toks) == 0 {
		return msgEmpty
	}
	op := toks[0]
	reply, err := h.dispatch(ctx, toks, c.History)
	result := "ok"
	if err != nil {
		slog.Warn("scheduler command failed", "op", op, "err", err)
		reply = "Error: " + err.Error()
		result = "error"
	}
	otel.RecordScheduleOp(ctx, op, result)
	return reply
}

func (h *Handler) dispatch(ctx context.Context, toks []string, history []models.Exchange) (string, error) {
	cmd := toks[0]
	switch {
	case cmd == "show" && contains(toks, "history"):
		return renderHistory(history), nil
	case cmd == "help" || cmd == "?":
		return HelpText, nil
	case cmd == "show":
		return h.show(ctx, toks)
	case cmd == "schedule":
		return h.schedule(ctx, toks)
	case cmd == "remove" || cmd == "unschedule":
		return h.remove(ctx, toks)
	}
	return msgUnrecognised, nil
}

func (h *Handler) show(ctx context.Context, toks []string) (string, error) {
	ch := channelIn(toks[1:])
	if contains(toks, "queue") || (contains(toks, "scheduled") && contains(toks, "posts")) {
		entries, err := h.Queue.List(ctx, ch)
		if err != nil {
			return "", err
		}
		rows := make([]row, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, row{when: e.ScheduledFor, channel: e.Channel, id: e.PostID, text: e.Text})
		}
		return format(rows), nil
	}
	if contains(toks, "posts") {
		posts, err := h.Posts.LoadAll(ctx)
		if err != nil {
			return "", err
		}
		sched, err := h.Queue.PostDates(ctx)
		if err != nil {
			return "", err
		}
		onlyScheduled := contains(toks, "scheduled")
		var rows []row
		for _, p := range posts {
			if ch != "" && !models.SameChannel(p.Channel, ch) {
				continue
			}
			date, scheduled := sched[p.ID]
			if onlyScheduled && !scheduled {
				continue
			}
			when := p.Day()
			if scheduled {
				when += fmt.Sprintf(" [SCHEDULED %s]", date)
			}
			rows = append(rows, row{when: when, channel: p.Channel, id: p.ID, text: p.Text, imageURL: p.Image()})
		}
		return format(rows), nil
	}
	return msgUnrecognised, nil
}

func (h *Handler) schedule(ctx context.Context, toks []string) (string, error) {
	if len(toks) < 2 {
		return msgUnrecognised, nil
	}
	at := index(toks, "for")
	if at < 0 {
		at = index(toks, "on")
	}
	if at < 0 {
		return "Missing date: use 'schedule <id|last> for <date>'.", nil
	}
	posts, err := h.Posts.LoadAll(ctx)
	if err != nil {
		return "", err
	}

	var post models.Post
	if toks[1] == "last" {
		p, ok := store.LatestPost(posts, channelIn(toks[2:at]))
		if !ok {
			return msgNoPosts, nil
		}
		post = p
	} else {
		p, ok := byPrefix(posts, toks[1])
		if !ok {
			return fmt.Sprintf("Post '%s' not found.", toks[1]), nil
		}
		post = p
	}

	expr := strings.Join(toks[at+1:], " ")
	iso, ok := h.Dates.ISO(expr)
	if !ok {
		return fmt.Sprintf("Couldn't parse date '%s'.", expr), nil
	}
	if err := h.Queue.Add(ctx, post.ID, post.Channel, post.Text, iso); err != nil {
		var qe *store.QueueError
		if errors.As(err, &qe) {
			return "Error: " + qe.Message, nil
		}
		return "", err
	}
	return msgScheduled, nil
}

func (h *Handler) remove(ctx context.Context, toks []string) (string, error) {
	if len(toks) < 2 {
		return msgUnrecognised, nil
	}
	if toks[1] == "last" {
		posts, err := h.Posts.LoadAll(ctx)
		if err != nil {
			return "", err
		}
		sched, err := h.Queue.PostDates(ctx)
		if err != nil {
			return "", err
		}
		var cand []models.Post
		for _, p := range posts {
			if _, ok := sched[p.ID]; ok {
				cand = append(cand, p)
			}
		}
		target, ok := store.LatestPost(cand, channelIn(toks[2:]))
		if !ok {
			return msgNothingToRm, nil
		}
		if _, err := h.Queue.Remove(ctx, target.ID, ""); err != nil {
			return "", err
		}
		return msgRemoved, nil
	}

	iso := ""
	if at := index(toks, "from"); at >= 0 {
		expr := strings.Join(toks[at+1:], " ")
		d, ok := h.Dates.ISO(expr)
		if !ok {
			return fmt.Sprintf("Couldn't parse date '%s'.", expr), nil
		}
		iso = d
	}
	id, err := h.scheduledID(ctx, toks[1])
	if err != nil {
		return "", err
	}
	if id == "" {
		return msgNoMatch, nil
	}
	ok, err := h.Queue.Remove(ctx, id, iso)
	if err != nil {
		return "", err
	}
	if !ok {
		return msgNoMatch, nil
	}
	return msgRemoved, nil
}

// scheduledID resolves an id prefix against the queue, earliest entry first.
func (h *Handler) scheduledID(ctx context.Context, prefix string) (string, error) {
	entries, err := h.Queue.List(ctx, "")
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if strings.HasPrefix(strings.ToLower(e.PostID), prefix) {
			return e.PostID, nil
		}
	}
	return "", nil
}

func renderHistory(history []models.Exchange) string {
	if len(history) == 0 {
		return msgNoHistory
	}
	if len(history) > models.HistoryShowEntries {
		history = history[len(history)-models.HistoryShowEntries:]
	}
	lines := []string{historyHeader}
	for _, e := range history {
		if e.User != "" && strings.ToLower(e.User) != "show history" {
			lines = append(lines, "User: "+e.User)
		}
		if e.Bot != "" {
			lines = append(lines, "Bot: "+truncate(e.Bot, models.HistoryBotTruncate, "..."))
		}
	}
	return strings.Join(lines, "\n")
}

func format(rows []row) string {
	if len(rows) == 0 {
		return msgNothing
	}
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		line := fmt.Sprintf("- %s - %s - %s... \"%s...\"", r.when, r.channel, truncate(r.id, 8, ""), truncate(r.text, 60, ""))
		if r.imageURL != "" {
			line += " Image: " + r.imageURL
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int, suffix string) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + suffix
}

func byPrefix(posts []models.Post, prefix string) (models.Post, bool) {
	for _, p := range posts {
		if strings.HasPrefix(strings.ToLower(p.ID), prefix) {
			return p, true
		}
	}
	return models.Post{}, false
}

func channelIn(toks []string) models.Channel {
	for _, t := range toks {
		if ch, ok := router.NormalizeChannel(t); ok {
			return ch
		}
	}
	return ""
}

func contains(toks []string, s string) bool {
	return index(toks, s) >= 0
}

func index(toks []string, s string) int {
	for i, t := range toks {
		if t == s {
			return i
		}
	}
	return -1
}
