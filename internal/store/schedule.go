package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ankittk/postcraft/internal/dates"
	"github.com/ankittk/postcraft/pkg/models"
)

// ScheduleQueue is the list of planned publications in a JSON file. Each (channel, date) slot holds at most one entry.
// A post may be scheduled into several slots.
type ScheduleQueue struct {
	path string
	mu   sync.Mutex
}

// NewScheduleQueue returns a queue backed by path.
func NewScheduleQueue(path string) *ScheduleQueue {
	return &ScheduleQueue{path: path}
}

// Path returns the backing file.
func (q *ScheduleQueue) Path() string { return q.path }

// Add books postID into the (channel, isoDate) slot with a frozen copy of text.
// It returns a *QueueError wrapping ErrInvalidDate or ErrSlotTaken and writes nothing on failure.
func (q *ScheduleQueue) Add(_ context.Context, postID string, channel models.Channel, text, isoDate string) error {
	if !dates.ValidISO(isoDate) {
		return &QueueError{Kind: ErrInvalidDate, Message: fmt.Sprintf("Date '%s' is not ISO-8601 (YYYY-MM-DD).", isoDate)}
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	rows, err := q.load()
	if err != nil {
		return err
	}
	for _, r := range rows {
		if models.SameChannel(r.Channel, channel) && r.ScheduledFor == isoDate {
			return &QueueError{Kind: ErrSlotTaken, Message: fmt.Sprintf("%s already has a post on %s.", channel, isoDate)}
		}
	}
	rows = append(rows, models.ScheduleEntry{PostID: postID, Channel: channel, Text: text, ScheduledFor: isoDate})
	if err := writeJSON(q.path, rows); err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}
	return nil
}

// Remove deletes the entry for postID on isoDate, or the first entry for postID when isoDate is empty.
// It reports whether anything was removed.
func (q *ScheduleQueue) Remove(_ context.Context, postID, isoDate string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	rows, err := q.load()
	if err != nil {
		return false, err
	}
	idx := -1
	for i, r := range rows {
		if r.PostID == postID && (isoDate == "" || r.ScheduledFor == isoDate) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}
	rows = append(rows[:idx], rows[idx+1:]...)
	if err := writeJSON(q.path, rows); err != nil {
		return false, fmt.Errorf("save schedule: %w", err)
	}
	return true, nil
}

// List returns the entries of channel (all channels when empty) sorted by date, then lower-cased channel.
func (q *ScheduleQueue) List(_ context.Context, channel models.Channel) ([]models.ScheduleEntry, error) {
	q.mu.Lock()
	rows, err := q.load()
	q.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, r := range rows {
		if channel == "" || models.SameChannel(r.Channel, channel) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ScheduledFor != out[j].ScheduledFor {
			return out[i].ScheduledFor < out[j].ScheduledFor
		}
		return strings.ToLower(string(out[i].Channel)) < strings.ToLower(string(out[j].Channel))
	})
	return out, nil
}

// PostDates maps each scheduled post id to its earliest scheduled date.
func (q *ScheduleQueue) PostDates(_ context.Context) (map[string]string, error) {
	q.mu.Lock()
	rows, err := q.load()
	q.mu.Unlock()
	if err != nil {
		return nil, err
	}
	m := make(map[string]string, len(rows))
	for _, r := range rows {
		if d, ok := m[r.PostID]; !ok || r.ScheduledFor < d {
			m[r.PostID] = r.ScheduledFor
		}
	}
	return m, nil
}

func (q *ScheduleQueue) load() ([]models.ScheduleEntry, error) {
	var rows []models.ScheduleEntry
	if err := readJSON(q.path, &rows); err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	return rows, nil
}
