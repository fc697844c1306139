package store

import "errors"

var (
	// ErrDuplicatePost is returned by PostStore.Save when a post with the same trimmed text exists.
	ErrDuplicatePost = errors.New("duplicate post")
	// ErrEmptyPost is returned by PostStore.Save for blank text.
	ErrEmptyPost = errors.New("empty post")
	// ErrSlotTaken is returned by ScheduleQueue.Add when the (channel, date) slot is occupied.
	ErrSlotTaken = errors.New("slot taken")
	// ErrInvalidDate is returned by ScheduleQueue.Add for a date that is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")
)

// QueueError carries a message fit for the user alongside a sentinel kind for errors.Is.
type QueueError struct {
	Kind    error
	Message string
}

func (e *QueueError) Error() string { return e.Message }

func (e *QueueError) Unwrap() error { return e.Kind }
