// Package models provides shared types for the postcraft engine, its HTTP API and external tools.
// Post and ScheduleEntry mirror the persisted JSON files and must round-trip byte for byte.
package models

import (
	"strings"
	"time"
)

// Channel is a social network a post is written for.
type Channel string

// Route is the dispatch target chosen for a user turn.
type Route string

// Post is an approved post. Posts are immutable once saved.
type Post struct {
	ID        string  `json:"id"`
	Datetime  string  `json:"datetime"`
	Channel   Channel `json:"channel"`
	Text      string  `json:"text"`
	ImageURL  *string `json:"image_url"`
	ImagePath *string `json:"image_path"`
}

// CreatedAt parses Datetime. A malformed value yields the zero time.
func (p Post) CreatedAt() time.Time {
	t, err := time.Parse(PostTimeLayout, p.Datetime)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Day returns the calendar date part of Datetime.
func (p Post) Day() string {
	if len(p.Datetime) < len(DateLayout) {
		return p.Datetime
	}
	return p.Datetime[:len(DateLayout)]
}

// Image returns the image URL or "" when the post has none.
func (p Post) Image() string {
	if p.ImageURL == nil {
		return ""
	}
	return *p.ImageURL
}

// ScheduleEntry assigns a post to a (channel, date) slot. Text is a frozen copy taken at scheduling time.
type ScheduleEntry struct {
	PostID       string  `json:"post_id"`
	Channel      Channel `json:"channel"`
	Text         string  `json:"text"`
	ScheduledFor string  `json:"scheduled_for"`
}

// SameChannel reports whether two channel names refer to the same channel, ignoring case.
func SameChannel(a, b Channel) bool {
	return strings.EqualFold(string(a), string(b))
}

// ChatRequest is the POST /chat request body.
type ChatRequest struct {
	ThreadID string `json:"thread_id"`
	Message  string `json:"message"`
}

// ChatResponse is the POST /chat response body.
type ChatResponse struct {
	ThreadID     string  `json:"thread_id"`
	Route        Route   `json:"route"`
	Result       string  `json:"result"`
	Reply        string  `json:"reply"`
	Draft        string  `json:"draft,omitempty"`
	Channel      Channel `json:"channel,omitempty"`
	ImageURL     string  `json:"image_url,omitempty"`
	WaitingForQA bool    `json:"waiting_for_qa"`
}

// Thread is the GET /threads/{id} response: the checkpointed context of one conversation.
type Thread struct {
	ThreadID string  `json:"thread_id"`
	Context  Context `json:"context"`
}

// Event types published on the SSE stream.
const (
	EventTurn      = "turn"
	EventReview    = "review"
	EventPostSaved = "post_saved"
)

// Event is one message on the /stream SSE feed.
type Event struct {
	Type         string    `json:"type"`
	ThreadID     string    `json:"thread_id"`
	Route        Route     `json:"route,omitempty"`
	Outcome      string    `json:"outcome,omitempty"`
	Result       string    `json:"result,omitempty"`
	WaitingForQA bool      `json:"waiting_for_qa"`
	Time         time.Time `json:"time"`
}
