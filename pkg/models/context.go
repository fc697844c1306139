package models

import "strings"

// Exchange is one user utterance and the bot reply shown for it.
type Exchange struct {
	User string `json:"user"`
	Bot  string `json:"bot"`
}

// Context is the per-thread conversation state carried through the graph and checkpointed between turns.
// It is a value: graph steps receive a Context and return an updated copy.
//
// WaitingForQA is true iff Draft holds an unresolved draft. Resolving a draft clears Draft and the
// image fields together.
type Context struct {
	UserInput    string     `json:"user_input"`
	Route        Route      `json:"route,omitempty"`
	Channel      Channel    `json:"channel,omitempty"`
	WithImage    bool       `json:"with_image"`
	Draft        string     `json:"draft,omitempty"`
	ImageURL     string     `json:"image_url,omitempty"`
	ImagePath    string     `json:"image_path,omitempty"`
	ImageDone    bool       `json:"image_done"`
	WaitingForQA bool       `json:"waiting_for_qa"`
	QAProcessed  bool       `json:"qa_processed"`
	Result       string     `json:"result,omitempty"`
	History      []Exchange `json:"conversation_history,omitempty"`
}

// Clone returns a copy that shares no mutable memory with c.
func (c Context) Clone() Context {
	out := c
	if c.History != nil {
		out.History = make([]Exchange, len(c.History))
		copy(out.History, c.History)
	}
	return out
}

// RecordUtterance appends {input, ""} to the history unless the last entry already holds the same
// user text with no reply yet. Empty input is not recorded.
func (c Context) RecordUtterance(input string) Context {
	out := c.Clone()
	if strings.TrimSpace(input) == "" {
		return out
	}
	if n := len(out.History); n > 0 && out.History[n-1].User == input && out.History[n-1].Bot == "" {
		return out
	}
	out.History = append(out.History, Exchange{User: input})
	return out
}

// AnswerLast fills the bot reply of the last entry when it belongs to input and has no reply yet,
// then deduplicates the history.
func (c Context) AnswerLast(input, bot string) Context {
	out := c.Clone()
	if n := len(out.History); n > 0 && out.History[n-1].User == input && out.History[n-1].Bot == "" {
		out.History[n-1].Bot = bot
	}
	out.History = DedupHistory(out.History)
	return out
}

// ResolveDraft ends the pending approval: the draft and its image are dropped together.
func (c Context) ResolveDraft() Context {
	out := c.Clone()
	out.WaitingForQA = false
	out.Draft = ""
	out.ImageURL = ""
	out.ImagePath = ""
	out.ImageDone = false
	return out
}

// DedupHistory keeps only the most recent occurrence of each user message (compared case-insensitively)
// and at most MaxHistoryEntries entries, dropping the oldest.
func DedupHistory(hist []Exchange) []Exchange {
	if len(hist) == 0 {
		return hist
	}
	seen := make(map[string]bool, len(hist))
	rev := make([]Exchange, 0, len(hist))
	for i := len(hist) - 1; i >= 0; i-- {
		key := strings.ToLower(hist[i].User)
		if seen[key] {
			continue
		}
		seen[key] = true
		rev = append(rev, hist[i])
		if len(rev) == MaxHistoryEntries {
			break
		}
	}
	out := make([]Exchange, len(rev))
	for i := range rev {
		out[len(rev)-1-i] = rev[i]
	}
	return out
}
