package models

import (
	"encoding/json"
	"fmt"
	"testing"
)

func TestDedupHistory_keepsMostRecent(t *testing.T) {
	t.Parallel()
	hist := []Exchange{
		{User: "show queue", Bot: "q1"},
		{User: "hello", Bot: "h"},
		{User: "Show Queue", Bot: "q2"},
		{User: "write li post about ai", Bot: "draft"},
		{User: "show queue", Bot: "q3"},
	}
	got := DedupHistory(hist)
	if len(got) != 3 {
		t.Fatalf("DedupHistory: got %d entries, want 3: %+v", len(got), got)
	}
	if got[0].User != "hello" || got[1].User != "write li post about ai" || got[2].Bot != "q3" {
		t.Fatalf("DedupHistory: unexpected order %+v", got)
	}
}

func TestDedupHistory_cap(t *testing.T) {
	t.Parallel()
	var hist []Exchange
	for i := 0; i < 80; i++ {
		hist = append(hist, Exchange{User: fmt.Sprintf("msg %d", i), Bot: "ok"})
	}
	got := DedupHistory(hist)
	if len(got) != MaxHistoryEntries {
		t.Fatalf("DedupHistory cap: got %d", len(got))
	}
	if got[len(got)-1].User != "msg 79" || got[0].User != "msg 30" {
		t.Fatalf("DedupHistory cap should keep the newest entries, got first=%q last=%q", got[0].User, got[len(got)-1].User)
	}
}

func TestRecordUtterance(t *testing.T) {
	t.Parallel()
	c := Context{}
	c = c.RecordUtterance("show queue")
	c = c.RecordUtterance("show queue")
	if len(c.History) != 1 {
		t.Fatalf("RecordUtterance re-entry: got %d entries", len(c.History))
	}
	c = c.AnswerLast("show queue", "Nothing found.")
	c = c.RecordUtterance("show queue")
	if len(c.History) != 2 {
		t.Fatalf("RecordUtterance after answer: got %d entries", len(c.History))
	}
	c = c.RecordUtterance("   ")
	if len(c.History) != 2 {
		t.Fatalf("RecordUtterance blank: got %d entries", len(c.History))
	}
}

func TestContextClone_isolated(t *testing.T) {
	t.Parallel()
	a := Context{History: []Exchange{{User: "a"}}}
	b := a.AnswerLast("a", "reply")
	if a.History[0].Bot != "" {
		t.Fatalf("AnswerLast mutated the original context: %+v", a.History)
	}
	if b.History[0].Bot != "reply" {
		t.Fatalf("AnswerLast: got %+v", b.History)
	}
}

func TestResolveDraft(t *testing.T) {
	t.Parallel()
	c := Context{Draft: "d", ImageURL: "u", ImagePath: "p", ImageDone: true, WaitingForQA: true, Channel: ChannelX}
	r := c.ResolveDraft()
	if r.WaitingForQA || r.Draft != "" || r.ImageURL != "" || r.ImagePath != "" || r.ImageDone {
		t.Fatalf("ResolveDraft: got %+v", r)
	}
	if r.Channel != ChannelX {
		t.Fatalf("ResolveDraft should keep channel, got %q", r.Channel)
	}
}

func TestPost_jsonNulls(t *testing.T) {
	t.Parallel()
	p := Post{ID: "id1", Datetime: "2025-05-20T10:11:12", Channel: ChannelLinkedIn, Text: "hi"}
	b, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"id":"id1","datetime":"2025-05-20T10:11:12","channel":"LinkedIn","text":"hi","image_url":null,"image_path":null}`
	if string(b) != want {
		t.Fatalf("Post JSON: got %s", b)
	}
	if p.Day() != "2025-05-20" {
		t.Fatalf("Day: got %q", p.Day())
	}
	if p.CreatedAt().IsZero() {
		t.Fatal("CreatedAt: expected parsed time")
	}
}
