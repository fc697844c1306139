// Package dates turns loose date expressions ("tomorrow", "next friday", "May 25 2025", "2025-05-25")
// into ISO calendar dates.
package dates

import (
	"regexp"
	"strings"
	"time"

	"github.com/jinzhu/now"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"

	"github.com/ankittk/postcraft/pkg/models"
)

var absoluteFormats = []string{
	models.DateLayout,
	"2006/01/02",
	"2006.01.02",
	"1/2/2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
	models.PostTimeLayout,
}

// Parser resolves date expressions relative to Clock.
type Parser struct {
	Clock func() time.Time
	w     *when.Parser
	abs   *now.Config
}

// NewParser returns a Parser. A nil clock means time.Now.
func NewParser(clock func() time.Time) *Parser {
	if clock == nil {
		clock = time.Now
	}
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &Parser{
		Clock: clock,
		w:     w,
		abs: &now.Config{
			WeekStartDay: time.Monday,
			TimeLocation: time.Local,
			TimeFormats:  absoluteFormats,
		},
	}
}

var (
	isoPrefixRe = regexp.MustCompile(`^(\d{4}-\d{1,2}-\d{1,2})\b`)
	// dateWordRe matches text that names a day rather than only a clock time.
	dateWordRe = regexp.MustCompile(`(?i)\b(today|tonight|tomorrow|yesterday|day|days|week|weeks|fortnight|month|months|year|years|` +
		`(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*|(mon|tue|wed|thu|fri|sat|sun)[a-z]*)\b|\d+/\d+`)
	timeOnlyRe = regexp.MustCompile(`(?i)^(at\s+)?(\d{1,2}(:\d{2})?\s*(am|pm|a\.m\.|p\.m\.)|\d{1,2}:\d{2}|noon|midnight)$`)
)

// ISO returns expr as "YYYY-MM-DD". The second result is false when nothing in expr reads as a date.
// An expression that starts with a numeric year-month-day is judged on that token alone, so an impossible
// date such as 2025-02-30 is rejected instead of being read as a clock time.
func (p *Parser) ISO(expr string) (string, bool) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return "", false
	}
	if m := isoPrefixRe.FindString(expr); m != "" {
		t, err := time.Parse("2006-1-2", m)
		if err != nil {
			return "", false
		}
		return t.Format(models.DateLayout), true
	}
	base := p.Clock()
	if t, err := p.abs.With(base).Parse(expr); err == nil {
		return t.Format(models.DateLayout), true
	}
	r, err := p.w.Parse(expr, base)
	if err != nil || r == nil {
		return "", false
	}
	if !dateWordRe.MatchString(r.Text) && !timeOnlyRe.MatchString(expr) {
		return "", false
	}
	return r.Time.Format(models.DateLayout), true
}

// ValidISO reports whether s is a well-formed calendar date in "YYYY-MM-DD" form.
func ValidISO(s string) bool {
	_, err := time.Parse(models.DateLayout, s)
	return err == nil
}
