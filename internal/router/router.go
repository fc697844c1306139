// Package router classifies a user utterance into a graph route.
package router

import (
	"regexp"
	"strings"

	"github.com/ankittk/postcraft/pkg/models"
)

// Intent is the classification of one utterance.
type Intent struct {
	Route     models.Route
	Channel   models.Channel // set only for RouteGenerate
	WithImage bool
}

// Classifier maps an utterance to an Intent. Implementations never fail: unmatched input becomes RouteKB.
type Classifier interface {
	Classify(input string) Intent
}

const channelAlt = `instagram|insta|ig|linkedin|linkdin|linked|li|facebook|fb|twitter|tweet|x`

var (
	schedulerRe = regexp.MustCompile(`(?i)\b(show|schedule|remove|unschedule)\b`)
	historyRe   = regexp.MustCompile(`(?i)\bshow\s+history\b`)
	postRe      = regexp.MustCompile(`(?i)\b(?:write|create|draft|make)\s+(?:a\s+|new\s+)?(` + channelAlt + `)\s+post\b`)
	withImageRe = regexp.MustCompile(`(?i)\bwith\s+image\b`)
)

var aliases = map[string]models.Channel{
	"instagram": models.ChannelInstagram,
	"insta":     models.ChannelInstagram,
	"ig":        models.ChannelInstagram,
	"linkedin":  models.ChannelLinkedIn,
	"linkdin":   models.ChannelLinkedIn,
	"linked":    models.ChannelLinkedIn,
	"li":        models.ChannelLinkedIn,
	"facebook":  models.ChannelFacebook,
	"fb":        models.ChannelFacebook,
	"twitter":   models.ChannelX,
	"tweet":     models.ChannelX,
	"x":         models.ChannelX,
}

// NormalizeChannel resolves a channel name or alias (case-insensitive) to its canonical form.
func NormalizeChannel(s string) (models.Channel, bool) {
	ch, ok := aliases[strings.ToLower(strings.TrimSpace(s))]
	return ch, ok
}

// RegexClassifier is the default Classifier. Rules are checked in priority order and the first match wins.
type RegexClassifier struct{}

// Classify implements Classifier.
func (RegexClassifier) Classify(input string) Intent {
	if strings.TrimSpace(input) == "" {
		return Intent{Route: models.RouteEnd}
	}
	if historyRe.MatchString(input) || schedulerRe.MatchString(input) {
		return Intent{Route: models.RouteScheduler}
	}
	if m := postRe.FindStringSubmatch(input); m != nil {
		ch, _ := NormalizeChannel(m[1])
		return Intent{
			Route:     models.RouteGenerate,
			Channel:   ch,
			WithImage: HasImageDirective(input),
		}
	}
	return Intent{Route: models.RouteKB}
}

// HasImageDirective reports whether s asks for an image ("with image", any case).
func HasImageDirective(s string) bool {
	return withImageRe.MatchString(s)
}

// StripImageDirective removes every "with image" phrase from a topic and collapses the spacing left behind.
func StripImageDirective(s string) string {
	return strings.Join(strings.Fields(withImageRe.ReplaceAllString(s, " ")), " ")
}
