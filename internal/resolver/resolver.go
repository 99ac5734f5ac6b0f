// Package resolver maps a fuzzy event name or candidate id onto one catalog event.
package resolver

import (
	"strings"
	"unicode"

	"scbackend/internal/domain"
	"scbackend/internal/ident"
)

const (
	DefaultThreshold   = 0.6
	DefaultMinTokenLen = 2
)

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
}

var articles = []string{"the ", "a ", "an "}

// Resolver is a pure function of its inputs; the zero value uses the defaults.
type Resolver struct {
	// Threshold is the minimum score a candidate needs to be accepted.
	Threshold float64
	// Tokens of this length or shorter are ignored.
	MinTokenLen int
}

func New(threshold float64, minTokenLen int) Resolver {
	return Resolver{Threshold: threshold, MinTokenLen: minTokenLen}
}

func (r Resolver) threshold() float64 {
	if r.Threshold <= 0 {
		return DefaultThreshold
	}
	return r.Threshold
}

func (r Resolver) minTokenLen() int {
	if r.MinTokenLen < 1 {
		return DefaultMinTokenLen
	}
	return r.MinTokenLen
}

// Resolve returns the best matching event or nil. A valid id that is present in
// events wins outright; otherwise the name is scored against every titled event
// and an exact normalized title beats any partial match.
func (r Resolver) Resolve(events []domain.Event, name, id *string) *domain.Event {
	if ident.ValidPtr(id) {
		for i := range events {
			if ident.Valid(events[i].ID) && events[i].ID == *id {
				return &events[i]
			}
		}
	}
	if name == nil {
		return nil
	}
	best, score := r.best(events, *name)
	if best == nil || score < r.threshold() {
		return nil
	}
	return best
}

// Score returns the match score of a search string against a title, in [0,1].
func (r Resolver) Score(search, title string) float64 {
	ns := Normalize(search)
	st := r.tokens(ns)
	if len(st) == 0 {
		return 0
	}
	return r.score(ns, st, Normalize(title))
}

func (r Resolver) best(events []domain.Event, name string) (*domain.Event, float64) {
	ns := Normalize(name)
	st := r.tokens(ns)
	if len(st) == 0 {
		return nil, 0
	}

	var best *domain.Event
	bestScore := 0.0
	for i := range events {
		ev := &events[i]
		if !ident.Valid(ev.ID) || strings.TrimSpace(ev.Title) == "" {
			continue
		}
		title := Normalize(ev.Title)
		if title == ns {
			return ev, 1.0
		}
		s := r.score(ns, st, title)
		if s > bestScore {
			best, bestScore = ev, s
		}
	}
	return best, bestScore
}

func (r Resolver) score(search string, searchTokens []string, title string) float64 {
	if title == "" {
		return 0
	}
	if search == title {
		return 1.0
	}

	titleTokens := r.tokens(title)
	matched := 0
	for _, s := range searchTokens {
		for _, t := range titleTokens {
			if tokensOverlap(s, t) {
				matched++
				break
			}
		}
	}
	if matched == len(searchTokens) {
		return float64(matched) / float64(len(searchTokens))
	}

	if strings.Contains(title, search) || strings.Contains(search, title) {
		short, long := len(search), len(title)
		if short > long {
			short, long = long, short
		}
		return float64(short) / float64(long)
	}

	if matched == 0 {
		return 0
	}
	return float64(matched) / float64(max(len(searchTokens), len(titleTokens)))
}

// tokensOverlap treats a search token found inside a title token as a hit.
// The reverse direction only counts when the title token covers at least 60%
// of the search token, so "workout" does not hit "work".
func tokensOverlap(search, title string) bool {
	if search == title || strings.Contains(title, search) {
		return true
	}
	return strings.Contains(search, title) && len(title)*5 >= len(search)*3
}

func (r Resolver) tokens(normalized string) []string {
	fields := strings.Fields(normalized)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) <= r.minTokenLen() {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Normalize lowercases s, turns whitespace, hyphen and underscore runs into a
// single space, drops punctuation and strips one leading article.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsSpace(r) || r == '-' || r == '_':
			space = true
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		}
	}
	return StripArticle(b.String())
}

// StripArticle removes a single leading "the", "a" or "an" and collapses whitespace.
func StripArticle(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	lower := strings.ToLower(s)
	for _, a := range articles {
		if strings.HasPrefix(lower, a) {
			return s[len(a):]
		}
	}
	return s
}

// Suggest returns up to three titles from the first five events that share a
// token longer than three characters with name.
func Suggest(events []domain.Event, name string) []string {
	words := strings.Fields(Normalize(name))
	var out []string
	for i, ev := range events {
		if i >= 5 || len(out) >= 3 {
			break
		}
		title := strings.ToLower(ev.Title)
		for _, w := range words {
			if len(w) > 3 && strings.Contains(title, w) {
				out = append(out, ev.Title)
				break
			}
		}
	}
	return out
}
