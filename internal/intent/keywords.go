package intent

import (
	"regexp"
	"strings"

	"scbackend/internal/domain"
)

type keywordRule struct {
	intent     domain.Intent
	confidence float64
	pattern    *regexp.Regexp
	slot       bool
}

// Order matters: emergency must win over everything else.
var keywordRules = []keywordRule{
	{
		intent:     domain.IntentEmergency,
		confidence: 0.8,
		pattern: keywordPattern("emergency", "sos", "help", "urgent", "danger", "accident", "injured", "hurt", "pain",
			"need help", "call help", "assistance", "rescue", "ambulance", "hospital", "911", "999"),
	},
	{intent: domain.IntentBookEvent, confidence: 0.7, pattern: keywordPattern("book", "register", "join", "sign up", "enroll"), slot: true},
	{intent: domain.IntentListEvents, confidence: 0.7, pattern: keywordPattern("list", "show", "find", "what events", "available")},
	{intent: domain.IntentCancelEvent, confidence: 0.7, pattern: keywordPattern("cancel", "unregister", "remove", "leave"), slot: true},
}

// Words dropped when pulling an event name out of the text after a keyword.
var fillerWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "event": {}, "events": {}, "activity": {}, "session": {},
	"for": {}, "to": {}, "in": {}, "on": {}, "at": {}, "my": {}, "me": {}, "i": {}, "want": {},
	"please": {}, "pls": {}, "can": {}, "could": {}, "you": {}, "up": {}, "from": {}, "of": {},
	"leh": {}, "lah": {}, "la": {}, "lor": {}, "sia": {}, "hor": {}, "meh": {}, "ah": {}, "mah": {}, "ok": {},
	"today": {}, "tomorrow": {}, "tonight": {}, "one": {},
}

// keywordPattern matches any keyword at the start of a word, so "join" hits
// "joining" but "pain" does not hit "spain".
func keywordPattern(words ...string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)`)
}

// Keywords classifies text by deterministic keyword scan. It is total: every
// input yields exactly one intent.
func Keywords(text string) domain.IntentResult {
	lower := strings.ToLower(text)
	for _, rule := range keywordRules {
		loc := rule.pattern.FindStringIndex(lower)
		if loc == nil {
			continue
		}
		res := domain.IntentResult{Intent: rule.intent, Confidence: rule.confidence, Source: SourceKeywords}
		if rule.slot {
			res.EventName = nameAfter(lower[loc[1]:])
		}
		return res
	}
	return domain.IntentResult{Intent: domain.IntentGeneral, Confidence: 0.5, Source: SourceKeywords}
}

func nameAfter(rest string) *string {
	// Skip the remainder of the keyword's word ("joining" -> "ing").
	if i := strings.IndexFunc(rest, func(r rune) bool { return !isWordRune(r) }); i >= 0 {
		rest = rest[i:]
	} else {
		return nil
	}

	var words []string
	for _, w := range strings.FieldsFunc(rest, func(r rune) bool { return !isWordRune(r) }) {
		if _, skip := fillerWords[w]; skip {
			continue
		}
		words = append(words, w)
	}
	if len(words) == 0 {
		return nil
	}
	name := strings.Join(words, " ")
	return &name
}

func isWordRune(r rune) bool {
	return r == '\'' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r > 127
}
