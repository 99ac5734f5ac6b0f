package singlish

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Analyzer is the lexical fallback used when no LLM is configured. It strips
// discourse particles, glosses common slang and scores sentiment and tone
// from cue words.
type Analyzer struct{}

func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

var sentimentHints = []struct {
	label string
	hints []string
}{
	{label: "frustrated", hints: []string{"walao", "wah lau", "pek chek", "buay tahan", "cut queue", "fed up", "kan ni na", "siao"}},
	{label: "worried", hints: []string{"kan cheong", "scared", "worried", "pain", "hurt", "help", "fall down", "cannot breathe"}},
	{label: "excited", hints: []string{"shiok", "syok", "cannot wait", "can't wait", "song ah", "best sia", "steady"}},
	{label: "negative", hints: []string{"sian", "jialat", "lousy", "sad", "cannot make it", "tired", "alone", "lonely"}},
	{label: "positive", hints: []string{"happy", "thank", "nice", "good", "love", "enjoy", "bo jio"}},
}

var toneHints = []struct {
	label string
	hints []string
}{
	{label: "urgent", hints: []string{"help", "emergency", "quick", "faster", "now", "ambulance", "urgent"}},
	{label: "annoyed", hints: []string{"walao", "wah lau", "pek chek", "buay song", "siao", "fed up"}},
	{label: "polite", hints: []string{"please", "pls", "thank", "sorry", "paiseh", "excuse me"}},
}

var particles = regexp.MustCompile(`(?i)[\s,]*\b(?:lah|leh|lor|sia|meh|hor|mah|ah|liao)\b`)

var gloss = []struct {
	pattern *regexp.Regexp
	with    string
}{
	{regexp.MustCompile(`(?i)\b(?:walao|wah lau)\b,?\s*`), "wow, "},
	{regexp.MustCompile(`(?i)\bshiok\b`), "great"},
	{regexp.MustCompile(`(?i)\bsian\b`), "bored"},
	{regexp.MustCompile(`(?i)\bjialat\b`), "terrible"},
	{regexp.MustCompile(`(?i)\bpaiseh\b`), "sorry"},
	{regexp.MustCompile(`(?i)\bmakan\b`), "eat"},
	{regexp.MustCompile(`(?i)\bkopi\b`), "coffee"},
	{regexp.MustCompile(`(?i)\bkan cheong\b`), "anxious"},
	{regexp.MustCompile(`(?i)\bpek chek\b`), "annoyed"},
	{regexp.MustCompile(`(?i)\bbo jio\b`), "you did not invite me"},
	{regexp.MustCompile(`(?i)\bcan or not\b`), "is that possible"},
	{regexp.MustCompile(`(?i)\bgot\b`), "there is"},
}

// Clean returns a rough Standard English rendering of text.
func (a *Analyzer) Clean(text string) string {
	out := particles.ReplaceAllString(text, "")
	for _, g := range gloss {
		out = g.pattern.ReplaceAllString(out, g.with)
	}
	out = strings.Join(strings.Fields(out), " ")
	out = strings.TrimRight(strings.TrimSpace(out), ", ")
	if out == "" {
		return strings.TrimSpace(text)
	}
	return strings.ToUpper(out[:1]) + out[1:]
}

// Sentiment returns the best scoring sentiment label, or "neutral".
func (a *Analyzer) Sentiment(text string) string {
	t := strings.ToLower(text)
	best, bestScore := "neutral", 0.0
	for _, item := range sentimentHints {
		score := 0.0
		for _, h := range item.hints {
			if strings.Contains(t, h) {
				score += 1.0 + math.Min(float64(utf8.RuneCountInString(h))/10.0, 1.0)
			}
		}
		if score > bestScore {
			best, bestScore = item.label, score
		}
	}
	if best == "neutral" && strings.Contains(t, "!") {
		return "excited"
	}
	return best
}

// Tone returns the first matching tone, or "casual".
func (a *Analyzer) Tone(text string) string {
	t := strings.ToLower(text)
	for _, item := range toneHints {
		for _, h := range item.hints {
			if strings.Contains(t, h) {
				return item.label
			}
		}
	}
	return "casual"
}
