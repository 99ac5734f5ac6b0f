// Package intent turns free-form user text into an intent with event slots.
package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"scbackend/internal/domain"
	"scbackend/internal/ident"
	"scbackend/internal/llm"
	"scbackend/internal/resolver"
)

const (
	SourceLLM      = "llm"
	SourceKeywords = "keywords"

	maxContextEvents  = 10
	defaultConfidence = 0.8
)

const systemPrompt = `You classify messages sent to a community centre assistant. Users often write Singlish.
Return ONLY a JSON object with these keys:
  "intent": one of emergency, book_event, list_events, get_event, cancel_event, update_location, general
  "event_id": the id of the event from the list below if one clearly matches, else null
  "event_name": the event the user refers to, as they wrote it, else null
  "event_date": a date the user mentions (YYYY-MM-DD), else null
  "confidence": a number between 0 and 1
Anything about danger, injury or needing help is emergency, even if other words appear.
Never invent an event_id; only copy one from the list.`

type Classifier struct {
	provider llm.Provider
	timeout  time.Duration
	logger   *slog.Logger
}

// New returns a classifier. A nil provider means keyword matching only.
func New(provider llm.Provider, timeout time.Duration, logger *slog.Logger) *Classifier {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{provider: provider, timeout: timeout, logger: logger}
}

func (c *Classifier) LLMAvailable() bool {
	return c != nil && c.provider != nil
}

// Classify never fails: any provider or parse problem falls back to the
// keyword scan.
func (c *Classifier) Classify(ctx context.Context, text string, events []domain.Event) domain.IntentResult {
	var res domain.IntentResult
	if c.LLMAvailable() {
		r, err := c.classifyLLM(ctx, text, events)
		if err != nil {
			c.logger.Warn("classify fallback", "error", err)
			res = Keywords(text)
		} else {
			res = r
		}
	} else {
		res = Keywords(text)
	}
	return refine(res, events)
}

func (c *Classifier) classifyLLM(ctx context.Context, text string, events []domain.Event) (domain.IntentResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.provider.Complete(callCtx, domain.LLMRequest{
		System:      systemPrompt,
		Messages:    []domain.Message{{Role: "user", Content: userPrompt(text, events)}},
		JSON:        true,
		Temperature: 0.1,
		MaxTokens:   200,
	})
	if err != nil {
		return domain.IntentResult{}, err
	}

	reply, err := parseReply(resp.Content)
	if err != nil {
		return domain.IntentResult{}, err
	}
	in, ok := domain.ParseIntent(reply.Intent)
	if !ok {
		return domain.IntentResult{}, fmt.Errorf("unknown intent %q", reply.Intent)
	}

	out := domain.IntentResult{
		Intent:     in,
		EventID:    nonEmpty(reply.EventID),
		EventName:  nonEmpty(reply.EventName),
		EventDate:  nonEmpty(reply.EventDate),
		Confidence: defaultConfidence,
		Source:     SourceLLM,
	}
	if reply.Confidence != nil {
		out.Confidence = *reply.Confidence
	}
	return out, nil
}

func userPrompt(text string, events []domain.Event) string {
	var b strings.Builder
	b.WriteString("Message: ")
	b.WriteString(text)
	if len(events) > 0 {
		b.WriteString("\n\nKnown events:\n")
		for i, ev := range events {
			if i >= maxContextEvents {
				break
			}
			fmt.Fprintf(&b, "- id=%s title=%q date=%s\n", ev.ID, ev.Title, ev.Date)
		}
	}
	return b.String()
}

// refine cleans the event name and, when no usable id came back, takes the
// first context event whose title contains the name (or vice versa).
func refine(res domain.IntentResult, events []domain.Event) domain.IntentResult {
	if res.EventName != nil {
		name := resolver.StripArticle(*res.EventName)
		if name == "" {
			res.EventName = nil
		} else {
			res.EventName = &name
		}
	}
	if res.EventName == nil || ident.ValidPtr(res.EventID) {
		return res
	}

	name := strings.ToLower(*res.EventName)
	for _, ev := range events {
		if !ident.Valid(ev.ID) || ev.Title == "" {
			continue
		}
		title := strings.ToLower(ev.Title)
		if strings.Contains(title, name) || strings.Contains(name, title) {
			id := ev.ID
			res.EventID = &id
			break
		}
	}
	return res
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || strings.EqualFold(v, "null") {
		return nil
	}
	return &v
}
