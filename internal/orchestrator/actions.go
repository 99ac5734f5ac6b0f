package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"scbackend/internal/catalog"
	"scbackend/internal/domain"
	"scbackend/internal/ident"
	"scbackend/internal/resolver"
)

const (
	listFetchLimit    = 10
	listPreviewLimit  = 5
	choicePromptLimit = 5
	fallbackTitles    = 3
	generalExcerpt    = 5

	catalogUnavailable = "Sorry, I can't reach the events service right now. Please try again in a moment."
)

const capabilities = `I can help you with:
• Joining an event, e.g. "I want to join the yoga class"
• Seeing what's on, e.g. "What events are available?"
• Event details, e.g. "Tell me about the workout session"
• Cancelling a booking, e.g. "Cancel my workout booking"
• Updating your location, e.g. "Update my location"
• Getting help in an emergency, e.g. "Help, I fell down"`

const generalPrompt = `You are a friendly assistant for a community centre app used by seniors in Singapore.
Users may write Singlish; reply in simple, warm Standard English in at most three sentences.
The app can: book community events, list events, show event details, cancel bookings, update the
user's location and raise an emergency SOS. Suggest one of these when it fits the question.
Only mention events from the list you are given.`

func (s *Service) emergency(ctx context.Context, req domain.MessageRequest, text string) domain.ActionResult {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ActionTimeout)
	defer cancel()

	start := time.Now()
	res, err := s.alerts.TriggerSOS(callCtx, req.UserID, req.Location, text)
	s.metrics.Observe("safety", time.Since(start))
	if err != nil {
		s.logger.Error("sos alert failed", "user_id", req.UserID, "error", err)
		return failure("I couldn't place the emergency call. Please call 995 now or ask someone nearby for help.", err)
	}

	msg := "Help is on the way. I've raised an emergency alert with your location. Stay where you are and stay calm."
	if !res.CallSuccessful {
		msg = "I've recorded your emergency, but the call did not go through. Please call 995 now or ask someone nearby for help."
		if res.Message != "" {
			msg += " (" + res.Message + ")"
		}
	}
	return domain.ActionResult{
		ActionExecuted: true,
		Message:        msg,
		SOSTriggered:   res.CallSuccessful,
		ActionResult: map[string]any{
			"call_successful":     res.CallSuccessful,
			"call_status":         res.CallStatus,
			"caregivers_notified": res.CaregiversNotified,
			"address":             res.Address,
		},
	}
}

func (s *Service) book(ctx context.Context, userID string, res domain.IntentResult) domain.ActionResult {
	ev, miss := s.pick(ctx, res, "join")
	if ev == nil {
		return miss
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ActionTimeout)
	defer cancel()
	start := time.Now()
	err := s.catalog.Register(callCtx, ev.ID, userID)
	s.metrics.Observe("catalog", time.Since(start))

	switch {
	case errors.Is(err, catalog.ErrAlreadyRegistered):
		return domain.ActionResult{
			Message: fmt.Sprintf("You're already registered for %s. See you there!", describe(*ev)),
			ActionResult: map[string]any{
				"event_id":           ev.ID,
				"already_registered": true,
			},
		}
	case errors.Is(err, catalog.ErrNotFound):
		return domain.ActionResult{
			Message:      fmt.Sprintf("%s is no longer available.", ev.Title),
			ActionResult: map[string]any{"event_id": ev.ID},
		}
	case err != nil:
		s.logger.Error("registration failed", "event_id", ev.ID, "user_id", userID, "error", err)
		return failure(fmt.Sprintf("Sorry, I couldn't book %s right now. Please try again later.", ev.Title), err)
	}

	return domain.ActionResult{
		ActionExecuted: true,
		Message:        fmt.Sprintf("You're registered for %s. See you there!", describe(*ev)),
		ActionResult: map[string]any{
			"event_id":          ev.ID,
			"event_title":       ev.Title,
			"date":              ev.Date,
			"time":              ev.Time,
			"booking_confirmed": true,
			"navigation":        map[string]any{"screen": "event_details", "event_id": ev.ID},
		},
	}
}

func (s *Service) list(ctx context.Context) domain.ActionResult {
	events, err := s.listEvents(ctx, listFetchLimit)
	if err != nil {
		s.logger.Error("catalog fetch failed", "error", err)
		return failure(catalogUnavailable, err)
	}
	if len(events) == 0 {
		return domain.ActionResult{
			ActionExecuted: true,
			Message:        "There are no upcoming events right now. Please check back soon.",
			ActionResult:   map[string]any{"events": []domain.Event{}, "total": 0},
		}
	}

	preview := events
	if len(preview) > listPreviewLimit {
		preview = preview[:listPreviewLimit]
	}
	var b strings.Builder
	b.WriteString("Here are the upcoming events:\n")
	writeBullets(&b, preview)
	if rest := len(events) - len(preview); rest > 0 {
		fmt.Fprintf(&b, "…and %d more.", rest)
	}
	return domain.ActionResult{
		ActionExecuted: true,
		Message:        strings.TrimRight(b.String(), "\n"),
		ActionResult:   map[string]any{"events": preview, "total": len(events)},
	}
}

func (s *Service) details(ctx context.Context, res domain.IntentResult) domain.ActionResult {
	ev, miss := s.pick(ctx, res, "know more about")
	if ev == nil {
		return miss
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CatalogTimeout)
	defer cancel()
	start := time.Now()
	full, err := s.catalog.Get(callCtx, ev.ID)
	s.metrics.Observe("catalog", time.Since(start))
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return domain.ActionResult{
			Message:      fmt.Sprintf("%s is no longer available.", ev.Title),
			ActionResult: map[string]any{"event_id": ev.ID},
		}
	case err != nil:
		s.logger.Error("event detail fetch failed", "event_id", ev.ID, "error", err)
		return failure(catalogUnavailable, err)
	}

	return domain.ActionResult{
		ActionExecuted: true,
		Message:        summary(full),
		ActionResult:   map[string]any{"event": full},
	}
}

func (s *Service) cancel(ctx context.Context, userID string, res domain.IntentResult) domain.ActionResult {
	ev, miss := s.pick(ctx, res, "cancel")
	if ev == nil {
		return miss
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ActionTimeout)
	defer cancel()
	start := time.Now()
	err := s.catalog.Unregister(callCtx, ev.ID, userID)
	s.metrics.Observe("catalog", time.Since(start))

	switch {
	case errors.Is(err, catalog.ErrNotRegistered), errors.Is(err, catalog.ErrNotFound):
		return domain.ActionResult{
			Message:      fmt.Sprintf("You weren't registered for %s, so there's nothing to cancel.", ev.Title),
			ActionResult: map[string]any{"event_id": ev.ID, "registered": false},
		}
	case err != nil:
		s.logger.Error("unregistration failed", "event_id", ev.ID, "user_id", userID, "error", err)
		return failure(fmt.Sprintf("Sorry, I couldn't cancel %s right now. Please try again later.", ev.Title), err)
	}

	return domain.ActionResult{
		ActionExecuted: true,
		Message:        fmt.Sprintf("Your registration for %s has been cancelled.", ev.Title),
		ActionResult: map[string]any{
			"event_id":    ev.ID,
			"event_title": ev.Title,
			"cancelled":   true,
		},
	}
}

func (s *Service) updateLocation(ctx context.Context, req domain.MessageRequest) domain.ActionResult {
	location := strings.TrimSpace(req.Location)
	if location == "" {
		return domain.ActionResult{
			Message: "Please share your location from the app so I can update it for you.",
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ActionTimeout)
	defer cancel()
	start := time.Now()
	err := s.alerts.UpdateLocation(callCtx, req.UserID, location)
	s.metrics.Observe("safety", time.Since(start))
	if err != nil {
		s.logger.Error("location update failed", "user_id", req.UserID, "error", err)
		return failure("Sorry, I couldn't update your location right now. Please try again later.", err)
	}
	return domain.ActionResult{
		ActionExecuted: true,
		Message:        fmt.Sprintf("Thanks, I've updated your location to %s.", location),
		ActionResult:   map[string]any{"address": location},
	}
}

// general answers from the LLM grounded on a few live events, or with the
// static capability list when no LLM is usable.
func (s *Service) general(ctx context.Context, text string) domain.ActionResult {
	if s.llm == nil {
		return domain.ActionResult{Message: capabilities}
	}

	var b strings.Builder
	b.WriteString("Upcoming events:\n")
	events, err := s.listEvents(ctx, generalExcerpt)
	if err != nil {
		s.logger.Warn("catalog excerpt unavailable", "error", err)
	}
	if len(events) == 0 {
		b.WriteString("(none listed)\n")
	}
	writeBullets(&b, events)
	b.WriteString("\nUser: ")
	b.WriteString(text)

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ActionTimeout)
	defer cancel()
	start := time.Now()
	resp, err := s.llm.Complete(callCtx, domain.LLMRequest{
		System:      generalPrompt,
		Messages:    []domain.Message{{Role: "user", Content: b.String()}},
		Temperature: 0.7,
		MaxTokens:   300,
	})
	s.metrics.Observe("llm", time.Since(start))
	answer := strings.TrimSpace(resp.Content)
	if err != nil || answer == "" {
		s.logger.Warn("general answer fallback", "error", err)
		return domain.ActionResult{Message: capabilities}
	}
	return domain.ActionResult{ActionExecuted: true, Message: answer}
}

// pick runs the shared catalog and resolver flow of the event intents. It
// returns the matched event, or nil and the reply to send instead.
func (s *Service) pick(ctx context.Context, res domain.IntentResult, verb string) (*domain.Event, domain.ActionResult) {
	all, err := s.listEvents(ctx, s.cfg.PageSize)
	if err != nil {
		s.logger.Error("catalog fetch failed", "error", err)
		return nil, failure(catalogUnavailable, err)
	}
	events := validEvents(all)
	name := cleanName(res.EventName)

	ev := s.cfg.Resolver.Resolve(events, name, res.EventID)
	switch {
	case ev != nil:
		s.metrics.Resolution("matched")
	case name == nil:
		s.metrics.Resolution("no_name")
	default:
		s.metrics.Resolution("no_match")
	}
	if ev != nil {
		if !ident.Valid(ev.ID) {
			s.logger.Error("resolved event has invalid id", "event_id", ev.ID)
			return nil, domain.ActionResult{
				Message:      "Sorry, something went wrong on our side with that event. Please try again later.",
				ActionResult: map[string]any{"error": "invalid event id", "error_type": "system_error"},
			}
		}
		return ev, domain.ActionResult{}
	}

	if name == nil {
		if len(events) == 0 {
			return nil, domain.ActionResult{Message: "There are no upcoming events right now."}
		}
		choices := events
		if len(choices) > choicePromptLimit {
			choices = choices[:choicePromptLimit]
		}
		var b strings.Builder
		fmt.Fprintf(&b, "Which event would you like to %s?\n", verb)
		writeBullets(&b, choices)
		return nil, domain.ActionResult{
			ActionExecuted: true,
			Message:        strings.TrimRight(b.String(), "\n"),
			ActionResult:   map[string]any{"events": choices},
		}
	}
	return nil, noMatch(*name, events)
}

func noMatch(name string, events []domain.Event) domain.ActionResult {
	if suggestions := resolver.Suggest(events, name); len(suggestions) > 0 {
		return domain.ActionResult{
			Message:      fmt.Sprintf("I couldn't find an event called %q. Did you mean: %s?", name, strings.Join(suggestions, ", ")),
			ActionResult: map[string]any{"suggestions": suggestions},
		}
	}
	if len(events) == 0 {
		return domain.ActionResult{
			Message: fmt.Sprintf("I couldn't find an event called %q, and there are no upcoming events right now.", name),
		}
	}
	titles := make([]string, 0, fallbackTitles)
	for _, ev := range events {
		if len(titles) == fallbackTitles {
			break
		}
		titles = append(titles, ev.Title)
	}
	return domain.ActionResult{
		Message:      fmt.Sprintf("I couldn't find an event called %q. Upcoming events include: %s.", name, strings.Join(titles, ", ")),
		ActionResult: map[string]any{"suggestions": titles},
	}
}

// failure builds the reply for a collaborator error. Every transport problem,
// timeouts included, is tagged connection_failed; timeout marks the deadline case.
func failure(message string, err error) domain.ActionResult {
	result := map[string]any{"error": err.Error(), "error_type": "request_failed"}
	var te *catalog.TransportError
	switch {
	case errors.As(err, &te):
		result["error_type"] = "connection_failed"
		if te.Timeout() {
			result["timeout"] = true
		}
	case errors.Is(err, context.DeadlineExceeded):
		result["error_type"] = "connection_failed"
		result["timeout"] = true
	}
	return domain.ActionResult{Message: message, ActionResult: result}
}

func validEvents(events []domain.Event) []domain.Event {
	out := make([]domain.Event, 0, len(events))
	for _, ev := range events {
		if ident.Valid(ev.ID) {
			out = append(out, ev)
		}
	}
	return out
}

func cleanName(name *string) *string {
	if name == nil {
		return nil
	}
	v := resolver.StripArticle(strings.TrimSpace(*name))
	if v == "" {
		return nil
	}
	return &v
}
