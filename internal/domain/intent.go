package domain

import "strings"

type Intent string

const (
	IntentEmergency      Intent = "emergency"
	IntentBookEvent      Intent = "book_event"
	IntentListEvents     Intent = "list_events"
	IntentGetEvent       Intent = "get_event"
	IntentCancelEvent    Intent = "cancel_event"
	IntentUpdateLocation Intent = "update_location"
	IntentGeneral        Intent = "general"
)

var AllIntents = []Intent{
	IntentEmergency,
	IntentBookEvent,
	IntentListEvents,
	IntentGetEvent,
	IntentCancelEvent,
	IntentUpdateLocation,
	IntentGeneral,
}

var intentSynonyms = map[string]Intent{
	"register_event":   IntentBookEvent,
	"unregister_event": IntentCancelEvent,
	"event_details":    IntentGetEvent,
	"sos":              IntentEmergency,
}

// ParseIntent maps a label (including known synonyms) to an Intent.
func ParseIntent(label string) (Intent, bool) {
	l := strings.ToLower(strings.TrimSpace(label))
	for _, in := range AllIntents {
		if string(in) == l {
			return in, true
		}
	}
	if in, ok := intentSynonyms[l]; ok {
		return in, true
	}
	return "", false
}

// IntentResult is the classifier output for one message.
type IntentResult struct {
	Intent     Intent  `json:"intent"`
	EventID    *string `json:"event_id"`
	EventName  *string `json:"event_name"`
	EventDate  *string `json:"event_date"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"-"`
}
