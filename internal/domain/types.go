package domain

// Event is a community event as stored in the catalog. Optional columns are
// pointers so that an absent value survives a JSON round trip as null.
type Event struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Date            string  `json:"date"`
	Time            string  `json:"time"`
	Location        *string `json:"location,omitempty"`
	Description     *string `json:"description,omitempty"`
	MaxParticipants *int    `json:"max_participants,omitempty"`
	CreatedBy       *string `json:"created_by,omitempty"`
	CreatedAt       string  `json:"created_at,omitempty"`
}

type Registration struct {
	ID        string `json:"id"`
	EventID   string `json:"event_id"`
	UserID    string `json:"user_id"`
	CreatedAt string `json:"created_at,omitempty"`
}

type MessageRequest struct {
	UserID   string `json:"user_id"`
	Message  string `json:"message"`
	Location string `json:"location,omitempty"`
}

type VoiceRequest struct {
	UserID      string `json:"user_id"`
	Transcript  string `json:"transcript,omitempty"`
	AudioBase64 string `json:"audio_base64,omitempty"`
	Filename    string `json:"filename,omitempty"`
	Location    string `json:"location,omitempty"`

	Audio []byte `json:"-"`
}

// ActionResult is what a single dispatched action produced.
type ActionResult struct {
	ActionExecuted bool           `json:"action_executed"`
	Message        string         `json:"message"`
	ActionResult   map[string]any `json:"action_result"`
	SOSTriggered   bool           `json:"sos_triggered"`
}

type OrchestratorResponse struct {
	Success    bool    `json:"success"`
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
	UserID     string  `json:"user_id"`
	ActionResult

	Transcript string `json:"transcript,omitempty"`
	Source     string `json:"source,omitempty"`
}

type Interaction struct {
	UserID     string  `json:"user_id"`
	Source     string  `json:"source"`
	Message    string  `json:"message"`
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reply      string  `json:"reply"`
	Executed   bool    `json:"action_executed"`
	CreatedAt  string  `json:"created_at,omitempty"`
}

type SOSRequest struct {
	UserID    string   `json:"user_id"`
	Location  string   `json:"location,omitempty"`
	Message   string   `json:"message,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

type SOSResult struct {
	Success            bool   `json:"success"`
	Message            string `json:"message"`
	CallSuccessful     bool   `json:"call_successful"`
	CallStatus         string `json:"call_status"`
	CallSID            string `json:"call_sid,omitempty"`
	CaregiversNotified bool   `json:"caregivers_notified"`
	Address            string `json:"address,omitempty"`
}

type LocationUpdate struct {
	UserID    string   `json:"user_id"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Address   string   `json:"address,omitempty"`
	Source    string   `json:"source,omitempty"`
	UpdatedAt string   `json:"updated_at,omitempty"`
}

type TranslationResult struct {
	SinglishRaw  string `json:"singlish_raw"`
	CleanEnglish string `json:"clean_english"`
	Sentiment    string `json:"sentiment"`
	Tone         string `json:"tone"`
}

type Message struct {
	Role    string
	Content string
}

type LLMRequest struct {
	Model       string
	System      string
	Messages    []Message
	JSON        bool
	Temperature float64
	MaxTokens   int
}

type LLMResponse struct {
	Content string
}
