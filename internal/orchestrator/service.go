package orchestrator

import (
	"context"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"time"

	"scbackend/internal/domain"
	"scbackend/internal/llm"
	"scbackend/internal/resolver"
)

const (
	SourceText  = "text"
	SourceVoice = "voice"

	defaultPageSize   = 50
	contextEventLimit = 10
)

var (
	ErrNoInput      = errors.New("provide either transcript or audio")
	ErrInvalidAudio = errors.New("audio_base64 is not valid base64")
)

type Classifier interface {
	Classify(ctx context.Context, text string, events []domain.Event) domain.IntentResult
}

type Catalog interface {
	List(ctx context.Context, limit int) ([]domain.Event, error)
	Get(ctx context.Context, id string) (domain.Event, error)
	Register(ctx context.Context, eventID, userID string) error
	Unregister(ctx context.Context, eventID, userID string) error
}

type Alerts interface {
	TriggerSOS(ctx context.Context, userID, location, message string) (domain.SOSResult, error)
	UpdateLocation(ctx context.Context, userID, address string) error
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

type History interface {
	Record(ctx context.Context, in domain.Interaction) error
}

type Recorder interface {
	Intent(intent, source string)
	Action(intent, outcome string)
	Observe(collaborator string, d time.Duration)
	Resolution(outcome string)
}

type Config struct {
	CatalogTimeout time.Duration
	ActionTimeout  time.Duration
	PageSize       int
	Resolver       resolver.Resolver
}

// Deps are the collaborators of the dispatcher. LLM, Transcriber, History and
// Metrics may be nil.
type Deps struct {
	Classifier  Classifier
	Catalog     Catalog
	Alerts      Alerts
	LLM         llm.Provider
	Transcriber Transcriber
	History     History
	Metrics     Recorder
}

type Service struct {
	cfg         Config
	classifier  Classifier
	catalog     Catalog
	alerts      Alerts
	llm         llm.Provider
	transcriber Transcriber
	history     History
	metrics     Recorder
	logger      *slog.Logger
}

func New(cfg Config, deps Deps, logger *slog.Logger) *Service {
	if cfg.CatalogTimeout <= 0 {
		cfg.CatalogTimeout = 10 * time.Second
	}
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = 30 * time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.Resolver == (resolver.Resolver{}) {
		cfg.Resolver = resolver.New(resolver.DefaultThreshold, resolver.DefaultMinTokenLen)
	}
	if logger == nil {
		logger = slog.Default()
	}
	rec := deps.Metrics
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Service{
		cfg:         cfg,
		classifier:  deps.Classifier,
		catalog:     deps.Catalog,
		alerts:      deps.Alerts,
		llm:         deps.LLM,
		transcriber: deps.Transcriber,
		history:     deps.History,
		metrics:     rec,
		logger:      logger,
	}
}

func (s *Service) TranscriptionAvailable() bool {
	return s.transcriber != nil
}

// HandleMessage classifies the message and runs the matching action. It
// always returns a response; collaborator failures end up in ActionResult.
func (s *Service) HandleMessage(ctx context.Context, req domain.MessageRequest) domain.OrchestratorResponse {
	return s.handle(ctx, req, SourceText)
}

// HandleVoice transcribes audio when no transcript is given and then behaves
// like HandleMessage. The error is only set for unusable input.
func (s *Service) HandleVoice(ctx context.Context, req domain.VoiceRequest) (domain.OrchestratorResponse, error) {
	transcript := strings.TrimSpace(req.Transcript)
	audio := req.Audio
	if transcript == "" && len(audio) == 0 && req.AudioBase64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(req.AudioBase64)
		if err != nil {
			return domain.OrchestratorResponse{}, ErrInvalidAudio
		}
		audio = decoded
	}
	if transcript == "" && len(audio) == 0 {
		return domain.OrchestratorResponse{}, ErrNoInput
	}

	if transcript == "" {
		text, err := s.transcribe(ctx, audio, req.Filename)
		if err != nil {
			resp := domain.OrchestratorResponse{
				Intent: domain.IntentGeneral,
				UserID: req.UserID,
				Source: SourceVoice,
			}
			resp.ActionResult = transcriptionFailure(err)
			return resp, nil
		}
		transcript = text
	}

	resp := s.handle(ctx, domain.MessageRequest{
		UserID:   req.UserID,
		Message:  transcript,
		Location: req.Location,
	}, SourceVoice)
	resp.Transcript = transcript
	resp.Source = SourceVoice
	return resp, nil
}

var errTranscriberMissing = errors.New("transcription is not configured")

func (s *Service) transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if s.transcriber == nil {
		return "", errTranscriberMissing
	}
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ActionTimeout)
	defer cancel()
	start := time.Now()
	text, err := s.transcriber.Transcribe(callCtx, audio, filename)
	s.metrics.Observe("transcriber", time.Since(start))
	if err != nil {
		s.logger.Warn("transcription failed", "error", err)
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func transcriptionFailure(err error) domain.ActionResult {
	if errors.Is(err, errTranscriberMissing) {
		return domain.ActionResult{
			Message:      "Voice input is not available right now. Please type your message instead.",
			ActionResult: map[string]any{"error": err.Error(), "error_type": "not_configured"},
		}
	}
	return failure("Sorry, I couldn't make out that recording. Please try again or type your message.", err)
}

func (s *Service) handle(ctx context.Context, req domain.MessageRequest, source string) domain.OrchestratorResponse {
	text := strings.TrimSpace(req.Message)
	resp := domain.OrchestratorResponse{Success: true, UserID: req.UserID}
	if text == "" {
		resp.Intent = domain.IntentGeneral
		resp.ActionResult = domain.ActionResult{Message: capabilities}
		return resp
	}

	events := s.contextEvents(ctx)
	res := s.classifier.Classify(ctx, text, events)
	s.metrics.Intent(string(res.Intent), res.Source)
	s.logger.Debug("message classified", "user_id", req.UserID, "intent", res.Intent, "confidence", res.Confidence, "source", res.Source)

	resp.Intent = res.Intent
	resp.Confidence = res.Confidence
	resp.ActionResult = s.dispatch(ctx, req, text, res)
	s.metrics.Action(string(res.Intent), outcome(resp.ActionResult))

	s.record(ctx, req, source, resp)
	return resp
}

func (s *Service) dispatch(ctx context.Context, req domain.MessageRequest, text string, res domain.IntentResult) domain.ActionResult {
	switch res.Intent {
	case domain.IntentEmergency:
		return s.emergency(ctx, req, text)
	case domain.IntentBookEvent:
		return s.book(ctx, req.UserID, res)
	case domain.IntentListEvents:
		return s.list(ctx)
	case domain.IntentGetEvent:
		return s.details(ctx, res)
	case domain.IntentCancelEvent:
		return s.cancel(ctx, req.UserID, res)
	case domain.IntentUpdateLocation:
		return s.updateLocation(ctx, req)
	default:
		return s.general(ctx, text)
	}
}

// contextEvents is best effort: classification still runs without a catalog.
func (s *Service) contextEvents(ctx context.Context) []domain.Event {
	events, err := s.listEvents(ctx, contextEventLimit)
	if err != nil {
		s.logger.Warn("catalog context fetch failed", "error", err)
		return nil
	}
	return events
}

func (s *Service) listEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CatalogTimeout)
	defer cancel()
	start := time.Now()
	events, err := s.catalog.List(callCtx, limit)
	s.metrics.Observe("catalog", time.Since(start))
	return events, err
}

func (s *Service) record(ctx context.Context, req domain.MessageRequest, source string, resp domain.OrchestratorResponse) {
	if s.history == nil || req.UserID == "" {
		return
	}
	err := s.history.Record(ctx, domain.Interaction{
		UserID:     req.UserID,
		Source:     source,
		Message:    req.Message,
		Intent:     string(resp.Intent),
		Confidence: resp.Confidence,
		Reply:      resp.Message,
		Executed:   resp.ActionExecuted,
	})
	if err != nil {
		s.logger.Warn("persist interaction failed", "user_id", req.UserID, "error", err)
	}
}

func outcome(r domain.ActionResult) string {
	if _, failed := r.ActionResult["error_type"]; failed {
		return "failed"
	}
	if r.ActionExecuted {
		return "executed"
	}
	return "skipped"
}

type nopRecorder struct{}

func (nopRecorder) Intent(string, string)         {}
func (nopRecorder) Action(string, string)         {}
func (nopRecorder) Observe(string, time.Duration) {}
func (nopRecorder) Resolution(string)             {}
