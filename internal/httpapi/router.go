// Package httpapi exposes the orchestrator, events and safety endpoints.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"scbackend/internal/db"
	"scbackend/internal/domain"
)

type Orchestrator interface {
	HandleMessage(ctx context.Context, req domain.MessageRequest) domain.OrchestratorResponse
	HandleVoice(ctx context.Context, req domain.VoiceRequest) (domain.OrchestratorResponse, error)
}

type Translator interface {
	Translate(ctx context.Context, text string) (domain.TranslationResult, error)
}

type History interface {
	Recent(ctx context.Context, userID string, limit int) ([]domain.Interaction, error)
}

type EventStore interface {
	ListEvents(ctx context.Context, f db.EventFilter) ([]domain.Event, error)
	GetEvent(ctx context.Context, id string) (domain.Event, error)
	CreateEvent(ctx context.Context, in db.EventInput) (domain.Event, error)
	UpdateEvent(ctx context.Context, id string, p db.EventPatch) (domain.Event, error)
	DeleteEvent(ctx context.Context, id string) error
	RegisterUser(ctx context.Context, eventID, userID string) (domain.Registration, error)
	UnregisterUser(ctx context.Context, eventID, userID string) error
	ListParticipants(ctx context.Context, eventID string) ([]domain.Registration, error)
}

type Safety interface {
	TriggerSOS(ctx context.Context, req domain.SOSRequest) (domain.SOSResult, error)
	RecordLocation(ctx context.Context, loc domain.LocationUpdate) (domain.LocationUpdate, error)
	GetLocation(ctx context.Context, userID string) (domain.LocationUpdate, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps wires the handlers. Metrics may be nil; Capabilities is reported by /health.
type Deps struct {
	Orchestrator   Orchestrator
	Translator     Translator
	History        History
	Events         EventStore
	Safety         Safety
	DB             Pinger
	Metrics        http.Handler
	AllowedOrigins []string
	Capabilities   map[string]bool
	// Now is used for date filters; defaults to time.Now.
	Now func() time.Time
}

type api struct {
	Deps
	logger *slog.Logger
}

var hostedOrigin = regexp.MustCompile(`^https://[a-z0-9-]+(\.[a-z0-9-]+)*\.(vercel\.app|netlify\.app|onrender\.com)$`)

func NewRouter(deps Deps, logger *slog.Logger) http.Handler {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	a := &api{Deps: deps, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(a.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc:  a.allowOrigin,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Get("/health", a.health)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/api/orchestrator", func(r chi.Router) {
		r.Post("/message", a.message)
		r.Post("/voice", a.voice)
		r.Post("/process-singlish", a.processSinglish)
		r.Get("/history/{user_id}", a.history)
	})
	r.Route("/api/events", func(r chi.Router) {
		r.Get("/list", a.listEvents)
		r.Post("/create", a.createEvent)
		r.Post("/register", a.register)
		r.Delete("/register/{event_id}/{user_id}", a.unregister)
		r.Get("/{event_id}", a.getEvent)
		r.Put("/{event_id}", a.updateEvent)
		r.Delete("/{event_id}", a.deleteEvent)
		r.Get("/{event_id}/participants", a.participants)
	})
	r.Route("/api/safety", func(r chi.Router) {
		r.Post("/sos", a.sos)
		r.Post("/location", a.recordLocation)
		r.Get("/location/{user_id}", a.getLocation)
	})
	return r
}

func (a *api) allowOrigin(_ *http.Request, origin string) bool {
	for _, o := range a.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return hostedOrigin.MatchString(origin)
}

func (a *api) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		next.ServeHTTP(ww, req)
		a.logger.Debug("http request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(req.Context()),
		)
	})
}

func (a *api) health(w http.ResponseWriter, req *http.Request) {
	body := map[string]any{"status": "healthy", "database": "connected"}
	if len(a.Capabilities) > 0 {
		body["services"] = a.Capabilities
	}
	status := http.StatusOK
	if a.DB != nil {
		ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
		defer cancel()
		if err := a.DB.Ping(ctx); err != nil {
			a.logger.Warn("health db ping failed", "error", err)
			body["status"] = "degraded"
			body["database"] = "disconnected"
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, body)
}
