package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"scbackend/internal/catalog"
	"scbackend/internal/db"
	"scbackend/internal/ident"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"

	maxTitleLen       = 200
	maxDescriptionLen = 2000
	maxLocationLen    = 500
	maxListLimit      = 100
	defaultListLimit  = 50

	codeEventFull     = "EVENT_FULL"
	codeInvalidInput  = "INVALID_INPUT"
	codeInternalError = "INTERNAL_ERROR"
)

type eventBody struct {
	Title           *string `json:"title"`
	Description     *string `json:"description"`
	Date            *string `json:"date"`
	Time            *string `json:"time"`
	Location        *string `json:"location"`
	MaxParticipants *int    `json:"max_participants"`
	CreatedBy       *string `json:"created_by"`
}

// validate checks the fields that are present. Required fields are checked
// by the caller.
func (b eventBody) validate() error {
	if b.Title != nil {
		n := utf8.RuneCountInString(strings.TrimSpace(*b.Title))
		if n < 1 || n > maxTitleLen {
			return fmt.Errorf("title must be 1-%d characters", maxTitleLen)
		}
	}
	if b.Description != nil && utf8.RuneCountInString(*b.Description) > maxDescriptionLen {
		return fmt.Errorf("description must be at most %d characters", maxDescriptionLen)
	}
	if b.Location != nil && utf8.RuneCountInString(*b.Location) > maxLocationLen {
		return fmt.Errorf("location must be at most %d characters", maxLocationLen)
	}
	if b.Date != nil && !validDate(*b.Date) {
		return errors.New("invalid date format. Use YYYY-MM-DD")
	}
	if b.Time != nil && !validTime(*b.Time) {
		return errors.New("invalid time format. Use HH:MM (24-hour format)")
	}
	if b.MaxParticipants != nil && *b.MaxParticipants < 1 {
		return errors.New("max_participants must be at least 1")
	}
	return nil
}

func validDate(s string) bool {
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

func validTime(s string) bool {
	_, err := time.Parse(timeLayout, s)
	return err == nil
}

func (a *api) listEvents(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	filter := db.EventFilter{Limit: defaultListLimit}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxListLimit {
			writeError(w, http.StatusBadRequest, codeInvalidInput, fmt.Sprintf("limit must be between 1 and %d", maxListLimit))
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, codeInvalidInput, "offset must not be negative")
			return
		}
		filter.Offset = n
	}

	dateFilter := strings.TrimSpace(q.Get("date_filter"))
	today := a.Now().Format(dateLayout)
	switch dateFilter {
	case "":
	case "today":
		filter.Date = today
	case "upcoming":
		filter.From = today
	default:
		if !validDate(dateFilter) {
			writeError(w, http.StatusBadRequest, codeInvalidInput, "invalid date format. Use YYYY-MM-DD")
			return
		}
		filter.Date = dateFilter
	}

	events, err := a.Events.ListEvents(req.Context(), filter)
	if err != nil {
		a.internalError(w, "list events failed", err)
		return
	}
	if dateFilter == "" {
		dateFilter = "all"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"events":  events,
		"count":   len(events),
		"filter":  dateFilter,
		"limit":   filter.Limit,
		"offset":  filter.Offset,
	})
}

func (a *api) getEvent(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "event_id")
	if !ident.Valid(id) {
		writeError(w, http.StatusNotFound, catalog.CodeEventNotFound, "Event not found")
		return
	}
	ev, err := a.Events.GetEvent(req.Context(), id)
	if err != nil {
		a.eventError(w, "get event failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "event": ev})
}

func (a *api) createEvent(w http.ResponseWriter, req *http.Request) {
	var body eventBody
	if err := decodeJSONBody(req, maxJSONBody, &body); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	if body.Title == nil || body.Date == nil || body.Time == nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, "title, date and time are required")
		return
	}
	if err := body.validate(); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}

	ev, err := a.Events.CreateEvent(req.Context(), db.EventInput{
		Title:           strings.TrimSpace(*body.Title),
		Description:     body.Description,
		Date:            *body.Date,
		Time:            *body.Time,
		Location:        body.Location,
		MaxParticipants: body.MaxParticipants,
		CreatedBy:       body.CreatedBy,
	})
	if err != nil {
		a.internalError(w, "create event failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Event created successfully!",
		"event":   ev,
	})
}

func (a *api) updateEvent(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "event_id")
	var body eventBody
	if err := decodeJSONBody(req, maxJSONBody, &body); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	if err := body.validate(); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	if !ident.Valid(id) {
		writeError(w, http.StatusNotFound, catalog.CodeEventNotFound, "Event not found")
		return
	}

	patch := db.EventPatch{
		Description:     body.Description,
		Date:            body.Date,
		Time:            body.Time,
		Location:        body.Location,
		MaxParticipants: body.MaxParticipants,
	}
	if body.Title != nil {
		title := strings.TrimSpace(*body.Title)
		patch.Title = &title
	}
	ev, err := a.Events.UpdateEvent(req.Context(), id, patch)
	if err != nil {
		a.eventError(w, "update event failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Event updated successfully!",
		"event":   ev,
	})
}

func (a *api) deleteEvent(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "event_id")
	if !ident.Valid(id) {
		writeError(w, http.StatusNotFound, catalog.CodeEventNotFound, "Event not found")
		return
	}
	if err := a.Events.DeleteEvent(req.Context(), id); err != nil {
		a.eventError(w, "delete event failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "Event deleted successfully",
		"event_id": id,
	})
}

func (a *api) register(w http.ResponseWriter, req *http.Request) {
	var body struct {
		EventID string `json:"event_id"`
		UserID  string `json:"user_id"`
	}
	if err := decodeJSONBody(req, maxJSONBody, &body); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	body.EventID = strings.TrimSpace(body.EventID)
	body.UserID = strings.TrimSpace(body.UserID)
	if body.EventID == "" || body.UserID == "" {
		writeError(w, http.StatusBadRequest, codeInvalidInput, "event_id and user_id are required")
		return
	}
	if !ident.Valid(body.EventID) {
		writeError(w, http.StatusNotFound, catalog.CodeEventNotFound, "Event not found")
		return
	}

	reg, err := a.Events.RegisterUser(req.Context(), body.EventID, body.UserID)
	if err != nil {
		a.eventError(w, "register failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"message":      "Successfully registered for event!",
		"registration": reg,
	})
}

func (a *api) unregister(w http.ResponseWriter, req *http.Request) {
	eventID := chi.URLParam(req, "event_id")
	userID := chi.URLParam(req, "user_id")
	if !ident.Valid(eventID) {
		writeError(w, http.StatusNotFound, catalog.CodeNotRegistered, "Registration not found")
		return
	}
	if err := a.Events.UnregisterUser(req.Context(), eventID, userID); err != nil {
		a.eventError(w, "unregister failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "Successfully unregistered from event",
		"event_id": eventID,
		"user_id":  userID,
	})
}

func (a *api) participants(w http.ResponseWriter, req *http.Request) {
	id := chi.URLParam(req, "event_id")
	if !ident.Valid(id) {
		writeError(w, http.StatusNotFound, catalog.CodeEventNotFound, "Event not found")
		return
	}
	regs, err := a.Events.ListParticipants(req.Context(), id)
	if err != nil {
		a.eventError(w, "list participants failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"event_id":     id,
		"participants": regs,
		"count":        len(regs),
	})
}

func (a *api) eventError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, db.ErrEventNotFound):
		writeError(w, http.StatusNotFound, catalog.CodeEventNotFound, "Event not found")
	case errors.Is(err, db.ErrAlreadyRegistered):
		writeError(w, http.StatusConflict, catalog.CodeAlreadyRegistered, "Already registered for this event")
	case errors.Is(err, db.ErrNotRegistered):
		writeError(w, http.StatusNotFound, catalog.CodeNotRegistered, "Registration not found")
	case errors.Is(err, db.ErrEventFull):
		writeError(w, http.StatusConflict, codeEventFull, "Event is full")
	default:
		a.internalError(w, msg, err)
	}
}

func (a *api) internalError(w http.ResponseWriter, msg string, err error) {
	a.logger.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, codeInternalError, msg+": "+err.Error())
}
