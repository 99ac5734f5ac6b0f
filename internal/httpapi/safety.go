package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"scbackend/internal/db"
	"scbackend/internal/domain"
	"scbackend/internal/safety"
)

const codeLocationNotFound = "LOCATION_NOT_FOUND"

func (a *api) sos(w http.ResponseWriter, req *http.Request) {
	var body domain.SOSRequest
	if err := decodeJSONBody(req, maxJSONBody, &body); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	out, err := a.Safety.TriggerSOS(req.Context(), body)
	if errors.Is(err, safety.ErrInvalidRequest) {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	if err != nil {
		a.internalError(w, "sos failed", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) recordLocation(w http.ResponseWriter, req *http.Request) {
	var body domain.LocationUpdate
	if err := decodeJSONBody(req, maxJSONBody, &body); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	body.UpdatedAt = ""
	loc, err := a.Safety.RecordLocation(req.Context(), body)
	if errors.Is(err, safety.ErrInvalidRequest) {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	if err != nil {
		a.internalError(w, "record location failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "Location updated",
		"location": loc,
	})
}

func (a *api) getLocation(w http.ResponseWriter, req *http.Request) {
	userID := chi.URLParam(req, "user_id")
	loc, err := a.Safety.GetLocation(req.Context(), userID)
	if errors.Is(err, db.ErrLocationNotFound) {
		writeError(w, http.StatusNotFound, codeLocationNotFound, "No location recorded for this user")
		return
	}
	if err != nil {
		a.internalError(w, "get location failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "location": loc})
}
