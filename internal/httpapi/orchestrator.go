package httpapi

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"scbackend/internal/domain"
	"scbackend/internal/history"
	"scbackend/internal/orchestrator"
)

const maxAudioBytes = 25 << 20

func (a *api) message(w http.ResponseWriter, req *http.Request) {
	var body domain.MessageRequest
	if err := decodeJSONBody(req, maxJSONBody, &body); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	if strings.TrimSpace(body.UserID) == "" || strings.TrimSpace(body.Message) == "" {
		writeError(w, http.StatusBadRequest, codeInvalidInput, "user_id and message are required")
		return
	}
	writeJSON(w, http.StatusOK, a.Orchestrator.HandleMessage(req.Context(), body))
}

// voice accepts JSON or a multipart form with an "audio" file part.
func (a *api) voice(w http.ResponseWriter, req *http.Request) {
	var body domain.VoiceRequest
	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		parsed, err := readVoiceForm(w, req)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
			return
		}
		body = parsed
	} else if err := decodeJSONBody(req, maxAudioBytes*2, &body); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	if strings.TrimSpace(body.UserID) == "" {
		writeError(w, http.StatusBadRequest, codeInvalidInput, "user_id is required")
		return
	}

	resp, err := a.Orchestrator.HandleVoice(req.Context(), body)
	if errors.Is(err, orchestrator.ErrNoInput) || errors.Is(err, orchestrator.ErrInvalidAudio) {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	if err != nil {
		a.internalError(w, "voice request failed", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func readVoiceForm(w http.ResponseWriter, req *http.Request) (domain.VoiceRequest, error) {
	req.Body = http.MaxBytesReader(w, req.Body, maxAudioBytes+(1<<20))
	if err := req.ParseMultipartForm(8 << 20); err != nil {
		return domain.VoiceRequest{}, err
	}
	out := domain.VoiceRequest{
		UserID:     req.FormValue("user_id"),
		Transcript: req.FormValue("transcript"),
		Location:   req.FormValue("location"),
	}
	file, header, err := req.FormFile("audio")
	if errors.Is(err, http.ErrMissingFile) {
		return out, nil
	}
	if err != nil {
		return domain.VoiceRequest{}, err
	}
	defer file.Close()
	audio, err := io.ReadAll(file)
	if err != nil {
		return domain.VoiceRequest{}, err
	}
	out.Audio = audio
	out.Filename = header.Filename
	return out, nil
}

func (a *api) processSinglish(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Transcript string `json:"transcript"`
	}
	if err := decodeJSONBody(req, maxJSONBody, &body); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	if strings.TrimSpace(body.Transcript) == "" {
		writeError(w, http.StatusBadRequest, codeInvalidInput, "transcript is required")
		return
	}
	out, err := a.Translator.Translate(req.Context(), body.Transcript)
	if err != nil {
		a.internalError(w, "singlish processing failed", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) history(w http.ResponseWriter, req *http.Request) {
	userID := chi.URLParam(req, "user_id")
	limit := 0
	if v := req.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, codeInvalidInput, "limit must be a positive integer")
			return
		}
		limit = n
	}
	items, err := a.History.Recent(req.Context(), userID, limit)
	if errors.Is(err, history.ErrUserRequired) {
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
		return
	}
	if err != nil {
		a.internalError(w, "load history failed", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"user_id":      userID,
		"interactions": items,
		"count":        len(items),
	})
}
