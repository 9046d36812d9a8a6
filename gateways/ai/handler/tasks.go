package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/xilidan/signposting/pkg/json"
	"github.com/xilidan/signposting/services/ai/entity"
	"github.com/xilidan/signposting/services/ai/usecase"
)

// TranscriptionHandler serves Cloud Tasks callbacks. Any non-2xx makes the
// queue retry, so partial record failures answer 500 with the outcome.
func (h *Handler) TranscriptionHandler(w http.ResponseWriter, r *http.Request) {
	req := &entity.TranscriptionRequest{}
	if !h.decode(w, r, req) {
		return
	}

	resp, err := h.usecase.HandleTranscription(r.Context(), req)
	switch {
	case err == nil:
		json.WriteJSON(w, http.StatusOK, resp)
	case errors.Is(err, usecase.ErrMediaUnavailable):
		json.WriteError(w, http.StatusInternalServerError, usecase.ErrMediaUnavailable)
	case errors.Is(err, usecase.ErrPersistence) && resp != nil:
		h.log.Error("transcription stored with failures", slog.String("message_sid", req.MessageID), slog.String("error", err.Error()))
		json.WriteJSON(w, http.StatusInternalServerError, resp)
	default:
		h.log.Error("transcription failed", slog.String("message_sid", req.MessageID), slog.String("error", err.Error()))
		json.WriteError(w, http.StatusInternalServerError, err)
	}
}
