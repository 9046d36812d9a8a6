package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xilidan/signposting/pkg/json"
	"github.com/xilidan/signposting/services/ai/entity"
)

const (
	messageSuccess = "success"
	messageError   = "error"
)

// SignpostingHandler reports generation failures in the body with status 200;
// the flow service reads message and falls back on "error".
func (h *Handler) SignpostingHandler(w http.ResponseWriter, r *http.Request) {
	req := &entity.SignpostingRequest{}
	if !h.decode(w, r, req) {
		return
	}

	messages, err := h.usecase.DescribeOptions(r.Context(), req)
	if err != nil {
		h.log.Error("signposting failed",
			slog.String("organization", chi.URLParam(r, "org")),
			slog.String("error", err.Error()),
		)
		json.WriteJSON(w, http.StatusOK, entity.SignpostingResponse{Message: messageError, Data: []string{}})
		return
	}

	json.WriteJSON(w, http.StatusOK, entity.SignpostingResponse{Message: messageSuccess, Data: messages})
}

func (h *Handler) QuestionHandler(w http.ResponseWriter, r *http.Request) {
	req := &entity.QuestionRequest{}
	if !h.decode(w, r, req) {
		return
	}

	answer, err := h.usecase.AnswerQuestion(r.Context(), req)
	if err != nil {
		h.log.Error("question answering failed", slog.String("error", err.Error()))
		json.WriteJSON(w, http.StatusOK, entity.QuestionResponse{Message: messageError})
		return
	}

	json.WriteJSON(w, http.StatusOK, entity.QuestionResponse{Message: messageSuccess, Data: &answer})
}
