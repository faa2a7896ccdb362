package handlers

import (
	"net/http"

	"github.com/markdave123-py/Contexta/internal/api/render"
	"github.com/markdave123-py/Contexta/internal/services"
)

// ChatHandler serves question answering, summaries and suggestions.
type ChatHandler struct {
	answers *services.AnswerService
}

func NewChatHandler(answers *services.AnswerService) *ChatHandler {
	return &ChatHandler{answers: answers}
}

func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	var req services.AskInput
	if err := decodeJSON(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	res, err := h.answers.Ask(r.Context(), user.ID, req)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, res)
}

func (h *ChatHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	var req services.DocumentRef
	if err := decodeJSON(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	summary, err := h.answers.Summarize(r.Context(), user.ID, req)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, map[string]string{"summary": summary})
}

func (h *ChatHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	var req services.DocumentRef
	if err := decodeJSON(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	questions, err := h.answers.Suggest(r.Context(), user.ID, req)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, map[string][]string{"questions": questions})
}
