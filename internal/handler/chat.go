package handler

import (
	"net/http"
	"strings"

	"github.com/pavelanni/coursemate/internal/handler/views"
	"github.com/pavelanni/coursemate/internal/model"
)

type askRequest struct {
	Question string `json:"question"`
}

func (h *Handler) handleListChat(w http.ResponseWriter, r *http.Request) {
	c := courseFromContext(r.Context())
	studentID := model.UserFromContext(r.Context()).ID
	if sid := r.URL.Query().Get("student"); sid != "" && model.UserFromContext(r.Context()).Role != model.UserRoleStudent {
		id, err := parseID(sid)
		if err != nil {
			fail(w, r, err)
			return
		}
		studentID = id
	}
	msgs, err := h.store.ListChatMessages(r.Context(), c.ID, studentID)
	if err != nil {
		fail(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []model.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

// handleAsk answers a question from the course materials. HTMX forms post
// the question as a form field.
func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := decodeJSON(r, &req); err != nil {
			fail(w, r, err)
			return
		}
	} else {
		req.Question = r.FormValue("question")
	}

	c := courseFromContext(r.Context())
	msg, err := h.ai.Ask(r.Context(), c.ID, model.UserFromContext(r.Context()).ID, req.Question)
	if err != nil {
		fail(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, msg, views.ChatMessage(*msg))
}

func (h *Handler) handleClearChat(w http.ResponseWriter, r *http.Request) {
	c := courseFromContext(r.Context())
	if err := h.store.ClearChat(r.Context(), c.ID, model.UserFromContext(r.Context()).ID); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type pointsResponse struct {
	*model.PointsSummary
	Badges []model.Badge `json:"badges"`
}

// handlePoints reports the student's point totals next to their badges.
func (h *Handler) handlePoints(w http.ResponseWriter, r *http.Request) {
	id := model.UserFromContext(r.Context()).ID
	sum, err := h.store.PointsSummary(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	badges, err := h.badges(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pointsResponse{PointsSummary: sum, Badges: badges})
}
