package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pavelanni/coursemate/internal/assistant"
	appI18n "github.com/pavelanni/coursemate/internal/i18n"
	"github.com/pavelanni/coursemate/internal/model"
)

type createAnnouncementRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (h *Handler) handleListAnnouncements(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListAnnouncements(r.Context(), courseFromContext(r.Context()).ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	if list == nil {
		list = []model.Announcement{}
	}
	writeJSON(w, http.StatusOK, list)
}

// handleCreateAnnouncement posts to the course and notifies its students.
func (h *Handler) handleCreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req createAnnouncementRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || strings.TrimSpace(req.Content) == "" {
		fail(w, r, fmt.Errorf("%w: title and content required", assistant.ErrInvalidInput))
		return
	}

	c := courseFromContext(r.Context())
	a := model.Announcement{
		CourseID: c.ID,
		AuthorID: model.UserFromContext(r.Context()).ID,
		Title:    req.Title,
		Content:  req.Content,
	}
	id, err := h.store.CreateAnnouncement(r.Context(), a, fmt.Sprintf("/courses/%d/announcements", c.ID))
	if err != nil {
		fail(w, r, err)
		return
	}
	a.ID = id
	slog.Info("posted announcement", "id", id, "course_id", c.ID)
	writeJSON(w, http.StatusCreated, a)
}

var badgeMessages = map[model.BadgeKind]string{
	model.BadgeFirstSubmission: "BadgeFirstSubmission",
	model.BadgePerfectScore:    "BadgePerfectScore",
	model.BadgeFirstQuestion:   "BadgeFirstQuestion",
}

func badgeName(ctx context.Context, kind model.BadgeKind) string {
	if id, ok := badgeMessages[kind]; ok {
		return appI18n.T(ctx, id)
	}
	return string(kind)
}

// handleListNotifications returns the user's inbox. ?unread=true limits it
// to unread notifications.
func (h *Handler) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	unread := r.URL.Query().Get("unread") == "true"
	list, err := h.store.ListNotifications(ctx, model.UserFromContext(ctx).ID, unread)
	if err != nil {
		fail(w, r, err)
		return
	}
	if list == nil {
		list = []model.Notification{}
	}
	for i := range list {
		n := &list[i]
		if n.Kind == model.NotificationBadge {
			name := badgeName(ctx, model.BadgeKind(n.Title))
			n.Title = name
			n.Message = appI18n.Td(ctx, "BadgeEarned", map[string]any{"Badge": name})
		}
		if n.Link != "" {
			n.Link = h.path(n.Link)
		}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "notificationID")
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := h.store.MarkNotificationRead(r.Context(), id, model.UserFromContext(r.Context()).ID); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type markAllResponse struct {
	Marked int64 `json:"marked"`
}

func (h *Handler) handleMarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.MarkAllNotificationsRead(r.Context(), model.UserFromContext(r.Context()).ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, markAllResponse{Marked: n})
}

// badges loads a student's badges with localized names.
func (h *Handler) badges(ctx context.Context, studentID int64) ([]model.Badge, error) {
	list, err := h.store.ListBadges(ctx, studentID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.Badge{}
	}
	for i := range list {
		list[i].Name = badgeName(ctx, list[i].Kind)
	}
	return list, nil
}

func (h *Handler) handleBadges(w http.ResponseWriter, r *http.Request) {
	list, err := h.badges(r.Context(), model.UserFromContext(r.Context()).ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
