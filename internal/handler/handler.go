// Package handler exposes the course API over HTTP. Responses are JSON;
// HTMX requests get HTML fragments instead.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/afero"

	"github.com/pavelanni/coursemate/internal/assistant"
	"github.com/pavelanni/coursemate/internal/model"
	"github.com/pavelanni/coursemate/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	ai     *assistant.Service
	files  afero.Fs
	config model.Config
}

// New creates a new Handler. Uploaded material files are written to files.
func New(s *store.Store, ai *assistant.Service, files afero.Fs, cfg model.Config) *Handler {
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = 10 << 20
	}
	return &Handler{store: s, ai: ai, files: files, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	professor := requireRole(model.UserRoleProfessor, model.UserRoleAdmin)
	student := requireRole(model.UserRoleStudent)

	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	if h.config.AllowSignup {
		r.Post("/signup", h.handleSignup)
	}

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Get("/courses", h.handleListCourses)
		r.With(professor).Post("/courses", h.handleCreateCourse)

		r.Route("/courses/{courseID}", func(r chi.Router) {
			r.Use(h.loadCourse)
			r.With(student).Post("/enroll", h.handleEnroll)

			r.Group(func(r chi.Router) {
				r.Use(h.requireCourseAccess)
				r.With(professor).Patch("/", h.handleUpdateCourse)
				r.Get("/announcements", h.handleListAnnouncements)
				r.With(professor).Post("/announcements", h.handleCreateAnnouncement)
				r.Get("/materials", h.handleListMaterials)
				r.With(professor).Post("/materials", h.handleCreateMaterial)
				r.Get("/assignments", h.handleListAssignments)
				r.With(professor).Post("/assignments", h.handleCreateAssignment)
				r.With(professor).Post("/assignments/generate", h.handleGenerateAssignment)
				r.Get("/chat", h.handleListChat)
				r.With(student).Post("/chat", h.handleAsk)
				r.With(student).Delete("/chat", h.handleClearChat)
			})
		})

		r.With(professor).Post("/assignments/{assignmentID}/publish", h.handlePublishAssignment)
		r.With(student).Post("/assignments/{assignmentID}/submissions", h.handleSubmit)
		r.Get("/submissions/{submissionID}", h.handleGetSubmission)
		r.Post("/submissions/{submissionID}/analysis", h.handleAnalyze)

		r.With(student).Get("/me/points", h.handlePoints)
		r.With(student).Get("/me/badges", h.handleBadges)
		r.Get("/me/notifications", h.handleListNotifications)
		r.Post("/me/notifications/read", h.handleMarkAllNotificationsRead)
		r.Post("/me/notifications/{notificationID}/read", h.handleMarkNotificationRead)

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireRole(model.UserRoleAdmin))
			r.Get("/users", h.handleListUsers)
			r.Post("/users", h.handleCreateUser)
			r.Post("/users/{userID}/toggle", h.handleToggleUserActive)
		})
	})
}

// path prefixes p with the configured base path.
func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

// respond writes a fragment for HTMX requests and JSON otherwise.
func respond(w http.ResponseWriter, r *http.Request, status int, v any, fragment templ.Component) {
	if fragment != nil && isHTMX(r) {
		render(w, r, status, fragment)
		return
	}
	writeJSON(w, status, v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %v", assistant.ErrInvalidInput, err)
	}
	return nil
}

func idParam(r *http.Request, name string) (int64, error) {
	return parseID(chi.URLParam(r, name))
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad id %q", assistant.ErrInvalidInput, s)
	}
	return id, nil
}

// canView reports whether u may see data of course c.
func (h *Handler) canView(r *http.Request, u *model.User, c *model.Course) (bool, error) {
	switch u.Role {
	case model.UserRoleAdmin:
		return true, nil
	case model.UserRoleProfessor:
		return c.ProfessorID == u.ID, nil
	default:
		return h.store.IsEnrolled(r.Context(), c.ID, u.ID)
	}
}

// courseOf loads an assignment's course and checks u may see it.
func (h *Handler) courseOf(r *http.Request, u *model.User, a *model.Assignment) (*model.Course, error) {
	c, err := h.store.GetCourse(r.Context(), a.CourseID)
	if err != nil {
		return nil, err
	}
	ok, err := h.canView(r, u, c)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errForbidden
	}
	return c, nil
}

var errForbidden = errors.New("forbidden")
