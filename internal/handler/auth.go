package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/coursemate/internal/assistant"
	"github.com/pavelanni/coursemate/internal/model"
	"github.com/pavelanni/coursemate/internal/store"
)

const sessionCookieName = "session"

const minPasswordLen = 8

type courseCtxKey struct{}

func (h *Handler) cookiePath() string {
	if h.config.BasePath != "" {
		return h.config.BasePath + "/"
	}
	return "/"
}

// sessionToken reads the token from the session cookie or a bearer header.
func sessionToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// requireAuth resolves the session to an active user.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			h.unauthorized(w, r)
			return
		}
		user, err := h.store.SessionUser(r.Context(), token)
		if errors.Is(err, store.ErrNotFound) {
			h.unauthorized(w, r)
			return
		}
		if err != nil {
			fail(w, r, err)
			return
		}
		ctx := model.ContextWithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole returns middleware that checks the user has one of the allowed roles.
func requireRole(allowed ...model.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := model.UserFromContext(r.Context())
			if user == nil {
				failStatus(w, r, http.StatusUnauthorized, "ErrUnauthorized", "")
				return
			}
			for _, role := range allowed {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			failStatus(w, r, http.StatusForbidden, "ErrForbidden", "")
		})
	}
}

// loadCourse puts the course named by the URL into the context.
func (h *Handler) loadCourse(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "courseID")
		if err != nil {
			fail(w, r, err)
			return
		}
		c, err := h.store.GetCourse(r.Context(), id)
		if err != nil {
			fail(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), courseCtxKey{}, c)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireCourseAccess admits admins, the owning professor and enrolled students.
func (h *Handler) requireCourseAccess(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ok, err := h.canView(r, model.UserFromContext(r.Context()), courseFromContext(r.Context()))
		if err != nil {
			fail(w, r, err)
			return
		}
		if !ok {
			failStatus(w, r, http.StatusForbidden, "ErrForbidden", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func courseFromContext(ctx context.Context) *model.Course {
	c, _ := ctx.Value(courseCtxKey{}).(*model.Course)
	return c
}

func (h *Handler) unauthorized(w http.ResponseWriter, r *http.Request) {
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", h.path("/login"))
	}
	failStatus(w, r, http.StatusUnauthorized, "ErrUnauthorized", "")
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := decodeJSON(r, &req); err != nil {
			fail(w, r, err)
			return
		}
	} else {
		req.Username = r.FormValue("username")
		req.Password = r.FormValue("password")
	}

	user, err := h.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		fail(w, r, err)
		return
	}
	if user == nil || !user.Active ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		slog.Warn("failed login", "username", req.Username)
		failStatus(w, r, http.StatusUnauthorized, "LoginError", "")
		return
	}

	token, err := h.store.CreateAuthSession(r.Context(), user.ID)
	if err != nil {
		fail(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     h.cookiePath(),
		MaxAge:   int(store.AuthSessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	})
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r); token != "" {
		if err := h.store.DeleteAuthSession(r.Context(), token); err != nil {
			slog.Error("failed to delete auth session", "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     h.cookiePath(),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
	})
	w.WriteHeader(http.StatusNoContent)
}

type signupRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

// handleSignup registers a student account. Taken usernames get 409.
func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || len(req.Password) < minPasswordLen {
		fail(w, r, fmt.Errorf("%w: username and a password of %d characters required", assistant.ErrInvalidInput, minPasswordLen))
		return
	}
	if _, err := h.store.GetUserByUsername(r.Context(), req.Username); err == nil {
		failStatus(w, r, http.StatusConflict, "ErrUsernameTaken", "")
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		fail(w, r, err)
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = req.Username
	}

	u, err := h.createUser(r, createUserRequest{
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Password:    req.Password,
		Role:        model.UserRoleStudent,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}
