package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/coursemate/internal/assistant"
	"github.com/pavelanni/coursemate/internal/model"
)

type createUserRequest struct {
	Username    string         `json:"username"`
	DisplayName string         `json:"display_name"`
	Password    string         `json:"password"`
	Role        model.UserRole `json:"role"`
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context(), model.UserRole(r.URL.Query().Get("role")))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		fail(w, r, fmt.Errorf("%w: username and password required", assistant.ErrInvalidInput))
		return
	}
	switch req.Role {
	case "":
		req.Role = model.UserRoleStudent
	case model.UserRoleStudent, model.UserRoleProfessor, model.UserRoleAdmin:
	default:
		fail(w, r, fmt.Errorf("%w: unknown role %q", assistant.ErrInvalidInput, req.Role))
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = req.Username
	}

	u, err := h.createUser(r, req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// createUser hashes the password and stores an active user.
func (h *Handler) createUser(r *http.Request, req createUserRequest) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := model.User{
		Username:     req.Username,
		DisplayName:  req.DisplayName,
		PasswordHash: string(hash),
		Role:         req.Role,
		Active:       true,
	}
	id, err := h.store.CreateUser(r.Context(), u)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	u.ID = id
	slog.Info("created user", "id", id, "username", u.Username, "role", u.Role)
	return &u, nil
}

func (h *Handler) handleToggleUserActive(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "userID")
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := h.store.ToggleUserActive(r.Context(), id); err != nil {
		fail(w, r, err)
		return
	}
	u, err := h.store.GetUserByID(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	slog.Info("toggled user", "id", id, "active", u.Active)
	writeJSON(w, http.StatusOK, u)
}
