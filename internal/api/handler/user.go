package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/velia-hr/portal/internal/api/middleware"
	"github.com/velia-hr/portal/internal/api/response"
	"github.com/velia-hr/portal/internal/api/validation"
	"github.com/velia-hr/portal/internal/auth"
	"github.com/velia-hr/portal/internal/role"
)

const maxBodyBytes = 1 << 20

// UserService is the part of auth.Service the user endpoints need.
type UserService interface {
	Profile(ctx context.Context, id *auth.Identity) (*auth.User, error)
	Roster(ctx context.Context, editor *auth.Identity) ([]auth.User, error)
	AssignRole(ctx context.Context, editor *auth.Identity, email string, target role.Role) (*auth.User, error)
	RequestRole(ctx context.Context, id *auth.Identity, target role.Role) (*auth.User, error)
}

type userResponse struct {
	ID           string   `json:"id"`
	Email        string   `json:"email"`
	DisplayName  string   `json:"display_name"`
	Role         string   `json:"role"`
	RoleID       string   `json:"role_id"`
	Status       string   `json:"status"`
	AuthProvider string   `json:"auth_provider"`
	Env          string   `json:"env"`
	EditedBy     *string  `json:"edited_by,omitempty"`
	Permissions  []string `json:"permissions"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

func toUserResponse(u *auth.User) userResponse {
	perms := role.Permissions(u.Role)
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = string(p)
	}

	resp := userResponse{
		ID:           u.ID.String(),
		Email:        u.Email,
		DisplayName:  u.DisplayName,
		Role:         string(u.Role),
		RoleID:       u.RoleID.String(),
		Status:       u.Status.String(),
		AuthProvider: u.AuthProvider,
		Env:          u.Env,
		Permissions:  names,
		CreatedAt:    u.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    u.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if u.EditedBy != "" {
		editedBy := u.EditedBy
		resp.EditedBy = &editedBy
	}
	return resp
}

type setRoleRequest struct {
	Email   string `json:"email"`
	NewRole string `json:"new_role"`
}

type roleRequest struct {
	Role string `json:"role"`
}

// UserHandler handles the /api/users endpoints.
type UserHandler struct {
	svc UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(svc UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// Me handles GET /api/users/me.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity := middleware.GetIdentity(r.Context())

	u, err := h.svc.Profile(r.Context(), identity)
	if err != nil {
		writeUserError(w, err, "Failed to load user", requestID)
		return
	}

	response.Success(w, http.StatusOK, toUserResponse(u), requestID)
}

// List handles GET /api/users. Admins see every user, hr everyone but admins.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity := middleware.GetIdentity(r.Context())

	users, err := h.svc.Roster(r.Context(), identity)
	if err != nil {
		writeUserError(w, err, "Failed to list users", requestID)
		return
	}

	items := make([]userResponse, 0, len(users))
	for i := range users {
		items = append(items, toUserResponse(&users[i]))
	}

	response.SuccessList(w, http.StatusOK, items, len(items), requestID)
}

// SetRole handles PUT /api/users/role.
func (h *UserHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity := middleware.GetIdentity(r.Context())

	var req setRoleRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}

	fieldErrors := validation.ValidateSetRoleRequest(validation.SetRoleRequest{
		Email:   req.Email,
		NewRole: req.NewRole,
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, response.CodeValidation, "Input validation failed", fieldErrors, requestID)
		return
	}

	target, _ := role.ParseRole(req.NewRole) // already validated

	u, err := h.svc.AssignRole(r.Context(), identity, req.Email, target)
	if err != nil {
		writeUserError(w, err, "Failed to update role", requestID)
		return
	}

	response.Success(w, http.StatusOK, toUserResponse(u), requestID)
}

// RequestRole handles PUT /api/users/me/role-request.
func (h *UserHandler) RequestRole(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	identity := middleware.GetIdentity(r.Context())

	var req roleRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}

	if fieldErrors := validation.ValidateRoleRequest(req.Role); len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, response.CodeValidation, "Input validation failed", fieldErrors, requestID)
		return
	}

	target, _ := role.ParseRole(req.Role)

	u, err := h.svc.RequestRole(r.Context(), identity, target)
	if err != nil {
		writeUserError(w, err, "Failed to request role", requestID)
		return
	}

	response.Success(w, http.StatusOK, toUserResponse(u), requestID)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, requestID string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		response.Err(w, http.StatusBadRequest, response.CodeInvalidJSON, "Request body must be valid JSON", requestID)
		return false
	}
	return true
}

func writeUserError(w http.ResponseWriter, err error, fallback, requestID string) {
	switch {
	case errors.Is(err, auth.ErrForbiddenAssignment):
		response.Err(w, http.StatusForbidden, response.CodeForbidden, "You are not allowed to assign this role", requestID)
	case errors.Is(err, auth.ErrUserNotFound):
		response.Err(w, http.StatusNotFound, response.CodeNotFound, "User not found", requestID)
	default:
		slog.Error(fallback, "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, response.CodeInternal, fallback, requestID)
	}
}
