package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/velia-hr/portal/internal/api/middleware"
	"github.com/velia-hr/portal/internal/api/response"
	"github.com/velia-hr/portal/internal/api/validation"
	"github.com/velia-hr/portal/internal/auth"
)

// LoginService is the part of auth.Service the login endpoints need.
type LoginService interface {
	LocalLogin(ctx context.Context, username, password string) (*auth.User, error)
	IdPLogin(ctx context.Context, idToken string) (*auth.User, error)
}

// LoginRecorder counts login attempts. *obs.Metrics satisfies it.
type LoginRecorder interface {
	Login(provider string, ok bool)
}

type nopLoginRecorder struct{}

func (nopLoginRecorder) Login(string, bool) {}

type localLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type idpLoginRequest struct {
	IDToken string `json:"idToken"`
}

// AuthHandler handles the /api/auth login endpoints.
type AuthHandler struct {
	svc     LoginService
	metrics LoginRecorder
}

// NewAuthHandler creates a new AuthHandler. metrics may be nil.
func NewAuthHandler(svc LoginService, metrics LoginRecorder) *AuthHandler {
	if metrics == nil {
		metrics = nopLoginRecorder{}
	}
	return &AuthHandler{svc: svc, metrics: metrics}
}

// LocalLogin handles POST /api/auth/local-login.
func (h *AuthHandler) LocalLogin(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req localLoginRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}

	fieldErrors := validation.ValidateLocalLoginRequest(validation.LocalLoginRequest{
		Username: req.Username,
		Password: req.Password,
	})
	if len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, response.CodeValidation, "Input validation failed", fieldErrors, requestID)
		return
	}

	u, err := h.svc.LocalLogin(r.Context(), strings.TrimSpace(req.Username), req.Password)
	h.metrics.Login(auth.ProviderLocal, err == nil)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			response.Err(w, http.StatusUnauthorized, response.CodeInvalidCredentials, "Invalid username or password", requestID)
			return
		}
		slog.Error("local login failed", "error", err, "requestId", requestID)
		response.Err(w, http.StatusInternalServerError, response.CodeInternal, "Login failed", requestID)
		return
	}

	response.Success(w, http.StatusOK, toUserResponse(u), requestID)
}

// IdPLogin handles POST /api/auth/idp-login.
func (h *AuthHandler) IdPLogin(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var req idpLoginRequest
	if !decodeJSON(w, r, &req, requestID) {
		return
	}

	if fieldErrors := validation.ValidateIdPLoginRequest(req.IDToken); len(fieldErrors) > 0 {
		response.ErrWithDetails(w, http.StatusBadRequest, response.CodeValidation, "Input validation failed", fieldErrors, requestID)
		return
	}

	u, err := h.svc.IdPLogin(r.Context(), req.IDToken)
	h.metrics.Login(auth.ProviderIdP, err == nil)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrIdPDisabled):
			response.Err(w, http.StatusNotImplemented, response.CodeNotConfigured, "Identity provider login is not configured", requestID)
		case errors.Is(err, auth.ErrInvalidToken):
			response.Err(w, http.StatusUnauthorized, response.CodeUnauthorized, "Invalid ID token", requestID)
		default:
			slog.Error("identity provider login failed", "error", err, "requestId", requestID)
			response.Err(w, http.StatusInternalServerError, response.CodeInternal, "Login failed", requestID)
		}
		return
	}

	response.Success(w, http.StatusOK, toUserResponse(u), requestID)
}
