package handler

import (
	"net/http"
	"strings"

	"go-tour-auth/internal/middleware"
	"go-tour-auth/internal/model"
	"go-tour-auth/internal/service"
	"go-tour-auth/pkg/apierror"
)

type AuthHandler struct {
	service *service.AuthService
	cookie  RefreshCookie
}

func NewAuthHandler(service *service.AuthService, cookie RefreshCookie) *AuthHandler {
	return &AuthHandler{service: service, cookie: cookie}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload model.RegisterRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.service.Register(r.Context(), payload, requestMeta(r))
	if err != nil {
		writeError(w, err)
		return
	}

	h.cookie.set(w, result.RefreshToken, result.RefreshExpiresIn)
	writeSuccess(w, http.StatusCreated, "User registered successfully", result, nil)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.service.Login(r.Context(), payload.Email, payload.Password, requestMeta(r))
	if err != nil {
		writeError(w, err)
		return
	}

	h.cookie.set(w, result.RefreshToken, result.RefreshExpiresIn)
	writeSuccess(w, http.StatusOK, "Login successful", result, nil)
}

// Refresh reads the refresh credential from its cookie only; a token in the body is ignored.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	presented := strings.TrimSpace(h.cookie.read(r))
	if presented == "" {
		writeError(w, apierror.MissingRefreshToken())
		return
	}

	result, err := h.service.Refresh(r.Context(), presented, requestMeta(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Token refreshed successfully", result, nil)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthenticated())
		return
	}

	if err := h.service.Logout(r.Context(), identity, requestMeta(r)); err != nil {
		writeError(w, err)
		return
	}

	h.cookie.clear(w)
	writeSuccess(w, http.StatusOK, "Logout successful", nil, nil)
}
