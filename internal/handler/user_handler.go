package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"go-tour-auth/internal/middleware"
	"go-tour-auth/internal/model"
	"go-tour-auth/internal/service"
	"go-tour-auth/pkg/apierror"
)

type userData struct {
	User model.User `json:"user"`
}

type UserHandler struct {
	service *service.AuthService
	cookie  RefreshCookie
}

func NewUserHandler(service *service.AuthService, cookie RefreshCookie) *UserHandler {
	return &UserHandler{service: service, cookie: cookie}
}

func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthenticated())
		return
	}

	user, err := h.service.GetUser(r.Context(), identity.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "User retrieved successfully", userData{User: user}, nil)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "id"))
	if userID == "" {
		writeError(w, apierror.Validation(model.FieldError{Field: "id", Reason: "is required"}))
		return
	}

	user, err := h.service.GetUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "User retrieved successfully", userData{User: user}, nil)
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthenticated())
		return
	}

	var payload model.ProfileUpdate
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), identity, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "Profile updated successfully", userData{User: user}, nil)
}

func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Unauthenticated())
		return
	}

	if err := h.service.DeleteAccount(r.Context(), identity, requestMeta(r)); err != nil {
		writeError(w, err)
		return
	}

	h.cookie.clear(w)
	writeSuccess(w, http.StatusOK, "Account deleted successfully", nil, nil)
}
