package apierror

import (
	"errors"
	"fmt"
	"net/http"

	"go-tour-auth/internal/model"
)

type Kind uint8

const (
	KindInternal Kind = iota
	KindInvalidCredentials
	KindUnauthenticated
	KindForbidden
	KindSessionRevoked
	KindStoreUnavailable
	KindValidation
	KindConflict
	KindNotFound
)

type APIError struct {
	Kind       Kind               `json:"-"`
	Code       string             `json:"code"`
	Message    string             `json:"message"`
	Details    string             `json:"details,omitempty"`
	Fields     []model.FieldError `json:"fields,omitempty"`
	HTTPStatus int                `json:"-"`
	Err        error              `json:"-"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}

	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func New(code string, message string, details string, status int) *APIError {
	return &APIError{Kind: kindForStatus(status), Code: code, Message: message, Details: details, HTTPStatus: status}
}

func kindForStatus(status int) Kind {
	switch status {
	case http.StatusBadRequest:
		return KindValidation
	case http.StatusUnauthorized:
		return KindUnauthenticated
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	default:
		return KindInternal
	}
}

func InvalidCredentials() *APIError {
	return &APIError{Kind: KindInvalidCredentials, Code: "INVALID_CREDENTIALS", Message: "invalid email or password", HTTPStatus: http.StatusUnauthorized}
}

func Unauthenticated() *APIError {
	return &APIError{Kind: KindUnauthenticated, Code: "UNAUTHENTICATED", Message: "invalid or expired token", HTTPStatus: http.StatusUnauthorized}
}

func Forbidden() *APIError {
	return &APIError{Kind: KindForbidden, Code: "FORBIDDEN", Message: "you do not have permission to perform this action", HTTPStatus: http.StatusForbidden}
}

func SessionRevoked() *APIError {
	return &APIError{Kind: KindSessionRevoked, Code: "SESSION_EXPIRED", Message: "invalid refresh token, please log in again", HTTPStatus: http.StatusUnauthorized}
}

func MissingRefreshToken() *APIError {
	return &APIError{Kind: KindSessionRevoked, Code: "SESSION_EXPIRED", Message: "no refresh token provided", HTTPStatus: http.StatusUnauthorized}
}

// StoreUnavailable keeps the cause for logs; the message sent to clients stays generic.
func StoreUnavailable(cause error) *APIError {
	return &APIError{Kind: KindStoreUnavailable, Code: "STORE_UNAVAILABLE", Message: "session store unavailable, try again later", HTTPStatus: http.StatusServiceUnavailable, Err: cause}
}

func Validation(fields ...model.FieldError) *APIError {
	return &APIError{Kind: KindValidation, Code: "BAD_REQUEST", Message: "validation failed", Fields: fields, HTTPStatus: http.StatusBadRequest}
}

func Conflict(message string) *APIError {
	return &APIError{Kind: KindConflict, Code: "ALREADY_EXISTS", Message: message, HTTPStatus: http.StatusConflict}
}

func NotFound(message string, details string) *APIError {
	return &APIError{Kind: KindNotFound, Code: "NOT_FOUND", Message: message, Details: details, HTTPStatus: http.StatusNotFound}
}

// KindOf reports the taxonomy kind of err, or KindInternal if it carries none.
func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
