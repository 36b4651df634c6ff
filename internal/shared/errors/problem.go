// Package errors renders failures as RFC 7807 Problem Details.
package errors

import (
	"maps"
	"net/http"
)

// ProblemDetail is the JSON body of an application/problem+json response.
type ProblemDetail struct {
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Status     int            `json:"status"`
	Detail     string         `json:"detail,omitempty"`
	Instance   string         `json:"instance,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func (p ProblemDetail) Error() string {
	if p.Detail == "" {
		return p.Title
	}
	return p.Title + ": " + p.Detail
}

// WithDetail returns a copy with the given detail message.
func (p ProblemDetail) WithDetail(detail string) ProblemDetail {
	p.Detail = detail
	return p
}

// WithExtension returns a copy with an additional extension property.
func (p ProblemDetail) WithExtension(key string, value any) ProblemDetail {
	extensions := maps.Clone(p.Extensions)
	if extensions == nil {
		extensions = map[string]any{}
	}
	extensions[key] = value
	p.Extensions = extensions
	return p
}

const (
	TypeValidation        = "/problems/validation-error"
	TypeBadRequest        = "/problems/bad-request"
	TypeNotAuthenticated  = "/problems/not-authenticated"
	TypeForbidden         = "/problems/forbidden"
	TypeNotFound          = "/problems/not-found"
	TypeConflict          = "/problems/conflict"
	TypeInvalidTransition = "/problems/invalid-transition"
	TypeCodeMismatch      = "/problems/end-code-mismatch"
	TypeStoreUnavailable  = "/problems/store-unavailable"
	TypeInternal          = "/problems/internal-error"
)

func kind(typ, title string, status int) ProblemDetail {
	return ProblemDetail{Type: typ, Title: title, Status: status}
}

var (
	ErrValidation       = kind(TypeValidation, "Validation Error", http.StatusUnprocessableEntity)
	ErrBadRequest       = kind(TypeBadRequest, "Bad Request", http.StatusBadRequest)
	ErrNotAuthenticated = kind(TypeNotAuthenticated, "Not Authenticated", http.StatusUnauthorized)
	ErrForbidden        = kind(TypeForbidden, "Forbidden", http.StatusForbidden)
	ErrNotFound         = kind(TypeNotFound, "Resource Not Found", http.StatusNotFound)
	ErrConflict         = kind(TypeConflict, "Conflict", http.StatusConflict)
	// ErrInvalidTransition: the walk is not in the state the operation needs.
	ErrInvalidTransition = kind(TypeInvalidTransition, "Invalid Walk Transition", http.StatusConflict)
	// ErrCodeMismatch: the walker offered the wrong end code.
	ErrCodeMismatch     = kind(TypeCodeMismatch, "End Code Mismatch", http.StatusUnprocessableEntity)
	ErrStoreUnavailable = kind(TypeStoreUnavailable, "Document Store Unavailable", http.StatusServiceUnavailable)
	ErrInternal         = kind(TypeInternal, "Internal Server Error", http.StatusInternalServerError)
)
