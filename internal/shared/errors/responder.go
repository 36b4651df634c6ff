package errors

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
)

// ContentTypeProblemJSON is the media type for Problem Details responses.
const ContentTypeProblemJSON = "application/problem+json"

// ErrorMapper maps domain/application errors to ProblemDetail.
type ErrorMapper func(err error) (ProblemDetail, bool)

// Responder writes Problem Details responses, consulting mappers in order.
type Responder struct {
	// BaseURI is prepended to relative problem types.
	BaseURI string
	// RequestIDHeader names the response header whose value is copied into the
	// "requestId" extension.
	RequestIDHeader string
	mappers         []ErrorMapper
}

// NewResponder creates a responder with optional base URI and error mappers.
func NewResponder(baseURI string, mappers ...ErrorMapper) *Responder {
	return &Responder{BaseURI: baseURI, mappers: mappers}
}

// Respond sends a ProblemDetail response with proper content type and aborts the chain.
func (r *Responder) Respond(c *gin.Context, p ProblemDetail) {
	if r.BaseURI != "" && strings.HasPrefix(p.Type, "/") {
		p.Type = r.BaseURI + p.Type
	}
	if p.Instance == "" && c.Request != nil && c.Request.URL != nil {
		p.Instance = c.Request.URL.Path
	}
	if r.RequestIDHeader != "" {
		if id := c.Writer.Header().Get(r.RequestIDHeader); id != "" {
			p = p.WithExtension("requestId", id)
		}
	}
	c.Header("Content-Type", ContentTypeProblemJSON)
	c.AbortWithStatusJSON(p.Status, p)
}

// RespondError converts err to a ProblemDetail and responds.
func (r *Responder) RespondError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	r.Respond(c, r.Resolve(err))
}

// Resolve runs the mapper chain. Unmapped errors become internal errors.
func (r *Responder) Resolve(err error) ProblemDetail {
	var direct ProblemDetail
	if errors.As(err, &direct) {
		return direct
	}
	for _, mapper := range r.mappers {
		if p, ok := mapper(err); ok {
			if p.Detail == "" {
				p.Detail = err.Error()
			}
			return p
		}
	}
	return ErrInternal.WithDetail(err.Error())
}
