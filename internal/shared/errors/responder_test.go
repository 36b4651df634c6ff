package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

var errSample = stderrors.New("sample failure")

func TestResponder_UsesMapperChain(t *testing.T) {
	gin.SetMode(gin.TestMode)
	responder := NewResponder("", func(err error) (ProblemDetail, bool) {
		if stderrors.Is(err, errSample) {
			return ErrConflict, true
		}
		return ProblemDetail{}, false
	})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/v1/walks/abc/claim", nil)

	responder.RespondError(c, errSample)

	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, ContentTypeProblemJSON, rec.Header().Get("Content-Type"))
	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, TypeConflict, body.Type)
	require.Equal(t, "sample failure", body.Detail)
	require.Equal(t, "/v1/walks/abc/claim", body.Instance)
}

func TestResponder_UnknownErrorIsInternal(t *testing.T) {
	responder := NewResponder("https://dogwalk.example")
	problem := responder.Resolve(stderrors.New("boom"))
	require.Equal(t, http.StatusInternalServerError, problem.Status)
	require.Equal(t, "boom", problem.Detail)
}

func TestWithExtension_DoesNotShareMaps(t *testing.T) {
	base := ErrValidation.WithExtension("a", 1)
	derived := base.WithExtension("b", 2)
	require.Len(t, base.Extensions, 1)
	require.Len(t, derived.Extensions, 2)
}

func TestResponder_TagsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	responder := NewResponder("")
	responder.RequestIDHeader = "X-Request-ID"

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/v1/walks/missing", nil)
	c.Header("X-Request-ID", "req-42")

	responder.Respond(c, ErrNotFound)

	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "req-42", body.Extensions["requestId"])
}
