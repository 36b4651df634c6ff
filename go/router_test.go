package walkserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identitymemory "github.com/Apurer/dogwalk-api/internal/domains/identity/adapters/memory"
	identityapp "github.com/Apurer/dogwalk-api/internal/domains/identity/application"
	ownerdocs "github.com/Apurer/dogwalk-api/internal/domains/owners/adapters/persistence/documents"
	ownerapp "github.com/Apurer/dogwalk-api/internal/domains/owners/application"
	walkhttpmapper "github.com/Apurer/dogwalk-api/internal/domains/walks/adapters/http/mapper"
	walkmemory "github.com/Apurer/dogwalk-api/internal/domains/walks/adapters/memory"
	walkdocs "github.com/Apurer/dogwalk-api/internal/domains/walks/adapters/persistence/documents"
	walkapp "github.com/Apurer/dogwalk-api/internal/domains/walks/application"
	"github.com/Apurer/dogwalk-api/internal/platform/docstore/memory"
	"github.com/Apurer/dogwalk-api/internal/shared/auth"
	apierrors "github.com/Apurer/dogwalk-api/internal/shared/errors"
)

type testServer struct {
	server   *httptest.Server
	identity *identityapp.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	walks := walkapp.NewService(walkdocs.NewRepository(store),
		walkapp.WithIdempotencyStore(walkmemory.NewIdempotencyStore()),
		walkapp.WithEndCodeGenerator(func() (string, error) { return "4821", nil }))
	ownerRepo := ownerdocs.NewRepository(store)
	owners := ownerapp.NewService(ownerRepo, ownerRepo)
	identity, err := identityapp.NewService([]byte("test-secret"), identitymemory.NewSessionStore())
	require.NoError(t, err)

	responder := NewResponder("")
	settings := DefaultLiveSettings()
	settings.PingInterval = time.Second
	handlers := ApiHandleFunctions{
		WalkAPI:    NewWalkAPI(walks, nil, responder),
		OwnerAPI:   NewOwnerAPI(walks, owners, responder),
		SessionAPI: NewSessionAPI(identity, responder),
		LiveAPI:    NewLiveAPI(walks, owners, nil, responder, nil, settings),
	}
	server := httptest.NewServer(NewRouter(handlers, identity, WithResponder(responder)))
	t.Cleanup(server.Close)
	return &testServer{server: server, identity: identity}
}

func (s *testServer) token(t *testing.T, userID string, role auth.Role) string {
	t.Helper()
	token, err := s.identity.IssueToken(context.Background(), userID, role, time.Hour)
	require.NoError(t, err)
	return token.Value
}

func (s *testServer) do(t *testing.T, method, path, token string, body any, headers ...string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func decodeProblem(t *testing.T, raw []byte) apierrors.ProblemDetail {
	t.Helper()
	var problem apierrors.ProblemDetail
	require.NoError(t, json.Unmarshal(raw, &problem))
	return problem
}

func decodeWalk(t *testing.T, raw []byte) walkhttpmapper.Walk {
	t.Helper()
	var walk walkhttpmapper.Walk
	require.NoError(t, json.Unmarshal(raw, &walk))
	return walk
}

var requestBody = map[string]any{"petNames": []string{"Fido", "Rex"}, "latitude": 19.4, "longitude": -99.1}

func TestRouter_RequiresAuthentication(t *testing.T) {
	s := newTestServer(t)

	resp, raw := s.do(t, http.MethodGet, "/v1/walks/available", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, apierrors.ContentTypeProblemJSON, resp.Header.Get("Content-Type"))
	require.Equal(t, apierrors.TypeNotAuthenticated, decodeProblem(t, raw).Type)
	require.NotEmpty(t, resp.Header.Get(HeaderRequestID))

	resp, _ = s.do(t, http.MethodGet, "/v1/walks/available", "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/healthz", "", nil, HeaderRequestID, "req-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "req-1", resp.Header.Get(HeaderRequestID))
}

func TestRouter_WalkLifecycle(t *testing.T) {
	s := newTestServer(t)
	owner := s.token(t, "owner-1", auth.RoleOwner)
	walkerA := s.token(t, "walker-a", auth.RoleWalker)
	walkerB := s.token(t, "walker-b", auth.RoleWalker)

	resp, raw := s.do(t, http.MethodPost, "/v1/walks", walkerA, requestBody)
	require.Equal(t, http.StatusForbidden, resp.StatusCode, string(raw))

	resp, raw = s.do(t, http.MethodPost, "/v1/walks", owner, requestBody)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	created := decodeWalk(t, raw)
	require.Equal(t, "REQUESTED", created.Status)
	require.Equal(t, 100.0, created.TotalCost)
	require.Equal(t, "4821", created.EndCode)
	id := created.ID

	resp, raw = s.do(t, http.MethodGet, "/v1/walks/available", walkerA, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var available []walkhttpmapper.Walk
	require.NoError(t, json.Unmarshal(raw, &available))
	require.Len(t, available, 1)
	require.Empty(t, available[0].EndCode)
	require.NotContains(t, string(raw), "endCode")

	resp, raw = s.do(t, http.MethodPost, "/v1/walks/"+id+"/claim", walkerA, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	require.Equal(t, "walker-a", decodeWalk(t, raw).WalkerID)

	resp, raw = s.do(t, http.MethodPost, "/v1/walks/"+id+"/claim", walkerB, nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, apierrors.TypeConflict, decodeProblem(t, raw).Type)

	resp, _ = s.do(t, http.MethodPost, "/v1/walks/"+id+"/start", walkerB, nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, raw = s.do(t, http.MethodPost, "/v1/walks/"+id+"/finish", walkerA, map[string]any{"code": "4821"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, apierrors.TypeInvalidTransition, decodeProblem(t, raw).Type)

	resp, raw = s.do(t, http.MethodGet, "/v1/walks/"+id+"/view", walkerA, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view walkhttpmapper.PickupView
	require.NoError(t, json.Unmarshal(raw, &view))
	require.NotNil(t, view.Zone)
	require.True(t, view.CanStart)

	resp, raw = s.do(t, http.MethodPost, "/v1/walks/"+id+"/start", walkerA, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	require.Equal(t, "IN_PROGRESS", decodeWalk(t, raw).Status)

	resp, raw = s.do(t, http.MethodPost, "/v1/walks/"+id+"/finish", walkerA, map[string]any{"code": "9999"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.Equal(t, apierrors.TypeCodeMismatch, decodeProblem(t, raw).Type)

	resp, raw = s.do(t, http.MethodGet, "/v1/walks/"+id, owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "IN_PROGRESS", decodeWalk(t, raw).Status)

	resp, _ = s.do(t, http.MethodPost, "/v1/walks/"+id+"/finish", walkerA, map[string]any{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, raw = s.do(t, http.MethodPost, "/v1/walks/"+id+"/finish", walkerA, map[string]any{"code": "4821"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	finished := decodeWalk(t, raw)
	require.Equal(t, "COMPLETED", finished.Status)
	require.Empty(t, finished.EndCode)

	resp, _ = s.do(t, http.MethodGet, "/v1/owner/active-walk", owner, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/v1/walks/missing", walkerA, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRouter_RequestWalkValidation(t *testing.T) {
	s := newTestServer(t)
	owner := s.token(t, "owner-1", auth.RoleOwner)

	resp, _ := s.do(t, http.MethodPost, "/v1/walks", owner, "{not json")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/v1/walks", owner, map[string]any{"petNames": []string{"Fido"}})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, raw := s.do(t, http.MethodPost, "/v1/walks", owner, map[string]any{"petNames": []string{}, "latitude": 1, "longitude": 1})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.Equal(t, apierrors.TypeValidation, decodeProblem(t, raw).Type)
}

func TestRouter_IdempotentRequest(t *testing.T) {
	s := newTestServer(t)
	owner := s.token(t, "owner-1", auth.RoleOwner)

	resp, raw := s.do(t, http.MethodPost, "/v1/walks", owner, requestBody, HeaderIdempotencyKey, "key-1")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	first := decodeWalk(t, raw)

	resp, raw = s.do(t, http.MethodPost, "/v1/walks", owner, requestBody, HeaderIdempotencyKey, "key-1")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, first.ID, decodeWalk(t, raw).ID)

	different := map[string]any{"petNames": []string{"Bo"}, "latitude": 1, "longitude": 1}
	resp, _ = s.do(t, http.MethodPost, "/v1/walks", owner, different, HeaderIdempotencyKey, "key-1")
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRouter_OwnerProfile(t *testing.T) {
	s := newTestServer(t)
	owner := s.token(t, "owner-1", auth.RoleOwner)

	resp, raw := s.do(t, http.MethodGet, "/v1/owner/payment-method", owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"configured":false}`, string(raw))

	resp, _ = s.do(t, http.MethodPut, "/v1/owner/payment-method", owner, map[string]any{"cardNumber": "123"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPut, "/v1/owner/payment-method", owner, map[string]any{"cardNumber": "1234567890123456"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw = s.do(t, http.MethodGet, "/v1/owner/payment-method", owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"configured":true,"cardNumber":"1234567890123456","last4":"3456"}`, string(raw))

	resp, _ = s.do(t, http.MethodPost, "/v1/owner/pets", owner, map[string]any{"name": "Rex", "breed": ""})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp, _ = s.do(t, http.MethodPost, "/v1/owner/pets", owner, map[string]any{"name": "Rex", "breed": "Pug"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, raw = s.do(t, http.MethodGet, "/v1/owner/pets", owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(raw), `"name":"Rex"`)
}

func TestRouter_SignOutRevokesToken(t *testing.T) {
	s := newTestServer(t)
	owner := s.token(t, "owner-1", auth.RoleOwner)

	resp, _ := s.do(t, http.MethodPost, "/v1/session/sign-out", owner, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/v1/owner/pets", owner, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
