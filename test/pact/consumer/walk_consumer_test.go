//go:build pact
// +build pact

package consumer_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	pacttest "github.com/Apurer/dogwalk-api/test/pact"

	pactconsumer "github.com/pact-foundation/pact-go/v2/consumer"
	pactlog "github.com/pact-foundation/pact-go/v2/log"
	"github.com/pact-foundation/pact-go/v2/matchers"
	"github.com/stretchr/testify/require"
)

type walkPayload struct {
	ID       string   `json:"id"`
	OwnerID  string   `json:"ownerId"`
	PetNames []string `json:"petNames"`
	Status   string   `json:"status"`
	EndCode  string   `json:"endCode,omitempty"`
}

type paymentPayload struct {
	Configured bool   `json:"configured"`
	Last4      string `json:"last4,omitempty"`
}

type problemDetail struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

type apiError struct {
	status int
	title  string
	detail string
}

func (e apiError) Error() string {
	msg := e.title
	if msg == "" {
		msg = "api error"
	}
	if e.detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.detail)
	}
	return fmt.Sprintf("%s (status %d)", msg, e.status)
}

func (e apiError) Status() int {
	return e.status
}

func TestWalkAppContract(t *testing.T) {
	t.Helper()
	pactlog.SetLogLevel("INFO")

	pact, err := pactconsumer.NewV2Pact(pactconsumer.MockHTTPProviderConfig{
		Consumer: pacttest.ConsumerName,
		Provider: pacttest.ProviderName,
		PactDir:  pacttest.PactDir(t),
		LogDir:   pacttest.LogDir(t),
	})
	require.NoError(t, err)

	jsonContentType := matchers.Regex("application/json; charset=utf-8", "application\\/json(?:;\\s?charset=utf-8)?")
	location := matchers.Map{
		"latitude":  matchers.Like(19.4326),
		"longitude": matchers.Like(-99.1332),
	}
	ownerWalk := matchers.Map{
		"id":       matchers.Like("01J9ZQ6R3W6Y1D4T2E5B7C8N0M"),
		"ownerId":  matchers.S(pacttest.OwnerID),
		"petNames": matchers.ArrayMinLike("Fido", 1),
		"status":   matchers.S("REQUESTED"),
		"endCode":  matchers.Term("4821", "^[0-9]{4}$"),
		"pickup":   location,
	}
	walkerWalk := matchers.Map{
		"id":       matchers.Like("01J9ZQ6R3W6Y1D4T2E5B7C8N0M"),
		"ownerId":  matchers.Like("owner-1"),
		"petNames": matchers.ArrayMinLike("Fido", 1),
		"status":   matchers.S("REQUESTED"),
		"pickup":   location,
	}

	pact.AddInteraction().
		Given(pacttest.StateNoWalks).
		UponReceiving("an owner requesting a walk").
		WithRequest("POST", "/v1/walks", func(b *pactconsumer.V2RequestBuilder) {
			b.Header("Authorization", matchers.S("Bearer "+pacttest.OwnerToken))
			b.Header("Content-Type", matchers.S("application/json"))
			b.JSONBody(pacttest.ExampleWalkRequest())
		}).
		WillRespondWith(http.StatusCreated, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", jsonContentType)
			b.JSONBody(ownerWalk)
		})

	pact.AddInteraction().
		Given(pacttest.StateRequestedWalk).
		UponReceiving("a walker listing available walks").
		WithRequest("GET", "/v1/walks/available", func(b *pactconsumer.V2RequestBuilder) {
			b.Header("Authorization", matchers.S("Bearer "+pacttest.WalkerToken))
		}).
		WillRespondWith(http.StatusOK, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", jsonContentType)
			b.JSONBody(matchers.ArrayMinLike(walkerWalk, 1))
		})

	pact.AddInteraction().
		Given(pacttest.StateNoWalks).
		UponReceiving("a walker fetching a missing walk").
		WithRequest("GET", "/v1/walks/"+pacttest.MissingWalkID, func(b *pactconsumer.V2RequestBuilder) {
			b.Header("Authorization", matchers.S("Bearer "+pacttest.WalkerToken))
		}).
		WillRespondWith(http.StatusNotFound, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", matchers.S("application/problem+json"))
			b.JSONBody(matchers.Map{
				"type":   matchers.S("/problems/not-found"),
				"title":  matchers.S("Resource Not Found"),
				"status": matchers.Like(http.StatusNotFound),
			})
		})

	pact.AddInteraction().
		Given(pacttest.StateNoPayment).
		UponReceiving("an owner reading an unset payment method").
		WithRequest("GET", "/v1/owner/payment-method", func(b *pactconsumer.V2RequestBuilder) {
			b.Header("Authorization", matchers.S("Bearer "+pacttest.OwnerToken))
		}).
		WillRespondWith(http.StatusOK, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", jsonContentType)
			b.JSONBody(matchers.Map{"configured": matchers.Like(false)})
		})

	err = pact.ExecuteTest(t, func(config pactconsumer.MockServerConfig) error {
		owner := newWalkClient(config, pacttest.OwnerToken)
		walker := newWalkClient(config, pacttest.WalkerToken)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		created, err := owner.RequestWalk(ctx, pacttest.ExampleWalkRequest())
		if err != nil {
			return fmt.Errorf("request walk: %w", err)
		}
		if created.ID == "" || created.EndCode == "" {
			return fmt.Errorf("expected id and end code, got %+v", created)
		}

		available, err := walker.ListAvailable(ctx)
		if err != nil {
			return fmt.Errorf("list available: %w", err)
		}
		if len(available) == 0 || available[0].EndCode != "" {
			return fmt.Errorf("expected redacted available walks, got %+v", available)
		}

		if _, err := walker.GetWalk(ctx, pacttest.MissingWalkID); err == nil {
			return fmt.Errorf("expected 404 for walk %s", pacttest.MissingWalkID)
		} else if apiErr, ok := err.(apiError); ok && apiErr.Status() != http.StatusNotFound {
			return fmt.Errorf("expected 404, got %d", apiErr.Status())
		}

		payment, err := owner.PaymentMethod(ctx)
		if err != nil {
			return fmt.Errorf("payment method: %w", err)
		}
		if payment.Configured {
			return fmt.Errorf("expected no payment method, got %+v", payment)
		}
		return nil
	})
	require.NoError(t, err)
}

type walkClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func newWalkClient(config pactconsumer.MockServerConfig, token string) *walkClient {
	host := config.Host
	if host == "" {
		host = "localhost"
	}
	transport := &http.Transport{TLSClientConfig: config.TLSConfig}
	return &walkClient{
		baseURL:    fmt.Sprintf("http://%s:%d", host, config.Port),
		token:      token,
		httpClient: &http.Client{Transport: transport, Timeout: 10 * time.Second},
	}
}

func (c *walkClient) RequestWalk(ctx context.Context, payload map[string]any) (*walkPayload, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var walk walkPayload
	if err := c.do(ctx, http.MethodPost, "/v1/walks", bytes.NewReader(body), &walk); err != nil {
		return nil, err
	}
	return &walk, nil
}

func (c *walkClient) ListAvailable(ctx context.Context) ([]walkPayload, error) {
	var walks []walkPayload
	if err := c.do(ctx, http.MethodGet, "/v1/walks/available", nil, &walks); err != nil {
		return nil, err
	}
	return walks, nil
}

func (c *walkClient) GetWalk(ctx context.Context, id string) (*walkPayload, error) {
	var walk walkPayload
	if err := c.do(ctx, http.MethodGet, "/v1/walks/"+id, nil, &walk); err != nil {
		return nil, err
	}
	return &walk, nil
}

func (c *walkClient) PaymentMethod(ctx context.Context) (*paymentPayload, error) {
	var payment paymentPayload
	if err := c.do(ctx, http.MethodGet, "/v1/owner/payment-method", nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (c *walkClient) do(ctx context.Context, method, path string, body *bytes.Reader, out any) error {
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(res)
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func decodeAPIError(res *http.Response) error {
	var problem problemDetail
	_ = json.NewDecoder(res.Body).Decode(&problem)
	status := problem.Status
	if status == 0 {
		status = res.StatusCode
	}
	return apiError{
		status: status,
		title:  problem.Title,
		detail: problem.Detail,
	}
}
