package client

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/pokepulse/pokepulse-backend/internal/testutil"
)

func staticCredentials(token string) CredentialProvider {
	return func() string { return token }
}

func newTestClient(t *testing.T, mock *testutil.MockUpstream, token string) *Client {
	t.Helper()

	cfg := DefaultConfig(staticCredentials(token))
	cfg.BaseURL = mock.URL()

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func TestNew_RequiresCredentialProvider(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New should fail without a credential provider")
	}
}

func TestFetch_Success(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	mock.SetResponse("/cards", testutil.NewCardsResponse(
		`{"data": [{"id": "base1-4", "name": "Charizard"}], "metadata": {"total": 1}}`))

	c := newTestClient(t, mock, "test-key")

	params := url.Values{}
	params.Set("search", "charizard")
	params.Set("limit", "8")

	payload, status := c.Fetch(context.Background(), "cards", params)

	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if _, ok := payload["data"]; !ok {
		t.Error("payload missing data field")
	}

	// Request shape
	headers := mock.GetLastRequestHeader()
	if got := headers.Get("Authorization"); got != "Bearer test-key" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer test-key")
	}
	if got := headers.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q, want application/json", got)
	}
	if got := headers.Get("User-Agent"); got != DefaultUserAgent {
		t.Errorf("User-Agent = %q, want %q", got, DefaultUserAgent)
	}
	if got := mock.GetLastRequestQuery(); got != "limit=8&search=charizard" {
		t.Errorf("query = %q, want url-encoded sorted params", got)
	}
}

func TestFetch_RateLimitAugmentation(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	mock.SetResponse("/sets", testutil.NewCardsResponse(`{"data": []}`))

	c := newTestClient(t, mock, "test-key")

	payload, status := c.Fetch(context.Background(), "sets", nil)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}

	rl, ok := payload["_rateLimit"].(map[string]any)
	if !ok {
		t.Fatalf("_rateLimit missing or wrong shape: %v", payload["_rateLimit"])
	}
	if rl["limit"] != "1000" {
		t.Errorf("limit = %v, want %q", rl["limit"], "1000")
	}
	if rl["remaining"] != "998" {
		t.Errorf("remaining = %v, want %q", rl["remaining"], "998")
	}
	if rl["reset"] != "3600" {
		t.Errorf("reset = %v, want %q", rl["reset"], "3600")
	}
}

func TestFetch_RateLimitHeadersAbsent(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	mock.SetResponse("/sets", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"data": []}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	})

	c := newTestClient(t, mock, "test-key")

	payload, _ := c.Fetch(context.Background(), "sets", nil)

	rl, ok := payload["_rateLimit"].(map[string]any)
	if !ok {
		t.Fatalf("_rateLimit missing: %v", payload)
	}
	for _, field := range []string{"limit", "remaining", "reset"} {
		if rl[field] != nil {
			t.Errorf("%s = %v, want nil when header absent", field, rl[field])
		}
	}
}

// TestFetch_MissingCredential verifies the fail-fast path: no token
// configured means no network call at all.
func TestFetch_MissingCredential(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	c := newTestClient(t, mock, "")

	payload, status := c.Fetch(context.Background(), "cards", nil)

	if status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", status)
	}
	if payload["error"] != ErrMissingCredential.Error() {
		t.Errorf("error = %v, want %q", payload["error"], ErrMissingCredential.Error())
	}
	if count := mock.GetRequestCount(); count != 0 {
		t.Errorf("upstream requests = %d, want 0 (short-circuit)", count)
	}
}

func TestFetch_UpstreamErrorJSONBody(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	mock.SetResponse("/cards", testutil.MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"error": "card not found"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	})

	c := newTestClient(t, mock, "test-key")

	payload, status := c.Fetch(context.Background(), "cards", nil)

	if status != http.StatusNotFound {
		t.Errorf("status = %d, want 404 (original status forwarded)", status)
	}
	if payload["error"] != "card not found" {
		t.Errorf("error = %v, want upstream error body", payload["error"])
	}
}

func TestFetch_UpstreamErrorRawBody(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	mock.SetResponse("/cards", testutil.NewPlainTextErrorResponse(
		http.StatusBadGateway, "upstream exploded"))

	c := newTestClient(t, mock, "test-key")

	payload, status := c.Fetch(context.Background(), "cards", nil)

	if status != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", status)
	}
	if payload["error"] != "upstream exploded" {
		t.Errorf("error = %v, want wrapped raw body", payload["error"])
	}
}

func TestFetch_TransportError(t *testing.T) {
	mock := testutil.NewMockUpstream()
	c := newTestClient(t, mock, "test-key")
	mock.Close() // connection refused from here on

	payload, status := c.Fetch(context.Background(), "cards", nil)

	if status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", status)
	}
	if payload["error"] == nil || payload["error"] == "" {
		t.Error("transport failure should produce an error payload")
	}
}

func TestFetch_UndecodableSuccessBody(t *testing.T) {
	mock := testutil.NewMockUpstream()
	defer mock.Close()

	mock.SetResponse("/sets", testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       `this is not json`,
		Headers:    map[string]string{"Content-Type": "text/html"},
	})

	c := newTestClient(t, mock, "test-key")

	payload, status := c.Fetch(context.Background(), "sets", nil)

	if status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", status)
	}
	if payload["error"] == nil {
		t.Error("undecodable success body should produce an error payload")
	}
}
