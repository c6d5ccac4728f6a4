package donki

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/space-weather-etl/internal/audit"
	"github.com/couchcryptid/space-weather-etl/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAPIKey        = "test-key-1234"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

type auditEntry struct {
	endpoint string
	status   int
	content  string
}

type recordingAuditor struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (a *recordingAuditor) Record(_ context.Context, endpoint string, status int, content string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{endpoint: endpoint, status: status, content: content})
}

func testClient(baseURL string, auditor Auditor, retryMax int) *Client {
	c := NewClient(testAPIKey, baseURL, 5*time.Second, retryMax, auditor,
		slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
	c.httpClient.RetryWaitMin = time.Millisecond
	c.httpClient.RetryWaitMax = 5 * time.Millisecond
	return c
}

func dateWindow() url.Values {
	return url.Values{"startDate": {"2024-02-22"}, "endDate": {"2024-08-22"}}
}

func TestClient_Fetch_Success(t *testing.T) {
	body := `[{"flrID":"2024-02-22T21:07:00-FLR-001","classType":"X6.3"}]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/FLR", r.URL.Path)
		assert.Equal(t, "2024-02-22", r.URL.Query().Get("startDate"))
		assert.Equal(t, "2024-08-22", r.URL.Query().Get("endDate"))
		assert.Equal(t, testAPIKey, r.URL.Query().Get("api_key"))
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	auditor := &recordingAuditor{}
	c := testClient(srv.URL, auditor, 0)

	data, ok := c.Fetch(context.Background(), PathFlares, dateWindow())
	require.True(t, ok)
	assert.JSONEq(t, body, string(data))

	require.Len(t, auditor.entries, 1)
	assert.Equal(t, srv.URL+"/FLR", auditor.entries[0].endpoint)
	assert.Equal(t, http.StatusOK, auditor.entries[0].status)
	assert.Equal(t, body, auditor.entries[0].content)
	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.FetchRequests.WithLabelValues("FLR", "success")), 0)
}

func TestClient_Fetch_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such resource", http.StatusNotFound)
	}))
	defer srv.Close()

	auditor := &recordingAuditor{}
	c := testClient(srv.URL, auditor, 0)

	data, ok := c.Fetch(context.Background(), PathStorms, dateWindow())
	assert.False(t, ok)
	assert.Nil(t, data)

	require.Len(t, auditor.entries, 1)
	assert.Equal(t, http.StatusNotFound, auditor.entries[0].status)
	assert.Contains(t, auditor.entries[0].content, "no such resource")
	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.FetchRequests.WithLabelValues("GST", "http_error")), 0)
}

func TestClient_Fetch_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	}))
	defer srv.Close()

	auditor := &recordingAuditor{}
	c := testClient(srv.URL, auditor, 0)

	_, ok := c.Fetch(context.Background(), PathFlares, dateWindow())
	assert.False(t, ok)
	require.Len(t, auditor.entries, 1)
	assert.Equal(t, http.StatusOK, auditor.entries[0].status)
	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.FetchRequests.WithLabelValues("FLR", "decode_error")), 0)
}

func TestClient_Fetch_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	auditor := &recordingAuditor{}
	c := testClient(srv.URL, auditor, 0)

	_, ok := c.Fetch(context.Background(), PathStorms, dateWindow())
	assert.False(t, ok)
	require.Len(t, auditor.entries, 1)
}

func TestClient_Fetch_NetworkErrorRedactsKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	baseURL := srv.URL
	srv.Close()

	auditor := &recordingAuditor{}
	c := testClient(baseURL, auditor, 0)

	_, ok := c.Fetch(context.Background(), PathFlares, dateWindow())
	assert.False(t, ok)

	require.Len(t, auditor.entries, 1)
	assert.Equal(t, audit.StatusNetworkError, auditor.entries[0].status)
	assert.Equal(t, baseURL+"/FLR", auditor.entries[0].endpoint)
	assert.NotEmpty(t, auditor.entries[0].content)
	assert.NotContains(t, auditor.entries[0].content, testAPIKey)
	assert.InDelta(t, 1, testutil.ToFloat64(c.metrics.FetchRequests.WithLabelValues("FLR", "network_error")), 0)
}

func TestClient_Fetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	auditor := &recordingAuditor{}
	c := testClient(srv.URL, auditor, 0)
	c.httpClient.HTTPClient.Timeout = 20 * time.Millisecond

	_, ok := c.Fetch(context.Background(), PathFlares, dateWindow())
	assert.False(t, ok)
	require.Len(t, auditor.entries, 1)
	assert.Equal(t, audit.StatusNetworkError, auditor.entries[0].status)
}

func TestClient_Fetch_RetriesServerErrors(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	auditor := &recordingAuditor{}
	c := testClient(srv.URL, auditor, 2)

	data, ok := c.Fetch(context.Background(), PathStorms, dateWindow())
	require.True(t, ok)
	assert.JSONEq(t, "[]", string(data))
	assert.Equal(t, 2, attempts)

	// Only the final outcome is audited.
	require.Len(t, auditor.entries, 1)
	assert.Equal(t, http.StatusOK, auditor.entries[0].status)
}

func TestClient_Fetch_RetriesExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	auditor := &recordingAuditor{}
	c := testClient(srv.URL, auditor, 1)

	_, ok := c.Fetch(context.Background(), PathFlares, dateWindow())
	assert.False(t, ok)
	require.Len(t, auditor.entries, 1)
	assert.Equal(t, http.StatusBadGateway, auditor.entries[0].status)
}

func TestClient_Fetch_NoAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("api_key"))
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	c := NewClient("", srv.URL+"/", time.Second, 0, &recordingAuditor{},
		slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())

	_, ok := c.Fetch(context.Background(), PathFlares, nil)
	assert.True(t, ok)
}
