package export

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSendRecord(t *testing.T) {
	var (
		gotMethod string
		gotAuth   string
		gotType   string
		gotBody   map[string]interface{}
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewClient(server.URL,
		WithMethod("put"),
		WithAuthToken("secret-token"),
	)

	result, err := client.SendRecord(context.Background(), map[string]interface{}{
		"name": "Al Noor Bakery",
		"city": "Dubai",
	})
	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Equal(t, http.StatusCreated, result.StatusCode)

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, "Al Noor Bakery", gotBody["name"])
}

func TestClientSendRecordNoToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.SendRecord(context.Background(), map[string]interface{}{"name": "x"})
	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Empty(t, gotAuth)
}

func TestClientSendRecordRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"error":"missing required field"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.SendRecord(context.Background(), map[string]interface{}{"name": "x"})
	require.NoError(t, err)
	assert.False(t, result.Success())
	assert.Equal(t, http.StatusUnprocessableEntity, result.StatusCode)
	assert.Contains(t, result.Body, "missing required field")
}

func TestClientSendRecordTruncatesReply(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, strings.Repeat("x", 4096))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.SendRecord(context.Background(), map[string]interface{}{"name": "x"})
	require.NoError(t, err)
	assert.False(t, result.Success())
	assert.LessOrEqual(t, len(result.Body), maxResponseBody)
}

func TestClientSendRecordTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(server.URL)
	result, err := client.SendRecord(context.Background(), map[string]interface{}{"name": "x"})
	require.Error(t, err)
	assert.Nil(t, result)
}

func TestClientRateLimitSpacesRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, WithRateLimitDelay(0.05))

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.SendRecord(context.Background(), map[string]interface{}{"n": i})
		require.NoError(t, err)
	}
	// First request is free; the next two wait one interval each.
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestTestEndpoint(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path == "/denied" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	result := TestEndpoint(context.Background(), server.URL, "probe-token")
	assert.True(t, result.Reachable)
	assert.True(t, result.Success)
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.GreaterOrEqual(t, result.LatencyMS, int64(0))
	assert.Equal(t, "Bearer probe-token", gotAuth)

	result = TestEndpoint(context.Background(), server.URL+"/denied", "")
	assert.True(t, result.Reachable)
	assert.False(t, result.Success)
	assert.Equal(t, http.StatusUnauthorized, result.StatusCode)
}

func TestTestEndpointUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	result := TestEndpoint(context.Background(), server.URL, "")
	assert.False(t, result.Reachable)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
}
