// internal/server/server_test.go
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notify-dispatch/internal/common/config"
	"notify-dispatch/internal/common/logger"
	"notify-dispatch/internal/delivery"
	"notify-dispatch/internal/digest"
	"notify-dispatch/internal/dispatch"
	"notify-dispatch/internal/preference"
	"notify-dispatch/internal/ratelimit"
	"notify-dispatch/internal/template"
)

// ==========================
// Test Helper Functions
// ==========================

type recordingDeliverer struct {
	mu       sync.Mutex
	messages []delivery.Message
}

func (d *recordingDeliverer) Deliver(_ context.Context, msg delivery.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, msg)
	return nil
}

func (d *recordingDeliverer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.messages)
}

func createTestServer(t *testing.T) (*httptest.Server, *recordingDeliverer) {
	deliverer := &recordingDeliverer{}
	engine := dispatch.New(config.DispatchConfig{
		RateLimit:          config.RateLimitConfig{Ceiling: 20, Window: time.Minute},
		SuppressionEnabled: true,
		DefaultFrom:        "notifications@example.com",
	}, dispatch.Dependencies{
		Logger:      logger.NewTestLogger(t),
		Templates:   template.NewStore(),
		Preferences: preference.NewMemoryStore(),
		Limiter:     ratelimit.NewFixedWindow(20, time.Minute),
		Digests:     digest.NewMemoryQueue(),
		Deliverer:   deliverer,
	})

	srv := httptest.NewServer(New(engine, logger.NewTestLogger(t), nil).Handler())
	t.Cleanup(srv.Close)
	return srv, deliverer
}

func postJSON(t *testing.T, url string, payload interface{}) (*http.Response, dispatch.Result) {
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var result dispatch.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return resp, result
}

// ==========================
// Endpoint Tests
// ==========================

func TestServer_Send(t *testing.T) {
	srv, deliverer := createTestServer(t)

	resp, result := postJSON(t, srv.URL+"/send", map[string]interface{}{
		"to":      "user@example.com",
		"subject": "S",
		"body":    "B",
	})

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, result.Success, "error: %s", result.Error)
	assert.Equal(t, "user@example.com", result.To)
	assert.NotEmpty(t, result.MessageID)
	assert.Equal(t, 1, deliverer.count())
}

func TestServer_Send_EngineFailureStillReturns200(t *testing.T) {
	srv, deliverer := createTestServer(t)

	resp, result := postJSON(t, srv.URL+"/send", map[string]interface{}{
		"to":      "not-an-address",
		"subject": "S",
		"body":    "B",
	})

	// Policy failures are reported in the uniform result body, not as
	// transport errors.
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "Invalid email address format")
	assert.Equal(t, 0, deliverer.count())
}

func TestServer_Send_SchemaRejections(t *testing.T) {
	srv, _ := createTestServer(t)

	tests := []struct {
		name    string
		payload interface{}
	}{
		{
			name:    "missing required to",
			payload: map[string]interface{}{"subject": "S", "body": "B"},
		},
		{
			name:    "unknown field",
			payload: map[string]interface{}{"to": "user@example.com", "subject": "S", "body": "B", "priority": "high"},
		},
		{
			name:    "wrong type",
			payload: map[string]interface{}{"to": 42, "subject": "S", "body": "B"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, result := postJSON(t, srv.URL+"/send", tt.payload)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.False(t, result.Success)
			assert.NotEmpty(t, result.Error)
		})
	}
}

func TestServer_Send_MalformedJSON(t *testing.T) {
	srv, _ := createTestServer(t)

	resp, err := http.Post(srv.URL+"/send", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_DigestQueueAndSend(t *testing.T) {
	srv, deliverer := createTestServer(t)

	for i := 0; i < 3; i++ {
		resp, result := postJSON(t, srv.URL+"/digest/queue", map[string]interface{}{
			"to":      "user@example.com",
			"subject": "S",
			"body":    "an update",
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		require.True(t, result.Success)
		assert.Equal(t, i+1, result.QueuedCount)
	}
	assert.Equal(t, 0, deliverer.count())

	resp, result := postJSON(t, srv.URL+"/digest/send", map[string]interface{}{})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, result.Success)
	assert.Equal(t, 1, result.DigestsSent)
	require.Len(t, result.Digests, 1)
	assert.Equal(t, 3, result.Digests[0].Count)
	assert.Equal(t, 1, deliverer.count())
}

func TestServer_PreferenceEndpoints(t *testing.T) {
	srv, _ := createTestServer(t)

	resp, result := postJSON(t, srv.URL+"/preferences/update", map[string]interface{}{
		"email":      "User@Example.com",
		"suppressed": true,
		"frequency":  "daily",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, result.Success)
	require.NotNil(t, result.Preference)
	assert.Equal(t, "user@example.com", result.Preference.Email)
	assert.True(t, result.Preference.Suppressed)

	resp, result = postJSON(t, srv.URL+"/preferences/check", map[string]interface{}{
		"email": "user@example.com",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, result.Success)
	require.NotNil(t, result.Preference)
	assert.True(t, result.Preference.Suppressed)
}

func TestServer_PreferenceUpdate_InvalidFrequencyRejectedBySchema(t *testing.T) {
	srv, _ := createTestServer(t)

	resp, result := postJSON(t, srv.URL+"/preferences/update", map[string]interface{}{
		"email":     "user@example.com",
		"frequency": "fortnightly",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, result.Success)
}

func TestServer_TemplateValidate(t *testing.T) {
	srv, _ := createTestServer(t)

	resp, result := postJSON(t, srv.URL+"/template/validate", map[string]interface{}{
		"template": "Hello {{name}}",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, result.Success)
	require.NotNil(t, result.Valid)
	assert.True(t, *result.Valid)

	resp, result = postJSON(t, srv.URL+"/template/validate", map[string]interface{}{
		"template": "{{#if a}}never closed",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, result.Success)
	require.NotNil(t, result.Valid)
	assert.False(t, *result.Valid)
}

func TestServer_Health(t *testing.T) {
	srv, _ := createTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv, _ := createTestServer(t)

	resp, err := http.Get(srv.URL + "/send")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
