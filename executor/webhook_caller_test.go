package executor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"docflow/model"
	"github.com/stretchr/testify/require"
)

func TestWebhookCallSuccess(t *testing.T) {
	var gotPath, gotHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeader = r.Header.Get("X-Token")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"accepted":true}`))
	}))
	defer server.Close()

	caller := NewHttpWebhookCaller()
	output, err := caller.Call(context.Background(), server.URL+"/notify", "", map[string]string{"X-Token": "s3cret"}, map[string]any{"id": 7})
	require.NoError(t, err)
	require.Equal(t, "/notify", gotPath)
	require.Equal(t, "s3cret", gotHeader)
	require.Equal(t, http.StatusOK, output["status"])
	require.Equal(t, map[string]any{"accepted": true}, output["response"])
}

func TestWebhookCallClassification(t *testing.T) {
	status := http.StatusInternalServerError
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer server.Close()

	caller := NewHttpWebhookCaller()

	_, err := caller.Call(context.Background(), server.URL, "POST", nil, nil)
	require.Error(t, err)
	require.True(t, model.IsRetryable(err), "5xx is retryable")

	status = http.StatusTooManyRequests
	_, err = caller.Call(context.Background(), server.URL, "POST", nil, nil)
	require.Error(t, err)
	require.True(t, model.IsRetryable(err), "429 is retryable")

	status = http.StatusNotFound
	_, err = caller.Call(context.Background(), server.URL, "POST", nil, nil)
	require.Error(t, err)
	require.False(t, model.IsRetryable(err), "other 4xx is fatal")

	// unreachable endpoint
	server.Close()
	_, err = caller.Call(context.Background(), server.URL, "POST", nil, nil)
	require.Error(t, err)
	require.True(t, model.IsRetryable(err), "network error is retryable")
}

func TestWebhookCircuitOpens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	caller := NewHttpWebhookCaller()
	for i := 0; i < 6; i++ {
		_, err := caller.Call(context.Background(), server.URL, "POST", nil, nil)
		require.Error(t, err)
	}

	// breaker tripped after six consecutive failures
	_, err := caller.Call(context.Background(), server.URL, "POST", nil, nil)
	require.Error(t, err)
	require.True(t, model.IsRetryable(err))
	require.Contains(t, err.Error(), "circuit open")
}
