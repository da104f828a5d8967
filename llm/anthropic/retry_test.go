package anthropic

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/amplifier-run/amplifier/llm"
)

func TestTranslateHTTPErrorMapsEachWireCondition(t *testing.T) {
	cases := []struct {
		name       string
		statusCode int
		body       string
		wantKind   string
		retryable  bool
	}{
		{"rate_limit", 429, `{}`, "rate_limit", true},
		{"auth_401", 401, `{}`, "authentication", false},
		{"auth_403", 403, `{}`, "authentication", false},
		{"context_length", 400, `{"error":{"message":"prompt is too long for this model"}}`, "context_length", false},
		{"content_filter", 400, `{"error":{"message":"blocked by safety system"}}`, "content_filter", false},
		{"invalid_request", 400, `{"error":{"message":"missing required field"}}`, "invalid_request", false},
		{"server_error", 500, `{}`, "provider_unavailable", true},
		{"service_unavailable", 503, `{}`, "provider_unavailable", true},
		{"request_timeout", 408, `{}`, "timeout", true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := translateHTTPError("anthropic", c.statusCode, http.Header{}, []byte(c.body))
			require.Equal(t, c.wantKind, errorKind(err))
			require.Equal(t, c.retryable, llm.IsRetryable(err))
		})
	}
}

func TestCalculateDelayUsesRetryAfterWhenWithinBudget(t *testing.T) {
	cfg := retryConfig{MaxRetries: 3, MinRetryDelay: time.Second, MaxRetryDelay: 30 * time.Second}
	err := llm.NewRateLimitError("anthropic", 429, 10*time.Second, nil)
	delay, failFast := calculateDelay(cfg, err, 0)
	require.False(t, failFast)
	require.Equal(t, 10*time.Second, delay)
}

func TestCalculateDelayFailsFastWhenRetryAfterExceedsMax(t *testing.T) {
	cfg := retryConfig{MaxRetries: 3, MinRetryDelay: time.Second, MaxRetryDelay: 30 * time.Second}
	err := llm.NewRateLimitError("anthropic", 429, 120*time.Second, nil)
	_, failFast := calculateDelay(cfg, err, 0)
	require.True(t, failFast)
}

func TestCalculateDelayExponentialWithoutRetryAfter(t *testing.T) {
	cfg := retryConfig{MaxRetries: 3, MinRetryDelay: time.Second, MaxRetryDelay: 30 * time.Second, Jitter: false}
	err := llm.NewProviderUnavailableError("anthropic", "boom", nil)

	d0, failFast := calculateDelay(cfg, err, 0)
	require.False(t, failFast)
	require.Equal(t, time.Second, d0)

	d2, _ := calculateDelay(cfg, err, 2)
	require.Equal(t, 4*time.Second, d2)
}

func TestCalculateDelayCapsAtMaxRetryDelay(t *testing.T) {
	cfg := retryConfig{MaxRetries: 10, MinRetryDelay: time.Second, MaxRetryDelay: 5 * time.Second, Jitter: false}
	err := llm.NewProviderUnavailableError("anthropic", "boom", nil)
	delay, failFast := calculateDelay(cfg, err, 6)
	require.False(t, failFast)
	require.Equal(t, 5*time.Second, delay)
}
