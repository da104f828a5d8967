package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/amplifier-run/amplifier/events"
	"github.com/amplifier-run/amplifier/llm"
)

// retryConfig holds the three knobs §4.8 names: "Max attempts = max_retries
// + 1", "Delay = Retry-After … otherwise exponential
// min_retry_delay·2^attempt … capped/fail-fast at max_retry_delay".
//
// Grounded on the teacher's pkg/httpclient.Client (maxRetries, baseDelay,
// maxDelay, calculateDelay) — this is the same backoff shape, narrowed to
// the spec's explicit Retry-After fail-fast rule the teacher's client
// doesn't have (the teacher always clamps into maxDelay instead of aborting).
type retryConfig struct {
	MaxRetries    int
	MinRetryDelay time.Duration
	MaxRetryDelay time.Duration
	Jitter        bool
}

var defaultRetryConfig = retryConfig{
	MaxRetries:    3,
	MinRetryDelay: 2 * time.Second,
	MaxRetryDelay: 60 * time.Second,
	Jitter:        true,
}

// failFastError marks a retryable kernel error whose Retry-After exceeded
// max_retry_delay: the caller must raise it without sleeping.
type failFastError struct{ err error }

func (e *failFastError) Error() string { return e.err.Error() }
func (e *failFastError) Unwrap() error { return e.err }

// doWithRetry executes buildReq/http round trips under the retry policy,
// translating non-2xx responses and transport errors into the shared *llm.Error
// taxonomy and emitting provider:retry on every scheduled sleep.
func (p *Provider) doWithRetry(ctx context.Context, buildReq func() (*http.Request, error)) (*http.Response, error) {
	cfg := p.retry
	var lastErr error

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req, err := buildReq()
		if err != nil {
			return nil, err
		}

		resp, httpErr := p.httpClient.Do(req.WithContext(ctx))
		var kerr error
		if httpErr != nil {
			kerr = classifyTransportError(p.name, httpErr)
		} else if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		} else {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			kerr = translateHTTPError(p.name, resp.StatusCode, resp.Header, body)
		}

		if !llm.IsRetryable(kerr) {
			return nil, kerr
		}
		lastErr = kerr

		if attempt >= cfg.MaxRetries {
			return nil, lastErr
		}

		delay, failFast := calculateDelay(cfg, kerr, attempt)
		if failFast {
			return nil, &failFastError{err: lastErr}
		}

		p.emitter.Emit(events.ProviderRetry, map[string]any{
			"provider":   p.name,
			"attempt":    attempt + 1,
			"delay":      delay.String(),
			"error_type": errorKind(kerr),
		})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

// calculateDelay implements §4.8's delay rule exactly.
func calculateDelay(cfg retryConfig, err error, attempt int) (delay time.Duration, failFast bool) {
	if rle, ok := err.(*llm.RateLimitError); ok && rle.RetryAfter > 0 {
		if rle.RetryAfter > cfg.MaxRetryDelay {
			return 0, true
		}
		return rle.RetryAfter, false
	}

	delay = time.Duration(math.Pow(2, float64(attempt))) * cfg.MinRetryDelay
	if cfg.Jitter {
		delay += time.Duration(rand.Float64() * float64(delay) * 0.1)
	}
	if delay > cfg.MaxRetryDelay {
		delay = cfg.MaxRetryDelay
	}
	return delay, false
}

func errorKind(err error) string {
	switch err.(type) {
	case *llm.RateLimitError:
		return "rate_limit"
	case *llm.AuthenticationError:
		return "authentication"
	case *llm.ContextLengthError:
		return "context_length"
	case *llm.ContentFilterError:
		return "content_filter"
	case *llm.InvalidRequestError:
		return "invalid_request"
	case *llm.ProviderUnavailableError:
		return "provider_unavailable"
	case *llm.LLMTimeoutError:
		return "timeout"
	default:
		return "unknown"
	}
}

// classifyTransportError handles errors from the round tripper itself
// (dial failure, context deadline), per §4.8's "Timeout (client or server)"
// and "Any other exception" rows.
func classifyTransportError(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") || strings.Contains(err.Error(), "deadline exceeded") {
		return llm.NewLLMTimeoutError(provider, "request timed out", err)
	}
	return llm.NewError(provider, "transport error", err)
}

// translateHTTPError implements §4.8's wire-condition → kernel-error table.
func translateHTTPError(provider string, statusCode int, header http.Header, body []byte) error {
	message := extractErrorMessage(body)

	switch {
	case statusCode == http.StatusTooManyRequests:
		return llm.NewRateLimitError(provider, statusCode, parseRetryAfter(header), errFromMessage(message))

	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return llm.NewAuthenticationError(provider, message, errFromMessage(message))

	case statusCode == http.StatusBadRequest:
		lower := strings.ToLower(message)
		switch {
		case containsAny(lower, "context length", "too many tokens", "prompt is too long"):
			return llm.NewContextLengthError(provider, message, errFromMessage(message))
		case containsAny(lower, "safety", "blocked", "content filter"):
			return llm.NewContentFilterError(provider, message, errFromMessage(message))
		default:
			return llm.NewInvalidRequestError(provider, message, errFromMessage(message))
		}

	case statusCode == http.StatusServiceUnavailable || statusCode >= 500:
		return llm.NewProviderUnavailableError(provider, message, errFromMessage(message))

	case statusCode == http.StatusRequestTimeout:
		return llm.NewLLMTimeoutError(provider, message, errFromMessage(message))

	default:
		return llm.NewError(provider, message, errFromMessage(message))
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func errFromMessage(message string) error {
	return &wireErrorCause{message: message}
}

type wireErrorCause struct{ message string }

func (e *wireErrorCause) Error() string { return e.message }

func extractErrorMessage(body []byte) string {
	var parsed struct {
		Error wireError `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	s := string(body)
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

func parseRetryAfter(header http.Header) time.Duration {
	v := header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(v); err == nil {
		return time.Until(when)
	}
	return 0
}
