package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", strings.Repeat("x", 500))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Len(t, seen, 36)
}

func TestMaxBodyBytes(t *testing.T) {
	handler := MaxBodyBytes(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("0123456789")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("0123")))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestAccessLog_RecordsUserAndStatus(t *testing.T) {
	logger, hook := test.NewNullLogger()
	validator := new(MockAuthValidator)
	validator.On("ValidateAPIKey", mock.Anything, testToken).Return("user-42", nil)

	inner := APIKeyAuth(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))
	handler := RequestID(AccessLog(logger)(inner))

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, "user-42", entry.Data["user_id"])
	assert.Equal(t, http.StatusTeapot, entry.Data["status"])
	assert.Equal(t, 15, entry.Data["bytes"])
	assert.Equal(t, "/api/sessions", entry.Data["path"])
	assert.NotEmpty(t, entry.Data["request_id"])
}

func TestUserRateLimiter(t *testing.T) {
	limiter := NewUserRateLimiter(2, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	ok, _ := limiter.Reserve("alice")
	assert.True(t, ok)
	now = now.Add(10 * time.Second)
	ok, _ = limiter.Reserve("alice")
	assert.True(t, ok)

	ok, wait := limiter.Reserve("alice")
	assert.False(t, ok)
	assert.Equal(t, 50*time.Second, wait)

	ok, _ = limiter.Reserve("bob")
	assert.True(t, ok, "limits are per user")

	now = now.Add(50 * time.Second)
	ok, _ = limiter.Reserve("alice")
	assert.True(t, ok, "first request left the window")

	ok, wait = limiter.Reserve("alice")
	assert.False(t, ok)
	assert.Equal(t, 10*time.Second, wait)
}

func TestUserRateLimiter_SlidingMinute(t *testing.T) {
	limiter := NewUserRateLimiter(5, time.Minute)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	limiter.now = func() time.Time { return now }

	for i := range 5 {
		ok, _ := limiter.Reserve("alice")
		require.True(t, ok, "message %d", i+1)
	}

	for _, offset := range []time.Duration{13 * time.Second, 25 * time.Second, 59 * time.Second} {
		now = start.Add(offset)
		ok, wait := limiter.Reserve("alice")
		assert.False(t, ok, "sixth message %s after the first", offset)
		assert.Equal(t, time.Minute-offset, wait)
	}

	now = start.Add(time.Minute)
	ok, _ := limiter.Reserve("alice")
	assert.True(t, ok)
}

func TestRateLimit_Returns429(t *testing.T) {
	limiter := NewUserRateLimiter(1, time.Minute)
	handler := RateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil).WithContext(WithUserID(t.Context(), "alice"))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")
}

func TestSentryMiddleware_PassesThrough(t *testing.T) {
	handler := SentryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotNil(t, sentry.GetHubFromContext(r.Context()))
		w.WriteHeader(http.StatusAccepted)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestHTTPStatusToSpanStatus(t *testing.T) {
	assert.Equal(t, sentry.SpanStatusOK, httpStatusToSpanStatus(200))
	assert.Equal(t, sentry.SpanStatusResourceExhausted, httpStatusToSpanStatus(429))
	assert.Equal(t, sentry.SpanStatusUnavailable, httpStatusToSpanStatus(502))
	assert.Equal(t, sentry.SpanStatusInternalError, httpStatusToSpanStatus(500))
}
