package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wire assembles the chain exactly as main does, innermost first.
func wire(inner http.Handler, log *zerolog.Logger) http.Handler {
	h := inner
	h = Timeout(5 * time.Second)(h)
	h = CORS([]string{"*"})(h)
	h = Recovery(log)(h)
	h = Logger(log)(h)
	h = RequestID(h)
	return h
}

func TestChainLogsRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	var seenInHandler string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenInHandler = RequestIDFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	wire(inner, &log).ServeHTTP(rec, req)

	headerID := rec.Header().Get("X-Request-ID")
	require.NotEmpty(t, headerID)
	assert.Equal(t, headerID, seenInHandler)

	var event struct {
		RequestID string `json:"request_id"`
		Status    int    `json:"status"`
		Path      string `json:"path"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, headerID, event.RequestID)
	assert.Equal(t, http.StatusOK, event.Status)
	assert.Equal(t, "/x", event.Path)
}

func TestRequestIDReusesCallerHeader(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "caller-supplied")
	rec := httptest.NewRecorder()
	RequestID(inner).ServeHTTP(rec, req)

	assert.Equal(t, "caller-supplied", rec.Header().Get("X-Request-ID"))
}

func TestRecoveryTurnsPanicInto500(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	wire(inner, &log).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
