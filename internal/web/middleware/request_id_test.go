package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveRequestID(t *testing.T, header string) (fromContext string, rec *httptest.ResponseRecorder) {
	t.Helper()
	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromContext = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(RequestIDHeader, header)
	}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return fromContext, rec
}

func TestRequestID_Generated(t *testing.T) {
	id, rec := serveRequestID(t, "")

	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, rec.Header().Get(RequestIDHeader))
}

func TestRequestID_FromHeader(t *testing.T) {
	id, rec := serveRequestID(t, "custom-request-id")

	assert.Equal(t, "custom-request-id", id)
	assert.Equal(t, "custom-request-id", rec.Header().Get(RequestIDHeader))
}

func TestRequestID_OversizedHeaderReplaced(t *testing.T) {
	id, _ := serveRequestID(t, strings.Repeat("x", maxRequestIDLen+1))

	_, err := uuid.Parse(id)
	assert.NoError(t, err)
}
