package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/contenttype/internal/content"
)

func TestRenderEngineError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", fmt.Errorf("%w: content 7", content.ErrNotFound), http.StatusNotFound, "not_found"},
		{"duplicate", fmt.Errorf("%w: slug", content.ErrDuplicate), http.StatusConflict, "conflict"},
		{"validation", &content.ValidationError{Errors: []content.FieldError{{Field: "title", Message: "is required"}}}, http.StatusUnprocessableEntity, "validation_error"},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RenderEngineError(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body["code"])
			assert.NotContains(t, rec.Body.String(), "disk on fire")
		})
	}
}

func TestRenderValidationError_Fields(t *testing.T) {
	rec := httptest.NewRecorder()
	RenderValidationError(rec, &content.ValidationError{Errors: []content.FieldError{
		{Field: "title", Message: "is required"},
		{Field: "status", Message: "is invalid"},
		{Field: "title", Message: "is too long"},
	}})

	var body ValidationErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"is required", "is too long"}, body.Fields["title"])
	assert.Equal(t, []string{"is invalid"}, body.Fields["status"])
}

func TestRenderUnauthorized_DefaultMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	RenderUnauthorized(rec, "")

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Authentication required", body.Message)
	assert.Equal(t, "unauthorized", body.Code)
}
