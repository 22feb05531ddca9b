package validator

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "audio-library/backend/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	v, err := NewOpenAPIValidator(context.Background())
	require.NoError(t, err)

	r := gin.New()
	r.Use(apperrors.ErrorHandler())
	r.Use(v.Middleware())
	echo := func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		c.String(http.StatusOK, string(body))
	}
	r.PATCH("/api/audio/:id", echo)
	r.POST("/api/audio/upload", echo)
	r.GET("/health", echo)
	return r
}

func TestPatchBodyValidation(t *testing.T) {
	r := newEngine(t)

	tests := []struct {
		name     string
		body     string
		wantCode int
		wantMsg  string
	}{
		{"valid patch", `{"duration": 2.5, "language": "ar"}`, http.StatusOK, ""},
		{"empty patch", `{}`, http.StatusOK, ""},
		{"unknown field", `{"owner": "x"}`, http.StatusBadRequest, "invalid request body"},
		{"wrong type", `{"file_size": "big"}`, http.StatusBadRequest, "invalid request body"},
		{"not json", `not json`, http.StatusBadRequest, "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPatch, "/api/audio/123", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.wantCode == http.StatusOK {
				// handler still sees the body
				assert.JSONEq(t, tt.body, w.Body.String())
				return
			}
			var body apperrors.Body
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantMsg, body.Error)
			assert.NotEmpty(t, body.Detail)
		})
	}
}

func TestUploadBodyIsNotBuffered(t *testing.T) {
	r := newEngine(t)

	req := httptest.NewRequest(http.MethodPost, "/api/audio/upload?language=en", strings.NewReader("--x--"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "--x--", w.Body.String())
}

func TestUndocumentedRoutesPass(t *testing.T) {
	r := newEngine(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDocumentHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/docs/openapi.yaml", DocumentHandler())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/docs/openapi.yaml", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Audio Library API")
	assert.Equal(t, Document(), w.Body.Bytes())
}
