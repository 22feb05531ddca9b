package middleware

import (
	"net/http"
	"testing"
	"time"

	"audio-library/backend/pkg/errors"
	"audio-library/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadLimiterRejectsEleventhRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	clock := newFakeClock()

	guard := NewGuard(NewMemoryWindowStore(), logger.Discard(), GuardOptions{
		Threshold: 100,
		Window:    time.Minute,
		Now:       clock.Now,
	})
	t.Cleanup(guard.Close)
	limiter := NewRateLimiter(logger.Discard(), RateLimiterOptions{
		Route:  "upload",
		Limit:  10,
		Window: time.Minute,
		Now:    clock.Now,
	})
	t.Cleanup(limiter.Close)

	r := gin.New()
	r.Use(errors.ErrorHandler(), guard.Middleware())
	r.POST("/api/audio/upload", limiter.Middleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/api/audio/languages", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	for i := 1; i <= 10; i++ {
		w := doRequest(r, http.MethodPost, "/api/audio/upload", "10.1.0.1:1", nil)
		require.Equal(t, http.StatusOK, w.Code, "upload %d", i)
	}

	w := doRequest(r, http.MethodPost, "/api/audio/upload", "10.1.0.1:1", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"rate limit exceeded","detail":"10 per 1m0s"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))

	// Other routes and other clients are not affected by the upload bucket
	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodGet, "/api/audio/languages", "10.1.0.1:1", nil).Code)
	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/api/audio/upload", "10.1.0.2:1", nil).Code)

	clock.Advance(59 * time.Second)
	w = doRequest(r, http.MethodPost, "/api/audio/upload", "10.1.0.1:1", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	// The whole burst leaves the window together
	clock.Advance(time.Second)
	for i := 1; i <= 10; i++ {
		assert.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/api/audio/upload", "10.1.0.1:1", nil).Code, "upload %d", i)
	}
	assert.Equal(t, http.StatusTooManyRequests, doRequest(r, http.MethodPost, "/api/audio/upload", "10.1.0.1:1", nil).Code)
}

func TestUploadLimiterCountsSpacedRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	clock := newFakeClock()

	limiter := NewRateLimiter(logger.Discard(), RateLimiterOptions{
		Route:  "upload",
		Limit:  10,
		Window: time.Minute,
		Now:    clock.Now,
	})
	t.Cleanup(limiter.Close)

	r := gin.New()
	r.Use(errors.ErrorHandler())
	r.POST("/api/audio/upload", limiter.Middleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	// t=0s, 6s, ... 54s
	for i := 1; i <= 10; i++ {
		w := doRequest(r, http.MethodPost, "/api/audio/upload", "10.1.0.3:1", nil)
		require.Equal(t, http.StatusOK, w.Code, "upload %d", i)
		if i < 10 {
			clock.Advance(6 * time.Second)
		}
	}

	// t=59s: ten uploads are still inside the last minute
	clock.Advance(5 * time.Second)
	w := doRequest(r, http.MethodPost, "/api/audio/upload", "10.1.0.3:1", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	// t=60s: the first upload has aged out, the second has not
	clock.Advance(time.Second)
	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/api/audio/upload", "10.1.0.3:1", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(r, http.MethodPost, "/api/audio/upload", "10.1.0.3:1", nil).Code)

	// t=66s: the upload from t=6s has aged out
	clock.Advance(6 * time.Second)
	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodPost, "/api/audio/upload", "10.1.0.3:1", nil).Code)
}

func TestRateLimiterDefaults(t *testing.T) {
	limiter := NewRateLimiter(logger.Discard(), RateLimiterOptions{})
	defer limiter.Close()

	assert.Equal(t, 60, limiter.options.Limit)
	assert.Equal(t, time.Minute, limiter.options.Window)
	assert.NotNil(t, limiter.options.KeyFunc)
}
