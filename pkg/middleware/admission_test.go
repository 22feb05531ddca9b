package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"audio-library/backend/pkg/errors"
	"audio-library/backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newGuardEngine(t *testing.T, store WindowStore, opts GuardOptions) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	guard := NewGuard(store, logger.Discard(), opts)
	t.Cleanup(guard.Close)

	r := gin.New()
	r.Use(errors.ErrorHandler())
	r.Use(guard.Middleware())
	r.GET("/api/audio/languages", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.POST("/api/audio/upload", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func doRequest(r http.Handler, method, path, remoteAddr string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = remoteAddr
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGuardBlocksAfterThresholdPermanently(t *testing.T) {
	clock := newFakeClock()
	r := newGuardEngine(t, NewMemoryWindowStore(), GuardOptions{
		Threshold: 100,
		Window:    time.Minute,
		Now:       clock.Now,
	})

	for i := 1; i <= 101; i++ {
		w := doRequest(r, http.MethodGet, "/api/audio/languages", "10.0.0.1:5000", nil)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i)
	}

	w := doRequest(r, http.MethodGet, "/api/audio/languages", "10.0.0.1:5000", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"client blocked due to suspicious activity"}`, w.Body.String())

	clock.Advance(10 * time.Minute)
	w = doRequest(r, http.MethodGet, "/api/audio/languages", "10.0.0.1:5000", nil)
	assert.Equal(t, http.StatusForbidden, w.Code, "block outlives the window")

	w = doRequest(r, http.MethodGet, "/api/audio/languages", "10.0.0.2:5000", nil)
	assert.Equal(t, http.StatusOK, w.Code, "other clients are unaffected")
}

func TestGuardSlidingWindowForgetsOldRequests(t *testing.T) {
	clock := newFakeClock()
	r := newGuardEngine(t, NewMemoryWindowStore(), GuardOptions{
		Threshold: 5,
		Window:    time.Minute,
		Now:       clock.Now,
	})

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, doRequest(r, http.MethodGet, "/api/audio/languages", "10.0.0.3:1", nil).Code)
	}
	clock.Advance(61 * time.Second)
	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, doRequest(r, http.MethodGet, "/api/audio/languages", "10.0.0.3:1", nil).Code)
	}
	clock.Advance(time.Second)
	// Still 5 in window, so the sixth is admitted and triggers the block
	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodGet, "/api/audio/languages", "10.0.0.3:1", nil).Code)
	assert.Equal(t, http.StatusForbidden, doRequest(r, http.MethodGet, "/api/audio/languages", "10.0.0.3:1", nil).Code)
}

func TestGuardBlockTTLExpires(t *testing.T) {
	clock := newFakeClock()
	r := newGuardEngine(t, NewMemoryWindowStore(), GuardOptions{
		Threshold: 2,
		Window:    time.Minute,
		BlockTTL:  5 * time.Minute,
		Now:       clock.Now,
	})

	for i := 0; i < 3; i++ {
		doRequest(r, http.MethodGet, "/api/audio/languages", "10.0.0.4:1", nil)
	}
	assert.Equal(t, http.StatusForbidden, doRequest(r, http.MethodGet, "/api/audio/languages", "10.0.0.4:1", nil).Code)

	clock.Advance(6 * time.Minute)
	assert.Equal(t, http.StatusOK, doRequest(r, http.MethodGet, "/api/audio/languages", "10.0.0.4:1", nil).Code)
}

func TestGuardRejectsInjectedForwardingHeaders(t *testing.T) {
	r := newGuardEngine(t, NewMemoryWindowStore(), GuardOptions{Threshold: 100, Window: time.Minute})

	tests := []struct {
		header string
		value  string
	}{
		{"X-Forwarded-For", "<script>alert(1)</script>"},
		{"X-Real-IP", "JavaScript:alert(1)"},
		{"X-Forwarded-Host", "data:text/html;base64,AAAA"},
		{"X-Cluster-Client-IP", "1.2.3.4, <SCRIPT src=x>"},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			w := doRequest(r, http.MethodGet, "/api/audio/languages", "10.0.0.5:1", http.Header{tt.header: {tt.value}})
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"error":"invalid request"`)
		})
	}

	w := doRequest(r, http.MethodGet, "/api/audio/languages", "10.0.0.5:1", http.Header{"X-Forwarded-For": {"203.0.113.7"}})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGuardRejectsOversizedContentLength(t *testing.T) {
	r := newGuardEngine(t, NewMemoryWindowStore(), GuardOptions{
		Threshold:      100,
		Window:         time.Minute,
		MaxRequestSize: 1024,
	})

	req := httptest.NewRequest(http.MethodPost, "/api/audio/upload", nil)
	req.RemoteAddr = "10.0.0.6:1"
	req.ContentLength = 2048
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid request","detail":"request body too large"}`, w.Body.String())
}

type failingStore struct{}

func (failingStore) Record(context.Context, string, time.Time, time.Duration) (int, error) {
	return 0, assert.AnError
}

func (failingStore) IsBlocked(context.Context, string, time.Time) (bool, error) {
	return false, assert.AnError
}

func (failingStore) Block(context.Context, string, time.Time, time.Duration) error {
	return assert.AnError
}

func TestGuardFailsOpenOnStoreErrors(t *testing.T) {
	r := newGuardEngine(t, failingStore{}, GuardOptions{Threshold: 1, Window: time.Minute})

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doRequest(r, http.MethodGet, "/api/audio/languages", "10.0.0.7:1", nil).Code)
	}
}

func TestMemoryWindowStoreConcurrentRecord(t *testing.T) {
	store := NewMemoryWindowStore()
	now := time.Now()

	const workers, perWorker = 20, 10
	counts := make(chan int, workers*perWorker)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				n, err := store.Record(context.Background(), "client", now, time.Minute)
				assert.NoError(t, err)
				counts <- n
			}
		}()
	}
	wg.Wait()
	close(counts)

	seen := make(map[int]bool)
	for n := range counts {
		assert.False(t, seen[n], "count %d returned twice", n)
		seen[n] = true
	}
	assert.Len(t, seen, workers*perWorker)
}

func TestMemoryWindowStoreSweep(t *testing.T) {
	store := NewMemoryWindowStore()
	ctx := context.Background()
	now := time.Now()

	_, _ = store.Record(ctx, "a", now, time.Minute)
	_, _ = store.Record(ctx, "b", now.Add(50*time.Second), time.Minute)
	require.NoError(t, store.Block(ctx, "c", now, time.Minute))
	require.NoError(t, store.Block(ctx, "d", now, 0))
	assert.Equal(t, 2, store.Clients())

	store.Sweep(now.Add(90*time.Second), time.Minute)
	assert.Equal(t, 1, store.Clients())

	blocked, _ := store.IsBlocked(ctx, "c", now.Add(90*time.Second))
	assert.False(t, blocked)
	blocked, _ = store.IsBlocked(ctx, "d", now.Add(24*time.Hour))
	assert.True(t, blocked)
}
