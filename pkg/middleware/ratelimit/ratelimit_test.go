package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterAllowsBurstThenBlocks(t *testing.T) {
	l := New(1, 2)
	fixed := time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"))

	fixed = fixed.Add(time.Second)
	assert.True(t, l.Allow("10.0.0.1"))
}

func TestLimiterEvictsIdleBuckets(t *testing.T) {
	l := New(1, 1)
	fixed := time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	require.True(t, l.Allow("a"))
	fixed = fixed.Add(idleTTL + time.Minute)
	require.True(t, l.Allow("b"))
	_, exists := l.buckets["a"]
	assert.False(t, exists)
}

func TestMiddlewareReturns429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware(New(0.001, 1)))
	r.POST("/permits", func(c *gin.Context) { c.Status(http.StatusCreated) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/permits", nil))
	require.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/permits", nil))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")
}
