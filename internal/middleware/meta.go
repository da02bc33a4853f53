package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey = "response_meta"
	cacheHitKey     = "cache_hit"
	elapsedKey      = "processing_time_ms"
)

type requestMeta struct {
	start  time.Time
	values map[string]interface{}
}

// WithResponseMeta starts collecting metadata echoed in the response envelope.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseMetaKey, &requestMeta{start: time.Now(), values: map[string]interface{}{}})
		c.Next()
	}
}

// SetMeta attaches one metadata value to the current response.
func SetMeta(c *gin.Context, key string, value interface{}) {
	if m := currentMeta(c); m != nil {
		m.values[key] = value
	}
}

// SetCacheHit records whether the response was served from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	SetMeta(c, cacheHitKey, hit)
}

// ExtractMeta returns a copy of the collected metadata with the elapsed
// time so far, or nil when WithResponseMeta is not installed.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	m := currentMeta(c)
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m.values)+1)
	for k, v := range m.values {
		out[k] = v
	}
	out[elapsedKey] = time.Since(m.start).Milliseconds()
	return out
}

func currentMeta(c *gin.Context) *requestMeta {
	if c == nil {
		return nil
	}
	v, ok := c.Get(responseMetaKey)
	if !ok {
		return nil
	}
	m, _ := v.(*requestMeta)
	return m
}
