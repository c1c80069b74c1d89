package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	requestStartKey = "request_started_at"
	cacheHitKey     = "cache_hit"
)

// ResponseMeta stamps the request start so handlers can report processing time.
func ResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestStartKey, time.Now())
		c.Next()
	}
}

// SetCacheHit records whether the response was served from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	c.Set(cacheHitKey, hit)
}

// Meta builds the envelope meta block for the current request.
func Meta(c *gin.Context) map[string]interface{} {
	meta := map[string]interface{}{}
	if c == nil {
		return meta
	}
	if v, ok := c.Get(cacheHitKey); ok {
		meta[cacheHitKey] = v
	}
	if v, ok := c.Get(requestStartKey); ok {
		if start, ok := v.(time.Time); ok {
			meta["processing_time_ms"] = time.Since(start).Milliseconds()
		}
	}
	return meta
}
