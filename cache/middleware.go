// Package cache adds conditional GET support to JSON read endpoints.
package cache

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"
)

// responseWriter holds the body back so the ETag can be computed before
// anything reaches the client.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	return w.body.Write(b)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	return w.body.WriteString(s)
}

// WriteHeaderNow is deferred until the middleware decides on the status.
func (w *responseWriter) WriteHeaderNow() {}

// generateHash returns the strong validator for body.
func generateHash(body []byte) string {
	return fmt.Sprintf(`"%016x"`, xxhash.Sum64(body))
}

// ETagMiddleware tags successful GET responses with a content hash and answers
// 304 Not Modified when the client already holds that version. Other methods
// pass through untouched.
func ETagMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		original := c.Writer
		writer := &responseWriter{
			ResponseWriter: original,
			body:           bytes.NewBuffer(nil),
		}
		c.Writer = writer
		c.Next()
		c.Writer = original

		if original.Status() != http.StatusOK {
			original.WriteHeaderNow()
			_, _ = original.Write(writer.body.Bytes())
			return
		}

		etag := generateHash(writer.body.Bytes())
		original.Header().Set("ETag", etag)
		if matchesETag(c.GetHeader("If-None-Match"), etag) {
			original.WriteHeader(http.StatusNotModified)
			original.WriteHeaderNow()
			return
		}
		_, _ = original.Write(writer.body.Bytes())
	}
}

func matchesETag(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}
