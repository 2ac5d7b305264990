package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

// ETag buffers successful GET responses, tags them with a strong ETag and
// answers a matching If-None-Match with 304 Not Modified
func ETag() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}

			buf := &bufferedWriter{header: make(http.Header), statusCode: http.StatusOK}
			next.ServeHTTP(buf, r)

			for k, v := range buf.header {
				w.Header()[k] = v
			}
			if buf.statusCode != http.StatusOK {
				w.WriteHeader(buf.statusCode)
				w.Write(buf.body.Bytes())
				return
			}

			etag := generateETag(buf.body.Bytes())
			w.Header().Set("ETag", etag)
			if etagMatches(r.Header.Get("If-None-Match"), etag) {
				w.Header().Del("Content-Length")
				w.WriteHeader(http.StatusNotModified)
				return
			}
			w.WriteHeader(http.StatusOK)
			w.Write(buf.body.Bytes())
		})
	}
}

// generateETag hashes body into a quoted 128-bit tag
func generateETag(body []byte) string {
	sum := sha256.Sum256(body)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

// etagMatches applies the weak comparison of If-None-Match
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

type bufferedWriter struct {
	header     http.Header
	body       bytes.Buffer
	statusCode int
	wrote      bool
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) WriteHeader(statusCode int) {
	if !b.wrote {
		b.statusCode = statusCode
		b.wrote = true
	}
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	b.wrote = true
	return b.body.Write(p)
}
