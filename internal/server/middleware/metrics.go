package middleware

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/giantswarm/mcp-k8s-guard/internal/instrumentation"
)

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wroteHeader {
		r.status = code
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Flush keeps SSE and streamable-http responses streaming.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// HTTPMetrics records http_requests_total and the request duration
// histogram for every request. Paths are normalized to bound label
// cardinality. A nil or disabled provider makes it a pass-through.
func HTTPMetrics(provider *instrumentation.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if provider == nil || !provider.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := newStatusRecorder(w)

			next.ServeHTTP(rec, r)

			provider.Metrics().RecordHTTPRequest(r.Context(), r.Method, normalizePath(r.URL.Path), rec.status, time.Since(start))
		})
	}
}

var (
	uuidPattern      = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	numericIDPattern = regexp.MustCompile(`/\d+(/|$)`)
	// Opaque trailing segment under an MCP endpoint, e.g. /mcp/abc123xyz.
	sessionSegment = regexp.MustCompile(`^[a-zA-Z0-9_-]{8,64}$`)
)

// knownPrefixes are the endpoints whose trailing segment is a session ID.
var knownPrefixes = []string{"/mcp/", "/message/", "/sse/"}

// normalizePath replaces session IDs, UUIDs and numeric IDs with
// placeholders.
func normalizePath(path string) string {
	for _, prefix := range knownPrefixes {
		if rest, ok := strings.CutPrefix(path, prefix); ok && sessionSegment.MatchString(rest) {
			return prefix + ":session"
		}
	}

	path = uuidPattern.ReplaceAllString(path, ":uuid")
	path = numericIDPattern.ReplaceAllString(path, "/:id$1")
	return path
}
