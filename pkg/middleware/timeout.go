package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Timeout returns middleware that bounds request handling. When the
// handler misses the deadline the client receives a 504 and any late
// writes from the still-running handler are dropped.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			gw := &gatedWriter{w: w}
			done := make(chan struct{})
			go func() {
				defer close(done)
				next.ServeHTTP(gw, r.WithContext(ctx))
			}()

			select {
			case <-done:
			case <-ctx.Done():
				if gw.seal() {
					slog.Warn("request timed out",
						"method", r.Method,
						"path", r.URL.Path,
						"timeout", timeout,
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusGatewayTimeout)
					w.Write([]byte(`{"error":"request timeout"}`))
				}
			}
		})
	}
}

// gatedWriter serialises handler writes and drops them once the timeout
// reply has claimed the connection.
type gatedWriter struct {
	w      http.ResponseWriter
	mu     sync.Mutex
	wrote  bool
	sealed bool
}

func (g *gatedWriter) Header() http.Header {
	return g.w.Header()
}

func (g *gatedWriter) WriteHeader(code int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sealed {
		return
	}
	g.wrote = true
	g.w.WriteHeader(code)
}

func (g *gatedWriter) Write(b []byte) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sealed {
		return len(b), nil
	}
	g.wrote = true
	return g.w.Write(b)
}

// seal blocks further handler writes and reports whether the timeout
// reply may be sent, which is only safe while nothing has gone out.
func (g *gatedWriter) seal() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sealed = true
	return !g.wrote
}
