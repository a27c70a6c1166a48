// cmd/api/middleware.go
// This file contains HTTP middleware used to wrap the router.
// Middleware functions intercept every request before it reaches a handler.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// recoverPanic catches any runtime panic that occurs in a downstream handler.
// Without this, a panic would cause the goroutine to terminate and the client's
// connection to be dropped silently. With this middleware the client receives a
// clean 500 Internal Server Error instead.
func (app *applicationDependencies) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				// Tell the HTTP server to close the connection after this response.
				w.Header().Set("Connection", "close")
				app.serverErrorResponse(w, r, fmt.Errorf("%s", err))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type contextKey string

const requestIDContextKey = contextKey("request_id")

// requestIDPattern bounds the inbound ids we are willing to echo and log.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]{1,64}$`)

// requestID tags every request with an id, reusing a well-formed inbound
// X-Request-ID header or generating a UUID. The id is echoed on the response.
func (app *applicationDependencies) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if !requestIDPattern.MatchString(id) {
			id = uuid.NewString()
		}

		w.Header().Set("X-Request-ID", id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDContextKey, id))
		next.ServeHTTP(w, r)
	})
}

// requestIDFrom returns the id set by requestID, or "" outside the chain.
func requestIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(requestIDContextKey).(string)
	return id
}

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rec *statusRecorder) WriteHeader(code int) {
	if !rec.wroteHeader {
		rec.status = code
		rec.wroteHeader = true
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	if !rec.wroteHeader {
		rec.status = http.StatusOK
		rec.wroteHeader = true
	}
	return rec.ResponseWriter.Write(b)
}

// logRequest writes one DEBUG line per request with its outcome and latency.
// It is a no-op unless the logger has DEBUG enabled.
func (app *applicationDependencies) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !app.logger.Enabled(r.Context(), slog.LevelDebug) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		app.logger.Debug("request completed",
			"request_method", r.Method,
			"request_url", r.URL.String(),
			"status", rec.status,
			"duration", time.Since(start).String(),
			"request_id", requestIDFrom(r),
		)
	})
}

// client holds a per-IP rate limiter and the time it was last seen.
// lastSeen lets us evict old entries so the map does not grow forever.
type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientRegistry is the per-IP limiter map shared by rateLimit and its sweeper.
type clientRegistry struct {
	mu      sync.Mutex
	clients map[string]*client
}

// evict drops clients not seen for longer than idle as of now.
func (cr *clientRegistry) evict(idle time.Duration, now time.Time) {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	for ip, c := range cr.clients {
		if now.Sub(c.lastSeen) > idle {
			delete(cr.clients, ip)
		}
	}
}

// sweep calls evict on every tick until done is closed.
func (cr *clientRegistry) sweep(done <-chan struct{}, every, idle time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			cr.evict(idle, now)
		}
	}
}

// rateLimit implements per-IP token-bucket rate limiting using the
// golang.org/x/time/rate package, sized from the limiter config. When the
// limiter is disabled the router is returned untouched.
// A background goroutine removes entries not seen in 3 minutes; it exits
// when app.stop is closed by serve.
func (app *applicationDependencies) rateLimit(next http.Handler) http.Handler {
	if !app.config.limiter.enabled {
		return next
	}

	registry := &clientRegistry{clients: make(map[string]*client)}
	go registry.sweep(app.stop, time.Minute, 3*time.Minute)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Extract just the IP from the RemoteAddr (strips the port).
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			app.serverErrorResponse(w, r, err)
			return
		}

		registry.mu.Lock()
		c, found := registry.clients[ip]
		if !found {
			c = &client{
				limiter: rate.NewLimiter(rate.Limit(app.config.limiter.rps), app.config.limiter.burst),
			}
			registry.clients[ip] = c
		}
		c.lastSeen = time.Now()

		// Allow() consumes one token; returns false if the bucket is empty.
		if !c.limiter.Allow() {
			registry.mu.Unlock()
			app.rateLimitExceededResponse(w, r)
			return
		}
		registry.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}
