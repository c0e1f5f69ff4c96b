package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	t.Run("generates_when_absent", func(t *testing.T) {
		var seen string
		handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = RequestID(r.Context())
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest("GET", "/x", http.NoBody))

		if seen == "" {
			t.Error("context request ID should be set")
		}
		if got := w.Header().Get("X-Request-ID"); got != seen {
			t.Errorf("header %q, context %q; should match", got, seen)
		}
	})

	t.Run("propagates_incoming", func(t *testing.T) {
		handler := RequestIDMiddleware(okHandler())
		req := httptest.NewRequest("GET", "/x", http.NoBody)
		req.Header.Set("X-Request-ID", "trace-42")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if got := w.Header().Get("X-Request-ID"); got != "trace-42" {
			t.Errorf("X-Request-ID = %q, want trace-42", got)
		}
	})
}

func TestChain_order(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	inner := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	})

	Chain(inner, tag("outer"), tag("inner")).ServeHTTP(
		httptest.NewRecorder(), httptest.NewRequest("GET", "/x", http.NoBody))

	want := []string{"outer", "inner", "handler"}
	for i := range want {
		if i >= len(order) || order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	w := httptest.NewRecorder()
	SecurityHeadersMiddleware(okHandler()).ServeHTTP(w, httptest.NewRequest("GET", "/x", http.NoBody))

	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	} {
		if got := w.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestVersionHeaderMiddleware(t *testing.T) {
	w := httptest.NewRecorder()
	VersionHeaderMiddleware(okHandler()).ServeHTTP(w, httptest.NewRequest("GET", "/x", http.NoBody))

	if w.Header().Get("X-PLCFleet-Version") == "" {
		t.Error("version header missing")
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("poller exploded")
	})
	handler := RecoveryMiddleware(zap.NewNop())(panicky)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/x", http.NoBody))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("content type = %q, want problem+json", ct)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("blocks_over_burst", func(t *testing.T) {
		handler := RateLimitMiddleware(1, 1, nil)(okHandler())
		req := httptest.NewRequest("GET", "/x", http.NoBody)
		req.RemoteAddr = "10.0.0.1:9999"

		first := httptest.NewRecorder()
		handler.ServeHTTP(first, req)
		if first.Code != http.StatusOK {
			t.Fatalf("first request status = %d", first.Code)
		}

		second := httptest.NewRecorder()
		handler.ServeHTTP(second, req)
		if second.Code != http.StatusTooManyRequests {
			t.Fatalf("second request status = %d, want 429", second.Code)
		}
	})

	t.Run("per_client_buckets", func(t *testing.T) {
		handler := RateLimitMiddleware(1, 1, nil)(okHandler())

		a := httptest.NewRequest("GET", "/x", http.NoBody)
		a.RemoteAddr = "10.0.0.1:1111"
		b := httptest.NewRequest("GET", "/x", http.NoBody)
		b.RemoteAddr = "10.0.0.2:2222"

		handler.ServeHTTP(httptest.NewRecorder(), a)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, b)
		if w.Code != http.StatusOK {
			t.Errorf("second client status = %d, want 200", w.Code)
		}
	})

	t.Run("skips_probe_paths", func(t *testing.T) {
		handler := RateLimitMiddleware(0.001, 1, []string{"/healthz"})(okHandler())
		req := httptest.NewRequest("GET", "/healthz", http.NoBody)
		req.RemoteAddr = "10.0.0.3:3333"

		for i := 0; i < 5; i++ {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != http.StatusOK {
				t.Fatalf("probe %d status = %d", i, w.Code)
			}
		}
	})
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", http.NoBody)
	req.RemoteAddr = "192.168.1.100:12345"
	if ip := clientIP(req); ip != "192.168.1.100" {
		t.Errorf("clientIP = %q", ip)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18")
	if ip := clientIP(req); ip != "203.0.113.50" {
		t.Errorf("forwarded clientIP = %q", ip)
	}
}

func TestStatusRecorder_first_status_wins(t *testing.T) {
	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	rec.WriteHeader(http.StatusCreated)
	rec.WriteHeader(http.StatusNotFound)

	if rec.status != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.status)
	}
}
