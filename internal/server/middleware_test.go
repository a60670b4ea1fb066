package server

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tunegraph/tunegraph/internal/shared"
	internaltest "github.com/tunegraph/tunegraph/internal/testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("RequestID", func(t *testing.T) {
		t.Run("Generates When Absent", func(t *testing.T) {
			rec := httptest.NewRecorder()
			RequestID()(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			if rec.Header().Get(requestIDHeader) == "" {
				t.Error("expected generated request id")
			}
		})

		t.Run("Honors Inbound Header", func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(requestIDHeader, "fixed-id")

			rec := httptest.NewRecorder()
			RequestID()(okHandler()).ServeHTTP(rec, req)

			if rec.Header().Get(requestIDHeader) != "fixed-id" {
				t.Errorf("expected inbound id echoed, got %s", rec.Header().Get(requestIDHeader))
			}
		})
	})

	t.Run("Logging", func(t *testing.T) {
		var buf bytes.Buffer
		logger := shared.NewLogger(&buf)

		handler := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/me", nil))

		output := buf.String()
		if !strings.Contains(output, "/api/me") || !strings.Contains(output, "418") {
			t.Errorf("expected path and status in log, got %q", output)
		}
	})

	t.Run("Recovery", func(t *testing.T) {
		logger := shared.NewLogger(io.Discard)
		handler := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}

		var body errorResponse
		internaltest.MustDecode(t, rec.Body, &body)
		if body.Error.Code != "INTERNAL_ERROR" {
			t.Errorf("expected INTERNAL_ERROR, got %s", body.Error.Code)
		}
	})

	t.Run("CORS", func(t *testing.T) {
		handler := CORS("http://front.example")(okHandler())

		t.Run("Sets Origin", func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			if rec.Header().Get("Access-Control-Allow-Origin") != "http://front.example" {
				t.Errorf("expected origin header, got %s", rec.Header().Get("Access-Control-Allow-Origin"))
			}
		})

		t.Run("Preflight Short-Circuits", func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", nil))

			if rec.Code != http.StatusNoContent {
				t.Errorf("expected 204, got %d", rec.Code)
			}
			if !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), refreshTokenHeader) {
				t.Errorf("expected refresh header allowed, got %s", rec.Header().Get("Access-Control-Allow-Headers"))
			}
		})
	})

	t.Run("RateLimit", func(t *testing.T) {
		// Zero sustained rate and burst of 2: the third request must fail.
		handler := RateLimit(0, 2)(okHandler())

		statuses := make([]int, 0, 3)
		for range 3 {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "10.0.0.1:1234"
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			statuses = append(statuses, rec.Code)
		}

		if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK {
			t.Errorf("expected burst allowed, got %v", statuses)
		}
		if statuses[2] != http.StatusTooManyRequests {
			t.Errorf("expected third request throttled, got %v", statuses)
		}

		t.Run("Separate Clients Have Separate Budgets", func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "10.0.0.2:1234"
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Errorf("expected fresh client allowed, got %d", rec.Code)
			}
		})
	})

	t.Run("Router Applies In Order", func(t *testing.T) {
		router := NewBasicRouter()
		router.Use(RequestID())
		router.Handle(http.MethodGet, "/ping", okHandler())

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
		if rec.Header().Get(requestIDHeader) == "" {
			t.Error("expected middleware applied through router")
		}
	})
}
