package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	applog "kontor/internal/log"
	"kontor/internal/services"
)

// Server exposes the finance dashboard as a JSON API. It proxies CRUD
// operations to the backend through the finance service and serves the
// derived analytics computed locally.
type Server struct {
	http.Server
	finance     *services.FinanceService
	dashboard   *services.DashboardService
	rateLimiter *rateLimiter
	httpLog     *applog.StructuredLogger

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, finance *services.FinanceService, dashboard *services.DashboardService) *Server {
	mux := http.NewServeMux()
	logger := applog.New(applog.Config{
		Level:     slog.LevelInfo,
		Component: applog.ComponentHTTP,
	})

	s := &Server{
		Server: http.Server{
			Addr: addr,
			// Every request carries the component logger in its context.
			Handler:           applog.Middleware(logger)(mux),
			ReadHeaderTimeout: 10 * time.Second,
		},
		finance:     finance,
		dashboard:   dashboard,
		rateLimiter: newRateLimiter(),
		httpLog:     applog.NewStructuredLogger(logger),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	// Derived views computed from the raw collections.
	mux.HandleFunc("GET /api/dashboard", s.wrap(s.handleDashboard))
	mux.HandleFunc("GET /api/analytics/monthly", s.wrap(s.handleMonthlyAnalytics))
	mux.HandleFunc("GET /api/analytics/categories", s.wrap(s.handleCategoryBreakdown))
	mux.HandleFunc("GET /api/summary", s.wrap(s.handleSummary))
	mux.HandleFunc("GET /api/customers/{id}/analytics", s.wrap(s.handleCustomerAnalytics))

	// Proxied finance resources.
	mux.HandleFunc("GET /api/rechnungen", s.wrap(s.handleListInvoices))
	mux.HandleFunc("POST /api/rechnungen", s.wrap(s.handleCreateInvoice))
	mux.HandleFunc("PUT /api/rechnungen/bulk-status", s.wrap(s.handleBulkInvoiceStatus))
	mux.HandleFunc("DELETE /api/rechnungen/bulk", s.wrap(s.handleBulkDeleteInvoices))
	mux.HandleFunc("GET /api/rechnungen/{id}", s.wrap(s.handleGetInvoice))
	mux.HandleFunc("PUT /api/rechnungen/{id}", s.wrap(s.handleUpdateInvoice))
	mux.HandleFunc("DELETE /api/rechnungen/{id}", s.wrap(s.handleDeleteInvoice))

	mux.HandleFunc("GET /api/angebote", s.wrap(s.handleListQuotes))
	mux.HandleFunc("POST /api/angebote", s.wrap(s.handleCreateQuote))
	mux.HandleFunc("GET /api/angebote/{id}", s.wrap(s.handleGetQuote))
	mux.HandleFunc("PUT /api/angebote/{id}", s.wrap(s.handleUpdateQuote))
	mux.HandleFunc("DELETE /api/angebote/{id}", s.wrap(s.handleDeleteQuote))
	mux.HandleFunc("POST /api/angebote/{id}/convert-to-invoice", s.wrap(s.handleConvertQuote))

	mux.HandleFunc("GET /api/projektkosten", s.wrap(s.handleListExpenses))
	mux.HandleFunc("POST /api/projektkosten", s.wrap(s.handleCreateExpense))
	mux.HandleFunc("GET /api/projektkosten/{id}", s.wrap(s.handleGetExpense))
	mux.HandleFunc("PUT /api/projektkosten/{id}", s.wrap(s.handleUpdateExpense))
	mux.HandleFunc("DELETE /api/projektkosten/{id}", s.wrap(s.handleDeleteExpense))

	mux.HandleFunc("GET /api/zeiterfassung", s.wrap(s.handleListTimeEntries))
	mux.HandleFunc("POST /api/zeiterfassung", s.wrap(s.handleCreateTimeEntry))
	mux.HandleFunc("PUT /api/zeiterfassung/{id}", s.wrap(s.handleUpdateTimeEntry))
	mux.HandleFunc("DELETE /api/zeiterfassung/{id}", s.wrap(s.handleDeleteTimeEntry))

	mux.HandleFunc("GET /api/uebersicht", s.wrap(s.handleOverview))
	mux.HandleFunc("GET /api/search", s.wrap(s.handleSearch))
	mux.HandleFunc("GET /api/export/{type}", s.wrap(s.handleExport))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// wrap adds security headers, rate limiting and request logging to a
// handler.
func (s *Server) wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Extract client IP (considering proxies)
		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		s.httpLog.LogHTTPStart(ctx, r, clientIP, requestID)

		// Rate limit writes only; dashboard reads are cached anyway.
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "Zu viele Anfragen. Bitte versuchen Sie es später erneut.")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		s.httpLog.LogHTTPEnd(ctx, r, rw.statusCode, duration.Milliseconds(), clientIP, requestID)
	}
}

type requestIDKey struct{}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
