package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// handleDashboard returns the full dashboard payload: summary, monthly
// trend and category breakdown in one response.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.dashboard.Load(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleMonthlyAnalytics(w http.ResponseWriter, r *http.Request) {
	months := queryInt(r, "months", 12)
	if months < 1 || months > 60 {
		writeError(w, http.StatusBadRequest, "months must be between 1 and 60")
		return
	}

	series, err := s.finance.MonthlyAnalytics(r.Context(), months)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

func (s *Server) handleCategoryBreakdown(w http.ResponseWriter, r *http.Request) {
	year := queryInt(r, "year", time.Now().Year())

	breakdown, err := s.finance.CategoryBreakdown(r.Context(), year)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	year := queryInt(r, "year", time.Now().Year())

	summary, err := s.finance.FinancialSummary(r.Context(), year)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleCustomerAnalytics(w http.ResponseWriter, r *http.Request) {
	customerID := strings.TrimSpace(r.PathValue("id"))
	if customerID == "" {
		writeError(w, http.StatusBadRequest, "customer id is required")
		return
	}
	year := queryInt(r, "year", time.Now().Year())

	metrics, err := s.finance.CustomerAnalytics(r.Context(), customerID, year)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

// queryInt parses an integer query parameter, falling back to def when
// absent or malformed.
func queryInt(r *http.Request, name string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
