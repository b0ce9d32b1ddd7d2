package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"kontor/internal/api"
	"kontor/internal/core"
)

// listParams reads the optional startDate/endDate bounds from the query.
func listParams(r *http.Request) (api.ListParams, error) {
	var p api.ListParams

	if v := strings.TrimSpace(r.URL.Query().Get("startDate")); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return p, core.ErrInvalidDate
		}
		p.StartDate = core.Date{Time: t}
	}
	if v := strings.TrimSpace(r.URL.Query().Get("endDate")); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return p, core.ErrInvalidDate
		}
		p.EndDate = core.Date{Time: t}
	}

	return p, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// --- Invoices ---

func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	p, err := listParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date range")
		return
	}
	invoices, err := s.finance.ListInvoices(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, invoices)
}

func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := s.finance.GetInvoice(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var inv core.Invoice
	if !decodeBody(w, r, &inv) {
		return
	}
	created, err := s.finance.CreateInvoice(r.Context(), inv)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateInvoice(w http.ResponseWriter, r *http.Request) {
	var inv core.Invoice
	if !decodeBody(w, r, &inv) {
		return
	}
	updated, err := s.finance.UpdateInvoice(r.Context(), r.PathValue("id"), inv)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	if err := s.finance.DeleteInvoice(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBulkInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	var req api.BulkStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.finance.BulkUpdateInvoiceStatus(r.Context(), req.InvoiceIDs, req.Status); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBulkDeleteInvoices(w http.ResponseWriter, r *http.Request) {
	var req api.BulkDeleteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.finance.BulkDeleteInvoices(r.Context(), req.InvoiceIDs); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Quotes ---

func (s *Server) handleListQuotes(w http.ResponseWriter, r *http.Request) {
	p, err := listParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date range")
		return
	}
	quotes, err := s.finance.ListQuotes(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quotes)
}

func (s *Server) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	q, err := s.finance.GetQuote(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) handleCreateQuote(w http.ResponseWriter, r *http.Request) {
	var q core.Quote
	if !decodeBody(w, r, &q) {
		return
	}
	created, err := s.finance.CreateQuote(r.Context(), q)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateQuote(w http.ResponseWriter, r *http.Request) {
	var q core.Quote
	if !decodeBody(w, r, &q) {
		return
	}
	updated, err := s.finance.UpdateQuote(r.Context(), r.PathValue("id"), q)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteQuote(w http.ResponseWriter, r *http.Request) {
	if err := s.finance.DeleteQuote(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleConvertQuote(w http.ResponseWriter, r *http.Request) {
	inv, err := s.finance.ConvertQuoteToInvoice(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

// --- Expenses ---

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	p, err := listParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date range")
		return
	}
	expenses, err := s.finance.ListExpenses(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, expenses)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.finance.GetExpense(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var e core.Expense
	if !decodeBody(w, r, &e) {
		return
	}
	created, err := s.finance.CreateExpense(r.Context(), e)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var e core.Expense
	if !decodeBody(w, r, &e) {
		return
	}
	updated, err := s.finance.UpdateExpense(r.Context(), r.PathValue("id"), e)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.finance.DeleteExpense(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Time entries ---

func (s *Server) handleListTimeEntries(w http.ResponseWriter, r *http.Request) {
	p, err := listParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date range")
		return
	}
	entries, err := s.finance.ListTimeEntries(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleCreateTimeEntry(w http.ResponseWriter, r *http.Request) {
	var entry core.TimeEntry
	if !decodeBody(w, r, &entry) {
		return
	}
	created, err := s.finance.CreateTimeEntry(r.Context(), entry)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateTimeEntry(w http.ResponseWriter, r *http.Request) {
	var entry core.TimeEntry
	if !decodeBody(w, r, &entry) {
		return
	}
	updated, err := s.finance.UpdateTimeEntry(r.Context(), r.PathValue("id"), entry)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTimeEntry(w http.ResponseWriter, r *http.Request) {
	if err := s.finance.DeleteTimeEntry(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Overview, search, export ---

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	p, err := listParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date range")
		return
	}
	ov, err := s.finance.GetOverview(r.Context(), p.StartDate, p.EndDate)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	results, err := s.finance.Search(r.Context(), query, r.URL.Query().Get("type"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// handleExport streams an export file through from the backend,
// preserving its content type.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	typ := r.PathValue("type")
	p, err := listParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date range")
		return
	}

	data, contentType, err := s.finance.Export(r.Context(), typ, r.URL.Query().Get("format"), p.StartDate, p.EndDate)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
