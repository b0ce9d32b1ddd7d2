package api

import (
	"context"
	"encoding/json"
	"net/url"

	"kontor/internal/core"
)

// Backend routes. All finance resources live under /finanzen, time
// tracking under /zeiterfassung.
const (
	pathInvoices          = "/finanzen/rechnungen"
	pathInvoiceBulkStatus = "/finanzen/rechnungen/bulk-status"
	pathInvoiceBulk       = "/finanzen/rechnungen/bulk"
	pathQuotes            = "/finanzen/angebote"
	pathExpenses          = "/finanzen/projektkosten"
	pathOverview          = "/finanzen/uebersicht"
	pathSearch            = "/finanzen/search"
	pathExport            = "/finanzen/export"
	pathTimeEntries       = "/zeiterfassung"
)

// ListParams bounds a collection read. Zero dates mean unbounded.
type ListParams struct {
	StartDate core.Date
	EndDate   core.Date
}

func (p ListParams) values() url.Values {
	v := url.Values{}
	if !p.StartDate.IsZero() {
		v.Set("startDate", p.StartDate.String())
	}
	if !p.EndDate.IsZero() {
		v.Set("endDate", p.EndDate.String())
	}
	return v
}

// Overview is the backend-computed financial overview for a date range.
type Overview struct {
	StartDate     core.Date `json:"startDate"`
	EndDate       core.Date `json:"endDate"`
	TotalRevenue  float64   `json:"gesamtUmsatz"`
	TotalExpenses float64   `json:"gesamtKosten"`
	OpenAmount    float64   `json:"offenerBetrag"`
	InvoiceCount  int       `json:"rechnungsAnzahl"`
	QuoteCount    int       `json:"angebotsAnzahl"`
	ExpenseCount  int       `json:"kostenAnzahl"`
}

// SearchResult is one full-text search hit across finance records.
type SearchResult struct {
	Type        string          `json:"type"` // rechnung, angebot, projektkosten
	ID          string          `json:"id"`
	Title       string          `json:"titel"`
	Description string          `json:"beschreibung,omitempty"`
	Record      json.RawMessage `json:"record,omitempty"`
}

// BulkStatusRequest updates the status of several invoices at once.
type BulkStatusRequest struct {
	InvoiceIDs []string           `json:"invoiceIds"`
	Status     core.InvoiceStatus `json:"status"`
}

// BulkDeleteRequest deletes several invoices at once.
type BulkDeleteRequest struct {
	InvoiceIDs []string `json:"invoiceIds"`
}

// --- Invoices ---

func (c *Client) ListInvoices(ctx context.Context, p ListParams) ([]core.Invoice, error) {
	var out []core.Invoice
	if err := c.getJSON(ctx, pathInvoices, p.values(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetInvoice(ctx context.Context, id string) (core.Invoice, error) {
	var out core.Invoice
	err := c.getJSON(ctx, pathInvoices+"/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) CreateInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error) {
	var out core.Invoice
	err := c.postJSON(ctx, pathInvoices, inv, &out)
	return out, err
}

func (c *Client) UpdateInvoice(ctx context.Context, id string, inv core.Invoice) (core.Invoice, error) {
	var out core.Invoice
	err := c.putJSON(ctx, pathInvoices+"/"+url.PathEscape(id), inv, &out)
	return out, err
}

func (c *Client) DeleteInvoice(ctx context.Context, id string) error {
	return c.deleteJSON(ctx, pathInvoices+"/"+url.PathEscape(id), nil)
}

func (c *Client) BulkUpdateInvoiceStatus(ctx context.Context, ids []string, status core.InvoiceStatus) error {
	return c.putJSON(ctx, pathInvoiceBulkStatus, BulkStatusRequest{InvoiceIDs: ids, Status: status}, nil)
}

func (c *Client) BulkDeleteInvoices(ctx context.Context, ids []string) error {
	return c.deleteJSON(ctx, pathInvoiceBulk, BulkDeleteRequest{InvoiceIDs: ids})
}

// --- Quotes ---

func (c *Client) ListQuotes(ctx context.Context, p ListParams) ([]core.Quote, error) {
	var out []core.Quote
	if err := c.getJSON(ctx, pathQuotes, p.values(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetQuote(ctx context.Context, id string) (core.Quote, error) {
	var out core.Quote
	err := c.getJSON(ctx, pathQuotes+"/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) CreateQuote(ctx context.Context, q core.Quote) (core.Quote, error) {
	var out core.Quote
	err := c.postJSON(ctx, pathQuotes, q, &out)
	return out, err
}

func (c *Client) UpdateQuote(ctx context.Context, id string, q core.Quote) (core.Quote, error) {
	var out core.Quote
	err := c.putJSON(ctx, pathQuotes+"/"+url.PathEscape(id), q, &out)
	return out, err
}

func (c *Client) DeleteQuote(ctx context.Context, id string) error {
	return c.deleteJSON(ctx, pathQuotes+"/"+url.PathEscape(id), nil)
}

// ConvertQuoteToInvoice turns an accepted quote into a draft invoice.
func (c *Client) ConvertQuoteToInvoice(ctx context.Context, id string) (core.Invoice, error) {
	var out core.Invoice
	err := c.postJSON(ctx, pathQuotes+"/"+url.PathEscape(id)+"/convert-to-invoice", nil, &out)
	return out, err
}

// --- Expenses ---

func (c *Client) ListExpenses(ctx context.Context, p ListParams) ([]core.Expense, error) {
	var out []core.Expense
	if err := c.getJSON(ctx, pathExpenses, p.values(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	var out core.Expense
	err := c.getJSON(ctx, pathExpenses+"/"+url.PathEscape(id), nil, &out)
	return out, err
}

func (c *Client) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	var out core.Expense
	err := c.postJSON(ctx, pathExpenses, e, &out)
	return out, err
}

func (c *Client) UpdateExpense(ctx context.Context, id string, e core.Expense) (core.Expense, error) {
	var out core.Expense
	err := c.putJSON(ctx, pathExpenses+"/"+url.PathEscape(id), e, &out)
	return out, err
}

func (c *Client) DeleteExpense(ctx context.Context, id string) error {
	return c.deleteJSON(ctx, pathExpenses+"/"+url.PathEscape(id), nil)
}

// --- Time entries ---

func (c *Client) ListTimeEntries(ctx context.Context, p ListParams) ([]core.TimeEntry, error) {
	var out []core.TimeEntry
	if err := c.getJSON(ctx, pathTimeEntries, p.values(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateTimeEntry(ctx context.Context, t core.TimeEntry) (core.TimeEntry, error) {
	var out core.TimeEntry
	err := c.postJSON(ctx, pathTimeEntries, t, &out)
	return out, err
}

func (c *Client) UpdateTimeEntry(ctx context.Context, id string, t core.TimeEntry) (core.TimeEntry, error) {
	var out core.TimeEntry
	err := c.putJSON(ctx, pathTimeEntries+"/"+url.PathEscape(id), t, &out)
	return out, err
}

func (c *Client) DeleteTimeEntry(ctx context.Context, id string) error {
	return c.deleteJSON(ctx, pathTimeEntries+"/"+url.PathEscape(id), nil)
}

// --- Reports, search, export ---

// GetOverview fetches the backend-side financial overview for the range.
func (c *Client) GetOverview(ctx context.Context, start, end core.Date) (Overview, error) {
	v := url.Values{}
	if !start.IsZero() {
		v.Set("startDate", start.String())
	}
	if !end.IsZero() {
		v.Set("endDate", end.String())
	}
	var out Overview
	err := c.getJSON(ctx, pathOverview, v, &out)
	return out, err
}

// Search runs a full-text search. typ narrows the record type and may
// be empty.
func (c *Client) Search(ctx context.Context, query, typ string) ([]SearchResult, error) {
	v := url.Values{}
	v.Set("q", query)
	if typ != "" {
		v.Set("type", typ)
	}
	var out []SearchResult
	if err := c.getJSON(ctx, pathSearch, v, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Export downloads a binary export (csv, pdf, ...) for one record type.
// The response is returned raw and never cached.
func (c *Client) Export(ctx context.Context, typ, format string, start, end core.Date) ([]byte, string, error) {
	v := url.Values{}
	if format != "" {
		v.Set("format", format)
	}
	if !start.IsZero() {
		v.Set("startDate", start.String())
	}
	if !end.IsZero() {
		v.Set("endDate", end.String())
	}
	return c.download(ctx, pathExport+"/"+url.PathEscape(typ), v)
}
