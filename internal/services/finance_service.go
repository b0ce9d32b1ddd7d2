package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"kontor/internal/amqp"
	"kontor/internal/api"
	"kontor/internal/core"
	"kontor/internal/storage"
)

// Snapshot keys for the raw collections the aggregator depends on.
const (
	snapshotInvoices = "/finanzen/rechnungen"
	snapshotQuotes   = "/finanzen/angebote"
	snapshotExpenses = "/finanzen/projektkosten"
)

// FinanceService orchestrates finance operations across the backend
// API, the offline snapshot store and the AMQP invalidation bus. Both
// the snapshot store and the AMQP client are optional; a nil dependency
// disables that concern.
type FinanceService struct {
	api       *api.Client
	events    *amqp.Client
	snapshots *storage.SnapshotStore

	now func() time.Time
}

func NewFinanceService(apiClient *api.Client, events *amqp.Client, snapshots *storage.SnapshotStore) *FinanceService {
	return &FinanceService{
		api:       apiClient,
		events:    events,
		snapshots: snapshots,
		now:       time.Now,
	}
}

// --- Invoices ---

// ListInvoices reads invoices from the backend. On success the raw
// collection is snapshotted; when the backend is unreachable the last
// snapshot is served instead.
func (s *FinanceService) ListInvoices(ctx context.Context, p api.ListParams) ([]core.Invoice, error) {
	invoices, err := s.api.ListInvoices(ctx, p)
	if err != nil {
		if fallback, ok := restoreSnapshot[core.Invoice](ctx, s.snapshots, snapshotInvoices, err); ok {
			return fallback, nil
		}
		return nil, err
	}
	s.saveSnapshot(ctx, snapshotInvoices, invoices)
	return invoices, nil
}

func (s *FinanceService) GetInvoice(ctx context.Context, id string) (core.Invoice, error) {
	return s.api.GetInvoice(ctx, id)
}

func (s *FinanceService) CreateInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error) {
	if err := inv.Validate(); err != nil {
		return core.Invoice{}, fmt.Errorf("validate invoice: %w", err)
	}

	created, err := s.api.CreateInvoice(ctx, inv)
	if err != nil {
		return core.Invoice{}, err
	}

	s.publishMutation(ctx, amqp.EntityInvoice, created.ID, amqp.ActionCreate)
	return created, nil
}

func (s *FinanceService) UpdateInvoice(ctx context.Context, id string, inv core.Invoice) (core.Invoice, error) {
	updated, err := s.api.UpdateInvoice(ctx, id, inv)
	if err != nil {
		return core.Invoice{}, err
	}

	s.publishMutation(ctx, amqp.EntityInvoice, id, amqp.ActionUpdate)
	return updated, nil
}

func (s *FinanceService) DeleteInvoice(ctx context.Context, id string) error {
	if err := s.api.DeleteInvoice(ctx, id); err != nil {
		return err
	}

	s.publishMutation(ctx, amqp.EntityInvoice, id, amqp.ActionDelete)
	return nil
}

func (s *FinanceService) BulkUpdateInvoiceStatus(ctx context.Context, ids []string, status core.InvoiceStatus) error {
	if len(ids) == 0 {
		return fmt.Errorf("bulk status update: no invoice ids")
	}
	if !status.IsValid() {
		return fmt.Errorf("bulk status update: %w", core.ErrInvalidStatus)
	}

	if err := s.api.BulkUpdateInvoiceStatus(ctx, ids, status); err != nil {
		return err
	}

	s.publishMutation(ctx, amqp.EntityInvoice, "", amqp.ActionBulkStatus)
	return nil
}

func (s *FinanceService) BulkDeleteInvoices(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("bulk delete: no invoice ids")
	}

	if err := s.api.BulkDeleteInvoices(ctx, ids); err != nil {
		return err
	}

	s.publishMutation(ctx, amqp.EntityInvoice, "", amqp.ActionBulkDelete)
	return nil
}

// --- Quotes ---

func (s *FinanceService) ListQuotes(ctx context.Context, p api.ListParams) ([]core.Quote, error) {
	quotes, err := s.api.ListQuotes(ctx, p)
	if err != nil {
		if fallback, ok := restoreSnapshot[core.Quote](ctx, s.snapshots, snapshotQuotes, err); ok {
			return fallback, nil
		}
		return nil, err
	}
	s.saveSnapshot(ctx, snapshotQuotes, quotes)
	return quotes, nil
}

func (s *FinanceService) GetQuote(ctx context.Context, id string) (core.Quote, error) {
	return s.api.GetQuote(ctx, id)
}

func (s *FinanceService) CreateQuote(ctx context.Context, q core.Quote) (core.Quote, error) {
	if err := q.Validate(); err != nil {
		return core.Quote{}, fmt.Errorf("validate quote: %w", err)
	}

	created, err := s.api.CreateQuote(ctx, q)
	if err != nil {
		return core.Quote{}, err
	}

	s.publishMutation(ctx, amqp.EntityQuote, created.ID, amqp.ActionCreate)
	return created, nil
}

func (s *FinanceService) UpdateQuote(ctx context.Context, id string, q core.Quote) (core.Quote, error) {
	updated, err := s.api.UpdateQuote(ctx, id, q)
	if err != nil {
		return core.Quote{}, err
	}

	s.publishMutation(ctx, amqp.EntityQuote, id, amqp.ActionUpdate)
	return updated, nil
}

func (s *FinanceService) DeleteQuote(ctx context.Context, id string) error {
	if err := s.api.DeleteQuote(ctx, id); err != nil {
		return err
	}

	s.publishMutation(ctx, amqp.EntityQuote, id, amqp.ActionDelete)
	return nil
}

// ConvertQuoteToInvoice turns an accepted quote into a draft invoice on
// the backend and returns the new invoice.
func (s *FinanceService) ConvertQuoteToInvoice(ctx context.Context, id string) (core.Invoice, error) {
	inv, err := s.api.ConvertQuoteToInvoice(ctx, id)
	if err != nil {
		return core.Invoice{}, err
	}

	s.publishMutation(ctx, amqp.EntityInvoice, inv.ID, amqp.ActionCreate)
	return inv, nil
}

// --- Expenses ---

func (s *FinanceService) ListExpenses(ctx context.Context, p api.ListParams) ([]core.Expense, error) {
	expenses, err := s.api.ListExpenses(ctx, p)
	if err != nil {
		if fallback, ok := restoreSnapshot[core.Expense](ctx, s.snapshots, snapshotExpenses, err); ok {
			return fallback, nil
		}
		return nil, err
	}
	s.saveSnapshot(ctx, snapshotExpenses, expenses)
	return expenses, nil
}

func (s *FinanceService) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	return s.api.GetExpense(ctx, id)
}

func (s *FinanceService) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, fmt.Errorf("validate expense: %w", err)
	}

	created, err := s.api.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, err
	}

	s.publishMutation(ctx, amqp.EntityExpense, created.ID, amqp.ActionCreate)
	return created, nil
}

func (s *FinanceService) UpdateExpense(ctx context.Context, id string, e core.Expense) (core.Expense, error) {
	updated, err := s.api.UpdateExpense(ctx, id, e)
	if err != nil {
		return core.Expense{}, err
	}

	s.publishMutation(ctx, amqp.EntityExpense, id, amqp.ActionUpdate)
	return updated, nil
}

func (s *FinanceService) DeleteExpense(ctx context.Context, id string) error {
	if err := s.api.DeleteExpense(ctx, id); err != nil {
		return err
	}

	s.publishMutation(ctx, amqp.EntityExpense, id, amqp.ActionDelete)
	return nil
}

// --- Time entries ---

func (s *FinanceService) ListTimeEntries(ctx context.Context, p api.ListParams) ([]core.TimeEntry, error) {
	return s.api.ListTimeEntries(ctx, p)
}

func (s *FinanceService) CreateTimeEntry(ctx context.Context, t core.TimeEntry) (core.TimeEntry, error) {
	created, err := s.api.CreateTimeEntry(ctx, t)
	if err != nil {
		return core.TimeEntry{}, err
	}

	s.publishMutation(ctx, amqp.EntityTimeEntry, created.ID, amqp.ActionCreate)
	return created, nil
}

func (s *FinanceService) UpdateTimeEntry(ctx context.Context, id string, t core.TimeEntry) (core.TimeEntry, error) {
	updated, err := s.api.UpdateTimeEntry(ctx, id, t)
	if err != nil {
		return core.TimeEntry{}, err
	}

	s.publishMutation(ctx, amqp.EntityTimeEntry, id, amqp.ActionUpdate)
	return updated, nil
}

func (s *FinanceService) DeleteTimeEntry(ctx context.Context, id string) error {
	if err := s.api.DeleteTimeEntry(ctx, id); err != nil {
		return err
	}

	s.publishMutation(ctx, amqp.EntityTimeEntry, id, amqp.ActionDelete)
	return nil
}

// --- Reports, search, export ---

func (s *FinanceService) GetOverview(ctx context.Context, start, end core.Date) (api.Overview, error) {
	return s.api.GetOverview(ctx, start, end)
}

func (s *FinanceService) Search(ctx context.Context, query, typ string) ([]api.SearchResult, error) {
	return s.api.Search(ctx, query, typ)
}

func (s *FinanceService) Export(ctx context.Context, typ, format string, start, end core.Date) ([]byte, string, error) {
	return s.api.Export(ctx, typ, format, start, end)
}

// --- Derived views ---

// MonthlyAnalytics fetches the raw collections and reduces them into
// the trailing monthly trend series.
func (s *FinanceService) MonthlyAnalytics(ctx context.Context, months int) ([]core.MonthAnalytics, error) {
	if months <= 0 {
		months = 12
	}
	now := s.now()

	// Bound the reads to the window the series covers.
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)
	p := api.ListParams{
		StartDate: core.NewDate(first.Year(), int(first.Month()), 1),
		EndDate:   core.NewDate(now.Year(), int(now.Month()), now.Day()),
	}

	invoices, err := s.ListInvoices(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("monthly analytics: %w", err)
	}
	expenses, err := s.ListExpenses(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("monthly analytics: %w", err)
	}

	return core.MonthlyAnalytics(invoices, expenses, months, now), nil
}

// CategoryBreakdown fetches all expenses of the given year and groups
// them by category.
func (s *FinanceService) CategoryBreakdown(ctx context.Context, year int) ([]core.CategoryTotal, error) {
	expenses, err := s.ListExpenses(ctx, yearParams(year))
	if err != nil {
		return nil, fmt.Errorf("category breakdown: %w", err)
	}
	return core.CategoryBreakdown(expenses), nil
}

// FinancialSummary computes the KPI metrics for one year from the raw
// collections.
func (s *FinanceService) FinancialSummary(ctx context.Context, year int) (core.SummaryMetrics, error) {
	p := yearParams(year)

	invoices, err := s.ListInvoices(ctx, p)
	if err != nil {
		return core.SummaryMetrics{}, fmt.Errorf("financial summary: %w", err)
	}
	expenses, err := s.ListExpenses(ctx, p)
	if err != nil {
		return core.SummaryMetrics{}, fmt.Errorf("financial summary: %w", err)
	}
	quotes, err := s.ListQuotes(ctx, p)
	if err != nil {
		return core.SummaryMetrics{}, fmt.Errorf("financial summary: %w", err)
	}

	return core.FinancialSummary(invoices, expenses, quotes, year, s.now()), nil
}

// CustomerAnalytics computes the per-customer metrics for one year.
func (s *FinanceService) CustomerAnalytics(ctx context.Context, customerID string, year int) (core.CustomerMetrics, error) {
	p := yearParams(year)

	invoices, err := s.ListInvoices(ctx, p)
	if err != nil {
		return core.CustomerMetrics{}, fmt.Errorf("customer analytics: %w", err)
	}
	quotes, err := s.ListQuotes(ctx, p)
	if err != nil {
		return core.CustomerMetrics{}, fmt.Errorf("customer analytics: %w", err)
	}

	return core.CustomerAnalytics(invoices, quotes, customerID, year, s.now()), nil
}

// InvalidateCache drops every cached read, e.g. when another instance
// announced a mutation over AMQP.
func (s *FinanceService) InvalidateCache() {
	s.api.ClearCache()
}

func (s *FinanceService) Close() error {
	var errs []error

	if s.snapshots != nil {
		if err := s.snapshots.Close(); err != nil {
			errs = append(errs, fmt.Errorf("snapshots: %w", err))
		}
	}

	if s.events != nil {
		if err := s.events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close finance service: %v", errs)
	}

	return nil
}

func (s *FinanceService) publishMutation(ctx context.Context, entity, id, action string) {
	if s.events == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping mutation message",
			"entity", entity, "action", action)
		return
	}

	// Publishing is best effort: the mutation itself already succeeded
	// and the local cache was cleared by the API client.
	if err := s.events.PublishMutation(ctx, entity, id, action); err != nil {
		slog.ErrorContext(ctx, "Failed to publish mutation message",
			"entity", entity, "entity_id", id, "action", action, "error", err)
	}
}

func (s *FinanceService) saveSnapshot(ctx context.Context, key string, collection any) {
	if s.snapshots == nil {
		return
	}

	payload, err := json.Marshal(collection)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to marshal snapshot", "snapshot_key", key, "error", err)
		return
	}
	if err := s.snapshots.Save(ctx, key, payload); err != nil {
		slog.ErrorContext(ctx, "Failed to save snapshot", "snapshot_key", key, "error", err)
	}
}

// restoreSnapshot serves the last stored collection when the fetch
// failed for connectivity reasons. Server and client errors are never
// masked by stale data.
func restoreSnapshot[T any](ctx context.Context, store *storage.SnapshotStore, key string, cause error) ([]T, bool) {
	if store == nil || !api.IsConnectivity(cause) {
		return nil, false
	}

	payload, fetchedAt, err := store.Load(ctx, key)
	if err != nil {
		return nil, false
	}

	var collection []T
	if err := json.Unmarshal(payload, &collection); err != nil {
		slog.ErrorContext(ctx, "Failed to decode snapshot", "snapshot_key", key, "error", err)
		return nil, false
	}

	slog.WarnContext(ctx, "Backend unreachable, serving snapshot",
		"snapshot_key", key, "fetched_at", fetchedAt)
	return collection, true
}

func yearParams(year int) api.ListParams {
	return api.ListParams{
		StartDate: core.NewDate(year, 1, 1),
		EndDate:   core.NewDate(year, 12, 31),
	}
}
