package core

import "time"

// EffectiveInvoiceStatus returns the status an invoice should be shown
// with at the given instant. Ueberfaellig is never stored by the backend:
// an invoice counts as overdue when its due date has passed and it is
// neither paid nor cancelled.
func EffectiveInvoiceStatus(status InvoiceStatus, dueDate Date, now time.Time) InvoiceStatus {
	if status == InvoicePaid || status == InvoiceCancelled {
		return status
	}
	if !dueDate.IsZero() && now.After(endOfDay(dueDate)) {
		return InvoiceOverdue
	}
	return status
}

// EffectiveQuoteStatus returns the status a quote should be shown with.
// A sent quote whose validity end-date has passed is abgelaufen.
func EffectiveQuoteStatus(status QuoteStatus, validUntil Date, now time.Time) QuoteStatus {
	if status != QuoteSent {
		return status
	}
	if !validUntil.IsZero() && now.After(endOfDay(validUntil)) {
		return QuoteExpired
	}
	return status
}

// IsOpen reports whether an invoice still awaits payment, i.e. it is
// neither paid nor cancelled. Drafts count as open for dashboard totals.
func (i Invoice) IsOpen() bool {
	return i.Status != InvoicePaid && i.Status != InvoiceCancelled
}

// IsOverdueAt reports whether the invoice is open and past due.
func (i Invoice) IsOverdueAt(now time.Time) bool {
	return i.IsOpen() && EffectiveInvoiceStatus(i.Status, i.DueDate, now) == InvoiceOverdue
}

// A due date covers the whole day: an invoice due 2025-03-31 is overdue
// starting 2025-04-01.
func endOfDay(d Date) time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 23, 59, 59, 0, d.Location())
}
