package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

const (
	// Invoice statuses as the backend stores them. Ueberfaellig is never
	// stored, it is derived from the due date (see status.go).
	InvoiceDraft         InvoiceStatus = "entwurf"
	InvoiceOpen          InvoiceStatus = "offen"
	InvoicePaid          InvoiceStatus = "bezahlt"
	InvoicePartiallyPaid InvoiceStatus = "teilweise_bezahlt"
	InvoiceOverdue       InvoiceStatus = "ueberfaellig"
	InvoiceCancelled     InvoiceStatus = "storniert"

	// Quote statuses. Abgelaufen is derived, not stored.
	QuoteDraft    QuoteStatus = "entwurf"
	QuoteSent     QuoteStatus = "versendet"
	QuoteAccepted QuoteStatus = "angenommen"
	QuoteRejected QuoteStatus = "abgelehnt"
	QuoteExpired  QuoteStatus = "abgelaufen"

	ExpenseSubmitted  ExpenseStatus = "eingereicht"
	ExpenseApproved   ExpenseStatus = "genehmigt"
	ExpenseRejected   ExpenseStatus = "abgelehnt"
	ExpenseReimbursed ExpenseStatus = "erstattet"
)

// DefaultCategory is the bucket for expenses without a category.
const DefaultCategory = "Sonstige"

type (
	InvoiceStatus string
	QuoteStatus   string
	ExpenseStatus string

	// Date is a calendar day without time-of-day. The backend transfers
	// dates as "2006-01-02" strings; some legacy endpoints still send
	// full RFC3339 timestamps, both are accepted.
	Date struct {
		time.Time
	}

	// PartialPayment is one payment booked against a partially paid invoice.
	PartialPayment struct {
		Amount float64 `json:"betrag"`
		Date   Date    `json:"datum"`
	}

	// Invoice mirrors the backend's Rechnung resource.
	Invoice struct {
		ID              string           `json:"id"`
		Number          string           `json:"rechnungsnummer"`
		CustomerID      string           `json:"kundeId"`
		IssueDate       Date             `json:"rechnungsdatum"`
		DueDate         Date             `json:"faelligkeitsdatum"`
		Total           float64          `json:"gesamtbetrag"`
		Net             float64          `json:"nettobetrag"`
		Tax             float64          `json:"mwstBetrag"`
		Status          InvoiceStatus    `json:"status"`
		PaidOn          Date             `json:"bezahltAm,omitempty"`
		PartialPayments []PartialPayment `json:"teilzahlungen,omitempty"`
	}

	// Quote mirrors the backend's Angebot resource.
	Quote struct {
		ID              string      `json:"id"`
		Number          string      `json:"angebotsnummer"`
		CustomerID      string      `json:"kundeId"`
		ProjectID       string      `json:"projektId,omitempty"`
		IssueDate       Date        `json:"angebotsdatum"`
		ValidUntil      Date        `json:"gueltigBis"`
		Total           float64     `json:"gesamtbetrag"`
		DiscountPercent float64     `json:"rabattProzent,omitempty"`
		Status          QuoteStatus `json:"status"`
	}

	// Expense mirrors the backend's Projektkosten resource.
	Expense struct {
		ID              string        `json:"id"`
		Description     string        `json:"beschreibung"`
		Supplier        string        `json:"lieferant,omitempty"`
		Category        string        `json:"kategorie,omitempty"`
		Amount          float64       `json:"betrag"`
		Date            Date          `json:"datum"`
		ProjectID       string        `json:"projektId,omitempty"`
		Status          ExpenseStatus `json:"status"`
		RejectionReason string        `json:"ablehnungsgrund,omitempty"`
	}

	// TimeEntry mirrors the backend's Zeiterfassung resource. WorkHours
	// is computed by the backend from start, end and break minutes.
	TimeEntry struct {
		ID           string  `json:"id"`
		EmployeeID   string  `json:"mitarbeiterId"`
		ProjectID    string  `json:"projektId"`
		Date         Date    `json:"datum"`
		Start        string  `json:"startzeit"`
		End          string  `json:"endzeit"`
		BreakMinutes int     `json:"pauseMinuten"`
		WorkHours    float64 `json:"arbeitsstunden"`
		Activity     string  `json:"taetigkeit"`
		Notes        string  `json:"notizen,omitempty"`
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidStatus    = errors.New("invalid status")
)

// NewDate creates a Date from year, month, day in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// IsEmpty reports whether the date was absent in the payload.
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// Year returns the calendar year.
func (d Date) Year() int {
	return d.Time.Year()
}

// Month returns the calendar month as 1-12.
func (d Date) Month() int {
	return int(d.Time.Month())
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format("2006-01-02")
}

// MarshalJSON encodes the date as "2006-01-02", or null when empty.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format("2006-01-02"))
}

// UnmarshalJSON accepts "2006-01-02", RFC3339 timestamps, null and "".
func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		d.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}
	return ErrInvalidDate
}

func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceDraft, InvoiceOpen, InvoicePaid, InvoicePartiallyPaid, InvoiceOverdue, InvoiceCancelled:
		return true
	default:
		return false
	}
}

func (s QuoteStatus) IsValid() bool {
	switch s {
	case QuoteDraft, QuoteSent, QuoteAccepted, QuoteRejected, QuoteExpired:
		return true
	default:
		return false
	}
}

func (s ExpenseStatus) IsValid() bool {
	switch s {
	case ExpenseSubmitted, ExpenseApproved, ExpenseRejected, ExpenseReimbursed:
		return true
	default:
		return false
	}
}

func (i Invoice) Validate() error {
	if i.IssueDate.IsZero() {
		return ErrInvalidDate
	}
	if i.Total < 0 {
		return ErrInvalidAmount
	}
	if !i.Status.IsValid() {
		return ErrInvalidStatus
	}
	return nil
}

func (q Quote) Validate() error {
	if q.IssueDate.IsZero() {
		return ErrInvalidDate
	}
	if q.Total < 0 {
		return ErrInvalidAmount
	}
	if !q.Status.IsValid() {
		return ErrInvalidStatus
	}
	return nil
}

func (e Expense) Validate() error {
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if e.Amount < 0 {
		return ErrInvalidAmount
	}
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	if !e.Status.IsValid() {
		return ErrInvalidStatus
	}
	return nil
}

// Outstanding returns the amount still owed on the invoice: the total
// minus any partial payments already booked.
func (i Invoice) Outstanding() float64 {
	open := i.Total
	for _, p := range i.PartialPayments {
		open -= p.Amount
	}
	if open < 0 {
		return 0
	}
	return open
}
