package core

import (
	"sort"
	"time"
)

type (
	// MonthAnalytics is one point of the trailing monthly trend series.
	MonthAnalytics struct {
		Year            int     `json:"year"`
		Month           int     `json:"month"`
		Label           string  `json:"label"`
		Revenue         float64 `json:"revenue"`
		Expenses        float64 `json:"expenses"`
		Profit          float64 `json:"profit"`
		ProfitMargin    float64 `json:"profitMargin"`
		InvoicesCreated int     `json:"invoicesCreated"`
	}

	// CategoryTotal is one bucket of the expense category breakdown.
	CategoryTotal struct {
		Name  string  `json:"name"`
		Value float64 `json:"value"`
	}

	// SummaryMetrics are the KPI numbers for one year.
	SummaryMetrics struct {
		TotalRevenue          float64 `json:"totalRevenue"`
		TotalExpenses         float64 `json:"totalExpenses"`
		Profit                float64 `json:"profit"`
		ProfitMargin          float64 `json:"profitMargin"`
		OpenInvoicesCount     int     `json:"openInvoicesCount"`
		OpenInvoicesAmount    float64 `json:"openInvoicesAmount"`
		OverdueInvoicesCount  int     `json:"overdueInvoicesCount"`
		OverdueInvoicesAmount float64 `json:"overdueInvoicesAmount"`
		QuoteAcceptanceRate   float64 `json:"quoteAcceptanceRate"`
		AverageInvoiceValue   float64 `json:"averageInvoiceValue"`
		AverageExpenseValue   float64 `json:"averageExpenseValue"`
	}

	// CustomerMetrics are the per-customer revenue numbers for one year.
	CustomerMetrics struct {
		CustomerID          string  `json:"kundeId"`
		Revenue             float64 `json:"revenue"`
		OpenInvoicesCount   int     `json:"openInvoicesCount"`
		OpenInvoicesAmount  float64 `json:"openInvoicesAmount"`
		InvoiceCount        int     `json:"invoiceCount"`
		QuoteCount          int     `json:"quoteCount"`
		AcceptedQuotes      int     `json:"acceptedQuotes"`
		QuoteAcceptanceRate float64 `json:"quoteAcceptanceRate"`
	}
)

// MonthlyAnalytics reduces raw invoices and expenses into the trailing
// `months` calendar months up to and including the month of `now`,
// ordered oldest to newest. Revenue counts paid invoices by the month
// they were paid in, expenses count by expense date, and InvoicesCreated
// counts by issue date. Grouping is by calendar month, never by rolling
// 30-day windows.
func MonthlyAnalytics(invoices []Invoice, expenses []Expense, months int, now time.Time) []MonthAnalytics {
	if months <= 0 {
		months = 12
	}

	series := make([]MonthAnalytics, 0, months)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)

	for i := 0; i < months; i++ {
		m := first.AddDate(0, i, 0)
		point := MonthAnalytics{
			Year:  m.Year(),
			Month: int(m.Month()),
			Label: m.Format("01/2006"),
		}

		for _, inv := range invoices {
			if inv.Status == InvoicePaid && !inv.PaidOn.IsZero() && sameMonth(inv.PaidOn, m) {
				point.Revenue += inv.Total
			}
			if !inv.IssueDate.IsZero() && sameMonth(inv.IssueDate, m) {
				point.InvoicesCreated++
			}
		}
		for _, e := range expenses {
			if !e.Date.IsZero() && sameMonth(e.Date, m) {
				point.Expenses += e.Amount
			}
		}

		point.Profit = point.Revenue - point.Expenses
		point.ProfitMargin = ratio(point.Profit, point.Revenue)

		series = append(series, point)
	}

	return series
}

// CategoryBreakdown sums expense amounts per category, sorted by
// descending total. Expenses without a category land in DefaultCategory.
func CategoryBreakdown(expenses []Expense) []CategoryTotal {
	byName := make(map[string]float64)
	for _, e := range expenses {
		name := e.Category
		if name == "" {
			name = DefaultCategory
		}
		byName[name] += e.Amount
	}

	out := make([]CategoryTotal, 0, len(byName))
	for name, value := range byName {
		out = append(out, CategoryTotal{Name: name, Value: value})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// FinancialSummary computes the KPI metrics for one year. Paid invoices
// count toward revenue by the year they were paid in (issue year when no
// payment date is recorded); expenses count by expense date. Open and
// overdue amounts use the outstanding amount net of partial payments.
// Every ratio substitutes 0 when its denominator is 0.
func FinancialSummary(invoices []Invoice, expenses []Expense, quotes []Quote, year int, now time.Time) SummaryMetrics {
	var m SummaryMetrics
	paidCount := 0

	for _, inv := range invoices {
		if inv.Status == InvoicePaid {
			if paidYear(inv) == year {
				m.TotalRevenue += inv.Total
				paidCount++
			}
			continue
		}
		if inv.Status == InvoiceCancelled || inv.IssueDate.Year() != year {
			continue
		}
		m.OpenInvoicesCount++
		m.OpenInvoicesAmount += inv.Outstanding()
		if inv.IsOverdueAt(now) {
			m.OverdueInvoicesCount++
			m.OverdueInvoicesAmount += inv.Outstanding()
		}
	}

	expenseCount := 0
	for _, e := range expenses {
		if e.Date.Year() != year {
			continue
		}
		m.TotalExpenses += e.Amount
		expenseCount++
	}

	accepted, totalQuotes := 0, 0
	for _, q := range quotes {
		if q.IssueDate.Year() != year {
			continue
		}
		totalQuotes++
		if q.Status == QuoteAccepted {
			accepted++
		}
	}

	m.Profit = m.TotalRevenue - m.TotalExpenses
	m.ProfitMargin = ratio(m.Profit, m.TotalRevenue)
	m.QuoteAcceptanceRate = ratio(float64(accepted), float64(totalQuotes))
	m.AverageInvoiceValue = average(m.TotalRevenue, paidCount)
	m.AverageExpenseValue = average(m.TotalExpenses, expenseCount)

	return m
}

// CustomerAnalytics applies the summary revenue and open-amount logic to
// the invoices and quotes of a single customer within one year.
func CustomerAnalytics(invoices []Invoice, quotes []Quote, customerID string, year int, now time.Time) CustomerMetrics {
	m := CustomerMetrics{CustomerID: customerID}

	for _, inv := range invoices {
		if inv.CustomerID != customerID {
			continue
		}
		if inv.Status == InvoicePaid {
			if paidYear(inv) == year {
				m.Revenue += inv.Total
				m.InvoiceCount++
			}
			continue
		}
		if inv.Status == InvoiceCancelled || inv.IssueDate.Year() != year {
			continue
		}
		m.InvoiceCount++
		m.OpenInvoicesCount++
		m.OpenInvoicesAmount += inv.Outstanding()
	}

	for _, q := range quotes {
		if q.CustomerID != customerID || q.IssueDate.Year() != year {
			continue
		}
		m.QuoteCount++
		if q.Status == QuoteAccepted {
			m.AcceptedQuotes++
		}
	}

	m.QuoteAcceptanceRate = ratio(float64(m.AcceptedQuotes), float64(m.QuoteCount))

	return m
}

func sameMonth(d Date, m time.Time) bool {
	return d.Time.Year() == m.Year() && d.Time.Month() == m.Month()
}

// paidYear is the year a paid invoice counts toward: the payment year,
// falling back to the issue year for legacy records without bezahltAm.
func paidYear(inv Invoice) int {
	if !inv.PaidOn.IsZero() {
		return inv.PaidOn.Year()
	}
	return inv.IssueDate.Year()
}

// ratio returns part/whole as a percentage, 0 when whole is 0. Never
// NaN, never Inf.
func ratio(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}

func average(sum float64, count int) float64 {
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
