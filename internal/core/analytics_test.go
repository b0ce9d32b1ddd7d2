package core

import (
	"math"
	"testing"
	"time"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func TestMonthlyAnalyticsSeriesShape(t *testing.T) {
	for _, months := range []int{1, 3, 12, 24} {
		series := MonthlyAnalytics(nil, nil, months, testNow)
		if len(series) != months {
			t.Fatalf("months=%d: expected %d points, got %d", months, months, len(series))
		}
		for i := 1; i < len(series); i++ {
			prev := time.Date(series[i-1].Year, time.Month(series[i-1].Month), 1, 0, 0, 0, 0, time.UTC)
			cur := time.Date(series[i].Year, time.Month(series[i].Month), 1, 0, 0, 0, 0, time.UTC)
			if !cur.After(prev) {
				t.Fatalf("months=%d: series not ordered oldest to newest at index %d", months, i)
			}
		}
		last := series[len(series)-1]
		if last.Year != testNow.Year() || last.Month != int(testNow.Month()) {
			t.Fatalf("months=%d: last point should be the current month, got %d-%d", months, last.Year, last.Month)
		}
	}
}

func TestMonthlyAnalyticsDefaultsToTwelve(t *testing.T) {
	if got := len(MonthlyAnalytics(nil, nil, 0, testNow)); got != 12 {
		t.Fatalf("expected 12 points for months=0, got %d", got)
	}
}

func TestMonthlyAnalyticsReducesByCalendarMonth(t *testing.T) {
	invoices := []Invoice{
		{Status: InvoicePaid, Total: 1000, PaidOn: NewDate(2025, 5, 2), IssueDate: NewDate(2025, 4, 20)},
		{Status: InvoicePaid, Total: 250, PaidOn: NewDate(2025, 5, 31), IssueDate: NewDate(2025, 5, 1)},
		// Open invoices never contribute revenue.
		{Status: InvoiceOpen, Total: 9999, IssueDate: NewDate(2025, 5, 10)},
		// A paid invoice without a payment date cannot be placed in a month.
		{Status: InvoicePaid, Total: 400, IssueDate: NewDate(2025, 5, 3)},
	}
	expenses := []Expense{
		{Amount: 300, Date: NewDate(2025, 5, 15)},
		{Amount: 100, Date: NewDate(2025, 4, 1)},
	}

	series := MonthlyAnalytics(invoices, expenses, 3, testNow)

	april, may, june := series[0], series[1], series[2]
	if april.Revenue != 0 || april.Expenses != 100 || april.InvoicesCreated != 1 {
		t.Fatalf("april wrong: %+v", april)
	}
	if may.Revenue != 1250 {
		t.Fatalf("may revenue: expected 1250, got %v", may.Revenue)
	}
	if may.Expenses != 300 {
		t.Fatalf("may expenses: expected 300, got %v", may.Expenses)
	}
	if may.InvoicesCreated != 3 {
		t.Fatalf("may invoicesCreated: expected 3, got %d", may.InvoicesCreated)
	}
	if may.Profit != may.Revenue-may.Expenses {
		t.Fatalf("profit identity broken: %+v", may)
	}
	if june.Revenue != 0 || june.Expenses != 0 {
		t.Fatalf("june should be empty: %+v", june)
	}
}

func TestMonthlyAnalyticsMarginGuardsZeroRevenue(t *testing.T) {
	expenses := []Expense{{Amount: 50, Date: NewDate(2025, 6, 1)}}
	series := MonthlyAnalytics(nil, expenses, 1, testNow)
	p := series[0]
	if p.ProfitMargin != 0 {
		t.Fatalf("expected margin 0 with zero revenue, got %v", p.ProfitMargin)
	}
	if math.IsNaN(p.ProfitMargin) || math.IsInf(p.ProfitMargin, 0) {
		t.Fatalf("margin must never be NaN/Inf")
	}
}

func TestCategoryBreakdown(t *testing.T) {
	expenses := []Expense{
		{Category: "Personal", Amount: 500},
		{Category: "Personal", Amount: 300},
		{Category: "Material", Amount: 200},
	}

	got := CategoryBreakdown(expenses)

	want := []CategoryTotal{{Name: "Personal", Value: 800}, {Name: "Material", Value: 200}}
	if len(got) != len(want) {
		t.Fatalf("expected %d buckets, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("bucket %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestCategoryBreakdownDefaultBucketAndSumPreserved(t *testing.T) {
	expenses := []Expense{
		{Category: "", Amount: 120},
		{Category: "Material", Amount: 80},
		{Category: "", Amount: 30},
	}

	got := CategoryBreakdown(expenses)

	var sum float64
	foundDefault := false
	for _, c := range got {
		sum += c.Value
		if c.Name == DefaultCategory {
			foundDefault = true
			if c.Value != 150 {
				t.Fatalf("default bucket: expected 150, got %v", c.Value)
			}
		}
	}
	if !foundDefault {
		t.Fatalf("missing %q bucket", DefaultCategory)
	}
	if sum != 230 {
		t.Fatalf("breakdown must preserve the total: expected 230, got %v", sum)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Value > got[i-1].Value {
			t.Fatalf("breakdown not sorted descending: %+v", got)
		}
	}
}

func TestFinancialSummaryWorkedExample(t *testing.T) {
	invoices := []Invoice{
		{Status: InvoicePaid, Total: 1000, PaidOn: NewDate(2025, 3, 1), IssueDate: NewDate(2025, 2, 1)},
		{Status: InvoiceOpen, Total: 500, IssueDate: NewDate(2025, 4, 1), DueDate: NewDate(2025, 12, 31)},
	}
	expenses := []Expense{
		{Amount: 300, Date: NewDate(2025, 1, 10)},
		{Amount: 200, Date: NewDate(2025, 2, 20)},
	}

	m := FinancialSummary(invoices, expenses, nil, 2025, testNow)

	if m.TotalRevenue != 1000 {
		t.Fatalf("totalRevenue: expected 1000, got %v", m.TotalRevenue)
	}
	if m.TotalExpenses != 500 {
		t.Fatalf("totalExpenses: expected 500, got %v", m.TotalExpenses)
	}
	if m.Profit != 500 {
		t.Fatalf("profit: expected 500, got %v", m.Profit)
	}
	if m.ProfitMargin != 50 {
		t.Fatalf("profitMargin: expected 50, got %v", m.ProfitMargin)
	}
	if m.OpenInvoicesCount != 1 || m.OpenInvoicesAmount != 500 {
		t.Fatalf("open invoices: expected 1/500, got %d/%v", m.OpenInvoicesCount, m.OpenInvoicesAmount)
	}
	if m.OverdueInvoicesCount != 0 {
		t.Fatalf("nothing is overdue before the due date, got %d", m.OverdueInvoicesCount)
	}
}

func TestFinancialSummaryOverdueAndRatios(t *testing.T) {
	invoices := []Invoice{
		{Status: InvoiceOpen, Total: 400, IssueDate: NewDate(2025, 1, 5), DueDate: NewDate(2025, 2, 1)},
		{Status: InvoicePartiallyPaid, Total: 600, IssueDate: NewDate(2025, 1, 6), DueDate: NewDate(2025, 3, 1),
			PartialPayments: []PartialPayment{{Amount: 100, Date: NewDate(2025, 2, 1)}}},
		{Status: InvoiceCancelled, Total: 9999, IssueDate: NewDate(2025, 1, 7), DueDate: NewDate(2025, 2, 1)},
	}
	quotes := []Quote{
		{Status: QuoteAccepted, IssueDate: NewDate(2025, 1, 1)},
		{Status: QuoteSent, IssueDate: NewDate(2025, 2, 1)},
		{Status: QuoteRejected, IssueDate: NewDate(2025, 3, 1)},
		{Status: QuoteAccepted, IssueDate: NewDate(2025, 4, 1)},
	}

	m := FinancialSummary(invoices, nil, quotes, 2025, testNow)

	if m.OpenInvoicesCount != 2 {
		t.Fatalf("open count: expected 2, got %d", m.OpenInvoicesCount)
	}
	// 400 + (600-100), the cancelled invoice is ignored.
	if m.OpenInvoicesAmount != 900 {
		t.Fatalf("open amount: expected 900, got %v", m.OpenInvoicesAmount)
	}
	if m.OverdueInvoicesCount != 2 || m.OverdueInvoicesAmount != 900 {
		t.Fatalf("overdue: expected 2/900, got %d/%v", m.OverdueInvoicesCount, m.OverdueInvoicesAmount)
	}
	if m.QuoteAcceptanceRate != 50 {
		t.Fatalf("acceptance rate: expected 50, got %v", m.QuoteAcceptanceRate)
	}
	if m.ProfitMargin != 0 {
		t.Fatalf("margin must be 0 with zero revenue, got %v", m.ProfitMargin)
	}
	if m.AverageInvoiceValue != 0 || m.AverageExpenseValue != 0 {
		t.Fatalf("averages must be 0 without records: %+v", m)
	}
}

func TestFinancialSummaryAverages(t *testing.T) {
	invoices := []Invoice{
		{Status: InvoicePaid, Total: 100, PaidOn: NewDate(2025, 1, 1), IssueDate: NewDate(2025, 1, 1)},
		{Status: InvoicePaid, Total: 300, PaidOn: NewDate(2025, 2, 1), IssueDate: NewDate(2025, 1, 1)},
		// Paid in another year, excluded.
		{Status: InvoicePaid, Total: 999, PaidOn: NewDate(2024, 12, 1), IssueDate: NewDate(2024, 11, 1)},
	}
	expenses := []Expense{
		{Amount: 60, Date: NewDate(2025, 1, 1)},
		{Amount: 40, Date: NewDate(2025, 2, 1)},
	}

	m := FinancialSummary(invoices, expenses, nil, 2025, testNow)

	if m.TotalRevenue != 400 {
		t.Fatalf("revenue: expected 400, got %v", m.TotalRevenue)
	}
	if m.AverageInvoiceValue != 200 {
		t.Fatalf("avg invoice: expected 200, got %v", m.AverageInvoiceValue)
	}
	if m.AverageExpenseValue != 50 {
		t.Fatalf("avg expense: expected 50, got %v", m.AverageExpenseValue)
	}
}

func TestCustomerAnalytics(t *testing.T) {
	invoices := []Invoice{
		{CustomerID: "k1", Status: InvoicePaid, Total: 800, PaidOn: NewDate(2025, 1, 10), IssueDate: NewDate(2025, 1, 1)},
		{CustomerID: "k1", Status: InvoiceOpen, Total: 200, IssueDate: NewDate(2025, 2, 1), DueDate: NewDate(2025, 12, 1)},
		{CustomerID: "k2", Status: InvoicePaid, Total: 5000, PaidOn: NewDate(2025, 1, 1), IssueDate: NewDate(2025, 1, 1)},
	}
	quotes := []Quote{
		{CustomerID: "k1", Status: QuoteAccepted, IssueDate: NewDate(2025, 1, 1)},
		{CustomerID: "k1", Status: QuoteSent, IssueDate: NewDate(2025, 2, 1)},
		{CustomerID: "k2", Status: QuoteAccepted, IssueDate: NewDate(2025, 1, 1)},
	}

	m := CustomerAnalytics(invoices, quotes, "k1", 2025, testNow)

	if m.Revenue != 800 {
		t.Fatalf("revenue: expected 800, got %v", m.Revenue)
	}
	if m.OpenInvoicesCount != 1 || m.OpenInvoicesAmount != 200 {
		t.Fatalf("open: expected 1/200, got %d/%v", m.OpenInvoicesCount, m.OpenInvoicesAmount)
	}
	if m.InvoiceCount != 2 || m.QuoteCount != 2 || m.AcceptedQuotes != 1 {
		t.Fatalf("counts wrong: %+v", m)
	}
	if m.QuoteAcceptanceRate != 50 {
		t.Fatalf("acceptance rate: expected 50, got %v", m.QuoteAcceptanceRate)
	}
}
