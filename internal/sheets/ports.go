package sheets

import (
	"context"
	"time"

	"kontor/internal/core"
)

// Report is one generated financial report: the yearly KPI summary plus
// the monthly trend and the expense category breakdown it was built from.
type Report struct {
	Year        int
	GeneratedAt time.Time
	Summary     core.SummaryMetrics
	Monthly     []core.MonthAnalytics
	Categories  []core.CategoryTotal
}

// ReportWriter publishes a report to a spreadsheet and returns a
// reference to where it was written.
type ReportWriter interface {
	WriteReport(ctx context.Context, r Report) (string, error)
}
