package memory

import (
	"context"
	"testing"
	"time"

	"kontor/internal/core"
	ports "kontor/internal/sheets"
)

func TestWriteReportStoresAndReferences(t *testing.T) {
	s := New()

	r := ports.Report{
		Year:        2025,
		GeneratedAt: time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
		Summary:     core.SummaryMetrics{TotalRevenue: 1000, TotalExpenses: 400, Profit: 600},
	}

	ref, err := s.WriteReport(context.Background(), r)
	if err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}
	if ref != "mem:1" {
		t.Errorf("ref = %q, want mem:1", ref)
	}

	got := s.Reports()
	if len(got) != 1 {
		t.Fatalf("Reports() len = %d, want 1", len(got))
	}
	if got[0].Summary.Profit != 600 {
		t.Errorf("stored profit = %v, want 600", got[0].Summary.Profit)
	}
}
