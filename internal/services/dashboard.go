package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"kontor/internal/core"
)

// Dashboard bundles everything the start page renders in one payload.
type Dashboard struct {
	Summary    core.SummaryMetrics   `json:"summary"`
	Monthly    []core.MonthAnalytics `json:"monthly"`
	Categories []core.CategoryTotal  `json:"categories"`
	Year       int                   `json:"year"`
	LoadedAt   time.Time             `json:"loadedAt"`
}

// DashboardService assembles the dashboard from the finance service.
type DashboardService struct {
	finance *FinanceService
	months  int

	now func() time.Time
}

func NewDashboardService(finance *FinanceService, months int) *DashboardService {
	if months <= 0 {
		months = 12
	}
	return &DashboardService{
		finance: finance,
		months:  months,
		now:     time.Now,
	}
}

// Load fetches summary, monthly trend and category breakdown
// concurrently. The load is all or nothing: if any part fails the
// whole dashboard fails, so the page never renders half the numbers.
func (s *DashboardService) Load(ctx context.Context) (Dashboard, error) {
	now := s.now()
	year := now.Year()

	var (
		summary    core.SummaryMetrics
		monthly    []core.MonthAnalytics
		categories []core.CategoryTotal
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		summary, err = s.finance.FinancialSummary(ctx, year)
		return err
	})
	g.Go(func() error {
		var err error
		monthly, err = s.finance.MonthlyAnalytics(ctx, s.months)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = s.finance.CategoryBreakdown(ctx, year)
		return err
	})

	if err := g.Wait(); err != nil {
		return Dashboard{}, fmt.Errorf("load dashboard: %w", err)
	}

	return Dashboard{
		Summary:    summary,
		Monthly:    monthly,
		Categories: categories,
		Year:       year,
		LoadedAt:   now,
	}, nil
}
