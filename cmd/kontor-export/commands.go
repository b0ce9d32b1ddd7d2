package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"kontor/internal/api"
	"kontor/internal/config"
	"kontor/internal/core"
	"kontor/internal/services"
	"kontor/internal/sheets"
	gsheet "kontor/internal/sheets/google"
)

var (
	flagYear   int
	flagMonths int
	flagOutput string
	flagFormat string
	flagStart  string
	flagEnd    string
)

var rootCmd = &cobra.Command{
	Use:   "kontor-export",
	Short: "Export financial reports and raw data from the kontor backend",
	Long: `kontor-export reads finance data through the backend API and turns it
into reports: JSON summaries and trend series on stdout, spreadsheet
reports in Google Sheets, or raw export files (CSV, PDF) from the
backend's export endpoint.

Configuration comes from the same environment variables as the kontor
server (API_BASE_URL, API_TOKEN, GOOGLE_SPREADSHEET_ID, ...).`,
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the yearly financial summary as JSON",
	Example: `  # Summary for the current year
  kontor-export summary

  # Summary for 2024, written to a file
  kontor-export summary --year 2024 -o summary-2024.json`,
	RunE: runSummary,
}

var monthlyCmd = &cobra.Command{
	Use:   "monthly",
	Short: "Print the monthly revenue/expense trend as JSON",
	RunE:  runMonthly,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write the yearly financial report to Google Sheets",
	Long: `Builds the full report (summary, monthly trend, category breakdown)
and writes it to the configured spreadsheet. Requires
GOOGLE_SPREADSHEET_ID and service account credentials.`,
	RunE: runReport,
}

var downloadCmd = &cobra.Command{
	Use:   "download <rechnungen|angebote|projektkosten>",
	Short: "Download a raw export file from the backend",
	Example: `  # All invoices of a date range as CSV
  kontor-export download rechnungen --format csv --start 2025-01-01 --end 2025-06-30 -o rechnungen.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "", "write output to file instead of stdout")

	summaryCmd.Flags().IntVar(&flagYear, "year", time.Now().Year(), "report year")
	monthlyCmd.Flags().IntVar(&flagMonths, "months", 12, "number of trailing months")
	reportCmd.Flags().IntVar(&flagYear, "year", time.Now().Year(), "report year")
	downloadCmd.Flags().StringVar(&flagFormat, "format", "csv", "export format (csv, pdf)")
	downloadCmd.Flags().StringVar(&flagStart, "start", "", "start date (2006-01-02)")
	downloadCmd.Flags().StringVar(&flagEnd, "end", "", "end date (2006-01-02)")

	rootCmd.AddCommand(summaryCmd, monthlyCmd, reportCmd, downloadCmd)
}

// newFinanceService builds a service from the environment, without
// snapshot store or event bus. Exports are one-shot reads.
func newFinanceService() (*services.FinanceService, *config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	apiClient, err := api.New(api.Config{
		BaseURL:   cfg.APIBaseURL,
		Token:     cfg.APIToken,
		Timeout:   cfg.APITimeout,
		CacheTTL:  cfg.CacheTTL,
		CacheSize: cfg.CacheSize,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("api client: %w", err)
	}

	return services.NewFinanceService(apiClient, nil, nil), cfg, nil
}

func runSummary(cmd *cobra.Command, args []string) error {
	finance, _, err := newFinanceService()
	if err != nil {
		return err
	}

	summary, err := finance.FinancialSummary(cmd.Context(), flagYear)
	if err != nil {
		return err
	}
	return writeJSONOutput(summary)
}

func runMonthly(cmd *cobra.Command, args []string) error {
	finance, _, err := newFinanceService()
	if err != nil {
		return err
	}

	series, err := finance.MonthlyAnalytics(cmd.Context(), flagMonths)
	if err != nil {
		return err
	}
	return writeJSONOutput(series)
}

func runReport(cmd *cobra.Command, args []string) error {
	finance, cfg, err := newFinanceService()
	if err != nil {
		return err
	}
	if cfg.GoogleSpreadsheetID == "" {
		return fmt.Errorf("GOOGLE_SPREADSHEET_ID is required for the report command")
	}

	ctx := cmd.Context()

	summary, err := finance.FinancialSummary(ctx, flagYear)
	if err != nil {
		return err
	}
	monthly, err := finance.MonthlyAnalytics(ctx, 12)
	if err != nil {
		return err
	}
	categories, err := finance.CategoryBreakdown(ctx, flagYear)
	if err != nil {
		return err
	}

	writer, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleReportSheet)
	if err != nil {
		return err
	}

	ref, err := writer.WriteReport(ctx, sheets.Report{
		Year:        flagYear,
		GeneratedAt: time.Now(),
		Summary:     summary,
		Monthly:     monthly,
		Categories:  categories,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", ref)
	return nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	finance, _, err := newFinanceService()
	if err != nil {
		return err
	}

	start, err := parseDateFlag(flagStart)
	if err != nil {
		return fmt.Errorf("invalid --start: %w", err)
	}
	end, err := parseDateFlag(flagEnd)
	if err != nil {
		return fmt.Errorf("invalid --end: %w", err)
	}

	data, contentType, err := finance.Export(cmd.Context(), args[0], flagFormat, start, end)
	if err != nil {
		return err
	}

	if flagOutput == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(flagOutput, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", flagOutput, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d bytes (%s) to %s\n", len(data), contentType, flagOutput)
	return nil
}

func parseDateFlag(v string) (core.Date, error) {
	if v == "" {
		return core.Date{}, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return core.Date{}, err
	}
	return core.Date{Time: t}, nil
}

func writeJSONOutput(payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if flagOutput == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(flagOutput, data, 0644)
}
