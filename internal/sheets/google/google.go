package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"kontor/internal/core"
	ports "kontor/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Client writes financial reports to a Google Spreadsheet. Every report
// goes to its own year-suffixed sheet so past reports stay untouched.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	reportBase    string
}

var _ ports.ReportWriter = (*Client)(nil)

// New creates a Sheets client for the given spreadsheet. reportBase is
// the sheet name without the year suffix (e.g. "Berichte").
func New(ctx context.Context, spreadsheetID, reportBase string) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	if strings.TrimSpace(reportBase) == "" {
		reportBase = "Berichte"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		reportBase:    reportBase,
	}, nil
}

// newSheetsService initializes a Sheets Service using Service Account
// credentials from GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE
// or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// WriteReport replaces the content of the year's report sheet with the
// given report and returns the written range.
func (c *Client) WriteReport(ctx context.Context, r ports.Report) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	sheetName := fmt.Sprintf("%s %d", c.reportBase, r.Year)
	rows := reportRows(r)

	// Clear the old report first so a shorter new report leaves no
	// trailing rows behind.
	clearRange := fmt.Sprintf("%s!A:E", sheetName)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("clear %s: %w", clearRange, err)
	}

	writeRange := fmt.Sprintf("%s!A1", sheetName)
	vr := &gsheet.ValueRange{Values: rows}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, writeRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return "", fmt.Errorf("write report to %s: %w", sheetName, err)
	}

	return fmt.Sprintf("%s!A1:E%d", sheetName, len(rows)), nil
}

// reportRows lays the report out as spreadsheet rows: a header block
// with the KPI summary, then the monthly table, then the category table.
func reportRows(r ports.Report) [][]any {
	rows := [][]any{
		{fmt.Sprintf("Finanzbericht %d", r.Year), "", "", "", ""},
		{"Erstellt am", r.GeneratedAt.Format("2006-01-02 15:04"), "", "", ""},
		{},
		{"Kennzahl", "Wert"},
		{"Gesamtumsatz", r.Summary.TotalRevenue},
		{"Gesamtkosten", r.Summary.TotalExpenses},
		{"Gewinn", r.Summary.Profit},
		{"Gewinnmarge %", r.Summary.ProfitMargin},
		{"Offene Rechnungen", r.Summary.OpenInvoicesCount},
		{"Offener Betrag", r.Summary.OpenInvoicesAmount},
		{"Ueberfaellige Rechnungen", r.Summary.OverdueInvoicesCount},
		{"Ueberfaelliger Betrag", r.Summary.OverdueInvoicesAmount},
		{"Angebotsannahme %", r.Summary.QuoteAcceptanceRate},
		{},
		{"Monat", "Umsatz", "Kosten", "Gewinn", "Rechnungen"},
	}

	for _, m := range r.Monthly {
		rows = append(rows, []any{m.Label, m.Revenue, m.Expenses, m.Profit, m.InvoicesCreated})
	}

	rows = append(rows, []any{}, []any{"Kategorie", "Betrag"})
	for _, c := range r.Categories {
		name := c.Name
		if name == "" {
			name = core.DefaultCategory
		}
		rows = append(rows, []any{name, c.Value})
	}

	return rows
}
