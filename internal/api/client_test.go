package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kontor/internal/core"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(Config{BaseURL: srv.URL, CacheTTL: 5 * time.Minute})
	require.NoError(t, err)
	return client, srv
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestReadServedFromCacheWithinTTL(t *testing.T) {
	var calls atomic.Int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{{"id": "r-1", "gesamtbetrag": 100.0, "status": "offen"}}})
	}))

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		invoices, err := client.ListInvoices(ctx, ListParams{})
		require.NoError(t, err)
		require.Len(t, invoices, 1)
		assert.Equal(t, "r-1", invoices[0].ID)
	}

	assert.Equal(t, int64(1), calls.Load(), "only the first read within the TTL may hit the network")
}

func TestDifferentParamsAreDifferentCacheEntries(t *testing.T) {
	var calls atomic.Int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`[]`))
	}))

	ctx := context.Background()
	_, err := client.ListInvoices(ctx, ListParams{StartDate: core.NewDate(2025, 1, 1)})
	require.NoError(t, err)
	_, err = client.ListInvoices(ctx, ListParams{StartDate: core.NewDate(2025, 2, 1)})
	require.NoError(t, err)

	assert.Equal(t, int64(2), calls.Load())
}

func TestMutationClearsWholeCache(t *testing.T) {
	var gets atomic.Int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			gets.Add(1)
			w.Write([]byte(`[]`))
		default:
			w.Write([]byte(`{"data":{"id":"e-1","beschreibung":"Neu","betrag":10,"datum":"2025-01-01","status":"eingereicht"}}`))
		}
	}))

	ctx := context.Background()
	_, err := client.ListInvoices(ctx, ListParams{})
	require.NoError(t, err)
	_, err = client.ListQuotes(ctx, ListParams{})
	require.NoError(t, err)
	require.Equal(t, int64(2), gets.Load())

	// Mutating a different entity still drops everything.
	_, err = client.CreateExpense(ctx, core.Expense{Description: "Neu", Amount: 10, Date: core.NewDate(2025, 1, 1), Status: core.ExpenseSubmitted})
	require.NoError(t, err)

	_, err = client.ListInvoices(ctx, ListParams{})
	require.NoError(t, err)
	_, err = client.ListQuotes(ctx, ListParams{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), gets.Load(), "every previously cached read must refetch after a write")
}

func TestEnvelopeUnwrapBothShapes(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/finanzen/rechnungen/wrapped":
			w.Write([]byte(`{"data":{"id":"wrapped","rechnungsdatum":"2025-01-01","status":"offen"}}`))
		case "/finanzen/rechnungen/bare":
			w.Write([]byte(`{"id":"bare","rechnungsdatum":"2025-01-01","status":"offen"}`))
		default:
			http.NotFound(w, r)
		}
	}))

	ctx := context.Background()

	wrapped, err := client.GetInvoice(ctx, "wrapped")
	require.NoError(t, err)
	assert.Equal(t, "wrapped", wrapped.ID)

	bare, err := client.GetInvoice(ctx, "bare")
	require.NoError(t, err)
	assert.Equal(t, "bare", bare.ID)
}

func TestServerErrorSurfacesBackendMessage(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"Custom error message"}`))
	}))

	_, err := client.ListInvoices(context.Background(), ListParams{})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindServer, apiErr.Kind)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "Custom error message", apiErr.Error())
}

func TestServerErrorWithoutMessageGetsStatusText(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`boom`))
	}))

	_, err := client.ListInvoices(context.Background(), ListParams{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindServer, apiErr.Kind)
	assert.Contains(t, apiErr.Error(), "500")
}

func TestConnectivityErrorUsesFixedMessage(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // nothing is listening anymore

	client, err := New(Config{BaseURL: srv.URL, Timeout: time.Second})
	require.NoError(t, err)

	_, err = client.ListInvoices(context.Background(), ListParams{})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindConnectivity, apiErr.Kind)
	assert.Equal(t, MsgNoConnection, apiErr.Error())
	assert.True(t, IsConnectivity(err))
}

func TestFailureIsNeverCached(t *testing.T) {
	var calls atomic.Int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"message":"Wartung"}`))
			return
		}
		w.Write([]byte(`[]`))
	}))

	ctx := context.Background()
	_, err := client.ListInvoices(ctx, ListParams{})
	require.Error(t, err)

	// The retry goes back to the network and succeeds.
	invoices, err := client.ListInvoices(ctx, ListParams{})
	require.NoError(t, err)
	assert.Empty(t, invoices)
	assert.Equal(t, int64(2), calls.Load())
}

func TestBulkStatusUpdateBody(t *testing.T) {
	var got BulkStatusRequest
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/finanzen/rechnungen/bulk-status", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"data":true}`))
	}))

	err := client.BulkUpdateInvoiceStatus(context.Background(), []string{"r-1", "r-2"}, core.InvoicePaid)
	require.NoError(t, err)
	assert.Equal(t, []string{"r-1", "r-2"}, got.InvoiceIDs)
	assert.Equal(t, core.InvoicePaid, got.Status)
}

func TestExportReturnsRawBody(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/finanzen/export/rechnungen", r.URL.Path)
		require.Equal(t, "csv", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte("id;betrag\nr-1;100\n"))
	}))

	data, contentType, err := client.Export(context.Background(), "rechnungen", "csv", core.NewDate(2025, 1, 1), core.NewDate(2025, 12, 31))
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Equal(t, "id;betrag\nr-1;100\n", string(data))
}

func TestCacheKeyCanonicalOrder(t *testing.T) {
	a := url.Values{}
	a.Set("startDate", "2025-01-01")
	a.Set("endDate", "2025-12-31")

	b := url.Values{}
	b.Set("endDate", "2025-12-31")
	b.Set("startDate", "2025-01-01")

	assert.Equal(t, cacheKey("/finanzen/rechnungen", a), cacheKey("/finanzen/rechnungen", b))
	assert.NotEqual(t, cacheKey("/finanzen/rechnungen", a), cacheKey("/finanzen/angebote", a))
}

func TestConvertQuoteToInvoice(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/finanzen/angebote/a-1/convert-to-invoice", r.URL.Path)
		w.Write([]byte(`{"data":{"id":"r-9","status":"entwurf","rechnungsdatum":"2025-05-01","gesamtbetrag":1200}}`))
	}))

	inv, err := client.ConvertQuoteToInvoice(context.Background(), "a-1")
	require.NoError(t, err)
	assert.Equal(t, "r-9", inv.ID)
	assert.Equal(t, core.InvoiceDraft, inv.Status)
}
