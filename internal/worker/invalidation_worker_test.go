package worker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"kontor/internal/amqp"
	"kontor/internal/api"
	"kontor/internal/core"
	"kontor/internal/services"
	"kontor/internal/storage"
)

func newWorkerFixture(t *testing.T, handler http.Handler) (*InvalidationWorker, *storage.SnapshotStore) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := api.New(api.Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new api client: %v", err)
	}

	store, err := storage.NewSnapshotStore(filepath.Join(t.TempDir(), "kontor.db"))
	if err != nil {
		t.Fatalf("new snapshot store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	finance := services.NewFinanceService(client, nil, store)
	return NewInvalidationWorker(finance, store, time.Hour), store
}

func TestHandleMutationRefreshesSnapshot(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/finanzen/rechnungen", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": []core.Invoice{{ID: "r-7", Total: 250}}})
	})

	w, store := newWorkerFixture(t, mux)

	msg := amqp.NewMutationMessage(amqp.EntityInvoice, "r-7", amqp.ActionUpdate)
	if err := w.HandleMutation(context.Background(), msg); err != nil {
		t.Fatalf("HandleMutation() error = %v", err)
	}

	payload, _, err := store.Load(context.Background(), "/finanzen/rechnungen")
	if err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}

	var invoices []core.Invoice
	if err := json.Unmarshal(payload, &invoices); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(invoices) != 1 || invoices[0].ID != "r-7" {
		t.Fatalf("snapshot = %+v, want invoice r-7", invoices)
	}
}

func TestHandleMutationSurvivesRefreshFailure(t *testing.T) {
	// Backend down for the refresh. The message must still be acked,
	// the cache clear already happened.
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	w, _ := newWorkerFixture(t, mux)

	msg := amqp.NewMutationMessage(amqp.EntityExpense, "k-1", amqp.ActionDelete)
	if err := w.HandleMutation(context.Background(), msg); err != nil {
		t.Fatalf("HandleMutation() error = %v", err)
	}
}

func TestHandleMutationTimeEntrySkipsRefresh(t *testing.T) {
	// No route registered: a refresh attempt would 404 and log, but
	// time entries skip the refresh entirely.
	w, store := newWorkerFixture(t, http.NewServeMux())

	msg := amqp.NewMutationMessage(amqp.EntityTimeEntry, "z-1", amqp.ActionCreate)
	if err := w.HandleMutation(context.Background(), msg); err != nil {
		t.Fatalf("HandleMutation() error = %v", err)
	}

	if _, _, err := store.Load(context.Background(), "/zeiterfassung"); err == nil {
		t.Fatal("time entry mutation must not write a snapshot")
	}
}
