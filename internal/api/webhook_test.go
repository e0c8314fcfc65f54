package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"carelink/services/api/internal/healthexport"
)

func TestWebhookNotifyImportCompleted(t *testing.T) {
	var received map[string]any
	var authHeader string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode webhook body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	notifier := newImportWebhookNotifier(server.URL, "Bearer hook-key")
	run := healthexport.ImportRun{
		ID:     "run-1",
		UserID: "user-1",
		State:  healthexport.StateCompleted,
		Report: healthexport.ImportReport{Total: 3, Imported: 3},
	}

	if err := notifier.notifyImportCompleted(context.Background(), run); err != nil {
		t.Fatalf("notify failed: %v", err)
	}

	if authHeader != "Bearer hook-key" {
		t.Fatalf("expected auth header to be forwarded, got %q", authHeader)
	}
	if received["event"] != "import_completed" {
		t.Fatalf("unexpected event: %v", received["event"])
	}
	if received["userId"] != "user-1" {
		t.Fatalf("unexpected userId: %v", received["userId"])
	}
}

func TestWebhookNon2xxIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	notifier := newImportWebhookNotifier(server.URL, "")
	err := notifier.notifyImportCompleted(context.Background(), healthexport.ImportRun{ID: "run-1"})
	if err == nil {
		t.Fatal("expected an error for a 502 response")
	}
}

func TestWebhookDisabledWithoutURL(t *testing.T) {
	notifier := newImportWebhookNotifier("", "")
	if notifier.enabled() {
		t.Fatal("notifier without a URL should be disabled")
	}
	if err := notifier.notifyImportCompleted(context.Background(), healthexport.ImportRun{}); err != nil {
		t.Fatalf("disabled notifier should be a no-op, got %v", err)
	}
}
