package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sellsync/sellsync/internal/job"
	"github.com/sellsync/sellsync/internal/observability"
)

func TestCreateJobDecodesRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/jobs" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"job_id":"j-1","resource_key":"acct-1","kind":"bulk_staged_operation","state":"CREATED"}`))
	}))
	defer server.Close()

	c := New(server.URL, observability.NewLogger("test"))

	record, err := c.CreateJob(context.Background(), CreateJobParams{
		ResourceKey: "acct-1",
		Kind:        job.KindBulkStaged,
	})
	if err != nil {
		t.Fatal(err)
	}
	if record.ID != "j-1" || record.State != job.StateCreated {
		t.Fatalf("unexpected record %+v", record)
	}
}

func TestConflictMapsToConflictError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "resource already has an active job", http.StatusConflict)
	}))
	defer server.Close()

	c := New(server.URL, observability.NewLogger("test"))

	_, err := c.CreateJob(context.Background(), CreateJobParams{ResourceKey: "acct-1", Kind: job.KindRecurringCycle})

	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestTransportFailureMapsToNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	c := New(server.URL, observability.NewLogger("test"))

	_, err := c.ListJobs(context.Background(), "")

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
}

func TestValidationErrorsNeverHitNetwork(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	c := New(server.URL, observability.NewLogger("test"))

	var validation *ValidationError
	if _, err := c.CreateJob(context.Background(), CreateJobParams{}); !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, err := c.StartJob(context.Background(), ""); !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, err := c.SubmitQueueItem(context.Background(), ""); !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	if called {
		t.Fatal("validation failure still issued a request")
	}
}

func TestListJobsFiltersByResourceKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("resource_key"); got != "acct-7" {
			t.Fatalf("resource_key = %q, want acct-7", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jobs":[{"job_id":"j-9","resource_key":"acct-7","kind":"recurring_cycle","state":"RUNNING"}]}`))
	}))
	defer server.Close()

	c := New(server.URL, observability.NewLogger("test"))

	jobs, err := c.ListJobs(context.Background(), "acct-7")
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 || jobs[0].ID != "j-9" {
		t.Fatalf("unexpected jobs %+v", jobs)
	}
}
