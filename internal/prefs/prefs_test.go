package prefs

import (
	"testing"

	"github.com/sellsync/sellsync/internal/observability"
)

func roundTrip(t *testing.T, store Store) {
	t.Helper()

	if _, ok, err := store.Get(KeyLastResource); err != nil || ok {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}

	if err := store.Set(KeyLastResource, "acct-7"); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(KeyPollInterval, "5s"); err != nil {
		t.Fatal(err)
	}
	if err := store.Set(KeyLastResource, "acct-9"); err != nil {
		t.Fatal(err)
	}

	value, ok, err := store.Get(KeyLastResource)
	if err != nil || !ok || value != "acct-9" {
		t.Fatalf("Get = (%q, %v, %v), want acct-9", value, ok, err)
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	roundTrip(t, store)
}

func TestBadgerStore(t *testing.T) {
	store, err := NewBadgerStore(t.TempDir(), observability.NewLogger("test"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	roundTrip(t, store)
}
