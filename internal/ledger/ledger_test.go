package ledger_test

import (
	"context"
	"testing"

	"dialtone/internal/ledger"
	"dialtone/internal/testsupport"
)

func openLedger(t *testing.T) *ledger.Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAppendAndRecent(t *testing.T) {
	store := openLedger(t)
	ctx := context.Background()

	records := []ledger.Record{
		{URL: "http://sounds.test/a.mp3", Path: "/cache/a.mp3", Bytes: 100, Outcome: "downloaded", DurationMs: 40},
		{URL: "http://sounds.test/b.mp3", Path: "/cache/b.mp3", Outcome: "failed", Error: "status 404"},
		{URL: "http://sounds.test/c.mp3", Path: "/cache/c.mp3", Bytes: 250, Outcome: "downloaded", CycleID: "cycle-1"},
	}
	for _, rec := range records {
		if err := store.Append(ctx, rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	recent, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("limit not applied: %d records", len(recent))
	}
	// Newest first.
	if recent[0].URL != "http://sounds.test/c.mp3" {
		t.Fatalf("unexpected order: %s", recent[0].URL)
	}
	if recent[0].CycleID != "cycle-1" {
		t.Fatalf("cycle id lost: %q", recent[0].CycleID)
	}
	if recent[1].Error != "status 404" {
		t.Fatalf("error message lost: %q", recent[1].Error)
	}
	if recent[0].CreatedAt.IsZero() {
		t.Fatal("created_at not populated")
	}
}

func TestStats(t *testing.T) {
	store := openLedger(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.Append(ctx, ledger.Record{URL: "u", Path: "p", Outcome: "downloaded"}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := store.Append(ctx, ledger.Record{URL: "u", Path: "p", Outcome: "failed"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats["downloaded"] != 3 || stats["failed"] != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
}

func TestClear(t *testing.T) {
	store := openLedger(t)
	ctx := context.Background()

	if err := store.Append(ctx, ledger.Record{URL: "u", Path: "p", Outcome: "downloaded"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	removed, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	recent, err := store.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 0 {
		t.Fatalf("records survived clear: %d", len(recent))
	}
}

func TestNilStoreIsSafe(t *testing.T) {
	var store *ledger.Store
	ctx := context.Background()

	if err := store.Append(ctx, ledger.Record{URL: "u"}); err != nil {
		t.Fatalf("nil Append: %v", err)
	}
	if recs, err := store.Recent(ctx, 5); err != nil || recs != nil {
		t.Fatalf("nil Recent: %v %v", recs, err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}
	if store.Path() != "" {
		t.Fatal("nil Path should be empty")
	}
}
