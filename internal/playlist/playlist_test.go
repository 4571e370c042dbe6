package playlist_test

import (
	"testing"

	"dialtone/internal/catalog"
	"dialtone/internal/logging"
	"dialtone/internal/playlist"
	"dialtone/internal/registry"
	"dialtone/internal/testsupport"
)

func newRegistries(t *testing.T) (*registry.Registry, *playlist.Registry) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.NewMemStore(t, cfg)
	keys := registry.New(store, nil, logging.NewNop())
	return keys, playlist.NewRegistry(keys, logging.NewNop())
}

func TestBuildFromEntryCanonicalOrder(t *testing.T) {
	_, playlists := newRegistries(t)

	entry := catalog.Entry{
		AudioKey:       "911",
		Kind:           catalog.KindAudio,
		GapMs:          500,
		DurationMs:     8000,
		RingDurationMs: 2000,
		PreviousKeys:   []string{"a", "b"},
		NextKeys:       []string{"c"},
	}
	p := playlists.BuildFromEntry(entry)

	wantKeys := []string{"b", "a", playlist.RingbackKey, "911", playlist.ClickKey, "c"}
	if len(p.Nodes) != len(wantKeys) {
		t.Fatalf("expected %d nodes, got %d: %#v", len(wantKeys), len(p.Nodes), p.Nodes)
	}
	for i, want := range wantKeys {
		if p.Nodes[i].AudioKey != want {
			t.Fatalf("node %d = %q, want %q (full: %#v)", i, p.Nodes[i].AudioKey, want, p.Nodes)
		}
	}

	// Previous nodes play back to back.
	if p.Nodes[0].GapMs != 0 || p.Nodes[1].GapMs != 0 {
		t.Fatal("previous nodes must have zero gap")
	}
	// Ringback carries the entry's ring duration.
	if p.Nodes[2].DurationMs != 2000 {
		t.Fatalf("ringback duration = %d, want 2000", p.Nodes[2].DurationMs)
	}
	// The main node carries the entry's own timing.
	if p.Nodes[3].GapMs != 500 || p.Nodes[3].DurationMs != 8000 {
		t.Fatalf("main node timing wrong: %#v", p.Nodes[3])
	}
}

func TestBuildFromEntrySkipsRingbackWhenNotRinging(t *testing.T) {
	_, playlists := newRegistries(t)

	p := playlists.BuildFromEntry(catalog.Entry{AudioKey: "411", Kind: catalog.KindAudio})

	wantKeys := []string{"411", playlist.ClickKey}
	if len(p.Nodes) != len(wantKeys) {
		t.Fatalf("expected %d nodes, got %#v", len(wantKeys), p.Nodes)
	}
	for i, want := range wantKeys {
		if p.Nodes[i].AudioKey != want {
			t.Fatalf("node %d = %q, want %q", i, p.Nodes[i].AudioKey, want)
		}
	}
}

func TestBuildFromEntryReplacesExisting(t *testing.T) {
	_, playlists := newRegistries(t)

	playlists.BuildFromEntry(catalog.Entry{AudioKey: "411", Kind: catalog.KindAudio, NextKeys: []string{"x"}})
	playlists.BuildFromEntry(catalog.Entry{AudioKey: "411", Kind: catalog.KindAudio})

	p, _ := playlists.Get("411")
	if len(p.Nodes) != 2 {
		t.Fatalf("rebuild did not replace nodes: %#v", p.Nodes)
	}
}

func TestCreateRespectsOverwriteFlag(t *testing.T) {
	_, playlists := newRegistries(t)

	playlists.Create("greeting", false)
	playlists.Append("greeting", "hello", 0)

	// Without overwrite the existing playlist is returned untouched.
	playlists.Create("greeting", false)
	if p, _ := playlists.Get("greeting"); len(p.Nodes) != 1 {
		t.Fatalf("create without overwrite mutated playlist: %#v", p.Nodes)
	}

	playlists.Create("greeting", true)
	if p, _ := playlists.Get("greeting"); len(p.Nodes) != 0 {
		t.Fatalf("create with overwrite kept nodes: %#v", p.Nodes)
	}
}

func TestAppendPrependReplace(t *testing.T) {
	_, playlists := newRegistries(t)

	playlists.Append("seq", "middle", 100)
	playlists.Prepend("seq", "first", 0)
	playlists.Append("seq", "last", 0)

	p, _ := playlists.Get("seq")
	got := []string{p.Nodes[0].AudioKey, p.Nodes[1].AudioKey, p.Nodes[2].AudioKey}
	if got[0] != "first" || got[1] != "middle" || got[2] != "last" {
		t.Fatalf("unexpected order: %v", got)
	}

	playlists.Replace("seq", "only", 250)
	p, _ = playlists.Get("seq")
	if len(p.Nodes) != 1 || p.Nodes[0].AudioKey != "only" || p.Nodes[0].DurationMs != 250 {
		t.Fatalf("replace failed: %#v", p.Nodes)
	}
}

func TestResolveCountsWithoutDropping(t *testing.T) {
	keys, playlists := newRegistries(t)
	keys.Register("known", "http://sounds.test/known.mp3", "")

	playlists.Append("mixed", "known", 0)
	playlists.Append("mixed", "unknown", 0)

	if valid := playlists.Resolve("mixed"); valid != 1 {
		t.Fatalf("expected 1 valid node, got %d", valid)
	}

	// Lenient validation: the invalid node stays in place.
	p, _ := playlists.Get("mixed")
	if len(p.Nodes) != 2 {
		t.Fatalf("invalid node was dropped: %#v", p.Nodes)
	}
}

func TestResolveAfterLateRegistration(t *testing.T) {
	keys, playlists := newRegistries(t)

	// The playlist references a key registered later in the same pass.
	playlists.Append("late", "late-key", 0)
	if valid := playlists.Resolve("late"); valid != 0 {
		t.Fatalf("key should not resolve yet, got %d", valid)
	}

	keys.Register("late-key", "http://sounds.test/late.mp3", "")
	if valid := playlists.Resolve("late"); valid != 1 {
		t.Fatalf("late registration not visible, got %d", valid)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	_, playlists := newRegistries(t)
	playlists.Append("p", "k", 0)

	p, _ := playlists.Get("p")
	p.Nodes[0].AudioKey = "mutated"

	again, _ := playlists.Get("p")
	if again.Nodes[0].AudioKey != "k" {
		t.Fatal("Get must return an isolated copy")
	}
}

func TestRemoveAndNames(t *testing.T) {
	_, playlists := newRegistries(t)
	playlists.Append("b", "k", 0)
	playlists.Append("a", "k", 0)

	names := playlists.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("names not sorted: %v", names)
	}

	playlists.Remove("a")
	if _, ok := playlists.Get("a"); ok {
		t.Fatal("removed playlist still present")
	}
}
