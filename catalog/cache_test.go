package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/onnwee/record-herald/hexapi"
	"github.com/onnwee/record-herald/telemetry"
)

func init() {
	telemetry.Init()
}

type fakeSource struct {
	packs []hexapi.Pack
	err   error
	calls int
}

func (f *fakeSource) Packs(ctx context.Context) ([]hexapi.Pack, error) {
	f.calls++
	return f.packs, f.err
}

func pack(id, name string, levels ...hexapi.Level) hexapi.Pack {
	return hexapi.Pack{ID: id, Name: name, Levels: levels}
}

func level(id, name string, mults ...float64) hexapi.Level {
	var l hexapi.Level
	l.ID = id
	l.Name = name
	l.Options.DifficultyMult = mults
	return l
}

func TestResolveBuildsOnFirstUse(t *testing.T) {
	src := &fakeSource{packs: []hexapi.Pack{pack("p1", "Pack One", level("l1", "Level One", 1, 1.5))}}
	c := New(src)
	meta, err := c.Resolve(context.Background(), "p1", "l1", 1.5)
	if err != nil {
		t.Fatal(err)
	}
	if meta.PackName != "Pack One" || meta.LevelName != "Level One" || meta.Variants != 2 {
		t.Fatalf("meta: %+v", meta)
	}
	if src.calls != 1 {
		t.Fatalf("expected 1 catalog fetch, got %d", src.calls)
	}
	// Second resolve hits the table.
	if _, err := c.Resolve(context.Background(), "p1", "l1", 1); err != nil {
		t.Fatal(err)
	}
	if src.calls != 1 {
		t.Fatalf("expected cached lookup, got %d fetches", src.calls)
	}
}

func TestResolveUnknownKeyRebuildsOnce(t *testing.T) {
	src := &fakeSource{packs: []hexapi.Pack{pack("p1", "Pack One", level("l1", "Level One", 1))}}
	c := New(src)
	if _, err := c.Resolve(context.Background(), "p1", "l1", 1); err != nil {
		t.Fatal(err)
	}
	// New level published after the first build.
	src.packs = []hexapi.Pack{pack("p1", "Pack One", level("l1", "Level One", 1), level("l2", "Level Two", 1))}
	meta, err := c.Resolve(context.Background(), "p1", "l2", 1)
	if err != nil {
		t.Fatal(err)
	}
	if meta.LevelName != "Level Two" {
		t.Fatalf("meta after rebuild: %+v", meta)
	}
	if src.calls != 2 {
		t.Fatalf("expected exactly one rebuild, got %d fetches", src.calls)
	}
}

func TestResolveStillUnknownAfterRebuildFails(t *testing.T) {
	src := &fakeSource{packs: []hexapi.Pack{pack("p1", "Pack One", level("l1", "Level One", 1))}}
	c := New(src)
	if _, err := c.Resolve(context.Background(), "p1", "nope", 1); err == nil {
		t.Fatal("expected error for level missing even after rebuild")
	}
	if src.calls != 1 {
		t.Fatalf("expected a single rebuild attempt, got %d", src.calls)
	}
}

func TestResolveVariantInconsistencyRebuilds(t *testing.T) {
	// Catalog first claims a single variant; an event at x1.5 proves it stale.
	src := &fakeSource{packs: []hexapi.Pack{pack("p1", "Pack One", level("l1", "Level One", 1))}}
	c := New(src)
	if _, err := c.Resolve(context.Background(), "p1", "l1", 1); err != nil {
		t.Fatal(err)
	}
	src.packs = []hexapi.Pack{pack("p1", "Pack One", level("l1", "Level One", 1, 1.5))}
	meta, err := c.Resolve(context.Background(), "p1", "l1", 1.5)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Variants != 2 {
		t.Fatalf("expected rebuilt variant count 2, got %d", meta.Variants)
	}
	if src.calls != 2 {
		t.Fatalf("expected rebuild on inconsistency, got %d fetches", src.calls)
	}
}

func TestResolvePersistentInconsistencyFails(t *testing.T) {
	// The catalog insists the level has one variant while events keep
	// arriving at x2: one rebuild per lookup, then the event is dropped.
	src := &fakeSource{packs: []hexapi.Pack{pack("p1", "Pack One", level("l1", "Level One", 2))}}
	c := New(src)
	if _, err := c.Resolve(context.Background(), "p1", "l1", 2); err == nil {
		t.Fatal("expected error when inconsistency survives the rebuild")
	}
	if src.calls != 1 {
		t.Fatalf("expected a single rebuild attempt, got %d", src.calls)
	}
	if _, err := c.Resolve(context.Background(), "p1", "l1", 2); err == nil {
		t.Fatal("expected the same failure on a later event")
	}
	if src.calls != 2 {
		t.Fatalf("expected one rebuild per failed lookup, got %d fetches", src.calls)
	}
}

func TestRebuildReplacesWholeTable(t *testing.T) {
	src := &fakeSource{packs: []hexapi.Pack{pack("p1", "Pack One", level("l1", "Old Name", 1))}}
	c := New(src)
	if _, err := c.Resolve(context.Background(), "p1", "l1", 1); err != nil {
		t.Fatal(err)
	}
	// Level removed upstream: after any rebuild it must be gone, not stale.
	src.packs = []hexapi.Pack{pack("p2", "Pack Two", level("l2", "Level Two", 1))}
	if err := c.Rebuild(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Resolve(context.Background(), "p1", "l1", 1); err == nil {
		t.Fatal("removed level must not linger after rebuild")
	}
}

func TestResolveRebuildFailure(t *testing.T) {
	src := &fakeSource{err: errors.New("boom")}
	c := New(src)
	if _, err := c.Resolve(context.Background(), "p1", "l1", 1); err == nil {
		t.Fatal("expected rebuild error")
	}
}
