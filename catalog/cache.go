// Package catalog maintains the pack/level metadata lookup table used to
// render announcements. The table is built from the scoring server's pack
// catalog and refreshed lazily: any lookup miss, or an event whose
// difficulty is inconsistent with a single-variant level, triggers one
// full rebuild before the lookup is retried. Rebuilds replace the whole
// table so renamed or removed levels cannot linger as stale entries.
package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/onnwee/record-herald/hexapi"
	"github.com/onnwee/record-herald/telemetry"
)

// LevelMeta is the display metadata for one level.
type LevelMeta struct {
	PackName  string
	LevelName string
	Variants  int
}

// Source lists the pack catalog (implemented by hexapi.Client).
type Source interface {
	Packs(ctx context.Context) ([]hexapi.Pack, error)
}

type key struct {
	pack, level string
}

// Cache is the lookup table. Not safe for concurrent use; the poll loop
// is its only caller and cycles are serialized.
type Cache struct {
	src   Source
	table map[key]LevelMeta
}

// New returns an empty cache; the first Resolve populates it.
func New(src Source) *Cache {
	return &Cache{src: src}
}

// Resolve returns metadata for (pack, level). mult is the triggering
// event's difficulty multiplier and is used for the staleness check: a
// level we believe has a single variant cannot legitimately produce an
// event at any other multiplier. On a miss or inconsistency the cache is
// rebuilt once and the lookup retried; a key still missing or still
// inconsistent after that one rebuild is an error, and the caller drops
// the event with a warning.
func (c *Cache) Resolve(ctx context.Context, pack, level string, mult float64) (LevelMeta, error) {
	if c.table != nil {
		if meta, ok := c.table[key{pack, level}]; ok && consistent(meta, mult) {
			return meta, nil
		}
	}
	if err := c.Rebuild(ctx); err != nil {
		return LevelMeta{}, fmt.Errorf("catalog rebuild: %w", err)
	}
	meta, ok := c.table[key{pack, level}]
	if !ok {
		return LevelMeta{}, fmt.Errorf("unknown level %s/%s after catalog rebuild", pack, level)
	}
	if !consistent(meta, mult) {
		// The server still reports one variant yet the event carries a
		// non-unit multiplier. Same treatment as an unknown key: one
		// rebuild was the bound, the event is dropped.
		slog.Warn("level variant count inconsistent after rebuild, dropping event",
			slog.String("pack", pack), slog.String("level", level), slog.Float64("mult", mult))
		return LevelMeta{}, fmt.Errorf("level %s/%s variant count inconsistent with mult %v after catalog rebuild", pack, level, mult)
	}
	return meta, nil
}

// Rebuild replaces the whole table from the remote catalog.
func (c *Cache) Rebuild(ctx context.Context) error {
	packs, err := c.src.Packs(ctx)
	if err != nil {
		return err
	}
	table := make(map[key]LevelMeta)
	for _, p := range packs {
		for _, l := range p.Levels {
			table[key{p.ID, l.ID}] = LevelMeta{
				PackName:  p.Name,
				LevelName: l.Name,
				Variants:  len(l.Options.DifficultyMult),
			}
		}
	}
	c.table = table
	telemetry.CatalogRebuilds.Inc()
	slog.Info("metadata catalog rebuilt", slog.Int("levels", len(table)), slog.String("component", "catalog"))
	return nil
}

func consistent(meta LevelMeta, mult float64) bool {
	return meta.Variants > 1 || mult == 1
}
