package persist

import (
	"context"
	"time"

	"github.com/kasuganosora/basebuild/server/catalog"
	"github.com/kasuganosora/basebuild/server/game/sim"
	"github.com/kasuganosora/basebuild/server/game/world"
	"go.uber.org/zap"
)

// SaveEngine snapshots the engine's world between ticks and stores it. The
// write itself happens outside the engine lock.
func SaveEngine(ctx context.Context, b Backend, e *sim.Engine, name string) (Info, error) {
	if err := checkName(name); err != nil {
		return Info{}, err
	}
	var snap *world.Snapshot
	_ = e.Do(func(w *world.World) error {
		snap = w.Snapshot()
		return nil
	})
	if err := b.Save(ctx, name, snap); err != nil {
		return Info{}, err
	}
	return infoOf(name, snap, time.Now().UTC()), nil
}

// LoadEngine rebuilds a world from the named save and swaps it into e. opts
// supplies everything the snapshot does not record (diagonal movement,
// default speed).
func LoadEngine(ctx context.Context, b Backend, e *sim.Engine, name string, opts world.Options, cat *catalog.Catalog, logger *zap.Logger) (*world.World, error) {
	snap, err := b.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	w, err := world.FromSnapshot(snap, opts, cat, logger)
	if err != nil {
		return nil, err
	}
	e.Swap(w)
	return w, nil
}
