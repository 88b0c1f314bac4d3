package persist

import (
	"context"
	"testing"
	"time"

	"github.com/kasuganosora/basebuild/server/game/sim"
	"github.com/kasuganosora/basebuild/server/game/world"
	"github.com/kasuganosora/basebuild/server/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoadEngine(t *testing.T) {
	ctx := context.Background()
	store := NewStore(testutil.SetupTestDB(t))
	w := testutil.NewTestWorld(t, 6, 6)
	_, err := w.PlaceFurniture("Wall", w.TileAt(2, 2))
	require.NoError(t, err)
	e := sim.New(w, nil)
	e.Step(50 * time.Millisecond)

	info, err := SaveEngine(ctx, store, e, "auto")
	require.NoError(t, err)
	assert.Equal(t, "auto", info.Name)
	assert.Equal(t, uint64(1), info.Tick)
	assert.Equal(t, 1, info.Furniture)

	// Change the live world, then restore.
	require.NoError(t, e.Do(func(w *world.World) error {
		assert.True(t, w.UninstallFurniture(w.TileAt(2, 2)))
		return nil
	}))
	loaded, err := LoadEngine(ctx, store, e, "auto", world.Options{}, nil, nil)
	require.NoError(t, err)
	assert.NotSame(t, w, loaded)
	require.NoError(t, e.Do(func(cur *world.World) error {
		assert.Same(t, loaded, cur)
		require.NotNil(t, cur.TileAt(2, 2).Furniture())
		assert.Equal(t, uint64(1), cur.Tick())
		return nil
	}))
}

func TestLoadEngine_MissingKeepsWorld(t *testing.T) {
	ctx := context.Background()
	w := testutil.NewTestWorld(t, 3, 3)
	e := sim.New(w, nil)

	_, err := LoadEngine(ctx, NewFileStore(t.TempDir()), e, "nothing", world.Options{}, nil, nil)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, e.Do(func(cur *world.World) error {
		assert.Same(t, w, cur)
		return nil
	}))

	_, err = SaveEngine(ctx, NewFileStore(t.TempDir()), e, "bad name")
	assert.ErrorIs(t, err, ErrInvalidName)
}
