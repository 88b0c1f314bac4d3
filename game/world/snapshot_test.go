package world

import (
	"encoding/json"
	"testing"

	"github.com/kasuganosora/basebuild/server/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seededWorld(t *testing.T) *World {
	t.Helper()
	w := newFloorWorld(t, 6, 4, false)
	w.SetTileKind(w.TileAt(5, 3), TileEmpty)
	_, err := w.PlaceFurniture("Wall", w.TileAt(1, 1))
	require.NoError(t, err)
	_, err = w.PlaceFurniture("Wall", w.TileAt(2, 1))
	require.NoError(t, err)
	door, err := w.PlaceFurniture("Door", w.TileAt(3, 1))
	require.NoError(t, err)
	door.SetParameter("openness", 0.5)
	door.SetParameter("is_opening", 1)
	require.NoError(t, w.SpawnInventory(w.TileAt(0, 3), "Steel Plate", 50, 17))

	c, err := w.CreateCharacter(w.TileAt(4, 2))
	require.NoError(t, err)
	c.SetSpeed(3)
	require.True(t, w.Inventory().PlaceOnCharacter(c, NewInventory("Wood", 20, 4), -1))
	w.tick = 42
	return w
}

func TestSnapshot_Contents(t *testing.T) {
	s := seededWorld(t).Snapshot()
	assert.Equal(t, SnapshotVersion, s.Version)
	assert.Equal(t, 6, s.Width)
	assert.Equal(t, 4, s.Height)
	assert.Equal(t, uint64(42), s.Tick)
	assert.Len(t, s.Tiles, 24)
	require.Len(t, s.Furniture, 3)
	assert.Equal(t, "Door", s.Furniture[2].Type)
	assert.Equal(t, 0.5, s.Furniture[2].Params["openness"])
	require.Len(t, s.Inventories, 1)
	assert.Equal(t, 17, s.Inventories[0].StackSize)
	require.Len(t, s.Characters, 1)
	require.NotNil(t, s.Characters[0].Inventory)
	assert.Equal(t, "Wood", s.Characters[0].Inventory.Type)
}

func TestFromSnapshot_RoundTrip(t *testing.T) {
	orig := seededWorld(t)
	s := orig.Snapshot()

	// Through JSON, the way it is stored.
	raw, err := json.Marshal(s)
	require.NoError(t, err)
	var decoded Snapshot
	require.NoError(t, json.Unmarshal(raw, &decoded))

	restored, err := FromSnapshot(&decoded, Options{Width: 99, Height: 99, StartCharacters: 5}, catalog.Default(), zap.NewNop())
	require.NoError(t, err)

	wd, ht := restored.Dimensions()
	assert.Equal(t, 6, wd)
	assert.Equal(t, 4, ht)
	assert.Equal(t, s, restored.Snapshot())

	door := restored.TileAt(3, 1).Furniture()
	require.NotNil(t, door)
	assert.Equal(t, EnterSoon, restored.TileAt(3, 1).IsEnterable())
	assert.Equal(t, 0.0, restored.TileAt(1, 1).MovementCost())
	assert.Equal(t, 17, restored.Inventory().Total("Steel Plate"))
	assert.Equal(t, 4, restored.Inventory().Total("Wood"))
	require.NotNil(t, restored.Character(orig.Characters()[0].ID))
}

func TestFromSnapshot_LinksReattach(t *testing.T) {
	s := seededWorld(t).Snapshot()
	restored, err := FromSnapshot(s, Options{}, nil, nil)
	require.NoError(t, err)

	left := restored.TileAt(1, 1).Furniture()
	changed := 0
	left.Changed.Subscribe(func(*Furniture) { changed++ })
	_, err = restored.PlaceFurniture("Wall", restored.TileAt(1, 2))
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
}

func TestFromSnapshot_Rejects(t *testing.T) {
	s := seededWorld(t).Snapshot()

	bad := *s
	bad.Version = 99
	_, err := FromSnapshot(&bad, Options{}, nil, nil)
	assert.ErrorIs(t, err, ErrSnapshotVersion)

	bad = *s
	bad.Furniture = append([]FurnitureState(nil), s.Furniture...)
	bad.Furniture = append(bad.Furniture, FurnitureState{X: 1, Y: 1, Type: "Wall"})
	_, err = FromSnapshot(&bad, Options{}, nil, nil)
	assert.ErrorIs(t, err, ErrTileOccupied)

	bad = *s
	bad.Tiles = []TileState{{X: 50, Y: 50, Kind: "Floor"}}
	_, err = FromSnapshot(&bad, Options{}, nil, nil)
	assert.ErrorIs(t, err, ErrNoTile)

	_, err = FromSnapshot(nil, Options{}, nil, nil)
	assert.Error(t, err)
}

func TestSnapshot_EmptiedTileRoundTrips(t *testing.T) {
	w := newFloorWorld(t, 5, 5, false)
	_, err := w.PlaceFurniture("Wall", w.TileAt(2, 2))
	require.NoError(t, err)

	w.SetTileKind(w.TileAt(2, 2), TileEmpty)
	assert.Nil(t, w.TileAt(2, 2).Furniture())
	assert.Empty(t, w.Furniture())

	restored, err := FromSnapshot(w.Snapshot(), Options{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, TileEmpty, restored.TileAt(2, 2).Kind())
	assert.Empty(t, restored.Furniture())
}

func TestFromSnapshot_FurnitureOnEmptyTile(t *testing.T) {
	// Saves written before emptying a tile uninstalled its furniture.
	s := newFloorWorld(t, 4, 4, false).Snapshot()
	for i := range s.Tiles {
		if s.Tiles[i].X == 1 && s.Tiles[i].Y == 1 {
			s.Tiles[i].Kind = "Empty"
		}
	}
	s.Furniture = []FurnitureState{{X: 1, Y: 1, Type: "Wall"}, {X: 1, Y: 2, Type: "Wall"}}

	restored, err := FromSnapshot(s, Options{}, nil, nil)
	require.NoError(t, err)
	f := restored.TileAt(1, 1).Furniture()
	require.NotNil(t, f)
	assert.Equal(t, "Wall", f.Type())
	assert.Len(t, restored.Furniture(), 2)
	assert.NotPanics(t, func() { restored.Snapshot() })
}
