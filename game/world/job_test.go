package world

import (
	"testing"

	"github.com/kasuganosora/basebuild/server/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestPlaceInJob_ClampsAndReturnsOverflow(t *testing.T) {
	w := newFloorWorld(t, 3, 3, false)
	im := w.Inventory()
	j := NewJob(w.TileAt(1, 1), "", 1, []*Inventory{NewInventory("Steel Plate", 50, 0)})
	require.NoError(t, w.EnqueueJob(j))
	worked := 0
	j.Worked.Subscribe(func(*Job) { worked++ })

	a := NewInventory("Steel Plate", 50, 30)
	require.True(t, im.PlaceInJob(j, a))
	req, ok := j.Requirement("Steel Plate")
	require.True(t, ok)
	assert.Equal(t, 30, req.StackSize)
	assert.Equal(t, 50, req.MaxStackSize)
	assert.Equal(t, 0, a.StackSize)
	assert.False(t, j.HasAllMaterial())

	b := NewInventory("Steel Plate", 50, 30)
	require.True(t, im.PlaceInJob(j, b))
	assert.Equal(t, 50, req.StackSize)
	assert.Equal(t, 10, b.StackSize)
	assert.True(t, j.HasAllMaterial())
	assert.Equal(t, 2, worked)

	assert.False(t, im.PlaceInJob(j, b), "fully supplied job wants nothing more")
	assert.Equal(t, 10, b.StackSize)
}

func TestPlaceInJob_UnwantedType(t *testing.T) {
	w := newFloorWorld(t, 3, 3, false)
	j := NewJob(w.TileAt(1, 1), "", 1, []*Inventory{NewInventory("Steel Plate", 5, 0)})
	wood := NewInventory("Wood", 50, 10)
	assert.False(t, w.Inventory().PlaceInJob(j, wood))
	assert.Equal(t, 10, wood.StackSize)
	_, ok := j.Requirement("Wood")
	assert.False(t, ok)
}

func TestPlaceInJob_AcceptsAny(t *testing.T) {
	w := newFloorWorld(t, 3, 3, false)
	j := NewJob(w.TileAt(1, 1), "", 0, nil)
	j.AcceptsAnyInventory = true
	assert.False(t, j.HasAllMaterial())
	assert.Equal(t, 50, j.Desires(NewInventory("Wood", 50, 1)))

	require.True(t, w.Inventory().PlaceInJob(j, NewInventory("Wood", 50, 20)))
	req, ok := j.Requirement("Wood")
	require.True(t, ok)
	assert.Equal(t, 20, req.StackSize)
	assert.Equal(t, 30, j.Desires(NewInventory("Wood", 50, 1)))
	assert.Equal(t, 0, j.Desires(NewInventory("Steel Plate", 50, 1)))
}

func TestDesires(t *testing.T) {
	j := NewJob(nil, "", 1, []*Inventory{NewInventory("Steel Plate", 5, 3)})
	assert.Equal(t, 2, j.Desires(NewInventory("Steel Plate", 50, 10)))
	assert.Equal(t, 0, j.Desires(NewInventory("Wood", 50, 10)))
	assert.Equal(t, 0, j.Desires(nil))
	assert.Equal(t, "Steel Plate", j.FirstDesired().Type)

	full := NewJob(nil, "", 1, []*Inventory{NewInventory("Steel Plate", 5, 5)})
	assert.Equal(t, 0, full.Desires(NewInventory("Steel Plate", 50, 10)))
	assert.Nil(t, full.FirstDesired())
	assert.True(t, full.HasAllMaterial())
}

func TestDoWork_CompletesExactlyOnce(t *testing.T) {
	w := newFloorWorld(t, 3, 3, false)
	j := NewJob(w.TileAt(1, 1), "", 1, nil)
	require.NoError(t, w.EnqueueJob(j))
	completed, worldCompleted := 0, 0
	j.Completed.Subscribe(func(*Job) { completed++ })
	w.Events().JobCompleted.Subscribe(func(*Job) { worldCompleted++ })

	j.DoWork(0.6)
	assert.Equal(t, 0, completed)
	assert.Equal(t, JobPending, j.State())

	j.DoWork(0.6)
	assert.Equal(t, 1, completed)
	assert.Equal(t, JobCompleted, j.State())

	j.DoWork(1)
	j.DoWork(1)
	assert.Equal(t, 1, completed)
	assert.Equal(t, 1, worldCompleted)
	assert.Equal(t, 0, w.Queue().Len())
	assert.Nil(t, w.FindJob(j.ID))
	assert.False(t, j.Cancel())
}

func TestDoWork_StallsWithoutMaterial(t *testing.T) {
	w := newFloorWorld(t, 3, 3, false)
	j := NewJob(w.TileAt(1, 1), "", 1, []*Inventory{NewInventory("Steel Plate", 5, 0)})
	worked := 0
	j.Worked.Subscribe(func(*Job) { worked++ })

	j.DoWork(5)
	j.DoWork(5)
	assert.Equal(t, 2, worked)
	assert.Equal(t, 1.0, j.WorkTime())
	assert.Equal(t, JobPending, j.State())
}

func TestCancel_Once(t *testing.T) {
	w := newFloorWorld(t, 3, 3, false)
	j := NewJob(w.TileAt(1, 1), "", 1, nil)
	require.NoError(t, w.EnqueueJob(j))
	cancelled := 0
	w.Events().JobCancelled.Subscribe(func(*Job) { cancelled++ })

	require.NoError(t, w.CancelJob(j))
	assert.ErrorIs(t, w.CancelJob(j), ErrJobFinished)
	assert.Equal(t, 1, cancelled)
	assert.Equal(t, JobCancelled, j.State())
	assert.Equal(t, 0, w.Queue().Len())
	assert.Nil(t, w.FindJob(j.ID))

	assert.ErrorIs(t, w.EnqueueJob(j), ErrJobFinished)
	j.DoWork(10)
	assert.Equal(t, JobCancelled, j.State())
}

func TestCancel_ReturnsDeliveredMaterial(t *testing.T) {
	w := newFloorWorld(t, 3, 3, false)
	tile := w.TileAt(1, 1)
	j, err := w.BuildFurniture("Wall", tile)
	require.NoError(t, err)
	require.True(t, w.Inventory().PlaceInJob(j, NewInventory("Steel Plate", 50, 3)))
	assert.Zero(t, w.Inventory().Total("Steel Plate"))

	require.NoError(t, w.CancelJob(j))
	require.NotNil(t, tile.Inventory())
	assert.Equal(t, "Steel Plate", tile.Inventory().Type)
	assert.Equal(t, 3, tile.Inventory().StackSize)
	assert.Equal(t, 3, w.Inventory().Total("Steel Plate"))

	req, ok := j.Requirement("Steel Plate")
	require.True(t, ok)
	assert.Equal(t, 3, req.StackSize)
}

func TestCancel_LogsMaterialTheTileCannotHold(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	w, err := New(Options{Width: 3, Height: 3}, catalog.Default(), zap.New(core))
	require.NoError(t, err)
	tile := w.TileAt(1, 1)
	w.SetTileKind(tile, TileFloor)
	require.NoError(t, w.SpawnInventory(tile, "Wood", 50, 10))

	j := NewJob(tile, "", 1, []*Inventory{NewInventory("Steel Plate", 5, 0)})
	require.NoError(t, w.EnqueueJob(j))
	require.True(t, w.Inventory().PlaceInJob(j, NewInventory("Steel Plate", 50, 4)))

	require.NoError(t, w.CancelJob(j))
	assert.Equal(t, "Wood", tile.Inventory().Type)
	assert.Equal(t, 10, tile.Inventory().StackSize)

	entries := logs.FilterMessage("job cancelled with undeliverable material").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "Steel Plate", fields["type"])
	assert.EqualValues(t, 4, fields["lost"])
}

func TestClone_DeepCopiesRequirements(t *testing.T) {
	w := newFloorWorld(t, 3, 3, false)
	proto := NewJob(w.TileAt(0, 0), "Wall", 2, []*Inventory{NewInventory("Steel Plate", 5, 0)})
	proto.Completed.Subscribe(func(*Job) {})

	c := proto.Clone()
	assert.NotEqual(t, proto.ID, c.ID)
	assert.Equal(t, proto.FurnitureType, c.FurnitureType)
	assert.Equal(t, proto.WorkTime(), c.WorkTime())
	assert.Equal(t, 0, c.Completed.Len())

	req, _ := c.Requirement("Steel Plate")
	req.StackSize = 5
	orig, _ := proto.Requirement("Steel Plate")
	assert.Equal(t, 0, orig.StackSize)
	assert.NotSame(t, orig, req)
}

func TestJobQueue_FIFO(t *testing.T) {
	var q JobQueue
	a, b, c := NewJob(nil, "a", 1, nil), NewJob(nil, "b", 1, nil), NewJob(nil, "c", 1, nil)
	assert.True(t, q.Enqueue(a))
	assert.True(t, q.Enqueue(b))
	assert.True(t, q.Enqueue(c))
	assert.False(t, q.Enqueue(a), "already queued")
	assert.Equal(t, 3, q.Len())

	got := q.Dequeue()
	assert.Same(t, a, got)
	assert.Equal(t, JobClaimed, got.State())

	assert.True(t, q.Remove(c))
	assert.False(t, q.Remove(c))
	assert.Same(t, b, q.Dequeue())
	assert.Nil(t, q.Dequeue())
}

func TestEnqueueJob_CreatedOnce(t *testing.T) {
	w := newFloorWorld(t, 3, 3, false)
	created := 0
	w.Events().JobCreated.Subscribe(func(*Job) { created++ })

	j := NewJob(w.TileAt(1, 1), "", 1, nil)
	require.NoError(t, w.EnqueueJob(j))
	require.Same(t, j, w.Queue().Dequeue())
	require.NoError(t, w.EnqueueJob(j))

	assert.Equal(t, 1, created)
	assert.Equal(t, 1, w.Queue().Len())
	assert.Equal(t, []*Job{j}, w.Jobs())
	assert.Same(t, j, w.FindJob(j.ID))

	assert.ErrorIs(t, w.EnqueueJob(NewJob(nil, "", 1, nil)), ErrNoTile)
}

func TestJobEvents_MirroredOnWorld(t *testing.T) {
	w := newFloorWorld(t, 3, 3, false)
	worked := 0
	w.Events().JobWorked.Subscribe(func(*Job) { worked++ })
	j := NewJob(w.TileAt(1, 1), "", 1, nil)
	require.NoError(t, w.EnqueueJob(j))
	j.DoWork(0.1)
	j.DoWork(0.1)
	assert.Equal(t, 2, worked)
}
