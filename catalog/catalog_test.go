package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, []string{"Door", "Stockpile", "Wall"}, c.Names())

	wall, ok := c.Lookup("Wall")
	require.True(t, ok)
	assert.Equal(t, 0.0, wall.MovementCost)
	assert.True(t, wall.LinksToNeighbour)
	assert.Equal(t, 1, wall.Width)
	assert.Equal(t, 1, wall.Height)
	require.NotNil(t, wall.Build)
	assert.Equal(t, 1.0, wall.Build.WorkTime)
	assert.Equal(t, []Requirement{{Type: "Steel Plate", Amount: 5}}, wall.Build.Requires)

	door, ok := c.Lookup("Door")
	require.True(t, ok)
	assert.Equal(t, "door", door.Behavior)
	assert.Equal(t, 4.0, door.Params["open_speed"])

	stock, ok := c.Lookup("Stockpile")
	require.True(t, ok)
	assert.Equal(t, "stockpile", stock.Behavior)
}

func TestLookup_ReturnsCopy(t *testing.T) {
	c := Default()
	door, _ := c.Lookup("Door")
	door.Params["openness"] = 1

	again, _ := c.Lookup("Door")
	assert.Equal(t, 0.0, again.Params["openness"])

	wall, _ := c.Lookup("Wall")
	wall.Build.Requires[0].Amount = 99
	again, _ = c.Lookup("Wall")
	assert.Equal(t, 5, again.Build.Requires[0].Amount)
}

func TestLookup_Unknown(t *testing.T) {
	c := Default()
	_, ok := c.Lookup("Bed")
	assert.False(t, ok)
	assert.False(t, c.Has("Bed"))
	assert.True(t, c.Has("Wall"))
}

func TestSuggest(t *testing.T) {
	c := Default()
	assert.Equal(t, "Wall", c.Suggest("wal"))
	assert.Equal(t, "Door", c.Suggest("Dor"))
	assert.Equal(t, "Stockpile", c.Suggest("stokpile"))
	assert.Equal(t, "", c.Suggest("Refrigerator"))
	assert.Equal(t, "", c.Suggest("  "))
}

func TestNew_Duplicate(t *testing.T) {
	_, err := New(FurnitureDef{Type: "A", MovementCost: 1}, FurnitureDef{Type: "A"})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = New(FurnitureDef{})
	assert.Error(t, err)
}

func TestParse_SchemaRejects(t *testing.T) {
	cases := map[string]string{
		"missing list":      "other: 1\n",
		"negative cost":     "furniture:\n  - type: X\n    movement_cost: -1\n",
		"missing cost":      "furniture:\n  - type: X\n",
		"unknown field":     "furniture:\n  - type: X\n    movement_cost: 1\n    colour: red\n",
		"zero requirement":  "furniture:\n  - type: X\n    movement_cost: 1\n    build:\n      requires:\n        - type: Wood\n          amount: 0\n",
		"non-numeric param": "furniture:\n  - type: X\n    movement_cost: 1\n    params:\n      speed: fast\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestParse_BadYAML(t *testing.T) {
	_, err := Parse([]byte("furniture: [\n"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "furniture.yaml")
	raw := "furniture:\n  - type: Bed\n    movement_cost: 2\n    width: 1\n    height: 1\n    params:\n      comfort: 3\n"
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())
	bed, ok := c.Lookup("Bed")
	require.True(t, ok)
	assert.Equal(t, 2.0, bed.MovementCost)
	assert.Equal(t, 3.0, bed.Params["comfort"])
	assert.Nil(t, bed.Build)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
