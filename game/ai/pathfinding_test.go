package ai

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testGrid struct {
	w, h  int
	costs []float64
}

func newTestGrid(w, h int, cost float64) *testGrid {
	g := &testGrid{w: w, h: h, costs: make([]float64, w*h)}
	for i := range g.costs {
		g.costs[i] = cost
	}
	return g
}

func (g *testGrid) Width() int  { return g.w }
func (g *testGrid) Height() int { return g.h }
func (g *testGrid) MovementCost(x, y int) float64 {
	if x < 0 || x >= g.w || y < 0 || y >= g.h {
		return 0
	}
	return g.costs[y*g.w+x]
}
func (g *testGrid) set(x, y int, c float64) { g.costs[y*g.w+x] = c }

// bellmanFord is the brute-force reference for path optimality.
func bellmanFord(g *testGrid, diagonal bool, from, to Point) float64 {
	dist := make([]float64, g.w*g.h)
	for i := range dist {
		dist[i] = math.Inf(1)
	}
	dist[from.Y*g.w+from.X] = 0
	dirs := neighbourOffsets[:4]
	if diagonal {
		dirs = neighbourOffsets[:]
	}
	for changed := true; changed; {
		changed = false
		for y := 0; y < g.h; y++ {
			for x := 0; x < g.w; x++ {
				d := dist[y*g.w+x]
				if math.IsInf(d, 1) || g.MovementCost(x, y) <= 0 {
					continue
				}
				for _, o := range dirs {
					nx, ny := x+o.X, y+o.Y
					c := g.MovementCost(nx, ny)
					if c <= 0 {
						continue
					}
					if d+c < dist[ny*g.w+nx] {
						dist[ny*g.w+nx] = d + c
						changed = true
					}
				}
			}
		}
	}
	return dist[to.Y*g.w+to.X]
}

func assertValidPath(t *testing.T, g *testGrid, diagonal bool, from Point, p *Path) float64 {
	t.Helper()
	prev := from
	total := 0.0
	for _, pt := range p.Points() {
		c := g.MovementCost(pt.X, pt.Y)
		require.Greater(t, c, 0.0, "path crosses unwalkable tile %v", pt)
		dx, dy := abs(pt.X-prev.X), abs(pt.Y-prev.Y)
		if diagonal {
			require.True(t, dx <= 1 && dy <= 1 && dx+dy > 0, "non-adjacent step %v -> %v", prev, pt)
		} else {
			require.Equal(t, 1, dx+dy, "non-orthogonal step %v -> %v", prev, pt)
		}
		total += c
		prev = pt
	}
	return total
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestNewTileGraph_Counts(t *testing.T) {
	g := newTestGrid(3, 3, 1)
	g.set(1, 1, 0)

	tg4 := NewTileGraph(g, false)
	assert.Equal(t, 8, tg4.NodeCount())
	// Ring of 8 tiles around a hole: each tile has 2 orthogonal walkable neighbours.
	assert.Equal(t, 16, tg4.EdgeCount())
	assert.False(t, tg4.Walkable(1, 1))
	assert.True(t, tg4.Walkable(0, 0))
	assert.False(t, tg4.Walkable(-1, 0))

	tg8 := NewTileGraph(g, true)
	assert.True(t, tg8.Diagonal())
	assert.Greater(t, tg8.EdgeCount(), tg4.EdgeCount())
}

func TestFind_StraightLine(t *testing.T) {
	g := newTestGrid(5, 1, 1)
	tg := NewTileGraph(g, false)
	p := tg.Find(Point{0, 0}, Point{4, 0})
	assert.Equal(t, []Point{{1, 0}, {2, 0}, {3, 0}, {4, 0}}, p.Points())
	assert.Equal(t, 4.0, p.Cost())
}

func TestFind_SameTile(t *testing.T) {
	tg := NewTileGraph(newTestGrid(3, 3, 1), true)
	p := tg.Find(Point{1, 1}, Point{1, 1})
	assert.Equal(t, 0, p.Len())
}

func TestFind_Unreachable(t *testing.T) {
	g := newTestGrid(5, 5, 1)
	for y := 0; y < 5; y++ {
		g.set(2, y, 0)
	}
	tg := NewTileGraph(g, true)
	p := tg.Find(Point{0, 0}, Point{4, 4})
	require.NotNil(t, p)
	assert.Equal(t, 0, p.Len())

	// Unwalkable endpoints are unreachable too.
	assert.Equal(t, 0, tg.Find(Point{2, 2}, Point{0, 0}).Len())
	assert.Equal(t, 0, tg.Find(Point{0, 0}, Point{9, 9}).Len())
}

func TestFind_RoutesAroundObstacle(t *testing.T) {
	g := newTestGrid(10, 10, 1)
	g.set(5, 5, 0)

	tg := NewTileGraph(g, false)
	p := tg.Find(Point{0, 5}, Point{9, 5})
	assert.Greater(t, p.Len(), 9)
	for _, pt := range p.Points() {
		assert.NotEqual(t, Point{5, 5}, pt)
	}
	end, ok := p.End()
	require.True(t, ok)
	assert.Equal(t, Point{9, 5}, end)
}

func TestFind_PrefersCheapTiles(t *testing.T) {
	// Row 0 is expensive, row 1 cheap: the path should dip into row 1.
	g := newTestGrid(5, 2, 1)
	for x := 1; x < 4; x++ {
		g.set(x, 0, 10)
	}
	tg := NewTileGraph(g, false)
	p := tg.Find(Point{0, 0}, Point{4, 0})
	assert.Equal(t, 6.0, p.Cost())
	for _, pt := range p.Points()[1:4] {
		assert.Equal(t, 1, pt.Y)
	}
}

func TestFind_OptimalAgainstBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	costs := []float64{0, 0.5, 1, 1, 2, 3}
	for _, diagonal := range []bool{false, true} {
		for trial := 0; trial < 60; trial++ {
			g := newTestGrid(7, 6, 1)
			for i := range g.costs {
				g.costs[i] = costs[rng.Intn(len(costs))]
			}
			from := Point{rng.Intn(7), rng.Intn(6)}
			to := Point{rng.Intn(7), rng.Intn(6)}
			g.set(from.X, from.Y, 1)
			g.set(to.X, to.Y, 1)

			tg := NewTileGraph(g, diagonal)
			p := tg.Find(from, to)
			want := bellmanFord(g, diagonal, from, to)

			if from == to {
				assert.Equal(t, 0, p.Len())
				continue
			}
			if math.IsInf(want, 1) {
				assert.Equal(t, 0, p.Len(), "trial %d: expected no path", trial)
				continue
			}
			require.Greater(t, p.Len(), 0, "trial %d: expected a path", trial)
			got := assertValidPath(t, g, diagonal, from, p)
			assert.InDelta(t, want, got, 1e-9, "trial %d diagonal=%v", trial, diagonal)
			assert.InDelta(t, want, p.Cost(), 1e-9)
		}
	}
}

func TestPath_Dequeue(t *testing.T) {
	p := &Path{steps: []Point{{1, 0}, {2, 0}}}
	pk, ok := p.Peek()
	require.True(t, ok)
	assert.Equal(t, Point{1, 0}, pk)

	pt, ok := p.Dequeue()
	require.True(t, ok)
	assert.Equal(t, Point{1, 0}, pt)
	assert.Equal(t, 1, p.Len())

	_, _ = p.Dequeue()
	_, ok = p.Dequeue()
	assert.False(t, ok)

	var nilPath *Path
	assert.Equal(t, 0, nilPath.Len())
	_, ok = nilPath.Dequeue()
	assert.False(t, ok)
}
