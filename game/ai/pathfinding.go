package ai

import (
	"container/heap"
	"math"
)

// Point is a 2D grid coordinate.
type Point struct {
	X, Y int
}

// Grid is the read-only view of the tile grid the graph is built from.
// A movement cost of 0 marks an unwalkable tile.
type Grid interface {
	Width() int
	Height() int
	MovementCost(x, y int) float64
}

// Neighbour order: N E S W, then NE SE SW NW.
var neighbourOffsets = [8]Point{
	{0, 1}, {1, 0}, {0, -1}, {-1, 0},
	{1, 1}, {1, -1}, {-1, -1}, {-1, 1},
}

type edge struct {
	to   int
	cost float64
}

type node struct {
	pt    Point
	edges []edge
}

// TileGraph is a walkability graph: one node per walkable tile and one edge per
// walkable neighbour, weighted by the neighbour's movement cost.
type TileGraph struct {
	width, height int
	diagonal      bool
	index         []int // tile index -> node index, -1 when unwalkable
	nodes         []node
	minCost       float64
	edgeCount     int
}

// NewTileGraph builds the graph from the current state of g.
// diagonal selects 8-connectivity; otherwise only orthogonal neighbours link.
func NewTileGraph(g Grid, diagonal bool) *TileGraph {
	w, h := g.Width(), g.Height()
	tg := &TileGraph{
		width:    w,
		height:   h,
		diagonal: diagonal,
		index:    make([]int, w*h),
		minCost:  math.Inf(1),
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			cost := g.MovementCost(x, y)
			if cost <= 0 {
				tg.index[i] = -1
				continue
			}
			tg.index[i] = len(tg.nodes)
			tg.nodes = append(tg.nodes, node{pt: Point{x, y}})
			if cost < tg.minCost {
				tg.minCost = cost
			}
		}
	}

	dirs := neighbourOffsets[:4]
	if diagonal {
		dirs = neighbourOffsets[:]
	}
	for ni := range tg.nodes {
		n := &tg.nodes[ni]
		for _, d := range dirs {
			nx, ny := n.pt.X+d.X, n.pt.Y+d.Y
			to := tg.nodeAt(nx, ny)
			if to < 0 {
				continue
			}
			n.edges = append(n.edges, edge{to: to, cost: g.MovementCost(nx, ny)})
			tg.edgeCount++
		}
	}
	return tg
}

func (tg *TileGraph) nodeAt(x, y int) int {
	if x < 0 || x >= tg.width || y < 0 || y >= tg.height {
		return -1
	}
	return tg.index[y*tg.width+x]
}

// NodeCount returns the number of walkable tiles in the graph.
func (tg *TileGraph) NodeCount() int { return len(tg.nodes) }

// EdgeCount returns the number of directed edges in the graph.
func (tg *TileGraph) EdgeCount() int { return tg.edgeCount }

// Diagonal reports whether the graph links diagonal neighbours.
func (tg *TileGraph) Diagonal() bool { return tg.diagonal }

// Walkable reports whether (x, y) has a node in the graph.
func (tg *TileGraph) Walkable(x, y int) bool { return tg.nodeAt(x, y) >= 0 }

// heuristic is admissible: every step costs at least minCost and moves at most
// one tile along each axis.
func (tg *TileGraph) heuristic(a, b Point) float64 {
	dx := math.Abs(float64(a.X - b.X))
	dy := math.Abs(float64(a.Y - b.Y))
	if tg.diagonal {
		return math.Max(dx, dy) * tg.minCost
	}
	return (dx + dy) * tg.minCost
}

type pqItem struct {
	node int
	f    float64
	seq  int
}

type priorityQueue []pqItem

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool {
	if pq[i].f != pq[j].f {
		return pq[i].f < pq[j].f
	}
	return pq[i].seq < pq[j].seq
}
func (pq priorityQueue) Swap(i, j int) { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x any)   { *pq = append(*pq, x.(pqItem)) }
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	it := old[n-1]
	*pq = old[:n-1]
	return it
}

// Find returns the cheapest path from `from` to `to` (A*).
// The path excludes the start and includes the end. It is empty when either
// endpoint is unwalkable, when no route exists, or when from == to.
func (tg *TileGraph) Find(from, to Point) *Path {
	start, goal := tg.nodeAt(from.X, from.Y), tg.nodeAt(to.X, to.Y)
	if start < 0 || goal < 0 || start == goal {
		return &Path{}
	}

	n := len(tg.nodes)
	g := make([]float64, n)
	parent := make([]int, n)
	closed := make([]bool, n)
	for i := range g {
		g[i] = math.Inf(1)
		parent[i] = -1
	}

	seq := 0
	pq := &priorityQueue{}
	g[start] = 0
	heap.Push(pq, pqItem{node: start, f: tg.heuristic(from, to)})

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(pqItem).node
		if closed[cur] {
			continue
		}
		closed[cur] = true

		if cur == goal {
			return tg.reconstruct(parent, goal, g[goal])
		}

		for _, e := range tg.nodes[cur].edges {
			if closed[e.to] {
				continue
			}
			ng := g[cur] + e.cost
			if ng < g[e.to] {
				g[e.to] = ng
				parent[e.to] = cur
				seq++
				heap.Push(pq, pqItem{node: e.to, f: ng + tg.heuristic(tg.nodes[e.to].pt, to), seq: seq})
			}
		}
	}
	return &Path{}
}

func (tg *TileGraph) reconstruct(parent []int, goal int, cost float64) *Path {
	var steps []Point
	for n := goal; parent[n] >= 0; n = parent[n] {
		steps = append(steps, tg.nodes[n].pt)
	}
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return &Path{steps: steps, cost: cost}
}

// Path is an ordered queue of tiles to visit.
type Path struct {
	steps []Point
	cost  float64
}

// NewPath wraps precomputed steps.
func NewPath(steps []Point, cost float64) *Path {
	return &Path{steps: steps, cost: cost}
}

// Len returns the number of steps remaining.
func (p *Path) Len() int {
	if p == nil {
		return 0
	}
	return len(p.steps)
}

// Cost returns the total weighted cost of the path as found.
func (p *Path) Cost() float64 {
	if p == nil {
		return 0
	}
	return p.cost
}

// Dequeue pops the next step.
func (p *Path) Dequeue() (Point, bool) {
	if p.Len() == 0 {
		return Point{}, false
	}
	pt := p.steps[0]
	p.steps = p.steps[1:]
	return pt, true
}

// Peek returns the next step without removing it.
func (p *Path) Peek() (Point, bool) {
	if p.Len() == 0 {
		return Point{}, false
	}
	return p.steps[0], true
}

// End returns the final step of the path.
func (p *Path) End() (Point, bool) {
	if p.Len() == 0 {
		return Point{}, false
	}
	return p.steps[len(p.steps)-1], true
}

// Points returns a copy of the remaining steps.
func (p *Path) Points() []Point {
	if p.Len() == 0 {
		return nil
	}
	out := make([]Point, len(p.steps))
	copy(out, p.steps)
	return out
}
