package mask

// flowEpsilon is the residual capacity below which an arc counts as saturated.
const flowEpsilon = 1e-9

// graph is a flow network over image pixels plus a source and a sink,
// solved with Dinic's blocking-flow algorithm. Arcs are stored in pairs so
// that arc i^1 is the reverse of arc i.
type graph struct {
	nodes  int
	source int
	sink   int

	head []int32 // first arc per node, -1 when none
	next []int32
	to   []int32
	cap  []float64

	level []int32
	iter  []int32
	flow  float64
}

// newGraph allocates a graph for n pixel nodes with room for arcHint arcs.
func newGraph(n, arcHint int) *graph {
	g := &graph{
		nodes:  n + 2,
		source: n,
		sink:   n + 1,
		head:   make([]int32, n+2),
		next:   make([]int32, 0, arcHint),
		to:     make([]int32, 0, arcHint),
		cap:    make([]float64, 0, arcHint),
	}
	for i := range g.head {
		g.head[i] = -1
	}
	return g
}

func (g *graph) addArc(u, v int, c float64) {
	g.to = append(g.to, int32(v))
	g.cap = append(g.cap, c)
	g.next = append(g.next, g.head[u])
	g.head[u] = int32(len(g.to) - 1)
}

// addEdge adds an undirected smoothness edge between pixels p and q.
func (g *graph) addEdge(p, q int, w float64) {
	g.addArc(p, q, w)
	g.addArc(q, p, w)
}

// addTerminal sets the source and sink capacities of pixel p. Only the
// difference matters for the minimum cut, so the shared part is counted as
// flow immediately and a single arc carries the remainder.
func (g *graph) addTerminal(p int, fromSource, toSink float64) {
	g.flow += min(fromSource, toSink)
	switch d := fromSource - toSink; {
	case d > 0:
		g.addArc(g.source, p, d)
		g.addArc(p, g.source, 0)
	case d < 0:
		g.addArc(p, g.sink, -d)
		g.addArc(g.sink, p, 0)
	}
}

func (g *graph) bfs() bool {
	if g.level == nil {
		g.level = make([]int32, g.nodes)
		g.iter = make([]int32, g.nodes)
	}
	for i := range g.level {
		g.level[i] = -1
	}
	queue := make([]int32, 0, 1024)
	g.level[g.source] = 0
	queue = append(queue, int32(g.source))
	for qi := 0; qi < len(queue); qi++ {
		u := queue[qi]
		for a := g.head[u]; a >= 0; a = g.next[a] {
			v := g.to[a]
			if g.cap[a] > flowEpsilon && g.level[v] < 0 {
				g.level[v] = g.level[u] + 1
				queue = append(queue, v)
			}
		}
	}
	return g.level[g.sink] >= 0
}

// augment finds a blocking flow in the current level graph with an
// explicit-stack depth-first search and returns the amount delivered.
func (g *graph) augment() float64 {
	type frame struct {
		node int32
		arc  int32 // arc used to enter node
	}
	var total float64
	path := make([]frame, 0, 256)
	path = append(path, frame{node: int32(g.source), arc: -1})
	for len(path) > 0 {
		u := path[len(path)-1].node
		if int(u) == g.sink {
			push := g.cap[path[1].arc]
			for _, f := range path[2:] {
				push = min(push, g.cap[f.arc])
			}
			cut, found := 1, false
			for i := 1; i < len(path); i++ {
				a := path[i].arc
				g.cap[a] -= push
				g.cap[a^1] += push
				if !found && g.cap[a] <= flowEpsilon {
					cut, found = i, true
				}
			}
			total += push
			// resume from the tail of the first saturated arc
			path = path[:cut]
			continue
		}

		advanced := false
		for ; g.iter[u] >= 0; g.iter[u] = g.next[g.iter[u]] {
			a := g.iter[u]
			v := g.to[a]
			if g.cap[a] > flowEpsilon && g.level[v] == g.level[u]+1 {
				path = append(path, frame{node: v, arc: a})
				advanced = true
				break
			}
		}
		if !advanced {
			// dead end: prune u and skip the arc that led here
			g.level[u] = -1
			path = path[:len(path)-1]
			if len(path) > 0 {
				p := path[len(path)-1].node
				g.iter[p] = g.next[g.iter[p]]
			}
		}
	}
	return total
}

// maxFlow saturates the network and returns the total flow, including the
// part accounted for by addTerminal.
func (g *graph) maxFlow() float64 {
	for g.bfs() {
		copy(g.iter, g.head)
		g.flow += g.augment()
	}
	return g.flow
}

// sourceSide reports, for every pixel node, whether it is reachable from the
// source in the residual network after maxFlow.
func (g *graph) sourceSide() []bool {
	seen := make([]bool, g.nodes)
	stack := []int32{int32(g.source)}
	seen[g.source] = true
	for len(stack) > 0 {
		u := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for a := g.head[u]; a >= 0; a = g.next[a] {
			v := g.to[a]
			if g.cap[a] > flowEpsilon && !seen[v] {
				seen[v] = true
				stack = append(stack, v)
			}
		}
	}
	return seen[:g.nodes-2]
}
