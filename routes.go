package ransim

// routes.go computes the routing tables installed at reconfiguration
// time.  The bandwidth matrix is converted into the data structures of
// a graph package, and a breadth-first search rooted at every device
// yields minimum-hop routes with deterministic tie-breaks.

import (
	"math"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/graph/simple"
)

// buildConnGraph returns a graph built from the bandwidth matrix.  A
// directed edge exists wherever a link carries positive bandwidth; the
// weight is 1 so that path length counts hops.
func buildConnGraph(bandwidths [][]float64) *simple.WeightedDirectedGraph {
	connGraph := simple.NewWeightedDirectedGraph(0, math.Inf(1))

	for nodeID := range bandwidths {
		connGraph.AddNode(simple.Node(nodeID))
	}
	for src := range bandwidths {
		for dest := range bandwidths[src] {
			if src == dest || !(bandwidths[src][dest] > 0.0) {
				continue
			}
			connGraph.SetWeightedEdge(simple.WeightedEdge{
				F: simple.Node(src), T: simple.Node(dest), W: 1.0})
		}
	}
	return connGraph
}

// neighborLists extracts each node's outgoing neighbors from the graph,
// sorted ascending and deduped so that BFS visits them deterministically
func neighborLists(connGraph *simple.WeightedDirectedGraph, n int) [][]int {
	adj := make([][]int, n)
	for nodeID := 0; nodeID < n; nodeID++ {
		nbrs := make([]int, 0)
		iter := connGraph.From(int64(nodeID))
		for iter.Next() {
			nbrs = append(nbrs, int(iter.Node().ID()))
		}
		slices.Sort(nbrs)
		adj[nodeID] = slices.Compact(nbrs)
	}
	return adj
}

// precomputeRoutes builds the full route matrix for a bandwidth matrix.
// routes[s][t] is the minimum-hop device sequence from s to t, ties
// broken toward the lowest-numbered neighbor.  A device routes to itself
// with the single-element route.  An unreachable target gets the stub
// route [s,t]; a chunk following a stub queues on a dead link until a
// later reconfiguration repairs the path.
func precomputeRoutes(bandwidths [][]float64) [][][]int {
	n := len(bandwidths)
	connGraph := buildConnGraph(bandwidths)
	adj := neighborLists(connGraph, n)

	routes := make([][][]int, n)
	for s := 0; s < n; s++ {
		parent := bfsParents(adj, s)

		routes[s] = make([][]int, n)
		for t := 0; t < n; t++ {
			switch {
			case s == t:
				routes[s][t] = []int{s}
			case parent[t] == -1:
				routes[s][t] = []int{s, t}
			default:
				path := make([]int, 0)
				for cur := t; cur != -1; cur = parent[cur] {
					path = append(path, cur)
				}
				slices.Reverse(path)
				routes[s][t] = path
			}
		}
	}
	return routes
}

// bfsParents runs a breadth-first search from s over the neighbor lists
// and returns the parent of every reached node, -1 elsewhere
func bfsParents(adj [][]int, s int) []int {
	n := len(adj)
	parent := make([]int, n)
	visited := make([]bool, n)
	for idx := range parent {
		parent[idx] = -1
	}

	queue := []int{s}
	visited[s] = true
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		for _, v := range adj[u] {
			if !visited[v] {
				visited[v] = true
				parent[v] = u
				queue = append(queue, v)
			}
		}
	}
	return parent
}

// stubRoutes is the route matrix of a network with no usable links:
// self-routes on the diagonal, two-endpoint stubs elsewhere
func stubRoutes(n int) [][][]int {
	routes := make([][][]int, n)
	for s := 0; s < n; s++ {
		routes[s] = make([][]int, n)
		for t := 0; t < n; t++ {
			if s == t {
				routes[s][t] = []int{s}
			} else {
				routes[s][t] = []int{s, t}
			}
		}
	}
	return routes
}

// routeHops reports the hop count of a route, the number of links a
// chunk following it traverses
func routeHops(route []int) int {
	return len(route) - 1
}
