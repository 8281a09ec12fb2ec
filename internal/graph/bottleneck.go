package graph

import "container/heap"

// BottleneckDistances computes, for every vertex reachable from origin, the
// minimax distance: the smallest possible value of the largest edge weight
// along any path. It runs a Dijkstra variant whose relaxation takes
// max(d(u), w) instead of d(u)+w, with the usual lazy-decrease-key heap.
func (g *Weighted) BottleneckDistances(origin int) map[int]float64 {
	dist := make(map[int]float64)
	dist[origin] = 0

	pq := &priorityQueue{{vertex: origin, dist: 0}}
	heap.Init(pq)

	for pq.Len() > 0 {
		item := heap.Pop(pq).(pqItem)
		if d, ok := dist[item.vertex]; ok && item.dist > d {
			continue // stale heap entry
		}
		for _, e := range g.adj[item.vertex] {
			nd := item.dist
			if e.Weight > nd {
				nd = e.Weight
			}
			if d, ok := dist[e.To]; !ok || nd < d {
				dist[e.To] = nd
				heap.Push(pq, pqItem{vertex: e.To, dist: nd})
			}
		}
	}
	return dist
}

// WorstPairBottleneck returns the maximum over all ordered vertex pairs of
// the minimax distance, ignoring unreachable pairs. For a basin candidate
// weighted by inverse rates this is the slowest internal equilibration
// time; a graph with fewer than two vertices yields 0.
func (g *Weighted) WorstPairBottleneck() float64 {
	worst := 0.0
	for id := range g.vertices {
		for to, d := range g.BottleneckDistances(id) {
			if to != id && d > worst {
				worst = d
			}
		}
	}
	return worst
}

// Priority queue for the Dijkstra variants.
type pqItem struct {
	vertex int
	dist   float64
}

type priorityQueue []pqItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].dist < pq[j].dist }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(pqItem)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	*pq = old[:n-1]
	return item
}
