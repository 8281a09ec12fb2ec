package graph

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-12
}

func TestBottleneckDistances_PrefersWidePath(t *testing.T) {
	// Two routes 0 -> 3: direct with a heavy edge (10), and a detour whose
	// largest edge is 4. The minimax distance takes the detour.
	g := NewWeighted()
	g.AddEdge(0, 3, 10)
	g.AddEdge(0, 1, 2)
	g.AddEdge(1, 2, 4)
	g.AddEdge(2, 3, 3)

	dist := g.BottleneckDistances(0)
	tests := []struct {
		to   int
		want float64
	}{
		{1, 2},
		{2, 4},
		{3, 4},
	}
	for _, tt := range tests {
		if got := dist[tt.to]; !almostEqual(got, tt.want) {
			t.Errorf("bottleneck 0->%d = %v, want %v", tt.to, got, tt.want)
		}
	}
}

func TestBottleneckDistances_RespectsDirection(t *testing.T) {
	g := NewWeighted()
	g.AddEdge(0, 1, 1)

	if _, ok := g.BottleneckDistances(1)[0]; ok {
		t.Error("vertex 0 should be unreachable against the edge direction")
	}
}

func TestWorstPairBottleneck(t *testing.T) {
	// Symmetric three-vertex path 0-1-2: the worst pairs are those joined
	// only through the heaviest edge.
	g := NewWeighted()
	g.AddEdge(0, 1, 1)
	g.AddEdge(1, 0, 1)
	g.AddEdge(1, 2, 5)
	g.AddEdge(2, 1, 5)

	if got := g.WorstPairBottleneck(); !almostEqual(got, 5) {
		t.Errorf("WorstPairBottleneck = %v, want 5", got)
	}
}

func TestWorstPairBottleneck_Degenerate(t *testing.T) {
	g := NewWeighted()
	if got := g.WorstPairBottleneck(); got != 0 {
		t.Errorf("empty graph = %v, want 0", got)
	}
	g.AddVertex(7)
	if got := g.WorstPairBottleneck(); got != 0 {
		t.Errorf("single vertex = %v, want 0", got)
	}
	// Disconnected pairs are ignored.
	g.AddVertex(8)
	if got := g.WorstPairBottleneck(); got != 0 {
		t.Errorf("disconnected pair = %v, want 0", got)
	}
}
