package kmc

import (
	"reflect"
	"testing"
)

// newTestSystem initializes an engine with the given rates and defaults
// suitable for unit tests.
func newTestSystem(t *testing.T, rates map[int]map[int]float64, timeRes float64) *System {
	t.Helper()
	s := NewSystem()
	if err := s.SetRandomSeed(7); err != nil {
		t.Fatalf("SetRandomSeed: %v", err)
	}
	if err := s.SetTimeResolution(timeRes); err != nil {
		t.Fatalf("SetTimeResolution: %v", err)
	}
	if err := s.InitializeSystem(rates); err != nil {
		t.Fatalf("InitializeSystem: %v", err)
	}
	return s
}

func explore(s *System, seed int) []int {
	e := &basinExplorer{sites: s.sites, clusters: s.clusters, performanceRatio: s.performanceRatio}
	return e.findBasin(seed)
}

func TestBasinExplorer_FindsTwoSiteTrap(t *testing.T) {
	s := newTestSystem(t, map[int]map[int]float64{
		0: {1: 100, 2: 1},
		1: {0: 100, 2: 1},
		2: {3: 1},
	}, 0.1)

	tests := []struct {
		name string
		seed int
		want []int
	}{
		{"from site 0", 0, []int{0, 1}},
		{"from site 1", 1, []int{0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := explore(s, tt.seed); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("findBasin(%d) = %v, want %v", tt.seed, got, tt.want)
			}
		})
	}
}

func TestBasinExplorer_UniformChainStaysSingleton(t *testing.T) {
	rates := make(map[int]map[int]float64)
	for i := 0; i < 9; i++ {
		if rates[i] == nil {
			rates[i] = make(map[int]float64)
		}
		if rates[i+1] == nil {
			rates[i+1] = make(map[int]float64)
		}
		rates[i][i+1] = 1
		rates[i+1][i] = 1
	}
	s := newTestSystem(t, rates, 0.5)

	for _, seed := range []int{0, 4, 9} {
		if got := explore(s, seed); !reflect.DeepEqual(got, []int{seed}) {
			t.Errorf("findBasin(%d) = %v, want [%d]", seed, got, seed)
		}
	}
}

func TestBasinExplorer_NeverAdmitsDrains(t *testing.T) {
	// Site 2 has a huge pull but no way out: it is a drain and must stay
	// outside the basin.
	s := newTestSystem(t, map[int]map[int]float64{
		0: {1: 100, 2: 1000},
		1: {0: 100, 2: 1000},
	}, 0.1)

	got := explore(s, 0)
	for _, id := range got {
		if id == 2 {
			t.Fatalf("findBasin admitted drain site 2: %v", got)
		}
	}
}

func TestBasinExplorer_PullsWholeClusterAsUnit(t *testing.T) {
	// Two tight pairs joined by a weak bridge. Once {2,3} is a cluster,
	// exploring from the other pair must pull it in wholesale.
	s := newTestSystem(t, map[int]map[int]float64{
		0: {1: 100},
		1: {0: 100, 2: 0.01},
		2: {1: 0.01, 3: 100},
		3: {2: 100},
	}, 500)

	ok, err := s.coarseGrain(2)
	if err != nil {
		t.Fatalf("coarseGrain(2): %v", err)
	}
	if !ok {
		t.Fatal("coarseGrain(2) should have created a cluster over {2,3}")
	}

	got := explore(s, 0)
	if !reflect.DeepEqual(got, []int{0, 1, 2, 3}) {
		t.Errorf("findBasin(0) = %v, want [0 1 2 3]", got)
	}
}
