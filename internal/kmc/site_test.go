package kmc

import (
	"math"
	"testing"
)

func buildSite(t *testing.T, id int, rates map[int]float64, seed uint64) *Site {
	t.Helper()
	store := NewRateStore()
	for to, r := range rates {
		if err := store.AddRate(id, to, r); err != nil {
			t.Fatalf("AddRate: %v", err)
		}
	}
	s := newSite(id, store.Outgoing(id))
	s.setRandomSeed(seed)
	return s
}

func TestSite_DwellTimePositiveAndFinite(t *testing.T) {
	s := buildSite(t, 0, map[int]float64{1: 2, 2: 3}, 11)
	for i := 0; i < 100; i++ {
		dt := s.DwellTime(0)
		if dt <= 0 || math.IsInf(dt, 1) || math.IsNaN(dt) {
			t.Fatalf("dwell time %v out of range", dt)
		}
	}
}

func TestSite_DrainDwellsForever(t *testing.T) {
	s := newSite(3, nil)
	s.setRandomSeed(1)
	if dt := s.DwellTime(0); !math.IsInf(dt, 1) {
		t.Errorf("drain dwell = %v, want +Inf", dt)
	}
	if got := s.PickNewSite(0); got != 3 {
		t.Errorf("drain PickNewSite = %d, want own id 3", got)
	}
}

func TestSite_PickNewSiteFollowsRates(t *testing.T) {
	// One neighbor vastly dominates; nearly every pick must land on it.
	s := buildSite(t, 0, map[int]float64{1: 1e9, 2: 1}, 5)
	counts := make(map[int]int)
	for i := 0; i < 1000; i++ {
		counts[s.PickNewSite(0)]++
	}
	if counts[1] < 990 {
		t.Errorf("dominant neighbor picked %d/1000 times", counts[1])
	}
}

func TestSite_SameSeedSameDraws(t *testing.T) {
	a := buildSite(t, 0, map[int]float64{1: 1, 2: 2, 3: 4}, 42)
	b := buildSite(t, 0, map[int]float64{1: 1, 2: 2, 3: 4}, 42)
	for i := 0; i < 50; i++ {
		if da, db := a.DwellTime(0), b.DwellTime(0); da != db {
			t.Fatalf("draw %d: dwell %v != %v", i, da, db)
		}
		if pa, pb := a.PickNewSite(0), b.PickNewSite(0); pa != pb {
			t.Fatalf("draw %d: pick %d != %d", i, pa, pb)
		}
	}
}

func TestSite_OccupyVacateVisits(t *testing.T) {
	s := buildSite(t, 0, map[int]float64{1: 1}, 1)
	if s.IsOccupied(0) {
		t.Fatal("new site should be vacant")
	}
	s.Occupy(0)
	if !s.IsOccupied(0) {
		t.Error("site should be occupied")
	}
	s.Occupy(0)
	s.Vacate(0)
	if s.IsOccupied(0) {
		t.Error("site should be vacant after Vacate")
	}
	if s.VisitFrequency() != 2 {
		t.Errorf("visits = %d, want 2", s.VisitFrequency())
	}
}

func TestSite_RefreshProbabilitiesSeesRateChange(t *testing.T) {
	store := NewRateStore()
	if err := store.AddRate(0, 1, 1); err != nil {
		t.Fatalf("AddRate: %v", err)
	}
	if err := store.AddRate(0, 2, 1); err != nil {
		t.Fatalf("AddRate: %v", err)
	}
	s := newSite(0, store.Outgoing(0))
	s.setRandomSeed(3)
	if s.TotalRate() != 2 {
		t.Fatalf("total rate = %v, want 2", s.TotalRate())
	}
	if err := store.SetRate(0, 1, 9); err != nil {
		t.Fatalf("SetRate: %v", err)
	}
	s.refreshProbabilities()
	if s.TotalRate() != 10 {
		t.Errorf("total rate after refresh = %v, want 10", s.TotalRate())
	}
}
