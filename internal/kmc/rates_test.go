package kmc

import (
	"errors"
	"testing"
)

func TestRateStore_AddAndGet(t *testing.T) {
	store := NewRateStore()
	if err := store.AddRate(0, 1, 2.5); err != nil {
		t.Fatalf("AddRate: %v", err)
	}
	got, err := store.Rate(0, 1)
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if got != 2.5 {
		t.Errorf("Rate(0,1) = %v, want 2.5", got)
	}
	if _, err := store.Rate(1, 0); !errors.Is(err, ErrUnknownSite) {
		t.Errorf("missing rate error = %v, want ErrUnknownSite", err)
	}
}

func TestRateStore_DuplicateAndInvalid(t *testing.T) {
	store := NewRateStore()
	if err := store.AddRate(0, 1, 1); err != nil {
		t.Fatalf("AddRate: %v", err)
	}
	if err := store.AddRate(0, 1, 2); !errors.Is(err, ErrDuplicateRate) {
		t.Errorf("duplicate AddRate error = %v, want ErrDuplicateRate", err)
	}
	tests := []struct {
		name string
		rate float64
	}{
		{"zero", 0},
		{"negative", -3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.AddRate(5, 6, tt.rate); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("AddRate(%v) error = %v, want ErrInvalidArgument", tt.rate, err)
			}
		})
	}
}

func TestRateStore_SetRateVisibleThroughReference(t *testing.T) {
	store := NewRateStore()
	if err := store.AddRate(0, 1, 1); err != nil {
		t.Fatalf("AddRate: %v", err)
	}
	ref := store.Outgoing(0)[0].Rate
	if err := store.SetRate(0, 1, 7); err != nil {
		t.Fatalf("SetRate: %v", err)
	}
	if *ref != 7 {
		t.Errorf("rate through cached reference = %v, want 7", *ref)
	}
}

func TestRateStore_OutgoingSorted(t *testing.T) {
	store := NewRateStore()
	for _, to := range []int{9, 3, 7, 1} {
		if err := store.AddRate(0, to, 1); err != nil {
			t.Fatalf("AddRate: %v", err)
		}
	}
	out := store.Outgoing(0)
	want := []int{1, 3, 7, 9}
	if len(out) != len(want) {
		t.Fatalf("Outgoing returned %d neighbors, want %d", len(out), len(want))
	}
	for i, n := range out {
		if n.ID != want[i] {
			t.Errorf("Outgoing[%d] = %d, want %d", i, n.ID, want[i])
		}
	}
}

func TestRateStore_SourcesAndSinks(t *testing.T) {
	// 0 -> 1 -> 2, with 1 <-> 1' style back edge from 1 to 0 omitted:
	// 0 is a pure source, 2 a pure sink.
	store := NewRateStore()
	for _, e := range []struct {
		from, to int
	}{{0, 1}, {1, 2}} {
		if err := store.AddRate(e.from, e.to, 1); err != nil {
			t.Fatalf("AddRate: %v", err)
		}
	}
	if got := store.Sources(); len(got) != 1 || got[0] != 0 {
		t.Errorf("Sources = %v, want [0]", got)
	}
	if got := store.Sinks(); len(got) != 1 || got[0] != 2 {
		t.Errorf("Sinks = %v, want [2]", got)
	}
	if got := store.Incoming(2); len(got) != 1 || got[0].ID != 1 {
		t.Errorf("Incoming(2) = %v, want one entry from 1", got)
	}
	if got := store.Incoming(0); len(got) != 0 {
		t.Errorf("Incoming(0) = %v, want none", got)
	}
}
