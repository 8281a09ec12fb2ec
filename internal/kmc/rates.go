package kmc

import (
	"fmt"
	"sort"
)

// Neighbor is one directed rate out of a site. The rate is held by pointer
// so a caller-side mutation through SetRate is visible to every feature
// that cached the reference.
type Neighbor struct {
	ID   int
	Rate *float64
}

// RateStore is the append-only table of directed hop rates. Rates are
// indexed by (from, to) and never removed once added.
type RateStore struct {
	rates map[int]map[int]*float64
}

// NewRateStore returns an empty rate table.
func NewRateStore() *RateStore {
	return &RateStore{rates: make(map[int]map[int]*float64)}
}

// AddRate registers the directed rate from -> to. Adding the same pair
// twice fails with ErrDuplicateRate; non-positive rates fail with
// ErrInvalidArgument.
func (r *RateStore) AddRate(from, to int, rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("%w: rate %v from %d to %d must be positive", ErrInvalidArgument, rate, from, to)
	}
	if _, ok := r.rates[from][to]; ok {
		return fmt.Errorf("%w: %d -> %d", ErrDuplicateRate, from, to)
	}
	if r.rates[from] == nil {
		r.rates[from] = make(map[int]*float64)
	}
	v := rate
	r.rates[from][to] = &v
	return nil
}

// SetRate updates an existing rate in place. Code that reads the rate
// reference (the basin explorer, Cluster.Solve) observes the new value; a
// Site's cached total rate and hop distribution are not rebuilt, and
// cluster probabilities must be re-solved by the caller afterwards.
func (r *RateStore) SetRate(from, to int, rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("%w: rate %v from %d to %d must be positive", ErrInvalidArgument, rate, from, to)
	}
	ref, ok := r.rates[from][to]
	if !ok {
		return fmt.Errorf("%w: no rate %d -> %d", ErrUnknownSite, from, to)
	}
	*ref = rate
	return nil
}

// Rate returns the current rate from -> to.
func (r *RateStore) Rate(from, to int) (float64, error) {
	ref, ok := r.rates[from][to]
	if !ok {
		return 0, fmt.Errorf("%w: no rate %d -> %d", ErrUnknownSite, from, to)
	}
	return *ref, nil
}

// Outgoing returns the neighbors reachable from site, sorted by id.
// Drain sites return an empty list.
func (r *RateStore) Outgoing(site int) []Neighbor {
	row := r.rates[site]
	out := make([]Neighbor, 0, len(row))
	for id, ref := range row {
		out = append(out, Neighbor{ID: id, Rate: ref})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Incoming returns the sites with a rate into site, sorted by id.
func (r *RateStore) Incoming(site int) []Neighbor {
	var in []Neighbor
	for from, row := range r.rates {
		if ref, ok := row[site]; ok {
			in = append(in, Neighbor{ID: from, Rate: ref})
		}
	}
	sort.Slice(in, func(i, j int) bool { return in[i].ID < in[j].ID })
	return in
}

// Sources returns sites with outgoing rates but no incoming rates.
func (r *RateStore) Sources() []int {
	incoming := r.idsWithIncoming()
	var sources []int
	for site := range r.rates {
		if !incoming[site] {
			sources = append(sources, site)
		}
	}
	sort.Ints(sources)
	return sources
}

// Sinks returns sites with incoming rates but no outgoing rates.
func (r *RateStore) Sinks() []int {
	incoming := r.idsWithIncoming()
	var sinks []int
	for site := range incoming {
		if len(r.rates[site]) == 0 {
			sinks = append(sinks, site)
		}
	}
	sort.Ints(sinks)
	return sinks
}

func (r *RateStore) idsWithIncoming() map[int]bool {
	incoming := make(map[int]bool)
	for _, row := range r.rates {
		for to := range row {
			incoming[to] = true
		}
	}
	return incoming
}
