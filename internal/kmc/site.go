package kmc

import (
	"math"
	"math/rand"
)

// Site is the elementary topology feature: a single lattice site emitting
// dwell times and next-site picks from its own seeded RNG.
type Site struct {
	id        int
	clusterID int

	// neighbors is sorted by id; cumulative holds the matching inverse-CDF
	// partial sums. totalRate and cumulative are rebuilt only by
	// refreshProbabilities; an in-place SetRate leaves them unchanged.
	neighbors  []Neighbor
	cumulative []float64
	totalRate  float64

	visits   int
	occupied bool
	rng      *rand.Rand
}

func newSite(id int, neighbors []Neighbor) *Site {
	s := &Site{id: id, clusterID: Unassigned, neighbors: neighbors}
	s.refreshProbabilities()
	return s
}

// setRandomSeed replaces the site RNG with one seeded deterministically.
func (s *Site) setRandomSeed(seed uint64) {
	s.rng = rand.New(rand.NewSource(int64(seed)))
}

// refreshProbabilities recomputes the total escape rate and the cumulative
// hop distribution from the current rate references.
func (s *Site) refreshProbabilities() {
	s.totalRate = 0
	for _, n := range s.neighbors {
		s.totalRate += *n.Rate
	}
	s.cumulative = s.cumulative[:0]
	if s.totalRate == 0 {
		return
	}
	sum := 0.0
	for _, n := range s.neighbors {
		sum += *n.Rate / s.totalRate
		s.cumulative = append(s.cumulative, sum)
	}
	// Guard the tail against floating-point shortfall so the final
	// neighbor is always reachable.
	s.cumulative[len(s.cumulative)-1] = 1.0
}

// ID returns the site id.
func (s *Site) ID() int { return s.id }

// ClusterID returns the owning cluster id, or Unassigned.
func (s *Site) ClusterID() int { return s.clusterID }

// VisitFrequency returns how often the site was occupied while acting as
// its own feature.
func (s *Site) VisitFrequency() int { return s.visits }

// TotalRate returns the sum of outgoing rates.
func (s *Site) TotalRate() float64 { return s.totalRate }

// Neighbors returns the outgoing neighbor list, sorted by id.
func (s *Site) Neighbors() []Neighbor { return s.neighbors }

// maxOutgoingRate returns the strongest single outgoing rate, skipping
// destinations in the excluded set. Returns 0 for drains.
func (s *Site) maxOutgoingRate(exclude map[int]bool) float64 {
	max := 0.0
	for _, n := range s.neighbors {
		if exclude[n.ID] {
			continue
		}
		if *n.Rate > max {
			max = *n.Rate
		}
	}
	return max
}

// DwellTime samples -ln(u)/sum(rates) with u in (0,1]. Drain sites dwell
// forever.
func (s *Site) DwellTime(walkerID int) float64 {
	_ = walkerID
	if s.totalRate == 0 {
		return math.Inf(1)
	}
	u := 1.0 - s.rng.Float64()
	return -math.Log(u) / s.totalRate
}

// PickNewSite samples an outgoing neighbor with probability proportional to
// its rate via the inverse-CDF method. A drain returns its own id.
func (s *Site) PickNewSite(walkerID int) int {
	_ = walkerID
	if len(s.neighbors) == 0 {
		return s.id
	}
	u := s.rng.Float64()
	for i, cum := range s.cumulative {
		if u < cum {
			return s.neighbors[i].ID
		}
	}
	return s.neighbors[len(s.neighbors)-1].ID
}

// Occupy marks the site occupied and counts the visit.
func (s *Site) Occupy(siteID int) {
	_ = siteID
	s.occupied = true
	s.visits++
}

// Vacate clears the occupied flag.
func (s *Site) Vacate(siteID int) {
	_ = siteID
	s.occupied = false
}

// IsOccupied reports whether a walker sits on the site.
func (s *Site) IsOccupied(siteID int) bool {
	_ = siteID
	return s.occupied
}

// RemoveWalker vacates the site when its walker leaves the system.
func (s *Site) RemoveWalker(walkerID, siteID int) {
	_ = walkerID
	s.Vacate(siteID)
}
