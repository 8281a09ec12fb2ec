package kmc

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// ConvergenceMethod selects how the master-equation solve decides it is
// done.
type ConvergenceMethod int

const (
	// ConvergeByTolerance iterates until the largest per-site occupation
	// change drops below the tolerance. This is the default.
	ConvergeByTolerance ConvergenceMethod = iota
	// ConvergeByIterationsPerCluster runs a fixed number of iterations.
	ConvergeByIterationsPerCluster
	// ConvergeByIterationsPerSite runs iterations times the member count.
	ConvergeByIterationsPerSite
)

const (
	defaultConvergenceTolerance  = 0.001
	defaultConvergenceIterations = 3
	defaultResolution            = 20.0

	// maxSolveIterations bounds the tolerance-driven solve; hitting it
	// means the fixed point is not converging.
	maxSolveIterations = 100000

	// probabilitySumTolerance is how far the solved occupation may drift
	// from summing to one before the solve is declared broken.
	probabilitySumTolerance = 1e-6
)

// idProb pairs a site id with a cumulative probability, the stored form of
// every inverse-CDF table in the cluster.
type idProb struct {
	id  int
	cum float64
}

// Cluster aggregates a basin of sites into one topology feature whose dwell
// and exit statistics approximate the basin's equilibrium behavior.
type Cluster struct {
	id         int
	resolution float64

	method     ConvergenceMethod
	tolerance  float64
	iterations int

	// escapeTimeConstant is +Inf for a fully absorbing cluster.
	escapeTimeConstant float64

	members   map[int]*Site
	memberIDs []int

	occupationProb map[int]float64
	internalHop    []idProb
	exitProbs      []idProb
	hopOffProb     map[int]float64

	// internalNeighborCDF holds, per member, the inverse CDF over that
	// member's neighbors restricted to the cluster.
	internalNeighborCDF map[int][]idProb

	visits map[int]int
	rng    *rand.Rand
}

func newCluster(id int) *Cluster {
	return &Cluster{
		id:         id,
		resolution: defaultResolution,
		method:     ConvergeByTolerance,
		tolerance:  defaultConvergenceTolerance,
		iterations: defaultConvergenceIterations,
		members:    make(map[int]*Site),
		visits:     make(map[int]int),
	}
}

func (c *Cluster) setRandomSeed(seed uint64) {
	c.rng = rand.New(rand.NewSource(int64(seed)))
}

// ID returns the cluster id.
func (c *Cluster) ID() int { return c.id }

// Members returns the member site ids, sorted ascending.
func (c *Cluster) Members() []int {
	out := make([]int, len(c.memberIDs))
	copy(out, c.memberIDs)
	return out
}

// Contains reports whether siteID belongs to the cluster.
func (c *Cluster) Contains(siteID int) bool {
	_, ok := c.members[siteID]
	return ok
}

// Resolution returns the macro-step refinement factor.
func (c *Cluster) Resolution() float64 { return c.resolution }

// SetResolution sets how finely dwell times are discretized relative to
// the escape time constant.
func (c *Cluster) SetResolution(res float64) { c.resolution = res }

// EscapeTimeConstant returns tau, the expected inverse escape rate.
func (c *Cluster) EscapeTimeConstant() float64 { return c.escapeTimeConstant }

// TimeIncrement returns the maximum macro-step length tau/resolution.
func (c *Cluster) TimeIncrement() float64 {
	if math.IsInf(c.escapeTimeConstant, 1) {
		return math.Inf(1)
	}
	return c.escapeTimeConstant / c.resolution
}

// OccupationProbability returns the solved steady-state probability of the
// member site.
func (c *Cluster) OccupationProbability(siteID int) (float64, error) {
	p, ok := c.occupationProb[siteID]
	if !ok {
		return 0, fmt.Errorf("%w: site %d not in cluster %d", ErrUnknownSite, siteID, c.id)
	}
	return p, nil
}

// VisitFrequency returns how often the cluster picked the member site as
// the walker's interior position.
func (c *Cluster) VisitFrequency(siteID int) int { return c.visits[siteID] }

// SetConvergenceMethod selects the solve stopping criterion.
func (c *Cluster) SetConvergenceMethod(m ConvergenceMethod) { c.method = m }

// SetConvergenceTolerance sets the tolerance for ConvergeByTolerance.
func (c *Cluster) SetConvergenceTolerance(tol float64) error {
	if tol <= 0 {
		return fmt.Errorf("%w: tolerance %v must be positive", ErrInvalidArgument, tol)
	}
	c.tolerance = tol
	return nil
}

// SetConvergenceIterations sets the iteration count for the two
// iteration-driven methods.
func (c *Cluster) SetConvergenceIterations(n int) error {
	if n <= 0 {
		return fmt.Errorf("%w: iterations %d must be positive", ErrInvalidArgument, n)
	}
	c.iterations = n
	return nil
}

// AddSites extends the membership. Adding a site twice is an error. The
// caller must Solve afterwards.
func (c *Cluster) AddSites(sites ...*Site) error {
	for _, s := range sites {
		if _, ok := c.members[s.id]; ok {
			return fmt.Errorf("%w: site %d already in cluster %d", ErrInvalidArgument, s.id, c.id)
		}
		c.members[s.id] = s
		s.clusterID = c.id
	}
	c.rebuildMemberIDs()
	return nil
}

// MigrateFrom moves every member of other into this cluster, carrying the
// per-site visit counts along. The other cluster is left empty; the caller
// must Solve afterwards and erase it.
func (c *Cluster) MigrateFrom(other *Cluster) {
	for id, s := range other.members {
		c.members[id] = s
		s.clusterID = c.id
		c.visits[id] += other.visits[id]
	}
	other.members = make(map[int]*Site)
	other.memberIDs = nil
	c.rebuildMemberIDs()
}

func (c *Cluster) rebuildMemberIDs() {
	c.memberIDs = c.memberIDs[:0]
	for id := range c.members {
		c.memberIDs = append(c.memberIDs, id)
	}
	sort.Ints(c.memberIDs)
}

// Solve recomputes the steady-state occupation probabilities and every
// derived table from the current rates. Call after AddSites, MigrateFrom,
// or an in-place rate change.
func (c *Cluster) Solve() error {
	n := len(c.memberIDs)
	if n == 0 {
		return fmt.Errorf("%w: cluster %d has no members", ErrInternal, c.id)
	}

	// Total outgoing rate per member, internal and external together.
	// Read through the rate references so in-place mutations are seen.
	totals := make(map[int]float64, n)
	for _, id := range c.memberIDs {
		sum := 0.0
		for _, nb := range c.members[id].neighbors {
			sum += *nb.Rate
		}
		totals[id] = sum
	}

	pi, err := c.solveMasterEquation(totals)
	if err != nil {
		return err
	}
	c.occupationProb = pi

	c.deriveEscape(totals)
	c.deriveInternalHop()
	c.deriveInternalNeighborCDFs()
	return nil
}

// solveMasterEquation runs the fixed-point iteration pi = pi * P starting
// from the uniform distribution, renormalizing each sweep.
func (c *Cluster) solveMasterEquation(totals map[int]float64) (map[int]float64, error) {
	n := len(c.memberIDs)
	pi := make(map[int]float64, n)
	for _, id := range c.memberIDs {
		pi[id] = 1.0 / float64(n)
	}

	limit := maxSolveIterations
	switch c.method {
	case ConvergeByIterationsPerCluster:
		limit = c.iterations
	case ConvergeByIterationsPerSite:
		limit = c.iterations * n
	}

	next := make(map[int]float64, n)
	for iter := 0; iter < limit; iter++ {
		// The identity shift keeps the sweep from oscillating on
		// bipartite interiors; the normalized fixed point is unchanged.
		for _, id := range c.memberIDs {
			next[id] = pi[id]
		}
		for _, i := range c.memberIDs {
			if totals[i] == 0 {
				continue
			}
			w := pi[i] / totals[i]
			for _, nb := range c.members[i].neighbors {
				if _, internal := c.members[nb.ID]; internal {
					next[nb.ID] += w * *nb.Rate
				}
			}
		}

		sum := 0.0
		for _, id := range c.memberIDs {
			sum += next[id]
		}
		if sum <= 0 {
			return nil, fmt.Errorf("%w: cluster %d occupation vanished during solve", ErrInternal, c.id)
		}

		maxDiff := 0.0
		for _, id := range c.memberIDs {
			v := next[id] / sum
			if d := math.Abs(v - pi[id]); d > maxDiff {
				maxDiff = d
			}
			pi[id] = v
		}
		if c.method == ConvergeByTolerance {
			if maxDiff < c.tolerance {
				break
			}
			if iter == limit-1 {
				return nil, fmt.Errorf("%w: cluster %d master equation did not converge in %d iterations", ErrInternal, c.id, limit)
			}
		}
	}

	total := 0.0
	for _, id := range c.memberIDs {
		total += pi[id]
	}
	if math.Abs(total-1.0) > probabilitySumTolerance {
		return nil, fmt.Errorf("%w: cluster %d occupation sums to %v", ErrInternal, c.id, total)
	}
	return pi, nil
}

// deriveEscape computes the escape time constant, the exit CDF over
// non-member neighbors, and the per-member hop-off probabilities.
func (c *Cluster) deriveEscape(totals map[int]float64) {
	c.hopOffProb = make(map[int]float64, len(c.memberIDs))

	// Weighted rate out of the cluster per external neighbor.
	exitRates := make(map[int]float64)
	escapeRate := 0.0
	for _, i := range c.memberIDs {
		off := 0.0
		for _, nb := range c.members[i].neighbors {
			if _, internal := c.members[nb.ID]; internal {
				continue
			}
			off += *nb.Rate
			exitRates[nb.ID] += c.occupationProb[i] * *nb.Rate
			escapeRate += c.occupationProb[i] * *nb.Rate
		}
		if totals[i] > 0 {
			c.hopOffProb[i] = off / totals[i]
		} else {
			c.hopOffProb[i] = 0
		}
	}

	c.exitProbs = c.exitProbs[:0]
	if escapeRate == 0 {
		c.escapeTimeConstant = math.Inf(1)
		return
	}
	c.escapeTimeConstant = 1.0 / escapeRate

	exitIDs := make([]int, 0, len(exitRates))
	for id := range exitRates {
		exitIDs = append(exitIDs, id)
	}
	sort.Ints(exitIDs)
	sum := 0.0
	for _, id := range exitIDs {
		sum += exitRates[id] / escapeRate
		c.exitProbs = append(c.exitProbs, idProb{id: id, cum: sum})
	}
	c.exitProbs[len(c.exitProbs)-1].cum = 1.0
}

func (c *Cluster) deriveInternalHop() {
	c.internalHop = c.internalHop[:0]
	sum := 0.0
	for _, id := range c.memberIDs {
		sum += c.occupationProb[id]
	}
	cum := 0.0
	for _, id := range c.memberIDs {
		cum += c.occupationProb[id] / sum
		c.internalHop = append(c.internalHop, idProb{id: id, cum: cum})
	}
	c.internalHop[len(c.internalHop)-1].cum = 1.0
}

func (c *Cluster) deriveInternalNeighborCDFs() {
	c.internalNeighborCDF = make(map[int][]idProb, len(c.memberIDs))
	for _, i := range c.memberIDs {
		sum := 0.0
		for _, nb := range c.members[i].neighbors {
			if _, internal := c.members[nb.ID]; internal {
				sum += *nb.Rate
			}
		}
		if sum == 0 {
			continue
		}
		var cdf []idProb
		cum := 0.0
		for _, nb := range c.members[i].neighbors {
			if _, internal := c.members[nb.ID]; !internal {
				continue
			}
			cum += *nb.Rate / sum
			cdf = append(cdf, idProb{id: nb.ID, cum: cum})
		}
		cdf[len(cdf)-1].cum = 1.0
		c.internalNeighborCDF[i] = cdf
	}
}

// DwellTime samples (tau/resolution) * -ln(u), a finer-grained draw than
// the raw escape distribution so the simulation observes interior updates
// within one time resolution window. Absorbing clusters dwell forever.
func (c *Cluster) DwellTime(walkerID int) float64 {
	_ = walkerID
	if math.IsInf(c.escapeTimeConstant, 1) {
		return math.Inf(1)
	}
	u := 1.0 - c.rng.Float64()
	return c.escapeTimeConstant / c.resolution * -math.Log(u)
}

// PickNewSite picks the walker's interior position from the equilibrium
// occupation, then decides between exiting the cluster and hopping to an
// internal neighbor of that position.
func (c *Cluster) PickNewSite(walkerID int) int {
	_ = walkerID
	current := c.pickFromCDF(c.internalHop)
	c.visits[current]++

	if c.rng.Float64() < c.hopOffProb[current] && len(c.exitProbs) > 0 {
		return c.pickFromCDF(c.exitProbs)
	}
	cdf, ok := c.internalNeighborCDF[current]
	if !ok {
		// No internal neighbor to move to; stay put.
		return current
	}
	return c.pickFromCDF(cdf)
}

func (c *Cluster) pickFromCDF(cdf []idProb) int {
	u := c.rng.Float64()
	for _, e := range cdf {
		if u < e.cum {
			return e.id
		}
	}
	return cdf[len(cdf)-1].id
}

// Occupy marks the member site occupied. Visit accounting for clusters
// happens in PickNewSite, not here.
func (c *Cluster) Occupy(siteID int) {
	if s, ok := c.members[siteID]; ok {
		s.occupied = true
	}
}

// Vacate clears the member site's occupied flag.
func (c *Cluster) Vacate(siteID int) {
	if s, ok := c.members[siteID]; ok {
		s.occupied = false
	}
}

// IsOccupied reports whether the member site holds a walker.
func (c *Cluster) IsOccupied(siteID int) bool {
	if s, ok := c.members[siteID]; ok {
		return s.occupied
	}
	return false
}

// RemoveWalker vacates the member site the departing walker occupied.
func (c *Cluster) RemoveWalker(walkerID, siteID int) {
	_ = walkerID
	c.Vacate(siteID)
}
