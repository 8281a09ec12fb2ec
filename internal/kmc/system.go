// Package kmc is an adaptive coarse-graining engine for kinetic Monte
// Carlo simulations of walkers hopping on a disordered rate graph. Basins
// of tightly coupled sites discovered during the walk are collapsed into
// cluster features whose dwell and exit statistics reproduce the basin's
// equilibrium behavior, and the walker loop hops against sites and
// clusters through one uniform dispatch.
package kmc

import (
	"fmt"
	"math"
	"sort"

	"kmc-grain/internal/graph"
)

const (
	defaultIterationThreshold = 1000
	defaultPerformanceRatio   = 1.00
	defaultMinResolution      = 2
)

// WalkerEntry pairs a caller-chosen walker id with its state.
type WalkerEntry struct {
	ID     int
	Walker *Walker
}

// System is the coarse-graining KMC engine. It owns the rate table, the
// topology features, and the dispatch that routes every hop to the feature
// currently responsible for a site. All access is single-threaded.
type System struct {
	store    *RateStore
	sites    map[int]*Site
	clusters map[int]*Cluster
	features map[int]topologyFeature

	timeResolution    float64
	timeResolutionSet bool

	seed    uint64
	seedSet bool

	performanceRatio float64
	minResolution    int

	iteration     int
	threshold     int
	thresholdMin  int
	nextClusterID int
}

// NewSystem returns an engine with default coarse-graining parameters:
// iteration threshold 1000, performance ratio 1.00, minimum resolution 2.
func NewSystem() *System {
	return &System{
		store:            NewRateStore(),
		sites:            make(map[int]*Site),
		clusters:         make(map[int]*Cluster),
		features:         make(map[int]topologyFeature),
		performanceRatio: defaultPerformanceRatio,
		minResolution:    defaultMinResolution,
		threshold:        defaultIterationThreshold,
		thresholdMin:     defaultIterationThreshold,
	}
}

// SetRandomSeed sets the base of the monotonic seed sequence handed to each
// site and cluster. Must be called before InitializeSystem.
func (s *System) SetRandomSeed(seed uint64) error {
	if len(s.features) != 0 {
		return fmt.Errorf("%w: random seed must be set before InitializeSystem", ErrInvalidArgument)
	}
	s.seed = seed
	s.seedSet = true
	return nil
}

// SetTimeResolution sets the simulation's sampling time window. Must be
// called before InitializeSystem.
func (s *System) SetTimeResolution(tr float64) error {
	if tr <= 0 {
		return fmt.Errorf("%w: time resolution %v must be positive", ErrInvalidArgument, tr)
	}
	s.timeResolution = tr
	s.timeResolutionSet = true
	return nil
}

// TimeResolution returns the configured time resolution.
func (s *System) TimeResolution() (float64, error) {
	if !s.timeResolutionSet {
		return 0, fmt.Errorf("%w: time resolution has not been set", ErrNotInitialized)
	}
	return s.timeResolution, nil
}

// SetMinCoarseGrainIterationThreshold sets the hop count at which coarse
// graining is attempted. Pass InfiniteThreshold to disable coarse graining.
func (s *System) SetMinCoarseGrainIterationThreshold(threshold int) {
	s.thresholdMin = threshold
	s.threshold = threshold
}

// SetPerformanceRatio tunes how strongly the equilibrium test must favor a
// basin before it is collapsed.
func (s *System) SetPerformanceRatio(ratio float64) error {
	if ratio < 0 {
		return fmt.Errorf("%w: performance ratio %v must be non-negative", ErrInvalidArgument, ratio)
	}
	s.performanceRatio = ratio
	return nil
}

// SetMinCoarseGrainingResolution sets the lower bound on cluster
// resolution.
func (s *System) SetMinCoarseGrainingResolution(res int) error {
	if res < 2 {
		return fmt.Errorf("%w: minimum coarse graining resolution %d must be at least 2", ErrInvalidArgument, res)
	}
	s.minResolution = res
	return nil
}

// nextSeed hands out the next RNG seed in the monotonic sequence.
func (s *System) nextSeed() uint64 {
	v := s.seed
	s.seed++
	return v
}

// InitializeSystem registers every site and its outgoing rates. Sites that
// appear only as destinations are auto-registered as degree-zero drains.
// The time resolution must already be set.
func (s *System) InitializeSystem(rates map[int]map[int]float64) error {
	if !s.timeResolutionSet {
		return fmt.Errorf("%w: set the time resolution before initializing the system", ErrNotInitialized)
	}
	if len(s.features) != 0 {
		return fmt.Errorf("%w: system already initialized", ErrInvalidArgument)
	}

	// Sorted insertion keeps seed assignment and CDF construction
	// independent of Go's map iteration order.
	siteIDs := make([]int, 0, len(rates))
	for id := range rates {
		siteIDs = append(siteIDs, id)
	}
	sort.Ints(siteIDs)

	for _, id := range siteIDs {
		neighIDs := make([]int, 0, len(rates[id]))
		for to := range rates[id] {
			neighIDs = append(neighIDs, to)
		}
		sort.Ints(neighIDs)
		for _, to := range neighIDs {
			if err := s.store.AddRate(id, to, rates[id][to]); err != nil {
				return err
			}
		}
	}

	for _, id := range siteIDs {
		site := newSite(id, s.store.Outgoing(id))
		site.setRandomSeed(s.nextSeed())
		s.sites[id] = site
		s.features[id] = site
	}

	// Sites referenced only as destinations act as drains.
	drainSet := make(map[int]bool)
	for _, id := range siteIDs {
		for _, nb := range s.store.Outgoing(id) {
			if _, ok := rates[nb.ID]; !ok {
				drainSet[nb.ID] = true
			}
		}
	}
	drains := make([]int, 0, len(drainSet))
	for id := range drainSet {
		drains = append(drains, id)
	}
	sort.Ints(drains)
	for _, id := range drains {
		site := newSite(id, nil)
		site.setRandomSeed(s.nextSeed())
		s.sites[id] = site
		s.features[id] = site
	}
	return nil
}

// InitializeWalkers places walkers on their current sites and pre-samples
// each walker's dwell time and hop destination.
func (s *System) InitializeWalkers(walkers []WalkerEntry) error {
	if len(s.features) == 0 {
		return fmt.Errorf("%w: initialize the system before the walkers", ErrNotInitialized)
	}
	for i, entry := range walkers {
		if entry.Walker == nil {
			return fmt.Errorf("%w: walker at index %d is nil", ErrInvalidArgument, i)
		}
		siteID, err := entry.Walker.CurrentSite()
		if err != nil {
			return fmt.Errorf("walker at index %d: %w", i, err)
		}
		feature, ok := s.features[siteID]
		if !ok {
			return fmt.Errorf("%w: walker at index %d occupies site %d, which was not part of InitializeSystem", ErrUnknownSite, i, siteID)
		}
		feature.Occupy(siteID)
		entry.Walker.SetDwellTime(feature.DwellTime(entry.ID))
		entry.Walker.SetPotentialSite(feature.PickNewSite(entry.ID))
	}
	return nil
}

// Hop advances one walker by a single KMC step. An occupied destination
// blocks the hop; the walker then stays put and re-samples its dwell time
// and destination. Coarse graining is attempted on the destination site
// whenever the global iteration counter crosses the adaptive threshold.
func (s *System) Hop(walkerID int, w *Walker) error {
	if w == nil {
		return fmt.Errorf("%w: nil walker", ErrInvalidArgument)
	}
	siteID, err := w.CurrentSite()
	if err != nil {
		return err
	}
	destID, err := w.PotentialSite()
	if err != nil {
		return err
	}
	feature, ok := s.features[siteID]
	if !ok {
		return fmt.Errorf("%w: site %d", ErrUnknownSite, siteID)
	}
	destFeature, ok := s.features[destID]
	if !ok {
		return fmt.Errorf("%w: site %d", ErrUnknownSite, destID)
	}

	if !destFeature.IsOccupied(destID) {
		feature.Vacate(siteID)
		destFeature.Occupy(destID)
		w.OccupySite(destID)
		w.SetDwellTime(destFeature.DwellTime(walkerID))
		w.SetPotentialSite(destFeature.PickNewSite(walkerID))
	} else {
		// Blocked: refresh the walker's draw at its current feature.
		feature.Vacate(siteID)
		feature.Occupy(siteID)
		w.SetDwellTime(feature.DwellTime(walkerID))
		w.SetPotentialSite(feature.PickNewSite(walkerID))
	}

	s.iteration++
	if s.iteration > s.threshold {
		if s.thresholdMin != InfiniteThreshold {
			grained, err := s.coarseGrain(destID)
			if err != nil {
				return err
			}
			if grained {
				s.threshold = s.thresholdMin
			} else if s.threshold <= math.MaxInt/2 {
				s.threshold *= 2
			}
		}
		s.iteration = 0
	}
	return nil
}

// RemoveWalker vacates the walker's current feature.
func (s *System) RemoveWalker(walkerID int, w *Walker) error {
	siteID, err := w.CurrentSite()
	if err != nil {
		return err
	}
	feature, ok := s.features[siteID]
	if !ok {
		return fmt.Errorf("%w: site %d", ErrUnknownSite, siteID)
	}
	feature.RemoveWalker(walkerID, siteID)
	return nil
}

// coarseGrain explores a basin from the seed site, runs the equilibrium
// test, and creates or merges a cluster when the test passes. Returns true
// when the topology changed.
func (s *System) coarseGrain(seedID int) (bool, error) {
	explorer := &basinExplorer{sites: s.sites, clusters: s.clusters, performanceRatio: s.performanceRatio}
	candidates := explorer.findBasin(seedID)
	if len(candidates) < 2 {
		return false, nil
	}

	internalLimit := s.internalTimeLimit(candidates)
	if !s.satisfiesEquilibrium(candidates, internalLimit) {
		return false, nil
	}

	clusterIDs := make(map[int]bool)
	var freeSites []int
	for _, id := range candidates {
		if cid := s.sites[id].clusterID; cid != Unassigned {
			clusterIDs[cid] = true
		} else {
			freeSites = append(freeSites, id)
		}
	}

	if len(clusterIDs) == 0 {
		if err := s.createCluster(candidates, internalLimit); err != nil {
			return false, err
		}
		return true, nil
	}
	if len(clusterIDs) == 1 && len(freeSites) == 0 {
		// The basin already is exactly one cluster: nothing to do.
		return false, nil
	}
	if err := s.mergeIntoFavored(clusterIDs, freeSites, internalLimit); err != nil {
		return false, err
	}
	return true, nil
}

// internalTimeLimit is the worst-case equilibration time inside the
// candidate basin: the maximum over all site pairs of the bottleneck
// shortest-path distance on inverse-rate edge weights.
func (s *System) internalTimeLimit(candidates []int) float64 {
	inside := make(map[int]bool, len(candidates))
	for _, id := range candidates {
		inside[id] = true
	}
	g := graph.NewWeighted()
	for _, id := range candidates {
		g.AddVertex(id)
		for _, nb := range s.sites[id].neighbors {
			if inside[nb.ID] {
				g.AddEdge(id, nb.ID, 1.0 / *nb.Rate)
			}
		}
	}
	return g.WorstPairBottleneck()
}

// externalTimeConstant is the time constant for leaving the candidate
// basin. A basin with no way out gets an infinite constant, so absorbing
// merges are still admitted.
func (s *System) externalTimeConstant(candidates []int) float64 {
	inside := make(map[int]bool, len(candidates))
	for _, id := range candidates {
		inside[id] = true
	}
	sum := 0.0
	for _, id := range candidates {
		for _, nb := range s.sites[id].neighbors {
			if !inside[nb.ID] {
				sum += *nb.Rate
			}
		}
	}
	if sum == 0 {
		return math.Inf(1)
	}
	return 1.0 / sum
}

// satisfiesEquilibrium is the coarse-graining admission test: collapsing
// the basin must at least halve the simulated time (scaled by the
// performance ratio), and the cluster must still update at least once per
// time resolution window.
func (s *System) satisfiesEquilibrium(candidates []int, internalLimit float64) bool {
	external := s.externalTimeConstant(candidates)
	traverse := internalLimit * float64(s.minResolution)
	return external > traverse*s.performanceRatio && traverse < s.timeResolution
}

// chooseResolution picks how finely the new cluster discretizes its escape
// time constant: coarse enough to be worth it, fine enough to update once
// per time resolution window, never below the configured minimum.
func (s *System) chooseResolution(timeConstant, internalLimit float64) float64 {
	res := timeConstant / (2 * internalLimit)
	if allowed := timeConstant / s.timeResolution; allowed < res {
		res = allowed
	}
	if res < float64(s.minResolution) {
		res = float64(s.minResolution)
	}
	return res
}

func (s *System) createCluster(candidates []int, internalLimit float64) error {
	c := newCluster(s.nextClusterID)
	s.nextClusterID++
	c.setRandomSeed(s.nextSeed())

	members := make([]*Site, 0, len(candidates))
	for _, id := range candidates {
		members = append(members, s.sites[id])
	}
	if err := c.AddSites(members...); err != nil {
		return err
	}
	if err := c.Solve(); err != nil {
		return err
	}
	c.SetResolution(s.chooseResolution(c.EscapeTimeConstant(), internalLimit))

	s.clusters[c.id] = c
	for _, id := range candidates {
		s.features[id] = c
	}
	return nil
}

// mergeIntoFavored folds every candidate cluster and free site into the
// lowest-numbered cluster, then re-solves it.
func (s *System) mergeIntoFavored(clusterIDs map[int]bool, freeSites []int, internalLimit float64) error {
	favored := -1
	merged := make([]int, 0, len(clusterIDs))
	for id := range clusterIDs {
		merged = append(merged, id)
		if favored == -1 || id < favored {
			favored = id
		}
	}
	sort.Ints(merged)

	target := s.clusters[favored]
	for _, id := range freeSites {
		if err := target.AddSites(s.sites[id]); err != nil {
			return err
		}
		s.features[id] = target
	}
	for _, id := range merged {
		if id == favored {
			continue
		}
		other := s.clusters[id]
		for _, siteID := range other.Members() {
			s.features[siteID] = target
		}
		target.MigrateFrom(other)
		delete(s.clusters, id)
	}
	if err := target.Solve(); err != nil {
		return err
	}
	target.SetResolution(s.chooseResolution(target.EscapeTimeConstant(), internalLimit))
	return nil
}

// UpdateCluster re-solves a cluster's probabilities after the caller
// mutated rates in place through SetRate.
func (s *System) UpdateCluster(clusterID int) error {
	c, ok := s.clusters[clusterID]
	if !ok {
		return fmt.Errorf("%w: no cluster %d", ErrUnknownSite, clusterID)
	}
	return c.Solve()
}

// RateStore exposes the engine's rate table for in-place rate updates.
func (s *System) RateStore() *RateStore { return s.store }

// VisitFrequency returns the total visits to a site, summed across its own
// feature and any cluster that owns it.
func (s *System) VisitFrequency(siteID int) (int, error) {
	site, ok := s.sites[siteID]
	if !ok {
		return 0, fmt.Errorf("%w: site %d", ErrUnknownSite, siteID)
	}
	visits := site.visits
	if site.clusterID != Unassigned {
		visits += s.clusters[site.clusterID].VisitFrequency(siteID)
	}
	return visits, nil
}

// ClusterIDOfSite returns the owning cluster id, or Unassigned.
func (s *System) ClusterIDOfSite(siteID int) (int, error) {
	site, ok := s.sites[siteID]
	if !ok {
		return Unassigned, fmt.Errorf("%w: site %d", ErrUnknownSite, siteID)
	}
	return site.clusterID, nil
}

// Clusters returns every live cluster's membership, sorted ascending.
func (s *System) Clusters() map[int][]int {
	out := make(map[int][]int, len(s.clusters))
	for id, c := range s.clusters {
		out[id] = c.Members()
	}
	return out
}

// ResolutionOfClusters returns each cluster's resolution.
func (s *System) ResolutionOfClusters() map[int]float64 {
	out := make(map[int]float64, len(s.clusters))
	for id, c := range s.clusters {
		out[id] = c.Resolution()
	}
	return out
}

// TimeIncrementOfClusters returns each cluster's macro-step length
// tau/resolution.
func (s *System) TimeIncrementOfClusters() map[int]float64 {
	out := make(map[int]float64, len(s.clusters))
	for id, c := range s.clusters {
		out[id] = c.TimeIncrement()
	}
	return out
}
