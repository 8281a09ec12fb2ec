package kmc

import "math"

const (
	// Unassigned marks a site that belongs to no cluster and a walker
	// field that has not been set.
	Unassigned = -1

	// InfiniteThreshold disables coarse graining when passed to
	// SetMinCoarseGrainIterationThreshold.
	InfiniteThreshold = math.MaxInt
)

// topologyFeature is the uniform interface the walker loop hops against.
// Both *Site and *Cluster satisfy it; they share no implementation. The
// siteID argument selects the member a cluster acts on and is the feature's
// own id for plain sites.
type topologyFeature interface {
	DwellTime(walkerID int) float64
	PickNewSite(walkerID int) int
	Occupy(siteID int)
	Vacate(siteID int)
	IsOccupied(siteID int) bool
	RemoveWalker(walkerID, siteID int)
}
