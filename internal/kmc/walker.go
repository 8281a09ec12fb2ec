package kmc

import "fmt"

// Walker is a random walker hopping between topology features. It owns no
// RNG: dwell times and next-site picks come from the feature it occupies.
type Walker struct {
	currentSite   int
	potentialSite int
	dwellTime     float64
}

// NewWalker returns an unplaced walker.
func NewWalker() *Walker {
	return &Walker{currentSite: Unassigned, potentialSite: Unassigned, dwellTime: -1}
}

// OccupySite records the site the walker currently sits on.
func (w *Walker) OccupySite(siteID int) { w.currentSite = siteID }

// CurrentSite returns the occupied site id, or ErrWalkerUnplaced if the
// walker has never been placed.
func (w *Walker) CurrentSite() (int, error) {
	if w.currentSite == Unassigned {
		return Unassigned, fmt.Errorf("%w: call OccupySite first", ErrWalkerUnplaced)
	}
	return w.currentSite, nil
}

// PotentialSite returns the pre-sampled hop destination.
func (w *Walker) PotentialSite() (int, error) {
	if w.potentialSite == Unassigned {
		return Unassigned, fmt.Errorf("%w: potential site not yet sampled", ErrWalkerUnplaced)
	}
	return w.potentialSite, nil
}

// SetPotentialSite stores the next sampled destination.
func (w *Walker) SetPotentialSite(siteID int) { w.potentialSite = siteID }

// DwellTime returns the last sampled dwell time.
func (w *Walker) DwellTime() float64 { return w.dwellTime }

// SetDwellTime stores a freshly sampled dwell time.
func (w *Walker) SetDwellTime(t float64) { w.dwellTime = t }
