package kmc

import "sort"

// basinExplorer grows a candidate basin outward from a seed site. A
// neighbor that already belongs to a cluster is pulled in as a whole unit
// so that mergers are detected; drain sites are never admitted.
type basinExplorer struct {
	sites            map[int]*Site
	clusters         map[int]*Cluster
	performanceRatio float64
}

// findBasin returns the candidate member ids, sorted ascending and always
// containing the seed (plus the seed's whole cluster when it has one).
//
// Admission is greedy and rate-threshold based: a unit joins when the
// strongest rate from a current member into it strictly exceeds
// performanceRatio times the unit's strongest rate to anything outside the
// grown basin. The candidate therefore stays a connected low-resistance
// region around the seed.
func (b *basinExplorer) findBasin(seed int) []int {
	members := make(map[int]bool)
	b.addUnit(members, seed)

	for {
		unit, ok := b.nextAdmissibleUnit(members)
		if !ok {
			break
		}
		b.addUnit(members, unit)
	}

	out := make([]int, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// addUnit inserts the site, or its entire cluster membership when the site
// is already clustered.
func (b *basinExplorer) addUnit(members map[int]bool, siteID int) {
	s := b.sites[siteID]
	if s.clusterID != Unassigned {
		for _, id := range b.clusters[s.clusterID].Members() {
			members[id] = true
		}
		return
	}
	members[siteID] = true
}

// nextAdmissibleUnit scans the frontier in sorted order and returns the
// representative of the first admissible unit.
func (b *basinExplorer) nextAdmissibleUnit(members map[int]bool) (int, bool) {
	// Strongest member rate into each frontier site.
	inRate := make(map[int]float64)
	var frontier []int
	for id := range members {
		for _, nb := range b.sites[id].neighbors {
			if members[nb.ID] {
				continue
			}
			if len(b.sites[nb.ID].neighbors) == 0 {
				continue // drains are never interior members
			}
			if _, seen := inRate[nb.ID]; !seen {
				frontier = append(frontier, nb.ID)
			}
			if *nb.Rate > inRate[nb.ID] {
				inRate[nb.ID] = *nb.Rate
			}
		}
	}
	sort.Ints(frontier)

	for _, id := range frontier {
		unit := b.unitOf(id)
		if b.admissible(members, unit, b.unitInRate(unit, inRate)) {
			return id, true
		}
	}
	return 0, false
}

// unitOf returns the site ids the frontier site would bring along.
func (b *basinExplorer) unitOf(siteID int) []int {
	s := b.sites[siteID]
	if s.clusterID != Unassigned {
		return b.clusters[s.clusterID].Members()
	}
	return []int{siteID}
}

// unitInRate is the strongest member rate into any site of the unit.
func (b *basinExplorer) unitInRate(unit []int, inRate map[int]float64) float64 {
	max := 0.0
	for _, id := range unit {
		if r := inRate[id]; r > max {
			max = r
		}
	}
	return max
}

// admissible compares the pull into the unit against the unit's own best
// escape to anything outside members plus the unit itself.
func (b *basinExplorer) admissible(members map[int]bool, unit []int, inRate float64) bool {
	if inRate <= 0 {
		return false
	}
	exclude := make(map[int]bool, len(members)+len(unit))
	for id := range members {
		exclude[id] = true
	}
	for _, id := range unit {
		exclude[id] = true
	}
	outRate := 0.0
	for _, id := range unit {
		if r := b.sites[id].maxOutgoingRate(exclude); r > outRate {
			outRate = r
		}
	}
	return inRate > b.performanceRatio*outRate
}
