package db

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// RunRecord describes one completed simulation.
type RunRecord struct {
	StartedAt      time.Time
	Seed           uint64
	Sigma          float64
	Distance       int
	Walkers        int
	Threshold      int
	TimeResolution float64
	CutoffTime     float64
	Hops           int64
	WallSeconds    float64
}

// ClusterRecord summarizes one cluster at the end of a run.
type ClusterRecord struct {
	ClusterID     int
	Members       []int
	Resolution    float64
	TimeIncrement float64
}

// SaveRun inserts the run row and returns its id.
func (d *DB) SaveRun(r RunRecord) (int64, error) {
	res, err := d.sql.Exec(`
		INSERT INTO runs (started_at, seed, sigma, distance, walkers, threshold,
			time_resolution, cutoff_time, hops, wall_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.StartedAt.UTC().Format(time.RFC3339), int64(r.Seed), r.Sigma, r.Distance,
		r.Walkers, r.Threshold, r.TimeResolution, r.CutoffTime, r.Hops, r.WallSeconds)
	if err != nil {
		return 0, fmt.Errorf("save run: %w", err)
	}
	return res.LastInsertId()
}

// SaveSiteVisits stores the per-site visit frequencies of a run, skipping
// never-visited sites.
func (d *DB) SaveSiteVisits(runID int64, visits map[int]int) error {
	tx, err := d.sql.Begin()
	if err != nil {
		return fmt.Errorf("save site visits: %w", err)
	}
	stmt, err := tx.Prepare("INSERT INTO site_visits (run_id, site_id, visits) VALUES (?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("save site visits: %w", err)
	}
	defer stmt.Close()
	for siteID, count := range visits {
		if count == 0 {
			continue
		}
		if _, err := stmt.Exec(runID, siteID, count); err != nil {
			tx.Rollback()
			return fmt.Errorf("save site visits: %w", err)
		}
	}
	return tx.Commit()
}

// SaveClusters stores the cluster summaries of a run. Infinite time
// increments (absorbing clusters) are stored as -1.
func (d *DB) SaveClusters(runID int64, clusters []ClusterRecord) error {
	tx, err := d.sql.Begin()
	if err != nil {
		return fmt.Errorf("save clusters: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO clusters (run_id, cluster_id, site_count, members, resolution, time_increment)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("save clusters: %w", err)
	}
	defer stmt.Close()
	for _, c := range clusters {
		inc := c.TimeIncrement
		if math.IsInf(inc, 1) {
			inc = -1
		}
		res := c.Resolution
		if math.IsInf(res, 1) {
			res = -1
		}
		if _, err := stmt.Exec(runID, c.ClusterID, len(c.Members), joinInts(c.Members), res, inc); err != nil {
			tx.Rollback()
			return fmt.Errorf("save clusters: %w", err)
		}
	}
	return tx.Commit()
}

// SiteVisits loads the visit frequencies of a run.
func (d *DB) SiteVisits(runID int64) (map[int]int, error) {
	rows, err := d.sql.Query("SELECT site_id, visits FROM site_visits WHERE run_id = ?", runID)
	if err != nil {
		return nil, fmt.Errorf("load site visits: %w", err)
	}
	defer rows.Close()
	visits := make(map[int]int)
	for rows.Next() {
		var siteID, count int
		if err := rows.Scan(&siteID, &count); err != nil {
			return nil, fmt.Errorf("load site visits: %w", err)
		}
		visits[siteID] = count
	}
	return visits, rows.Err()
}

// Clusters loads the cluster summaries of a run.
func (d *DB) Clusters(runID int64) ([]ClusterRecord, error) {
	rows, err := d.sql.Query(`
		SELECT cluster_id, members, resolution, time_increment
		FROM clusters WHERE run_id = ? ORDER BY cluster_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("load clusters: %w", err)
	}
	defer rows.Close()
	var out []ClusterRecord
	for rows.Next() {
		var c ClusterRecord
		var members string
		if err := rows.Scan(&c.ClusterID, &members, &c.Resolution, &c.TimeIncrement); err != nil {
			return nil, fmt.Errorf("load clusters: %w", err)
		}
		c.Members = splitInts(members)
		if c.TimeIncrement == -1 {
			c.TimeIncrement = math.Inf(1)
		}
		if c.Resolution == -1 {
			c.Resolution = math.Inf(1)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

func splitInts(s string) []int {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		if v, err := strconv.Atoi(p); err == nil {
			out = append(out, v)
		}
	}
	return out
}
