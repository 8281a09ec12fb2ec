package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"kmc-grain/internal/config"
	"kmc-grain/internal/db"
	"kmc-grain/internal/kmc"
	"kmc-grain/internal/lattice"
	"kmc-grain/internal/logger"
	"kmc-grain/internal/marcus"
)

var version = "dev"

func main() {
	cfg := config.Default()
	flag.Float64Var(&cfg.Sigma, "sigma", cfg.Sigma, "width of the gaussian density of states (eV)")
	flag.IntVar(&cfg.Distance, "distance", cfg.Distance, "sites per edge of the cubic simulation box")
	flag.IntVar(&cfg.Threshold, "threshold", cfg.Threshold, "hop count between coarse-graining attempts")
	flag.IntVar(&cfg.Walkers, "walkers", cfg.Walkers, "number of walkers")
	flag.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "base random seed")
	flag.Float64Var(&cfg.CutoffTime, "cutoff", cfg.CutoffTime, "simulated time horizon (s)")
	flag.Float64Var(&cfg.TimeResolution, "timeres", cfg.TimeResolution, "engine time resolution (s)")
	flag.IntVar(&cfg.Ensemble, "ensemble", cfg.Ensemble, "independent engine instances run in parallel")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "results database path (empty disables persistence)")
	flag.Parse()

	logger.Banner(version)
	logger.Info("SIM", fmt.Sprintf("box %d^3, sigma %.3f eV, %d walkers, cutoff %.1e s",
		cfg.Distance, cfg.Sigma, cfg.Walkers, cfg.CutoffTime))

	var store *db.DB
	if cfg.DBPath != "" {
		var err error
		store, err = db.Open(cfg.DBPath)
		if err != nil {
			logger.Error("DB", fmt.Sprintf("Failed to open database: %v", err))
			os.Exit(1)
		}
		defer store.Close()
	}

	// Each ensemble member is an independent single-threaded engine with
	// its own seed; reporting and persistence are serialized by a mutex.
	var mu sync.Mutex
	var g errgroup.Group
	for i := 0; i < cfg.Ensemble; i++ {
		memberCfg := *cfg
		memberCfg.Seed = cfg.Seed + uint64(i)*1000003
		g.Go(func() error {
			result, err := runSimulation(&memberCfg)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			report(&memberCfg, result)
			if store != nil {
				return persist(store, &memberCfg, result)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("SIM", err.Error())
		os.Exit(1)
	}
	logger.Success("SIM", "Done")
}

// runResult bundles everything a simulation reports once finished.
type runResult struct {
	startedAt   time.Time
	hops        int64
	wallSeconds float64
	visits      map[int]int
	clusters    []db.ClusterRecord
}

// runSimulation builds a disordered cubic lattice, computes Marcus rates,
// and advances walkers until every one of them passes the cutoff time.
func runSimulation(cfg *config.Config) (*runResult, error) {
	started := time.Now()

	box, err := lattice.New(cfg.Distance, cfg.Distance, cfg.Distance)
	if err != nil {
		return nil, err
	}

	// Gaussian site energies and Marcus hop rates. The setup RNG is
	// separate from the engine's seed sequence.
	setupRNG := rand.New(rand.NewSource(int64(cfg.Seed)))
	energies := marcus.GaussianEnergies(box.Total(), cfg.Sigma, setupRNG)
	params := marcus.Params{
		ReorganizationEnergy: cfg.ReorganizationEnergy,
		TransferIntegral:     cfg.TransferIntegral,
		KBT:                  cfg.KBT,
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	rates := make(map[int]map[int]float64, box.Total())
	for site := 0; site < box.Total(); site++ {
		neighbors := box.Neighbors(site, cfg.NeighborCutoff)
		row := make(map[int]float64, len(neighbors))
		for _, n := range neighbors {
			row[n] = params.Rate(energies[n] - energies[site])
		}
		rates[site] = row
	}

	system := kmc.NewSystem()
	if err := system.SetRandomSeed(cfg.Seed); err != nil {
		return nil, err
	}
	if err := system.SetTimeResolution(cfg.TimeResolution); err != nil {
		return nil, err
	}
	system.SetMinCoarseGrainIterationThreshold(cfg.Threshold)
	if err := system.SetPerformanceRatio(cfg.PerformanceRatio); err != nil {
		return nil, err
	}
	if err := system.SetMinCoarseGrainingResolution(cfg.MinResolution); err != nil {
		return nil, err
	}
	if err := system.InitializeSystem(rates); err != nil {
		return nil, err
	}

	// Place walkers on distinct random sites.
	walkers := make([]kmc.WalkerEntry, 0, cfg.Walkers)
	occupied := make(map[int]bool, cfg.Walkers)
	for len(walkers) < cfg.Walkers {
		site := setupRNG.Intn(box.Total())
		if occupied[site] {
			continue
		}
		occupied[site] = true
		w := kmc.NewWalker()
		w.OccupySite(site)
		walkers = append(walkers, kmc.WalkerEntry{ID: len(walkers), Walker: w})
	}
	if err := system.InitializeWalkers(walkers); err != nil {
		return nil, err
	}

	// First-passage loop: always advance the walker with the smallest
	// global time until every walker passes the cutoff.
	times := make([]float64, len(walkers))
	for i, entry := range walkers {
		times[i] = entry.Walker.DwellTime()
	}
	var hops int64
	for {
		next, minTime := -1, math.Inf(1)
		for i, t := range times {
			if t < minTime {
				next, minTime = i, t
			}
		}
		if next == -1 || minTime > cfg.CutoffTime {
			break
		}
		entry := walkers[next]
		if err := system.Hop(entry.ID, entry.Walker); err != nil {
			return nil, err
		}
		times[next] += entry.Walker.DwellTime()
		hops++
	}

	visits := make(map[int]int, box.Total())
	for site := 0; site < box.Total(); site++ {
		v, err := system.VisitFrequency(site)
		if err != nil {
			return nil, err
		}
		visits[site] = v
	}

	resolutions := system.ResolutionOfClusters()
	increments := system.TimeIncrementOfClusters()
	var clusters []db.ClusterRecord
	for id, members := range system.Clusters() {
		clusters = append(clusters, db.ClusterRecord{
			ClusterID:     id,
			Members:       members,
			Resolution:    resolutions[id],
			TimeIncrement: increments[id],
		})
	}

	return &runResult{
		startedAt:   started,
		hops:        hops,
		wallSeconds: time.Since(started).Seconds(),
		visits:      visits,
		clusters:    clusters,
	}, nil
}

func report(cfg *config.Config, r *runResult) {
	logger.Section(fmt.Sprintf("Run seed %d", cfg.Seed))
	logger.Stats("hops", r.hops)
	logger.Stats("wall time (s)", fmt.Sprintf("%.3f", r.wallSeconds))
	logger.Stats("clusters formed", len(r.clusters))
	visited := 0
	for _, v := range r.visits {
		if v > 0 {
			visited++
		}
	}
	logger.Stats("sites visited", visited)
	for _, c := range r.clusters {
		logger.Stats(fmt.Sprintf("cluster %d", c.ClusterID),
			fmt.Sprintf("%d sites, resolution %.1f", len(c.Members), c.Resolution))
	}
}

func persist(store *db.DB, cfg *config.Config, r *runResult) error {
	runID, err := store.SaveRun(db.RunRecord{
		StartedAt:      r.startedAt,
		Seed:           cfg.Seed,
		Sigma:          cfg.Sigma,
		Distance:       cfg.Distance,
		Walkers:        cfg.Walkers,
		Threshold:      cfg.Threshold,
		TimeResolution: cfg.TimeResolution,
		CutoffTime:     cfg.CutoffTime,
		Hops:           r.hops,
		WallSeconds:    r.wallSeconds,
	})
	if err != nil {
		return err
	}
	if err := store.SaveSiteVisits(runID, r.visits); err != nil {
		return err
	}
	return store.SaveClusters(runID, r.clusters)
}
