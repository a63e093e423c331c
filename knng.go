// Package knng builds approximate k-nearest-neighbor graphs over dense
// vector data.
//
// Construction runs in two phases: a forest of random projection trees
// accumulates, for every point, a pool of candidates it shared tree
// leaves with; the pools are then pruned to the nearest candidates by
// true distance and improved with iterative neighbors-of-neighbors
// exploration. The result trades a little recall for large speed-ups
// over exact k-NN, which is what graph-based embedding consumers want.
//
// Basic usage:
//
//	g, err := knng.Build(ctx, data, knng.DefaultConfig())
package knng

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/nozzle/knng/distance"
	"github.com/nozzle/knng/forest"
	"github.com/nozzle/knng/graph"
	"github.com/nozzle/knng/internal/parallel"
	"github.com/nozzle/knng/internal/rand"
	"github.com/nozzle/knng/progress"
	"github.com/nozzle/knng/refine"
)

// Config configures graph construction.
type Config struct {
	// K is the number of neighbors per point in the final graph.
	// Default: 15
	K int

	// LeafThreshold caps the size of a tree leaf and is the number of
	// candidates kept per point between the forest and refinement.
	// Must be at least 3 and at least K; the overshoot over K gives
	// refinement slack.
	// Default: 30
	LeafThreshold int

	// NTrees is the number of random projection trees.
	// More trees improve recall at linear cost.
	// Default: 20
	NTrees int

	// MaxRecursionDepth bounds tree depth; a node at the limit becomes
	// a leaf regardless of size.
	// Default: 32
	MaxRecursionDepth int

	// MaxRefineIters is the number of neighbors-of-neighbors passes.
	// Default: 2
	MaxRefineIters int

	// Metric selects the distance: "euclidean" (squared, the default)
	// or "cosine". Unknown names fall back to euclidean.
	Metric string

	// Seed for random number generation. Output is a pure function of
	// data and config, independent of NumWorkers.
	// Default: 42
	Seed int64

	// NumWorkers for parallel processing.
	// 0 = auto-detect based on CPU cores.
	NumWorkers int

	// Verbose enables phase logging through Logger.
	Verbose bool

	// Logger receives phase logs when Verbose is set. nil means a
	// default text logger to stderr.
	Logger *slog.Logger

	// ProgressCallback is called as work units complete with
	// (done, total). Total is N*NTrees + N + N*MaxRefineIters.
	// It may be invoked concurrently from several workers.
	ProgressCallback func(done, total int)
}

// DefaultConfig returns the default construction configuration.
func DefaultConfig() Config {
	return Config{
		K:                 15,
		LeafThreshold:     30,
		NTrees:            20,
		MaxRecursionDepth: 32,
		MaxRefineIters:    2,
		Metric:            "euclidean",
		Seed:              42,
		NumWorkers:        0,
	}
}

func (c Config) validate() error {
	if c.LeafThreshold < 3 {
		return fmt.Errorf("knng: LeafThreshold must be at least 3, got %d", c.LeafThreshold)
	}
	if c.NTrees < 1 {
		return fmt.Errorf("knng: NTrees must be at least 1, got %d", c.NTrees)
	}
	if c.K < 1 {
		return fmt.Errorf("knng: K must be at least 1, got %d", c.K)
	}
	if c.K > c.LeafThreshold {
		return fmt.Errorf("knng: K (%d) must not exceed LeafThreshold (%d)", c.K, c.LeafThreshold)
	}
	if c.MaxRecursionDepth < 1 {
		return fmt.Errorf("knng: MaxRecursionDepth must be at least 1, got %d", c.MaxRecursionDepth)
	}
	if c.MaxRefineIters < 0 {
		return fmt.Errorf("knng: MaxRefineIters must not be negative, got %d", c.MaxRefineIters)
	}
	return nil
}

func (c Config) logger() *slog.Logger {
	if !c.Verbose {
		return slog.New(slog.DiscardHandler)
	}
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// KNNGraph is the finished neighbor graph. Row i lists point i's
// neighbors in ascending distance order; unfilled slots hold index -1
// with a +Inf distance. Rank order is a convenience, set membership is
// the contract.
type KNNGraph struct {
	Indices   [][]int32   // [n][K] neighbor indices, -1 sentinel padding
	Distances [][]float64 // [n][K] neighbor distances, aligned with Indices
	N         int         // number of points
	K         int         // neighbors per point
}

// Empty reports whether the graph carries no data, which is how a
// cancelled construction presents.
func (g *KNNGraph) Empty() bool { return g.N == 0 }

// CSR exports the graph as a sparse adjacency matrix, optionally
// symmetrized to max(W, Wᵀ) on the edge pattern.
func (g *KNNGraph) CSR(symmetric bool) *graph.CSRMatrix {
	return graph.FromKNN(g.Indices, g.Distances, symmetric)
}

// Build constructs the approximate k-NN graph of data, where data[i]
// is the feature vector of point i and all vectors share one length.
//
// Cancelling ctx stops the workers at their next probe and yields an
// empty graph with a nil error; callers distinguish cancellation from
// success by dimensions. ProgressCallback only observes progress and
// cannot abort the build.
// Invariant violations (degenerate input such as an all-duplicate
// point set) return a wrapped forest or refine sentinel error.
func Build(ctx context.Context, data [][]float64, cfg Config) (*KNNGraph, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	n := len(data)
	if n == 0 {
		return &KNNGraph{}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return &KNNGraph{}, nil
	}

	log := cfg.logger()
	distFunc := distance.GetOrDefault(cfg.Metric)
	workers := cfg.NumWorkers
	if workers <= 0 {
		workers = parallel.NumWorkers()
	}

	total := n*cfg.NTrees + n + n*cfg.MaxRefineIters
	mon := progress.NewMonitor(total, cfg.ProgressCallback)
	stop := context.AfterFunc(ctx, mon.Abort)
	defer stop()

	// Phase 1: forest build into shared candidate pools.
	store := forest.NewPoolStore(n)
	var g errgroup.Group
	g.SetLimit(workers)
	for t := range cfg.NTrees {
		g.Go(func() error {
			if mon.Aborted() {
				return nil
			}
			rng := rand.New(cfg.Seed + int64(t))
			if err := forest.BuildTree(data, store, mon, cfg.LeafThreshold, cfg.MaxRecursionDepth, &rng); err != nil {
				mon.Abort()
				return err
			}
			if mon.Aborted() {
				return nil
			}
			if err := store.TreeDone(); err != nil {
				mon.Abort()
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if mon.Aborted() {
		return &KNNGraph{}, nil
	}
	if err := store.Normalize(); err != nil {
		mon.Abort()
		return nil, err
	}
	log.Info("forest complete", "trees", cfg.NTrees, "points", n)

	// Phase 2: prune pools to the nearest LeafThreshold candidates.
	pools := store.Pools()
	indices, dists, err := refine.Reduce(data, pools, cfg.LeafThreshold, distFunc, mon, workers)
	if err != nil {
		return nil, err
	}
	if mon.Aborted() {
		return &KNNGraph{}, nil
	}
	log.Info("reduction complete", "kept", cfg.LeafThreshold)

	// Phase 3: neighbors-of-neighbors refinement, double-buffered.
	for iter := range cfg.MaxRefineIters {
		indices, dists, err = refine.Explore(data, indices, pools, cfg.K, distFunc, mon, workers)
		if err != nil {
			return nil, err
		}
		if mon.Aborted() {
			return &KNNGraph{}, nil
		}
		log.Info("refinement iteration complete", "iteration", iter+1, "of", cfg.MaxRefineIters)
	}

	// With zero refinement iterations the rows still carry the full
	// LeafThreshold width; the contract is K.
	for i := range indices {
		if len(indices[i]) > cfg.K {
			indices[i] = indices[i][:cfg.K]
			dists[i] = dists[i][:cfg.K]
		}
	}

	return &KNNGraph{
		Indices:   indices,
		Distances: dists,
		N:         n,
		K:         cfg.K,
	}, nil
}

// BuildMatrix is Build for a gonum matrix whose rows are the points.
func BuildMatrix(ctx context.Context, m mat.Matrix, cfg Config) (*KNNGraph, error) {
	r, _ := m.Dims()
	data := make([][]float64, r)
	if rv, ok := m.(mat.RawRowViewer); ok {
		for i := range data {
			data[i] = rv.RawRowView(i)
		}
	} else {
		for i := range data {
			data[i] = mat.Row(nil, i, m)
		}
	}
	return Build(ctx, data, cfg)
}
