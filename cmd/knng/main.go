// Command knng builds an approximate k-NN graph from a CSV of row
// vectors and writes the neighbor indices as CSV.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/nozzle/knng"
)

func main() {
	inputFile := flag.String("input", "", "Input CSV file (required)")
	outputFile := flag.String("output", "neighbors.csv", "Output CSV file")
	k := flag.Int("k", 15, "Number of neighbors per point")
	threshold := flag.Int("threshold", 30, "Candidates kept per point after the forest")
	trees := flag.Int("trees", 20, "Number of random projection trees")
	depth := flag.Int("depth", 32, "Maximum tree recursion depth")
	iters := flag.Int("iters", 2, "Neighborhood refinement iterations")
	metric := flag.String("metric", "euclidean", "Distance metric (euclidean or cosine)")
	seed := flag.Int64("seed", 42, "Random seed")
	workers := flag.Int("workers", 0, "Worker count (0 = all cores)")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	if *inputFile == "" {
		fmt.Fprintln(os.Stderr, "Error: -input flag is required")
		flag.Usage()
		os.Exit(1)
	}

	data, err := loadCSV(*inputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading data: %v\n", err)
		os.Exit(1)
	}
	rows, cols := data.Dims()

	if *verbose {
		fmt.Printf("Loaded %d samples with %d features\n", rows, cols)
	}

	config := knng.DefaultConfig()
	config.K = *k
	config.LeafThreshold = *threshold
	config.NTrees = *trees
	config.MaxRecursionDepth = *depth
	config.MaxRefineIters = *iters
	config.Metric = *metric
	config.Seed = *seed
	config.NumWorkers = *workers
	config.Verbose = *verbose

	if *verbose {
		var lastPct int
		config.ProgressCallback = func(done, total int) {
			pct := done * 100 / total
			if pct >= lastPct+10 {
				lastPct = pct
				fmt.Printf("%d%%\n", pct)
			}
		}
	}

	// Ctrl-C cancels cleanly; the build returns an empty graph.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	graph, err := knng.BuildMatrix(ctx, data, config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building graph: %v\n", err)
		os.Exit(1)
	}
	if graph.Empty() {
		fmt.Fprintln(os.Stderr, "Cancelled")
		os.Exit(1)
	}

	if err := writeCSV(*outputFile, graph); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Printf("Wrote %d rows of %d neighbors to %s\n", graph.N, graph.K, *outputFile)
	}
}

// loadCSV reads a CSV of float rows into a dense matrix.
func loadCSV(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}

	rows := len(records)
	cols := len(records[0])
	flat := make([]float64, 0, rows*cols)
	for i, rec := range records {
		if len(rec) != cols {
			return nil, fmt.Errorf("row %d has %d fields, want %d", i, len(rec), cols)
		}
		for _, field := range rec {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			flat = append(flat, v)
		}
	}

	return mat.NewDense(rows, cols, flat), nil
}

// writeCSV writes one row of neighbor indices per point. Unfilled
// slots keep the -1 sentinel.
func writeCSV(path string, g *knng.KNNGraph) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	record := make([]string, g.K)
	for i := range g.Indices {
		for j, v := range g.Indices[i] {
			record[j] = strconv.Itoa(int(v))
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
