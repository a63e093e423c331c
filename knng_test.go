package knng

import (
	"context"
	"math"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lineData returns n points at (i, 0).
func lineData(n int) [][]float64 {
	data := make([][]float64, n)
	for i := range data {
		data[i] = []float64{float64(i), 0}
	}
	return data
}

// uniformData returns n pseudo-random points in [0, 1)^dim.
func uniformData(n, dim int, seed int64) [][]float64 {
	data := make([][]float64, n)
	rng := seed
	for i := range data {
		data[i] = make([]float64, dim)
		for j := range dim {
			rng = (rng*6364136223846793005 + 1442695040888963407) & 0x7FFFFFFF
			data[i][j] = float64(rng) / float64(0x7FFFFFFF)
		}
	}
	return data
}

// blobData returns clusters*perCluster points from Gaussian blobs with
// well-separated centers.
func blobData(clusters, perCluster, dim int, seed int64) [][]float64 {
	rng := seed
	next := func() float64 {
		rng = (rng*6364136223846793005 + 1442695040888963407) & 0x7FFFFFFF
		return float64(rng) / float64(0x7FFFFFFF)
	}
	gauss := func() float64 {
		u1 := next()
		for u1 < 1e-12 {
			u1 = next()
		}
		u2 := next()
		return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	}

	data := make([][]float64, 0, clusters*perCluster)
	for c := range clusters {
		center := make([]float64, dim)
		for j := range center {
			center[j] = float64(c*10) * next()
		}
		for range perCluster {
			p := make([]float64, dim)
			for j := range p {
				p[j] = center[j] + gauss()
			}
			data = append(data, p)
		}
	}
	return data
}

// rowSet collects the non-sentinel entries of a row.
func rowSet(row []int32) []int32 {
	var out []int32
	for _, v := range row {
		if v >= 0 {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return out
}

func TestTrivialScenario(t *testing.T) {
	data := [][]float64{{0, 0}, {1, 0}, {0, 1}, {10, 10}}

	cfg := DefaultConfig()
	cfg.K = 2
	cfg.LeafThreshold = 3
	cfg.NTrees = 10
	cfg.MaxRecursionDepth = 4
	cfg.MaxRefineIters = 1

	g, err := Build(context.Background(), data, cfg)
	require.NoError(t, err)
	require.Equal(t, 4, g.N)
	require.Equal(t, 2, g.K)

	assert.Equal(t, []int32{1, 2}, rowSet(g.Indices[0]), "point 0's neighbors")

	// Point 3 is far from everyone; any two of the cluster qualify.
	far := rowSet(g.Indices[3])
	assert.Len(t, far, 2)
	for _, v := range far {
		assert.Contains(t, []int32{0, 1, 2}, v)
	}

	for i, row := range g.Indices {
		assert.NotContains(t, row, int32(i), "self loop at %d", i)
		assert.NotContains(t, row, int32(-1), "unfilled slot at %d", i)
	}
}

func TestDuplicatePointsFail(t *testing.T) {
	data := [][]float64{{5, 5}, {5, 5}, {5, 5}}

	cfg := DefaultConfig()
	cfg.K = 1
	cfg.LeafThreshold = 3
	cfg.NTrees = 2
	cfg.MaxRecursionDepth = 4
	cfg.MaxRefineIters = 1

	_, err := Build(context.Background(), data, cfg)
	require.Error(t, err, "all-duplicate input must trip an invariant")
}

func TestLineScenario(t *testing.T) {
	data := lineData(100)

	cfg := DefaultConfig()
	cfg.K = 4
	cfg.LeafThreshold = 101
	cfg.NTrees = 10
	cfg.MaxRefineIters = 3

	g, err := Build(context.Background(), data, cfg)
	require.NoError(t, err)

	for i := 4; i < 96; i++ {
		want := []int32{int32(i - 2), int32(i - 1), int32(i + 1), int32(i + 2)}
		assert.Equal(t, want, rowSet(g.Indices[i]), "neighbors of %d", i)
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g, err := Build(ctx, uniformData(200, 5, 1), DefaultConfig())
	require.NoError(t, err)
	assert.True(t, g.Empty(), "cancelled build must return an empty graph")
	assert.Zero(t, g.N)
}

func TestCosineScalePair(t *testing.T) {
	// Unit-ish random vectors plus a pair identical up to scale.
	data := uniformData(48, 10, 9)
	x := []float64{1, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	x2 := []float64{2, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	data = append(data, x, x2)

	cfg := DefaultConfig()
	cfg.K = 5
	cfg.LeafThreshold = 20
	cfg.NTrees = 20
	cfg.MaxRefineIters = 0
	cfg.Metric = "cosine"

	g, err := Build(context.Background(), data, cfg)
	require.NoError(t, err)

	// Under cosine the scaled pair is mutually nearest at distance 0.
	assert.Equal(t, int32(49), g.Indices[48][0])
	assert.Equal(t, int32(48), g.Indices[49][0])
	assert.Zero(t, g.Distances[48][0])

	// Under Euclidean their distance is 1, not 0, so refinement keeps
	// the pair as legitimate neighbors.
	cfg.Metric = "euclidean"
	cfg.MaxRefineIters = 2
	ge, err := Build(context.Background(), data, cfg)
	require.NoError(t, err)
	for i, row := range ge.Distances {
		for j, d := range row {
			if ge.Indices[i][j] >= 0 {
				assert.NotZero(t, d, "zero-distance neighbor retained at %d", i)
			}
		}
	}
}

func TestHighKScenario(t *testing.T) {
	data := uniformData(20, 5, 33)

	cfg := DefaultConfig()
	cfg.K = 19
	cfg.LeafThreshold = 19
	cfg.NTrees = 8
	cfg.MaxRefineIters = 2

	g, err := Build(context.Background(), data, cfg)
	require.NoError(t, err)

	for i := range g.Indices {
		got := rowSet(g.Indices[i])
		require.Len(t, got, 19, "row %d", i)
		var want []int32
		for j := range 20 {
			if j != i {
				want = append(want, int32(j))
			}
		}
		assert.Equal(t, want, got, "row %d must hold every other point", i)
	}
}

func TestUniversalInvariants(t *testing.T) {
	data := uniformData(300, 8, 77)

	cfg := DefaultConfig()
	cfg.K = 10
	cfg.LeafThreshold = 20
	cfg.NTrees = 15

	g, err := Build(context.Background(), data, cfg)
	require.NoError(t, err)

	require.Equal(t, 300, g.N)
	require.Len(t, g.Indices, 300)

	for i, row := range g.Indices {
		require.Len(t, row, 10, "row %d width", i)
		seen := map[int32]bool{}
		for slot, v := range row {
			assert.GreaterOrEqual(t, v, int32(-1))
			assert.Less(t, v, int32(300))
			assert.NotEqual(t, int32(i), v, "self at %d", i)
			if v >= 0 {
				assert.False(t, seen[v], "duplicate %d in row %d", v, i)
				seen[v] = true
				// No duplicate columns in the data, enough points: full rows.
				assert.False(t, math.IsInf(g.Distances[i][slot], 1))
			}
		}
		assert.NotContains(t, row, int32(-1), "row %d has an unfilled slot", i)

		// Ascending rank order within the row.
		for slot := 1; slot < len(row); slot++ {
			assert.LessOrEqual(t, g.Distances[i][slot-1], g.Distances[i][slot])
		}
	}
}

func TestDeterministicAcrossWorkerCounts(t *testing.T) {
	data := uniformData(200, 6, 5)

	cfg := DefaultConfig()
	cfg.K = 8
	cfg.LeafThreshold = 16
	cfg.NTrees = 10
	cfg.Seed = 1234

	cfg.NumWorkers = 1
	a, err := Build(context.Background(), data, cfg)
	require.NoError(t, err)

	cfg.NumWorkers = 4
	b, err := Build(context.Background(), data, cfg)
	require.NoError(t, err)

	require.Equal(t, a.Indices, b.Indices)
	require.Equal(t, a.Distances, b.Distances)
}

func TestEmptyInput(t *testing.T) {
	g, err := Build(context.Background(), nil, DefaultConfig())
	require.NoError(t, err)
	assert.True(t, g.Empty())
}

func TestConfigValidation(t *testing.T) {
	base := DefaultConfig()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"small threshold", func(c *Config) { c.LeafThreshold = 2 }},
		{"no trees", func(c *Config) { c.NTrees = 0 }},
		{"zero k", func(c *Config) { c.K = 0 }},
		{"k over threshold", func(c *Config) { c.K = 31 }},
		{"zero depth", func(c *Config) { c.MaxRecursionDepth = 0 }},
		{"negative iters", func(c *Config) { c.MaxRefineIters = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			_, err := Build(context.Background(), lineData(10), cfg)
			assert.Error(t, err)
		})
	}
}

func TestProgressReachesTotal(t *testing.T) {
	data := uniformData(100, 4, 2)

	cfg := DefaultConfig()
	cfg.K = 5
	cfg.LeafThreshold = 10
	cfg.NTrees = 4
	cfg.MaxRefineIters = 2

	var mu sync.Mutex
	var maxDone, lastTotal int
	cfg.ProgressCallback = func(done, total int) {
		mu.Lock()
		if done > maxDone {
			maxDone = done
		}
		lastTotal = total
		mu.Unlock()
	}

	_, err := Build(context.Background(), data, cfg)
	require.NoError(t, err)

	wantTotal := 100*4 + 100 + 100*2
	assert.Equal(t, wantTotal, lastTotal)
	assert.Equal(t, wantTotal, maxDone, "all work units reported")
}

func TestBruteForceExact(t *testing.T) {
	data := lineData(20)
	g := BruteForce(data, 4, "euclidean")

	require.Equal(t, 20, g.N)
	require.Equal(t, 4, g.K)
	for i := 4; i < 16; i++ {
		want := []int32{int32(i - 2), int32(i - 1), int32(i + 1), int32(i + 2)}
		assert.Equal(t, want, rowSet(g.Indices[i]), "exact neighbors of %d", i)
	}
	// Nearest first.
	assert.Contains(t, []int32{4, 6}, g.Indices[5][0])
}

func BenchmarkBuild(b *testing.B) {
	data := uniformData(1000, 20, 42)

	cfg := DefaultConfig()
	cfg.K = 15
	cfg.LeafThreshold = 30
	cfg.NTrees = 10

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Build(context.Background(), data, cfg); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkBruteForce(b *testing.B) {
	data := uniformData(1000, 20, 42)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		BruteForce(data, 15, "euclidean")
	}
}

func TestCSRExport(t *testing.T) {
	data := uniformData(50, 4, 8)

	cfg := DefaultConfig()
	cfg.K = 5
	cfg.LeafThreshold = 10
	cfg.NTrees = 8

	g, err := Build(context.Background(), data, cfg)
	require.NoError(t, err)

	m := g.CSR(false)
	require.Equal(t, 50, m.NRows)
	assert.Equal(t, 5*50, m.NNZ, "full rows give K entries each")

	sym := g.CSR(true)
	for i := 0; i < sym.NRows; i++ {
		cols, _ := sym.Row(i)
		for _, j := range cols {
			assert.True(t, sym.HasEdge(int(j), int32(i)), "missing mirror of (%d,%d)", i, j)
		}
	}
}
