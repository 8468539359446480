package mask

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSplitClusters_SeparatesGroups(t *testing.T) {
	var samples []rgb
	for i := range 10 {
		samples = append(samples, rgb{10 + float64(i%3), 20, 30})
		samples = append(samples, rgb{200, 210 + float64(i%2), 220})
	}
	labels, err := splitClusters(samples, 2)
	require.NoError(t, err)
	for i := 0; i < len(samples); i += 2 {
		assert.Equal(t, 0, labels[i], "dark samples share the first cluster")
		assert.Equal(t, 1, labels[i+1], "light samples share the second cluster")
	}
}

func TestSplitClusters_StopsOnUniformData(t *testing.T) {
	samples := []rgb{{5, 5, 5}, {5, 5, 5}, {5, 5, 5}}
	labels, err := splitClusters(samples, 5)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 0}, labels)

	labels, err = splitClusters(nil, 5)
	require.NoError(t, err)
	assert.Empty(t, labels)
}

func TestSplitClusters_AtMostK(t *testing.T) {
	var samples []rgb
	for i := range 50 {
		samples = append(samples, rgb{float64(i * 5), float64((i * 37) % 255), float64((i * 91) % 255)})
	}
	labels, err := splitClusters(samples, 5)
	require.NoError(t, err)
	seen := map[int]bool{}
	for _, l := range labels {
		require.GreaterOrEqual(t, l, 0)
		require.Less(t, l, 5)
		seen[l] = true
	}
	assert.Len(t, seen, 5)

	again, err := splitClusters(samples, 5)
	require.NoError(t, err)
	assert.Equal(t, labels, again)
}

func TestAccumulatorFit_ConstantColourIsRegularized(t *testing.T) {
	acc := newAccumulator(2)
	for range 4 {
		acc.add(1, rgb{100, 50, 25})
	}
	m, err := acc.fit()
	require.NoError(t, err)
	assert.Zero(t, m.comps[0].weight)
	assert.InDelta(t, 1.0, m.comps[1].weight, 1e-12)
	assert.Equal(t, rgb{100, 50, 25}, m.comps[1].mean)
	// Σ = 0.01·I, so 1/sqrt(det) = 1000
	assert.InDelta(t, 1000.0, m.density(rgb{100, 50, 25}), 1e-6)
	assert.Less(t, m.density(rgb{101, 50, 25}), 1e-10)
}

func TestAccumulatorFit_Empty(t *testing.T) {
	_, err := newAccumulator(3).fit()
	require.ErrorIs(t, err, errDegenerateModel)
}

func TestMixture_MostLikely(t *testing.T) {
	acc := newAccumulator(2)
	for i := range 20 {
		acc.add(0, rgb{float64(i % 4), float64(i % 3), float64(i % 5)})
		acc.add(1, rgb{200 + float64(i%4), 200 + float64(i%3), 200 + float64(i%5)})
	}
	m, err := acc.fit()
	require.NoError(t, err)
	assert.Equal(t, 0, m.mostLikely(rgb{2, 1, 2}))
	assert.Equal(t, 1, m.mostLikely(rgb{201, 201, 202}))
	assert.Greater(t, m.density(rgb{2, 1, 2}), m.density(rgb{100, 100, 100}))
}

func TestAccumulatorFit_DependentChannels(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	acc := newAccumulator(3)
	for k := range 3 {
		base := 40 + 70*float64(k)
		for range 500 {
			v := base + math.Floor(rng.Float64()*20)
			acc.add(k, rgb{v, v, 30 + math.Floor(rng.Float64()*40)})
		}
	}
	m, err := acc.fit()
	require.NoError(t, err)
	for k, g := range m.comps {
		assert.InDelta(t, 1.0/3, g.weight, 1e-12, "component %d", k)
		assert.Greater(t, g.normInv, 0.0, "component %d", k)
		assert.False(t, math.IsInf(g.normInv, 0) || math.IsNaN(g.normInv), "component %d", k)
	}
	d := m.density(rgb{50, 50, 50})
	assert.Greater(t, d, 0.0)
	assert.False(t, math.IsInf(d, 0) || math.IsNaN(d))
}

func TestFactorizeCovariance(t *testing.T) {
	// rank 2: R and G are identical
	cov := mat.NewSymDense(3, []float64{
		25, 25, 3,
		25, 25, 3,
		3, 3, 40,
	})
	chol, ok := factorizeCovariance(cov)
	require.True(t, ok)
	assert.Greater(t, chol.Det(), 0.0)
	assert.Equal(t, 25.0, cov.At(0, 0), "input left untouched")

	// well conditioned covariances are factorized unchanged
	id := mat.NewSymDense(3, []float64{4, 0, 0, 0, 9, 0, 0, 0, 1})
	chol, ok = factorizeCovariance(id)
	require.True(t, ok)
	assert.InDelta(t, 36.0, chol.Det(), 1e-9)
}
