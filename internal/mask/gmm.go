package mask

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// covarianceRegularization is added to the diagonal of near-singular
// component covariances (flat colour regions).
const covarianceRegularization = 0.01

var errDegenerateModel = errors.New("colour model is degenerate")

type rgb [3]float64

// gaussian is one weighted component of a colour mixture. The inverse
// covariance and normalisation are cached for per-pixel evaluation.
type gaussian struct {
	weight  float64
	mean    rgb
	inv     [3][3]float64
	normInv float64 // 1 / sqrt(det Σ)
}

// mixture is a Gaussian mixture over RGB colours.
type mixture struct {
	comps []gaussian
}

// density returns Σ_k w_k N_k(c) without the (2π)^{-3/2} factor, which
// cancels in every comparison and log-ratio the refiner makes.
func (m *mixture) density(c rgb) float64 {
	var sum float64
	for k := range m.comps {
		sum += m.componentDensity(k, c)
	}
	return sum
}

func (m *mixture) componentDensity(k int, c rgb) float64 {
	g := &m.comps[k]
	if g.weight == 0 {
		return 0
	}
	d0, d1, d2 := c[0]-g.mean[0], c[1]-g.mean[1], c[2]-g.mean[2]
	q := d0*(d0*g.inv[0][0]+d1*g.inv[1][0]+d2*g.inv[2][0]) +
		d1*(d0*g.inv[0][1]+d1*g.inv[1][1]+d2*g.inv[2][1]) +
		d2*(d0*g.inv[0][2]+d1*g.inv[1][2]+d2*g.inv[2][2])
	return g.weight * g.normInv * math.Exp(-0.5*q)
}

// mostLikely returns the component with the highest weighted density for c.
// Ties go to the lowest index.
func (m *mixture) mostLikely(c rgb) int {
	best, bestP := 0, -1.0
	for k := range m.comps {
		if p := m.componentDensity(k, c); p > bestP {
			best, bestP = k, p
		}
	}
	return best
}

// accumulator gathers first and second moments per component.
type accumulator struct {
	n    []int
	sum  []rgb
	prod [][3][3]float64
}

func newAccumulator(k int) *accumulator {
	return &accumulator{n: make([]int, k), sum: make([]rgb, k), prod: make([][3][3]float64, k)}
}

func (a *accumulator) add(k int, c rgb) {
	a.n[k]++
	for i := range 3 {
		a.sum[k][i] += c[i]
		for j := range 3 {
			a.prod[k][i][j] += c[i] * c[j]
		}
	}
}

// fit estimates the mixture from the accumulated moments. Components without
// samples get zero weight. It fails when no component received samples or a
// covariance cannot be inverted even after regularization.
func (a *accumulator) fit() (*mixture, error) {
	total := 0
	for _, n := range a.n {
		total += n
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: no samples", errDegenerateModel)
	}

	m := &mixture{comps: make([]gaussian, len(a.n))}
	for k, n := range a.n {
		if n == 0 {
			continue
		}
		g := &m.comps[k]
		g.weight = float64(n) / float64(total)
		for i := range 3 {
			g.mean[i] = a.sum[k][i] / float64(n)
		}

		cov := mat.NewSymDense(3, nil)
		for i := range 3 {
			for j := i; j < 3; j++ {
				cov.SetSym(i, j, a.prod[k][i][j]/float64(n)-g.mean[i]*g.mean[j])
			}
		}
		chol, ok := factorizeCovariance(cov)
		if !ok {
			return nil, fmt.Errorf("%w: component %d covariance is not positive definite", errDegenerateModel, k)
		}
		det := chol.Det()
		if det <= 0 || math.IsNaN(det) || math.IsInf(det, 0) {
			return nil, fmt.Errorf("%w: component %d determinant %g", errDegenerateModel, k, det)
		}
		var inv mat.SymDense
		if err := chol.InverseTo(&inv); err != nil {
			return nil, fmt.Errorf("%w: component %d: %w", errDegenerateModel, k, err)
		}
		for i := range 3 {
			for j := range 3 {
				g.inv[i][j] = inv.At(i, j)
			}
		}
		g.normInv = 1 / math.Sqrt(det)
	}
	return m, nil
}

// maxRegularizationSteps bounds how often factorizeCovariance grows the
// diagonal load before giving up.
const maxRegularizationSteps = 4

// factorizeCovariance returns the Cholesky factor of cov. A covariance whose
// smallest eigenvalue is at most covarianceRegularization (flat or linearly
// dependent channels, e.g. R == G) gets that amount added to its diagonal.
// If the factorization still fails the load grows tenfold per attempt.
func factorizeCovariance(cov *mat.SymDense) (*mat.Cholesky, bool) {
	load := 0.0
	var es mat.EigenSym
	if !es.Factorize(cov, false) || es.Values(nil)[0] <= covarianceRegularization {
		load = covarianceRegularization
	}
	for range maxRegularizationSteps {
		c := cov
		if load > 0 {
			c = mat.NewSymDense(3, nil)
			c.CopySym(cov)
			for i := range 3 {
				c.SetSym(i, i, c.At(i, i)+load)
			}
		}
		var chol mat.Cholesky
		if chol.Factorize(c) {
			return &chol, true
		}
		load = max(load*10, covarianceRegularization)
	}
	return nil, false
}

// splitClusters partitions samples into at most k clusters by repeated
// binary splitting: the cluster whose covariance has the largest eigenvalue
// is cut by the plane through its mean orthogonal to the matching
// eigenvector. The result is deterministic for a given sample order.
// Returned labels index into [0, clusters).
func splitClusters(samples []rgb, k int) ([]int, error) {
	labels := make([]int, len(samples))
	if len(samples) == 0 {
		return labels, nil
	}

	type cluster struct {
		idx    []int
		mean   rgb
		axis   rgb
		spread float64
		final  bool
	}
	analyse := func(idx []int) (cluster, error) {
		c := cluster{idx: idx}
		var sum rgb
		for _, i := range idx {
			for d := range 3 {
				sum[d] += samples[i][d]
			}
		}
		n := float64(len(idx))
		for d := range 3 {
			c.mean[d] = sum[d] / n
		}
		if len(idx) < 2 {
			c.final = true
			return c, nil
		}
		cov := mat.NewSymDense(3, nil)
		for _, i := range idx {
			for a := range 3 {
				for b := a; b < 3; b++ {
					cov.SetSym(a, b, cov.At(a, b)+(samples[i][a]-c.mean[a])*(samples[i][b]-c.mean[b])/n)
				}
			}
		}
		var es mat.EigenSym
		if ok := es.Factorize(cov, true); !ok {
			return c, fmt.Errorf("%w: eigen decomposition failed", errDegenerateModel)
		}
		vals := es.Values(nil) // ascending
		var vecs mat.Dense
		es.VectorsTo(&vecs)
		c.spread = vals[2]
		for d := range 3 {
			c.axis[d] = vecs.At(d, 2)
		}
		if c.spread <= 0 {
			c.final = true
		}
		return c, nil
	}

	all := make([]int, len(samples))
	for i := range all {
		all[i] = i
	}
	root, err := analyse(all)
	if err != nil {
		return nil, err
	}
	clusters := []cluster{root}

	for len(clusters) < k {
		pick := -1
		for i, c := range clusters {
			if !c.final && (pick < 0 || c.spread > clusters[pick].spread) {
				pick = i
			}
		}
		if pick < 0 {
			break
		}
		c := clusters[pick]
		threshold := c.axis[0]*c.mean[0] + c.axis[1]*c.mean[1] + c.axis[2]*c.mean[2]
		var left, right []int
		for _, i := range c.idx {
			s := samples[i]
			if c.axis[0]*s[0]+c.axis[1]*s[1]+c.axis[2]*s[2] <= threshold {
				left = append(left, i)
			} else {
				right = append(right, i)
			}
		}
		if len(left) == 0 || len(right) == 0 {
			clusters[pick].final = true
			continue
		}
		l, err := analyse(left)
		if err != nil {
			return nil, err
		}
		r, err := analyse(right)
		if err != nil {
			return nil, err
		}
		clusters[pick] = l
		clusters = append(clusters, r)
	}

	// number clusters by their smallest sample index so the labelling does
	// not depend on the split order
	sort.Slice(clusters, func(a, b int) bool { return clusters[a].idx[0] < clusters[b].idx[0] })
	for ci, c := range clusters {
		for _, i := range c.idx {
			labels[i] = ci
		}
	}
	return labels, nil
}
