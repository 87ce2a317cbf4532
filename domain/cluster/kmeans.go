package cluster

import (
	"math"
	"math/rand/v2"
)

// kmeans runs Lloyd's algorithm from cfg.restarts k-means++ initializations
// drawn from one seeded source and returns the labels with the lowest
// inertia.
func kmeans(vectors [][]float64, k int, cfg planConfig) ([]int, float64) {
	rng := rand.New(rand.NewPCG(cfg.seed, cfg.seed))

	var (
		bestLabels  []int
		bestInertia = math.Inf(1)
	)
	for range cfg.restarts {
		centroids := seedPlusPlus(vectors, k, rng)
		labels, inertia := lloyd(vectors, centroids, cfg)
		if inertia < bestInertia {
			bestInertia = inertia
			bestLabels = labels
		}
	}
	return bestLabels, bestInertia
}

// seedPlusPlus picks initial centroids with probability proportional to the
// squared distance from the nearest centroid chosen so far.
func seedPlusPlus(vectors [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(vectors)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(vectors[rng.IntN(n)]))

	dist := make([]float64, n)
	for i, v := range vectors {
		dist[i] = squaredDistance(v, centroids[0])
	}

	for len(centroids) < k {
		total := 0.0
		for _, d := range dist {
			total += d
		}

		next := 0
		if total == 0 {
			next = rng.IntN(n)
		} else {
			target := rng.Float64() * total
			acc := 0.0
			for i, d := range dist {
				acc += d
				if acc >= target {
					next = i
					break
				}
			}
		}

		c := clone(vectors[next])
		centroids = append(centroids, c)
		for i, v := range vectors {
			if d := squaredDistance(v, c); d < dist[i] {
				dist[i] = d
			}
		}
	}
	return centroids
}

func lloyd(vectors [][]float64, centroids [][]float64, cfg planConfig) ([]int, float64) {
	n := len(vectors)
	k := len(centroids)
	dim := len(vectors[0])
	labels := make([]int, n)

	for range cfg.maxIterations {
		assign(vectors, centroids, labels)

		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, v := range vectors {
			c := labels[i]
			counts[c]++
			for d, x := range v {
				sums[c][d] += x
			}
		}

		reseedEmpty(vectors, centroids, labels, sums, counts)

		shift := 0.0
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			next := make([]float64, dim)
			for d := range next {
				next[d] = sums[c][d] / float64(counts[c])
			}
			shift += squaredDistance(centroids[c], next)
			centroids[c] = next
		}

		if shift <= cfg.tolerance*cfg.tolerance {
			break
		}
	}

	inertia := assign(vectors, centroids, labels)
	return labels, inertia
}

// assign labels every vector with its nearest centroid and returns the
// resulting inertia. Ties go to the lower centroid index.
func assign(vectors [][]float64, centroids [][]float64, labels []int) float64 {
	inertia := 0.0
	for i, v := range vectors {
		best := 0
		bestDist := math.Inf(1)
		for c, centroid := range centroids {
			if d := squaredDistance(v, centroid); d < bestDist {
				bestDist = d
				best = c
			}
		}
		labels[i] = best
		inertia += bestDist
	}
	return inertia
}

// reseedEmpty moves the point farthest from its centroid into each empty
// cluster, taking it out of its old cluster's sums and counts. Only points
// from clusters with more than one member are moved.
func reseedEmpty(vectors [][]float64, centroids [][]float64, labels []int, sums [][]float64, counts []int) {
	for c := range counts {
		if counts[c] != 0 {
			continue
		}
		far := farthest(vectors, centroids, labels, counts)
		if far < 0 {
			return
		}
		old := labels[far]
		counts[old]--
		for d, x := range vectors[far] {
			sums[old][d] -= x
		}
		sums[c] = clone(vectors[far])
		counts[c] = 1
		labels[far] = c
	}
}

// farthest returns the index of the point farthest from its centroid among
// clusters with more than one member, or -1 if there is none.
func farthest(vectors [][]float64, centroids [][]float64, labels []int, counts []int) int {
	idx := -1
	worst := -1.0
	for i, v := range vectors {
		if counts[labels[i]] < 2 {
			continue
		}
		if d := squaredDistance(v, centroids[labels[i]]); d > worst {
			worst = d
			idx = i
		}
	}
	return idx
}

func squaredDistance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
