// Package cluster chooses a cluster count from corpus size and partitions
// embeddings with seeded k-means.
package cluster

import (
	"errors"
	"fmt"
)

// Defaults for Plan.
const (
	DefaultSeed          = 42
	DefaultRestarts      = 10
	DefaultMaxIterations = 300
	DefaultTolerance     = 1e-4
	MinItems             = 2
)

// ErrNotEnoughData indicates fewer than MinItems usable vectors.
var ErrNotEnoughData = errors.New("not enough data to cluster")

// Count returns the cluster count for n items. It depends on n only.
func Count(n int) int {
	switch {
	case n <= 10:
		return 3
	case n <= 40:
		return 5
	case n <= 120:
		return 7
	}
	return min(12, max(8, n/20))
}

// Cluster is one group of a partition. Members are indices into the input.
type Cluster struct {
	label   int
	members []int
}

// NewCluster creates a Cluster.
func NewCluster(label int, members []int) Cluster {
	m := make([]int, len(members))
	copy(m, members)
	return Cluster{label: label, members: m}
}

// Label returns the cluster label assigned by k-means.
func (c Cluster) Label() int { return c.label }

// Members returns the input indices in this cluster, in input order.
func (c Cluster) Members() []int {
	m := make([]int, len(c.members))
	copy(m, c.members)
	return m
}

// Size returns the member count.
func (c Cluster) Size() int { return len(c.members) }

// Plan is a hard partition of the input into K groups.
type Plan struct {
	k        int
	labels   []int
	clusters []Cluster
	inertia  float64
}

// K returns the cluster count used.
func (p Plan) K() int { return p.k }

// Labels returns the label of every input item.
func (p Plan) Labels() []int {
	l := make([]int, len(p.labels))
	copy(l, p.labels)
	return l
}

// Clusters returns the non-empty groups ordered by first appearance of their
// label in input order.
func (p Plan) Clusters() []Cluster {
	c := make([]Cluster, len(p.clusters))
	copy(c, p.clusters)
	return c
}

// Inertia returns the within-cluster sum of squared distances.
func (p Plan) Inertia() float64 { return p.inertia }

// Option configures Plan.
type Option func(*planConfig)

type planConfig struct {
	k             int
	seed          uint64
	restarts      int
	maxIterations int
	tolerance     float64
}

// WithK overrides the heuristic cluster count.
func WithK(k int) Option {
	return func(c *planConfig) { c.k = k }
}

// WithSeed sets the random seed.
func WithSeed(seed uint64) Option {
	return func(c *planConfig) { c.seed = seed }
}

// WithRestarts sets how many independent initializations to try.
func WithRestarts(n int) Option {
	return func(c *planConfig) {
		if n > 0 {
			c.restarts = n
		}
	}
}

// WithMaxIterations bounds Lloyd iterations per restart.
func WithMaxIterations(n int) Option {
	return func(c *planConfig) {
		if n > 0 {
			c.maxIterations = n
		}
	}
}

// PlanFor partitions the vectors using Count(len(vectors)) clusters, capped at
// the number of vectors.
func PlanFor(vectors [][]float64, opts ...Option) (Plan, error) {
	cfg := planConfig{
		seed:          DefaultSeed,
		restarts:      DefaultRestarts,
		maxIterations: DefaultMaxIterations,
		tolerance:     DefaultTolerance,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	n := len(vectors)
	if n < MinItems {
		return Plan{}, fmt.Errorf("%w: %d usable items", ErrNotEnoughData, n)
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return Plan{}, fmt.Errorf("vector %d has dimension %d, expected %d", i, len(v), dim)
		}
	}

	k := cfg.k
	if k <= 0 {
		k = Count(n)
	}
	k = min(k, n)

	labels, inertia := kmeans(vectors, k, cfg)
	return Plan{
		k:        k,
		labels:   labels,
		clusters: group(labels),
		inertia:  inertia,
	}, nil
}

func group(labels []int) []Cluster {
	index := make(map[int]int)
	var clusters []Cluster
	for i, l := range labels {
		pos, ok := index[l]
		if !ok {
			pos = len(clusters)
			index[l] = pos
			clusters = append(clusters, Cluster{label: l})
		}
		clusters[pos].members = append(clusters[pos].members, i)
	}
	return clusters
}
