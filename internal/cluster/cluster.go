// Package cluster groups rows that share a physical location.
//
// Two rows are at the same location when both their latitudes and their longitudes
// differ by at most a tolerance. Rows are visited in ascending order; a row seeds a new
// cluster unless some earlier row is within tolerance of it, and a seed's cluster is
// every row at or after the seed that is within tolerance of the seed itself.
//
// Tolerance comparison is not transitive, so for chains of nearby points a row can be
// left out of every cluster or appear in two of them. Unassigned and Duplicated report
// those rows.
package cluster

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrLengthMismatch   = errors.New("cluster: latitude and longitude counts differ")
	ErrInvalidTolerance = errors.New("cluster: tolerance must be positive")
)

// Clusterer partitions row indices by location. Clusters are ordered by seed index and
// members within a cluster are in ascending index order.
type Clusterer interface {
	Cluster(lats, lons []float64, tol float64) ([][]int, error)
}

// Same reports whether two coordinates are within tol of each other on both axes.
func Same(latA, lonA, latB, lonB, tol float64) bool {
	return math.Abs(latA-latB) <= tol && math.Abs(lonA-lonB) <= tol
}

func validate(lats, lons []float64, tol float64) error {
	if len(lats) != len(lons) {
		return fmt.Errorf("%w: %d latitudes, %d longitudes", ErrLengthMismatch, len(lats), len(lons))
	}
	if !(tol > 0) {
		return fmt.Errorf("%w: got %v", ErrInvalidTolerance, tol)
	}
	return nil
}

// Pairwise evaluates every pair of rows through a full n×n match matrix.
type Pairwise struct{}

func (Pairwise) Cluster(lats, lons []float64, tol float64) ([][]int, error) {
	if err := validate(lats, lons, tol); err != nil {
		return nil, err
	}

	n := len(lats)
	same := make([][]bool, n)
	for i := range same {
		same[i] = make([]bool, n)
		for j := range same[i] {
			same[i][j] = Same(lats[i], lons[i], lats[j], lons[j], tol)
		}
	}

	clusters := [][]int{}
	for index := 0; index < n; index++ {
		if seeded(same[index][:index]) {
			continue
		}
		var members []int
		for i := index; i < n; i++ {
			if same[index][i] {
				members = append(members, i)
			}
		}
		clusters = append(clusters, members)
	}
	return clusters, nil
}

// seeded reports whether any earlier row already matched.
func seeded(earlier []bool) bool {
	for _, s := range earlier {
		if s {
			return true
		}
	}
	return false
}

// Unassigned returns the indices in [0, n) that no cluster contains.
func Unassigned(n int, clusters [][]int) []int {
	seen := make([]bool, n)
	for _, c := range clusters {
		for _, i := range c {
			if i >= 0 && i < n {
				seen[i] = true
			}
		}
	}
	var missing []int
	for i, ok := range seen {
		if !ok {
			missing = append(missing, i)
		}
	}
	return missing
}

// Duplicated returns, in ascending order, the indices that appear in more than one cluster.
func Duplicated(clusters [][]int) []int {
	counts := make(map[int]int)
	maxIndex := -1
	for _, c := range clusters {
		for _, i := range c {
			counts[i]++
			if i > maxIndex {
				maxIndex = i
			}
		}
	}
	var dups []int
	for i := 0; i <= maxIndex; i++ {
		if counts[i] > 1 {
			dups = append(dups, i)
		}
	}
	return dups
}
