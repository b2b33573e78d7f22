package cluster

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
)

type indexedPoint struct {
	rect  rtreego.Rect
	index int
}

func (p indexedPoint) Bounds() rtreego.Rect {
	return p.rect
}

// Indexed produces the same clusters as Pairwise but finds neighbour candidates with an
// R-tree instead of a full matrix. Each point is stored as a box of half-width tol, so two
// boxes intersect whenever the points are closer than 2*tol on both axes; the exact
// comparison is then applied to every candidate. The half-width is widened by a few units
// of float64 spacing so boxes never collapse to zero size for tiny tolerances.
type Indexed struct {
	MinChildren int
	MaxChildren int
}

func (c Indexed) Cluster(lats, lons []float64, tol float64) ([][]int, error) {
	if err := validate(lats, lons, tol); err != nil {
		return nil, err
	}

	n := len(lats)
	if n == 0 {
		return [][]int{}, nil
	}

	minChildren, maxChildren := c.MinChildren, c.MaxChildren
	if minChildren <= 0 || maxChildren < 2*minChildren {
		minChildren, maxChildren = 25, 50
	}

	half := boxHalfWidth(lats, lons, tol)
	points := make([]rtreego.Spatial, n)
	for i := range lats {
		points[i] = indexedPoint{rect: rtreego.Point{lats[i], lons[i]}.ToRect(half), index: i}
	}
	tree := rtreego.NewTree(2, minChildren, maxChildren, points...)

	clusters := [][]int{}
	for index := 0; index < n; index++ {
		neighbours := neighbours(tree, lats, lons, index, tol, half)
		if len(neighbours) > 0 && neighbours[0] < index {
			continue
		}
		var members []int
		for _, i := range neighbours {
			if i >= index {
				members = append(members, i)
			}
		}
		clusters = append(clusters, members)
	}
	return clusters, nil
}

// neighbours returns, sorted, every index within tol of index, including index itself.
func neighbours(tree *rtreego.Rtree, lats, lons []float64, index int, tol, half float64) []int {
	query := rtreego.Point{lats[index], lons[index]}.ToRect(half)

	var out []int
	for _, obj := range tree.SearchIntersect(query) {
		i := obj.(indexedPoint).index
		if Same(lats[index], lons[index], lats[i], lons[i], tol) {
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}

// boxHalfWidth returns tol plus four units of float64 spacing at the largest coordinate
// magnitude, so every box edge is distinct from its centre.
func boxHalfWidth(lats, lons []float64, tol float64) float64 {
	largest := 0.0
	for i := range lats {
		largest = max(largest, math.Abs(lats[i]), math.Abs(lons[i]))
	}
	spacing := math.Nextafter(largest, math.Inf(1)) - largest
	return tol + 4*spacing
}
