package younglaplace

import (
	"gonum.org/v1/gonum/spatial/kdtree"
)

// profilePoint is a sampled (r, z) profile station stored in a KD-tree for
// nearest-point residual queries.
type profilePoint struct {
	R, Z float64
}

// Compare implements the kdtree.Comparable interface
func (p profilePoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(profilePoint)
	switch d {
	case 0:
		return p.R - q.R
	case 1:
		return p.Z - q.Z
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (p profilePoint) Dims() int { return 2 }

// Distance returns the squared Euclidean distance between two points
func (p profilePoint) Distance(c kdtree.Comparable) float64 {
	q := c.(profilePoint)
	dr := p.R - q.R
	dz := p.Z - q.Z
	return dr*dr + dz*dz // Return squared distance for efficiency
}

// profilePoints is a collection of profilePoint that satisfies kdtree.Interface
type profilePoints []profilePoint

func (p profilePoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p profilePoints) Len() int                              { return len(p) }
func (p profilePoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p profilePoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(profilePlane{profilePoints: p, Dim: d}, kdtree.MedianOfRandoms(profilePlane{profilePoints: p, Dim: d}, 100))
}

// profilePlane implements sort.Interface and kdtree.SortSlicer for profilePoints
type profilePlane struct {
	profilePoints
	kdtree.Dim
}

func (p profilePlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.profilePoints[i].R < p.profilePoints[j].R
	case 1:
		return p.profilePoints[i].Z < p.profilePoints[j].Z
	default:
		panic("illegal dimension")
	}
}

func (p profilePlane) Slice(start, end int) kdtree.SortSlicer {
	return profilePlane{profilePoints: p.profilePoints[start:end], Dim: p.Dim}
}

func (p profilePlane) Swap(i, j int) {
	p.profilePoints[i], p.profilePoints[j] = p.profilePoints[j], p.profilePoints[i]
}

// newProfileTree builds a KD-tree over the sampled stations of a profile.
func newProfileTree(p *Profile) *kdtree.Tree {
	pts := make(profilePoints, len(p.s))
	for i := range p.s {
		pts[i] = profilePoint{R: p.r[i], Z: p.z[i]}
	}
	return kdtree.New(pts, false)
}
