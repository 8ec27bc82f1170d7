// Package grid regrids scattered geographic samples onto a regular
// latitude/longitude mesh.
package grid

import (
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

// Neighbor search parameters for interpolation.
const (
	maxNeighbors = 8
	// coincident is the distance in degrees below which a mesh node takes
	// a sample's value directly.
	coincident = 1e-9
)

// Mesh is a regular longitude/latitude grid of cell-center coordinates.
type Mesh struct {
	Lon []float64 // ascending, length Nx
	Lat []float64 // ascending, length Ny

	Resolution float64
}

// NewMesh builds a regular mesh covering [lonMin, lonMax] x [latMin, latMax]
// at the given spacing in degrees. Boundary maxima must not be smaller than
// minima and resolution must be positive.
func NewMesh(lonMin, lonMax, latMin, latMax, resolution float64) (*Mesh, error) {
	if resolution <= 0 {
		return nil, fmt.Errorf("grid: resolution must be positive, got %g", resolution)
	}
	if lonMax < lonMin {
		return nil, fmt.Errorf("grid: longitude bounds [%g, %g] are reversed", lonMin, lonMax)
	}
	if latMax < latMin {
		return nil, fmt.Errorf("grid: latitude bounds [%g, %g] are reversed", latMin, latMax)
	}
	return &Mesh{
		Lon:        span(lonMin, lonMax, resolution),
		Lat:        span(latMin, latMax, resolution),
		Resolution: resolution,
	}, nil
}

// span returns min, min+res, ... up to the largest value not exceeding max
// (with a small tolerance for accumulated rounding).
func span(min, max, res float64) []float64 {
	n := int(math.Floor((max-min)/res+1e-9)) + 1
	if n < 2 {
		return []float64{min}
	}
	dst := make([]float64, n)
	floats.Span(dst, min, min+res*float64(n-1))
	return dst
}

// Nx returns the number of longitude nodes.
func (m *Mesh) Nx() int { return len(m.Lon) }

// Ny returns the number of latitude nodes.
func (m *Mesh) Ny() int { return len(m.Lat) }

// Sample is one scattered observation.
type Sample struct {
	Lon, Lat float64
	Value    float64
}

type sampleGeom struct {
	geom.Point
	value float64
}

// Interpolate maps scattered samples onto the mesh by inverse-distance
// weighting over nearby samples. Mesh nodes outside the convex hull of the
// inputs are NaN ("no data"), so the result never extrapolates. With no
// samples at all the entire grid is NaN.
func Interpolate(samples []Sample, m *Mesh) *sparse.DenseArray {
	out := sparse.ZerosDense(m.Ny(), m.Nx())
	for i := range out.Elements {
		out.Elements[i] = math.NaN()
	}
	if len(samples) == 0 {
		return out
	}

	tree := rtree.NewTree(25, 50)
	pts := make([]geom.Point, len(samples))
	for i, s := range samples {
		pts[i] = geom.Point{X: s.Lon, Y: s.Lat}
		tree.Insert(&sampleGeom{Point: pts[i], value: s.Value})
	}
	hull := convexHull(pts)

	// Initial search radius: a few mesh cells, but at least the typical
	// sample spacing estimated from the hull extent.
	bounds := pointBounds(pts)
	spacing := math.Sqrt((bounds.Max.X - bounds.Min.X) * (bounds.Max.Y - bounds.Min.Y) /
		float64(len(samples)))
	r0 := math.Max(2*m.Resolution, spacing)
	if r0 <= 0 {
		r0 = m.Resolution
	}
	maxRadius := math.Max(bounds.Max.X-bounds.Min.X, bounds.Max.Y-bounds.Min.Y) + r0

	for j, lat := range m.Lat {
		for i, lon := range m.Lon {
			p := geom.Point{X: lon, Y: lat}
			if !inHull(p, hull) {
				continue
			}
			out.Set(idw(tree, p, r0, maxRadius), j, i)
		}
	}
	return out
}

// idw computes the inverse-distance-squared weighted value at p, expanding
// the neighbor search radius until at least one sample is found.
func idw(tree *rtree.Rtree, p geom.Point, r, maxRadius float64) float64 {
	var found []*sampleGeom
	for {
		box := &geom.Bounds{
			Min: geom.Point{X: p.X - r, Y: p.Y - r},
			Max: geom.Point{X: p.X + r, Y: p.Y + r},
		}
		for _, item := range tree.SearchIntersect(box) {
			found = append(found, item.(*sampleGeom))
		}
		if len(found) > 0 || r > maxRadius {
			break
		}
		found = found[:0]
		r *= 2
	}
	if len(found) == 0 {
		return math.NaN()
	}

	sort.Slice(found, func(a, b int) bool {
		return dist2(found[a].Point, p) < dist2(found[b].Point, p)
	})
	if len(found) > maxNeighbors {
		found = found[:maxNeighbors]
	}

	var num, den float64
	for _, s := range found {
		d2 := dist2(s.Point, p)
		if d2 < coincident*coincident {
			return s.value
		}
		w := 1 / d2
		num += w * s.value
		den += w
	}
	return num / den
}

func dist2(a, b geom.Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return dx*dx + dy*dy
}

func pointBounds(pts []geom.Point) *geom.Bounds {
	b := &geom.Bounds{
		Min: geom.Point{X: math.Inf(1), Y: math.Inf(1)},
		Max: geom.Point{X: math.Inf(-1), Y: math.Inf(-1)},
	}
	for _, p := range pts {
		b.Min.X = math.Min(b.Min.X, p.X)
		b.Min.Y = math.Min(b.Min.Y, p.Y)
		b.Max.X = math.Max(b.Max.X, p.X)
		b.Max.Y = math.Max(b.Max.Y, p.Y)
	}
	return b
}

// convexHull computes the convex hull of pts (Andrew's monotone chain),
// returned in counterclockwise order without the closing point.
func convexHull(pts []geom.Point) []geom.Point {
	if len(pts) < 3 {
		return append([]geom.Point(nil), pts...)
	}
	sorted := append([]geom.Point(nil), pts...)
	sort.Slice(sorted, func(a, b int) bool {
		if sorted[a].X != sorted[b].X {
			return sorted[a].X < sorted[b].X
		}
		return sorted[a].Y < sorted[b].Y
	})

	var lower, upper []geom.Point
	for _, p := range sorted {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], p) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, p)
	}
	for i := len(sorted) - 1; i >= 0; i-- {
		p := sorted[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], p) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, p)
	}
	return append(lower[:len(lower)-1], upper[:len(upper)-1]...)
}

func cross(o, a, b geom.Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// inHull reports whether p lies inside or on the convex hull. Degenerate
// hulls (fewer than three vertices) contain only coincident points.
func inHull(p geom.Point, hull []geom.Point) bool {
	const eps = 1e-9
	if len(hull) < 3 {
		for _, h := range hull {
			if dist2(p, h) < coincident*coincident {
				return true
			}
		}
		return false
	}
	for i := range hull {
		a := hull[i]
		b := hull[(i+1)%len(hull)]
		if cross(a, b, p) < -eps {
			return false
		}
	}
	return true
}
