package geometry

import (
	"math"

	"github.com/engelsjk/polygol"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
)

// circleSegments controls how finely buffer arcs are approximated. The
// buffered shapes are erode-and-simplified afterwards, so a coarse circle is
// plenty.
const circleSegments = 16

// Simplify reduces vertex count with Douglas-Peucker at the given planar
// tolerance. The input is not modified.
func Simplify(g orb.Geometry, tol float64) orb.Geometry {
	if g == nil || tol <= 0 {
		return g
	}
	return simplify.DouglasPeucker(tol).Simplify(orb.Clone(g))
}

// Dilate expands a polygonal geometry outward by dist: the union of the
// shape with disks and rectangles covering every boundary segment. This is a
// Minkowski-sum approximation built from the clipping primitives we already
// have, rather than a cgo GEOS buffer.
func Dilate(g orb.Geometry, dist float64) (orb.MultiPolygon, error) {
	base := toPolygol(g)
	if len(base) == 0 {
		return nil, nil
	}
	cover := boundaryCover(g, dist)
	if len(cover) == 0 {
		return fromPolygol(base), nil
	}
	u, err := polygol.Union(base, cover...)
	if err != nil {
		return nil, err
	}
	return fromPolygol(u), nil
}

// Erode shrinks a polygonal geometry inward by dist, subtracting the same
// boundary cover Dilate adds. Dilate then Erode at the same distance closes
// gaps narrower than twice the distance (street rights-of-way) without
// growing the overall footprint.
func Erode(g orb.Geometry, dist float64) (orb.MultiPolygon, error) {
	base := toPolygol(g)
	if len(base) == 0 {
		return nil, nil
	}
	cover := boundaryCover(g, dist)
	if len(cover) == 0 {
		return fromPolygol(base), nil
	}
	d, err := polygol.Difference(base, cover...)
	if err != nil {
		return nil, err
	}
	return fromPolygol(d), nil
}

// boundaryCover returns polygons covering all points within dist of the
// geometry's boundary: a rectangle per ring segment plus a disk per vertex.
func boundaryCover(g orb.Geometry, dist float64) []polygol.Geom {
	if dist <= 0 {
		return nil
	}
	var cover []polygol.Geom
	addRing := func(r orb.Ring) {
		for i := 0; i < len(r); i++ {
			cover = append(cover, polygol.Geom{polyCoords(circle(r[i], dist))})
			if i+1 < len(r) {
				if rect, ok := segmentRect(r[i], r[i+1], dist); ok {
					cover = append(cover, polygol.Geom{polyCoords(rect)})
				}
			}
		}
	}
	switch v := g.(type) {
	case orb.Polygon:
		for _, r := range v {
			addRing(r)
		}
	case orb.MultiPolygon:
		for _, p := range v {
			for _, r := range p {
				addRing(r)
			}
		}
	}
	return cover
}

// circle approximates a disk of radius r as a closed polygon.
func circle(c orb.Point, r float64) orb.Polygon {
	ring := make(orb.Ring, 0, circleSegments+1)
	for i := 0; i < circleSegments; i++ {
		theta := 2 * math.Pi * float64(i) / circleSegments
		ring = append(ring, orb.Point{c[0] + r*math.Cos(theta), c[1] + r*math.Sin(theta)})
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}

// segmentRect returns the rectangle of half-width r along segment ab; false
// for degenerate segments (the vertex disks cover those).
func segmentRect(a, b orb.Point, r float64) (orb.Polygon, bool) {
	dx, dy := b[0]-a[0], b[1]-a[1]
	length := math.Hypot(dx, dy)
	if length == 0 {
		return nil, false
	}
	// Unit normal.
	nx, ny := -dy/length*r, dx/length*r
	ring := orb.Ring{
		{a[0] + nx, a[1] + ny},
		{b[0] + nx, b[1] + ny},
		{b[0] - nx, b[1] - ny},
		{a[0] - nx, a[1] - ny},
		{a[0] + nx, a[1] + ny},
	}
	return orb.Polygon{ring}, true
}

// DropSmallHoles removes interior rings whose area falls below minArea.
// Holes at or above the threshold are kept: street-width artifacts go,
// parks and reservoirs stay.
func DropSmallHoles(mp orb.MultiPolygon, minArea float64) orb.MultiPolygon {
	if minArea <= 0 {
		return mp
	}
	out := make(orb.MultiPolygon, 0, len(mp))
	for _, p := range mp {
		if len(p) == 0 {
			continue
		}
		kept := orb.Polygon{p[0]}
		for _, hole := range p[1:] {
			if math.Abs(planar.Area(hole)) >= minArea {
				kept = append(kept, hole)
			}
		}
		out = append(out, kept)
	}
	return out
}
