package geometry

import (
	"github.com/engelsjk/polygol"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Area returns the planar area of a geometry. In the state-plane CRS this is
// square feet.
func Area(g orb.Geometry) float64 {
	if g == nil {
		return 0
	}
	return planar.Area(g)
}

// toPolygol converts any polygonal orb geometry to polygol's multipolygon
// form. Non-areal geometries convert to nothing.
func toPolygol(g orb.Geometry) polygol.Geom {
	switch v := g.(type) {
	case orb.Polygon:
		return polygol.Geom{polyCoords(v)}
	case orb.MultiPolygon:
		out := make(polygol.Geom, 0, len(v))
		for _, p := range v {
			out = append(out, polyCoords(p))
		}
		return out
	case orb.Collection:
		var out polygol.Geom
		for _, sub := range v {
			out = append(out, toPolygol(sub)...)
		}
		return out
	default:
		return nil
	}
}

func polyCoords(p orb.Polygon) [][][]float64 {
	rings := make([][][]float64, len(p))
	for i, r := range p {
		pts := make([][]float64, len(r))
		for j, pt := range r {
			pts[j] = []float64{pt[0], pt[1]}
		}
		rings[i] = pts
	}
	return rings
}

// fromPolygol converts polygol output back to an orb multipolygon.
func fromPolygol(g polygol.Geom) orb.MultiPolygon {
	mp := make(orb.MultiPolygon, 0, len(g))
	for _, poly := range g {
		p := make(orb.Polygon, 0, len(poly))
		for _, ring := range poly {
			r := make(orb.Ring, 0, len(ring))
			for _, pt := range ring {
				if len(pt) < 2 {
					continue
				}
				r = append(r, orb.Point{pt[0], pt[1]})
			}
			if len(r) >= 4 {
				p = append(p, r)
			}
		}
		if len(p) > 0 {
			mp = append(mp, p)
		}
	}
	return mp
}

// Dissolve unions the given geometries into one (possibly multi-part)
// polygon. A single input passes through without a union pass.
func Dissolve(gs ...orb.Geometry) (orb.MultiPolygon, error) {
	parts := make([]polygol.Geom, 0, len(gs))
	for _, g := range gs {
		if pg := toPolygol(g); len(pg) > 0 {
			parts = append(parts, pg)
		}
	}
	switch len(parts) {
	case 0:
		return nil, nil
	case 1:
		return fromPolygol(parts[0]), nil
	}
	u, err := polygol.Union(parts[0], parts[1:]...)
	if err != nil {
		return nil, err
	}
	return fromPolygol(u), nil
}

// Intersect returns the polygonal intersection of two geometries. An empty
// result means the inputs are disjoint (or merely tangent: zero-area slivers
// never come back as polygons).
func Intersect(a, b orb.Geometry) (orb.MultiPolygon, error) {
	ga, gb := toPolygol(a), toPolygol(b)
	if len(ga) == 0 || len(gb) == 0 {
		return nil, nil
	}
	inter, err := polygol.Intersection(ga, gb)
	if err != nil {
		return nil, err
	}
	return fromPolygol(inter), nil
}
