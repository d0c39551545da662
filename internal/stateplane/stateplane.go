// Package stateplane converts between WGS-84 degrees and NAD83 / New Jersey
// State Plane (EPSG:3424) Transverse Mercator, US survey feet. The parcel
// display geometry is lat/lon; all area math happens in this CRS so areas
// come out in square feet directly.
package stateplane

import (
	"math"

	"github.com/paulmach/orb"
)

const (
	falseEastingFt = 492125.0 // 150,000 m
	falseNorthing  = 0.0
	lat0Deg        = 38.833333333333336 // latitude of origin (38°50'N)
	lon0Deg        = -74.5              // central meridian
	k0             = 0.9999             // scale factor on the central meridian

	ftPerMeter = 3.2808333333333334 // US survey foot
	semiMajorM = 6378137.0          // NAD83 semi-major axis (metres)
	e2         = 0.00669438002290   // NAD83 eccentricity squared
)

var (
	aFt float64 // semi-major axis in survey feet
	ep2 float64 // second eccentricity squared
	e1  float64 // series constant for the footpoint latitude
	m0  float64 // meridional arc at the latitude of origin
)

func init() {
	aFt = semiMajorM * ftPerMeter
	ep2 = e2 / (1 - e2)
	sq := math.Sqrt(1 - e2)
	e1 = (1 - sq) / (1 + sq)
	m0 = meridionalArc(lat0Deg * math.Pi / 180)
}

// meridionalArc returns the ellipsoidal arc length from the equator to phi,
// in feet (Snyder eq. 3-21).
func meridionalArc(phi float64) float64 {
	e4 := e2 * e2
	e6 := e4 * e2
	return aFt * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))
}

// Forward converts WGS-84 longitude/latitude in decimal degrees to NJ State
// Plane (easting, northing) in US survey feet (Snyder eq. 8-9..8-13).
func Forward(lonDeg, latDeg float64) (eastingFt, northingFt float64) {
	phi := latDeg * math.Pi / 180
	lambda := lonDeg * math.Pi / 180
	lambda0 := lon0Deg * math.Pi / 180

	sinPhi := math.Sin(phi)
	cosPhi := math.Cos(phi)
	tanPhi := math.Tan(phi)

	nu := aFt / math.Sqrt(1-e2*sinPhi*sinPhi)
	t := tanPhi * tanPhi
	c := ep2 * cosPhi * cosPhi
	a := (lambda - lambda0) * cosPhi

	a2 := a * a
	a3 := a2 * a
	a4 := a3 * a
	a5 := a4 * a
	a6 := a5 * a

	eastingFt = falseEastingFt + k0*nu*(a+
		(1-t+c)*a3/6+
		(5-18*t+t*t+72*c-58*ep2)*a5/120)
	northingFt = falseNorthing + k0*(meridionalArc(phi)-m0+
		nu*tanPhi*(a2/2+
			(5-t+9*c+4*c*c)*a4/24+
			(61-58*t+t*t+600*c-330*ep2)*a6/720))
	return
}

// Inverse converts NJ State Plane feet back to WGS-84 degrees (Snyder
// eq. 8-18..8-25). Used to bring ward geometries built in planar space back
// into lat/lon for rendering.
func Inverse(eastingFt, northingFt float64) (lonDeg, latDeg float64) {
	m := m0 + (northingFt-falseNorthing)/k0
	mu := m / (aFt * (1 - e2/4 - 3*e2*e2/64 - 5*e2*e2*e2/256))

	e1sq := e1 * e1
	e1cu := e1sq * e1
	e1qu := e1cu * e1
	phi1 := mu +
		(3*e1/2-27*e1cu/32)*math.Sin(2*mu) +
		(21*e1sq/16-55*e1qu/32)*math.Sin(4*mu) +
		(151*e1cu/96)*math.Sin(6*mu) +
		(1097*e1qu/512)*math.Sin(8*mu)

	sinPhi1 := math.Sin(phi1)
	cosPhi1 := math.Cos(phi1)
	tanPhi1 := math.Tan(phi1)

	c1 := ep2 * cosPhi1 * cosPhi1
	t1 := tanPhi1 * tanPhi1
	denom := 1 - e2*sinPhi1*sinPhi1
	nu1 := aFt / math.Sqrt(denom)
	rho1 := aFt * (1 - e2) / math.Pow(denom, 1.5)
	d := (eastingFt - falseEastingFt) / (nu1 * k0)

	d2 := d * d
	d3 := d2 * d
	d4 := d3 * d
	d5 := d4 * d
	d6 := d5 * d

	phi := phi1 - (nu1 * tanPhi1 / rho1) * (d2/2 -
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*d4/24 +
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*d6/720)
	lambda := lon0Deg*math.Pi/180 + (d -
		(1+2*t1+c1)*d3/6 +
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*d5/120) / cosPhi1

	latDeg = phi * 180 / math.Pi
	lonDeg = lambda * 180 / math.Pi
	return
}

// ToPlanar is an orb projection from WGS-84 points to state-plane feet.
func ToPlanar(p orb.Point) orb.Point {
	x, y := Forward(p[0], p[1])
	return orb.Point{x, y}
}

// ToGeographic is an orb projection from state-plane feet to WGS-84 points.
func ToGeographic(p orb.Point) orb.Point {
	lon, lat := Inverse(p[0], p[1])
	return orb.Point{lon, lat}
}
