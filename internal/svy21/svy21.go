// Package svy21 converts SVY21 projected coordinates (the survey grid used by
// the carpark information feed) into WGS84 latitude/longitude.
package svy21

import (
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/carpark-cli/internal/geo"
)

// Projection constants for SVY21 on the WGS84 ellipsoid.
const (
	semiMajor   = 6378137.0
	flattening  = 1.0 / 298.257223563
	originLat   = 1.366666
	originLng   = 103.833333
	falseNorth  = 38744.572
	falseEast   = 28001.642
	scaleFactor = 1.0
)

// Fallback is returned whenever a coordinate cannot be projected into the
// regional bounds. It is the geographic centre of Singapore.
var Fallback = geo.Point{Lat: 1.3521, Lng: 103.8198}

var (
	semiMinor = semiMajor * (1 - flattening)
	e2        = 2*flattening - flattening*flattening
	e4        = e2 * e2
	e6        = e4 * e2

	a0 = 1 - e2/4 - 3*e4/64 - 5*e6/256
	a2 = 3.0 / 8.0 * (e2 + e4/4 + 15*e6/128)
	a4 = 15.0 / 256.0 * (e4 + 3*e6/4)
	a6 = 35 * e6 / 3072

	meridianOrigin = meridianArc(originLat)
)

// Project converts an SVY21 easting (x) and northing (y) into latitude and
// longitude. Non-finite input or a result outside the regional bounds yields
// Fallback; Project never fails.
func Project(x, y float64) (lat, lng float64) {
	if !finite(x) || !finite(y) {
		return Fallback.Lat, Fallback.Lng
	}
	lat, lng = inverse(y, x)
	if !finite(lat) || !finite(lng) || !geo.Singapore.Contains(lat, lng) {
		return Fallback.Lat, Fallback.Lng
	}
	return lat, lng
}

// ProjectStrings parses feed-style string coordinates and projects them.
// The second return value is false when Fallback was substituted.
func ProjectStrings(x, y string) (geo.Point, bool) {
	xf, errX := strconv.ParseFloat(strings.TrimSpace(x), 64)
	yf, errY := strconv.ParseFloat(strings.TrimSpace(y), 64)
	if errX != nil || errY != nil {
		return Fallback, false
	}
	lat, lng := Project(xf, yf)
	p := geo.Point{Lat: lat, Lng: lng}
	return p, p != Fallback
}

// Forward converts latitude/longitude into SVY21 easting (x) and northing (y).
func Forward(lat, lng float64) (x, y float64) {
	latR := toRad(lat)
	sinLat := math.Sin(latR)
	sin2Lat := sinLat * sinLat
	cosLat := math.Cos(latR)
	cos2Lat := cosLat * cosLat
	cos3Lat := cos2Lat * cosLat
	cos4Lat := cos3Lat * cosLat
	cos5Lat := cos4Lat * cosLat
	cos6Lat := cos5Lat * cosLat
	cos7Lat := cos6Lat * cosLat

	t := math.Tan(latR)
	t2 := t * t
	t4 := t2 * t2
	t6 := t4 * t2

	rho := radiusMeridian(sin2Lat)
	v := radiusPrimeVertical(sin2Lat)
	psi := v / rho
	psi2 := psi * psi
	psi3 := psi2 * psi
	psi4 := psi3 * psi

	w := toRad(lng - originLng)
	w2 := w * w
	w4 := w2 * w2
	w6 := w4 * w2
	w8 := w6 * w2

	m := meridianArc(lat)

	n1 := w2 / 2 * v * sinLat * cosLat
	n2 := w4 / 24 * v * sinLat * cos3Lat * (4*psi2 + psi - t2)
	n3 := w6 / 720 * v * sinLat * cos5Lat *
		(8*psi4*(11-24*t2) - 28*psi3*(1-6*t2) + psi2*(1-32*t2) - psi*2*t2 + t4)
	n4 := w8 / 40320 * v * sinLat * cos7Lat * (1385 - 3111*t2 + 543*t4 - t6)
	y = falseNorth + scaleFactor*(m-meridianOrigin+n1+n2+n3+n4)

	e1 := w2 / 6 * cos2Lat * (psi - t2)
	e2t := w4 / 120 * cos4Lat * (4*psi3*(1-6*t2) + psi2*(1+8*t2) - psi*2*t2 + t4)
	e3 := w6 / 5040 * cos6Lat * (61 - 479*t2 + 179*t4 - t6)
	x = falseEast + scaleFactor*v*w*cosLat*(1+e1+e2t+e3)

	return x, y
}

func inverse(northing, easting float64) (lat, lng float64) {
	nPrime := northing - falseNorth
	mPrime := meridianOrigin + nPrime/scaleFactor

	n := (semiMajor - semiMinor) / (semiMajor + semiMinor)
	n2 := n * n
	n3 := n2 * n
	n4 := n2 * n2

	g := semiMajor * (1 - n) * (1 - n2) * (1 + 9*n2/4 + 225*n4/64) * (math.Pi / 180)
	sigma := mPrime * math.Pi / (180 * g)

	latPrime := sigma +
		(3*n/2-27*n3/32)*math.Sin(2*sigma) +
		(21*n2/16-55*n4/32)*math.Sin(4*sigma) +
		(151*n3/96)*math.Sin(6*sigma) +
		(1097*n4/512)*math.Sin(8*sigma)

	sinLatPrime := math.Sin(latPrime)
	sin2LatPrime := sinLatPrime * sinLatPrime

	rhoPrime := radiusMeridian(sin2LatPrime)
	vPrime := radiusPrimeVertical(sin2LatPrime)
	psi := vPrime / rhoPrime
	psi2 := psi * psi
	psi3 := psi2 * psi
	psi4 := psi3 * psi

	secLatPrime := 1 / math.Cos(latPrime)
	t := math.Tan(latPrime)
	t2 := t * t
	t4 := t2 * t2
	t6 := t4 * t2

	ePrime := easting - falseEast
	x := ePrime / (scaleFactor * vPrime)
	x2 := x * x
	x3 := x2 * x
	x5 := x3 * x2
	x7 := x5 * x2

	latFactor := t / (scaleFactor * rhoPrime)
	lat1 := latFactor * (ePrime * x / 2)
	lat2 := latFactor * (ePrime * x3 / 24) * (-4*psi2 + 9*psi*(1-t2) + 12*t2)
	lat3 := latFactor * (ePrime * x5 / 720) *
		(8*psi4*(11-24*t2) - 12*psi3*(21-71*t2) + 15*psi2*(15-98*t2+15*t4) + 180*psi*(5*t2-3*t4) + 360*t4)
	lat4 := latFactor * (ePrime * x7 / 40320) * (1385 - 3633*t2 + 4095*t4 + 1575*t6)
	latR := latPrime - lat1 + lat2 - lat3 + lat4

	lng1 := x * secLatPrime
	lng2 := x3 * secLatPrime / 6 * (psi + 2*t2)
	lng3 := x5 * secLatPrime / 120 *
		(-4*psi3*(1-6*t2) + psi2*(9-68*t2) + 72*psi*t2 + 24*t4)
	lng4 := x7 * secLatPrime / 5040 * (61 + 662*t2 + 1320*t4 + 720*t6)
	lngR := toRad(originLng) + lng1 - lng2 + lng3 - lng4

	return toDeg(latR), toDeg(lngR)
}

func meridianArc(lat float64) float64 {
	r := toRad(lat)
	return semiMajor * (a0*r - a2*math.Sin(2*r) + a4*math.Sin(4*r) - a6*math.Sin(6*r))
}

func radiusMeridian(sin2Lat float64) float64 {
	return semiMajor * (1 - e2) / math.Pow(1-e2*sin2Lat, 1.5)
}

func radiusPrimeVertical(sin2Lat float64) float64 {
	return semiMajor / math.Sqrt(1-e2*sin2Lat)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

func toDeg(rad float64) float64 { return rad * 180 / math.Pi }
