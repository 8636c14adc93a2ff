package geo

import (
	"fmt"
	"math"
)

const (
	earthRadiusKM = 6371.0

	// AverageUrbanSpeedKMH drives the fallback driving-time estimate.
	AverageUrbanSpeedKMH = 30.0

	minDrivingMinutes = 1.0
)

// HaversineKm returns the great-circle distance between two points in
// kilometers, rounded to one decimal place.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return math.Round(earthRadiusKM*c*10) / 10
}

// Distance is HaversineKm between two Points.
func Distance(a, b Point) float64 {
	return HaversineKm(a.Lat, a.Lng, b.Lat, b.Lng)
}

// EstimateDrivingMinutes converts a distance into whole driving minutes at
// AverageUrbanSpeedKMH, never less than one minute.
func EstimateDrivingMinutes(km float64) float64 {
	if km <= 0 || math.IsNaN(km) {
		return minDrivingMinutes
	}
	return math.Max(minDrivingMinutes, math.Ceil(km/AverageUrbanSpeedKMH*60))
}

// FormatDistance renders sub-kilometer distances in meters and everything
// else in kilometers with one decimal.
func FormatDistance(km float64) string {
	if km < 1 {
		return fmt.Sprintf("%d m", int(math.Round(km*1000)))
	}
	return fmt.Sprintf("%.1f km", km)
}

// DegreesPerKM approximates one kilometer of latitude in degrees.
const DegreesPerKM = 1.0 / 111.0

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
