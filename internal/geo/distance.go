package geo

import "math"

const earthRadiusMeters = 6_371_000

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Haversine returns the great-circle distance in meters between two lat/lon points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// Distance is Haversine over two Points.
func Distance(a, b Point) float64 {
	return Haversine(a.Lat, a.Lng, b.Lat, b.Lng)
}

// Interpolate moves linearly from a to b. t is clamped to [0,1]; 0 yields a
// and 1 yields b.
func Interpolate(a, b Point, t float64) Point {
	t = math.Max(0, math.Min(1, t))
	return Point{
		Lat: a.Lat + (b.Lat-a.Lat)*t,
		Lng: a.Lng + (b.Lng-a.Lng)*t,
	}
}

// Jitter offsets p by (draw()-0.5)*span degrees on each axis. draw must return
// values in [0,1), so each axis moves by less than span/2.
func Jitter(p Point, span float64, draw func() float64) Point {
	return Point{
		Lat: p.Lat + (draw()-0.5)*span,
		Lng: p.Lng + (draw()-0.5)*span,
	}
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
