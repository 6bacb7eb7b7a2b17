package places

import "math"

// Degrees per kilometre of latitude is effectively constant; longitude
// shrinks with cos(lat) as meridians converge.
const kmPerDegLat = 110.574

func kmToDegLat(km float64) float64 {
	return km / kmPerDegLat
}

func kmToDegLng(km, lat float64) float64 {
	return km / (111.320*math.Cos(lat*math.Pi/180) + 1e-9)
}

// Grid tiles the requested radius into a (2*steps+1)² lattice of sub-search
// centers, spaced so adjacent cells abut without excessive overlap. A single
// nearby search tops out well below what a city-sized radius holds.
func Grid(center LatLng, radiusM, steps int) []LatLng {
	if steps < 1 {
		steps = 1
	}
	stepKm := float64(radiusM) / 1000 / float64(steps)
	dlat := kmToDegLat(stepKm)
	dlng := kmToDegLng(stepKm, center.Lat)

	points := make([]LatLng, 0, (2*steps+1)*(2*steps+1))
	for dy := -steps; dy <= steps; dy++ {
		for dx := -steps; dx <= steps; dx++ {
			points = append(points, LatLng{
				Lat: center.Lat + float64(dy)*dlat,
				Lng: center.Lng + float64(dx)*dlng,
			})
		}
	}
	return points
}

// CellRadiusM is the per-cell search radius for a tiled run: the requested
// radius divided by the step count, floored at the provider's useful minimum.
func CellRadiusM(radiusM, steps int) int {
	if steps < 1 {
		steps = 1
	}
	r := radiusM / steps
	if r < 1500 {
		r = 1500
	}
	return r
}

// DistanceM returns the haversine distance between two coordinates in metres.
func DistanceM(a, b LatLng) float64 {
	const earthRadiusM = 6371000.0
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dlat := (b.Lat - a.Lat) * math.Pi / 180
	dlng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlng/2)*math.Sin(dlng/2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(h))
}
