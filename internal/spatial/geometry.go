package spatial

import (
	"math"
)

// Centroid calculates the geographic centroid of a set of points
func Centroid(points []Point) Point {
	if len(points) == 0 {
		return Point{}
	}

	var sumLat, sumLon float64
	for _, p := range points {
		sumLat += p.Lat
		sumLon += p.Lon
	}

	return Point{
		Lat: sumLat / float64(len(points)),
		Lon: sumLon / float64(len(points)),
	}
}

// RadiusOfGyration calculates the radius of gyration for a set of points in
// meters. This measures the spatial dispersion around the centroid; low values
// indicate a clustered (likely stationary) point set.
func RadiusOfGyration(points []Point) float64 {
	if len(points) == 0 {
		return 0
	}

	center := Centroid(points)

	var sumSquaredDist float64
	for _, p := range points {
		dist := Haversine(center.Lat, center.Lon, p.Lat, p.Lon)
		sumSquaredDist += dist * dist
	}

	return math.Sqrt(sumSquaredDist / float64(len(points)))
}

// MaxDistanceFromStart returns the largest distance in meters from the first
// point to any later point in the sequence
func MaxDistanceFromStart(points []Point) float64 {
	if len(points) < 2 {
		return 0
	}

	start := points[0]
	maxDist := 0.0
	for _, p := range points[1:] {
		dist := Haversine(start.Lat, start.Lon, p.Lat, p.Lon)
		if dist > maxDist {
			maxDist = dist
		}
	}

	return maxDist
}

// RouteDistance calculates the total length of a route (sequence of points) in
// meters as the sum of consecutive pairwise distances
func RouteDistance(points []Point) float64 {
	if len(points) < 2 {
		return 0
	}

	var totalDist float64
	for i := 1; i < len(points); i++ {
		totalDist += Haversine(points[i-1].Lat, points[i-1].Lon, points[i].Lat, points[i].Lon)
	}

	return totalDist
}

// BoundingBox calculates the bounding box of a set of points
// Returns (minLat, minLon, maxLat, maxLon)
func BoundingBox(points []Point) (float64, float64, float64, float64) {
	if len(points) == 0 {
		return 0, 0, 0, 0
	}

	minLat, maxLat := points[0].Lat, points[0].Lat
	minLon, maxLon := points[0].Lon, points[0].Lon

	for _, p := range points[1:] {
		if p.Lat < minLat {
			minLat = p.Lat
		}
		if p.Lat > maxLat {
			maxLat = p.Lat
		}
		if p.Lon < minLon {
			minLon = p.Lon
		}
		if p.Lon > maxLon {
			maxLon = p.Lon
		}
	}

	return minLat, minLon, maxLat, maxLon
}

// Simplify reduces a route using the Ramer-Douglas-Peucker algorithm.
// toleranceDeg is the maximum perpendicular deviation, in degrees, an interior
// point may have from the chord before it must be kept. The result is always a
// subsequence of the input and retains the first and last points exactly; a
// tolerance of zero returns the input unchanged.
func Simplify(points []Point, toleranceDeg float64) []Point {
	if toleranceDeg <= 0 || len(points) < 3 {
		out := make([]Point, len(points))
		copy(out, points)
		return out
	}

	// Find the point with maximum deviation from the chord
	maxDist := 0.0
	maxIndex := 0

	for i := 1; i < len(points)-1; i++ {
		dist := perpendicularDeviation(points[i], points[0], points[len(points)-1])
		if dist > maxDist {
			maxDist = dist
			maxIndex = i
		}
	}

	// If max deviation is greater than tolerance, recursively simplify
	if maxDist > toleranceDeg {
		left := Simplify(points[:maxIndex+1], toleranceDeg)
		right := Simplify(points[maxIndex:], toleranceDeg)

		// Combine results (remove duplicate middle point)
		result := make([]Point, 0, len(left)+len(right)-1)
		result = append(result, left...)
		result = append(result, right[1:]...)
		return result
	}

	// All interior points deviate less than the tolerance
	return []Point{points[0], points[len(points)-1]}
}

// perpendicularDeviation calculates the perpendicular deviation of a point
// from a chord, in degrees
func perpendicularDeviation(point, lineStart, lineEnd Point) float64 {
	x0, y0 := point.Lat, point.Lon
	x1, y1 := lineStart.Lat, lineStart.Lon
	x2, y2 := lineEnd.Lat, lineEnd.Lon

	num := math.Abs((y2-y1)*x0 - (x2-x1)*y0 + x2*y1 - y2*x1)
	den := math.Sqrt((y2-y1)*(y2-y1) + (x2-x1)*(x2-x1))

	if den == 0 {
		// Degenerate chord, fall back to point distance in degrees
		return math.Hypot(x0-x1, y0-y1)
	}

	return num / den
}
