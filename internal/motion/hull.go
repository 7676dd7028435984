package motion

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"
)

// diameter returns the largest distance between any two sample positions.
// The farthest pair always lies on the convex hull, which stays small for
// jittering positions of a resting animal.
func diameter(samples []Sample) float64 {
	hull := convexHull(samples)
	best := 0.0
	for i := range hull {
		for j := i + 1; j < len(hull); j++ {
			best = math.Max(best, r2.Norm2(r2.Sub(hull[i], hull[j])))
		}
	}
	return math.Sqrt(best)
}

// convexHull returns the hull vertices of the sample positions using
// Andrew's monotone chain. Collinear points are dropped.
func convexHull(samples []Sample) []r2.Vec {
	pts := make([]r2.Vec, len(samples))
	for i, s := range samples {
		pts[i] = s.Pos
	}
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})
	if len(pts) < 3 {
		return pts
	}

	turn := func(o, a, b r2.Vec) float64 {
		return r2.Cross(r2.Sub(a, o), r2.Sub(b, o))
	}
	hull := make([]r2.Vec, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && turn(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && turn(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}
