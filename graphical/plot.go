package graphical

import (
	"math"
	"sort"

	"q.log/lpsolve/model"
)

// Polygon orders vertices counter-clockwise around their centroid so they
// can be drawn as the boundary of the feasible region. Fewer than three
// vertices are returned unchanged.
func Polygon(vertices []model.Vertex) []model.Vertex {
	out := append([]model.Vertex(nil), vertices...)
	if len(out) < 3 {
		return out
	}
	var cx, cy float64
	for _, v := range out {
		cx += v.X1
		cy += v.X2
	}
	cx /= float64(len(out))
	cy /= float64(len(out))
	sort.SliceStable(out, func(i, j int) bool {
		return math.Atan2(out[i].X2-cy, out[i].X1-cx) < math.Atan2(out[j].X2-cy, out[j].X1-cx)
	})
	return out
}

// PlotLimit is the side of the square [0, limit]² a plot of the vertices
// should cover.
func PlotLimit(vertices []model.Vertex) float64 {
	limit := 10.0
	for _, v := range vertices {
		limit = math.Max(limit, 1.3*math.Max(v.X1, v.X2))
	}
	return limit
}

// Segment is the visible part of one constraint's boundary line.
type Segment struct {
	Row      int
	Relation model.Relation
	From, To [2]float64
}

// Boundaries clips every constraint line to the box [0, limit]². Lines that
// miss the box, and rows with all-zero coefficients, are left out.
func Boundaries(p *model.Problem, limit float64) []Segment {
	var out []Segment
	for _, l := range lines(p)[2:] {
		pts := clip(l, limit)
		if len(pts) < 2 {
			continue
		}
		out = append(out, Segment{
			Row:      l.index,
			Relation: p.Relation(l.index),
			From:     pts[0],
			To:       pts[len(pts)-1],
		})
	}
	return out
}

func clip(l line, limit float64) [][2]float64 {
	const eps = 1e-9
	edges := []line{
		{a: [2]float64{1, 0}, c: 0},
		{a: [2]float64{1, 0}, c: limit},
		{a: [2]float64{0, 1}, c: 0},
		{a: [2]float64{0, 1}, c: limit},
	}
	var pts [][2]float64
	for _, e := range edges {
		x, ok := intersect(l, e)
		if !ok {
			continue
		}
		if x[0] < -eps || x[0] > limit+eps || x[1] < -eps || x[1] > limit+eps {
			continue
		}
		dup := false
		for _, q := range pts {
			if math.Abs(q[0]-x[0]) < dupTol && math.Abs(q[1]-x[1]) < dupTol {
				dup = true
				break
			}
		}
		if !dup {
			pts = append(pts, x)
		}
	}
	sort.Slice(pts, func(i, j int) bool {
		if pts[i][0] != pts[j][0] {
			return pts[i][0] < pts[j][0]
		}
		return pts[i][1] < pts[j][1]
	})
	return pts
}
