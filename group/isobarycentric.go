package group

import (
	"math"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
	"gonum.org/v1/gonum/stat"

	"github.com/dewiweb/holophonix-animator-sub000/core"
)

// epsilon is the magnitude below which a vector is treated as zero.
const epsilon = 1e-10

// formation holds the per-tick snapshot shared by every member's relation
// and lazily derives the aggregate quantities relations need from it.
type formation struct {
	byID map[string]core.Vector
	// ordered is the snapshot sorted by track ID, independent of member
	// iteration order.
	ordered []member

	center       *core.Vector
	meanDistance *float64
	normal       *core.Vector
}

func newFormation(snap []member) *formation {
	f := &formation{
		byID:    make(map[string]core.Vector, len(snap)),
		ordered: slices.Clone(snap),
	}
	for _, m := range snap {
		f.byID[m.id] = m.base
	}
	slices.SortFunc(f.ordered, func(a, b member) int { return strings.Compare(a.id, b.id) })
	return f
}

func (f *formation) position(id string) (core.Vector, bool) {
	v, ok := f.byID[id]
	return v, ok
}

func (f *formation) centroid() core.Vector {
	if f.center == nil {
		pts := make([]core.Vector, len(f.ordered))
		for i, m := range f.ordered {
			pts[i] = m.base
		}
		c := core.Centroid(pts)
		f.center = &c
	}
	return *f.center
}

func (f *formation) averageDistance() float64 {
	if f.meanDistance == nil {
		c := f.centroid()
		dists := make([]float64, len(f.ordered))
		for i, m := range f.ordered {
			dists[i] = m.base.Distance(c)
		}
		d := stat.Mean(dists, nil)
		f.meanDistance = &d
	}
	return *f.meanDistance
}

// planeNormal sums cross(p_i − c, p_{i+1} − c) around the cyclic sequence
// of snapshot positions. The result may be (near) zero for collinear or
// degenerate formations.
func (f *formation) planeNormal() core.Vector {
	if f.normal == nil {
		c := f.centroid()
		var n core.Vector
		for i, m := range f.ordered {
			next := f.ordered[(i+1)%len(f.ordered)]
			n = n.Add(m.base.Sub(c).Cross(next.base.Sub(c)))
		}
		f.normal = &n
	}
	return *f.normal
}

func (f *formation) isobarycentric(m member, r Isobarycentric) core.Vector {
	center := f.centroid()
	target := f.averageDistance()
	if r.ReferenceDistance != nil {
		target = *r.ReferenceDistance
	}

	v := m.base.Sub(center)
	var dir core.Vector
	if v.Magnitude() < epsilon {
		dir = fallbackDirection(m.id)
	} else {
		dir = v.Div(v.Magnitude())
	}

	if r.MaintainPlane {
		n := f.planeNormal()
		if n.Magnitude() > epsilon {
			unit := n.Div(n.Magnitude())
			projected := dir.Sub(unit.Scale(dir.Dot(unit)))
			if projected.Magnitude() > epsilon {
				dir = projected.Div(projected.Magnitude())
			}
		}
	}

	return center.Add(dir.Scale(target))
}

// fallbackDirection derives a unit vector from the track ID so that a
// member sitting exactly on the centroid is pushed out the same way on
// every run.
func fallbackDirection(id string) core.Vector {
	h := xxhash.Sum64String(id)
	u := float64(h>>32) / (1 << 32)
	w := float64(h&0xffffffff) / (1 << 32)

	z := 2*u - 1
	phi := 2 * math.Pi * w
	r := math.Sqrt(1 - z*z)
	return core.NewVector(r*math.Cos(phi), r*math.Sin(phi), z)
}
