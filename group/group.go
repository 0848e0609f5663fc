package group

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dewiweb/holophonix-animator-sub000/core"
	"github.com/dewiweb/holophonix-animator-sub000/model"
)

var (
	ErrInvalidScale = errors.New("scale factor must be finite")
	ErrInvalidSpeed = errors.New("speed factor must be finite and non-negative")
)

// Store is the subset of the track registry a group reads and writes.
// Both *kb.Registry and *kb.Tx satisfy it.
type Store interface {
	IDs() []string
	Lookup(id string) (core.Vector, core.MotionModel, bool)
	SetPosition(id string, pos core.Vector) bool
}

// Group is a pattern-derived set of tracks that move together under
// per-member relations. A Group is not safe for concurrent use; the
// engine serializes access to it.
type Group struct {
	id         string
	pattern    Pattern
	relations  map[string]Relation
	scale      float64
	speed      float64
	timeOffset time.Duration

	// members is recomputed wholesale by UpdateMembers.
	members []string

	parallelism int
}

// New creates a group with unit scale and speed. A nil pattern matches
// every track.
func New(id string, pattern Pattern) *Group {
	if pattern == nil {
		pattern = All()
	}
	return &Group{
		id:          id,
		pattern:     pattern,
		relations:   make(map[string]Relation),
		scale:       1,
		speed:       1,
		parallelism: 1,
	}
}

// FromState rebuilds a group from its serialized form.
func FromState(st model.GroupState) (*Group, error) {
	p, err := NewPattern(st.Pattern)
	if err != nil {
		return nil, fmt.Errorf("group %q: %w", st.ID, err)
	}
	g := New(st.ID, p)
	for _, trackID := range slices.Sorted(maps.Keys(st.Relations)) {
		r, err := NewRelation(st.Relations[trackID])
		if err != nil {
			return nil, fmt.Errorf("group %q relation for %q: %w", st.ID, trackID, err)
		}
		if err := g.SetRelation(trackID, r); err != nil {
			return nil, fmt.Errorf("group %q: %w", st.ID, err)
		}
	}
	if err := g.SetScale(st.Scale); err != nil {
		return nil, fmt.Errorf("group %q: %w", st.ID, err)
	}
	if err := g.SetSpeed(st.Speed); err != nil {
		return nil, fmt.Errorf("group %q: %w", st.ID, err)
	}
	g.SetTimeOffset(st.TimeOffset)
	return g, nil
}

// State returns the serializable form of the group.
func (g *Group) State() model.GroupState {
	st := model.GroupState{
		ID:         g.id,
		Pattern:    g.pattern.Spec(),
		Scale:      g.scale,
		Speed:      g.speed,
		TimeOffset: g.timeOffset,
	}
	if len(g.relations) > 0 {
		st.Relations = make(map[string]model.RelationSpec, len(g.relations))
		for id, r := range g.relations {
			st.Relations[id] = r.Spec()
		}
	}
	return st
}

func (g *Group) ID() string                { return g.id }
func (g *Group) Pattern() Pattern          { return g.pattern }
func (g *Group) Scale() float64            { return g.scale }
func (g *Group) Speed() float64            { return g.speed }
func (g *Group) TimeOffset() time.Duration { return g.timeOffset }

// Members returns the member IDs found by the last UpdateMembers, sorted.
func (g *Group) Members() []string { return slices.Clone(g.members) }

// Relation returns the relation assigned to trackID, or None.
func (g *Group) Relation(trackID string) Relation {
	if r, ok := g.relations[trackID]; ok {
		return r
	}
	return None{}
}

// SetRelation assigns a relation to a track. The track need not be a
// member yet. A nil relation clears the assignment.
func (g *Group) SetRelation(trackID string, r Relation) error {
	if trackID == "" {
		return fmt.Errorf("relation needs a track id: %w", ErrInvalidRelation)
	}
	if r == nil {
		delete(g.relations, trackID)
		return nil
	}
	if err := r.validate(); err != nil {
		return err
	}
	if f, ok := r.(Follow); ok && f.Target == trackID {
		return fmt.Errorf("track %q cannot follow itself: %w", trackID, ErrInvalidRelation)
	}
	g.relations[trackID] = r
	return nil
}

// ClearRelation resets trackID to None. It reports whether a relation was
// assigned.
func (g *Group) ClearRelation(trackID string) bool {
	_, ok := g.relations[trackID]
	delete(g.relations, trackID)
	return ok
}

// SetScale sets the factor applied to every resolved position.
func (g *Group) SetScale(f float64) error {
	if !finite(f) {
		return ErrInvalidScale
	}
	g.scale = f
	return nil
}

// SetSpeed sets the factor applied to the group's effective time.
func (g *Group) SetSpeed(f float64) error {
	if f < 0 || !finite(f) {
		return ErrInvalidSpeed
	}
	g.speed = f
	return nil
}

// SetTimeOffset shifts the group's clock.
func (g *Group) SetTimeOffset(d time.Duration) { g.timeOffset = d }

// SetParallelism bounds the goroutines used to evaluate member motions.
// Values below 1 mean sequential evaluation.
func (g *Group) SetParallelism(n int) {
	if n < 1 {
		n = 1
	}
	g.parallelism = n
}

// UpdateMembers replaces the member set with every store ID matching the
// pattern.
func (g *Group) UpdateMembers(store Store) {
	ids := store.IDs()
	members := make([]string, 0, len(ids))
	for _, id := range ids {
		if g.pattern.Match(id) {
			members = append(members, id)
		}
	}
	slices.Sort(members)
	g.members = members
}

// EffectiveTime maps the engine time onto the group's clock:
// (t + offset) × speed, saturating at the Duration range.
func (g *Group) EffectiveTime(t time.Duration) time.Duration {
	return core.ClampDuration((float64(t) + float64(g.timeOffset)) * g.speed)
}

// phaseShift is the time shift for a phase of deg degrees on a cycle.
func phaseShift(deg float64, cycle time.Duration) time.Duration {
	return core.ClampDuration(math.Mod(deg, 360) / 360 * float64(cycle))
}

func addClamped(a, b time.Duration) time.Duration {
	s := a + b
	switch {
	case b > 0 && s < a:
		return math.MaxInt64
	case b < 0 && s > a:
		return math.MinInt64
	}
	return s
}

type member struct {
	id     string
	base   core.Vector
	motion core.MotionModel
}

// UpdatePositions runs one tick of the group: it snapshots every
// member's base position, resolves each member's relation against that
// snapshot and only then writes the results, scaled, back to store.
// Members missing from store are skipped. It returns the number of
// positions written.
func (g *Group) UpdatePositions(store Store, t time.Duration) int {
	snap := g.snapshot(store, g.EffectiveTime(t))
	if len(snap) == 0 {
		return 0
	}

	f := newFormation(snap)
	resolved := make([]core.Vector, len(snap))
	for i, m := range snap {
		resolved[i] = g.resolve(m, f)
	}

	written := 0
	for i, m := range snap {
		if store.SetPosition(m.id, resolved[i].Scale(g.scale)) {
			written++
		}
	}
	return written
}

func (g *Group) snapshot(store Store, eff time.Duration) []member {
	snap := make([]member, 0, len(g.members))
	for _, id := range g.members {
		pos, m, ok := store.Lookup(id)
		if !ok {
			continue
		}
		snap = append(snap, member{id: id, base: pos, motion: m})
	}

	eval := func(i int) {
		m := &snap[i]
		if m.motion == nil {
			return
		}
		at := eff
		if ph, ok := g.relations[m.id].(Phase); ok && m.motion.IsCyclic() {
			at = addClamped(at, phaseShift(ph.Degrees, m.motion.CycleDuration()))
		}
		m.base = m.motion.Position(at)
	}

	if g.parallelism <= 1 || len(snap) < 2 {
		for i := range snap {
			eval(i)
		}
		return snap
	}

	// Each goroutine writes only its own slot.
	var eg errgroup.Group
	eg.SetLimit(g.parallelism)
	for i := range snap {
		eg.Go(func() error {
			eval(i)
			return nil
		})
	}
	_ = eg.Wait()
	return snap
}

func (g *Group) resolve(m member, f *formation) core.Vector {
	switch r := g.Relation(m.id).(type) {
	case Follow:
		if target, ok := f.position(r.Target); ok {
			return target
		}
		return m.base
	case Offset:
		return m.base.Add(r.Offset)
	case Rotate:
		center := f.centroid()
		if r.Center != nil {
			center = *r.Center
		}
		rotated, err := m.base.Sub(center).RotateAroundAxis(r.Axis, r.Angle)
		if err != nil {
			return m.base
		}
		return center.Add(rotated)
	case Isobarycentric:
		return f.isobarycentric(m, r)
	default:
		// None and Phase; Phase already acted on the snapshot time.
		return m.base
	}
}
