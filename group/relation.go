package group

import (
	"errors"
	"fmt"
	"math"

	"github.com/dewiweb/holophonix-animator-sub000/core"
	"github.com/dewiweb/holophonix-animator-sub000/model"
)

// ErrInvalidRelation is returned when relation parameters are out of range.
var ErrInvalidRelation = errors.New("invalid group relation")

// Relation describes how a member's position is derived from the tick's
// snapshot of member positions. The set of relations is closed.
type Relation interface {
	Spec() model.RelationSpec
	validate() error
}

// None keeps the member at its base position.
type None struct{}

// Follow places the member at the target member's snapshot position.
type Follow struct {
	Target string
}

// Offset displaces the member's base position by a fixed vector.
type Offset struct {
	Offset core.Vector
}

// Rotate turns the member's base position by Angle radians around Axis
// through Center. A nil Center means the snapshot centroid.
type Rotate struct {
	Angle  float64
	Axis   core.Vector
	Center *core.Vector
}

// Phase shifts the time argument of the member's cyclic motion by
// Degrees of its cycle.
type Phase struct {
	Degrees float64
}

// Isobarycentric keeps every member at the same distance from the
// snapshot centroid, optionally within the members' common plane.
type Isobarycentric struct {
	// ReferenceDistance fixes the distance; nil uses the mean member
	// distance from the centroid.
	ReferenceDistance *float64
	MaintainPlane     bool
}

func (None) validate() error { return nil }

func (r Follow) validate() error {
	if r.Target == "" {
		return fmt.Errorf("follow needs a target: %w", ErrInvalidRelation)
	}
	return nil
}

func (r Offset) validate() error {
	if !r.Offset.IsFinite() {
		return fmt.Errorf("offset must be finite: %w", ErrInvalidRelation)
	}
	return nil
}

func (r Rotate) validate() error {
	if !finite(r.Angle) {
		return fmt.Errorf("rotate angle must be finite: %w", ErrInvalidRelation)
	}
	if !r.Axis.IsFinite() || r.Axis.IsZero() {
		return fmt.Errorf("rotate axis must be finite and non-zero: %w", ErrInvalidRelation)
	}
	if r.Center != nil && !r.Center.IsFinite() {
		return fmt.Errorf("rotate center must be finite: %w", ErrInvalidRelation)
	}
	return nil
}

func (r Phase) validate() error {
	if !finite(r.Degrees) {
		return fmt.Errorf("phase must be finite: %w", ErrInvalidRelation)
	}
	return nil
}

func (r Isobarycentric) validate() error {
	if d := r.ReferenceDistance; d != nil && (*d < 0 || !finite(*d)) {
		return fmt.Errorf("reference distance must be finite and non-negative: %w", ErrInvalidRelation)
	}
	return nil
}

func (None) Spec() model.RelationSpec { return model.RelationSpec{Type: model.RelationNone} }

func (r Follow) Spec() model.RelationSpec {
	return model.RelationSpec{Type: model.RelationFollow, Target: r.Target}
}

func (r Offset) Spec() model.RelationSpec {
	return model.RelationSpec{Type: model.RelationOffset, Offset: r.Offset.Coordinates()}
}

func (r Rotate) Spec() model.RelationSpec {
	spec := model.RelationSpec{Type: model.RelationRotate, Angle: r.Angle, Axis: r.Axis.Coordinates()}
	if r.Center != nil {
		c := r.Center.Coordinates()
		spec.Center = &c
	}
	return spec
}

func (r Phase) Spec() model.RelationSpec {
	return model.RelationSpec{Type: model.RelationPhase, Degrees: r.Degrees}
}

func (r Isobarycentric) Spec() model.RelationSpec {
	spec := model.RelationSpec{Type: model.RelationIsobarycentric, MaintainPlane: r.MaintainPlane}
	if r.ReferenceDistance != nil {
		d := *r.ReferenceDistance
		spec.ReferenceDistance = &d
	}
	return spec
}

// NewRelation builds and validates a relation from its serialized form.
func NewRelation(spec model.RelationSpec) (Relation, error) {
	var r Relation
	switch spec.Type {
	case model.RelationNone, "":
		r = None{}
	case model.RelationFollow:
		r = Follow{Target: spec.Target}
	case model.RelationOffset:
		r = Offset{Offset: core.VectorFromCoordinates(spec.Offset)}
	case model.RelationRotate:
		rot := Rotate{Angle: spec.Angle, Axis: core.VectorFromCoordinates(spec.Axis)}
		if spec.Center != nil {
			c := core.VectorFromCoordinates(*spec.Center)
			rot.Center = &c
		}
		r = rot
	case model.RelationPhase:
		r = Phase{Degrees: spec.Degrees}
	case model.RelationIsobarycentric:
		iso := Isobarycentric{MaintainPlane: spec.MaintainPlane}
		if spec.ReferenceDistance != nil {
			d := *spec.ReferenceDistance
			iso.ReferenceDistance = &d
		}
		r = iso
	default:
		return nil, fmt.Errorf("unknown relation type %q: %w", spec.Type, ErrInvalidRelation)
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
