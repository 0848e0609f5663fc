package core

import (
	"errors"
	"fmt"

	"github.com/dewiweb/holophonix-animator-sub000/model"
)

// ErrProgressionUnsupported indicates easing or a cycle mode on a motion
// that has no finite duration to shape.
var ErrProgressionUnsupported = errors.New("easing and cycle apply only to linear, spiral and spherical_linear motions")

// NewMotionModel builds the motion model described by spec, recursing
// into composite children.
func NewMotionModel(spec model.MotionSpec) (MotionModel, error) {
	switch spec.Type {
	case model.MotionLinear, model.MotionSpiral, model.MotionSphericalLinear:
	default:
		if spec.Easing != "" || spec.Cycle != "" {
			return nil, fmt.Errorf("%q: %w", spec.Type, ErrProgressionUnsupported)
		}
	}

	switch spec.Type {
	case model.MotionLinear:
		opts, err := progressOptions(spec)
		if err != nil {
			return nil, err
		}
		return NewLinear(VectorFromCoordinates(spec.Start), VectorFromCoordinates(spec.End), spec.Duration, opts...)
	case model.MotionCircular:
		plane, err := ParsePlane(spec.Plane)
		if err != nil {
			return nil, err
		}
		return NewCircular(VectorFromCoordinates(spec.Center), spec.Radius, spec.Frequency, plane)
	case model.MotionElliptical:
		plane, err := ParsePlane(spec.Plane)
		if err != nil {
			return nil, err
		}
		return NewElliptical(VectorFromCoordinates(spec.Center), spec.MajorAxis, spec.MinorAxis, spec.Frequency, plane)
	case model.MotionSpiral:
		plane, err := ParsePlane(spec.Plane)
		if err != nil {
			return nil, err
		}
		opts, err := progressOptions(spec)
		if err != nil {
			return nil, err
		}
		return NewSpiral(VectorFromCoordinates(spec.Center), spec.StartRadius, spec.EndRadius, spec.Frequency, spec.Duration, plane, opts...)
	case model.MotionComposite:
		children := make([]MotionModel, 0, len(spec.Motions))
		for i, childSpec := range spec.Motions {
			child, err := NewMotionModel(childSpec)
			if err != nil {
				return nil, fmt.Errorf("composite motion child %d: %w", i, err)
			}
			children = append(children, child)
		}
		return NewComposite(children...), nil
	case model.MotionSphericalLinear:
		opts, err := progressOptions(spec)
		if err != nil {
			return nil, err
		}
		return NewSphericalLinear(spec.StartAED, spec.EndAED, spec.Duration, opts...)
	case model.MotionSphericalCircular:
		return NewSphericalCircular(spec.CenterAED, spec.Radius, spec.Frequency)
	default:
		return nil, fmt.Errorf("%q: %w", spec.Type, ErrUnknownMotion)
	}
}

func progressOptions(spec model.MotionSpec) ([]ProgressOption, error) {
	easing, err := ParseEasing(spec.Easing)
	if err != nil {
		return nil, err
	}
	cycle, err := ParseCycleMode(spec.Cycle)
	if err != nil {
		return nil, err
	}
	return []ProgressOption{WithEasing(easing), WithCycle(cycle)}, nil
}

func (m *Linear) Spec() model.MotionSpec {
	return model.MotionSpec{
		Type:     model.MotionLinear,
		Start:    m.Start.Coordinates(),
		End:      m.End.Coordinates(),
		Duration: m.Duration,
		Easing:   m.easingName(),
		Cycle:    m.cycleName(),
	}
}

func (m *Circular) Spec() model.MotionSpec {
	return model.MotionSpec{
		Type:      model.MotionCircular,
		Center:    m.Center.Coordinates(),
		Radius:    m.Radius,
		Frequency: m.Frequency,
		Plane:     m.Plane.String(),
	}
}

func (m *Elliptical) Spec() model.MotionSpec {
	return model.MotionSpec{
		Type:      model.MotionElliptical,
		Center:    m.Center.Coordinates(),
		MajorAxis: m.MajorAxis,
		MinorAxis: m.MinorAxis,
		Frequency: m.Frequency,
		Plane:     m.Plane.String(),
	}
}

func (m *Spiral) Spec() model.MotionSpec {
	return model.MotionSpec{
		Type:        model.MotionSpiral,
		Center:      m.Center.Coordinates(),
		StartRadius: m.StartRadius,
		EndRadius:   m.EndRadius,
		Frequency:   m.Frequency,
		Duration:    m.Duration,
		Plane:       m.Plane.String(),
		Easing:      m.easingName(),
		Cycle:       m.cycleName(),
	}
}

func (m *Composite) Spec() model.MotionSpec {
	spec := model.MotionSpec{Type: model.MotionComposite}
	for _, child := range m.Motions {
		spec.Motions = append(spec.Motions, child.Spec())
	}
	return spec
}

func (m *SphericalLinear) Spec() model.MotionSpec {
	return model.MotionSpec{
		Type:     model.MotionSphericalLinear,
		StartAED: m.Start,
		EndAED:   m.End,
		Duration: m.Duration,
		Easing:   m.easingName(),
		Cycle:    m.cycleName(),
	}
}

func (m *SphericalCircular) Spec() model.MotionSpec {
	return model.MotionSpec{
		Type:      model.MotionSphericalCircular,
		CenterAED: m.Center,
		Radius:    m.Span,
		Frequency: m.Frequency,
	}
}
