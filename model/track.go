package model

import "time"

// Coordinates is a Cartesian position in the renderer's frame.
type Coordinates struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Spherical is an (azimuth, elevation, distance) triple. Angles are radians.
type Spherical struct {
	Azimuth   float64 `json:"azimuth" yaml:"azimuth"`
	Elevation float64 `json:"elevation" yaml:"elevation"`
	Distance  float64 `json:"distance" yaml:"distance"`
}

// MotionType discriminates the variants of MotionSpec.
type MotionType string

const (
	MotionLinear            MotionType = "linear"
	MotionCircular          MotionType = "circular"
	MotionElliptical        MotionType = "elliptical"
	MotionSpiral            MotionType = "spiral"
	MotionComposite         MotionType = "composite"
	MotionSphericalLinear   MotionType = "spherical_linear"
	MotionSphericalCircular MotionType = "spherical_circular"
)

// MotionSpec is the serialized parameter set of a motion model. Only the
// fields relevant to Type are meaningful.
type MotionSpec struct {
	Type MotionType `json:"type" yaml:"type"`

	Start    Coordinates   `json:"start,omitempty" yaml:"start,omitempty"`
	End      Coordinates   `json:"end,omitempty" yaml:"end,omitempty"`
	Center   Coordinates   `json:"center,omitempty" yaml:"center,omitempty"`
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`

	Radius      float64 `json:"radius,omitempty" yaml:"radius,omitempty"`
	MajorAxis   float64 `json:"major_axis,omitempty" yaml:"major_axis,omitempty"`
	MinorAxis   float64 `json:"minor_axis,omitempty" yaml:"minor_axis,omitempty"`
	StartRadius float64 `json:"start_radius,omitempty" yaml:"start_radius,omitempty"`
	EndRadius   float64 `json:"end_radius,omitempty" yaml:"end_radius,omitempty"`
	Frequency   float64 `json:"frequency,omitempty" yaml:"frequency,omitempty"`
	Plane       string  `json:"plane,omitempty" yaml:"plane,omitempty"` // XY, XZ or YZ

	// Spherical variants.
	StartAED  Spherical `json:"start_aed,omitempty" yaml:"start_aed,omitempty"`
	EndAED    Spherical `json:"end_aed,omitempty" yaml:"end_aed,omitempty"`
	CenterAED Spherical `json:"center_aed,omitempty" yaml:"center_aed,omitempty"`

	Motions []MotionSpec `json:"motions,omitempty" yaml:"motions,omitempty"`

	// Easing and Cycle shape the progress of linear, spiral and
	// spherical_linear motions. Empty means linear one_shot.
	Easing string `json:"easing,omitempty" yaml:"easing,omitempty"`
	Cycle  string `json:"cycle,omitempty" yaml:"cycle,omitempty"`
}

// TrackState is the serializable form of a track.
type TrackState struct {
	ID       string            `json:"id" yaml:"id"`
	Position Coordinates       `json:"position" yaml:"position"`
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Motion   *MotionSpec       `json:"motion,omitempty" yaml:"motion,omitempty"`
}
