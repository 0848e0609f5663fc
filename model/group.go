package model

import "time"

// PatternType discriminates the variants of PatternSpec.
type PatternType string

const (
	PatternAll      PatternType = "all"
	PatternPrefix   PatternType = "prefix"
	PatternSuffix   PatternType = "suffix"
	PatternContains PatternType = "contains"
	PatternRegex    PatternType = "regex"
	PatternList     PatternType = "list"
	PatternRange    PatternType = "range"
	PatternUnion    PatternType = "union"
)

// PatternSpec describes how a group derives its members from track IDs.
type PatternSpec struct {
	Type     PatternType   `json:"type" yaml:"type"`
	Value    string        `json:"value,omitempty" yaml:"value,omitempty"`
	IDs      []string      `json:"ids,omitempty" yaml:"ids,omitempty"`
	Lo       int           `json:"lo,omitempty" yaml:"lo,omitempty"`
	Hi       int           `json:"hi,omitempty" yaml:"hi,omitempty"`
	Patterns []PatternSpec `json:"patterns,omitempty" yaml:"patterns,omitempty"`
}

// RelationType discriminates the variants of RelationSpec.
type RelationType string

const (
	RelationNone           RelationType = "none"
	RelationFollow         RelationType = "follow"
	RelationOffset         RelationType = "offset"
	RelationRotate         RelationType = "rotate"
	RelationPhase          RelationType = "phase"
	RelationIsobarycentric RelationType = "isobarycentric"
)

// RelationSpec describes how one group member is positioned relative to
// the other members.
type RelationSpec struct {
	Type RelationType `json:"type" yaml:"type"`

	Target string      `json:"target,omitempty" yaml:"target,omitempty"`
	Offset Coordinates `json:"offset,omitempty" yaml:"offset,omitempty"`

	Angle  float64      `json:"angle,omitempty" yaml:"angle,omitempty"` // radians
	Axis   Coordinates  `json:"axis,omitempty" yaml:"axis,omitempty"`
	Center *Coordinates `json:"center,omitempty" yaml:"center,omitempty"`

	Degrees float64 `json:"degrees,omitempty" yaml:"degrees,omitempty"`

	ReferenceDistance *float64 `json:"reference_distance,omitempty" yaml:"reference_distance,omitempty"`
	MaintainPlane     bool     `json:"maintain_plane,omitempty" yaml:"maintain_plane,omitempty"`
}

// GroupState is the serializable form of a group. Membership is derived
// from Pattern and therefore not stored.
type GroupState struct {
	ID         string                  `json:"id" yaml:"id"`
	Pattern    PatternSpec             `json:"pattern" yaml:"pattern"`
	Relations  map[string]RelationSpec `json:"relations,omitempty" yaml:"relations,omitempty"`
	Scale      float64                 `json:"scale" yaml:"scale"`
	Speed      float64                 `json:"speed" yaml:"speed"`
	TimeOffset time.Duration           `json:"time_offset" yaml:"time_offset"`
}

// Snapshot captures everything needed to reconstruct an engine: all
// tracks and all groups, plus the time of the last tick.
type Snapshot struct {
	Time   time.Duration `json:"time" yaml:"time"`
	Tracks []TrackState  `json:"tracks" yaml:"tracks"`
	Groups []GroupState  `json:"groups" yaml:"groups"`
}
