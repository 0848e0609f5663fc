package kb

import (
	"maps"

	"github.com/dewiweb/holophonix-animator-sub000/core"
	"github.com/dewiweb/holophonix-animator-sub000/model"
)

// Track is a positionable sound source. Tracks live inside a Registry;
// values handed out by the Registry are copies.
type Track struct {
	ID       string
	Position core.Vector
	Metadata map[string]string
	// Motion is nil when the track is positioned directly.
	Motion core.MotionModel
}

func (t *Track) clone() Track {
	c := *t
	c.Metadata = maps.Clone(t.Metadata)
	return c
}

// State converts the track to its serializable form.
func (t Track) State() model.TrackState {
	st := model.TrackState{
		ID:       t.ID,
		Position: t.Position.Coordinates(),
		Metadata: maps.Clone(t.Metadata),
	}
	if t.Motion != nil {
		spec := t.Motion.Spec()
		st.Motion = &spec
	}
	return st
}

// TrackPosition pairs a track ID with a position.
type TrackPosition struct {
	ID       string      `json:"id"`
	Position core.Vector `json:"position"`
}
