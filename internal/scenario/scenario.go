package scenario

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dewiweb/holophonix-animator-sub000/core"
	"github.com/dewiweb/holophonix-animator-sub000/group"
	"github.com/dewiweb/holophonix-animator-sub000/internal/sim"
	"github.com/dewiweb/holophonix-animator-sub000/model"
)

// Script is a declarative scene: tracks with optional motions, plus groups
// with per-track relations.
//
// YAML schema (v1):
//
//	version: 1
//	tracks:
//	  - id: "1"
//	    position: {x: 1, y: 0, z: 0}
//	    metadata: {name: violin}
//	    motion: {type: circular, radius: 2, frequency: 0.25, plane: XY}
//	groups:
//	  - id: ring
//	    pattern: {type: range, lo: 1, hi: 4}
//	    speed: 1.5
//	    time_offset: 250ms
//	    relations:
//	      "2": {type: isobarycentric, maintain_plane: true}
type Script struct {
	Version int                `yaml:"version"`
	Tracks  []model.TrackState `yaml:"tracks"`
	Groups  []GroupScript      `yaml:"groups"`
}

// GroupScript describes one group. Nil Scale and Speed leave the unit
// defaults in place.
type GroupScript struct {
	ID         string                        `yaml:"id"`
	Pattern    model.PatternSpec             `yaml:"pattern"`
	Relations  map[string]model.RelationSpec `yaml:"relations"`
	Scale      *float64                      `yaml:"scale"`
	Speed      *float64                      `yaml:"speed"`
	TimeOffset time.Duration                 `yaml:"time_offset"`
}

// Load reads and parses a YAML script from path.
func Load(path string) (Script, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Script{}, err
	}
	return Parse(b)
}

// Parse decodes a YAML script.
func Parse(b []byte) (Script, error) {
	var s Script
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Script{}, fmt.Errorf("parse scenario: %w", err)
	}
	return s, nil
}

type compiledTrack struct {
	state  model.TrackState
	motion core.MotionModel
}

type compiledGroup struct {
	script    GroupScript
	pattern   group.Pattern
	relations map[string]group.Relation
}

// Validate checks the whole script without touching any engine.
func (s Script) Validate() error {
	_, _, err := s.compile()
	return err
}

func (s Script) compile() ([]compiledTrack, []compiledGroup, error) {
	version := s.Version
	if version == 0 {
		version = 1
	}
	if version != 1 {
		return nil, nil, fmt.Errorf("unsupported scenario version %d", s.Version)
	}

	tracks := make([]compiledTrack, 0, len(s.Tracks))
	seen := make(map[string]struct{}, len(s.Tracks))
	for i, ts := range s.Tracks {
		if ts.ID == "" {
			return nil, nil, fmt.Errorf("tracks[%d].id is required", i)
		}
		if _, dup := seen[ts.ID]; dup {
			return nil, nil, fmt.Errorf("tracks[%d]: duplicate id %q", i, ts.ID)
		}
		seen[ts.ID] = struct{}{}
		if !core.VectorFromCoordinates(ts.Position).IsFinite() {
			return nil, nil, fmt.Errorf("tracks[%d] %q: position: %w", i, ts.ID, core.ErrInvalidVector)
		}
		ct := compiledTrack{state: ts}
		if ts.Motion != nil {
			m, err := core.NewMotionModel(*ts.Motion)
			if err != nil {
				return nil, nil, fmt.Errorf("tracks[%d] %q: motion: %w", i, ts.ID, err)
			}
			ct.motion = m
		}
		tracks = append(tracks, ct)
	}

	groups := make([]compiledGroup, 0, len(s.Groups))
	gseen := make(map[string]struct{}, len(s.Groups))
	for i, gs := range s.Groups {
		if gs.ID == "" {
			return nil, nil, fmt.Errorf("groups[%d].id is required", i)
		}
		if _, dup := gseen[gs.ID]; dup {
			return nil, nil, fmt.Errorf("groups[%d]: duplicate id %q", i, gs.ID)
		}
		gseen[gs.ID] = struct{}{}

		p, err := group.NewPattern(gs.Pattern)
		if err != nil {
			return nil, nil, fmt.Errorf("groups[%d] %q: pattern: %w", i, gs.ID, err)
		}
		cg := compiledGroup{script: gs, pattern: p, relations: make(map[string]group.Relation, len(gs.Relations))}
		for trackID, rs := range gs.Relations {
			r, err := group.NewRelation(rs)
			if err != nil {
				return nil, nil, fmt.Errorf("groups[%d] %q: relation for %q: %w", i, gs.ID, trackID, err)
			}
			cg.relations[trackID] = r
		}

		// Apply to a scratch group so scale, speed and relation rules are
		// checked exactly as the engine will check them.
		scratch := group.New(gs.ID, p)
		if err := configure(scratch, cg); err != nil {
			return nil, nil, fmt.Errorf("groups[%d] %q: %w", i, gs.ID, err)
		}
		groups = append(groups, cg)
	}
	return tracks, groups, nil
}

func configure(g *group.Group, cg compiledGroup) error {
	if cg.script.Scale != nil {
		if err := g.SetScale(*cg.script.Scale); err != nil {
			return err
		}
	}
	if cg.script.Speed != nil {
		if err := g.SetSpeed(*cg.script.Speed); err != nil {
			return err
		}
	}
	g.SetTimeOffset(cg.script.TimeOffset)
	for trackID, r := range cg.relations {
		if err := g.SetRelation(trackID, r); err != nil {
			return err
		}
	}
	return nil
}

// Apply validates the script and then creates its tracks and groups on e.
// Validation runs first, so an invalid script leaves e untouched; an
// error after that point comes from a clash with existing engine state.
func (s Script) Apply(e *sim.Engine) error {
	tracks, groups, err := s.compile()
	if err != nil {
		return err
	}

	for _, ct := range tracks {
		id := ct.state.ID
		if !e.AddTrack(id) {
			return fmt.Errorf("track %q already exists", id)
		}
		e.SetTrackPosition(id, core.VectorFromCoordinates(ct.state.Position))
		for k, v := range ct.state.Metadata {
			e.SetTrackMetadata(id, k, v)
		}
		if ct.motion != nil {
			e.BindTrackMotion(id, ct.motion)
		}
	}

	for _, cg := range groups {
		id := cg.script.ID
		if err := e.CreateGroup(id, cg.pattern); err != nil {
			return err
		}
		if cg.script.Scale != nil {
			if err := e.SetGroupScale(id, *cg.script.Scale); err != nil {
				return err
			}
		}
		if cg.script.Speed != nil {
			if err := e.SetGroupSpeed(id, *cg.script.Speed); err != nil {
				return err
			}
		}
		if err := e.SetGroupTimeOffset(id, cg.script.TimeOffset); err != nil {
			return err
		}
		for trackID, r := range cg.relations {
			if err := e.SetGroupRelation(id, trackID, r); err != nil {
				return err
			}
		}
	}
	return nil
}
