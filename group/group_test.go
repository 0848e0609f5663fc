package group

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dewiweb/holophonix-animator-sub000/core"
	"github.com/dewiweb/holophonix-animator-sub000/kb"
	"github.com/dewiweb/holophonix-animator-sub000/model"
)

const tol = 1e-9

func newStore(t *testing.T, positions map[string]core.Vector) *kb.Registry {
	t.Helper()
	reg := kb.NewRegistry()
	for id, p := range positions {
		require.True(t, reg.Add(id))
		require.True(t, reg.SetPosition(id, p))
	}
	return reg
}

func position(t *testing.T, reg *kb.Registry, id string) core.Vector {
	t.Helper()
	tr, ok := reg.Get(id)
	require.True(t, ok, "track %q missing", id)
	return tr.Position
}

func assertVector(t *testing.T, want, got core.Vector) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, tol, "x")
	assert.InDelta(t, want.Y, got.Y, tol, "y")
	assert.InDelta(t, want.Z, got.Z, tol, "z")
}

func ptr[T any](v T) *T { return &v }

func TestUpdateMembers_ReplacesWholesale(t *testing.T) {
	t.Parallel()

	reg := newStore(t, map[string]core.Vector{"track1": {}, "track2": {}, "other": {}})
	p, err := Prefix("track")
	require.NoError(t, err)
	g := New("g", p)

	g.UpdateMembers(reg)
	assert.Equal(t, []string{"track1", "track2"}, g.Members())

	reg.Remove("track1")
	reg.Add("track9")
	g.UpdateMembers(reg)
	assert.Equal(t, []string{"track2", "track9"}, g.Members())
}

func TestUpdatePositions_EmptyGroup(t *testing.T) {
	t.Parallel()

	reg := newStore(t, map[string]core.Vector{"a": core.NewVector(1, 2, 3)})
	p, err := List("nobody")
	require.NoError(t, err)
	g := New("g", p)
	g.UpdateMembers(reg)

	assert.Equal(t, 0, g.UpdatePositions(reg, time.Second))
	assertVector(t, core.NewVector(1, 2, 3), position(t, reg, "a"))
}

func TestUpdatePositions_SkipsVanishedMembers(t *testing.T) {
	t.Parallel()

	reg := newStore(t, map[string]core.Vector{"a": core.NewVector(1, 0, 0), "b": core.NewVector(2, 0, 0)})
	g := New("g", All())
	g.UpdateMembers(reg)
	reg.Remove("a")

	assert.Equal(t, 1, g.UpdatePositions(reg, 0))
}

func TestFollow(t *testing.T) {
	t.Parallel()

	reg := newStore(t, map[string]core.Vector{
		"lead":   core.NewVector(1, 2, 3),
		"second": core.NewVector(9, 9, 9),
		"lost":   core.NewVector(5, 5, 5),
	})
	g := New("g", All())
	require.NoError(t, g.SetRelation("lead", Offset{Offset: core.NewVector(10, 0, 0)}))
	require.NoError(t, g.SetRelation("second", Follow{Target: "lead"}))
	require.NoError(t, g.SetRelation("lost", Follow{Target: "ghost"}))
	g.UpdateMembers(reg)
	g.UpdatePositions(reg, 0)

	// The follower sees the leader's snapshot position, not its offset result.
	assertVector(t, core.NewVector(1, 2, 3), position(t, reg, "second"))
	assertVector(t, core.NewVector(11, 2, 3), position(t, reg, "lead"))
	assertVector(t, core.NewVector(5, 5, 5), position(t, reg, "lost"))
}

func TestRotateAboutCentroid(t *testing.T) {
	t.Parallel()

	reg := newStore(t, map[string]core.Vector{
		"a": core.NewVector(3, 2, 0),
		"b": core.NewVector(1, 2, 0),
	})
	g := New("g", All())
	require.NoError(t, g.SetRelation("a", Rotate{Angle: math.Pi / 2, Axis: core.NewVector(0, 0, 1)}))
	center := core.NewVector(0, 0, 0)
	require.NoError(t, g.SetRelation("b", Rotate{Angle: math.Pi, Axis: core.NewVector(0, 0, 1), Center: &center}))
	g.UpdateMembers(reg)
	g.UpdatePositions(reg, 0)

	// Centroid is (2,2,0).
	assertVector(t, core.NewVector(2, 3, 0), position(t, reg, "a"))
	assertVector(t, core.NewVector(-1, -2, 0), position(t, reg, "b"))
}

func TestPhaseShiftsCyclicMotion(t *testing.T) {
	t.Parallel()

	reg := newStore(t, map[string]core.Vector{"a": {}, "b": {}, "lin": {}})
	circ, err := core.NewCircular(core.Vector{}, 1, 1, core.PlaneXY)
	require.NoError(t, err)
	lin, err := core.NewLinear(core.Vector{}, core.NewVector(4, 0, 0), 4*time.Second)
	require.NoError(t, err)
	reg.BindMotion("a", circ)
	reg.BindMotion("b", circ)
	reg.BindMotion("lin", lin)

	g := New("g", All())
	require.NoError(t, g.SetRelation("b", Phase{Degrees: 90}))
	require.NoError(t, g.SetRelation("lin", Phase{Degrees: 90}))
	g.UpdateMembers(reg)
	g.UpdatePositions(reg, 0)

	assertVector(t, core.NewVector(1, 0, 0), position(t, reg, "a"))
	assertVector(t, core.NewVector(0, 1, 0), position(t, reg, "b"))
	assertVector(t, core.NewVector(0, 0, 0), position(t, reg, "lin"))
}

func TestScaleSpeedAndTimeOffset(t *testing.T) {
	t.Parallel()

	reg := newStore(t, map[string]core.Vector{"a": {}})
	lin, err := core.NewLinear(core.Vector{}, core.NewVector(10, 0, 0), 10*time.Second)
	require.NoError(t, err)
	reg.BindMotion("a", lin)

	g := New("g", All())
	require.NoError(t, g.SetSpeed(2))
	require.NoError(t, g.SetScale(0.5))
	g.SetTimeOffset(time.Second)
	g.UpdateMembers(reg)

	assert.Equal(t, 6*time.Second, g.EffectiveTime(2*time.Second))
	assert.Equal(t, 1, g.UpdatePositions(reg, 2*time.Second))
	assertVector(t, core.NewVector(3, 0, 0), position(t, reg, "a"))
}

func TestPhaseAppliesToLoopingLinear(t *testing.T) {
	t.Parallel()

	reg := newStore(t, map[string]core.Vector{"a": {}, "b": {}})
	lin, err := core.NewLinear(core.Vector{}, core.NewVector(4, 0, 0), 4*time.Second, core.WithCycle(core.CycleLoop))
	require.NoError(t, err)
	reg.BindMotion("a", lin)
	reg.BindMotion("b", lin)

	g := New("g", All())
	require.NoError(t, g.SetRelation("b", Phase{Degrees: 90}))
	g.UpdateMembers(reg)
	g.UpdatePositions(reg, 3*time.Second)

	assertVector(t, core.NewVector(3, 0, 0), position(t, reg, "a"))
	// A quarter cycle later the loop has wrapped back to its start.
	assertVector(t, core.NewVector(0, 0, 0), position(t, reg, "b"))
}

func TestTimeConversionsSaturate(t *testing.T) {
	t.Parallel()

	g := New("g", All())
	require.NoError(t, g.SetSpeed(1e300))
	assert.Equal(t, time.Duration(math.MaxInt64), g.EffectiveTime(time.Second))
	assert.Equal(t, time.Duration(0), g.EffectiveTime(0))

	g.SetTimeOffset(math.MaxInt64)
	require.NoError(t, g.SetSpeed(1))
	assert.Equal(t, time.Duration(math.MaxInt64), g.EffectiveTime(math.MaxInt64))

	assert.Equal(t, 90*time.Second, phaseShift(360*1e6+90, 360*time.Second))
	assert.Equal(t, -90*time.Second, phaseShift(-90, 360*time.Second))
	assert.Equal(t, time.Duration(math.MaxInt64), addClamped(math.MaxInt64-1, time.Hour))
	assert.Equal(t, time.Duration(math.MinInt64), addClamped(math.MinInt64+1, -time.Hour))

	reg := newStore(t, map[string]core.Vector{"a": {}})
	circ, err := core.NewCircular(core.Vector{}, 1, 1, core.PlaneXY)
	require.NoError(t, err)
	reg.BindMotion("a", circ)
	big := New("big", All())
	require.NoError(t, big.SetRelation("a", Phase{Degrees: 1e300}))
	big.UpdateMembers(reg)
	big.UpdatePositions(reg, time.Second)
	assert.True(t, position(t, reg, "a").IsFinite())
}

func TestIsobarycentric_TriangleEquidistant(t *testing.T) {
	t.Parallel()

	h := math.Sqrt(3) / 2
	offset := core.NewVector(2, -1, 4)
	reg := newStore(t, map[string]core.Vector{
		"track1": core.NewVector(1, 0, 0).Add(offset),
		"track2": core.NewVector(-0.5, h, 0).Add(offset),
		"track3": core.NewVector(-0.5, -h, 0).Add(offset),
	})
	g := New("g", All())
	for _, id := range []string{"track1", "track2", "track3"} {
		require.NoError(t, g.SetRelation(id, Isobarycentric{ReferenceDistance: ptr(2.0), MaintainPlane: true}))
	}
	g.UpdateMembers(reg)
	require.Equal(t, 3, g.UpdatePositions(reg, 0))

	pts := []core.Vector{position(t, reg, "track1"), position(t, reg, "track2"), position(t, reg, "track3")}
	c := core.Centroid(pts)
	for _, p := range pts {
		assert.InDelta(t, 2.0, p.Distance(c), tol)
		assert.InDelta(t, offset.Z, p.Z, tol)
	}
}

func TestIsobarycentric_MeanDistanceWithoutReference(t *testing.T) {
	t.Parallel()

	start := map[string]core.Vector{
		"a": core.NewVector(0, 0, 0),
		"b": core.NewVector(4, 0, 0),
		"c": core.NewVector(0, 3, 0),
		"d": core.NewVector(1, 1, 2),
	}
	reg := newStore(t, start)
	g := New("g", All())
	for id := range start {
		require.NoError(t, g.SetRelation(id, Isobarycentric{}))
	}

	var center core.Vector
	var mean float64
	for _, p := range start {
		center = center.Add(p)
	}
	center = center.Div(4)
	for _, p := range start {
		mean += p.Distance(center) / 4
	}

	g.UpdateMembers(reg)
	g.UpdatePositions(reg, 0)
	for id := range start {
		assert.InDelta(t, mean, position(t, reg, id).Distance(center), tol, id)
	}
}

func TestIsobarycentric_PerturbedSquareStaysCoplanar(t *testing.T) {
	t.Parallel()

	reg := newStore(t, map[string]core.Vector{
		"track1": core.NewVector(1, 1, 1),
		"track2": core.NewVector(-1, 1, 0),
		"track3": core.NewVector(-1, -1, 0),
		"track4": core.NewVector(1, -1, 0),
	})
	p, err := Range(1, 4)
	require.NoError(t, err)
	g := New("square", p)
	for _, id := range []string{"track1", "track2", "track3", "track4"} {
		require.NoError(t, g.SetRelation(id, Isobarycentric{MaintainPlane: true}))
	}
	g.UpdateMembers(reg)
	g.UpdatePositions(reg, 0)

	p0 := position(t, reg, "track1")
	p1 := position(t, reg, "track2")
	p2 := position(t, reg, "track3")
	p3 := position(t, reg, "track4")
	triple := p1.Sub(p0).Dot(p2.Sub(p0).Cross(p3.Sub(p0)))
	assert.InDelta(t, 0, triple, tol)
	for _, q := range []core.Vector{p0, p1, p2, p3} {
		assert.True(t, q.IsFinite())
	}
}

func TestIsobarycentric_DegenerateMemberUsesStableFallback(t *testing.T) {
	t.Parallel()

	run := func() core.Vector {
		reg := newStore(t, map[string]core.Vector{
			"l": core.NewVector(-1, 0, 0),
			"m": core.NewVector(0, 0, 0),
			"r": core.NewVector(1, 0, 0),
		})
		g := New("g", All())
		require.NoError(t, g.SetRelation("m", Isobarycentric{}))
		g.UpdateMembers(reg)
		g.UpdatePositions(reg, 0)
		return position(t, reg, "m")
	}

	first := run()
	assert.True(t, first.IsFinite())
	assert.InDelta(t, 2.0/3.0, first.Magnitude(), tol)
	assert.Equal(t, first, run())
}

func buildScene(t *testing.T) (*kb.Registry, *Group) {
	t.Helper()
	reg := kb.NewRegistry()
	ids := []string{"s1", "s2", "s3", "s4", "s5", "s6"}
	for i, id := range ids {
		reg.Add(id)
		reg.SetPosition(id, core.NewVector(float64(i), float64(i*i%5), float64(i%3)))
	}
	circ, err := core.NewCircular(core.NewVector(1, 1, 0), 2, 0.3, core.PlaneXY)
	require.NoError(t, err)
	spiral, err := core.NewSpiral(core.Vector{}, 1, 3, 0.7, 5*time.Second, core.PlaneXZ)
	require.NoError(t, err)
	reg.BindMotion("s1", circ)
	reg.BindMotion("s2", spiral)
	reg.BindMotion("s5", circ)

	g := New("scene", All())
	require.NoError(t, g.SetRelation("s1", Follow{Target: "s2"}))
	require.NoError(t, g.SetRelation("s2", Isobarycentric{MaintainPlane: true}))
	require.NoError(t, g.SetRelation("s3", Rotate{Angle: 0.7, Axis: core.NewVector(1, 1, 0)}))
	require.NoError(t, g.SetRelation("s4", Isobarycentric{ReferenceDistance: ptr(3.0)}))
	require.NoError(t, g.SetRelation("s5", Phase{Degrees: 45}))
	require.NoError(t, g.SetRelation("s6", Offset{Offset: core.NewVector(0, 0, 1)}))
	require.NoError(t, g.SetScale(1.5))
	g.UpdateMembers(reg)
	return reg, g
}

func TestUpdatePositions_OrderIndependent(t *testing.T) {
	t.Parallel()

	refReg, refGroup := buildScene(t)
	refGroup.UpdatePositions(refReg, 1700*time.Millisecond)
	want := refReg.Positions()

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 5; i++ {
		reg, g := buildScene(t)
		rng.Shuffle(len(g.members), func(a, b int) {
			g.members[a], g.members[b] = g.members[b], g.members[a]
		})
		g.UpdatePositions(reg, 1700*time.Millisecond)
		if diff := cmp.Diff(want, reg.Positions()); diff != "" {
			t.Fatalf("shuffle %d changed positions (-want +got):\n%s", i, diff)
		}
	}
}

func TestUpdatePositions_ParallelMatchesSequential(t *testing.T) {
	t.Parallel()

	seqReg, seq := buildScene(t)
	seq.UpdatePositions(seqReg, 3*time.Second)

	parReg, par := buildScene(t)
	par.SetParallelism(4)
	par.UpdatePositions(parReg, 3*time.Second)

	if diff := cmp.Diff(seqReg.Positions(), parReg.Positions()); diff != "" {
		t.Fatalf("parallel evaluation differs (-seq +par):\n%s", diff)
	}
}

func TestRelationValidation(t *testing.T) {
	t.Parallel()

	g := New("g", All())
	assert.ErrorIs(t, g.SetRelation("a", Follow{}), ErrInvalidRelation)
	assert.ErrorIs(t, g.SetRelation("a", Follow{Target: "a"}), ErrInvalidRelation)
	assert.ErrorIs(t, g.SetRelation("a", Offset{Offset: core.NewVector(math.NaN(), 0, 0)}), ErrInvalidRelation)
	assert.ErrorIs(t, g.SetRelation("a", Rotate{Angle: 1}), ErrInvalidRelation)
	assert.ErrorIs(t, g.SetRelation("a", Rotate{Angle: math.Inf(1), Axis: core.NewVector(0, 0, 1)}), ErrInvalidRelation)
	assert.ErrorIs(t, g.SetRelation("a", Phase{Degrees: math.NaN()}), ErrInvalidRelation)
	assert.ErrorIs(t, g.SetRelation("a", Isobarycentric{ReferenceDistance: ptr(-1.0)}), ErrInvalidRelation)
	assert.ErrorIs(t, g.SetRelation("", None{}), ErrInvalidRelation)

	assert.ErrorIs(t, g.SetScale(math.NaN()), ErrInvalidScale)
	assert.ErrorIs(t, g.SetSpeed(-1), ErrInvalidSpeed)
	assert.Equal(t, 1.0, g.Scale())
	assert.Equal(t, 1.0, g.Speed())

	require.NoError(t, g.SetRelation("a", Follow{Target: "b"}))
	assert.True(t, g.ClearRelation("a"))
	assert.Equal(t, None{}, g.Relation("a"))
	assert.False(t, g.ClearRelation("a"))
}

func TestGroupState_RoundTrip(t *testing.T) {
	t.Parallel()

	_, g := buildScene(t)
	g.SetTimeOffset(250 * time.Millisecond)
	st := g.State()

	restored, err := FromState(st)
	require.NoError(t, err)
	if diff := cmp.Diff(st, restored.State()); diff != "" {
		t.Fatalf("state mismatch (-want +got):\n%s", diff)
	}

	bad := st.Relations["s3"]
	bad.Axis = model.Coordinates{}
	st.Relations["s3"] = bad
	_, err = FromState(st)
	assert.ErrorIs(t, err, ErrInvalidRelation)
}
