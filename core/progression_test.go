package core

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dewiweb/holophonix-animator-sub000/model"
)

func TestEasing_Apply(t *testing.T) {
	cases := []struct {
		easing Easing
		in     float64
		want   float64
	}{
		{EaseLinear, 0.5, 0.5},
		{EaseQuadraticIn, 0.5, 0.25},
		{EaseQuadraticOut, 0.5, 0.75},
		{EaseQuadraticInOut, 0.25, 0.125},
		{EaseQuadraticInOut, 0.75, 0.875},
		{EaseCubicIn, 0.5, 0.125},
		{EaseCubicOut, 0.5, 0.875},
		{EaseCubicInOut, 0.25, 0.0625},
		{EaseCubicInOut, 0.75, 0.9375},
		{EaseCubicIn, -1, 0},
		{EaseCubicOut, 2, 1},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, tc.easing.Apply(tc.in), tol, "%v(%v)", tc.easing, tc.in)
	}

	for e := EaseLinear; e <= EaseCubicInOut; e++ {
		assert.InDelta(t, 0, e.Apply(0), tol, e.String())
		assert.InDelta(t, 1, e.Apply(1), tol, e.String())
	}
}

func TestParseEasing(t *testing.T) {
	cases := map[string]Easing{
		"":               EaseLinear,
		"linear":         EaseLinear,
		"Cubic_In_Out":   EaseCubicInOut,
		"quadratic_out":  EaseQuadraticOut,
		"ease_in":        EaseQuadraticIn,
		"ease_out":       EaseQuadraticOut,
		"ease_in_out":    EaseQuadraticInOut,
		" quadratic_in ": EaseQuadraticIn,
	}
	for in, want := range cases {
		got, err := ParseEasing(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseEasing("bounce")
	assert.ErrorIs(t, err, ErrInvalidEasing)
}

func TestParseCycleMode(t *testing.T) {
	for in, want := range map[string]CycleMode{"": CycleOneShot, "LOOP": CycleLoop, "ping_pong": CyclePingPong} {
		got, err := ParseCycleMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseCycleMode("reverse")
	assert.ErrorIs(t, err, ErrInvalidCycle)
}

func TestProgression_CycleModes(t *testing.T) {
	d := time.Second
	cases := []struct {
		cycle   CycleMode
		elapsed time.Duration
		want    float64
	}{
		{CycleOneShot, 0, 0},
		{CycleOneShot, 500 * time.Millisecond, 0.5},
		{CycleOneShot, 1500 * time.Millisecond, 1},
		{CycleOneShot, -time.Second, 0},
		{CycleLoop, 500 * time.Millisecond, 0.5},
		{CycleLoop, 1500 * time.Millisecond, 0.5},
		{CycleLoop, 2250 * time.Millisecond, 0.25},
		{CycleLoop, -250 * time.Millisecond, 0.75},
		{CyclePingPong, 500 * time.Millisecond, 0.5},
		{CyclePingPong, time.Second, 1},
		{CyclePingPong, 1500 * time.Millisecond, 0.5},
		{CyclePingPong, 2 * time.Second, 0},
		{CyclePingPong, 3250 * time.Millisecond, 0.75},
	}
	for _, tc := range cases {
		p := Progression{Cycle: tc.cycle}
		assert.InDelta(t, tc.want, p.At(tc.elapsed, d), tol, "%v at %v", tc.cycle, tc.elapsed)
	}

	assert.Equal(t, time.Second, Progression{Cycle: CycleLoop}.Period(d))
	assert.Equal(t, 2*time.Second, Progression{Cycle: CyclePingPong}.Period(d))
	assert.False(t, Progression{}.Cyclic())
	assert.True(t, Progression{Cycle: CyclePingPong}.Cyclic())
}

func TestLinearMotion_EasedPingPong(t *testing.T) {
	m, err := NewLinear(NewVector(0, 0, 0), NewVector(8, 0, 0), 2*time.Second,
		WithEasing(EaseQuadraticIn), WithCycle(CyclePingPong))
	require.NoError(t, err)

	assertVector(t, NewVector(2, 0, 0), m.Position(time.Second))
	assertVector(t, NewVector(8, 0, 0), m.Position(2*time.Second))
	assertVector(t, NewVector(2, 0, 0), m.Position(3*time.Second))
	assertVector(t, NewVector(0, 0, 0), m.Position(4*time.Second))

	assert.True(t, m.IsCyclic())
	assert.Equal(t, 4*time.Second, m.CycleDuration())
}

func TestLoopingMotions(t *testing.T) {
	spiral, err := NewSpiral(Vector{}, 1, 3, 1, 2*time.Second, PlaneXY, WithCycle(CycleLoop))
	require.NoError(t, err)
	// Radius 2 half way through the second loop; the angle is back at zero.
	assertVector(t, NewVector(2, 0, 0), spiral.Position(3*time.Second))
	assert.True(t, spiral.IsCyclic())
	assert.Equal(t, 2*time.Second, spiral.CycleDuration())

	arc, err := NewSphericalLinear(model.Spherical{Distance: 1}, model.Spherical{Azimuth: math.Pi / 2, Distance: 1}, time.Second, WithCycle(CycleLoop))
	require.NoError(t, err)
	assertVector(t, arc.Position(250*time.Millisecond), arc.Position(1250*time.Millisecond))
	assert.True(t, arc.IsCyclic())
}

func TestProgressOptionValidation(t *testing.T) {
	_, err := NewLinear(Vector{}, NewVector(1, 0, 0), time.Second, WithEasing(Easing(42)))
	assert.ErrorIs(t, err, ErrInvalidEasing)

	_, err = NewSpiral(Vector{}, 1, 2, 1, time.Second, PlaneXY, WithCycle(CycleMode(-1)))
	assert.ErrorIs(t, err, ErrInvalidCycle)

	_, err = NewMotionModel(model.MotionSpec{Type: model.MotionLinear, Duration: time.Second, Easing: "bounce"})
	assert.ErrorIs(t, err, ErrInvalidEasing)

	_, err = NewMotionModel(model.MotionSpec{Type: model.MotionSphericalLinear, Duration: time.Second, Cycle: "reverse"})
	assert.ErrorIs(t, err, ErrInvalidCycle)

	_, err = NewMotionModel(model.MotionSpec{Type: model.MotionCircular, Radius: 1, Frequency: 1, Cycle: "loop"})
	assert.ErrorIs(t, err, ErrProgressionUnsupported)
}

func TestNewMotionModel_ProgressionRoundTrip(t *testing.T) {
	spec := model.MotionSpec{
		Type:     model.MotionLinear,
		End:      model.Coordinates{X: 1},
		Duration: time.Second,
		Easing:   "cubic_out",
		Cycle:    "ping_pong",
	}
	m, err := NewMotionModel(spec)
	require.NoError(t, err)
	assert.Equal(t, spec, m.Spec())
	assert.True(t, m.IsCyclic())
	assert.Equal(t, 2*time.Second, m.CycleDuration())

	alias, err := NewMotionModel(model.MotionSpec{Type: model.MotionLinear, Duration: time.Second, Easing: "ease_in"})
	require.NoError(t, err)
	assert.Equal(t, "quadratic_in", alias.Spec().Easing)
}

func TestPlaneValidation(t *testing.T) {
	_, err := NewCircular(Vector{}, 1, 1, Plane(7))
	assert.ErrorIs(t, err, ErrInvalidPlane)

	_, err = NewElliptical(Vector{}, 2, 1, 1, Plane(-1))
	assert.ErrorIs(t, err, ErrInvalidPlane)

	_, err = NewSpiral(Vector{}, 1, 2, 1, time.Second, Plane(3))
	assert.ErrorIs(t, err, ErrInvalidPlane)
}

func TestPeriod_SaturatesForTinyFrequencies(t *testing.T) {
	slow, err := NewCircular(Vector{}, 1, 1e-10, PlaneXY)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(math.MaxInt64), slow.CycleDuration())

	fast, err := NewCircular(Vector{}, 1, 1, PlaneXY)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(math.MaxInt64), NewComposite(fast, slow).CycleDuration())

	assert.Equal(t, time.Duration(math.MaxInt64), Progression{Cycle: CyclePingPong}.Period(time.Duration(math.MaxInt64)))
}
