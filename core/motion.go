package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dewiweb/holophonix-animator-sub000/model"
)

var (
	ErrInvalidFrequency = errors.New("frequency must be finite and non-zero")
	ErrInvalidDuration  = errors.New("duration must be positive")
	ErrInvalidRadius    = errors.New("radius must be finite and non-negative")
	ErrInvalidVector    = errors.New("vector components must be finite")
	ErrInvalidPlane     = errors.New("plane must be one of XY, XZ or YZ")
	ErrUnknownMotion    = errors.New("unknown motion type")
)

// MotionModel maps an absolute elapsed time to a position. Implementations
// are immutable after construction, so Position may be called concurrently
// and in any time order.
type MotionModel interface {
	Position(elapsed time.Duration) Vector
	// CycleDuration is the period of a cyclic model or the configured
	// duration of a finite one.
	CycleDuration() time.Duration
	IsCyclic() bool
	Spec() model.MotionSpec
}

// Plane selects the two axes a planar motion moves along.
type Plane int

const (
	PlaneXY Plane = iota
	PlaneXZ
	PlaneYZ
)

// ParsePlane accepts "XY", "XZ" or "YZ" in any case. An empty string
// selects XY.
func ParsePlane(s string) (Plane, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "XY":
		return PlaneXY, nil
	case "XZ":
		return PlaneXZ, nil
	case "YZ":
		return PlaneYZ, nil
	default:
		return 0, fmt.Errorf("%q: %w", s, ErrInvalidPlane)
	}
}

func (p Plane) valid() bool { return p >= PlaneXY && p <= PlaneYZ }

func (p Plane) String() string {
	switch p {
	case PlaneXZ:
		return "XZ"
	case PlaneYZ:
		return "YZ"
	default:
		return "XY"
	}
}

// offset places the in-plane displacement (u, v) onto the plane's axes.
func (p Plane) offset(u, v float64) Vector {
	switch p {
	case PlaneXZ:
		return Vector{X: u, Z: v}
	case PlaneYZ:
		return Vector{Y: u, Z: v}
	default:
		return Vector{X: u, Y: v}
	}
}

// Linear moves from Start to End over Duration. A one-shot Linear then
// holds End.
type Linear struct {
	Start, End Vector
	Duration   time.Duration
	Progression
}

// NewLinear validates and builds a Linear motion.
func NewLinear(start, end Vector, duration time.Duration, opts ...ProgressOption) (*Linear, error) {
	if !start.IsFinite() || !end.IsFinite() {
		return nil, fmt.Errorf("linear motion: %w", ErrInvalidVector)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("linear motion: %w", ErrInvalidDuration)
	}
	p, err := newProgression(opts)
	if err != nil {
		return nil, fmt.Errorf("linear motion: %w", err)
	}
	return &Linear{Start: start, End: end, Duration: duration, Progression: p}, nil
}

// Position interpolates between Start and End at the eased progress.
func (m *Linear) Position(elapsed time.Duration) Vector {
	return m.Start.Lerp(m.End, m.At(elapsed, m.Duration))
}

func (m *Linear) CycleDuration() time.Duration { return m.Period(m.Duration) }
func (m *Linear) IsCyclic() bool               { return m.Cyclic() }

// Circular orbits Center at Radius in the chosen plane. A negative
// frequency orbits in the opposite direction.
type Circular struct {
	Center    Vector
	Radius    float64
	Frequency float64
	Plane     Plane
}

// NewCircular validates and builds a Circular motion.
func NewCircular(center Vector, radius, frequency float64, plane Plane) (*Circular, error) {
	if !center.IsFinite() {
		return nil, fmt.Errorf("circular motion: %w", ErrInvalidVector)
	}
	if err := checkRadius(radius); err != nil {
		return nil, fmt.Errorf("circular motion: %w", err)
	}
	if err := checkFrequency(frequency); err != nil {
		return nil, fmt.Errorf("circular motion: %w", err)
	}
	if !plane.valid() {
		return nil, fmt.Errorf("circular motion plane %d: %w", int(plane), ErrInvalidPlane)
	}
	return &Circular{Center: center, Radius: radius, Frequency: frequency, Plane: plane}, nil
}

func (m *Circular) Position(elapsed time.Duration) Vector {
	a := angle(elapsed, m.Frequency)
	return m.Center.Add(m.Plane.offset(m.Radius*math.Cos(a), m.Radius*math.Sin(a)))
}

func (m *Circular) CycleDuration() time.Duration { return period(m.Frequency) }
func (m *Circular) IsCyclic() bool               { return true }

// Elliptical is Circular with independent radii along the plane's first
// (major) and second (minor) axis.
type Elliptical struct {
	Center               Vector
	MajorAxis, MinorAxis float64
	Frequency            float64
	Plane                Plane
}

// NewElliptical validates and builds an Elliptical motion.
func NewElliptical(center Vector, major, minor, frequency float64, plane Plane) (*Elliptical, error) {
	if !center.IsFinite() {
		return nil, fmt.Errorf("elliptical motion: %w", ErrInvalidVector)
	}
	if err := checkRadius(major); err != nil {
		return nil, fmt.Errorf("elliptical motion major axis: %w", err)
	}
	if err := checkRadius(minor); err != nil {
		return nil, fmt.Errorf("elliptical motion minor axis: %w", err)
	}
	if err := checkFrequency(frequency); err != nil {
		return nil, fmt.Errorf("elliptical motion: %w", err)
	}
	if !plane.valid() {
		return nil, fmt.Errorf("elliptical motion plane %d: %w", int(plane), ErrInvalidPlane)
	}
	return &Elliptical{Center: center, MajorAxis: major, MinorAxis: minor, Frequency: frequency, Plane: plane}, nil
}

func (m *Elliptical) Position(elapsed time.Duration) Vector {
	a := angle(elapsed, m.Frequency)
	return m.Center.Add(m.Plane.offset(m.MajorAxis*math.Cos(a), m.MinorAxis*math.Sin(a)))
}

func (m *Elliptical) CycleDuration() time.Duration { return period(m.Frequency) }
func (m *Elliptical) IsCyclic() bool               { return true }

// Spiral orbits Center while the radius moves from StartRadius to
// EndRadius over Duration. The angle keeps advancing after Duration; the
// Progression only shapes the radius sweep.
type Spiral struct {
	Center                 Vector
	StartRadius, EndRadius float64
	Frequency              float64
	Duration               time.Duration
	Plane                  Plane
	Progression
}

// NewSpiral validates and builds a Spiral motion.
func NewSpiral(center Vector, startRadius, endRadius, frequency float64, duration time.Duration, plane Plane, opts ...ProgressOption) (*Spiral, error) {
	if !center.IsFinite() {
		return nil, fmt.Errorf("spiral motion: %w", ErrInvalidVector)
	}
	if err := checkRadius(startRadius); err != nil {
		return nil, fmt.Errorf("spiral motion start radius: %w", err)
	}
	if err := checkRadius(endRadius); err != nil {
		return nil, fmt.Errorf("spiral motion end radius: %w", err)
	}
	if err := checkFrequency(frequency); err != nil {
		return nil, fmt.Errorf("spiral motion: %w", err)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("spiral motion: %w", ErrInvalidDuration)
	}
	if !plane.valid() {
		return nil, fmt.Errorf("spiral motion plane %d: %w", int(plane), ErrInvalidPlane)
	}
	p, err := newProgression(opts)
	if err != nil {
		return nil, fmt.Errorf("spiral motion: %w", err)
	}
	return &Spiral{
		Center:      center,
		StartRadius: startRadius,
		EndRadius:   endRadius,
		Frequency:   frequency,
		Duration:    duration,
		Plane:       plane,
		Progression: p,
	}, nil
}

func (m *Spiral) Position(elapsed time.Duration) Vector {
	r := lerp(m.StartRadius, m.EndRadius, m.At(elapsed, m.Duration))
	a := angle(elapsed, m.Frequency)
	return m.Center.Add(m.Plane.offset(r*math.Cos(a), r*math.Sin(a)))
}

func (m *Spiral) CycleDuration() time.Duration { return m.Period(m.Duration) }
func (m *Spiral) IsCyclic() bool               { return m.Cyclic() }

// Composite sums the positions of its children evaluated at the same time.
type Composite struct {
	Motions []MotionModel
}

// NewComposite builds a Composite; nil children are dropped.
func NewComposite(motions ...MotionModel) *Composite {
	c := &Composite{Motions: make([]MotionModel, 0, len(motions))}
	for _, m := range motions {
		if m != nil {
			c.Motions = append(c.Motions, m)
		}
	}
	return c
}

func (m *Composite) Position(elapsed time.Duration) Vector {
	var sum Vector
	for _, child := range m.Motions {
		sum = sum.Add(child.Position(elapsed))
	}
	return sum
}

// CycleDuration is the longest child cycle, or zero without children.
func (m *Composite) CycleDuration() time.Duration {
	var longest time.Duration
	for _, child := range m.Motions {
		if d := child.CycleDuration(); d > longest {
			longest = d
		}
	}
	return longest
}

// IsCyclic is true only for a non-empty composite of cyclic children.
func (m *Composite) IsCyclic() bool {
	if len(m.Motions) == 0 {
		return false
	}
	for _, child := range m.Motions {
		if !child.IsCyclic() {
			return false
		}
	}
	return true
}

// SphericalLinear interpolates azimuth, elevation and distance separately,
// which sweeps an arc rather than a chord.
type SphericalLinear struct {
	Start, End model.Spherical
	Duration   time.Duration
	Progression
}

// NewSphericalLinear validates and builds a SphericalLinear motion.
func NewSphericalLinear(start, end model.Spherical, duration time.Duration, opts ...ProgressOption) (*SphericalLinear, error) {
	if !sphericalFinite(start) || !sphericalFinite(end) {
		return nil, fmt.Errorf("spherical linear motion: %w", ErrInvalidVector)
	}
	if start.Distance < 0 || end.Distance < 0 {
		return nil, fmt.Errorf("spherical linear motion distance: %w", ErrInvalidRadius)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("spherical linear motion: %w", ErrInvalidDuration)
	}
	p, err := newProgression(opts)
	if err != nil {
		return nil, fmt.Errorf("spherical linear motion: %w", err)
	}
	return &SphericalLinear{Start: start, End: end, Duration: duration, Progression: p}, nil
}

func (m *SphericalLinear) Position(elapsed time.Duration) Vector {
	t := m.At(elapsed, m.Duration)
	return FromSpherical(
		lerp(m.Start.Azimuth, m.End.Azimuth, t),
		lerp(m.Start.Elevation, m.End.Elevation, t),
		lerp(m.Start.Distance, m.End.Distance, t),
	)
}

func (m *SphericalLinear) CycleDuration() time.Duration { return m.Period(m.Duration) }
func (m *SphericalLinear) IsCyclic() bool               { return m.Cyclic() }

// SphericalCircular sweeps the azimuth sinusoidally around Center with a
// total angular span of Span radians, at constant elevation and distance.
type SphericalCircular struct {
	Center    model.Spherical
	Span      float64
	Frequency float64
}

// NewSphericalCircular validates and builds a SphericalCircular motion.
func NewSphericalCircular(center model.Spherical, span, frequency float64) (*SphericalCircular, error) {
	if !sphericalFinite(center) {
		return nil, fmt.Errorf("spherical circular motion: %w", ErrInvalidVector)
	}
	if center.Distance < 0 {
		return nil, fmt.Errorf("spherical circular motion distance: %w", ErrInvalidRadius)
	}
	if err := checkRadius(span); err != nil {
		return nil, fmt.Errorf("spherical circular motion span: %w", err)
	}
	if err := checkFrequency(frequency); err != nil {
		return nil, fmt.Errorf("spherical circular motion: %w", err)
	}
	return &SphericalCircular{Center: center, Span: span, Frequency: frequency}, nil
}

func (m *SphericalCircular) Position(elapsed time.Duration) Vector {
	az := m.Center.Azimuth + m.Span/2*math.Sin(angle(elapsed, m.Frequency))
	return FromSpherical(az, m.Center.Elevation, m.Center.Distance)
}

func (m *SphericalCircular) CycleDuration() time.Duration { return period(m.Frequency) }
func (m *SphericalCircular) IsCyclic() bool               { return true }

func angle(elapsed time.Duration, frequency float64) float64 {
	return elapsed.Seconds() * frequency * 2 * math.Pi
}

// period saturates at the largest Duration for very low frequencies.
func period(frequency float64) time.Duration {
	return ClampDuration(float64(time.Second) / math.Abs(frequency))
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func checkFrequency(f float64) error {
	if f == 0 || !isFinite(f) {
		return ErrInvalidFrequency
	}
	return nil
}

func checkRadius(r float64) error {
	if r < 0 || !isFinite(r) {
		return ErrInvalidRadius
	}
	return nil
}

func sphericalFinite(s model.Spherical) bool {
	return isFinite(s.Azimuth) && isFinite(s.Elevation) && isFinite(s.Distance)
}
