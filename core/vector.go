package core

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/dewiweb/holophonix-animator-sub000/model"
)

// ErrZeroVector is returned when a direction is requested from a vector
// with zero (or non-finite) magnitude.
var ErrZeroVector = errors.New("zero-length vector has no direction")

// Vector is a 3D position or displacement. It shares its layout with
// gonum's r3.Vec so the two convert freely.
type Vector r3.Vec

// NewVector builds a Vector from its components.
func NewVector(x, y, z float64) Vector {
	return Vector{X: x, Y: y, Z: z}
}

// VectorFromCoordinates converts a serialized position.
func VectorFromCoordinates(c model.Coordinates) Vector {
	return Vector{X: c.X, Y: c.Y, Z: c.Z}
}

// Coordinates converts v to its serialized form.
func (v Vector) Coordinates() model.Coordinates {
	return model.Coordinates{X: v.X, Y: v.Y, Z: v.Z}
}

func (v Vector) vec() r3.Vec { return r3.Vec(v) }

// Add returns v + other.
func (v Vector) Add(other Vector) Vector {
	return Vector(r3.Add(v.vec(), other.vec()))
}

// Sub returns v - other.
func (v Vector) Sub(other Vector) Vector {
	return Vector(r3.Sub(v.vec(), other.vec()))
}

// Scale returns v * f.
func (v Vector) Scale(f float64) Vector {
	return Vector(r3.Scale(f, v.vec()))
}

// Div returns v / f. Dividing by zero yields non-finite components.
func (v Vector) Div(f float64) Vector {
	return Vector{X: v.X / f, Y: v.Y / f, Z: v.Z / f}
}

// Dot returns the dot product of two vectors.
func (v Vector) Dot(other Vector) float64 {
	return r3.Dot(v.vec(), other.vec())
}

// Cross returns the cross product v × other.
func (v Vector) Cross(other Vector) Vector {
	return Vector(r3.Cross(v.vec(), other.vec()))
}

// Magnitude returns the Euclidean norm of the vector.
func (v Vector) Magnitude() float64 {
	return r3.Norm(v.vec())
}

// MagnitudeSquared returns the squared Euclidean norm.
func (v Vector) MagnitudeSquared() float64 {
	return r3.Norm2(v.vec())
}

// Normalize returns the unit vector pointing along v.
func (v Vector) Normalize() (Vector, error) {
	m := v.Magnitude()
	if m == 0 || math.IsNaN(m) || math.IsInf(m, 0) {
		return Vector{}, ErrZeroVector
	}
	return v.Scale(1 / m), nil
}

// Distance returns the straight-line distance between two points.
func (v Vector) Distance(other Vector) float64 {
	return v.Sub(other).Magnitude()
}

// Angle returns the unsigned angle between two vectors in radians. It is
// zero when either vector has zero length.
func (v Vector) Angle(other Vector) float64 {
	mags := math.Sqrt(v.MagnitudeSquared() * other.MagnitudeSquared())
	if mags == 0 {
		return 0
	}
	return math.Acos(clampUnit(v.Dot(other) / mags))
}

// Lerp interpolates linearly between v (t=0) and other (t=1). t is not
// clamped.
func (v Vector) Lerp(other Vector, t float64) Vector {
	return Vector{
		X: v.X + (other.X-v.X)*t,
		Y: v.Y + (other.Y-v.Y)*t,
		Z: v.Z + (other.Z-v.Z)*t,
	}
}

// ToSpherical returns (azimuth, elevation, distance) with azimuth measured
// by atan2(y, x) and elevation by asin(z/r). The zero vector maps to
// (0, 0, 0).
func (v Vector) ToSpherical() (azimuth, elevation, distance float64) {
	r := v.Magnitude()
	if r == 0 {
		return 0, 0, 0
	}
	return math.Atan2(v.Y, v.X), math.Asin(clampUnit(v.Z / r)), r
}

// Spherical is ToSpherical in serialized form.
func (v Vector) Spherical() model.Spherical {
	az, el, d := v.ToSpherical()
	return model.Spherical{Azimuth: az, Elevation: el, Distance: d}
}

// FromSpherical is the inverse of ToSpherical.
func FromSpherical(azimuth, elevation, distance float64) Vector {
	cosEl := math.Cos(elevation)
	return Vector{
		X: distance * cosEl * math.Cos(azimuth),
		Y: distance * cosEl * math.Sin(azimuth),
		Z: distance * math.Sin(elevation),
	}
}

// RotateAroundAxis rotates v by angle radians around axis using Rodrigues'
// rotation formula. The axis is normalized internally.
func (v Vector) RotateAroundAxis(axis Vector, angle float64) (Vector, error) {
	k, err := axis.Normalize()
	if err != nil {
		return Vector{}, err
	}
	cos, sin := math.Cos(angle), math.Sin(angle)
	// v cosθ + (k × v) sinθ + k (k·v)(1 − cosθ)
	return v.Scale(cos).
		Add(k.Cross(v).Scale(sin)).
		Add(k.Scale(k.Dot(v) * (1 - cos))), nil
}

// ProjectOnto returns the component of v along onto.
func (v Vector) ProjectOnto(onto Vector) (Vector, error) {
	n, err := onto.Normalize()
	if err != nil {
		return Vector{}, err
	}
	return n.Scale(v.Dot(n)), nil
}

// Reflect mirrors v across the plane with the given normal.
func (v Vector) Reflect(normal Vector) (Vector, error) {
	n, err := normal.Normalize()
	if err != nil {
		return Vector{}, err
	}
	return v.Sub(n.Scale(2 * v.Dot(n))), nil
}

// IsZero reports whether every component is exactly zero.
func (v Vector) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// IsFinite reports whether no component is NaN or infinite.
func (v Vector) IsFinite() bool {
	return isFinite(v.X) && isFinite(v.Y) && isFinite(v.Z)
}

// ApproxEqual reports whether every component of v is within tol of other.
func (v Vector) ApproxEqual(other Vector, tol float64) bool {
	return math.Abs(v.X-other.X) <= tol &&
		math.Abs(v.Y-other.Y) <= tol &&
		math.Abs(v.Z-other.Z) <= tol
}

// Centroid returns the arithmetic mean of points, or the zero vector when
// points is empty.
func Centroid(points []Vector) Vector {
	if len(points) == 0 {
		return Vector{}
	}
	var sum Vector
	for _, p := range points {
		sum = sum.Add(p)
	}
	return sum.Div(float64(len(points)))
}

func clampUnit(x float64) float64 {
	if x > 1 {
		return 1
	}
	if x < -1 {
		return -1
	}
	return x
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
