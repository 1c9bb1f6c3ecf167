package units

import "github.com/chewxy/math32"

// Degrees is the external angle unit of the mount.
// Single precision is the contract; the alias keeps that choice in one place.
type Degrees = float32

// Radians is only used inside the trigonometric kernel.
type Radians = float32

// Steps is a signed motor step count, zero at the installation home position.
// Negative values mean motion opposite to the installer's positive direction.
type Steps = int32

// Pi is the value of π shared by both conversion functions.
const Pi = 3.14159265359

// Position is a horizontal pointing in degrees: azimuth clockwise around
// the horizon (see astro.EquatorialToHorizontal for its origin), altitude
// upward from the horizon.
type Position struct {
	Azimuth  Degrees `json:"azimuth"`
	Altitude Degrees `json:"altitude"`
}

// MotorPosition holds the commanded step count of each axis.
type MotorPosition struct {
	AzimuthSteps  Steps `json:"azimuth_steps"`
	AltitudeSteps Steps `json:"altitude_steps"`
}

// DegreesToRadians converts d·π/180. Any finite input is accepted.
func DegreesToRadians(d Degrees) Radians {
	return d * Pi / 180.0
}

// RadiansToDegrees converts r·180/π. Any finite input is accepted.
func RadiansToDegrees(r Radians) Degrees {
	return r * 180.0 / Pi
}

// WrapAzimuth folds an azimuth into [0, 360).
func WrapAzimuth(a Degrees) Degrees {
	a = math32.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	if a >= 360 {
		// -tiny + 360 rounds up to 360 in single precision
		a = 0
	}
	return a
}

// NearestAzimuth returns target shifted by whole turns so that it lies
// within half a turn of reference. The motion layer uses it to slew the
// short way around instead of unwinding through 360°.
func NearestAzimuth(target, reference Degrees) Degrees {
	diff := WrapAzimuth(target - reference)
	if diff > 180 {
		diff -= 360
	}
	return reference + diff
}
