package geometry

import (
	"github.com/cjeanneret/TeleGo/internal/config"
	"github.com/cjeanneret/TeleGo/internal/logic/units"
)

// TelescopeConfig converts sky angles to motor steps. The effective scale of
// an axis is StepsPerDegree * GearRatio, in motor steps per degree of sky.
// GearRatio is the reduction between the motor shaft and the telescope axis.
type TelescopeConfig struct {
	StepsPerDegreeAzimuth  float32
	StepsPerDegreeAltitude float32
	AzimuthGearRatio       float32
	AltitudeGearRatio      float32
}

const (
	defaultStepsPerRev   = 200
	defaultMicrostepping = 16
	defaultGearRatio     = 100
)

// DefaultTelescopeConfig returns a 200 step/rev motor at 16x microstepping
// behind a 100:1 reduction on both axes (about 888.89 steps per degree).
func DefaultTelescopeConfig() TelescopeConfig {
	spd := float32(defaultStepsPerRev*defaultMicrostepping) / 360.0
	return TelescopeConfig{
		StepsPerDegreeAzimuth:  spd,
		StepsPerDegreeAltitude: spd,
		AzimuthGearRatio:       defaultGearRatio,
		AltitudeGearRatio:      defaultGearRatio,
	}
}

// NewTelescopeConfig builds the scales from the azimuth and altitude stepper
// sections of cfg.
func NewTelescopeConfig(cfg *config.Config) TelescopeConfig {
	return TelescopeConfig{
		StepsPerDegreeAzimuth:  float32(cfg.AzimuthStepper.MicrostepsPerRev()) / 360.0,
		StepsPerDegreeAltitude: float32(cfg.AltitudeStepper.MicrostepsPerRev()) / 360.0,
		AzimuthGearRatio:       float32(cfg.AzimuthStepper.GearRatio),
		AltitudeGearRatio:      float32(cfg.AltitudeStepper.GearRatio),
	}
}

// AzimuthScale returns motor steps per degree of azimuth.
func (c *TelescopeConfig) AzimuthScale() float32 {
	return c.StepsPerDegreeAzimuth * c.AzimuthGearRatio
}

// AltitudeScale returns motor steps per degree of altitude.
func (c *TelescopeConfig) AltitudeScale() float32 {
	return c.StepsPerDegreeAltitude * c.AltitudeGearRatio
}

// PositionToSteps converts a horizontal position to absolute step counts.
// Fractional steps are truncated toward zero, so negative angles mirror
// positive ones. Angles are not wrapped and out-of-range results are not
// checked.
func PositionToSteps(pos units.Position, cfg *TelescopeConfig) units.MotorPosition {
	return units.MotorPosition{
		AzimuthSteps:  units.Steps(pos.Azimuth * cfg.StepsPerDegreeAzimuth * cfg.AzimuthGearRatio),
		AltitudeSteps: units.Steps(pos.Altitude * cfg.StepsPerDegreeAltitude * cfg.AltitudeGearRatio),
	}
}

// StepsToPosition is the inverse of PositionToSteps, up to the truncation.
func StepsToPosition(mp units.MotorPosition, cfg *TelescopeConfig) units.Position {
	return units.Position{
		Azimuth:  float32(mp.AzimuthSteps) / (cfg.StepsPerDegreeAzimuth * cfg.AzimuthGearRatio),
		Altitude: float32(mp.AltitudeSteps) / (cfg.StepsPerDegreeAltitude * cfg.AltitudeGearRatio),
	}
}
