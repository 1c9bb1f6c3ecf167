package geometry

import (
	"fmt"
	"math"
	"testing"

	"github.com/cjeanneret/TeleGo/internal/config"
	"github.com/cjeanneret/TeleGo/internal/logic/units"
)

const epsilon = 1e-4

func newStepsConfig(stepsPerRev, microstepping int, gear float64) *config.Config {
	axis := config.StepperConfig{
		StepsPerRev:   stepsPerRev,
		Microstepping: microstepping,
		GearRatio:     gear,
	}
	return &config.Config{AzimuthStepper: axis, AltitudeStepper: axis}
}

func TestDefaultTelescopeConfig(t *testing.T) {
	cfg := DefaultTelescopeConfig()

	if math.Abs(float64(cfg.StepsPerDegreeAzimuth)-3200.0/360.0) > epsilon {
		t.Errorf("StepsPerDegreeAzimuth = %v, want %v", cfg.StepsPerDegreeAzimuth, 3200.0/360.0)
	}
	if cfg.StepsPerDegreeAltitude != cfg.StepsPerDegreeAzimuth {
		t.Errorf("axes differ: %v vs %v", cfg.StepsPerDegreeAltitude, cfg.StepsPerDegreeAzimuth)
	}
	if cfg.AzimuthGearRatio != 100 || cfg.AltitudeGearRatio != 100 {
		t.Errorf("gear ratios = %v/%v, want 100/100", cfg.AzimuthGearRatio, cfg.AltitudeGearRatio)
	}
	if math.Abs(float64(cfg.AzimuthScale())-888.8889) > 1e-3 {
		t.Errorf("AzimuthScale() = %v, want 888.8889", cfg.AzimuthScale())
	}
}

func TestNewTelescopeConfig_MatchesDefault(t *testing.T) {
	got := NewTelescopeConfig(newStepsConfig(200, 16, 100))
	if got != DefaultTelescopeConfig() {
		t.Errorf("NewTelescopeConfig = %+v, want %+v", got, DefaultTelescopeConfig())
	}
}

func TestPositionToSteps_KnownAngles(t *testing.T) {
	cfg := DefaultTelescopeConfig()
	cases := []struct {
		name    string
		pos     units.Position
		wantAz  units.Steps
		wantAlt units.Steps
	}{
		{"zero", units.Position{}, 0, 0},
		{"one_degree", units.Position{Azimuth: 1, Altitude: 1}, 888, 888},
		{"negative_one_degree", units.Position{Azimuth: -1, Altitude: -1}, -888, -888},
		{"sub_step", units.Position{Azimuth: 0.001, Altitude: -0.001}, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := PositionToSteps(tc.pos, &cfg)
			if got.AzimuthSteps != tc.wantAz || got.AltitudeSteps != tc.wantAlt {
				t.Errorf("PositionToSteps(%+v) = %+v, want {%d %d}", tc.pos, got, tc.wantAz, tc.wantAlt)
			}
		})
	}
}

func TestPositionToSteps_ZeroForAnyConfig(t *testing.T) {
	configs := []TelescopeConfig{
		DefaultTelescopeConfig(),
		{StepsPerDegreeAzimuth: 1, StepsPerDegreeAltitude: 1, AzimuthGearRatio: 1, AltitudeGearRatio: 1},
		{StepsPerDegreeAzimuth: 0.5, StepsPerDegreeAltitude: 40, AzimuthGearRatio: 3, AltitudeGearRatio: 720},
		NewTelescopeConfig(newStepsConfig(400, 256, 144)),
	}
	for i, cfg := range configs {
		got := PositionToSteps(units.Position{}, &cfg)
		if got != (units.MotorPosition{}) {
			t.Errorf("config %d: PositionToSteps(0,0) = %+v, want {0 0}", i, got)
		}
	}
}

func TestPositionToSteps_RoundTrip(t *testing.T) {
	configs := map[string]TelescopeConfig{
		"default":    DefaultTelescopeConfig(),
		"full_steps": NewTelescopeConfig(newStepsConfig(200, 1, 50)),
		"fine":       NewTelescopeConfig(newStepsConfig(400, 32, 180)),
	}
	positions := []units.Position{
		{Azimuth: 123.45, Altitude: 67.89},
		{Azimuth: 0, Altitude: 0},
		{Azimuth: 359.99, Altitude: 89.99},
		{Azimuth: -45.5, Altitude: -10.25},
		{Azimuth: 720, Altitude: 45},
	}
	for name, cfg := range configs {
		for _, p := range positions {
			t.Run(fmt.Sprintf("%s_%v_%v", name, p.Azimuth, p.Altitude), func(t *testing.T) {
				back := StepsToPosition(PositionToSteps(p, &cfg), &cfg)
				if d := math.Abs(float64(back.Azimuth - p.Azimuth)); d > 0.1 {
					t.Errorf("azimuth %v -> %v (diff %v)", p.Azimuth, back.Azimuth, d)
				}
				if d := math.Abs(float64(back.Altitude - p.Altitude)); d > 0.1 {
					t.Errorf("altitude %v -> %v (diff %v)", p.Altitude, back.Altitude, d)
				}
			})
		}
	}
}

func TestPositionToSteps_QuantizationBound(t *testing.T) {
	cfg := DefaultTelescopeConfig()
	bound := 1.1/float64(cfg.AzimuthScale()) + 1e-4
	for a := units.Degrees(0); a < 360; a += 7.3 {
		back := StepsToPosition(PositionToSteps(units.Position{Azimuth: a, Altitude: a / 4}, &cfg), &cfg)
		if d := math.Abs(float64(back.Azimuth - a)); d > bound {
			t.Errorf("azimuth %v: error %v exceeds one step (%v)", a, d, bound)
		}
	}
}

func TestPositionToSteps_Linear(t *testing.T) {
	cfg := DefaultTelescopeConfig()
	for _, a := range []units.Degrees{0.5, 10, 33.3, 90, 170} {
		one := PositionToSteps(units.Position{Azimuth: a, Altitude: a / 2}, &cfg)
		two := PositionToSteps(units.Position{Azimuth: 2 * a, Altitude: a}, &cfg)
		if d := two.AzimuthSteps - 2*one.AzimuthSteps; d < -2 || d > 2 {
			t.Errorf("azimuth %v: steps(2a)=%d, 2*steps(a)=%d", a, two.AzimuthSteps, 2*one.AzimuthSteps)
		}
		if d := two.AltitudeSteps - 2*one.AltitudeSteps; d < -2 || d > 2 {
			t.Errorf("altitude %v: steps(2a)=%d, 2*steps(a)=%d", a/2, two.AltitudeSteps, 2*one.AltitudeSteps)
		}
	}
}

func TestPositionToSteps_NegativeSymmetry(t *testing.T) {
	cfg := DefaultTelescopeConfig()
	for _, a := range []units.Degrees{0.0007, 1.5, 45.123, 179.999, 359.5} {
		pos := PositionToSteps(units.Position{Azimuth: a, Altitude: a}, &cfg)
		neg := PositionToSteps(units.Position{Azimuth: -a, Altitude: -a}, &cfg)
		if neg.AzimuthSteps != -pos.AzimuthSteps || neg.AltitudeSteps != -pos.AltitudeSteps {
			t.Errorf("angle %v: %+v is not the mirror of %+v", a, neg, pos)
		}
	}
}

func TestPositionToSteps_AsymmetricAxes(t *testing.T) {
	cfg := NewTelescopeConfig(&config.Config{
		AzimuthStepper:  config.StepperConfig{StepsPerRev: 200, Microstepping: 16, GearRatio: 1},
		AltitudeStepper: config.StepperConfig{StepsPerRev: 400, Microstepping: 8, GearRatio: 3},
	})

	got := PositionToSteps(units.Position{Azimuth: 90, Altitude: 90}, &cfg)

	// 90° of 3200 steps/rev = 800 steps; altitude is the same motor scale geared 3:1.
	if d := got.AzimuthSteps - 800; d < -1 || d > 0 {
		t.Errorf("azimuth steps = %d, want ~800", got.AzimuthSteps)
	}
	if d := got.AltitudeSteps - 2400; d < -1 || d > 0 {
		t.Errorf("altitude steps = %d, want ~2400", got.AltitudeSteps)
	}
}

func TestPositionToSteps_Microstepping(t *testing.T) {
	for _, ms := range []int{1, 2, 4, 8, 16, 32} {
		cfg := NewTelescopeConfig(newStepsConfig(200, ms, 1))
		got := PositionToSteps(units.Position{Azimuth: 90}, &cfg)
		want := units.Steps(50 * ms) // a quarter turn
		if d := got.AzimuthSteps - want; d < -1 || d > 0 {
			t.Errorf("microstepping=%d: 90° = %d steps, want %d", ms, got.AzimuthSteps, want)
		}
	}
}

func TestStepsToPosition_Inverse(t *testing.T) {
	cfg := DefaultTelescopeConfig()
	got := StepsToPosition(units.MotorPosition{AzimuthSteps: 80000, AltitudeSteps: -40000}, &cfg)
	if math.Abs(float64(got.Azimuth)-90) > epsilon {
		t.Errorf("azimuth = %v, want 90", got.Azimuth)
	}
	if math.Abs(float64(got.Altitude)+45) > epsilon {
		t.Errorf("altitude = %v, want -45", got.Altitude)
	}
}

func TestPositionToSteps_DoesNotMutateConfig(t *testing.T) {
	cfg := DefaultTelescopeConfig()
	before := cfg
	_ = PositionToSteps(units.Position{Azimuth: 10, Altitude: 20}, &cfg)
	_ = StepsToPosition(units.MotorPosition{AzimuthSteps: 5, AltitudeSteps: 6}, &cfg)
	if cfg != before {
		t.Errorf("config mutated: %+v -> %+v", before, cfg)
	}
}
