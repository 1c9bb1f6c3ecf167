package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes caps the size of a configuration file.
const MaxConfigFileBytes = 1 << 20

// Azimuth wrap policies applied by the tracker before converting to steps.
const (
	AzimuthWrapShortest = "shortest" // nearest equivalent angle to the current pointing
	AzimuthWrapModulo   = "wrap"     // fold into [0, 360)
	AzimuthWrapNone     = "none"     // raw transform output
)

// ObserverConfig locates the mount on Earth.
type ObserverConfig struct {
	Name         string   `yaml:"name"`
	LatitudeDeg  *float64 `yaml:"latitude_deg"`  // required, north positive
	LongitudeDeg float64  `yaml:"longitude_deg"` // east positive
}

// StepperConfig holds the configuration for one axis motor.
type StepperConfig struct {
	StepPin       int     `yaml:"step_pin"`
	DirPin        int     `yaml:"dir_pin"`
	EnablePin     int     `yaml:"enable_pin"` // A4988 ENABLE pin (BCM). 0 = not used. Active LOW.
	StepsPerRev   int     `yaml:"steps_per_rev"`
	Microstepping int     `yaml:"microstepping"`
	GearRatio     float64 `yaml:"gear_ratio"` // motor turns per telescope axis turn
	HomeDeg       float64 `yaml:"home_deg"`   // axis angle when the step counter reads zero
}

// DefaultsConfig contains generic parameters (speed, tracking, etc.).
type DefaultsConfig struct {
	MoveSpeedMs     int     `yaml:"move_speed_ms"`     // delay between motor steps
	TrackIntervalMs int     `yaml:"track_interval_ms"` // delay between two tracking corrections
	MinAltitudeDeg  float64 `yaml:"min_altitude_deg"`  // horizon limit
	AzimuthWrap     string  `yaml:"azimuth_wrap"`      // shortest, wrap or none
	DebugLevel      int     `yaml:"debug_level"`       // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO        bool    `yaml:"mock_gpio"`         // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Observer        ObserverConfig `yaml:"observer"`
	AzimuthStepper  StepperConfig  `yaml:"azimuth_stepper"`
	AltitudeStepper StepperConfig  `yaml:"altitude_stepper"`
	Defaults        DefaultsConfig `yaml:"defaults"`
}

// ValidateConfigPath accepts only .yaml files that live directly in a
// directory named "configs" and rejects any path containing "..".
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if strings.Contains(path, "..") {
		return fmt.Errorf("config path %q must not contain \"..\"", path)
	}
	clean := filepath.Clean(path)
	if ext := filepath.Ext(clean); ext != ".yaml" {
		return fmt.Errorf("config path %q: extension must be .yaml, got %q", path, ext)
	}
	if parent := filepath.Base(filepath.Dir(clean)); parent != "configs" {
		return fmt.Errorf("config path %q must be inside a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if len(data) > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file exceeds %d bytes", MaxConfigFileBytes)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	for _, s := range []*StepperConfig{&c.AzimuthStepper, &c.AltitudeStepper} {
		if s.StepsPerRev <= 0 {
			s.StepsPerRev = 200
		}
		if s.Microstepping <= 0 {
			s.Microstepping = 16
		}
		if s.GearRatio == 0 {
			s.GearRatio = 100
		}
	}
	if c.Defaults.MoveSpeedMs <= 0 {
		c.Defaults.MoveSpeedMs = 2 // reasonable default
	}
	if c.Defaults.TrackIntervalMs <= 0 {
		c.Defaults.TrackIntervalMs = 1000
	}
	if c.Defaults.AzimuthWrap == "" {
		c.Defaults.AzimuthWrap = AzimuthWrapShortest
	}
}

// Validate checks ranges after defaults have been applied.
func (c *Config) Validate() error {
	if c.Observer.LatitudeDeg == nil {
		return errors.New("observer.latitude_deg is required")
	}
	if err := checkRange("observer.latitude_deg", *c.Observer.LatitudeDeg, -90, 90); err != nil {
		return err
	}
	if err := checkRange("observer.longitude_deg", c.Observer.LongitudeDeg, -180, 180); err != nil {
		return err
	}
	if err := checkStepper("azimuth_stepper", c.AzimuthStepper); err != nil {
		return err
	}
	if err := checkStepper("altitude_stepper", c.AltitudeStepper); err != nil {
		return err
	}
	if err := checkRange("defaults.min_altitude_deg", c.Defaults.MinAltitudeDeg, -90, 90); err != nil {
		return err
	}
	switch c.Defaults.AzimuthWrap {
	case AzimuthWrapShortest, AzimuthWrapModulo, AzimuthWrapNone:
	default:
		return fmt.Errorf("defaults.azimuth_wrap must be shortest, wrap or none, got %q", c.Defaults.AzimuthWrap)
	}
	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	return nil
}

func checkStepper(name string, s StepperConfig) error {
	if s.GearRatio <= 0 || math.IsNaN(s.GearRatio) || math.IsInf(s.GearRatio, 0) {
		return fmt.Errorf("%s.gear_ratio must be > 0, got %g", name, s.GearRatio)
	}
	return checkRange(name+".home_deg", s.HomeDeg, -360, 360)
}

func checkRange(name string, v, lo, hi float64) error {
	if math.IsNaN(v) || v < lo || v > hi {
		return fmt.Errorf("%s must be between %g and %g, got %g", name, lo, hi, v)
	}
	return nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	cp := *c
	if c.Observer.LatitudeDeg != nil {
		lat := *c.Observer.LatitudeDeg
		cp.Observer.LatitudeDeg = &lat
	}
	return &cp
}

// Latitude returns the observer latitude in degrees (0 when unset).
func (c *Config) Latitude() float64 {
	if c.Observer.LatitudeDeg == nil {
		return 0
	}
	return *c.Observer.LatitudeDeg
}

// SetLatitude sets the observer latitude in degrees.
func (c *Config) SetLatitude(deg float64) {
	c.Observer.LatitudeDeg = &deg
}

// Longitude returns the observer longitude in degrees, east positive.
func (c *Config) Longitude() float64 {
	return c.Observer.LongitudeDeg
}

// MoveSpeed returns the duration between two motor steps.
func (c *Config) MoveSpeed() time.Duration {
	return time.Duration(c.Defaults.MoveSpeedMs) * time.Millisecond
}

// TrackInterval returns the delay between two tracking corrections.
func (c *Config) TrackInterval() time.Duration {
	return time.Duration(c.Defaults.TrackIntervalMs) * time.Millisecond
}

// MinAltitudeDeg returns the lowest altitude the mount may be pointed at.
func (c *Config) MinAltitudeDeg() float64 {
	return c.Defaults.MinAltitudeDeg
}

// MicrostepsPerRev returns the driver pulses for one motor revolution.
func (s StepperConfig) MicrostepsPerRev() int {
	return s.StepsPerRev * s.Microstepping
}
