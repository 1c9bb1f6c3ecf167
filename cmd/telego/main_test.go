package main

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cjeanneret/TeleGo/internal/config"
	"github.com/cjeanneret/TeleGo/internal/hw/gpio"
	"github.com/cjeanneret/TeleGo/internal/hw/stepper"
	"github.com/cjeanneret/TeleGo/internal/logic/astro"
	"github.com/cjeanneret/TeleGo/internal/logic/motion"
	"github.com/cjeanneret/TeleGo/internal/logic/tracking"
)

func ptr(v float64) *float64 { return &v }

// ---------- validateCLIOverrides ----------

func TestValidateCLIOverrides_Unset(t *testing.T) {
	if err := validateCLIOverrides(overrides{}); err != nil {
		t.Errorf("unset overrides should be valid (use config), got: %v", err)
	}
}

func TestValidateCLIOverrides_ValidBoundary(t *testing.T) {
	cases := []struct {
		name string
		o    overrides
	}{
		{"equator", overrides{LatitudeDeg: ptr(0)}},
		{"north_pole", overrides{LatitudeDeg: ptr(90)}},
		{"south_pole", overrides{LatitudeDeg: ptr(-90)}},
		{"greenwich", overrides{LongitudeDeg: ptr(0)}},
		{"date_line_east", overrides{LongitudeDeg: ptr(180)}},
		{"date_line_west", overrides{LongitudeDeg: ptr(-180)}},
		{"both", overrides{LatitudeDeg: ptr(48.85), LongitudeDeg: ptr(2.35)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validateCLIOverrides(tc.o); err != nil {
				t.Errorf("expected valid, got: %v", err)
			}
		})
	}
}

func TestValidateCLIOverrides_OutOfRange(t *testing.T) {
	cases := []struct {
		name string
		o    overrides
	}{
		{"latitude_too_large", overrides{LatitudeDeg: ptr(90.1)}},
		{"latitude_too_small", overrides{LatitudeDeg: ptr(-91)}},
		{"longitude_too_large", overrides{LongitudeDeg: ptr(181)}},
		{"longitude_too_small", overrides{LongitudeDeg: ptr(-200)}},
		{"latitude_+Inf", overrides{LatitudeDeg: ptr(math.Inf(1))}},
		{"longitude_-Inf", overrides{LongitudeDeg: ptr(math.Inf(-1))}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validateCLIOverrides(tc.o); err == nil {
				t.Error("expected error for out-of-range value, got nil")
			}
		})
	}
}

func TestFlagValue(t *testing.T) {
	if flagValue(math.NaN()) != nil {
		t.Error("NaN should map to nil")
	}
	if v := flagValue(0); v == nil || *v != 0 {
		t.Errorf("flagValue(0) = %v, want pointer to 0", v)
	}
}

// ---------- webPortFlag ----------

func TestWebPortFlag_EmptyString(t *testing.T) {
	w := &webPortFlag{defaultPort: 8080}
	if err := w.Set(""); err != nil {
		t.Fatalf("Set(\"\") error: %v", err)
	}
	if w.port() != 8080 {
		t.Errorf("expected default port 8080, got %d", w.port())
	}
}

func TestWebPortFlag_ValidPorts(t *testing.T) {
	cases := []struct {
		input string
		want  int
	}{
		{"8080", 8080},
		{"1", 1},
		{"65535", 65535},
		{"3000", 3000},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			w := &webPortFlag{defaultPort: 8080}
			if err := w.Set(tc.input); err != nil {
				t.Fatalf("Set(%q) error: %v", tc.input, err)
			}
			if w.port() != tc.want {
				t.Errorf("port() = %d, want %d", w.port(), tc.want)
			}
		})
	}
}

func TestWebPortFlag_InvalidPorts(t *testing.T) {
	cases := []string{"0", "65536", "-1", "abc", "8080.5"}
	for _, input := range cases {
		t.Run(input, func(t *testing.T) {
			w := &webPortFlag{defaultPort: 8080}
			if err := w.Set(input); err == nil {
				t.Errorf("Set(%q) should fail, got nil", input)
			}
		})
	}
}

func TestWebPortFlag_String(t *testing.T) {
	w := &webPortFlag{val: 0}
	if s := w.String(); s != "0" {
		t.Errorf("String() = %q, want \"0\"", s)
	}
	w.val = 9090
	if s := w.String(); s != "9090" {
		t.Errorf("String() = %q, want \"9090\"", s)
	}
}

// ---------- applyOverrides ----------

func newTestConfig() *config.Config {
	cfg := &config.Config{
		AzimuthStepper: config.StepperConfig{
			StepPin: 17, DirPin: 27, EnablePin: 5,
			StepsPerRev: 200, Microstepping: 16, GearRatio: 100,
		},
		AltitudeStepper: config.StepperConfig{
			StepPin: 22, DirPin: 23, EnablePin: 6,
			StepsPerRev: 200, Microstepping: 16, GearRatio: 100,
		},
		Defaults: config.DefaultsConfig{
			MoveSpeedMs:     2,
			TrackIntervalMs: 1000,
			AzimuthWrap:     config.AzimuthWrapShortest,
			MockGPIO:        true,
		},
	}
	cfg.SetLatitude(45)
	cfg.Observer.LongitudeDeg = 5
	return cfg
}

func TestApplyOverrides_Set(t *testing.T) {
	cfg := newTestConfig()
	applyOverrides(cfg, overrides{LatitudeDeg: ptr(-33.87), LongitudeDeg: ptr(151.21)})

	if cfg.Latitude() != -33.87 {
		t.Errorf("Latitude = %v, want -33.87", cfg.Latitude())
	}
	if cfg.Longitude() != 151.21 {
		t.Errorf("Longitude = %v, want 151.21", cfg.Longitude())
	}
}

func TestApplyOverrides_ZeroIsApplied(t *testing.T) {
	cfg := newTestConfig()
	applyOverrides(cfg, overrides{LatitudeDeg: ptr(0)})

	if cfg.Latitude() != 0 {
		t.Errorf("Latitude = %v, want 0 (equator is a valid override)", cfg.Latitude())
	}
	if cfg.Longitude() != 5 {
		t.Errorf("Longitude changed: %v", cfg.Longitude())
	}
}

func TestApplyOverrides_UnsetLeavesUnchanged(t *testing.T) {
	cfg := newTestConfig()
	applyOverrides(cfg, overrides{})

	if cfg.Latitude() != 45 || cfg.Longitude() != 5 {
		t.Errorf("location changed: %v/%v", cfg.Latitude(), cfg.Longitude())
	}
}

// ---------- applyOverridesToCopy ----------

func TestApplyOverridesToCopy_OriginalUnmutated(t *testing.T) {
	cfg := newTestConfig()

	cp := applyOverridesToCopy(cfg, overrides{LatitudeDeg: ptr(10)})

	if cfg.Latitude() != 45 {
		t.Errorf("original mutated: Latitude = %v, want 45", cfg.Latitude())
	}
	if cp.Latitude() != 10 {
		t.Errorf("copy Latitude = %v, want 10", cp.Latitude())
	}
	if cp == cfg {
		t.Error("applyOverridesToCopy should return a new pointer, got same address")
	}
}

func TestApplyOverridesToCopy_PreservesNestedFields(t *testing.T) {
	cfg := newTestConfig()
	cp := applyOverridesToCopy(cfg, overrides{LongitudeDeg: ptr(100)})

	if cp.AzimuthStepper.StepsPerRev != cfg.AzimuthStepper.StepsPerRev {
		t.Errorf("AzimuthStepper.StepsPerRev not preserved")
	}
	if cp.AltitudeStepper.Microstepping != cfg.AltitudeStepper.Microstepping {
		t.Errorf("AltitudeStepper.Microstepping not preserved")
	}
	if cp.Defaults.AzimuthWrap != cfg.Defaults.AzimuthWrap {
		t.Errorf("AzimuthWrap not preserved")
	}
}

// ---------- targetFromFlags ----------

func TestTargetFromFlags(t *testing.T) {
	nan := math.NaN()

	star, err := targetFromFlags("Deneb", nan, nan)
	if err != nil || star.Name != "Deneb" {
		t.Errorf("catalog target = %+v, %v", star, err)
	}

	star, err = targetFromFlags("", 83.82, -5.39)
	if err != nil {
		t.Fatalf("coordinates: %v", err)
	}
	if star.RA != 83.82 || star.Dec != -5.39 {
		t.Errorf("coordinates = %v/%v, want 83.82/-5.39", star.RA, star.Dec)
	}

	bad := []struct {
		name    string
		target  string
		ra, dec float64
	}{
		{"nothing", "", nan, nan},
		{"both", "Vega", 1, 2},
		{"ra_only", "", 10, nan},
		{"unknown", "Nibiru", nan, nan},
	}
	for _, tc := range bad {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := targetFromFlags(tc.target, tc.ra, tc.dec); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

// ---------- executeGoto ----------

func newTestTracker(t *testing.T, cfg *config.Config) *tracking.Tracker {
	t.Helper()
	g := gpio.NewMockDriver()
	az := stepper.NewStepper(g, stepperConfig("azimuth", cfg.AzimuthStepper, time.Nanosecond))
	alt := stepper.NewStepper(g, stepperConfig("altitude", cfg.AltitudeStepper, time.Nanosecond))
	opts := tracking.OptionsFromConfig(cfg)
	opts.MinAltitude = -90
	// One step per degree keeps the simulated slews short.
	opts.Telescope.StepsPerDegreeAzimuth = 1
	opts.Telescope.StepsPerDegreeAltitude = 1
	opts.Telescope.AzimuthGearRatio = 1
	opts.Telescope.AltitudeGearRatio = 1
	return tracking.NewTracker(motion.NewController(az, alt), opts)
}

func TestExecuteGoto_PointsOnce(t *testing.T) {
	cfg := newTestConfig()
	tr := newTestTracker(t, cfg)
	star, _ := astro.LookupStar("Vega")

	var reports []tracking.Pointing
	err := executeGoto(context.Background(), tr, star, false, cfg, func(p tracking.Pointing) {
		reports = append(reports, p)
	})
	if err != nil {
		t.Fatalf("executeGoto: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(reports))
	}
	if reports[0].Target != "Vega" {
		t.Errorf("Target = %q, want Vega", reports[0].Target)
	}
}

func TestExecuteGoto_TrackStopsOnCancel(t *testing.T) {
	cfg := newTestConfig()
	cfg.Defaults.TrackIntervalMs = 1
	tr := newTestTracker(t, cfg)
	star, _ := astro.LookupStar("Polaris")

	ctx, cancel := context.WithCancel(context.Background())
	n := 0
	err := executeGoto(ctx, tr, star, true, cfg, func(tracking.Pointing) {
		n++
		if n == 2 {
			cancel()
		}
	})
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

// ---------- printCatalog ----------

func TestPrintCatalog(t *testing.T) {
	var buf bytes.Buffer
	printCatalog(&buf)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != len(astro.Stars()) {
		t.Errorf("lines = %d, want %d", len(lines), len(astro.Stars()))
	}
	if !strings.Contains(buf.String(), "Vega") {
		t.Error("catalog output should list Vega")
	}
}

// ---------- run ----------

const testMountYAML = `
observer:
  latitude_deg: 45
  longitude_deg: 5
azimuth_stepper:
  step_pin: 17
  dir_pin: 27
  gear_ratio: 0.01
altitude_stepper:
  step_pin: 22
  dir_pin: 23
  gear_ratio: 0.01
defaults:
  move_speed_ms: 1
  min_altitude_deg: -90
  debug_level: 0
  mock_gpio: true
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "configs")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "mount.yaml")
	if err := os.WriteFile(path, []byte(testMountYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRun_PointsOnce(t *testing.T) {
	err := run(runOptions{
		cfgPath:  writeTestConfig(t),
		target:   "Vega",
		raDeg:    math.NaN(),
		decDeg:   math.NaN(),
		registry: prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestRun_ReturnsErrors(t *testing.T) {
	nan := math.NaN()
	cfgPath := writeTestConfig(t)
	cases := []struct {
		name string
		opts runOptions
		want string
	}{
		{"bad_path", runOptions{cfgPath: "../etc/mount.yaml", raDeg: nan, decDeg: nan}, "invalid config path"},
		{"missing_file", runOptions{cfgPath: filepath.Join(filepath.Dir(cfgPath), "absent.yaml"), raDeg: nan, decDeg: nan}, "load config failed"},
		{"bad_override", runOptions{cfgPath: cfgPath, target: "Vega", raDeg: nan, decDeg: nan, overrides: overrides{LatitudeDeg: ptr(91)}}, "invalid CLI override"},
		{"no_target", runOptions{cfgPath: cfgPath, raDeg: nan, decDeg: nan}, "invalid target"},
		// Fails after the motors are enabled, so the deferred cleanup runs.
		{"unknown_align_star", runOptions{cfgPath: cfgPath, target: "Vega", align: "Nibiru", raDeg: nan, decDeg: nan, registry: prometheus.NewRegistry()}, "align"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := run(tc.opts)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("run() = %v, want error containing %q", err, tc.want)
			}
		})
	}
}
