package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cjeanneret/TeleGo/internal/config"
	"github.com/cjeanneret/TeleGo/internal/debug"
	"github.com/cjeanneret/TeleGo/internal/hw/gpio"
	"github.com/cjeanneret/TeleGo/internal/hw/stepper"
	"github.com/cjeanneret/TeleGo/internal/logic/astro"
	"github.com/cjeanneret/TeleGo/internal/logic/motion"
	"github.com/cjeanneret/TeleGo/internal/logic/tracking"
	"github.com/cjeanneret/TeleGo/internal/metrics"
	"github.com/cjeanneret/TeleGo/internal/web"
)

// overrides carries observer settings given on the command line. Nil means
// "use config".
type overrides struct {
	LatitudeDeg  *float64
	LongitudeDeg *float64
}

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	target := flag.String("target", "", "catalog star to point at (e.g. Vega)")
	raDeg := flag.Float64("ra_deg", math.NaN(), "target right ascension in degrees [0, 360)")
	decDeg := flag.Float64("dec_deg", math.NaN(), "target declination in degrees [-90, 90]")
	track := flag.Bool("track", false, "keep tracking the target until interrupted")
	align := flag.String("align", "", "declare the mount centered on this catalog star before moving")
	latitudeDeg := flag.Float64("latitude_deg", math.NaN(), "override observer latitude in degrees")
	longitudeDeg := flag.Float64("longitude_deg", math.NaN(), "override observer longitude in degrees, east positive")
	listStars := flag.Bool("list", false, "print the star catalog and exit")
	flag.Parse()

	if *listStars {
		printCatalog(os.Stdout)
		return
	}

	opts := runOptions{
		cfgPath:   *cfgPath,
		webPort:   webPort.port(),
		target:    *target,
		raDeg:     *raDeg,
		decDeg:    *decDeg,
		track:     *track,
		align:     *align,
		overrides: overrides{LatitudeDeg: flagValue(*latitudeDeg), LongitudeDeg: flagValue(*longitudeDeg)},
	}
	if err := run(opts); err != nil {
		log.Fatal(err)
	}
}

// runOptions holds the parsed command line.
type runOptions struct {
	cfgPath   string
	webPort   int
	target    string
	raDeg     float64
	decDeg    float64
	track     bool
	align     string
	overrides overrides
	registry  prometheus.Registerer // nil means the default registry
}

// run wires the mount and serves or points it. It returns instead of
// exiting so deferred motor and GPIO cleanup always runs.
func run(o runOptions) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := config.ValidateConfigPath(o.cfgPath); err != nil {
		return fmt.Errorf("invalid config path: %w", err)
	}
	cfg, err := config.Load(o.cfgPath)
	if err != nil {
		return fmt.Errorf("load config failed: %w", err)
	}

	if err := validateCLIOverrides(o.overrides); err != nil {
		return fmt.Errorf("invalid CLI override: %w", err)
	}
	cfg = applyOverridesToCopy(cfg, o.overrides)

	// Resolve the target before touching hardware.
	var star astro.Star
	if o.webPort == 0 {
		if star, err = targetFromFlags(o.target, o.raDeg, o.decDeg); err != nil {
			return fmt.Errorf("invalid target: %w", err)
		}
	}

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", o.cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.PrintStruct("Observer", cfg.Observer)

	// Initialize GPIO driver
	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		return fmt.Errorf("init GPIO failed: %w", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()

	// Initialize stepper motors
	debug.Step(2, "Initializing stepper motors")
	stepDelay := cfg.MoveSpeed() / 2
	azMotor := stepper.NewStepper(gpioDriver, stepperConfig("azimuth", cfg.AzimuthStepper, stepDelay))
	debug.PrintStruct("Azimuth stepper config", cfg.AzimuthStepper)
	altMotor := stepper.NewStepper(gpioDriver, stepperConfig("altitude", cfg.AltitudeStepper, stepDelay))
	debug.PrintStruct("Altitude stepper config", cfg.AltitudeStepper)

	debug.Step(3, "Creating motion controller and tracker")
	motionCtrl := motion.NewController(azMotor, altMotor)
	if err := motionCtrl.EnableMotors(); err != nil {
		return fmt.Errorf("enable motors failed: %w", err)
	}
	defer func() {
		if err := motionCtrl.DisableMotors(); err != nil {
			log.Printf("disable motors failed: %v", err)
		}
	}()

	collector, err := metrics.NewCollector(o.registry)
	if err != nil {
		return fmt.Errorf("register metrics failed: %w", err)
	}
	opts := tracking.OptionsFromConfig(cfg)
	opts.Metrics = collector
	tracker := tracking.NewTracker(motionCtrl, opts)

	if o.align != "" {
		ref, err := astro.LookupStar(o.align)
		if err != nil {
			return fmt.Errorf("align: %w", err)
		}
		tracker.Align(ref)
	}

	var broadcaster *web.StatusBroadcaster
	report := func(p tracking.Pointing) {
		debug.Info("%s at LST %s: az=%.3f° alt=%.3f° steps=%d/%d",
			p.Target, astro.FormatRA(p.LST), p.Horizontal.Azimuth, p.Horizontal.Altitude,
			p.Steps.AzimuthSteps, p.Steps.AltitudeSteps)
		if broadcaster != nil {
			broadcaster.BroadcastPointing(p)
		}
	}

	runGoto := func(ctx context.Context, star astro.Star, track bool) error {
		return executeGoto(ctx, tracker, star, track, cfg, report)
	}

	if o.webPort > 0 {
		webAddr := fmt.Sprintf(":%d", o.webPort)
		broadcaster = web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))

		formDefaults := web.FormConfig{
			LatitudeDeg:     cfg.Latitude(),
			LongitudeDeg:    cfg.Longitude(),
			TrackIntervalMs: cfg.Defaults.TrackIntervalMs,
			Stars:           astro.StarNames(),
		}
		srv := web.NewServer(webAddr, broadcaster, runGoto, tracker.Current, formDefaults, collector)
		srv.SetJog(motionCtrl.Jog)
		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("web server: %w", err)
		}
		return nil
	}

	if err := runGoto(ctx, star, o.track); err != nil && ctx.Err() == nil {
		debug.Error(err)
		return fmt.Errorf("goto failed: %w", err)
	}
	return nil
}


// executeGoto points the mount at star once, or keeps it there when track is
// set, using the tracking interval from cfg.
func executeGoto(
	ctx context.Context,
	tracker *tracking.Tracker,
	star astro.Star,
	track bool,
	cfg *config.Config,
	report func(tracking.Pointing),
) error {
	debug.Section("Pointing " + star.Name)
	debug.Value("RA", astro.FormatRA(star.RA))
	debug.Value("Dec", astro.FormatDec(star.Dec))

	if track {
		return tracker.Track(ctx, star, cfg.TrackInterval(), report)
	}
	p, err := tracker.Point(ctx, star)
	if err != nil {
		return err
	}
	report(p)
	debug.Summary("On target: " + star.Name)
	return nil
}

// targetFromFlags builds the goto target from -target or -ra_deg/-dec_deg,
// with the same rules as POST /goto.
func targetFromFlags(name string, ra, dec float64) (astro.Star, error) {
	req := web.GotoRequest{Target: name, RADeg: flagValue(ra), DecDeg: flagValue(dec)}
	if err := web.ValidateRequest(req); err != nil {
		return astro.Star{}, err
	}
	return web.ResolveTarget(req)
}

func stepperConfig(name string, s config.StepperConfig, delay time.Duration) stepper.Config {
	return stepper.Config{
		Name:          name,
		StepPin:       s.StepPin,
		DirPin:        s.DirPin,
		EnablePin:     s.EnablePin,
		StepsPerRev:   s.StepsPerRev,
		Microstepping: s.Microstepping,
		StepDelay:     delay,
	}
}

// flagValue maps the NaN "not set" default of a float flag to nil.
func flagValue(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// validateCLIOverrides checks that given CLI overrides are within valid ranges.
func validateCLIOverrides(o overrides) error {
	if o.LatitudeDeg != nil {
		if v := *o.LatitudeDeg; math.IsInf(v, 0) || v < -90 || v > 90 {
			return fmt.Errorf("latitude_deg must be between -90 and 90, got %g", v)
		}
	}
	if o.LongitudeDeg != nil {
		if v := *o.LongitudeDeg; math.IsInf(v, 0) || v < -180 || v > 180 {
			return fmt.Errorf("longitude_deg must be between -180 and 180, got %g", v)
		}
	}
	return nil
}

// applyOverrides mutates cfg with overrides. Only set values are applied.
func applyOverrides(cfg *config.Config, o overrides) {
	if o.LatitudeDeg != nil {
		cfg.SetLatitude(*o.LatitudeDeg)
	}
	if o.LongitudeDeg != nil {
		cfg.Observer.LongitudeDeg = *o.LongitudeDeg
	}
}

// applyOverridesToCopy returns a new config with overrides applied.
func applyOverridesToCopy(baseCfg *config.Config, o overrides) *config.Config {
	cfg := baseCfg.Clone()
	applyOverrides(cfg, o)
	return cfg
}

func printCatalog(w io.Writer) {
	for _, s := range astro.Stars() {
		fmt.Fprintf(w, "%-12s %14s %14s %6.2f\n", s.Name, astro.FormatRA(s.RA), astro.FormatDec(s.Dec), s.Mag)
	}
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
