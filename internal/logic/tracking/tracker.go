package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cjeanneret/TeleGo/internal/config"
	"github.com/cjeanneret/TeleGo/internal/debug"
	"github.com/cjeanneret/TeleGo/internal/logic/astro"
	"github.com/cjeanneret/TeleGo/internal/logic/geometry"
	"github.com/cjeanneret/TeleGo/internal/logic/motion"
	"github.com/cjeanneret/TeleGo/internal/logic/units"
	"github.com/cjeanneret/TeleGo/internal/metrics"
)

// ErrBelowHorizon is returned when a target sits under the altitude limit.
var ErrBelowHorizon = errors.New("target below altitude limit")

// Pointing modes, used as metric labels.
const (
	ModeGoTo  = "goto"
	ModeTrack = "track"
)

// Options configures a Tracker.
type Options struct {
	LatitudeDeg  float64
	LongitudeDeg float64 // east positive
	Telescope    geometry.TelescopeConfig

	// Axis angles, in the transform's frame, at which the step counters read
	// zero. A mount parked level and facing north has HomeAzimuth 180.
	HomeAzimuth  units.Degrees
	HomeAltitude units.Degrees

	MinAltitude units.Degrees
	AzimuthWrap string // config.AzimuthWrap*; empty means shortest

	Now     func() time.Time // defaults to time.Now
	Metrics *metrics.Collector
}

// OptionsFromConfig maps the YAML configuration onto tracker options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		LatitudeDeg:  cfg.Latitude(),
		LongitudeDeg: cfg.Longitude(),
		Telescope:    geometry.NewTelescopeConfig(cfg),
		HomeAzimuth:  units.Degrees(cfg.AzimuthStepper.HomeDeg),
		HomeAltitude: units.Degrees(cfg.AltitudeStepper.HomeDeg),
		MinAltitude:  units.Degrees(cfg.MinAltitudeDeg()),
		AzimuthWrap:  cfg.Defaults.AzimuthWrap,
	}
}

// Pointing reports one computation of where a target is and where the
// axes were sent.
type Pointing struct {
	Target     string              `json:"target"`
	RA         units.Degrees       `json:"ra_deg"`
	Dec        units.Degrees       `json:"dec_deg"`
	At         time.Time           `json:"at"`
	LST        units.Degrees       `json:"lst_deg"`
	Horizontal units.Position      `json:"horizontal"` // transform output
	Steps      units.MotorPosition `json:"steps"`      // absolute counts commanded
	Moved      units.MotorPosition `json:"moved"`      // steps actually issued
}

// Tracker turns catalog targets into axis moves: sidereal time from the
// clock, horizontal position from the transform, then step counts for the
// motion controller.
type Tracker struct {
	opts   Options
	motion *motion.Controller
}

func NewTracker(m *motion.Controller, opts Options) *Tracker {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.AzimuthWrap == "" {
		opts.AzimuthWrap = config.AzimuthWrapShortest
	}
	return &Tracker{opts: opts, motion: m}
}

// Locate computes the horizontal position of star at time at, without
// moving anything.
func (t *Tracker) Locate(star astro.Star, at time.Time) Pointing {
	lst := astro.LocalSiderealTime(at, t.opts.LongitudeDeg)
	pos := astro.EquatorialToHorizontal(star.RA, star.Dec, units.Degrees(t.opts.LatitudeDeg), lst)
	debug.Verbose("%s: LST=%s (%.4f°)", star.Name, astro.FormatRA(lst), lst)
	return Pointing{
		Target:     star.Name,
		RA:         star.RA,
		Dec:        star.Dec,
		At:         at,
		LST:        lst,
		Horizontal: pos,
	}
}

// Point slews the mount onto star as it is now.
func (t *Tracker) Point(ctx context.Context, star astro.Star) (Pointing, error) {
	return t.point(ctx, star, ModeGoTo)
}

func (t *Tracker) point(ctx context.Context, star astro.Star, mode string) (Pointing, error) {
	p := t.Locate(star, t.opts.Now())
	if p.Horizontal.Altitude < t.opts.MinAltitude {
		t.opts.Metrics.ObserveHorizonRejection()
		return p, fmt.Errorf("%s at altitude %.2f° (limit %.2f°): %w",
			star.Name, p.Horizontal.Altitude, t.opts.MinAltitude, ErrBelowHorizon)
	}

	axis := t.toAxis(p.Horizontal)
	p.Steps = geometry.PositionToSteps(axis, &t.opts.Telescope)

	start := time.Now()
	moved, err := t.motion.GoTo(ctx, p.Steps)
	p.Moved = moved
	t.opts.Metrics.ObservePointing(mode, p.Horizontal.Azimuth, p.Horizontal.Altitude,
		int64(moved.AzimuthSteps), int64(moved.AltitudeSteps), time.Since(start))
	if err != nil {
		return p, fmt.Errorf("slew to %s: %w", star.Name, err)
	}

	debug.Pointing(star.Name, p.Horizontal.Azimuth, p.Horizontal.Altitude)
	return p, nil
}

// Track keeps the mount on star, correcting every interval until ctx is
// done. report, if non-nil, is called after each correction. Track returns
// ctx.Err() on cancellation, or the first pointing error.
func (t *Tracker) Track(ctx context.Context, star astro.Star, interval time.Duration, report func(Pointing)) error {
	if interval <= 0 {
		return fmt.Errorf("tracking interval must be > 0, got %v", interval)
	}
	debug.Info("Tracking %s every %v", star.Name, interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		p, err := t.point(ctx, star, ModeTrack)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}
		if report != nil {
			report(p)
		}
		debug.Live("%s corrected by az=%d alt=%d steps", star.Name, p.Moved.AzimuthSteps, p.Moved.AltitudeSteps)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Align declares that the mount is currently centered on star and resets
// the step counters to match. Nothing moves.
func (t *Tracker) Align(star astro.Star) Pointing {
	p := t.Locate(star, t.opts.Now())
	axis := t.axisFrame(p.Horizontal)
	axis.Azimuth = units.WrapAzimuth(axis.Azimuth)
	p.Steps = geometry.PositionToSteps(axis, &t.opts.Telescope)
	t.motion.Sync(p.Steps)
	debug.Info("Aligned on %s: az=%.4f° alt=%.4f°", star.Name, p.Horizontal.Azimuth, p.Horizontal.Altitude)
	return p
}

// Current returns the horizontal position the axes point at, from the step
// counters. Azimuth is folded into [0, 360).
func (t *Tracker) Current() units.Position {
	axis := geometry.StepsToPosition(t.motion.Current(), &t.opts.Telescope)
	return units.Position{
		Azimuth:  units.WrapAzimuth(axis.Azimuth + t.opts.HomeAzimuth),
		Altitude: axis.Altitude + t.opts.HomeAltitude,
	}
}

// Location returns the observer latitude and longitude in degrees.
func (t *Tracker) Location() (lat, lon float64) {
	return t.opts.LatitudeDeg, t.opts.LongitudeDeg
}

func (t *Tracker) axisFrame(pos units.Position) units.Position {
	return units.Position{
		Azimuth:  pos.Azimuth - t.opts.HomeAzimuth,
		Altitude: pos.Altitude - t.opts.HomeAltitude,
	}
}

// toAxis moves a transform position into the axis frame and applies the
// azimuth wrap policy against the current azimuth.
func (t *Tracker) toAxis(pos units.Position) units.Position {
	axis := t.axisFrame(pos)
	switch t.opts.AzimuthWrap {
	case config.AzimuthWrapModulo:
		axis.Azimuth = units.WrapAzimuth(axis.Azimuth)
	case config.AzimuthWrapNone:
	default:
		current := geometry.StepsToPosition(t.motion.Current(), &t.opts.Telescope)
		axis.Azimuth = units.NearestAzimuth(axis.Azimuth, current.Azimuth)
	}
	return axis
}
