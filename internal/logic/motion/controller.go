package motion

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/cjeanneret/TeleGo/internal/debug"
	"github.com/cjeanneret/TeleGo/internal/hw/stepper"
	"github.com/cjeanneret/TeleGo/internal/logic/units"
)

// Controller drives the azimuth and altitude axes. It sits between the
// pointing logic, which speaks in absolute step counts, and the steppers,
// which only know relative moves.
type Controller struct {
	mu       sync.Mutex // one move at a time
	azimuth  *stepper.Stepper
	altitude *stepper.Stepper
}

// Axis names accepted by Jog.
const (
	AxisAzimuth  = "azimuth"
	AxisAltitude = "altitude"
)

// ErrUnknownAxis is returned by Jog for an axis name it does not know.
var ErrUnknownAxis = errors.New("unknown axis")

func NewController(azimuth, altitude *stepper.Stepper) *Controller {
	return &Controller{
		azimuth:  azimuth,
		altitude: altitude,
	}
}

// MoveAzimuth moves the azimuth axis by steps, relative to where it is.
func (c *Controller) MoveAzimuth(ctx context.Context, steps int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.azimuth.MoveStepsContext(ctx, steps)
}

// MoveAltitude moves the altitude axis by steps, relative to where it is.
func (c *Controller) MoveAltitude(ctx context.Context, steps int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.altitude.MoveStepsContext(ctx, steps)
}

// Jog moves the axis named "azimuth" or "altitude" by steps. It is the
// manual nudge used to center a star before Align.
func (c *Controller) Jog(ctx context.Context, axis string, steps int) error {
	switch axis {
	case AxisAzimuth:
		return c.MoveAzimuth(ctx, steps)
	case AxisAltitude:
		return c.MoveAltitude(ctx, steps)
	}
	return fmt.Errorf("%w: %q", ErrUnknownAxis, axis)
}

// Current returns the absolute step counts of both axes.
func (c *Controller) Current() units.MotorPosition {
	return units.MotorPosition{
		AzimuthSteps:  units.Steps(c.azimuth.Position()),
		AltitudeSteps: units.Steps(c.altitude.Position()),
	}
}

// Sync declares the mount to be at p without moving it. This is how the
// zero reference is established after homing or alignment on a star.
func (c *Controller) Sync(p units.MotorPosition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.azimuth.SetPosition(int64(p.AzimuthSteps))
	c.altitude.SetPosition(int64(p.AltitudeSteps))
	debug.Verbose("Sync: az=%d alt=%d steps", p.AzimuthSteps, p.AltitudeSteps)
}

// GoTo moves both axes to the absolute step counts in target. The axes run
// concurrently; if one fails or ctx is cancelled, the other stops at its
// next pulse. It returns the number of steps actually moved per axis.
func (c *Controller) GoTo(ctx context.Context, target units.MotorPosition) (units.MotorPosition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	from := c.Current()
	dAz := int64(target.AzimuthSteps) - int64(from.AzimuthSteps)
	dAlt := int64(target.AltitudeSteps) - int64(from.AltitudeSteps)
	debug.Slew(from.AzimuthSteps, from.AltitudeSteps, target.AzimuthSteps, target.AltitudeSteps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := c.azimuth.MoveStepsContext(gctx, int(dAz)); err != nil {
			return fmt.Errorf("azimuth axis: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := c.altitude.MoveStepsContext(gctx, int(dAlt)); err != nil {
			return fmt.Errorf("altitude axis: %w", err)
		}
		return nil
	})
	err := g.Wait()

	to := c.Current()
	moved := units.MotorPosition{
		AzimuthSteps:  to.AzimuthSteps - from.AzimuthSteps,
		AltitudeSteps: to.AltitudeSteps - from.AltitudeSteps,
	}
	return moved, err
}

// EnableMotors energizes both drivers. Both are attempted even if one fails.
func (c *Controller) EnableMotors() error {
	return multierr.Combine(
		c.azimuth.Enable(),
		c.altitude.Enable(),
	)
}

// DisableMotors releases both drivers. Both are attempted even if one fails.
func (c *Controller) DisableMotors() error {
	return multierr.Combine(
		c.azimuth.Disable(),
		c.altitude.Disable(),
	)
}
