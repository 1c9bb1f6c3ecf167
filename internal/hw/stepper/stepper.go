package stepper

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cjeanneret/TeleGo/internal/debug"
	"github.com/cjeanneret/TeleGo/internal/hw/gpio"
)

// Config holds the hardware configuration for a stepper motor.
type Config struct {
	Name          string // axis name used in logs
	StepPin       int
	DirPin        int
	EnablePin     int // A4988 ENABLE pin (BCM). 0 = not used. Active LOW (LOW=enabled).
	StepsPerRev   int
	Microstepping int
	StepDelay     time.Duration // delay per half-cycle of STEP pulse. Total step = 2*StepDelay.
}

// Stepper drives an A4988 in step/dir mode and keeps a signed count of the
// pulses it has issued.
type Stepper struct {
	gpio     gpio.Driver
	cfg      Config
	delay    time.Duration // delay between STEP pulse half-cycles
	position atomic.Int64
}

// NewStepper creates a new stepper motor controller.
// cfg.StepDelay: if 0, defaults to 1ms. For A4988, use cfg.Defaults.MoveSpeedMs/2 per half-cycle.
func NewStepper(g gpio.Driver, cfg Config) *Stepper {
	_ = g.SetupPin(cfg.StepPin, gpio.Output)
	_ = g.SetupPin(cfg.DirPin, gpio.Output)

	delay := cfg.StepDelay
	if delay <= 0 {
		delay = 1 * time.Millisecond
	}
	if cfg.Name == "" {
		cfg.Name = "stepper"
	}

	s := &Stepper{
		gpio:  g,
		cfg:   cfg,
		delay: delay,
	}

	// A4988 ENABLE: active LOW. LOW = enabled, HIGH = disabled.
	if cfg.EnablePin > 0 {
		_ = g.SetupPin(cfg.EnablePin, gpio.Output)
		_ = g.WritePin(cfg.EnablePin, gpio.Low) // enable by default
	}

	return s
}

// Name returns the axis name.
func (s *Stepper) Name() string {
	return s.cfg.Name
}

// Position returns the signed number of steps issued since the last SetPosition.
func (s *Stepper) Position() int64 {
	return s.position.Load()
}

// SetPosition redefines the current step count without moving the motor.
func (s *Stepper) SetPosition(p int64) {
	s.position.Store(p)
}

// MoveSteps moves the motor by a number of steps (positive or negative).
func (s *Stepper) MoveSteps(steps int) error {
	return s.MoveStepsContext(context.Background(), steps)
}

// MoveStepsContext is MoveSteps with cancellation checked between pulses.
// On cancellation the position reflects the pulses actually sent.
func (s *Stepper) MoveStepsContext(ctx context.Context, steps int) error {
	if steps == 0 {
		return nil
	}

	var dirLevel gpio.Level
	var direction string
	var inc int64
	if steps > 0 {
		dirLevel = gpio.High
		direction = "forward"
		inc = 1
	} else {
		dirLevel = gpio.Low
		direction = "backward"
		inc = -1
		steps = -steps
	}

	debug.Move(s.Name(), steps, direction)

	if err := s.gpio.WritePin(s.cfg.DirPin, dirLevel); err != nil {
		return err
	}

	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.stepPulse(); err != nil {
			return err
		}
		s.position.Add(inc)
	}
	return nil
}

func (s *Stepper) stepPulse() error {
	if err := s.gpio.WritePin(s.cfg.StepPin, gpio.High); err != nil {
		return err
	}
	time.Sleep(s.delay)
	if err := s.gpio.WritePin(s.cfg.StepPin, gpio.Low); err != nil {
		return err
	}
	time.Sleep(s.delay)
	return nil
}

// Enable turns on the motor driver (A4988 ENABLE=LOW). Motors hold position.
func (s *Stepper) Enable() error {
	if s.cfg.EnablePin <= 0 {
		return nil
	}
	return s.gpio.WritePin(s.cfg.EnablePin, gpio.Low)
}

// Disable turns off the motor driver (A4988 ENABLE=HIGH). Motors freewheel,
// the step count is no longer trustworthy until the next alignment.
func (s *Stepper) Disable() error {
	if s.cfg.EnablePin <= 0 {
		return nil
	}
	return s.gpio.WritePin(s.cfg.EnablePin, gpio.High)
}
