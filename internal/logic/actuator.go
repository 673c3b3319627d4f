package logic

import "time"

// ActuatorConfig is the static configuration of one actuator.
type ActuatorConfig struct {
	// Idle polarity of the extend and retract relay lines.
	UpIdle   bool
	DownIdle bool
	// Maximum run time per direction. 0 means unlimited.
	MaxExtend  time.Duration
	MaxRetract time.Duration
}

// relay is one output line with its idle polarity.
type relay struct {
	out  Output
	idle bool
}

// set drives the logical level: active means away from idle.
func (r relay) set(active bool) {
	r.out.Set(active != r.idle)
}

// Actuator runs the direction state machine of a bidirectional linear
// actuator driven by a relay pair.
//
// The actuator has no travel sensors so every motion is bounded by the
// configured maximum duration for its direction. Any new motion command while
// moving stops the actuator instead of reversing or continuing it; a second
// command from Stop is required to move again.
type Actuator struct {
	name string
	cfg  ActuatorConfig
	up   relay
	down relay

	dir       Direction
	startedAt Ticks
	limit     time.Duration // 0 when stopped or unlimited

	// Set on every transition, cleared by Tick.
	changed bool
	reason  Reason
}

// NewActuator creates an actuator in Stop with both relays at idle.
func NewActuator(name string, up, down Output, cfg ActuatorConfig) *Actuator {
	a := &Actuator{
		name: name,
		cfg:  cfg,
		up:   relay{out: up, idle: cfg.UpIdle},
		down: relay{out: down, idle: cfg.DownIdle},
	}
	a.drive(false, false)
	return a
}

// Name returns the actuator name.
func (a *Actuator) Name() string {
	return a.name
}

// Config returns the static configuration.
func (a *Actuator) Config() ActuatorConfig {
	return a.cfg
}

// Direction returns the current direction.
func (a *Actuator) Direction() Direction {
	return a.dir
}

// Set applies a direction command and returns the direction actually applied.
// Callers must treat the returned value as ground truth.
func (a *Actuator) Set(d Direction, now Ticks) Direction {
	if d == Stop || a.dir != Stop {
		a.stop(ReasonCommand)
		return Stop
	}

	switch d {
	case Extend:
		a.drive(true, false)
		a.limit = a.cfg.MaxExtend
	case Retract:
		a.drive(false, true)
		a.limit = a.cfg.MaxRetract
	default:
		a.stop(ReasonCommand)
		return Stop
	}
	a.dir = d
	a.startedAt = now
	a.changed = true
	a.reason = ReasonCommand
	return d
}

// Tick enforces the auto-stop deadline and reports whether the direction
// changed since the previous Tick, whatever the cause.
func (a *Actuator) Tick(now Ticks) bool {
	if a.expired(now) {
		a.stop(ReasonTimeout)
	}
	changed := a.changed
	a.changed = false
	return changed
}

// Remaining returns the time left before auto-stop. ok is false when stopped
// or when the current direction is unlimited.
func (a *Actuator) Remaining(now Ticks) (time.Duration, bool) {
	if a.dir == Stop || a.limit == 0 {
		return 0, false
	}
	elapsed := now.Since(a.startedAt)
	if elapsed >= a.limit {
		return 0, true
	}
	return a.limit - elapsed, true
}

// LastReason returns why the actuator last changed direction.
func (a *Actuator) LastReason() Reason {
	return a.reason
}

func (a *Actuator) expired(now Ticks) bool {
	return a.dir != Stop && a.limit > 0 && now.Since(a.startedAt) >= a.limit
}

// stop is the single path to Stop, used by commands, timeouts and the
// interlock. Stopping while stopped re-drives the relays but is not a change.
func (a *Actuator) stop(reason Reason) {
	a.drive(false, false)
	if a.dir == Stop {
		return
	}
	a.dir = Stop
	a.limit = 0
	a.changed = true
	a.reason = reason
}

func (a *Actuator) drive(up, down bool) {
	a.up.set(up)
	a.down.set(down)
}
