package logic

import (
	"github.com/pkg/errors"
)

// ErrUnknownActuator is returned for commands naming an actuator that is not
// registered.
var ErrUnknownActuator = errors.New("unknown actuator")

// Mode selects how a button edge is translated into commands.
type Mode string

const (
	// ModeLatch starts motion on press and ignores release. The actuator
	// travels until its max duration, or until pressed again.
	ModeLatch Mode = "latch"
	// ModeMomentary moves only while the button is held.
	ModeMomentary Mode = "momentary"
)

// Binding connects an input to an actuator direction.
type Binding struct {
	Actuator  string
	Direction Direction
	Mode      Mode
}

// Registry owns every actuator and input of the process and dispatches
// commands to them. It is constructed once at startup and is not safe for
// concurrent use: all calls must come from the tick loop.
type Registry struct {
	actuators []*Actuator
	byName    map[string]*Actuator
	groups    []*Interlock
	inputs    []*Input
	bindings  [][]Binding // parallel to inputs
	counts    EventCounts
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Actuator)}
}

// AddActuator registers an actuator.
func (r *Registry) AddActuator(a *Actuator) error {
	if _, ok := r.byName[a.Name()]; ok {
		return errors.Errorf("duplicate actuator %q", a.Name())
	}
	r.actuators = append(r.actuators, a)
	r.byName[a.Name()] = a
	return nil
}

// AddInput registers an input and its bindings. Inputs are sampled in
// registration order.
func (r *Registry) AddInput(in *Input, bindings ...Binding) error {
	for _, in2 := range r.inputs {
		if in2.Name() == in.Name() {
			return errors.Errorf("duplicate input %q", in.Name())
		}
	}
	for _, b := range bindings {
		if _, ok := r.byName[b.Actuator]; !ok {
			return errors.Wrapf(ErrUnknownActuator, "input %q binds %q", in.Name(), b.Actuator)
		}
		if b.Direction == Stop {
			return errors.Errorf("input %q: binding to %q needs a direction", in.Name(), b.Actuator)
		}
	}
	r.inputs = append(r.inputs, in)
	r.bindings = append(r.bindings, bindings)
	return nil
}

// Link creates an interlock group between the named actuators.
func (r *Registry) Link(names ...string) error {
	if len(names) < 2 {
		return errors.Errorf("interlock needs at least 2 actuators, got %d", len(names))
	}
	members := make([]*Actuator, 0, len(names))
	for _, n := range names {
		a, ok := r.byName[n]
		if !ok {
			return errors.Wrapf(ErrUnknownActuator, "interlock member %q", n)
		}
		members = append(members, a)
	}
	r.groups = append(r.groups, NewInterlock(members...))
	return nil
}

// Actuator looks up an actuator by name.
func (r *Registry) Actuator(name string) (*Actuator, bool) {
	a, ok := r.byName[name]
	return a, ok
}

// Actuators returns the actuators in registration order.
func (r *Registry) Actuators() []*Actuator {
	return r.actuators
}

// Inputs returns the inputs in sampling order.
func (r *Registry) Inputs() []*Input {
	return r.inputs
}

// Interlocks returns the interlock groups.
func (r *Registry) Interlocks() []*Interlock {
	return r.groups
}

// Counts returns a copy of the event counters.
func (r *Registry) Counts() EventCounts {
	return r.counts
}

// ApplyCommand sends a direction command to the named actuator, stopping its
// interlocked peers first when the command is a motion. It returns the
// direction actually applied.
func (r *Registry) ApplyCommand(name string, d Direction, now Ticks) (Direction, error) {
	a, ok := r.byName[name]
	if !ok {
		return Stop, errors.Wrapf(ErrUnknownActuator, "%q", name)
	}
	return r.apply(a, d, now), nil
}

// ApplyRemote applies a command received from outside the process. Invalid
// values were already mapped to Stop; they are only counted here.
func (r *Registry) ApplyRemote(cmd RemoteCommand, now Ticks) (Direction, error) {
	if !cmd.Valid {
		r.counts.InvalidCommands++
	}
	return r.ApplyCommand(cmd.Actuator, cmd.Direction, now)
}

// Sample feeds one raw reading per input, in sampling order, and applies the
// commands bound to every confirmed edge.
func (r *Registry) Sample(raw []bool, now Ticks) ([]InputEvent, error) {
	if len(raw) != len(r.inputs) {
		return nil, errors.Errorf("got %d samples for %d inputs", len(raw), len(r.inputs))
	}
	var events []InputEvent
	for i, in := range r.inputs {
		tr, ok := in.Sample(raw[i], now)
		if !ok {
			continue
		}
		r.counts.InputEdges++
		events = append(events, InputEvent{Input: in.Name(), Transition: tr})
		for _, b := range r.bindings[i] {
			r.handleEdge(b, tr, now)
		}
	}
	return events, nil
}

// Tick advances every actuator and returns the changes since the last Tick.
// Stops are listed before motions so a consumer replaying them in order never
// observes two interlocked actuators moving.
func (r *Registry) Tick(now Ticks) []Change {
	var stops, moves []Change
	for _, a := range r.actuators {
		if !a.Tick(now) {
			continue
		}
		c := Change{Actuator: a.Name(), Direction: a.Direction(), Reason: a.LastReason()}
		if c.Reason == ReasonTimeout {
			r.counts.AutoStops++
		}
		if c.Direction == Stop {
			stops = append(stops, c)
		} else {
			moves = append(moves, c)
		}
	}
	return append(stops, moves...)
}

// StopAll stops every actuator.
func (r *Registry) StopAll() {
	for _, a := range r.actuators {
		a.stop(ReasonCommand)
	}
}

func (r *Registry) apply(a *Actuator, d Direction, now Ticks) Direction {
	if d != Stop {
		for _, g := range r.groups {
			r.counts.Preemptions += g.Preempt(a)
		}
	}
	r.counts.Commands++
	return a.Set(d, now)
}

func (r *Registry) handleEdge(b Binding, tr Transition, now Ticks) {
	a := r.byName[b.Actuator]
	switch {
	case tr.New:
		r.apply(a, b.Direction, now)
	case b.Mode == ModeMomentary:
		r.apply(a, Stop, now)
	}
}
