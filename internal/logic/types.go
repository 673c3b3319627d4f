// Package logic contains the pure motion control logic: input debouncing, the
// actuator direction state machine and the interlock between actuators.
// This package has NO hardware, MQTT or OS dependencies and never sleeps.
// Time is always injected as Ticks.
package logic

import "time"

// Ticks is a monotonic millisecond counter since process start.
//
// It is a uint32 and wraps every 2^32 ms (about 49.7 days). Never compare two
// Ticks with < or >=; use Since, which subtracts modulo 2^32 and stays correct
// across the wrap as long as the measured interval is shorter than the wrap
// period.
type Ticks uint32

// TickPeriod is the resolution of Ticks.
const TickPeriod = time.Millisecond

// Since returns the time elapsed from start to t.
func (t Ticks) Since(start Ticks) time.Duration {
	return time.Duration(uint32(t-start)) * TickPeriod
}

// TicksAt converts a wall clock reading into Ticks relative to start.
// The integer conversion truncates to 32 bits, which is the wrap.
func TicksAt(start, now time.Time) Ticks {
	return Ticks(now.Sub(start) / TickPeriod)
}

// Direction is the motion state of an actuator.
type Direction int

const (
	Stop Direction = iota
	Extend
	Retract
)

// Property values, shared by the MQTT bridge and the HTTP API.
const (
	TokenStop    = "stop"
	TokenExtend  = "up"
	TokenRetract = "down"
)

func (d Direction) String() string {
	switch d {
	case Stop:
		return TokenStop
	case Extend:
		return TokenExtend
	case Retract:
		return TokenRetract
	default:
		return "<invalid direction>"
	}
}

// ParseDirection maps a property value to a Direction. Unrecognized values
// return Stop and false: garbage still stops the actuator.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case TokenStop:
		return Stop, true
	case TokenExtend:
		return Extend, true
	case TokenRetract:
		return Retract, true
	default:
		return Stop, false
	}
}

// Reason records why an actuator last changed direction.
type Reason string

const (
	ReasonCommand   Reason = "command"
	ReasonTimeout   Reason = "timeout"
	ReasonInterlock Reason = "interlock"
)

// Output is a single boolean output line, written at its physical level.
// Writes are treated as infallible; implementations log failures.
type Output interface {
	Set(level bool)
}

// Transition is a confirmed change of a debounced input's logical level.
type Transition struct {
	Old bool
	New bool
}

// RemoteCommand is a direction request for one actuator, received from the
// property bridge or the HTTP API. It is validated on arrival and never stored.
type RemoteCommand struct {
	Actuator  string
	Direction Direction
	// Valid is false when Raw was not part of the vocabulary; Direction is
	// then Stop.
	Valid  bool
	Raw    string
	Source string
}

// ParseRemoteCommand builds a RemoteCommand from a raw property value.
func ParseRemoteCommand(actuator, raw, source string) RemoteCommand {
	dir, ok := ParseDirection(raw)
	return RemoteCommand{
		Actuator:  actuator,
		Direction: dir,
		Valid:     ok,
		Raw:       raw,
		Source:    source,
	}
}

// Change is a direction change reported by Registry.Tick.
type Change struct {
	Actuator  string
	Direction Direction
	Reason    Reason
}

// InputEvent is a debounced edge on a named input.
type InputEvent struct {
	Input string
	Transition
}

// EventCounts tracks activity since startup.
type EventCounts struct {
	Commands        int
	InvalidCommands int
	AutoStops       int
	Preemptions     int
	InputEdges      int
}
