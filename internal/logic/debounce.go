package logic

import "time"

// Input debounces one raw digital signal.
//
// The logical level is true when the raw level differs from the idle polarity,
// so a button wired to idle high reads true while pressed.
type Input struct {
	name   string
	idle   bool
	window time.Duration

	// Current stable (debounced) logical level
	stable bool
	// Whether a candidate different from stable is being observed
	pending bool
	// Time when the candidate was first observed
	pendingSince Ticks
}

// NewInput creates a debounced input. The stable level is seeded from
// firstRaw so that no transition fires at boot.
func NewInput(name string, idle bool, window time.Duration, firstRaw bool) *Input {
	return &Input{
		name:   name,
		idle:   idle,
		window: window,
		stable: firstRaw != idle,
	}
}

// Name returns the input name.
func (in *Input) Name() string {
	return in.name
}

// Get returns the last committed logical level, ignoring any pending candidate.
func (in *Input) Get() bool {
	return in.stable
}

// Sample processes one raw reading. It returns a transition only once the new
// level has held, unbroken, for the full debounce window.
func (in *Input) Sample(raw bool, now Ticks) (Transition, bool) {
	level := raw != in.idle

	if level == in.stable {
		// Bounced back before the window elapsed
		in.pending = false
		return Transition{}, false
	}

	if !in.pending {
		in.pending = true
		in.pendingSince = now
	}

	if now.Since(in.pendingSince) < in.window {
		return Transition{}, false
	}

	tr := Transition{Old: in.stable, New: level}
	in.stable = level
	in.pending = false
	return tr, true
}
