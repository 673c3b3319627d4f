package logic

import (
	"testing"
	"time"
)

// fakeOutput records the physical level written to a line.
type fakeOutput struct {
	level  bool
	writes int
}

func (f *fakeOutput) Set(level bool) {
	f.level = level
	f.writes++
}

func newTestActuator(name string, maxExtend, maxRetract time.Duration) (*Actuator, *fakeOutput, *fakeOutput) {
	up, down := &fakeOutput{}, &fakeOutput{}
	a := NewActuator(name, up, down, ActuatorConfig{
		UpIdle:     true,
		DownIdle:   true,
		MaxExtend:  maxExtend,
		MaxRetract: maxRetract,
	})
	return a, up, down
}

func TestNewActuatorIdle(t *testing.T) {
	a, up, down := newTestActuator("seat", 10*time.Second, 10*time.Second)

	if a.Direction() != Stop {
		t.Errorf("expected Stop, got %s", a.Direction())
	}
	if !up.level || !down.level {
		t.Errorf("expected both relays at idle (high), got up=%v down=%v", up.level, down.level)
	}
	if a.Tick(0) {
		t.Error("construction is not a change")
	}
}

func TestSetExtendAndRetract(t *testing.T) {
	a, up, down := newTestActuator("seat", 0, 0)

	if got := a.Set(Extend, 0); got != Extend {
		t.Fatalf("expected Extend, got %s", got)
	}
	if up.level || !down.level {
		t.Errorf("extend: expected up active (low), down idle, got up=%v down=%v", up.level, down.level)
	}
	if !a.Tick(1) {
		t.Error("expected change reported")
	}

	a.Set(Stop, 2)
	if got := a.Set(Retract, 3); got != Retract {
		t.Fatalf("expected Retract, got %s", got)
	}
	if !up.level || down.level {
		t.Errorf("retract: expected down active (low), up idle, got up=%v down=%v", up.level, down.level)
	}
}

func TestStopAlwaysApplies(t *testing.T) {
	for _, start := range []Direction{Stop, Extend, Retract} {
		a, up, down := newTestActuator("seat", time.Second, time.Second)
		a.Set(start, 0)

		if got := a.Set(Stop, 10); got != Stop {
			t.Errorf("from %s: expected Stop, got %s", start, got)
		}
		if a.Direction() != Stop {
			t.Errorf("from %s: expected direction Stop, got %s", start, a.Direction())
		}
		if !up.level || !down.level {
			t.Errorf("from %s: expected relays idle", start)
		}
	}
}

func TestStopWhileStoppedIsNotAChange(t *testing.T) {
	a, up, _ := newTestActuator("seat", 0, 0)
	writes := up.writes

	a.Set(Stop, 5)
	if a.Tick(6) {
		t.Error("stop from Stop must not report a change")
	}
	if up.writes == writes {
		t.Error("expected relays re-driven to idle")
	}
}

// Any non-Stop command while moving halts instead of switching or continuing.
func TestNewMotionWhileMovingStops(t *testing.T) {
	tests := []struct {
		moving  Direction
		command Direction
	}{
		{Extend, Extend},
		{Extend, Retract},
		{Retract, Retract},
		{Retract, Extend},
	}
	for _, tt := range tests {
		t.Run(tt.moving.String()+"_"+tt.command.String(), func(t *testing.T) {
			a, up, down := newTestActuator("seat", 10*time.Second, 10*time.Second)
			a.Set(tt.moving, 0)
			a.Tick(0)

			if got := a.Set(tt.command, 100); got != Stop {
				t.Errorf("expected applied Stop, got %s", got)
			}
			if a.Direction() != Stop {
				t.Errorf("expected Stop, got %s", a.Direction())
			}
			if !up.level || !down.level {
				t.Error("expected relays idle")
			}
			if !a.Tick(101) {
				t.Error("expected change reported")
			}

			// A second, separate command from Stop starts the motion.
			if got := a.Set(tt.command, 200); got != tt.command {
				t.Errorf("expected %s from Stop, got %s", tt.command, got)
			}
		})
	}
}

func TestAutoStopAtMaxDuration(t *testing.T) {
	a, up, down := newTestActuator("seat", 10000*time.Millisecond, 0)

	a.Set(Extend, 0)
	a.Tick(0)

	if a.Tick(9999) {
		t.Error("unexpected change at 9999")
	}
	if a.Direction() != Extend {
		t.Fatalf("expected Extend at 9999, got %s", a.Direction())
	}

	if !a.Tick(10000) {
		t.Fatal("expected change at 10000")
	}
	if a.Direction() != Stop {
		t.Errorf("expected Stop at 10000, got %s", a.Direction())
	}
	if a.LastReason() != ReasonTimeout {
		t.Errorf("expected reason timeout, got %s", a.LastReason())
	}
	if !up.level || !down.level {
		t.Error("expected relays at idle after auto-stop")
	}
}

func TestAutoStopLateTick(t *testing.T) {
	a, _, _ := newTestActuator("seat", 0, 3900*time.Millisecond)

	a.Set(Retract, 1000)
	a.Tick(1000)
	// Scheduler stalled past the deadline
	if !a.Tick(6000) {
		t.Fatal("expected auto-stop on first tick past deadline")
	}
	if a.Direction() != Stop {
		t.Errorf("expected Stop, got %s", a.Direction())
	}
}

func TestUnlimitedDurationNeverStops(t *testing.T) {
	a, _, _ := newTestActuator("seat", 0, time.Second)

	a.Set(Extend, 0)
	a.Tick(0)
	for _, now := range []Ticks{1000, 60000, 3600000} {
		if a.Tick(now) {
			t.Fatalf("unexpected change at %d", now)
		}
	}
	if _, ok := a.Remaining(60000); ok {
		t.Error("unlimited motion has no remaining time")
	}
}

func TestAutoStopAcrossWrap(t *testing.T) {
	a, _, _ := newTestActuator("seat", 10*time.Second, 0)
	start := Ticks(0xFFFFFFFF - 5000)

	a.Set(Extend, start)
	a.Tick(start)

	// Numerically smaller than start after the wrap, but only 9999ms later.
	almost := start + 9999
	if almost >= start {
		t.Fatalf("test setup: expected wrap, got %d >= %d", almost, start)
	}
	if a.Tick(almost) {
		t.Fatal("premature cutoff across wrap")
	}
	if !a.Tick(start + 10000) {
		t.Fatal("missed cutoff across wrap")
	}
}

func TestRemaining(t *testing.T) {
	a, _, _ := newTestActuator("monitors", 5300*time.Millisecond, 3900*time.Millisecond)

	if _, ok := a.Remaining(0); ok {
		t.Error("stopped actuator has no remaining time")
	}

	a.Set(Extend, 100)
	rem, ok := a.Remaining(1100)
	if !ok {
		t.Fatal("expected remaining time while extending")
	}
	if rem != 4300*time.Millisecond {
		t.Errorf("expected 4.3s, got %v", rem)
	}
}

func TestTicksAt(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if got := TicksAt(start, start.Add(1500*time.Millisecond)); got != 1500 {
		t.Errorf("expected 1500, got %d", got)
	}

	// 2^32 ms later wraps back to 0
	wrap := time.Duration(1<<32) * time.Millisecond
	if got := TicksAt(start, start.Add(wrap+7*time.Millisecond)); got != 7 {
		t.Errorf("expected wrap to 7, got %d", got)
	}
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in    string
		want  Direction
		valid bool
	}{
		{"stop", Stop, true},
		{"up", Extend, true},
		{"down", Retract, true},
		{"UP", Stop, false},
		{"", Stop, false},
		{"sideways", Stop, false},
	}
	for _, tt := range tests {
		got, ok := ParseDirection(tt.in)
		if got != tt.want || ok != tt.valid {
			t.Errorf("ParseDirection(%q) = (%s, %v), want (%s, %v)", tt.in, got, ok, tt.want, tt.valid)
		}
	}
}

func TestDirectionString(t *testing.T) {
	for d, want := range map[Direction]string{Stop: "stop", Extend: "up", Retract: "down", Direction(9): "<invalid direction>"} {
		if d.String() != want {
			t.Errorf("Direction(%d).String() = %q, want %q", int(d), d.String(), want)
		}
	}
}
