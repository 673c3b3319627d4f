package logic

import (
	"testing"
	"time"

	"github.com/pkg/errors"
)

// newTestRegistry builds the seat/monitors pair, interlocked, with one latch
// button for the monitors and one momentary button for the seat.
func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	seat, _, _ := newTestActuator("seat", 10000*time.Millisecond, 10000*time.Millisecond)
	monitors, _, _ := newTestActuator("monitors", 5300*time.Millisecond, 3900*time.Millisecond)
	if err := r.AddActuator(seat); err != nil {
		t.Fatal(err)
	}
	if err := r.AddActuator(monitors); err != nil {
		t.Fatal(err)
	}
	if err := r.Link("seat", "monitors"); err != nil {
		t.Fatal(err)
	}
	// Buttons idle high; first raw reading high (released).
	if err := r.AddInput(NewInput("button_monitor_up", true, 50*time.Millisecond, true),
		Binding{Actuator: "monitors", Direction: Extend, Mode: ModeLatch}); err != nil {
		t.Fatal(err)
	}
	if err := r.AddInput(NewInput("button_seat_up", true, 50*time.Millisecond, true),
		Binding{Actuator: "seat", Direction: Extend, Mode: ModeMomentary}); err != nil {
		t.Fatal(err)
	}
	return r
}

func direction(t *testing.T, r *Registry, name string) Direction {
	t.Helper()
	a, ok := r.Actuator(name)
	if !ok {
		t.Fatalf("actuator %q not registered", name)
	}
	return a.Direction()
}

func TestApplyCommandUnknownActuator(t *testing.T) {
	r := newTestRegistry(t)

	got, err := r.ApplyCommand("desk", Extend, 0)
	if !errors.Is(err, ErrUnknownActuator) {
		t.Errorf("expected ErrUnknownActuator, got %v", err)
	}
	if got != Stop {
		t.Errorf("expected Stop, got %s", got)
	}
}

// A and B linked; A extending; command B retract.
func TestInterlockPreemptsWithinSameTick(t *testing.T) {
	r := newTestRegistry(t)

	r.ApplyCommand("seat", Extend, 0)
	r.Tick(0)

	got, err := r.ApplyCommand("monitors", Retract, 10)
	if err != nil {
		t.Fatal(err)
	}
	if got != Retract {
		t.Errorf("expected monitors Retract, got %s", got)
	}
	if direction(t, r, "seat") != Stop {
		t.Errorf("expected seat Stop, got %s", direction(t, r, "seat"))
	}

	changes := r.Tick(10)
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d: %+v", len(changes), changes)
	}
	if changes[0] != (Change{Actuator: "seat", Direction: Stop, Reason: ReasonInterlock}) {
		t.Errorf("expected seat stop first, got %+v", changes[0])
	}
	if changes[1] != (Change{Actuator: "monitors", Direction: Retract, Reason: ReasonCommand}) {
		t.Errorf("expected monitors retract second, got %+v", changes[1])
	}
	if r.Counts().Preemptions != 1 {
		t.Errorf("expected 1 preemption, got %d", r.Counts().Preemptions)
	}
}

func TestInterlockStopDoesNotPreempt(t *testing.T) {
	r := newTestRegistry(t)

	r.ApplyCommand("seat", Extend, 0)
	r.ApplyCommand("monitors", Stop, 5)

	if direction(t, r, "seat") != Extend {
		t.Errorf("stop on a peer must not preempt, seat is %s", direction(t, r, "seat"))
	}
}

func TestUnlinkedActuatorsRunTogether(t *testing.T) {
	r := NewRegistry()
	a, _, _ := newTestActuator("a", 0, 0)
	b, _, _ := newTestActuator("b", 0, 0)
	r.AddActuator(a)
	r.AddActuator(b)

	r.ApplyCommand("a", Extend, 0)
	r.ApplyCommand("b", Retract, 0)
	if a.Direction() != Extend || b.Direction() != Retract {
		t.Errorf("expected both moving, got a=%s b=%s", a.Direction(), b.Direction())
	}
}

func TestNeverTwoLinkedMoving(t *testing.T) {
	r := newTestRegistry(t)
	seq := []struct {
		name string
		dir  Direction
	}{
		{"seat", Extend}, {"monitors", Extend}, {"monitors", Stop}, {"seat", Retract},
		{"monitors", Retract}, {"seat", Extend}, {"seat", Stop}, {"seat", Extend},
	}
	for i, s := range seq {
		now := Ticks(i * 100)
		r.ApplyCommand(s.name, s.dir, now)
		r.Tick(now)
		moving := 0
		for _, a := range r.Actuators() {
			if a.Direction() != Stop {
				moving++
			}
		}
		if moving > 1 {
			t.Fatalf("step %d: %d linked actuators moving", i, moving)
		}
	}
}

func TestApplyRemoteInvalidStops(t *testing.T) {
	r := newTestRegistry(t)
	r.ApplyCommand("seat", Extend, 0)

	got, err := r.ApplyRemote(ParseRemoteCommand("seat", "sideways", "mqtt"), 10)
	if err != nil {
		t.Fatal(err)
	}
	if got != Stop {
		t.Errorf("expected Stop, got %s", got)
	}
	if r.Counts().InvalidCommands != 1 {
		t.Errorf("expected 1 invalid command, got %d", r.Counts().InvalidCommands)
	}
}

func TestLatchButton(t *testing.T) {
	r := newTestRegistry(t)
	// raw: [monitor_up, seat_up]; low = pressed

	r.Sample([]bool{false, true}, 0)
	events, err := r.Sample([]bool{false, true}, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].Input != "button_monitor_up" || !events[0].New {
		t.Fatalf("expected press event, got %+v", events)
	}
	if direction(t, r, "monitors") != Extend {
		t.Fatalf("expected monitors Extend, got %s", direction(t, r, "monitors"))
	}

	// Release is ignored by a latch button.
	r.Sample([]bool{true, true}, 100)
	r.Sample([]bool{true, true}, 150)
	if direction(t, r, "monitors") != Extend {
		t.Errorf("expected monitors still Extend after release, got %s", direction(t, r, "monitors"))
	}

	// Pressing again while moving stops.
	r.Sample([]bool{false, true}, 200)
	r.Sample([]bool{false, true}, 250)
	if direction(t, r, "monitors") != Stop {
		t.Errorf("expected monitors Stop on second press, got %s", direction(t, r, "monitors"))
	}
}

func TestMomentaryButton(t *testing.T) {
	r := newTestRegistry(t)

	r.Sample([]bool{true, false}, 0)
	r.Sample([]bool{true, false}, 50)
	if direction(t, r, "seat") != Extend {
		t.Fatalf("expected seat Extend while held, got %s", direction(t, r, "seat"))
	}

	r.Sample([]bool{true, true}, 1000)
	r.Sample([]bool{true, true}, 1050)
	if direction(t, r, "seat") != Stop {
		t.Errorf("expected seat Stop on release, got %s", direction(t, r, "seat"))
	}
	if r.Counts().InputEdges != 2 {
		t.Errorf("expected 2 input edges, got %d", r.Counts().InputEdges)
	}
}

func TestButtonAutoStop(t *testing.T) {
	r := newTestRegistry(t)

	r.Sample([]bool{false, true}, 0)
	r.Sample([]bool{false, true}, 50)
	r.Tick(50)

	if changes := r.Tick(5349); len(changes) != 0 {
		t.Fatalf("unexpected changes before max duration: %+v", changes)
	}
	changes := r.Tick(5350)
	if len(changes) != 1 || changes[0].Reason != ReasonTimeout {
		t.Fatalf("expected timeout change, got %+v", changes)
	}
	if r.Counts().AutoStops != 1 {
		t.Errorf("expected 1 auto-stop, got %d", r.Counts().AutoStops)
	}
}

func TestSampleLengthMismatch(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.Sample([]bool{true}, 0); err == nil {
		t.Error("expected error for missing samples")
	}
}

func TestStopAll(t *testing.T) {
	r := newTestRegistry(t)
	r.ApplyCommand("seat", Retract, 0)

	r.StopAll()
	for _, a := range r.Actuators() {
		if a.Direction() != Stop {
			t.Errorf("%s: expected Stop, got %s", a.Name(), a.Direction())
		}
	}
}

func TestRegistryValidation(t *testing.T) {
	r := NewRegistry()
	a, _, _ := newTestActuator("seat", 0, 0)
	if err := r.AddActuator(a); err != nil {
		t.Fatal(err)
	}
	if err := r.AddActuator(a); err == nil {
		t.Error("expected duplicate actuator error")
	}
	if err := r.Link("seat"); err == nil {
		t.Error("expected error for single-member interlock")
	}
	if err := r.Link("seat", "desk"); !errors.Is(err, ErrUnknownActuator) {
		t.Errorf("expected ErrUnknownActuator, got %v", err)
	}
	err := r.AddInput(NewInput("b", true, 0, true), Binding{Actuator: "desk", Direction: Extend})
	if !errors.Is(err, ErrUnknownActuator) {
		t.Errorf("expected ErrUnknownActuator, got %v", err)
	}
	if err := r.AddInput(NewInput("b", true, 0, true), Binding{Actuator: "seat", Direction: Stop}); err == nil {
		t.Error("expected error for binding without direction")
	}
	if err := r.AddInput(NewInput("b", true, 0, true)); err != nil {
		t.Fatal(err)
	}
	if err := r.AddInput(NewInput("b", true, 0, true)); err == nil {
		t.Error("expected duplicate input error")
	}
}

func TestInterlockContains(t *testing.T) {
	a, _, _ := newTestActuator("a", 0, 0)
	b, _, _ := newTestActuator("b", 0, 0)
	c, _, _ := newTestActuator("c", 0, 0)
	g := NewInterlock(a, b)

	if !g.Contains(a) || !g.Contains(b) || g.Contains(c) {
		t.Error("unexpected membership")
	}
	c.Set(Extend, 0)
	if n := g.Preempt(c); n != 0 {
		t.Errorf("non-member must not preempt, stopped %d", n)
	}
	if names := g.Members(); len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("unexpected members %v", names)
	}
}
