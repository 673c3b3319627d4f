// Package config loads the hardware description: actuators, their relay pins
// and limits, the buttons bound to them and the interlock groups.
package config

import (
	"bytes"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/emperor/internal/gpio"
	"github.com/sweeney/emperor/internal/logic"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid config")

// MaxDurationMs bounds every configured duration. Elapsed time is measured
// in 32-bit milliseconds, so longer limits could never be reached.
const MaxDurationMs = 24 * 60 * 60 * 1000

// Hardware is the top-level YAML document.
type Hardware struct {
	Actuators  []Actuator `yaml:"actuators"`
	Inputs     []Input    `yaml:"inputs"`
	Interlocks [][]string `yaml:"interlocks"`
}

// Actuator describes one relay pair. Pins use BCM numbering.
type Actuator struct {
	Name     string `yaml:"name"`
	UpPin    int    `yaml:"up_pin"`
	UpIdle   bool   `yaml:"up_idle"`
	DownPin  int    `yaml:"down_pin"`
	DownIdle bool   `yaml:"down_idle"`
	// Maximum run time per direction in milliseconds; 0 is unlimited.
	MaxUpMs   int64 `yaml:"max_up_ms"`
	MaxDownMs int64 `yaml:"max_down_ms"`
}

// Input describes one button and the actuator direction it commands.
type Input struct {
	Name       string `yaml:"name"`
	Pin        int    `yaml:"pin"`
	Idle       bool   `yaml:"idle"`
	DebounceMs int64  `yaml:"debounce_ms"`
	Actuator   string `yaml:"actuator"`
	Direction  string `yaml:"direction"`
	Mode       string `yaml:"mode"`
}

// Default returns the built-in board layout: a seat and a pair of monitors
// on active-low relay boards, interlocked, with four idle-high buttons.
// Monitor buttons latch so a press travels all the way; seat buttons only
// move while held.
func Default() *Hardware {
	return &Hardware{
		Actuators: []Actuator{
			{Name: "seat", UpPin: 17, UpIdle: true, DownPin: 27, DownIdle: true, MaxUpMs: 10000, MaxDownMs: 10000},
			// The limits depend on the monitor weight.
			{Name: "monitors", UpPin: 22, UpIdle: true, DownPin: 23, DownIdle: true, MaxUpMs: 5300, MaxDownMs: 3900},
		},
		Inputs: []Input{
			{Name: "button_monitor_up", Pin: 5, Idle: true, DebounceMs: 50, Actuator: "monitors", Direction: logic.TokenExtend, Mode: string(logic.ModeLatch)},
			{Name: "button_monitor_down", Pin: 6, Idle: true, DebounceMs: 50, Actuator: "monitors", Direction: logic.TokenRetract, Mode: string(logic.ModeLatch)},
			{Name: "button_seat_up", Pin: 13, Idle: true, DebounceMs: 50, Actuator: "seat", Direction: logic.TokenExtend, Mode: string(logic.ModeMomentary)},
			{Name: "button_seat_down", Pin: 19, Idle: true, DebounceMs: 50, Actuator: "seat", Direction: logic.TokenRetract, Mode: string(logic.ModeMomentary)},
		},
		Interlocks: [][]string{{"seat", "monitors"}},
	}
}

// Load reads a YAML file. An empty path returns Default.
func Load(path string) (*Hardware, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	hw, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return hw, nil
}

// Parse decodes and validates a YAML document. Unknown keys are rejected.
func Parse(data []byte) (*Hardware, error) {
	var hw Hardware
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&hw); err != nil {
		return nil, errors.Wrap(err, "decode yaml")
	}
	if err := hw.Validate(); err != nil {
		return nil, err
	}
	return &hw, nil
}

// Marshal encodes the hardware description as YAML.
func (hw *Hardware) Marshal() ([]byte, error) {
	return yaml.Marshal(hw)
}

// Validate checks names, bindings and pin assignments.
func (hw *Hardware) Validate() error {
	if len(hw.Actuators) == 0 {
		return errors.Wrap(ErrInvalid, "no actuators")
	}
	names := make(map[string]bool)
	pins := make(map[int]string)
	claim := func(pin int, owner string) error {
		if pin < 0 {
			return errors.Wrapf(ErrInvalid, "%s: negative pin %d", owner, pin)
		}
		if other, ok := pins[pin]; ok {
			return errors.Wrapf(ErrInvalid, "pin %d used by %s and %s", pin, other, owner)
		}
		pins[pin] = owner
		return nil
	}

	for _, a := range hw.Actuators {
		if a.Name == "" {
			return errors.Wrap(ErrInvalid, "actuator without name")
		}
		if names[a.Name] {
			return errors.Wrapf(ErrInvalid, "duplicate name %q", a.Name)
		}
		names[a.Name] = true
		if a.MaxUpMs < 0 || a.MaxDownMs < 0 {
			return errors.Wrapf(ErrInvalid, "actuator %q: negative max duration", a.Name)
		}
		if a.MaxUpMs > MaxDurationMs || a.MaxDownMs > MaxDurationMs {
			return errors.Wrapf(ErrInvalid, "actuator %q: max duration above %d ms", a.Name, MaxDurationMs)
		}
		if err := claim(a.UpPin, a.Name+".up"); err != nil {
			return err
		}
		if err := claim(a.DownPin, a.Name+".down"); err != nil {
			return err
		}
	}

	for _, in := range hw.Inputs {
		if in.Name == "" {
			return errors.Wrap(ErrInvalid, "input without name")
		}
		if names[in.Name] {
			return errors.Wrapf(ErrInvalid, "duplicate name %q", in.Name)
		}
		names[in.Name] = true
		if in.DebounceMs < 0 {
			return errors.Wrapf(ErrInvalid, "input %q: negative debounce", in.Name)
		}
		if in.DebounceMs > MaxDurationMs {
			return errors.Wrapf(ErrInvalid, "input %q: debounce above %d ms", in.Name, MaxDurationMs)
		}
		if err := claim(in.Pin, in.Name); err != nil {
			return err
		}
		if in.Actuator == "" {
			continue
		}
		if !hw.hasActuator(in.Actuator) {
			return errors.Wrapf(ErrInvalid, "input %q: unknown actuator %q", in.Name, in.Actuator)
		}
		if d, ok := logic.ParseDirection(in.Direction); !ok || d == logic.Stop {
			return errors.Wrapf(ErrInvalid, "input %q: direction must be %q or %q, got %q",
				in.Name, logic.TokenExtend, logic.TokenRetract, in.Direction)
		}
		switch logic.Mode(in.Mode) {
		case "", logic.ModeLatch, logic.ModeMomentary:
		default:
			return errors.Wrapf(ErrInvalid, "input %q: unknown mode %q", in.Name, in.Mode)
		}
	}

	for i, group := range hw.Interlocks {
		if len(group) < 2 {
			return errors.Wrapf(ErrInvalid, "interlock %d: needs at least 2 actuators", i)
		}
		for _, n := range group {
			if !hw.hasActuator(n) {
				return errors.Wrapf(ErrInvalid, "interlock %d: unknown actuator %q", i, n)
			}
		}
	}
	return nil
}

// InputPins returns the input pins in sampling order.
func (hw *Hardware) InputPins() []gpio.Pin {
	pins := make([]gpio.Pin, len(hw.Inputs))
	for i, in := range hw.Inputs {
		pins[i] = gpio.Pin{Offset: in.Pin, Idle: in.Idle}
	}
	return pins
}

// OutputOpener requests an output pin driven at its idle level.
type OutputOpener func(pin int, idle bool) (logic.Output, error)

// Build constructs the registry. firstRaw holds the first raw reading of
// every input, in InputPins order, and seeds the debouncers.
func (hw *Hardware) Build(open OutputOpener, firstRaw []bool) (*logic.Registry, error) {
	if len(firstRaw) != len(hw.Inputs) {
		return nil, errors.Errorf("got %d initial samples for %d inputs", len(firstRaw), len(hw.Inputs))
	}

	reg := logic.NewRegistry()
	for _, a := range hw.Actuators {
		up, err := open(a.UpPin, a.UpIdle)
		if err != nil {
			return nil, errors.Wrapf(err, "actuator %q", a.Name)
		}
		down, err := open(a.DownPin, a.DownIdle)
		if err != nil {
			return nil, errors.Wrapf(err, "actuator %q", a.Name)
		}
		act := logic.NewActuator(a.Name, up, down, logic.ActuatorConfig{
			UpIdle:     a.UpIdle,
			DownIdle:   a.DownIdle,
			MaxExtend:  time.Duration(a.MaxUpMs) * time.Millisecond,
			MaxRetract: time.Duration(a.MaxDownMs) * time.Millisecond,
		})
		if err := reg.AddActuator(act); err != nil {
			return nil, err
		}
	}

	for i, in := range hw.Inputs {
		input := logic.NewInput(in.Name, in.Idle, time.Duration(in.DebounceMs)*time.Millisecond, firstRaw[i])
		var bindings []logic.Binding
		if in.Actuator != "" {
			dir, _ := logic.ParseDirection(in.Direction)
			mode := logic.Mode(in.Mode)
			if mode == "" {
				mode = logic.ModeLatch
			}
			bindings = append(bindings, logic.Binding{Actuator: in.Actuator, Direction: dir, Mode: mode})
		}
		if err := reg.AddInput(input, bindings...); err != nil {
			return nil, err
		}
	}

	for _, group := range hw.Interlocks {
		if err := reg.Link(group...); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func (hw *Hardware) hasActuator(name string) bool {
	for _, a := range hw.Actuators {
		if a.Name == name {
			return true
		}
	}
	return false
}
