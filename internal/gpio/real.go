//go:build linux

package gpio

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads GPIO inputs from actual hardware using the Linux GPIO
// character device.
type RealReader struct {
	chip  *gpiocdev.Chip
	pins  []Pin
	lines []*gpiocdev.Line
}

// NewRealReader requests every pin as an input biased toward its idle level.
func NewRealReader(chipName string, pins []Pin) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, errors.Wrapf(err, "open gpio chip %s", chipName)
	}

	r := &RealReader{chip: chip, pins: pins}
	for _, p := range pins {
		line, err := chip.RequestLine(p.Offset, gpiocdev.AsInput, bias(p.Idle))
		if err != nil {
			r.Close()
			return nil, errors.Wrapf(err, "request input pin %d", p.Offset)
		}
		r.lines = append(r.lines, line)
	}
	return r, nil
}

// Read returns the raw level of every input.
func (r *RealReader) Read() ([]bool, error) {
	levels := make([]bool, len(r.lines))
	for i, line := range r.lines {
		v, err := line.Value()
		if err != nil {
			return nil, errors.Wrapf(err, "read pin %d", r.pins[i].Offset)
		}
		levels[i] = level(v)
	}
	return levels, nil
}

// Close releases GPIO resources.
func (r *RealReader) Close() error {
	var errs []error
	for i, line := range r.lines {
		if err := line.Close(); err != nil {
			errs = append(errs, errors.Wrapf(err, "close pin %d", r.pins[i].Offset))
		}
	}
	r.lines = nil
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "close chip"))
		}
		r.chip = nil
	}
	if len(errs) > 0 {
		return errors.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealOutputs owns the relay output lines of one chip.
type RealOutputs struct {
	chip  *gpiocdev.Chip
	lines []*RealOutput
}

// RealOutput is a single output line. It satisfies logic.Output.
type RealOutput struct {
	line *gpiocdev.Line
	pin  int
	idle bool
}

// NewRealOutputs opens the chip used for relay outputs.
func NewRealOutputs(chipName string) (*RealOutputs, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, errors.Wrapf(err, "open gpio chip %s", chipName)
	}
	return &RealOutputs{chip: chip}, nil
}

// Open requests pin as an output, driven at its idle level from the start so
// that no relay clicks at boot.
func (o *RealOutputs) Open(pin int, idle bool) (*RealOutput, error) {
	line, err := o.chip.RequestLine(pin, gpiocdev.AsOutput(value(idle)))
	if err != nil {
		return nil, errors.Wrapf(err, "request output pin %d", pin)
	}
	out := &RealOutput{line: line, pin: pin, idle: idle}
	o.lines = append(o.lines, out)
	return out, nil
}

// Set writes the physical level. Failures cannot be recovered at this layer
// and are logged.
func (out *RealOutput) Set(level bool) {
	log.Debugf("gpio: pin %d = %v", out.pin, level)
	if err := out.line.SetValue(value(level)); err != nil {
		log.Errorf("gpio: write pin %d: %v", out.pin, err)
	}
}

// Close drives every output back to idle, then reconfigures it as an input
// biased toward idle so the relays stay released while nothing owns the pin.
func (o *RealOutputs) Close() error {
	var errs []error
	for _, out := range o.lines {
		if err := out.line.SetValue(value(out.idle)); err != nil {
			errs = append(errs, errors.Wrapf(err, "idle pin %d", out.pin))
		}
		if err := out.line.Reconfigure(gpiocdev.AsInput, bias(out.idle)); err != nil {
			errs = append(errs, errors.Wrapf(err, "reconfigure pin %d", out.pin))
		}
		if err := out.line.Close(); err != nil {
			errs = append(errs, errors.Wrapf(err, "close pin %d", out.pin))
		}
	}
	o.lines = nil
	if o.chip != nil {
		if err := o.chip.Close(); err != nil {
			errs = append(errs, errors.Wrap(err, "close chip"))
		}
		o.chip = nil
	}
	if len(errs) > 0 {
		return errors.Errorf("close errors: %v", errs)
	}
	return nil
}

func bias(idle bool) gpiocdev.LineBias {
	if idle {
		return gpiocdev.WithPullUp
	}
	return gpiocdev.WithPullDown
}
