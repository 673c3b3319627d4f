package gpio

import "github.com/pkg/errors"

// FakeReader is a test double that returns scripted raw levels.
type FakeReader struct {
	// Samples contains scripted raw levels, one slice per Read call.
	Samples [][]bool

	// index tracks current position in Samples
	index int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples ...[]bool) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) Read() ([]bool, error) {
	if f.ReadError != nil {
		return nil, f.ReadError
	}

	if len(f.Samples) == 0 {
		return nil, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	out := make([]bool, len(sample))
	copy(out, sample)
	return out, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset resets the reader to the beginning of samples.
func (f *FakeReader) Reset() {
	f.index = 0
	f.Closed = false
}

// FakeOutput records the levels written to an output line.
type FakeOutput struct {
	Pin     int
	Level   bool
	History []bool
}

// Set records the level.
func (f *FakeOutput) Set(level bool) {
	f.Level = level
	f.History = append(f.History, level)
}

// FakeOutputs hands out FakeOutputs by pin.
type FakeOutputs struct {
	Lines  map[int]*FakeOutput
	Closed bool

	// OpenError, if set, will be returned by Open()
	OpenError error
}

// NewFakeOutputs creates an empty FakeOutputs.
func NewFakeOutputs() *FakeOutputs {
	return &FakeOutputs{Lines: make(map[int]*FakeOutput)}
}

// Open returns a FakeOutput initialized at the idle level.
func (f *FakeOutputs) Open(pin int, idle bool) (*FakeOutput, error) {
	if f.OpenError != nil {
		return nil, f.OpenError
	}
	if _, ok := f.Lines[pin]; ok {
		return nil, errors.Errorf("pin %d already requested", pin)
	}
	out := &FakeOutput{Pin: pin, Level: idle}
	f.Lines[pin] = out
	return out, nil
}

// Close marks the outputs as closed.
func (f *FakeOutputs) Close() error {
	f.Closed = true
	return nil
}
