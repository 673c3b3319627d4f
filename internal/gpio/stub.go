//go:build !linux

package gpio

import "github.com/pkg/errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealReader is not available on non-Linux platforms.
type RealReader struct{}

// NewRealReader returns an error on non-Linux platforms.
func NewRealReader(chipName string, pins []Pin) (*RealReader, error) {
	return nil, errUnsupported
}

// Read is not implemented on non-Linux platforms.
func (r *RealReader) Read() ([]bool, error) {
	return nil, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (r *RealReader) Close() error {
	return nil
}

// RealOutputs is not available on non-Linux platforms.
type RealOutputs struct{}

// RealOutput is not available on non-Linux platforms.
type RealOutput struct{}

// NewRealOutputs returns an error on non-Linux platforms.
func NewRealOutputs(chipName string) (*RealOutputs, error) {
	return nil, errUnsupported
}

// Open is not implemented on non-Linux platforms.
func (o *RealOutputs) Open(pin int, idle bool) (*RealOutput, error) {
	return nil, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (o *RealOutputs) Close() error {
	return nil
}

// Set is a no-op on non-Linux platforms.
func (out *RealOutput) Set(level bool) {}
