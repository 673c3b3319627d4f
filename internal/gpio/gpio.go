// Package gpio provides GPIO input reading and relay output with hardware
// abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Reader reads raw input levels.
type Reader interface {
	// Read returns the raw level of every configured input pin, in the
	// order the pins were given. No inversion is applied: idle polarity is
	// handled by the debouncer.
	Read() ([]bool, error)

	// Close releases GPIO resources.
	Close() error
}

// Pin describes an input line.
type Pin struct {
	Offset int
	// Idle is the level the line rests at. Idle high lines are biased with a
	// pull-up, idle low lines with a pull-down.
	Idle bool
}

// DefaultChip is the Raspberry Pi GPIO chip.
const DefaultChip = "gpiochip0"

func level(v int) bool {
	return v != 0
}

func value(level bool) int {
	if level {
		return 1
	}
	return 0
}
