package mqtt

import (
	"github.com/sweeney/emperor/internal/logic"
)

// DirectionMsg is a recorded direction publication.
type DirectionMsg struct {
	Actuator  string
	Direction logic.Direction
}

// InputMsg is a recorded input publication.
type InputMsg struct {
	Input string
	On    bool
}

// FakePublisher records published state for test assertions.
type FakePublisher struct {
	// Directions contains all direction publications, in order.
	Directions []DirectionMsg

	// Inputs contains all input publications, in order.
	Inputs []InputMsg

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by PublishDirection and PublishInput.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishDirection records the direction.
func (f *FakePublisher) PublishDirection(actuator string, dir logic.Direction) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Directions = append(f.Directions, DirectionMsg{Actuator: actuator, Direction: dir})
	return nil
}

// PublishInput records the input level.
func (f *FakePublisher) PublishInput(input string, on bool) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Inputs = append(f.Inputs, InputMsg{Input: input, On: on})
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	f.SystemEvents = append(f.SystemEvents, event)

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemPayloads = append(f.SystemPayloads, payload)

	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Last returns the last direction published for actuator.
func (f *FakePublisher) Last(actuator string) (logic.Direction, bool) {
	for i := len(f.Directions) - 1; i >= 0; i-- {
		if f.Directions[i].Actuator == actuator {
			return f.Directions[i].Direction, true
		}
	}
	return logic.Stop, false
}

// Reset clears recorded events.
func (f *FakePublisher) Reset() {
	f.Directions = nil
	f.Inputs = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
