// Package mqtt bridges actuator and input state to MQTT using the Homie
// topic convention, and turns `/set` messages into remote commands.
package mqtt

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sweeney/emperor/internal/logic"
)

// Root is the Homie base topic.
const Root = "homie"

// Homie device states published on $state.
const (
	StateReady        = "ready"
	StateDisconnected = "disconnected"
	StateLost         = "lost"
)

// Property names.
const (
	PropDirection = "direction"
	PropOn        = "on"
)

// Publisher publishes state to MQTT.
type Publisher interface {
	// PublishDirection publishes an actuator's applied direction (retained).
	// Returns error if publishing fails (should not crash the process).
	PublishDirection(actuator string, dir logic.Direction) error

	// PublishInput publishes an input's debounced logical level (retained).
	PublishInput(input string, on bool) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Topics builds the topics of one Homie device.
type Topics struct {
	Device string
}

func (t Topics) base() string {
	return Root + "/" + t.Device
}

// State is the device $state topic, also used for the last will.
func (t Topics) State() string {
	return t.base() + "/$state"
}

// System is the topic carrying JSON status snapshots.
func (t Topics) System() string {
	return t.base() + "/$system"
}

// Direction is the direction property of an actuator node.
func (t Topics) Direction(actuator string) string {
	return t.base() + "/" + actuator + "/" + PropDirection
}

// DirectionSetFilter matches the settable direction property of every node.
func (t Topics) DirectionSetFilter() string {
	return t.base() + "/+/" + PropDirection + "/set"
}

// Input is the on property of an input node.
func (t Topics) Input(input string) string {
	return t.base() + "/" + input + "/" + PropOn
}

// ParseCommand turns a message on a direction `/set` topic into a remote
// command. ok is false when the topic is not a direction `/set` topic of this
// device. Unknown payloads yield an invalid command that applies Stop.
func (t Topics) ParseCommand(topic string, payload []byte) (cmd logic.RemoteCommand, ok bool) {
	rest := strings.TrimPrefix(topic, t.base()+"/")
	if rest == topic {
		return logic.RemoteCommand{}, false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[0] == "" || parts[1] != PropDirection || parts[2] != "set" {
		return logic.RemoteCommand{}, false
	}
	return logic.ParseRemoteCommand(parts[0], string(payload), "mqtt"), true
}

// FormatDirection returns the property payload for a direction.
func FormatDirection(dir logic.Direction) []byte {
	return []byte(dir.String())
}

// FormatInput returns the property payload for an input level.
func FormatInput(on bool) []byte {
	if on {
		return []byte("true")
	}
	return []byte("false")
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// SystemPayload represents the MQTT message payload for system events that
// don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
