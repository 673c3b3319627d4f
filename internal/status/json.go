package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string         `json:"event,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	Actuators     []ActuatorJSON `json:"actuators"`
	Inputs        []InputJSON    `json:"inputs"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	StartTime     string         `json:"start_time"`
	Timestamp     string         `json:"timestamp"`
	MQTT          MQTTStatus     `json:"mqtt"`
	Counts        CountsJSON     `json:"event_counts"`
	Network       *NetworkJSON   `json:"network,omitempty"`
	Config        ConfigJSON     `json:"config"`
}

// ActuatorJSON is the JSON representation of an actuator.
type ActuatorJSON struct {
	Name        string `json:"name"`
	Direction   string `json:"direction"`
	Reason      string `json:"reason,omitempty"`
	RemainingMs *int64 `json:"remaining_ms,omitempty"`
	MaxUpMs     int64  `json:"max_up_ms"`
	MaxDownMs   int64  `json:"max_down_ms"`
}

// InputJSON is the JSON representation of an input.
type InputJSON struct {
	Name string `json:"name"`
	On   bool   `json:"on"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
	Device    string `json:"device"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Commands        int `json:"commands"`
	InvalidCommands int `json:"invalid_commands"`
	AutoStops       int `json:"auto_stops"`
	Preemptions     int `json:"preemptions"`
	InputEdges      int `json:"input_edges"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs       int64  `json:"poll_ms"`
	HeartbeatMs  int64  `json:"heartbeat_ms"`
	Broker       string `json:"broker"`
	HTTPAddr     string `json:"http_addr"`
	HardwareFile string `json:"hardware_file,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Actuators:     make([]ActuatorJSON, 0, len(snap.Actuators)),
		Inputs:        make([]InputJSON, 0, len(snap.Inputs)),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT: MQTTStatus{
			Connected: snap.MQTTConnected,
			Broker:    snap.Config.Broker,
			Device:    snap.Config.Device,
		},
		Counts: CountsJSON{
			Commands:        snap.Counts.Commands,
			InvalidCommands: snap.Counts.InvalidCommands,
			AutoStops:       snap.Counts.AutoStops,
			Preemptions:     snap.Counts.Preemptions,
			InputEdges:      snap.Counts.InputEdges,
		},
		Config: ConfigJSON{
			PollMs:       snap.Config.PollMs,
			HeartbeatMs:  snap.Config.HeartbeatMs,
			Broker:       snap.Config.Broker,
			HTTPAddr:     snap.Config.HTTPAddr,
			HardwareFile: snap.Config.HardwareFile,
		},
	}

	for _, a := range snap.Actuators {
		aj := ActuatorJSON{
			Name:      a.Name,
			Direction: a.Direction.String(),
			Reason:    string(a.Reason),
			MaxUpMs:   a.MaxExtend.Milliseconds(),
			MaxDownMs: a.MaxRetract.Milliseconds(),
		}
		if a.Timed {
			ms := a.Remaining.Milliseconds()
			aj.RemainingMs = &ms
		}
		inner.Actuators = append(inner.Actuators, aj)
	}
	for _, in := range snap.Inputs {
		inner.Inputs = append(inner.Inputs, InputJSON{Name: in.Name, On: in.On})
	}

	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
