// Package status provides a thread-safe status tracker for the emperor daemon.
// It is written by the tick loop and read by HTTP handlers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/emperor/internal/logic"
)

// NetworkInfo contains network state written by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs       int64
	HeartbeatMs  int64
	Broker       string
	Device       string
	HTTPAddr     string
	HardwareFile string // empty when using the built-in layout
}

// ActuatorStatus is the observable state of one actuator.
type ActuatorStatus struct {
	Name      string
	Direction logic.Direction
	Reason    logic.Reason
	// Remaining is the time left before auto-stop; only meaningful when Timed.
	Remaining  time.Duration
	Timed      bool
	MaxExtend  time.Duration
	MaxRetract time.Duration
}

// InputStatus is the debounced level of one input.
type InputStatus struct {
	Name string
	On   bool
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type: safe to use after the lock is released.
type Snapshot struct {
	Actuators     []ActuatorStatus
	Inputs        []InputStatus
	Counts        logic.EventCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Actuator returns the status of the named actuator.
func (s Snapshot) Actuator(name string) (ActuatorStatus, bool) {
	for _, a := range s.Actuators {
		if a.Name == name {
			return a, true
		}
	}
	return ActuatorStatus{}, false
}

// Collect reads the observable state of every actuator and input.
// It must be called from the tick loop.
func Collect(reg *logic.Registry, now logic.Ticks) ([]ActuatorStatus, []InputStatus) {
	actuators := make([]ActuatorStatus, 0, len(reg.Actuators()))
	for _, a := range reg.Actuators() {
		rem, timed := a.Remaining(now)
		actuators = append(actuators, ActuatorStatus{
			Name:       a.Name(),
			Direction:  a.Direction(),
			Reason:     a.LastReason(),
			Remaining:  rem,
			Timed:      timed,
			MaxExtend:  a.Config().MaxExtend,
			MaxRetract: a.Config().MaxRetract,
		})
	}
	inputs := make([]InputStatus, 0, len(reg.Inputs()))
	for _, in := range reg.Inputs() {
		inputs = append(inputs, InputStatus{Name: in.Name(), On: in.Get()})
	}
	return actuators, inputs
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets actuator and input states and event counts.
// Called from the tick loop.
func (t *Tracker) Update(actuators []ActuatorStatus, inputs []InputStatus, counts logic.EventCounts) {
	t.mu.Lock()
	t.snap.Actuators = actuators
	t.snap.Inputs = inputs
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
// Update replaces the slices rather than mutating them, so sharing them
// with the copy is safe.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
