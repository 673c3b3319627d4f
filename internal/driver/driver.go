// Package driver runs one control step at a time: it applies queued remote
// commands, samples the inputs, advances the actuators and publishes what
// changed. All Driver methods except Submit and RequestBroadcast must be
// called from a single goroutine.
package driver

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/emperor/internal/gpio"
	"github.com/sweeney/emperor/internal/logic"
	"github.com/sweeney/emperor/internal/mqtt"
	"github.com/sweeney/emperor/internal/status"
)

// DefaultQueueSize is the remote command queue capacity.
const DefaultQueueSize = 32

// System event names published on $system.
const (
	EventStartup   = "STARTUP"
	EventShutdown  = "SHUTDOWN"
	EventHeartbeat = "HEARTBEAT"
)

// Options configures a Driver.
type Options struct {
	Registry  *logic.Registry
	Reader    gpio.Reader
	Publisher mqtt.Publisher

	// Optional.
	Conn      mqtt.ConnectionStatus
	Tracker   *status.Tracker
	Heartbeat time.Duration
	QueueSize int

	// Start is the wall clock reading that maps to Ticks 0.
	Start time.Time
}

// Driver ties the motion logic to its inputs and to the property bridge.
type Driver struct {
	reg       *logic.Registry
	reader    gpio.Reader
	pub       mqtt.Publisher
	conn      mqtt.ConnectionStatus
	tracker   *status.Tracker
	heartbeat *logic.Heartbeat
	start     time.Time

	commands  chan logic.RemoteCommand
	broadcast chan struct{}
}

// New creates a Driver.
func New(opts Options) *Driver {
	size := opts.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Driver{
		reg:       opts.Registry,
		reader:    opts.Reader,
		pub:       opts.Publisher,
		conn:      opts.Conn,
		tracker:   opts.Tracker,
		heartbeat: logic.NewHeartbeat(opts.Heartbeat, opts.Start),
		start:     opts.Start,
		commands:  make(chan logic.RemoteCommand, size),
		broadcast: make(chan struct{}, 1),
	}
}

// Submit queues a remote command for the next step. It never blocks and
// returns false when the queue is full. Safe for concurrent use.
func (d *Driver) Submit(cmd logic.RemoteCommand) bool {
	select {
	case d.commands <- cmd:
		return true
	default:
		log.WithFields(log.Fields{
			"actuator": cmd.Actuator,
			"source":   cmd.Source,
		}).Warn("command queue full, dropping")
		return false
	}
}

// RequestBroadcast asks the next step to republish every state, e.g. after
// the broker connection was re-established. Safe for concurrent use.
func (d *Driver) RequestBroadcast() {
	select {
	case d.broadcast <- struct{}{}:
	default:
	}
}

// Ticks converts a wall clock reading into the driver's Ticks.
func (d *Driver) Ticks(now time.Time) logic.Ticks {
	return logic.TicksAt(d.start, now)
}

// Step runs one control step at wall time now.
func (d *Driver) Step(now time.Time) {
	t := d.Ticks(now)

	acked := d.drainCommands(t)

	raw, err := d.reader.Read()
	if err != nil {
		log.WithError(err).Warn("gpio read failed")
	} else {
		events, err := d.reg.Sample(raw, t)
		if err != nil {
			log.WithError(err).Error("sample inputs")
		}
		for _, ev := range events {
			log.WithFields(log.Fields{"input": ev.Input, "on": ev.New}).Info("input changed")
			if err := d.pub.PublishInput(ev.Input, ev.New); err != nil {
				log.WithError(err).WithField("input", ev.Input).Warn("publish input")
			}
		}
	}

	published := d.publishChanges(d.reg.Tick(t))

	// Commands that changed nothing are acknowledged with the current state.
	for _, name := range acked {
		if published[name] {
			continue
		}
		if a, ok := d.reg.Actuator(name); ok {
			d.publishDirection(name, a.Direction())
		}
	}

	select {
	case <-d.broadcast:
		d.Broadcast()
	default:
	}

	d.updateTracker(t)

	if hb := d.heartbeat.Check(now, d.reg.Counts()); hb != nil {
		log.WithFields(log.Fields{
			"uptime":   hb.Uptime.Truncate(time.Second),
			"commands": hb.Counts.Commands,
			"stops":    hb.Counts.AutoStops,
		}).Info("heartbeat")
		d.publishSystem(hb.Timestamp, EventHeartbeat, "", false)
	}
}

// Broadcast republishes every actuator direction and input level.
func (d *Driver) Broadcast() {
	for _, a := range d.reg.Actuators() {
		d.publishDirection(a.Name(), a.Direction())
	}
	for _, in := range d.reg.Inputs() {
		if err := d.pub.PublishInput(in.Name(), in.Get()); err != nil {
			log.WithError(err).WithField("input", in.Name()).Warn("publish input")
		}
	}
}

// Startup publishes the startup event and the initial state.
func (d *Driver) Startup(now time.Time) {
	d.updateTracker(d.Ticks(now))
	d.publishSystem(now, EventStartup, "", true)
	d.Broadcast()
}

// Shutdown stops every actuator, publishes the resulting states and the
// shutdown event.
func (d *Driver) Shutdown(now time.Time, reason string) {
	t := d.Ticks(now)
	d.reg.StopAll()
	d.publishChanges(d.reg.Tick(t))
	d.updateTracker(t)
	d.publishSystem(now, EventShutdown, reason, true)
}

func (d *Driver) drainCommands(t logic.Ticks) []string {
	var names []string
	seen := make(map[string]bool)
	for {
		select {
		case cmd := <-d.commands:
			fields := log.Fields{
				"actuator": cmd.Actuator,
				"value":    cmd.Raw,
				"source":   cmd.Source,
			}
			if !cmd.Valid {
				log.WithFields(fields).Warn("invalid direction, stopping")
			}
			applied, err := d.reg.ApplyRemote(cmd, t)
			if err != nil {
				log.WithError(err).WithFields(fields).Warn("command rejected")
				continue
			}
			log.WithFields(fields).WithField("applied", applied.String()).Info("command")
			if !seen[cmd.Actuator] {
				seen[cmd.Actuator] = true
				names = append(names, cmd.Actuator)
			}
		default:
			return names
		}
	}
}

func (d *Driver) publishChanges(changes []logic.Change) map[string]bool {
	published := make(map[string]bool, len(changes))
	for _, c := range changes {
		log.WithFields(log.Fields{
			"actuator":  c.Actuator,
			"direction": c.Direction.String(),
			"reason":    string(c.Reason),
		}).Info("actuator changed")
		d.publishDirection(c.Actuator, c.Direction)
		published[c.Actuator] = true
	}
	return published
}

func (d *Driver) publishDirection(name string, dir logic.Direction) {
	if err := d.pub.PublishDirection(name, dir); err != nil {
		log.WithError(err).WithField("actuator", name).Warn("publish direction")
	}
}

func (d *Driver) updateTracker(t logic.Ticks) {
	if d.tracker == nil {
		return
	}
	actuators, inputs := status.Collect(d.reg, t)
	d.tracker.Update(actuators, inputs, d.reg.Counts())
	if d.conn != nil {
		d.tracker.SetMQTTConnected(d.conn.IsConnected())
	}
}

func (d *Driver) publishSystem(ts time.Time, event, reason string, retained bool) {
	ev := mqtt.SystemEvent{
		Timestamp: ts,
		Event:     event,
		Reason:    reason,
		Retained:  retained,
	}
	if d.tracker != nil {
		ev.RawPayload = status.FormatStatusEvent(d.tracker.Snapshot(), event, reason)
	}
	if err := d.pub.PublishSystem(ev); err != nil {
		log.WithError(err).WithField("event", event).Warn("publish system event")
		return
	}
	log.WithField("event", event).Debug("published system event")
}
