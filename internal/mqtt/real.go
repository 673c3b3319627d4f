package mqtt

import (
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sweeney/emperor/internal/logic"
)

const (
	bufferSize     = 100
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
	retryDelay     = time.Second
)

// RealClient is the property bridge to an actual MQTT broker.
//
// Publishing only queues the message; a sender goroutine delivers it while
// the connection is up, so a slow or absent broker never delays the tick
// loop. Commands received on `/set` topics are passed to onCommand from
// paho's goroutines.
type RealClient struct {
	client    paho.Client
	broker    string
	topics    Topics
	onCommand func(logic.RemoteCommand)
	onConnect func()

	mu  sync.Mutex
	buf *ringBuffer

	retry time.Duration
	wake  chan struct{}
	stop  chan struct{}
	done  chan struct{}
}

// NewRealClient creates a client for the given broker. onConnect is called
// after every (re)connection, once the subscription is in place. Nothing is
// sent before Connect.
func NewRealClient(broker string, topics Topics, onCommand func(logic.RemoteCommand), onConnect func()) (*RealClient, error) {
	c := &RealClient{
		topics:    topics,
		onCommand: onCommand,
		onConnect: onConnect,
		buf:       newRingBuffer(bufferSize),
		retry:     retryDelay,
		wake:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(topics.Device).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(topics.State(), StateLost, 1, true).
		SetOnConnectHandler(c.handleConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warnf("mqtt: connection lost: %v", err)
		})

	c.broker = broker
	c.client = paho.NewClient(opts)
	return c, nil
}

// Connect starts connecting and the sender goroutine. An unreachable broker
// is not fatal: the client keeps retrying in the background and queues
// outgoing state meanwhile.
func (c *RealClient) Connect() error {
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		log.Warnf("mqtt: %s not reachable yet, retrying in background", c.broker)
	} else if err := token.Error(); err != nil {
		return errors.Wrapf(err, "connect to %s", c.broker)
	}

	go c.sendLoop()
	return nil
}

// PublishDirection queues the retained direction of an actuator.
func (c *RealClient) PublishDirection(actuator string, dir logic.Direction) error {
	c.enqueue(bufferedMsg{topic: c.topics.Direction(actuator), payload: FormatDirection(dir), qos: 1, retained: true})
	return nil
}

// PublishInput queues the retained level of an input.
func (c *RealClient) PublishInput(input string, on bool) error {
	c.enqueue(bufferedMsg{topic: c.topics.Input(input), payload: FormatInput(on), qos: 1, retained: true})
	return nil
}

// PublishSystem queues a system lifecycle event.
func (c *RealClient) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return errors.Wrap(err, "format system payload")
	}
	c.enqueue(bufferedMsg{topic: c.topics.System(), payload: payload, qos: 1, retained: event.Retained})
	return nil
}

// IsConnected reports whether the connection to the broker is up.
func (c *RealClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Close flushes what it can, marks the device disconnected and disconnects.
// It must only be called after Connect.
func (c *RealClient) Close() error {
	close(c.stop)
	<-c.done
	c.flush()
	if c.client.IsConnectionOpen() {
		token := c.client.Publish(c.topics.State(), 1, true, []byte(StateDisconnected))
		token.WaitTimeout(publishTimeout)
	}
	c.client.Disconnect(1000) // 1 second quiesce
	return nil
}

func (c *RealClient) enqueue(msg bufferedMsg) {
	c.mu.Lock()
	c.buf.push(msg)
	c.mu.Unlock()
	c.signal()
}

func (c *RealClient) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// sendLoop delivers the queue whenever woken. After a failed publish on an
// open connection it retries on its own, since nothing else may wake it
// until the next state change.
func (c *RealClient) sendLoop() {
	defer close(c.done)
	for {
		select {
		case <-c.stop:
			return
		case <-c.wake:
		}
		for !c.flush() {
			select {
			case <-c.stop:
				return
			case <-time.After(c.retry):
			}
		}
	}
}

// flush delivers queued messages in order and reports whether the queue was
// emptied or the connection is down (reconnect triggers the next flush). On
// failure the undelivered tail is put back ahead of anything queued
// meanwhile, so retained state on the broker never goes backwards.
func (c *RealClient) flush() bool {
	if !c.client.IsConnectionOpen() {
		return true
	}
	c.mu.Lock()
	msgs := c.buf.drainAll()
	c.mu.Unlock()

	for i, m := range msgs {
		token := c.client.Publish(m.topic, m.qos, m.retained, m.payload)
		if !token.WaitTimeout(publishTimeout) {
			log.Warnf("mqtt: publish %s timeout", m.topic)
			c.requeue(msgs[i:])
			return false
		}
		if err := token.Error(); err != nil {
			log.Warnf("mqtt: publish %s: %v", m.topic, err)
			c.requeue(msgs[i:])
			return false
		}
	}
	return true
}

func (c *RealClient) requeue(msgs []bufferedMsg) {
	c.mu.Lock()
	c.buf.pushFront(msgs)
	c.mu.Unlock()
}

// handleConnect runs on paho's goroutine after every (re)connection.
func (c *RealClient) handleConnect(client paho.Client) {
	log.Infof("mqtt: connected")

	token := client.Subscribe(c.topics.DirectionSetFilter(), 1, c.handleMessage)
	if !token.WaitTimeout(publishTimeout) {
		log.Errorf("mqtt: subscribe %s timeout", c.topics.DirectionSetFilter())
	} else if err := token.Error(); err != nil {
		log.Errorf("mqtt: subscribe %s: %v", c.topics.DirectionSetFilter(), err)
	}

	c.enqueue(bufferedMsg{topic: c.topics.State(), payload: []byte(StateReady), qos: 1, retained: true})
	if c.onConnect != nil {
		c.onConnect()
	}
}

func (c *RealClient) handleMessage(_ paho.Client, m paho.Message) {
	cmd, ok := c.topics.ParseCommand(m.Topic(), m.Payload())
	if !ok {
		log.Debugf("mqtt: ignoring %s", m.Topic())
		return
	}
	if !cmd.Valid {
		log.Warnf("mqtt: invalid direction %q for %s, stopping", cmd.Raw, cmd.Actuator)
	}
	c.onCommand(cmd)
}
