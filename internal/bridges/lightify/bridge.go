package lightify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/lightify2mqtt/internal/device"
	"github.com/nerrad567/lightify2mqtt/internal/infrastructure/mqtt"
)

// subscribeQoS is the QoS for command subscriptions.
const subscribeQoS = 1

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// SessionState reports whether the cloud session holds a token.
type SessionState interface {
	IsAuthenticated() bool
}

// BridgeOptions holds configuration for creating a bridge.
type BridgeOptions struct {
	// TopicPrefix is the MQTT topic prefix, e.g. "lightify/".
	TopicPrefix string

	// PollInterval is the delay between poll cycles.
	PollInterval time.Duration

	MQTTClient MQTTClient
	Gateway    Gateway
	Registry   *device.Registry

	// Availability publishes "2" for the session. Optional; created from
	// MQTTClient when nil.
	Availability *Availability

	// Session is optional and only used for status reporting.
	Session SessionState

	// Audit records command dispatches. Optional.
	Audit AuditRecorder

	// Metrics receives poll and command points. Optional.
	Metrics MetricsSink

	// OnStateChange is called after a changed device was published. Optional.
	OnStateChange func(dev device.Device)

	// Logger is optional structured logger.
	Logger Logger
}

// Bridge ties the poller, the command translator and MQTT together.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	topics        mqtt.Topics
	mqtt          MQTTClient
	registry      *device.Registry
	session       SessionState
	availability  *Availability
	poller        *Poller
	translator    *Translator
	onStateChange func(dev device.Device)
	logger        Logger

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc
}

// BridgeStatus is a point-in-time summary for health reporting.
type BridgeStatus struct {
	BrokerConnected bool      `json:"broker_connected"`
	Authenticated   bool      `json:"authenticated"`
	Availability    string    `json:"availability"`
	Devices         int       `json:"devices"`
	LastPoll        PollStats `json:"last_poll"`
	LastPollError   string    `json:"last_poll_error,omitempty"`
}

// NewBridge creates a new bridge instance.
// Call Start, then Run.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, errors.New("MQTT client is required")
	}
	if opts.Gateway == nil {
		return nil, errors.New("gateway is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("registry is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	topics := mqtt.NewTopics(opts.TopicPrefix)
	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		topics:        topics,
		mqtt:          opts.MQTTClient,
		registry:      opts.Registry,
		session:       opts.Session,
		availability:  opts.Availability,
		onStateChange: opts.OnStateChange,
		logger:        logger,
		done:          make(chan struct{}),
		ctx:           ctx,
		ctxCancel:     ctxCancel,
	}
	if b.availability == nil {
		b.availability = NewAvailability(opts.MQTTClient, topics, logger)
	}

	b.poller = NewPoller(PollerOptions{
		Gateway:  opts.Gateway,
		Registry: opts.Registry,
		Publish:  b.publishDevice,
		Interval: opts.PollInterval,
		Metrics:  opts.Metrics,
		Logger:   logger,
	})

	b.translator = NewTranslator(TranslatorOptions{
		Topics:   topics,
		Registry: opts.Registry,
		Gateway:  opts.Gateway,
		Waker:    b.poller,
		Audit:    opts.Audit,
		Metrics:  opts.Metrics,
		Logger:   logger,
	})

	return b, nil
}

// Start subscribes to the command topics.
// The MQTT client restores these subscriptions after every reconnect.
func (b *Bridge) Start() error {
	for _, topic := range []string{b.topics.SetLights(), b.topics.SetGroups()} {
		if err := b.mqtt.Subscribe(topic, subscribeQoS, b.handleMQTTMessage); err != nil {
			return fmt.Errorf("subscribe to %s: %w", topic, err)
		}
		b.logger.Info("subscribed to commands", "topic", topic)
	}
	return nil
}

// Run polls the gateway until ctx is cancelled or Stop is called.
func (b *Bridge) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b.wg.Add(1)
	defer b.wg.Done()

	go func() {
		select {
		case <-b.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	b.logger.Info("bridge running", "prefix", b.topics.Prefix)
	return b.poller.Run(ctx)
}

// Stop gracefully shuts down the bridge and waits for Run to return.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)

		// Abort in-flight commands
		b.ctxCancel()

		b.wg.Wait()

		b.logger.Info("bridge stopped")
	})
}

// handleMQTTMessage is the subscription callback for set topics.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) {
	_ = b.translator.HandleMessage(b.ctx, topic, payload) //nolint:errcheck // logged by the translator
}

// Execute runs a command from a non-MQTT source such as the HTTP API.
// payload uses the same grammar as the set topics.
func (b *Bridge) Execute(ctx context.Context, target string, payload []byte, source string) error {
	params, err := ParsePayload(payload)
	if err != nil {
		return err
	}
	return b.translator.Dispatch(ctx, Command{Target: target, Params: params, Source: source})
}

// Wake requests an immediate poll cycle.
func (b *Bridge) Wake() {
	b.poller.Wake()
}

// Registry returns the device registry the bridge writes to.
func (b *Bridge) Registry() *device.Registry {
	return b.registry
}

// Status returns a snapshot for health reporting.
func (b *Bridge) Status() BridgeStatus {
	last := b.poller.LastPoll()
	status := BridgeStatus{
		BrokerConnected: b.mqtt.IsConnected(),
		Authenticated:   b.availability.IsLoggedIn(),
		Availability:    b.availability.State(),
		Devices:         b.registry.Count(),
		LastPoll:        last,
	}
	if b.session != nil {
		status.Authenticated = b.session.IsAuthenticated()
	}
	if last.Err != nil {
		status.LastPollError = last.Err.Error()
	}
	return status
}

// publishDevice publishes the retained state of dev.
func (b *Bridge) publishDevice(dev *device.Device) error {
	payload, err := statusPayload(dev)
	if err != nil {
		return err
	}

	topic := b.topics.Status(dev.Name)
	if err := b.mqtt.Publish(topic, payload, statusQoS, statusRetained); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	b.logger.Debug("published light state", "topic", topic)

	if b.onStateChange != nil {
		b.onStateChange(*dev.DeepCopy())
	}
	return nil
}
