package lightify

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/nerrad567/lightify2mqtt/internal/device"
)

// deviceTypeLight is the deviceType of records the bridge mirrors.
const deviceTypeLight = "LIGHT"

// defaultPollInterval is used when no interval is configured.
const defaultPollInterval = 30 * time.Second

// Gateway is the subset of the cloud API used by the bridge.
// It is satisfied by *lightify.Gateway from the cloud client package.
type Gateway interface {
	Devices(ctx context.Context) ([]map[string]any, error)
	SetDevice(ctx context.Context, id string, params url.Values) error
	SetAll(ctx context.Context, params url.Values) error
}

// PollStats summarises one poll cycle.
type PollStats struct {
	Started   time.Time     `json:"started"`
	Duration  time.Duration `json:"duration"`
	Fetched   int           `json:"fetched"`
	Lights    int           `json:"lights"`
	Published int           `json:"published"`
	Skipped   int           `json:"skipped"`
	Err       error         `json:"-"`
}

// PollerOptions configures a Poller.
type PollerOptions struct {
	Gateway  Gateway
	Registry *device.Registry

	// Publish is called for every new or changed device.
	Publish func(dev *device.Device) error

	Interval time.Duration

	// Metrics is optional.
	Metrics MetricsSink
	Logger  Logger
}

// Poller fetches the device list on an interval and publishes changes.
//
// Thread Safety: Wake and LastPoll may be called from any goroutine. Run
// must be called once.
type Poller struct {
	gateway  Gateway
	registry *device.Registry
	publish  func(dev *device.Device) error
	interval time.Duration
	metrics  MetricsSink
	logger   Logger

	// wake holds at most one pending request; extra wakes coalesce.
	wake chan struct{}

	lastMu sync.RWMutex
	last   PollStats
}

// NewPoller creates a Poller. Call Run to start it.
func NewPoller(opts PollerOptions) *Poller {
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Poller{
		gateway:  opts.Gateway,
		registry: opts.Registry,
		publish:  opts.Publish,
		interval: interval,
		metrics:  opts.Metrics,
		logger:   logger,
		wake:     make(chan struct{}, 1),
	}
}

// Wake requests an immediate poll cycle. It never blocks.
func (p *Poller) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Run polls until ctx is cancelled. The first cycle starts immediately.
func (p *Poller) Run(ctx context.Context) error {
	for {
		p.PollOnce(ctx)

		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		case <-p.wake:
			timer.Stop()
			p.logger.Debug("poll woken early")
		}
	}
}

// PollOnce runs a single fetch-and-reconcile cycle.
//
// A failed fetch skips the cycle without touching the registry. A record
// without an identifier is skipped; the rest of the cycle continues.
func (p *Poller) PollOnce(ctx context.Context) PollStats {
	stats := PollStats{Started: time.Now()}
	defer func() {
		stats.Duration = time.Since(stats.Started)
		p.record(stats)
	}()

	records, err := p.gateway.Devices(ctx)
	if err != nil {
		stats.Err = err
		if !errors.Is(err, context.Canceled) {
			p.logger.Error("poll failed, skipping cycle", "error", err)
		}
		return stats
	}
	stats.Fetched = len(records)

	for _, rec := range records {
		if t, _ := rec[device.FieldDeviceType].(string); t != deviceTypeLight {
			continue
		}
		stats.Lights++

		dev, changed, err := p.registry.Ingest(rec)
		if err != nil {
			stats.Skipped++
			p.logger.Warn("skipping device record", "error", err)
			continue
		}
		if !changed {
			continue
		}

		if err := p.publish(dev); err != nil {
			// Dirty devices count as changed on the next cycle.
			p.registry.MarkDirty(dev.ID)
			p.logger.Error("failed to publish light state", "name", dev.Name, "error", err)
			continue
		}
		stats.Published++
	}

	p.logger.Debug("poll cycle complete",
		"fetched", stats.Fetched,
		"lights", stats.Lights,
		"published", stats.Published)
	return stats
}

func (p *Poller) record(stats PollStats) {
	p.lastMu.Lock()
	p.last = stats
	p.lastMu.Unlock()

	if p.metrics != nil {
		writePollPoint(p.metrics, stats)
	}
}

// LastPoll returns the statistics of the most recent cycle.
func (p *Poller) LastPoll() PollStats {
	p.lastMu.RLock()
	defer p.lastMu.RUnlock()
	return p.last
}
