package lightify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/lightify2mqtt/internal/device"
	"github.com/nerrad567/lightify2mqtt/internal/infrastructure/mqtt"
)

// Command sources recorded in the audit trail.
const (
	SourceMQTT = "mqtt"
	SourceAPI  = "api"
)

// Params is the parameter set of a command: Shorthand or Advanced.
type Params interface {
	// Values renders the parameters as gateway query parameters.
	Values() url.Values

	isParams()
}

// Shorthand is a numeric payload: off, or on at a level.
type Shorthand struct {
	On    bool
	Level *float64
}

func (Shorthand) isParams() {}

// Values returns onoff=0, or onoff=1 plus the level.
func (s Shorthand) Values() url.Values {
	v := url.Values{}
	if !s.On {
		v.Set("onoff", "0")
		return v
	}
	v.Set("onoff", "1")
	if s.Level != nil {
		v.Set("level", strconv.FormatFloat(*s.Level, 'f', -1, 64))
	}
	return v
}

// Advanced is a JSON object passed to the gateway unmodified.
type Advanced struct {
	Raw map[string]any
}

func (Advanced) isParams() {}

// Values renders each key as one query parameter. Scalars keep their
// textual form; nested values are JSON encoded.
func (a Advanced) Values() url.Values {
	v := url.Values{}
	for key, val := range a.Raw {
		switch x := val.(type) {
		case nil:
			v.Set(key, "")
		case string:
			v.Set(key, x)
		case json.Number:
			v.Set(key, x.String())
		case bool:
			v.Set(key, strconv.FormatBool(x))
		case float64:
			v.Set(key, strconv.FormatFloat(x, 'f', -1, 64))
		default:
			data, err := json.Marshal(x)
			if err != nil {
				v.Set(key, fmt.Sprint(x))
				continue
			}
			v.Set(key, string(data))
		}
	}
	return v
}

// ParsePayload decides the parameter variant for a raw payload.
//
// A number gives Shorthand (0 is off). A JSON object gives Advanced.
// Anything else returns ErrMalformedPayload.
func ParsePayload(payload []byte) (Params, error) {
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return nil, fmt.Errorf("%w: empty", ErrMalformedPayload)
	}

	if f, err := strconv.ParseFloat(text, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: %q", ErrMalformedPayload, text)
		}
		if f == 0 {
			return Shorthand{On: false}, nil
		}
		return Shorthand{On: true, Level: &f}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, fmt.Errorf("%w: %q", ErrMalformedPayload, truncate(text))
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformedPayload)
	}
	return Advanced{Raw: obj}, nil
}

// Command is one control request for a light or for all lights.
type Command struct {
	// Target is a display name or TargetAll.
	Target string
	Params Params
	Source string
}

// CommandRecord describes one dispatch attempt for the audit trail.
type CommandRecord struct {
	Target   string
	DeviceID string
	Params   url.Values
	Source   string
	Err      error
	Duration time.Duration
}

// Broadcast reports whether the record addressed every light.
func (r CommandRecord) Broadcast() bool {
	return r.Target == TargetAll
}

// AuditRecorder stores command records. Implementations must not block for long.
type AuditRecorder interface {
	RecordCommand(ctx context.Context, rec CommandRecord)
}

// Waker ends the poll wait early.
type Waker interface {
	Wake()
}

// TranslatorOptions configures a Translator.
type TranslatorOptions struct {
	Topics   mqtt.Topics
	Registry *device.Registry
	Gateway  Gateway
	Waker    Waker

	// Audit and Metrics are optional.
	Audit   AuditRecorder
	Metrics MetricsSink
	Logger  Logger
}

// Translator maps bus messages onto gateway calls.
type Translator struct {
	topics   mqtt.Topics
	registry *device.Registry
	gateway  Gateway
	waker    Waker
	audit    AuditRecorder
	metrics  MetricsSink
	logger   Logger
}

// NewTranslator creates a Translator.
func NewTranslator(opts TranslatorOptions) *Translator {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Translator{
		topics:   opts.Topics,
		registry: opts.Registry,
		gateway:  opts.Gateway,
		waker:    opts.Waker,
		audit:    opts.Audit,
		metrics:  opts.Metrics,
		logger:   logger,
	}
}

// HandleMessage processes one message from a set topic. Failures are logged
// and returned; the MQTT layer only logs them.
func (t *Translator) HandleMessage(ctx context.Context, topic string, payload []byte) error {
	ct, err := ParseCommandTopic(t.topics, topic)
	if err != nil {
		if errors.Is(err, ErrGroupsUnsupported) {
			t.logger.Warn("group control not supported, command ignored", "topic", topic)
		} else {
			t.logger.Error("rejected command topic", "topic", topic, "error", err)
		}
		return err
	}

	params, err := ParsePayload(payload)
	if err != nil {
		t.logger.Error("malformed command payload", "topic", topic, "payload", truncate(string(payload)), "error", err)
		return err
	}

	return t.Dispatch(ctx, Command{Target: ct.Target, Params: params, Source: SourceMQTT})
}

// Dispatch sends cmd to the gateway and wakes the poller on success.
//
// Returns device.ErrDeviceNotFound for an unknown name (no remote call is
// made), or an error wrapping ErrCommandFailed when the gateway call fails.
func (t *Translator) Dispatch(ctx context.Context, cmd Command) error {
	values := cmd.Params.Values()
	rec := CommandRecord{Target: cmd.Target, Params: values, Source: cmd.Source}

	if cmd.Target == TargetAll {
		start := time.Now()
		err := t.gateway.SetAll(ctx, values)
		rec.Duration = time.Since(start)
		return t.finish(ctx, rec, err)
	}

	dev, err := t.registry.LookupByName(cmd.Target)
	if err != nil {
		t.logger.Error("unknown light", "target", cmd.Target, "error", err)
		return fmt.Errorf("resolving %q: %w", cmd.Target, err)
	}

	rec.DeviceID = dev.ID
	start := time.Now()
	err = t.gateway.SetDevice(ctx, dev.ID, values)
	rec.Duration = time.Since(start)
	return t.finish(ctx, rec, err)
}

// finish records the attempt and wakes the poller after a success.
func (t *Translator) finish(ctx context.Context, rec CommandRecord, err error) error {
	if err != nil {
		rec.Err = err
		t.logger.Error("command failed",
			"target", rec.Target,
			"device_id", rec.DeviceID,
			"params", rec.Params.Encode(),
			"error", err)
	} else {
		t.logger.Info("command sent",
			"target", rec.Target,
			"device_id", rec.DeviceID,
			"params", rec.Params.Encode(),
			"source", rec.Source)
	}

	if t.audit != nil {
		t.audit.RecordCommand(ctx, rec)
	}
	if t.metrics != nil {
		writeCommandPoint(t.metrics, rec)
	}

	if err != nil {
		return fmt.Errorf("%w: %w", ErrCommandFailed, err)
	}

	if t.waker != nil {
		t.waker.Wake()
	}
	return nil
}

func truncate(s string) string {
	const limit = 120
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
