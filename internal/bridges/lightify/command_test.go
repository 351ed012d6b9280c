package lightify

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"testing"

	"github.com/nerrad567/lightify2mqtt/internal/device"
	"github.com/nerrad567/lightify2mqtt/internal/infrastructure/mqtt"
)

// =============================================================================
// Payload Tests
// =============================================================================

func TestParsePayload_Shorthand(t *testing.T) {
	tests := []struct {
		payload   string
		wantOn    bool
		wantLevel string
	}{
		{"0", false, ""},
		{"0.0", false, ""},
		{" 0 ", false, ""},
		{"80", true, "80"},
		{"12.5", true, "12.5"},
		{"1", true, "1"},
		{"-5", true, "-5"},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			params, err := ParsePayload([]byte(tt.payload))
			if err != nil {
				t.Fatalf("ParsePayload(%q) error = %v", tt.payload, err)
			}
			sh, ok := params.(Shorthand)
			if !ok {
				t.Fatalf("ParsePayload(%q) = %T, want Shorthand", tt.payload, params)
			}
			if sh.On != tt.wantOn {
				t.Errorf("On = %v, want %v", sh.On, tt.wantOn)
			}

			v := sh.Values()
			wantOnoff := "0"
			if tt.wantOn {
				wantOnoff = "1"
			}
			if v.Get("onoff") != wantOnoff {
				t.Errorf("onoff = %q, want %q", v.Get("onoff"), wantOnoff)
			}
			if v.Get("level") != tt.wantLevel {
				t.Errorf("level = %q, want %q", v.Get("level"), tt.wantLevel)
			}
			if !tt.wantOn && len(v) != 1 {
				t.Errorf("off command params = %v, want onoff only", v)
			}
		})
	}
}

func TestParsePayload_Advanced(t *testing.T) {
	params, err := ParsePayload([]byte(`{"onoff":1,"level":0.5,"color":"ff0000","time":10,"fade":true,"extra":{"a":[1,2]}}`))
	if err != nil {
		t.Fatalf("ParsePayload() error = %v", err)
	}
	adv, ok := params.(Advanced)
	if !ok {
		t.Fatalf("ParsePayload() = %T, want Advanced", params)
	}
	if adv.Raw["level"] != json.Number("0.5") {
		t.Errorf("Raw[level] = %#v, want json.Number(0.5)", adv.Raw["level"])
	}

	v := adv.Values()
	want := url.Values{
		"onoff": {"1"},
		"level": {"0.5"},
		"color": {"ff0000"},
		"time":  {"10"},
		"fade":  {"true"},
		"extra": {`{"a":[1,2]}`},
	}
	if v.Encode() != want.Encode() {
		t.Errorf("Values() = %s, want %s", v.Encode(), want.Encode())
	}
}

func TestParsePayload_Malformed(t *testing.T) {
	tests := []string{
		"",
		"   ",
		"on",
		"true",
		`"80"`,
		`[1,2]`,
		`null`,
		`{"onoff":1`,
		`{"a":1} {"b":2}`,
		"NaN",
		"Inf",
	}

	for _, payload := range tests {
		t.Run(payload, func(t *testing.T) {
			if _, err := ParsePayload([]byte(payload)); !errors.Is(err, ErrMalformedPayload) {
				t.Errorf("ParsePayload(%q) error = %v, want ErrMalformedPayload", payload, err)
			}
		})
	}
}

// =============================================================================
// Translator Tests
// =============================================================================

type translatorFixture struct {
	translator *Translator
	gateway    *fakeGateway
	registry   *device.Registry
	waker      *countingWaker
	audit      *recordingAudit
	metrics    *recordingMetrics
	logger     *recordingLogger
}

func newTranslatorFixture(t *testing.T) *translatorFixture {
	t.Helper()
	f := &translatorFixture{
		gateway:  &fakeGateway{},
		registry: device.NewRegistry(),
		waker:    &countingWaker{},
		audit:    &recordingAudit{},
		metrics:  &recordingMetrics{},
		logger:   &recordingLogger{},
	}
	if _, _, err := f.registry.Ingest(map[string]any{
		"deviceId": "A1", "name": "desk", "deviceType": "LIGHT",
		"on": true, "brightnessLevel": json.Number("80"),
	}); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	f.translator = NewTranslator(TranslatorOptions{
		Topics:   mqtt.NewTopics("lightify/"),
		Registry: f.registry,
		Gateway:  f.gateway,
		Waker:    f.waker,
		Audit:    f.audit,
		Metrics:  f.metrics,
		Logger:   f.logger,
	})
	return f
}

func TestTranslator_OffCommand(t *testing.T) {
	f := newTranslatorFixture(t)

	if err := f.translator.HandleMessage(context.Background(), "lightify/set/lights/desk", []byte("0")); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	sets := f.gateway.getSets()
	if len(sets) != 1 {
		t.Fatalf("gateway calls = %d, want 1", len(sets))
	}
	if sets[0].All || sets[0].ID != "A1" {
		t.Errorf("call = %+v, want device A1", sets[0])
	}
	if sets[0].Params.Get("onoff") != "0" {
		t.Errorf("onoff = %q, want 0", sets[0].Params.Get("onoff"))
	}
	if f.waker.Count() != 1 {
		t.Errorf("wakes = %d, want 1", f.waker.Count())
	}
}

func TestTranslator_LevelCommand(t *testing.T) {
	f := newTranslatorFixture(t)

	if err := f.translator.HandleMessage(context.Background(), "lightify/set/lights/desk", []byte("42")); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	p := f.gateway.getSets()[0].Params
	if p.Get("onoff") != "1" || p.Get("level") != "42" {
		t.Errorf("params = %v, want onoff=1 level=42", p)
	}
}

func TestTranslator_AdvancedPassThrough(t *testing.T) {
	f := newTranslatorFixture(t)

	if err := f.translator.HandleMessage(context.Background(), "lightify/set/lights/desk", []byte(`{"ctemp":2700,"time":5}`)); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	p := f.gateway.getSets()[0].Params
	if p.Get("ctemp") != "2700" || p.Get("time") != "5" {
		t.Errorf("params = %v, want ctemp=2700 time=5", p)
	}
	if _, ok := p["onoff"]; ok {
		t.Error("advanced payload must not gain an onoff parameter")
	}
}

func TestTranslator_BroadcastSkipsLookup(t *testing.T) {
	f := newTranslatorFixture(t)
	// An empty registry proves no lookup happens.
	f.translator.registry = device.NewRegistry()

	if err := f.translator.HandleMessage(context.Background(), "lightify/set/lights/all", []byte("1")); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}

	sets := f.gateway.getSets()
	if len(sets) != 1 || !sets[0].All {
		t.Fatalf("calls = %+v, want one broadcast", sets)
	}
	if f.waker.Count() != 1 {
		t.Errorf("wakes = %d, want 1", f.waker.Count())
	}
}

func TestTranslator_UnknownTarget(t *testing.T) {
	f := newTranslatorFixture(t)

	err := f.translator.HandleMessage(context.Background(), "lightify/set/lights/unknown", []byte("1"))
	if !errors.Is(err, device.ErrDeviceNotFound) {
		t.Errorf("HandleMessage() error = %v, want ErrDeviceNotFound", err)
	}
	if len(f.gateway.getSets()) != 0 {
		t.Error("unknown target must not reach the gateway")
	}
	if f.waker.Count() != 0 {
		t.Error("unknown target must not wake the poller")
	}
	if len(f.logger.Errors()) != 1 {
		t.Errorf("logged errors = %d, want 1", len(f.logger.Errors()))
	}
}

func TestTranslator_GroupsRejected(t *testing.T) {
	f := newTranslatorFixture(t)

	err := f.translator.HandleMessage(context.Background(), "lightify/set/groups/downstairs", []byte("1"))
	if !errors.Is(err, ErrGroupsUnsupported) {
		t.Errorf("HandleMessage() error = %v, want ErrGroupsUnsupported", err)
	}
	if len(f.gateway.getSets()) != 0 {
		t.Error("group command must not reach the gateway")
	}
	if len(f.logger.Warns()) != 1 {
		t.Errorf("logged warnings = %d, want 1", len(f.logger.Warns()))
	}
}

func TestTranslator_MalformedPayload(t *testing.T) {
	f := newTranslatorFixture(t)

	err := f.translator.HandleMessage(context.Background(), "lightify/set/lights/desk", []byte("bright"))
	if !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("HandleMessage() error = %v, want ErrMalformedPayload", err)
	}
	if len(f.gateway.getSets()) != 0 {
		t.Error("malformed payload must not reach the gateway")
	}
}

func TestTranslator_GatewayFailure(t *testing.T) {
	f := newTranslatorFixture(t)
	f.gateway.setErr = errGatewayDown

	err := f.translator.HandleMessage(context.Background(), "lightify/set/lights/desk", []byte("1"))
	if !errors.Is(err, ErrCommandFailed) || !errors.Is(err, errGatewayDown) {
		t.Errorf("HandleMessage() error = %v, want ErrCommandFailed wrapping the gateway error", err)
	}
	if f.waker.Count() != 0 {
		t.Error("failed command must not wake the poller")
	}

	recs := f.audit.Records()
	if len(recs) != 1 || recs[0].Err == nil {
		t.Errorf("audit = %+v, want one failed record", recs)
	}
}

func TestTranslator_AuditAndMetrics(t *testing.T) {
	f := newTranslatorFixture(t)

	if err := f.translator.Dispatch(context.Background(), Command{
		Target: "desk",
		Params: Shorthand{On: false},
		Source: SourceAPI,
	}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	recs := f.audit.Records()
	if len(recs) != 1 {
		t.Fatalf("audit records = %d, want 1", len(recs))
	}
	if recs[0].DeviceID != "A1" || recs[0].Source != SourceAPI || recs[0].Err != nil {
		t.Errorf("audit record = %+v", recs[0])
	}

	points := f.metrics.Points(measurementCommand)
	if len(points) != 1 {
		t.Fatalf("command points = %d, want 1", len(points))
	}
	if points[0].Tags["target_kind"] != "light" || points[0].Fields["ok"] != true {
		t.Errorf("command point = %+v", points[0])
	}
}
