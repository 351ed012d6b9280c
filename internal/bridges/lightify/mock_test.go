package lightify

import (
	"context"
	"errors"
	"net/url"
	"sync"
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu            sync.Mutex
	published     []mockPublish
	subscriptions []mockSubscription
	connected     bool
	publishErr    error
	handlers      map[string]func(topic string, payload []byte)
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

type mockSubscription struct {
	Topic string
	QoS   byte
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]func(topic string, payload []byte)),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, mockPublish{
		Topic:    topic,
		Payload:  payload,
		QoS:      qos,
		Retained: retained,
	})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = append(m.subscriptions, mockSubscription{Topic: topic, QoS: qos})
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// SetPublishError makes every following Publish fail with err; nil clears it.
func (m *MockMQTTClient) SetPublishError(err error) {
	m.mu.Lock()
	m.publishErr = err
	m.mu.Unlock()
}

func (m *MockMQTTClient) SetConnected(connected bool) {
	m.mu.Lock()
	m.connected = connected
	m.mu.Unlock()
}

func (m *MockMQTTClient) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mockPublish, len(m.published))
	copy(out, m.published)
	return out
}

// PublishedTo returns the messages published on topic.
func (m *MockMQTTClient) PublishedTo(topic string) []mockPublish {
	var out []mockPublish
	for _, p := range m.GetPublished() {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

func (m *MockMQTTClient) GetSubscriptions() []mockSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscriptions
}

func (m *MockMQTTClient) ClearPublished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = nil
}

// SimulateMessage delivers payload to the handler whose filter matches topic.
// Only the single-level "+" wildcard at the end is understood.
func (m *MockMQTTClient) SimulateMessage(topic string, payload []byte) bool {
	m.mu.Lock()
	var handler func(string, []byte)
	for filter, h := range m.handlers {
		if matchFilter(filter, topic) {
			handler = h
			break
		}
	}
	m.mu.Unlock()
	if handler == nil {
		return false
	}
	handler(topic, payload)
	return true
}

func matchFilter(filter, topic string) bool {
	if filter == topic {
		return true
	}
	if len(filter) > 0 && filter[len(filter)-1] == '+' {
		prefix := filter[:len(filter)-1]
		if len(topic) <= len(prefix) || topic[:len(prefix)] != prefix {
			return false
		}
		for _, c := range topic[len(prefix):] {
			if c == '/' {
				return false
			}
		}
		return true
	}
	return false
}

// fakeGateway implements Gateway for testing.
type fakeGateway struct {
	mu       sync.Mutex
	records  []map[string]any
	fetchErr error
	setErr   error
	fetches  int
	sets     []fakeSet
}

type fakeSet struct {
	ID     string // "" for broadcast
	All    bool
	Params url.Values
}

func (g *fakeGateway) Devices(ctx context.Context) ([]map[string]any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fetches++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	out := make([]map[string]any, len(g.records))
	for i, r := range g.records {
		cpy := make(map[string]any, len(r))
		for k, v := range r {
			cpy[k] = v
		}
		out[i] = cpy
	}
	return out, nil
}

func (g *fakeGateway) SetDevice(_ context.Context, id string, params url.Values) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sets = append(g.sets, fakeSet{ID: id, Params: params})
	return g.setErr
}

func (g *fakeGateway) SetAll(_ context.Context, params url.Values) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sets = append(g.sets, fakeSet{All: true, Params: params})
	return g.setErr
}

func (g *fakeGateway) setRecords(records ...map[string]any) {
	g.mu.Lock()
	g.records = records
	g.mu.Unlock()
}

func (g *fakeGateway) getSets() []fakeSet {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]fakeSet, len(g.sets))
	copy(out, g.sets)
	return out
}

func (g *fakeGateway) fetchCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fetches
}

var errGatewayDown = errors.New("gateway down")

// countingWaker implements Waker.
type countingWaker struct {
	mu    sync.Mutex
	count int
}

func (w *countingWaker) Wake() {
	w.mu.Lock()
	w.count++
	w.mu.Unlock()
}

func (w *countingWaker) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// recordingAudit implements AuditRecorder.
type recordingAudit struct {
	mu      sync.Mutex
	records []CommandRecord
}

func (a *recordingAudit) RecordCommand(_ context.Context, rec CommandRecord) {
	a.mu.Lock()
	a.records = append(a.records, rec)
	a.mu.Unlock()
}

func (a *recordingAudit) Records() []CommandRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]CommandRecord(nil), a.records...)
}

// recordingMetrics implements MetricsSink.
type recordingMetrics struct {
	mu     sync.Mutex
	points []metricPoint
}

type metricPoint struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]any
}

func (m *recordingMetrics) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	m.mu.Lock()
	m.points = append(m.points, metricPoint{measurement, tags, fields})
	m.mu.Unlock()
}

func (m *recordingMetrics) Points(measurement string) []metricPoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []metricPoint
	for _, p := range m.points {
		if p.Measurement == measurement {
			out = append(out, p)
		}
	}
	return out
}

// recordingLogger implements Logger and keeps error and warn messages.
type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	l.errors = append(l.errors, msg)
	l.mu.Unlock()
}

func (l *recordingLogger) Errors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.errors...)
}

func (l *recordingLogger) Warns() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}
