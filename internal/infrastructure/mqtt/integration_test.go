//go:build integration

package mqtt

import (
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/lightify2mqtt/internal/infrastructure/config"
)

// Integration tests against a live broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func integrationConfig(prefix string) config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "lightify2mqtt-it",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
		TopicPrefix: prefix,
	}
}

func TestIntegration_SubscriptionTracking(t *testing.T) {
	client, err := Connect(integrationConfig("it-track/"))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	topics := client.Topics()
	handler := func(string, []byte) error { return nil }

	for _, topic := range []string{topics.SetLights(), topics.SetGroups()} {
		if err := client.Subscribe(topic, 1, handler); err != nil {
			t.Fatalf("Subscribe(%s) error = %v", topic, err)
		}
	}
	if client.SubscriptionCount() != 2 {
		t.Errorf("SubscriptionCount() = %d, want 2", client.SubscriptionCount())
	}

	if err := client.Unsubscribe(topics.SetGroups()); err != nil {
		t.Fatalf("Unsubscribe() error = %v", err)
	}
	if client.HasSubscription(topics.SetGroups()) {
		t.Error("HasSubscription() = true after unsubscribe")
	}
}

// TestIntegration_AvailabilityRetained checks the retained "1" left on the
// connected topic is seen by a later subscriber.
func TestIntegration_AvailabilityRetained(t *testing.T) {
	bridge, err := Connect(integrationConfig("it-avail/"))
	if err != nil {
		t.Fatalf("Connect() bridge error = %v", err)
	}
	defer bridge.Close()

	// Give the asynchronous OnConnect handler time to publish.
	time.Sleep(200 * time.Millisecond)

	observer, err := Connect(integrationConfig("it-observer/"))
	if err != nil {
		t.Fatalf("Connect() observer error = %v", err)
	}
	defer observer.Close()

	received := make(chan string, 1)
	var once sync.Once
	err = observer.Subscribe(bridge.Topics().Connected(), 1, func(_ string, p []byte) error {
		once.Do(func() { received <- string(p) })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	select {
	case got := <-received:
		if got != AvailabilityBroker {
			t.Errorf("connected = %q, want %q", got, AvailabilityBroker)
		}
	case <-time.After(5 * time.Second):
		t.Error("timeout waiting for retained availability")
	}
}

func TestIntegration_MessageRoundtrip(t *testing.T) {
	pub, err := Connect(integrationConfig("it-rt/"))
	if err != nil {
		t.Fatalf("Connect() publisher error = %v", err)
	}
	defer pub.Close()

	sub, err := Connect(integrationConfig("it-rt/"))
	if err != nil {
		t.Fatalf("Connect() subscriber error = %v", err)
	}
	defer sub.Close()

	topic := sub.Topics().Status("Kitchen")
	expected := `{"val":1}`

	received := make(chan string, 1)
	var once sync.Once
	err = sub.Subscribe(topic, 1, func(_ string, p []byte) error {
		once.Do(func() { received <- string(p) })
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if err := pub.Publish(topic, []byte(expected), 1, false); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-received:
		if msg != expected {
			t.Errorf("Received = %q, want %q", msg, expected)
		}
	case <-time.After(5 * time.Second):
		t.Error("Timeout waiting for message")
	}
}
