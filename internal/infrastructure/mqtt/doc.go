// Package mqtt provides MQTT client connectivity for lightify2mqtt.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions, restored after every reconnect
//   - The retained availability topic and its Last Will
//
// # Availability
//
// Every topic lives under a configurable prefix (default "lightify/").
// The broker holds a retained value on <prefix>connected:
//
//	0  bridge offline (Last Will, or graceful Close)
//	1  connected to the broker
//	2  connected to the broker and logged in to the cloud
//
// The client publishes 0 and 1 itself. Publishing 2 is left to the caller
// that owns the cloud session.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	err = client.Subscribe(topics.SetLights(), 1,
//	    func(topic string, payload []byte) error {
//	        return handle(topic, payload)
//	    })
package mqtt
