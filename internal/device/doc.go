// Package device provides the in-memory Device Registry for lightify2mqtt.
//
// The registry holds the last record the cloud returned for every light,
// keyed by device identifier, with a secondary index by display name. The
// poll loop is its only writer; the command path and the HTTP API read
// from it.
//
// Change detection compares the whole raw record with the stored one, so
// any vendor field that changes (not only on/off and brightness) triggers
// a publish.
//
// # Usage
//
//	registry := device.NewRegistry()
//	registry.SetLogger(log)
//
//	dev, changed, err := registry.Ingest(record)
//	if err != nil {
//	    // record without an identifier; skip it
//	}
//	if changed {
//	    publish(dev)
//	}
//
//	dev, err = registry.LookupByName("Kitchen")
//
// # Thread Safety
//
// All methods are safe for concurrent use. Returned devices are deep copies.
//
// Devices are never removed. A light deleted from the gateway keeps its
// last retained state until the process restarts.
package device
