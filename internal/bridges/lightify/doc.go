// Package lightify bridges the Lightify cloud and MQTT.
//
// The bridge runs two flows:
//
//	cloud ──poll──▶ Poller ──Ingest──▶ device.Registry ──changed──▶ MQTT status
//	MQTT set ──▶ Translator ──LookupByName──▶ Gateway call ──▶ Poller.Wake
//
// # Topics
//
//	<prefix>status/lights/<name>   {"val": n, "lightify_state": {...}} (retained, QoS 1)
//	<prefix>set/lights/<name|all>  "0", "<level>" or a JSON object
//	<prefix>set/groups/<name>      rejected: group control is not supported
//	<prefix>connected              "0" offline, "1" broker only, "2" logged in
//
// # Payload grammar
//
// A payload that parses as a number is a shorthand command: 0 switches the
// light off, any other value switches it on at that level. A JSON object is
// passed to the gateway as its parameter set. Anything else is dropped.
package lightify
