// Package influxdb writes bridge metrics to InfluxDB v2.
//
// Points are batched by the non-blocking write API of
// influxdb-client-go. The bridge writes:
//
//	poll_cycle   one point per poll (duration_ms, fetched, lights, published, skipped, ok)
//	command      one point per dispatch, tagged target_kind and source
//	light_state  one point per published state change, tagged device_id and name
//
// Writes on a closed client are dropped.
package influxdb
