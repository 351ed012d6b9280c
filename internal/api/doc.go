// Package api serves the bridge's HTTP status and control API.
//
// Routes (all under /api/v1):
//
//	GET  /health                bus, session and poll status
//	GET  /devices               registry snapshot, sorted by name
//	GET  /devices/{name}        one light
//	PUT  /devices/{name}/state  command; the body uses the MQTT payload grammar
//	POST /poll                  wake the poll loop
//	GET  /audit                 command audit trail
//	GET  /ws                    WebSocket stream of state changes
//
// Commands go through the same translator as MQTT commands, so validation,
// audit records and the poll wake-up are identical for both sources.
//
// WebSocket clients send {"type":"subscribe","payload":{"channels":["device.state_changed"]}}
// and then receive one event per published state change.
package api
