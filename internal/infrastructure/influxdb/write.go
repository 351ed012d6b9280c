package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// measurementLightState records every published light state change.
const measurementLightState = "light_state"

// WritePoint queues a point stamped with the current time.
//
//	client.WritePoint("poll_cycle", nil, map[string]any{"duration_ms": 120, "ok": true})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime queues a point with an explicit timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}

// WriteLightState records the state of one light after it changed.
func (c *Client) WriteLightState(id, name string, on bool, brightness float64) {
	c.WritePoint(measurementLightState,
		map[string]string{
			"device_id": id,
			"name":      name,
		},
		map[string]any{
			"on":         on,
			"brightness": brightness,
		})
}
