package lightify

// Measurement names written to the metrics sink.
const (
	measurementPollCycle = "poll_cycle"
	measurementCommand   = "command"
)

// MetricsSink receives points. It is satisfied by *influxdb.Client.
type MetricsSink interface {
	WritePoint(measurement string, tags map[string]string, fields map[string]any)
}

func writePollPoint(sink MetricsSink, stats PollStats) {
	sink.WritePoint(measurementPollCycle, nil, map[string]any{
		"duration_ms": stats.Duration.Milliseconds(),
		"fetched":     stats.Fetched,
		"lights":      stats.Lights,
		"published":   stats.Published,
		"skipped":     stats.Skipped,
		"ok":          stats.Err == nil,
	})
}

func writeCommandPoint(sink MetricsSink, rec CommandRecord) {
	kind := "light"
	if rec.Broadcast() {
		kind = "all"
	}
	sink.WritePoint(measurementCommand,
		map[string]string{
			"target_kind": kind,
			"source":      rec.Source,
		},
		map[string]any{
			"ok":          rec.Err == nil,
			"duration_ms": rec.Duration.Milliseconds(),
		})
}
