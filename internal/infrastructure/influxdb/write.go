package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the manager.
const (
	MeasurementLoop    = "manager_loop"
	MeasurementProcess = "manager_process"
	MeasurementEvent   = "manager_event"
)

// WritePoint writes a point stamped now.
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Indexed, low-cardinality labels
//   - fields: Values
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a point with an explicit timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, ts time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, ts))
}

// WriteEvent records a discrete manager event such as a crash or exit.
//
// Example:
//
//	client.WriteEvent("loop_fault", runID, "panic: nil map", nil)
func (c *Client) WriteEvent(kind, runID, message string, extra map[string]string) {
	tags := map[string]string{"kind": kind, "run_id": runID}
	for k, v := range extra {
		tags[k] = v
	}
	c.WritePoint(MeasurementEvent, tags, map[string]any{"message": message})
}
