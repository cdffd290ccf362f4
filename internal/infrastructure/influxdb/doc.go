// Package influxdb records manager telemetry and crash events in InfluxDB.
//
// Three measurements are written:
//   - manager_loop: one point per tick (started, desired, alive, duration)
//   - manager_process: per-process liveness sampled each tick
//   - manager_event: discrete events (loop faults, bootstrap failures, exits)
//
// InfluxDB is optional. Connect returns ErrDisabled when it is turned off
// and every write on a nil or closed Client is a no-op.
//
// Usage:
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB, map[string]string{"device": cfg.Device.Type})
//	if err != nil && !errors.Is(err, influxdb.ErrDisabled) {
//	    logger.Warn("influxdb unavailable", "error", err)
//	}
//	defer client.Close()
package influxdb
