// Package crashreport records manager failures for the operator and for
// telemetry. Failures land in <crash_dir>/error.txt, which the UI shows
// offroad, and as manager_event points in InfluxDB when it is configured.
package crashreport
