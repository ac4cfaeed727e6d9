// Package influxdb writes Lumen's operational telemetry to InfluxDB v2.
//
// Telemetry is optional and strictly observational: connection counts,
// state replacements and authentication failures. Writes are batched and
// non-blocking; losing telemetry never affects the display pipeline.
package influxdb
