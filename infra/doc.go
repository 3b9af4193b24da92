// Package infra contains the adapters behind the core interfaces: the
// system definition loader, file and database output sinks, run
// recorders for Prometheus, InfluxDB and MQTT, and the zerolog logger.
// These packages depend only on the core packages, never the reverse.
package infra
