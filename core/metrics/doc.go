// Package metrics defines the recorders that observe a sweep. Recorders like
// the Prometheus and InfluxDB ones in infra/metrics receive one RunEvent per
// executed run and an optional SweepEvent summary, and can be combined with
// NewMultiSink. NewRecorder returns a MultiSink automatically when several
// recorders are configured.
package metrics
