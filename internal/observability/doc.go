// Package observability exposes reminder metrics for Prometheus and,
// optionally, net/http/pprof on one local HTTP listener.
//
// Counters are fed from the event bus, so the reminder and task packages do
// not import Prometheus.
package observability
