// Package app wires the document loader, kernel pool, scheduler and
// telemetry into a runnable application. It owns the process-level
// concerns: logger construction, the metrics endpoint and the lifecycle
// of an execution round.
package app
