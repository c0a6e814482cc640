package metrics

import "time"

// Request outcomes used as the "outcome" label.
const (
	OutcomeMenu      = "menu"
	OutcomeFile      = "file"
	OutcomeFallback  = "fallback"
	OutcomeForbidden = "forbidden"
	OutcomeError     = "error"
)

// GopherMetrics receives observations from the Gopher adapter.
//
// Implementations must be safe for concurrent use: every worker reports
// through the same instance.
type GopherMetrics interface {
	// RecordRequest records a finished request with its outcome and the
	// time from selector read to last byte written.
	RecordRequest(outcome string, duration time.Duration)

	// RecordRequestStart and RecordRequestEnd bracket request processing.
	RecordRequestStart()
	RecordRequestEnd()

	// RecordBytesSent counts response bytes, terminator included.
	RecordBytesSent(bytes int64)

	// SetActiveConnections updates the open connection gauge.
	SetActiveConnections(count int32)

	RecordConnectionAccepted()
	RecordConnectionClosed()

	// RecordConnectionForceClosed counts connections closed by the shutdown
	// timeout.
	RecordConnectionForceClosed()

	// SetQueueDepth reports how many connections wait for a worker.
	SetQueueDepth(depth int)
}

// NewNoopGopherMetrics returns a GopherMetrics that discards everything.
func NewNoopGopherMetrics() GopherMetrics {
	return noopGopherMetrics{}
}

type noopGopherMetrics struct{}

func (noopGopherMetrics) RecordRequest(string, time.Duration) {}
func (noopGopherMetrics) RecordRequestStart()                 {}
func (noopGopherMetrics) RecordRequestEnd()                   {}
func (noopGopherMetrics) RecordBytesSent(int64)               {}
func (noopGopherMetrics) SetActiveConnections(int32)          {}
func (noopGopherMetrics) RecordConnectionAccepted()           {}
func (noopGopherMetrics) RecordConnectionClosed()             {}
func (noopGopherMetrics) RecordConnectionForceClosed()        {}
func (noopGopherMetrics) SetQueueDepth(int)                   {}
