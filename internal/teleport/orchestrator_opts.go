package teleport

import "time"

type OrchestratorOpt func(*Orchestrator)

// WithReporter sets where teleport outcomes are sent.
func WithReporter(r Reporter) OrchestratorOpt {
	return func(o *Orchestrator) {
		o.reporter = r
	}
}

// WithClock sets the time source used to stamp markers.
func WithClock(now func() time.Time) OrchestratorOpt {
	return func(o *Orchestrator) {
		o.now = now
	}
}
