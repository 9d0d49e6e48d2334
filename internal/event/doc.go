// Package event defines the telemetry event types and the synchronous
// pub-sub bus used to fan coordination telemetry out to consumers (TUI,
// persistent store, log files).
//
// The orchestrator's control loop is the only publisher during a round, and
// Publish dispatches synchronously, so subscribers observe events in exactly
// the order the control loop applied the corresponding state mutations.
// Downstream consumers never need to re-derive ordering.
package event
