// Package agent defines the contract between the orchestrator and the
// external agent workers it coordinates: the Worker interface, the streamed
// worker event types, the cooperative restart token, and the per-agent state
// record owned by the orchestrator's control loop.
//
// Workers never touch shared state. They communicate exclusively by emitting
// events through the Invocation's Emit function, and they honor cooperative
// cancellation by polling the restart token at their own checkpoints
// (typically before each backend request and around tool calls).
package agent
