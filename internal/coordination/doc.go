// Package coordination provides the Tracker: the append-only event log and
// iteration counter that is the system of record for one coordination round.
//
// The Tracker records *that* something happened; the orchestrator decides
// *what* happens. It contains no branching logic of its own. Because the
// orchestrator's control loop is the Tracker's only writer, log order is
// guaranteed to match the order state mutations were applied, without locks.
package coordination
