// Package engine implements the alarm state engine, the authoritative owner
// of the in-memory system state.
//
// The engine applies the threshold/override policy to every incoming
// reading, manages the manual-override auto-expiry timer and sequences
// best-effort writes to the snapshot store, the durable log and the
// notifier. All state mutations are serialized through a single mutex; I/O
// happens only after the needed fields are copied and the lock is released,
// so the log is a best-effort audit trail rather than a transaction log.
package engine
