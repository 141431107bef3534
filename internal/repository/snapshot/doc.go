// Package snapshot implements fast local persistence of the engine state.
//
// The FileRepository stores and loads a flat JSON record on disk and exposes
// a Repository interface the engine depends on. The snapshot is a warm-start
// latency optimization only; the durable log is the authoritative recovery
// source.
package snapshot
