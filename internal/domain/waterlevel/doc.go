// Package waterlevel contains core domain types for the water-level alarm logic.
//
// It defines SystemState (the authoritative engine state), Reading (one sensor
// measurement) and LogRow (an immutable audit record appended to the durable
// log), with Clone helpers to avoid leaking internal references.
package waterlevel
