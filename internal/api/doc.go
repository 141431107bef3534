// Package api exposes the engine over HTTP.
//
// It is pure translation: handlers validate request shape, call into the
// engine and map outcomes to JSON responses. No alarm policy lives here.
package api
