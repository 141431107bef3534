// Package server wires the engine, its repositories, the Telegram bot and
// the HTTP API into a running process.
package server
