// Package chat implements the conversational operator interface on top of
// the Telegram bot API.
//
// Commands are translated into engine calls; replies are plain text. The
// command layer enforces the stricter operator-facing trigger bound
// (0 < level <= 200) before calling into the engine.
package chat
