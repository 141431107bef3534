// Package notify delivers one-way operator notifications.
//
// The Telegram notifier sends messages through the bot API behind a rate
// limiter. Delivery is fire-and-forget: the caller never blocks on the send
// and failures are logged, not propagated.
package notify
