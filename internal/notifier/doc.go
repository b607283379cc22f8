// Package notifier delivers reminder text to the configured chat.
//
// Send is synchronous and best-effort: it never returns an error into the
// caller's control flow. Every attempt yields a Result whose Outcome is
// sent, skipped (nothing configured, empty text) or failed (transport error,
// timeout, panic in the transport). Failures are logged here and published on
// the event bus.
//
// Each send is bounded by Config.SendTimeout (including the time spent waiting
// on the rate limiter), so a stalled network call cannot wedge the reminder
// loop.
//
// For operator visibility the service keeps a small in-memory history of
// recent attempts.
package notifier
