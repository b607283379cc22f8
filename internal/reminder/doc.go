// Package reminder implements the deadline-reminder core.
//
// A Loop polls pending tasks on a short cadence and runs three independently
// timed actions, strictly one after another on a single goroutine:
//
//   - tick: Scanner.Scan classifies every dated task into the pre-reminder
//     window [R-W, R+W] or the due-now window [-W, +W] around its deadline
//     (R = reminder lead time, W = tolerance) and notifies at most once per
//     (task, kind), using the Cache as the record of what was already sent.
//   - evict: Cache.EvictOlderThan drops entries older than the retention TTL.
//     This only bounds memory; the narrow windows already prevent re-firing.
//   - weekly: Reporter.Report sends a digest at the configured weekday and
//     time, at most once per matching slot.
//
// The cache lives in memory only. A restart while a window is still open can
// therefore send that reminder a second time.
//
// Time is injected through Clock, and Loop.Step runs whatever is due at a
// given instant, so tests drive the loop tick by tick without sleeping.
package reminder
