// Package poll keeps the console synchronized with the remote process.
//
// An [Engine] owns a set of periodic queries. On every tick it sends one
// batched request carrying each active query under a short identifier
// (q0, q1, ...), decodes the JSON value returned for each identifier and
// invokes that query's callback only when the raw value differs from the last
// one observed. At most one batched request is outstanding at a time; ticks
// that find a request in flight, or updates inhibited with
// [Engine.Inhibit], are skipped.
//
// A failed request moves the engine from Nominal to Degraded: callbacks see a
// nil value once, the last-observed table is cleared, every control on the
// [Controls] surface is disabled and error indicators are raised. The first
// successful request afterwards restores the controls exactly as they were.
//
// Registrations belong to a [Scope]. A page suspends its scope when it is
// swapped out and resumes it when restored, so only queries of visible pages
// are polled.
//
// [Display], [Toggle], [EditGroup] and [Login] are small compositions over
// scopes and [Engine.Command].
//
// Apart from [HTTPTransport], nothing in this package is safe for concurrent
// use. Engine state is owned by the loop goroutine.
package poll
