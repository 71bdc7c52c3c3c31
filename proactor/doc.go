// Package proactor implements C8: Proactor, the single-issuer event loop
// that owns a device.Device and dispatches its completions to the
// callbacks registered at submission time. Every mutating call (Submit,
// Cancel, Accept/Connect/Send/Receive, CancelSocket, DetachSocket) is safe
// to call from any goroutine: it only enqueues a deferred functor that the
// waiter loop itself runs, since the underlying ring is single-issuer.
package proactor
