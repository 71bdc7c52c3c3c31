// Package chronology implements the proactor's timer scheduling: a binary
// min-heap of pending deadlines (api.Scheduler) that RingDevice.wait
// consults to bound its io_uring_enter timeout, and that datagram sockets
// use for send/receive deadlines and rate-limit relief callbacks.
package chronology
