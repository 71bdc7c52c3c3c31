// Package socket implements C7: SocketContext, the proactor's per-fd
// bookkeeping (in-flight operation counts, detach state machine) shared by
// every socket kind attached to a ring.
package socket
