// Package datagram implements C9: Socket, the asynchronous UDP (or AF_UNIX
// datagram) endpoint built on top of a Proactor. Beyond raw send/receive it
// adds per-direction shutdown, flow control, rate limiting, high/low
// watermarks with an observer event surface, deadline-scoped operations,
// zero-copy engagement, optional payload compression, foreign-handle
// reception over SCM_RIGHTS, and outgoing/incoming timestamp correlation.
package datagram
