package datagram

import "github.com/kestrelnet/proactor/api"

// Errors specific to the datagram endpoint's own bookkeeping; I/O failures
// surface as api.Error with ErrCodeOS via the usual completion path.
var (
	errSocketClosed = api.NewError(api.ErrCodeInvalidArgument, "socket closed")
	errNotConnected = api.NewError(api.ErrCodeInvalidArgument, "socket has no default peer")
	errUnknownToken = api.NewError(api.ErrCodeInvalidArgument, "unknown cancellation token")

	// errDeadlineExpired is delivered to a send/receive callback when its
	// entry's wall-clock deadline fires before the operation completes.
	// WouldBlock, not Cancelled: the caller asked for a bounded wait, and
	// ran out of time, rather than anyone canceling the operation outright.
	errDeadlineExpired = api.NewError(api.ErrCodeWouldBlock, "operation deadline expired")

	// errOperationCancelled is delivered when Socket.Cancel(token) reaches
	// an entry before it finishes on its own.
	errOperationCancelled = api.NewError(api.ErrCodeCancelled, "operation cancelled")

	// errReceiveShutdown is delivered to every pending receive callback
	// once the receive direction has been shut down; a later Receive call
	// returns it directly instead of posting a buffer.
	errReceiveShutdown = api.NewError(api.ErrCodeEOF, "receive direction shut down")
)
