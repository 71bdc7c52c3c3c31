package datagram

import "time"

// ZeroCopyNever and ZeroCopyDefault are the threshold sentinels from the
// original implementation's k_ZERO_COPY_NEVER / k_ZERO_COPY_DEFAULT: Never
// disables zero-copy send entirely, Default engages it for any send at or
// above defaultZeroCopyThreshold.
const (
	ZeroCopyNever   = -1
	ZeroCopyDefault = 0
)

const defaultZeroCopyThreshold = 16 * 1024

// CompressionEngine deflates outgoing payloads and inflates incoming ones.
// Installed via Options.Compression; spec.md §6's read/write deflater
// configuration setter.
type CompressionEngine interface {
	Deflate(payload []byte) ([]byte, error)
	Inflate(payload []byte) ([]byte, error)
}

// Options configures a Socket at Open time. Every field has a usable zero
// value; callers only need to set what they want to change from the
// default.
type Options struct {
	// Family selects unix.AF_INET (default), unix.AF_INET6, or
	// unix.AF_UNIX. Foreign-handle reception (spec.md §4.4 Open) is only
	// enabled for AF_UNIX.
	Family int

	// SendHighWatermark is the send queue's byte depth at which a
	// HighWatermark/FlowControlApplied event fires on the write queue.
	SendHighWatermark int
	// SendLowWatermark is the byte depth the send queue must drain back to
	// before the matching LowWatermark/FlowControlRelaxed event fires.
	SendLowWatermark int

	// ReceiveHighWatermark is the count of outstanding posted receive
	// buffers at which a HighWatermark/FlowControlApplied event fires on
	// the read queue.
	ReceiveHighWatermark int
	// ReceiveLowWatermark is the matching drain-back-to depth.
	ReceiveLowWatermark int

	// RateLimitBytesPerSec, if non-zero, caps outbound byte rate.
	RateLimitBytesPerSec int64
	// RateLimitBurstBytes is the token bucket's burst capacity.
	RateLimitBurstBytes int64

	// ZeroCopyThreshold selects ZeroCopyNever, ZeroCopyDefault, or an
	// explicit byte threshold at or above which Send uses
	// IORING_OP_SENDMSG_ZC.
	ZeroCopyThreshold int

	// DefaultDeadline applies to Send/Receive calls that don't specify one.
	DefaultDeadline time.Duration

	// ReceiveBufferBytes/SendBufferBytes set SO_RCVBUF/SO_SNDBUF if
	// non-zero.
	ReceiveBufferBytes int
	SendBufferBytes    int
	// ReuseAddr sets SO_REUSEADDR before Bind.
	ReuseAddr bool
	// KeepAlive sets SO_KEEPALIVE (meaningful once a peer is fixed via
	// Connect; harmless no-op for an otherwise connectionless socket).
	KeepAlive bool
	// MulticastLoopback sets IP_MULTICAST_LOOP.
	MulticastLoopback bool
	// HopLimit sets IP_TTL (or IPV6_UNICAST_HOPS for an AF_INET6 socket) if
	// non-zero.
	HopLimit int

	// Compression, if set, deflates every outbound payload and inflates
	// every inbound one.
	Compression CompressionEngine
}

func (o Options) withDefaults() Options {
	if o.SendHighWatermark == 0 {
		o.SendHighWatermark = 256 * 1024
	}
	if o.SendLowWatermark == 0 {
		o.SendLowWatermark = o.SendHighWatermark / 4
	}
	if o.ReceiveHighWatermark == 0 {
		o.ReceiveHighWatermark = 256
	}
	if o.ReceiveLowWatermark == 0 {
		o.ReceiveLowWatermark = o.ReceiveHighWatermark / 4
	}
	if o.ZeroCopyThreshold == 0 {
		o.ZeroCopyThreshold = defaultZeroCopyThreshold
	}
	return o
}
