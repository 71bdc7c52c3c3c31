// Package pool provides the proactor's buffer and object pooling layer: a
// size-bucketed api.BufferPool for datagram send/receive scratch space, and
// a generic ObjectPool for recycling Events and other fixed-shape structs
// off the completion hot path.
package pool
