// Package event implements C6: the Event record that tracks one in-flight
// io_uring operation from submission to completion dispatch, and Pool, its
// recycling allocator.
package event
