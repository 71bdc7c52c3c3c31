// Package concurrency provides the lock-free primitive the proactor core
// uses to move work across goroutine boundaries without blocking: a bounded
// multi-producer/multi-consumer queue backing event.Pool's free list, whose
// Get is called from every caller goroutine that submits work and whose Put
// runs from the single proactor goroutine during completion dispatch.
package concurrency
