// SPDX-License-Identifier: MIT

package pool

import "sync"

// ObjectPool is a generic recycling pool, used for Events and other
// fixed-shape structs allocated off the completion hot path.
type ObjectPool[T any] interface {
	Get() T
	Put(T)
}

// SyncPool adapts sync.Pool to ObjectPool[T].
type SyncPool[T any] struct {
	pool *sync.Pool
}

// NewSyncPool returns a SyncPool that calls new to mint a fresh T on a Get
// that finds the pool empty.
func NewSyncPool[T any](new func() T) *SyncPool[T] {
	return &SyncPool[T]{pool: &sync.Pool{New: func() any { return new() }}}
}

func (sp *SyncPool[T]) Get() T { return sp.pool.Get().(T) }

func (sp *SyncPool[T]) Put(obj T) { sp.pool.Put(obj) }
