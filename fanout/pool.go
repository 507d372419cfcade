// SPDX-License-Identifier: GPL-3.0-or-later
package fanout

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many account tasks run at the same time. One pool is
// shared by every aggregation call of a unified mailbox.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
	}
}

func (p *Pool) Size() int {
	return p.size
}

// acquire blocks until a worker slot is free. Slots are acquired with a
// background context: once a task is submitted it always runs, there is no
// cross-call cancellation.
func (p *Pool) acquire() {
	// Acquire with context.Background never returns an error.
	_ = p.sem.Acquire(context.Background(), 1)
}

func (p *Pool) release() {
	p.sem.Release(1)
}
