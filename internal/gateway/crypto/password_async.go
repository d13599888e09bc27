// Copyright (c) 2025 Justin Cranford

package crypto

import (
	"context"
	"runtime"
	"sync"
)

// passwordWorkerPool dispatches scrypt/argon2 hashing onto a bounded pool so
// request-accepting goroutines never block on them directly, per
// SPEC_FULL.md §5.
type passwordWorkerPool struct {
	jobs chan func()
	once sync.Once
}

var defaultPool = newPasswordWorkerPool(runtime.GOMAXPROCS(0))

func newPasswordWorkerPool(workers int) *passwordWorkerPool {
	if workers < 1 {
		workers = 1
	}
	p := &passwordWorkerPool{jobs: make(chan func(), workers*4)}
	for i := 0; i < workers; i++ {
		go p.run()
	}
	return p
}

func (p *passwordWorkerPool) run() {
	for job := range p.jobs {
		job()
	}
}

func (p *passwordWorkerPool) submit(job func()) {
	p.jobs <- job
}

// HashResult is the outcome of an async HashPassword call.
type HashResult struct {
	Hash string
	Err  error
}

// VerifyResult is the outcome of an async VerifyPassword call.
type VerifyResult struct {
	Matched, NeedsUpgrade bool
	Err                   error
}

// HashPasswordAsync runs HashPassword on the shared worker pool, returning a
// channel that receives exactly one result, selectable against ctx for
// cancellation on connection close. The job runs even if ctx is already
// cancelled; the channel is buffered, so once ctx is done the result may or
// may not be written, and the caller's select against ctx.Done() covers that
// case.
func HashPasswordAsync(ctx context.Context, password string) <-chan HashResult {
	out := make(chan HashResult, 1)
	defaultPool.submit(func() {
		hash, err := HashPassword(password)
		select {
		case out <- HashResult{Hash: hash, Err: err}:
		case <-ctx.Done():
		}
	})
	return out
}

// VerifyPasswordAsync runs VerifyPassword on the shared worker pool.
func VerifyPasswordAsync(ctx context.Context, password, hash string) <-chan VerifyResult {
	out := make(chan VerifyResult, 1)
	defaultPool.submit(func() {
		matched, needsUpgrade, err := VerifyPassword(password, hash)
		select {
		case out <- VerifyResult{Matched: matched, NeedsUpgrade: needsUpgrade, Err: err}:
		case <-ctx.Done():
		}
	})
	return out
}
