package server

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

// admissionController bounds the number of concurrently executing tool
// calls. Waiters queue in FIFO order; the per-request deadline covers
// both queue wait and execution.
type admissionController struct {
	sem            *semaphore.Weighted
	requestTimeout time.Duration
}

func newAdmissionController(maxConcurrent int, requestTimeout time.Duration) *admissionController {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &admissionController{
		sem:            semaphore.NewWeighted(int64(maxConcurrent)),
		requestTimeout: requestTimeout,
	}
}

// begin derives the request deadline and acquires an execution slot.
// The deadline starts at enqueue, so time spent waiting for a slot
// counts against the request budget. Callers must call the returned
// release exactly once when the work is done, and cancel to release
// the context.
func (ac *admissionController) begin(ctx context.Context) (reqCtx context.Context, cancel context.CancelFunc, release func(), err error) {
	reqCtx, cancel = context.WithTimeout(ctx, ac.requestTimeout)

	if err := ac.sem.Acquire(reqCtx, 1); err != nil {
		cancel()
		return nil, nil, nil, err
	}

	return reqCtx, cancel, func() { ac.sem.Release(1) }, nil
}
