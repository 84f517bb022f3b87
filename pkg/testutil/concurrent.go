package testutil

import (
	"sync"
	"sync/atomic"

	dErrors "hackmate/pkg/domain-errors"
)

// ConcurrentResult counts outcomes of a concurrent run, bucketed by domain code.
type ConcurrentResult struct {
	Successes int32
	Conflicts int32
	Rejected  int32
	Errors    int32
}

func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Conflicts + r.Rejected + r.Errors
}

// RunConcurrent starts n goroutines behind a shared gate so they contend as
// closely as possible, then waits for all of them.
func RunConcurrent(n int, fn func(idx int) error) *ConcurrentResult {
	var (
		wg                                   sync.WaitGroup
		successes, conflicts, rejected, errs atomic.Int32
	)
	gate := make(chan struct{})
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-gate
			err := fn(i)
			switch {
			case err == nil:
				successes.Add(1)
			case dErrors.HasCode(err, dErrors.CodeConflict):
				conflicts.Add(1)
			case dErrors.HasCode(err, dErrors.CodeBadRequest), dErrors.HasCode(err, dErrors.CodeValidation):
				rejected.Add(1)
			default:
				errs.Add(1)
			}
		}()
	}
	close(gate)
	wg.Wait()
	return &ConcurrentResult{
		Successes: successes.Load(),
		Conflicts: conflicts.Load(),
		Rejected:  rejected.Load(),
		Errors:    errs.Load(),
	}
}
