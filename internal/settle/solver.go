// Package settle computes the fewest peer-to-peer transfers that even out a
// shared expense.
package settle

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Options struct {
	// Timeout bounds one optimizer run. Zero means no limit.
	Timeout time.Duration
	// MaxExact is the largest number of non-zero balances solved exactly.
	MaxExact int
	Backend  Backend
	Logger   *zap.Logger
}

// Solver runs normalize, classify, optimize and format for one expense map.
// It keeps no state between calls and is safe for concurrent use.
type Solver struct {
	optimizer *Optimizer
}

func NewSolver(opts Options) *Solver {
	backend := opts.Backend
	if backend == nil {
		backend = PartitionBackend{MaxExact: opts.MaxExact}
	}
	return &Solver{optimizer: NewOptimizer(backend, opts.Timeout, opts.Logger)}
}

// Solve settles an expense map.
//
// Degenerate input returns only an error. When the optimizer fails the result
// is still returned, with Kind KindNoSolution or KindTimedOut, together with
// the error.
func (s *Solver) Solve(ctx context.Context, expenses *ExpenseMap) (*Result, error) {
	norm, err := Normalize(expenses)
	if err != nil {
		return nil, err
	}
	balances := Classify(norm)
	res := newResult(norm, balances)

	plan, err := s.optimizer.Optimize(ctx, balances)
	if err != nil {
		res.fail(err)
		return res, err
	}
	res.Approximate = plan.Approximate
	res.Transfers = plan.Transfers
	if len(plan.Transfers) == 0 {
		res.Kind = KindBalanced
	} else {
		res.Kind = KindSettled
	}
	return res, nil
}
