package settle

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"
)

// Transfer is one payment from a debtor to a creditor.
type Transfer struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

// Plan is the optimizer output before it is wrapped in a Result.
type Plan struct {
	Transfers   []Transfer
	Status      Status
	Approximate bool
}

type Optimizer struct {
	backend Backend
	timeout time.Duration
	logger  *zap.Logger
}

// NewOptimizer returns an optimizer. A zero timeout disables the deadline.
func NewOptimizer(backend Backend, timeout time.Duration, logger *zap.Logger) *Optimizer {
	if backend == nil {
		backend = PartitionBackend{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{backend: backend, timeout: timeout, logger: logger}
}

// Optimize finds the fewest transfers that clear every balance.
func (o *Optimizer) Optimize(ctx context.Context, balances []Balance) (*Plan, error) {
	model := NewModel(balances)

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	start := time.Now()
	sol, err := o.backend.Solve(ctx, model)
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			o.logger.Warn("solve timed out", zap.Int("participants", len(balances)), zap.Duration("elapsed", elapsed))
			return nil, ErrTimeout
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, o.internal(&SolverInternalError{Status: StatusNotSolved, Err: err})
	}

	switch sol.Status {
	case StatusOptimal, StatusFeasible:
	default:
		return nil, o.internal(&SolverInternalError{Status: sol.Status})
	}
	if err := model.Verify(sol.Values); err != nil {
		return nil, o.internal(&SolverInternalError{Status: sol.Status, Err: err})
	}

	plan := &Plan{Status: sol.Status, Approximate: sol.Status == StatusFeasible}
	n := model.Size()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			amt := int64(math.Round(sol.Values[model.Flow(i, j)]))
			if amt > 0 {
				plan.Transfers = append(plan.Transfers, Transfer{
					From:   balances[i].Key,
					To:     balances[j].Key,
					Amount: amt,
				})
			}
		}
	}

	o.logger.Debug("solve finished",
		zap.Int("participants", n),
		zap.Stringer("status", sol.Status),
		zap.Int("transfers", len(plan.Transfers)),
		zap.Duration("elapsed", elapsed),
	)
	return plan, nil
}

func (o *Optimizer) internal(err *SolverInternalError) error {
	o.logger.Error("solver failed on a feasible model", zap.Error(err))
	return err
}
