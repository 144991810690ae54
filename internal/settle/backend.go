package settle

import (
	"context"
	"math/bits"
	"sort"
)

type Status int

const (
	StatusNotSolved Status = iota
	StatusOptimal
	// StatusFeasible is a valid assignment that is not proven minimal.
	StatusFeasible
	StatusInfeasible
	StatusUnbounded
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusFeasible:
		return "feasible"
	case StatusInfeasible:
		return "infeasible"
	case StatusUnbounded:
		return "unbounded"
	default:
		return "not_solved"
	}
}

// Solution holds one value per model variable, indexed by VarID.
type Solution struct {
	Status    Status
	Values    []float64
	Objective float64
}

// Backend solves a transfer model.
type Backend interface {
	Solve(ctx context.Context, m *Model) (*Solution, error)
}

// DefaultMaxExact is the largest number of non-zero balances solved exactly.
// The exact search needs 2^k states.
const DefaultMaxExact = 20

// checkEvery is how many DP states are visited between context checks.
const checkEvery = 1 << 12

// PartitionBackend solves the model by splitting the non-zero balances into
// the largest possible number of groups that each sum to zero. A group of g
// balances settles with g-1 transfers, so the minimum is k minus the number
// of groups.
//
// With more than MaxExact non-zero balances it falls back to a greedy sweep
// and reports StatusFeasible.
type PartitionBackend struct {
	MaxExact int
}

type node struct {
	idx int
	net int64
}

func (b PartitionBackend) Solve(ctx context.Context, m *Model) (*Solution, error) {
	var nodes []node
	for i := 0; i < m.Size(); i++ {
		if net := m.Credit(i) - m.Debt(i); net != 0 {
			nodes = append(nodes, node{idx: i, net: net})
		}
	}

	limit := b.MaxExact
	if limit <= 0 {
		limit = DefaultMaxExact
	}

	var groups [][]node
	status := StatusOptimal
	if len(nodes) <= limit {
		var err error
		groups, err = zeroSumGroups(ctx, nodes)
		if err != nil {
			return nil, err
		}
	} else {
		groups = greedyGroups(nodes)
		status = StatusFeasible
	}

	values := m.NewValues()
	for _, g := range groups {
		sweep(m, g, values)
	}
	return &Solution{Status: status, Values: values, Objective: m.Objective(values)}, nil
}

// zeroSumGroups finds a partition of nodes into the maximum number of
// zero-sum groups.
//
// best[mask] is the largest number of complete zero-sum groups in any ordering
// of mask; the ordering that reaches it lists each group contiguously.
func zeroSumGroups(ctx context.Context, nodes []node) ([][]node, error) {
	k := len(nodes)
	if k == 0 {
		return nil, nil
	}
	size := 1 << k
	sum := make([]int64, size)
	best := make([]uint8, size)
	for mask := 1; mask < size; mask++ {
		if mask%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		low := mask & -mask
		bit := trailingZeros(low)
		sum[mask] = sum[mask^low] + nodes[bit].net

		var top uint8
		for rest := mask; rest != 0; rest &= rest - 1 {
			i := rest & -rest
			if v := best[mask^i]; v > top {
				top = v
			}
		}
		if sum[mask] == 0 {
			top++
		}
		best[mask] = top
	}

	// Walk back from the full set, peeling off one element at a time along an
	// optimal path. Every prefix with zero sum closes a group.
	var groups [][]node
	var current []node
	mask := size - 1
	for mask != 0 {
		closes := sum[mask] == 0
		if closes && len(current) > 0 {
			groups = append(groups, current)
			current = nil
		}
		want := best[mask]
		if closes {
			want--
		}
		for rest := mask; rest != 0; rest &= rest - 1 {
			i := rest & -rest
			if best[mask^i] == want {
				current = append(current, nodes[trailingZeros(i)])
				mask ^= i
				break
			}
		}
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}
	return groups, nil
}

func trailingZeros(x int) int {
	return bits.TrailingZeros(uint(x))
}

// greedyGroups pairs off exact debtor/creditor matches and puts everything
// else in one group.
func greedyGroups(nodes []node) [][]node {
	used := make([]bool, len(nodes))
	var groups [][]node
	for i := range nodes {
		if used[i] {
			continue
		}
		for j := i + 1; j < len(nodes); j++ {
			if !used[j] && nodes[i].net+nodes[j].net == 0 {
				used[i], used[j] = true, true
				groups = append(groups, []node{nodes[i], nodes[j]})
				break
			}
		}
	}
	var rest []node
	for i, nd := range nodes {
		if !used[i] {
			rest = append(rest, nd)
		}
	}
	if len(rest) > 0 {
		groups = append(groups, rest)
	}
	return groups
}

// sweep settles one zero-sum group by repeatedly matching the largest debtor
// with the largest creditor. Each step clears at least one side, and the last
// step clears both, so a group of g balances needs at most g-1 transfers.
func sweep(m *Model, group []node, values []float64) {
	var debtors, creditors []node
	for _, nd := range group {
		if nd.net < 0 {
			debtors = append(debtors, node{idx: nd.idx, net: -nd.net})
		} else {
			creditors = append(creditors, nd)
		}
	}
	byAmount := func(s []node) {
		sort.SliceStable(s, func(a, b int) bool { return s[a].net > s[b].net })
	}
	byAmount(debtors)
	byAmount(creditors)

	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		d, c := &debtors[i], &creditors[j]
		amt := min(d.net, c.net)
		values[m.Flow(d.idx, c.idx)] += float64(amt)
		values[m.Use(d.idx, c.idx)] = 1
		d.net -= amt
		c.net -= amt
		if d.net == 0 {
			i++
		}
		if c.net == 0 {
			j++
		}
	}
}
