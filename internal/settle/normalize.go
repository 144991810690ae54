package settle

import (
	"github.com/shopspring/decimal"
)

// Normalized is an expense map whose amounts sum to exactly Share*Individuals.
type Normalized struct {
	Entries     []Entry
	Share       int64
	Individuals int
	// Remainder is total - Share*Individuals before adjustment.
	Remainder int64
	// Absorber is the position of the entry that took the remainder.
	Absorber int
}

// Normalize rounds the per-person share half-to-even and moves the whole
// rounding remainder onto a single entry.
//
// The absorbing entry is the one with the largest amount paid; on a tie the
// entry added first wins.
func Normalize(m *ExpenseMap) (*Normalized, error) {
	if m.Len() == 0 {
		return nil, &DegenerateInputError{Reason: "no participants"}
	}
	n := m.Individuals()
	if n == 0 {
		return nil, &DegenerateInputError{Reason: "zero individuals"}
	}

	entries := m.Entries()
	total := m.Total()
	share := perCapita(total, n)
	diff := total - share*int64(n)

	absorber := 0
	for i := 1; i < len(entries); i++ {
		if entries[i].Amount > entries[absorber].Amount {
			absorber = i
		}
	}
	entries[absorber].Amount -= diff

	return &Normalized{
		Entries:     entries,
		Share:       share,
		Individuals: n,
		Remainder:   diff,
		Absorber:    absorber,
	}, nil
}

func perCapita(total int64, n int) int64 {
	return decimal.NewFromInt(total).
		Div(decimal.NewFromInt(int64(n))).
		RoundBank(0).
		IntPart()
}

// Sum returns the total of the adjusted amounts.
func (n *Normalized) Sum() int64 {
	var s int64
	for _, e := range n.Entries {
		s += e.Amount
	}
	return s
}
