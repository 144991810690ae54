package settle

// Balance is how far one participant is from their required share.
// At most one of Debt and Credit is non-zero.
type Balance struct {
	Key      string `json:"name"`
	Paid     int64  `json:"paid"`
	Required int64  `json:"required"`
	Debt     int64  `json:"debt"`
	Credit   int64  `json:"credit"`
}

// Net is positive for creditors and negative for debtors.
func (b Balance) Net() int64 {
	return b.Credit - b.Debt
}

func Classify(n *Normalized) []Balance {
	out := make([]Balance, len(n.Entries))
	for i, e := range n.Entries {
		required := n.Share * int64(GroupSize(e.Key))
		out[i] = Balance{
			Key:      e.Key,
			Paid:     e.Amount,
			Required: required,
			Debt:     max(0, required-e.Amount),
			Credit:   max(0, e.Amount-required),
		}
	}
	return out
}

// Totals returns the sum of all debts and all credits.
func Totals(balances []Balance) (debt, credit int64) {
	for _, b := range balances {
		debt += b.Debt
		credit += b.Credit
	}
	return debt, credit
}
