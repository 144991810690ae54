package settle

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type Kind int

const (
	// KindSettled means at least one transfer is needed.
	KindSettled Kind = iota
	// KindBalanced means everyone already paid their share.
	KindBalanced
	// KindNoSolution means the optimizer failed.
	KindNoSolution
	// KindTimedOut means the optimizer ran out of time.
	KindTimedOut
)

func (k Kind) String() string {
	switch k {
	case KindSettled:
		return "settled"
	case KindBalanced:
		return "balanced"
	case KindNoSolution:
		return "no_solution"
	case KindTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

const (
	MessageNoSolution = "Couldn't find a solution to the problem."
	MessageTimedOut   = "Couldn't find a solution in time."
	MessageBalanced   = "Everyone has paid their share. No transfers needed."
)

type Result struct {
	Kind        Kind       `json:"kind"`
	Share       int64      `json:"share"`
	Individuals int        `json:"individuals"`
	Balances    []Balance  `json:"balances"`
	Transfers   []Transfer `json:"transfers"`
	Approximate bool       `json:"approximate"`
}

func newResult(norm *Normalized, balances []Balance) *Result {
	return &Result{
		Share:       norm.Share,
		Individuals: norm.Individuals,
		Balances:    balances,
		Transfers:   []Transfer{},
	}
}

// fail turns an optimizer error into its result kind.
func (r *Result) fail(err error) {
	r.Transfers = []Transfer{}
	if errors.Is(err, ErrTimeout) {
		r.Kind = KindTimedOut
		return
	}
	r.Kind = KindNoSolution
}

// Text renders the result as a chat message. Transfers keep participant
// order: payer first, then payee.
func (r *Result) Text(currency string) string {
	switch r.Kind {
	case KindNoSolution:
		return MessageNoSolution
	case KindTimedOut:
		return MessageTimedOut
	case KindBalanced:
		return MessageBalanced
	}
	var b strings.Builder
	b.WriteString("**Debts:**\n\n")
	for _, line := range r.Lines(currency) {
		b.WriteString(line)
		b.WriteString("\n")
	}
	if r.Approximate {
		b.WriteString("\n_Large group: this plan may use more transfers than strictly necessary._\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Lines returns one "X owes Y: amount" line per transfer.
func (r *Result) Lines(currency string) []string {
	out := make([]string, 0, len(r.Transfers))
	for _, t := range r.Transfers {
		out = append(out, fmt.Sprintf("%s owes %s: %s%d", t.From, t.To, currency, t.Amount))
	}
	return out
}
