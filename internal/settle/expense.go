package settle

import (
	"errors"
	"fmt"
	"strings"
)

// GroupDelimiter joins the names of people who share one contribution slot.
const GroupDelimiter = "+"

// MaxTotal bounds the sum of all amounts in an ExpenseMap. Every balance and
// transfer then fits a float64 mantissa exactly, so solver values round back
// to the true integers.
const MaxTotal int64 = 1 << 53

var (
	ErrNegativeAmount = errors.New("amount must not be negative")
	ErrEmptyKey       = errors.New("participant name must not be empty")
	ErrAmountTooLarge = fmt.Errorf("amounts must add up to at most %d", MaxTotal)
)

// GroupSize returns how many individuals a participant key represents.
func GroupSize(key string) int {
	return strings.Count(key, GroupDelimiter) + 1
}

type Entry struct {
	Key    string `json:"name"`
	Amount int64  `json:"amount"`
}

// ExpenseMap is an insertion-ordered mapping of participant key to the amount
// they paid. Order matters: it breaks rounding ties and orders the output.
type ExpenseMap struct {
	entries []Entry
	index   map[string]int
	total   int64
}

func NewExpenseMap() *ExpenseMap {
	return &ExpenseMap{index: make(map[string]int)}
}

// Add records an amount for key. Adding an existing key replaces its amount
// but keeps its original position.
func (m *ExpenseMap) Add(key string, amount int64) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}
	if amount < 0 {
		return ErrNegativeAmount
	}
	if m.index == nil {
		m.index = make(map[string]int)
	}
	pos, exists := m.index[key]
	var replaced int64
	if exists {
		replaced = m.entries[pos].Amount
	}
	// both sides stay below MaxTotal, so neither can overflow
	if amount > MaxTotal || m.total-replaced > MaxTotal-amount {
		return ErrAmountTooLarge
	}
	m.total += amount - replaced
	if exists {
		m.entries[pos].Amount = amount
		return nil
	}
	m.index[key] = len(m.entries)
	m.entries = append(m.entries, Entry{Key: key, Amount: amount})
	return nil
}

func (m *ExpenseMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Entries returns a copy of the entries in insertion order.
func (m *ExpenseMap) Entries() []Entry {
	if m == nil {
		return nil
	}
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

func (m *ExpenseMap) Amount(key string) (int64, bool) {
	if m == nil {
		return 0, false
	}
	pos, ok := m.index[key]
	if !ok {
		return 0, false
	}
	return m.entries[pos].Amount, true
}

// Total is the sum of all amounts. It never exceeds MaxTotal.
func (m *ExpenseMap) Total() int64 {
	if m == nil {
		return 0
	}
	return m.total
}

// Individuals is the number of people represented by all keys.
func (m *ExpenseMap) Individuals() int {
	n := 0
	for _, e := range m.Entries() {
		n += GroupSize(e.Key)
	}
	return n
}
