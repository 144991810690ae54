// Package parse turns chat text into an expense map.
package parse

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/susu3304/splitbot/internal/settle"
)

// one "<name> <amount>" entry per line; the amount is the last token
var reLine = regexp.MustCompile(`^(.+)\s+(\d+)$`)

// ParseError is returned when no line of the input could be read.
type ParseError struct {
	Rejected int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("no valid expense lines (%d rejected)", e.Rejected)
}

// Report describes which lines were skipped.
type Report struct {
	Accepted int
	Rejected []string
}

// Expenses parses lines of the form "<name> <amount>". Lines that do not match
// are skipped. A name given twice keeps its first position and the last amount.
func Expenses(text string) (*settle.ExpenseMap, *Report, error) {
	m := settle.NewExpenseMap()
	report := &Report{}
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		name, amount, ok := parseLine(line)
		if !ok {
			report.Rejected = append(report.Rejected, line)
			continue
		}
		if err := m.Add(name, amount); err != nil {
			if errors.Is(err, settle.ErrAmountTooLarge) {
				return nil, report, fmt.Errorf("line %q: %w", line, err)
			}
			report.Rejected = append(report.Rejected, line)
			continue
		}
		report.Accepted++
	}
	if m.Len() == 0 {
		return nil, report, &ParseError{Rejected: len(report.Rejected)}
	}
	return m, report, nil
}

func parseLine(line string) (string, int64, bool) {
	match := reLine.FindStringSubmatch(line)
	if len(match) != 3 {
		return "", 0, false
	}
	amount, err := strconv.ParseInt(match[2], 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		// ParseInt saturates at MaxInt64, which Add rejects as too large
		return strings.TrimSpace(match[1]), amount, true
	}
	if err != nil {
		return "", 0, false
	}
	return strings.TrimSpace(match[1]), amount, true
}

// Entries builds an expense map from already structured input.
func Entries(entries []settle.Entry) (*settle.ExpenseMap, error) {
	m := settle.NewExpenseMap()
	for _, e := range entries {
		if err := m.Add(e.Key, e.Amount); err != nil {
			return nil, fmt.Errorf("entry %q: %w", e.Key, err)
		}
	}
	if m.Len() == 0 {
		return nil, &ParseError{}
	}
	return m, nil
}
