package settle

import (
	"fmt"
	"math"
)

// Tolerance is the slack allowed when checking solver values against the model.
const Tolerance = 1e-6

type VarKind int

const (
	// FlowVar is the amount row i pays column j.
	FlowVar VarKind = iota
	// UseVar is 1 when the (i, j) transfer is used.
	UseVar
)

// VarID is a handle into the model's variable arena.
type VarID int

type Var struct {
	Kind  VarKind
	Row   int
	Col   int
	Upper float64
}

type Sense int

const (
	Equal Sense = iota
	GreaterEqual
)

type Term struct {
	Var   VarID
	Coeff float64
}

type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

// Model is the minimum-transaction transportation problem over n participants.
// Variables live in one arena and are addressed through two dense n*n tables.
type Model struct {
	n           int
	debt        []int64
	credit      []int64
	bigM        float64
	vars        []Var
	flow        [][]VarID
	use         [][]VarID
	constraints []Constraint
}

// NewModel builds the model for the given balances. Pairs that can never carry
// a transfer (self pairs, rows without debt, columns without credit) are
// bounded to zero.
func NewModel(balances []Balance) *Model {
	n := len(balances)
	m := &Model{
		n:      n,
		debt:   make([]int64, n),
		credit: make([]int64, n),
		vars:   make([]Var, 0, 2*n*n),
		flow:   make([][]VarID, n),
		use:    make([][]VarID, n),
	}
	var total int64
	for i, b := range balances {
		m.debt[i] = b.Debt
		m.credit[i] = b.Credit
		total += b.Credit
	}
	m.bigM = float64(total)

	for i := 0; i < n; i++ {
		m.flow[i] = make([]VarID, n)
		m.use[i] = make([]VarID, n)
		for j := 0; j < n; j++ {
			open := i != j && m.debt[i] > 0 && m.credit[j] > 0
			flowUpper, useUpper := 0.0, 0.0
			if open {
				flowUpper = float64(min(m.debt[i], m.credit[j]))
				useUpper = 1
			}
			m.flow[i][j] = m.addVar(Var{Kind: FlowVar, Row: i, Col: j, Upper: flowUpper})
			m.use[i][j] = m.addVar(Var{Kind: UseVar, Row: i, Col: j, Upper: useUpper})
		}
	}

	for j := 0; j < n; j++ {
		terms := make([]Term, 0, n)
		for i := 0; i < n; i++ {
			terms = append(terms, Term{Var: m.flow[i][j], Coeff: 1})
		}
		m.constraints = append(m.constraints, Constraint{
			Name: fmt.Sprintf("inflow[%d]", j), Terms: terms, Sense: Equal, RHS: float64(m.credit[j]),
		})
	}
	for i := 0; i < n; i++ {
		terms := make([]Term, 0, n)
		for j := 0; j < n; j++ {
			terms = append(terms, Term{Var: m.flow[i][j], Coeff: 1})
		}
		m.constraints = append(m.constraints, Constraint{
			Name: fmt.Sprintf("outflow[%d]", i), Terms: terms, Sense: Equal, RHS: float64(m.debt[i]),
		})
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			m.constraints = append(m.constraints, Constraint{
				Name:  fmt.Sprintf("link[%d,%d]", i, j),
				Terms: []Term{{Var: m.use[i][j], Coeff: m.bigM}, {Var: m.flow[i][j], Coeff: -1}},
				Sense: GreaterEqual,
			})
		}
	}
	return m
}

func (m *Model) addVar(v Var) VarID {
	m.vars = append(m.vars, v)
	return VarID(len(m.vars) - 1)
}

func (m *Model) Size() int          { return m.n }
func (m *Model) NumVars() int       { return len(m.vars) }
func (m *Model) BigM() float64      { return m.bigM }
func (m *Model) Debt(i int) int64   { return m.debt[i] }
func (m *Model) Credit(i int) int64 { return m.credit[i] }
func (m *Model) Flow(i, j int) VarID {
	return m.flow[i][j]
}
func (m *Model) Use(i, j int) VarID {
	return m.use[i][j]
}
func (m *Model) Var(id VarID) Var {
	return m.vars[id]
}

func (m *Model) Constraints() []Constraint {
	return m.constraints
}

// NewValues returns a zeroed value vector sized for the model.
func (m *Model) NewValues() []float64 {
	return make([]float64, len(m.vars))
}

// Objective counts the transfers used by an assignment.
func (m *Model) Objective(values []float64) float64 {
	var sum float64
	for i := 0; i < m.n; i++ {
		for j := 0; j < m.n; j++ {
			sum += values[m.use[i][j]]
		}
	}
	return sum
}

// Verify checks an assignment against variable bounds, integrality and every
// constraint of the model.
func (m *Model) Verify(values []float64) error {
	if len(values) != len(m.vars) {
		return fmt.Errorf("got %d values for %d variables", len(values), len(m.vars))
	}
	for id, v := range m.vars {
		x := values[id]
		if x < -Tolerance || x > v.Upper+Tolerance {
			return fmt.Errorf("variable %s out of bounds: %g", m.varName(VarID(id)), x)
		}
		if math.Abs(x-math.Round(x)) > Tolerance {
			return fmt.Errorf("variable %s not integral: %g", m.varName(VarID(id)), x)
		}
	}
	for _, c := range m.constraints {
		var lhs float64
		for _, t := range c.Terms {
			lhs += t.Coeff * values[t.Var]
		}
		switch c.Sense {
		case Equal:
			if math.Abs(lhs-c.RHS) > Tolerance {
				return fmt.Errorf("constraint %s violated: %g != %g", c.Name, lhs, c.RHS)
			}
		case GreaterEqual:
			if lhs < c.RHS-Tolerance {
				return fmt.Errorf("constraint %s violated: %g < %g", c.Name, lhs, c.RHS)
			}
		}
	}
	return nil
}

func (m *Model) varName(id VarID) string {
	v := m.vars[id]
	prefix := "z"
	if v.Kind == UseVar {
		prefix = "x"
	}
	return fmt.Sprintf("%s[%d,%d]", prefix, v.Row, v.Col)
}
