package kernel

import (
	"fmt"

	"github.com/gitrdm/gounify/internal/lazy"
)

// ConstraintKind enumerates the constraint variants the unifier understands.
type ConstraintKind int

const (
	// ConstraintEq is an equality between two expressions.
	ConstraintEq ConstraintKind = iota
	// ConstraintLevelEq is an equality between two universe levels.
	ConstraintLevelEq
	// ConstraintChoice asks a generator function to enumerate candidate
	// values for an expression.
	ConstraintChoice
	// ConstraintPlugin is an opaque constraint handed to the user plugin.
	ConstraintPlugin
)

func (k ConstraintKind) String() string {
	switch k {
	case ConstraintEq:
		return "eq"
	case ConstraintLevelEq:
		return "level-eq"
	case ConstraintChoice:
		return "choice"
	case ConstraintPlugin:
		return "plugin"
	default:
		return "unknown"
	}
}

// MetaSubstitution is the view of the unifier's substitution that choice
// functions receive: enough to inspect assignments without being able to
// mutate the engine.
type MetaSubstitution interface {
	// IsAssigned reports whether the expression metavariable is assigned.
	IsAssigned(m Name) bool

	// IsLevelAssigned reports whether the level metavariable is assigned.
	IsLevelAssigned(m Name) bool

	// Instantiate replaces assigned metavariables in e, returning the
	// composite justification of the assignments applied.
	Instantiate(e Expr) (Expr, *Justification)

	// InstantiateLevel is Instantiate for universe levels.
	InstantiateLevel(l Level) (Level, *Justification)
}

// AChoice is one alternative produced by a choice function: a candidate
// value, the justification for picking it, and any extra constraints the
// candidate carries.
type AChoice struct {
	Value       Expr
	J           *Justification
	Constraints []Constraint
}

// ChoiceFn enumerates candidate values for an expression of the given type.
// The sequence must be lazy; the engine pulls one alternative at a time and
// keeps the unpulled tail inside a case split.
type ChoiceFn func(typ Expr, subst MetaSubstitution, ngen *NameGenerator) lazy.Seq[AChoice]

// Constraint is a single unification obligation. Values are immutable;
// WithJustification returns an updated copy.
type Constraint struct {
	kind ConstraintKind

	lhs Expr
	rhs Expr

	lhsLvl Level
	rhsLvl Level

	expr     Expr
	choiceFn ChoiceFn
	delayed  bool

	payload any

	j *Justification
}

// MkEqConstraint returns the expression equality constraint lhs =?= rhs.
func MkEqConstraint(lhs, rhs Expr, j *Justification) Constraint {
	return Constraint{kind: ConstraintEq, lhs: lhs, rhs: rhs, j: j}
}

// MkLevelEqConstraint returns the universe equality constraint lhs =?= rhs.
func MkLevelEqConstraint(lhs, rhs Level, j *Justification) Constraint {
	return Constraint{kind: ConstraintLevelEq, lhsLvl: lhs, rhsLvl: rhs, j: j}
}

// MkChoiceConstraint returns a choice constraint for expr. When delayed is
// set the constraint is postponed until all regular and delayed constraints
// have been processed.
func MkChoiceConstraint(expr Expr, fn ChoiceFn, j *Justification, delayed bool) Constraint {
	return Constraint{kind: ConstraintChoice, expr: expr, choiceFn: fn, delayed: delayed, j: j}
}

// MkPluginConstraint returns an opaque constraint for the user plugin.
func MkPluginConstraint(payload any, j *Justification) Constraint {
	return Constraint{kind: ConstraintPlugin, payload: payload, j: j}
}

// Kind returns the constraint variant.
func (c Constraint) Kind() ConstraintKind { return c.kind }

// Lhs returns the left expression of an equality constraint.
func (c Constraint) Lhs() Expr { return c.lhs }

// Rhs returns the right expression of an equality constraint.
func (c Constraint) Rhs() Expr { return c.rhs }

// LhsLevel returns the left level of a universe equality constraint.
func (c Constraint) LhsLevel() Level { return c.lhsLvl }

// RhsLevel returns the right level of a universe equality constraint.
func (c Constraint) RhsLevel() Level { return c.rhsLvl }

// Expr returns the subject expression of a choice constraint.
func (c Constraint) Expr() Expr { return c.expr }

// ChoiceFn returns the generator of a choice constraint.
func (c Constraint) ChoiceFn() ChoiceFn { return c.choiceFn }

// Delayed reports whether a choice constraint is postponed to the
// very-delayed band.
func (c Constraint) Delayed() bool { return c.delayed }

// Payload returns the opaque payload of a plugin constraint.
func (c Constraint) Payload() any { return c.payload }

// Justification returns the constraint's justification.
func (c Constraint) Justification() *Justification { return c.j }

// WithJustification returns the constraint with its justification replaced.
func (c Constraint) WithJustification(j *Justification) Constraint {
	c.j = j
	return c
}

func (c Constraint) String() string {
	switch c.kind {
	case ConstraintEq:
		return fmt.Sprintf("%s =?= %s", c.lhs, c.rhs)
	case ConstraintLevelEq:
		return fmt.Sprintf("%s =?= %s", c.lhsLvl, c.rhsLvl)
	case ConstraintChoice:
		return fmt.Sprintf("choice %s", c.expr)
	case ConstraintPlugin:
		return fmt.Sprintf("plugin %v", c.payload)
	default:
		return "<invalid constraint>"
	}
}
