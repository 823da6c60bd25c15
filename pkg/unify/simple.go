package unify

import (
	"github.com/gitrdm/gounify/pkg/kernel"
)

// Status is the outcome of the simple unifier.
type Status int

const (
	// StatusSolved means the constraint was solved; the returned
	// substitution contains any assignment made.
	StatusSolved Status = iota

	// StatusFailed means the constraint cannot be satisfied under any
	// extension of the substitution.
	StatusFailed

	// StatusUnsupported means the constraint is beyond the simple
	// unifier; the caller must hand it to the full engine.
	StatusUnsupported
)

func (s Status) String() string {
	switch s {
	case StatusSolved:
		return "solved"
	case StatusFailed:
		return "failed"
	case StatusUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// UnifySimpleExpr decides easy expression equalities without touching the
// engine: reflexivity, ground disequality, and pattern assignment for a
// simple metavariable pattern against a term passing the occurs and scope
// checks. It is symmetric in lhs and rhs up to Solved/Failed status.
func UnifySimpleExpr(s Substitution, lhs, rhs kernel.Expr, j *kernel.Justification) (Status, Substitution) {
	switch {
	case lhs.Equal(rhs):
		return StatusSolved, s
	case !lhs.HasMeta() && !rhs.HasMeta():
		return StatusFailed, s
	default:
		if _, ok := kernel.IsMetaApp(lhs); ok {
			return unifySimpleExprCore(s, lhs, rhs, j)
		}
		if _, ok := kernel.IsMetaApp(rhs); ok {
			return unifySimpleExprCore(s, rhs, lhs, j)
		}
		return StatusUnsupported, s
	}
}

func unifySimpleExprCore(s Substitution, lhs, rhs kernel.Expr, j *kernel.Justification) (Status, Substitution) {
	m, locals, ok := kernel.IsSimpleMeta(lhs)
	if !ok || s.IsAssigned(m.Name()) {
		return StatusUnsupported, s
	}
	if rm, rhsFlex := kernel.IsMetaApp(rhs); rhsFlex && rm.Name() == m.Name() {
		return StatusUnsupported, s
	}
	if !kernel.OccursContextCheck(rhs, m, locals) {
		return StatusFailed, s
	}
	v := kernel.LambdaAbstractLocals(rhs, locals)
	return StatusSolved, s.AssignExpr(m.Name(), v, j)
}

// UnifySimpleLevel decides easy universe-level equalities: reflexivity,
// ground disequality, metavariable assignment with occurs checking, and
// stripping of matching outer successors.
func UnifySimpleLevel(s Substitution, lhs, rhs kernel.Level, j *kernel.Justification) (Status, Substitution) {
	switch {
	case lhs.Equal(rhs):
		return StatusSolved, s
	case !lhs.HasMeta() && !rhs.HasMeta():
		return StatusFailed, s
	case kernel.IsLevelMeta(lhs):
		return unifySimpleLevelCore(s, lhs.(*kernel.LevelMeta), rhs, j)
	case kernel.IsLevelMeta(rhs):
		return unifySimpleLevelCore(s, rhs.(*kernel.LevelMeta), lhs, j)
	case kernel.IsLevelSucc(lhs) && kernel.IsLevelSucc(rhs):
		return UnifySimpleLevel(s, kernel.SuccOf(lhs), kernel.SuccOf(rhs), j)
	default:
		return StatusUnsupported, s
	}
}

func unifySimpleLevelCore(s Substitution, m *kernel.LevelMeta, rhs kernel.Level, j *kernel.Justification) (Status, Substitution) {
	if s.IsLevelAssigned(m.Name) {
		return StatusUnsupported, s
	}
	if kernel.LevelOccurs(m, rhs) {
		// ?m inside a successor means rhs is strictly bigger than ?m.
		if kernel.IsLevelSucc(rhs) {
			return StatusFailed, s
		}
		return StatusUnsupported, s
	}
	return StatusSolved, s.AssignLevel(m.Name, rhs, j)
}

// UnifySimpleConstraint dispatches UnifySimpleExpr/UnifySimpleLevel on an
// equality constraint; every other constraint kind is Unsupported.
func UnifySimpleConstraint(s Substitution, c kernel.Constraint) (Status, Substitution) {
	switch c.Kind() {
	case kernel.ConstraintEq:
		return UnifySimpleExpr(s, c.Lhs(), c.Rhs(), c.Justification())
	case kernel.ConstraintLevelEq:
		return UnifySimpleLevel(s, c.LhsLevel(), c.RhsLevel(), c.Justification())
	default:
		return StatusUnsupported, s
	}
}
