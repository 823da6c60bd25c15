package unify

import (
	"github.com/gitrdm/gounify/internal/lazy"

	"github.com/gitrdm/gounify/pkg/kernel"
)

type caseSplitKind int

const (
	caseSplitPlugin caseSplitKind = iota
	caseSplitChoice
	caseSplitHigherOrder
)

func (k caseSplitKind) String() string {
	switch k {
	case caseSplitPlugin:
		return "plugin"
	case caseSplitChoice:
		return "choice"
	case caseSplitHigherOrder:
		return "higher-order"
	default:
		return "unknown"
	}
}

// caseSplit is a backtracking point: the assumption index of the branch
// currently being explored, the accumulated justifications of failed
// branches, a snapshot of the engine's persistent state, and the remaining
// alternatives for its kind. Snapshots are cheap because substitution and
// queue are persistent values.
type caseSplit struct {
	kind caseSplitKind

	assumptionIdx uint64
	failedJusts   *kernel.Justification

	// snapshot
	subst Substitution
	q     queueState

	// plugin alternatives
	pluginTail lazy.Seq[[]kernel.Constraint]

	// choice alternatives
	choiceExpr kernel.Expr
	choiceJst  *kernel.Justification
	choiceTail lazy.Seq[kernel.AChoice]

	// higher-order alternatives
	hoTail [][]kernel.Constraint
}

// snapshotCaseSplit captures the engine state, claims a fresh assumption
// index, and brackets the type checker with a savepoint.
func (u *Unifier) snapshotCaseSplit(kind caseSplitKind) *caseSplit {
	cs := &caseSplit{
		kind:          kind,
		assumptionIdx: u.nextAssumptionIdx,
		subst:         u.subst,
		q:             u.q,
	}
	u.nextAssumptionIdx++
	u.tc.Push()
	return cs
}

func newPluginCaseSplit(u *Unifier, tail lazy.Seq[[]kernel.Constraint]) *caseSplit {
	cs := u.snapshotCaseSplit(caseSplitPlugin)
	cs.pluginTail = tail
	return cs
}

func newChoiceCaseSplit(u *Unifier, expr kernel.Expr, jst *kernel.Justification, tail lazy.Seq[kernel.AChoice]) *caseSplit {
	cs := u.snapshotCaseSplit(caseSplitChoice)
	cs.choiceExpr = expr
	cs.choiceJst = jst
	cs.choiceTail = tail
	return cs
}

func newHOCaseSplit(u *Unifier, tail [][]kernel.Constraint) *caseSplit {
	cs := u.snapshotCaseSplit(caseSplitHigherOrder)
	cs.hoTail = tail
	return cs
}

func (u *Unifier) pushCaseSplit(cs *caseSplit) {
	u.logger.Debug("case split", "kind", cs.kind.String(), "assumption", cs.assumptionIdx)
	u.caseSplits = append(u.caseSplits, cs)
}

// restoreState rolls the engine back to the split's snapshot, folds the
// current conflict into the failed-justification accumulator, claims a
// fresh assumption index for the next branch, and clears the conflict.
func (cs *caseSplit) restoreState(u *Unifier) {
	u.logger.Debug("backtrack", "kind", cs.kind.String(), "assumption", cs.assumptionIdx)
	u.tc.Pop()
	u.tc.Push()
	u.subst = cs.subst
	u.q = cs.q
	cs.failedJusts = kernel.Composite(cs.failedJusts, u.conflict)
	cs.assumptionIdx = u.nextAssumptionIdx
	u.nextAssumptionIdx++
	u.resetConflict()
}

// next installs the split's next alternative. It reports false only when
// the alternatives are exhausted; a freshly installed alternative that
// immediately conflicts still counts as installed, and the conflict is
// resolved by the caller's drain loop.
func (cs *caseSplit) next(u *Unifier) bool {
	switch cs.kind {
	case caseSplitPlugin:
		return u.nextPluginCaseSplit(cs)
	case caseSplitChoice:
		return u.nextChoiceCaseSplit(cs)
	default:
		return u.nextHOCaseSplit(cs)
	}
}

// resolveConflict backjumps to the most recent case split whose assumption
// the conflict depends on. Splits the conflict does not depend on are
// discarded; each dead branch's justification is folded into the surviving
// split so the eventual top-level failure explains every attempt.
func (u *Unifier) resolveConflict() bool {
	if u.fatal != nil {
		return false
	}
	for len(u.caseSplits) > 0 {
		d := u.caseSplits[len(u.caseSplits)-1]
		if u.conflict.DependsOn(d.assumptionIdx) {
			d.failedJusts = kernel.Composite(d.failedJusts, u.conflict)
			if d.next(u) {
				return true
			}
			if u.fatal != nil {
				return false
			}
		}
		u.tc.Pop()
		u.caseSplits = u.caseSplits[:len(u.caseSplits)-1]
	}
	return false
}

// processChoiceResult installs one choice alternative: the defining
// equation for the choice expression plus the alternative's extra
// constraints, all under the combined justification.
func (u *Unifier) processChoiceResult(m kernel.Expr, r kernel.AChoice, j *kernel.Justification) bool {
	j = kernel.Composite(j, r.J)
	if !u.ProcessConstraint(kernel.MkEqConstraint(m, r.Value, j)) {
		return false
	}
	return u.processConstraints(r.Constraints, j)
}

// processChoiceConstraint invokes the generator on the (instantiated) type
// of the choice expression and installs the first alternative, keeping the
// tail in a case split.
func (u *Unifier) processChoiceConstraint(c kernel.Constraint) bool {
	m := c.Expr()
	fn := c.ChoiceFn()
	if fn == nil {
		u.fatal = &PluginError{Reason: "choice constraint without a generator"}
		return false
	}
	mTypeRaw, ok := u.inferType(m)
	if !ok {
		return false
	}
	mType, typeJ := u.subst.Instantiate(mTypeRaw)
	rlist := fn(mType, u.subst, u.ngen.MkChild())
	r := lazy.Pull(rlist)
	j := kernel.Composite(c.Justification(), typeJ)
	if r == nil {
		u.setConflict(j)
		return false
	}
	a := kernel.MkAssumptionJustification(u.nextAssumptionIdx)
	u.pushCaseSplit(newChoiceCaseSplit(u, m, j, r.Tail))
	return u.processChoiceResult(m, r.Head, kernel.Composite(j, a))
}

func (u *Unifier) nextChoiceCaseSplit(cs *caseSplit) bool {
	r := lazy.Pull(cs.choiceTail)
	if r == nil {
		u.updateConflict(kernel.Composite(u.conflict, cs.failedJusts))
		return false
	}
	cs.restoreState(u)
	cs.choiceTail = r.Tail
	a := kernel.MkAssumptionJustification(cs.assumptionIdx)
	u.processChoiceResult(cs.choiceExpr, r.Head, kernel.Composite(cs.choiceJst, a))
	return true
}

// processPluginConstraint hands a constraint the built-in rules could not
// solve to the user plugin.
func (u *Unifier) processPluginConstraint(c kernel.Constraint) bool {
	alts := u.plugin(c, u.ngen.MkChild())
	r := lazy.Pull(alts)
	if r == nil {
		u.setConflict(c.Justification())
		return false
	}
	a := kernel.MkAssumptionJustification(u.nextAssumptionIdx)
	u.pushCaseSplit(newPluginCaseSplit(u, r.Tail))
	return u.processConstraints(r.Head, a)
}

func (u *Unifier) nextPluginCaseSplit(cs *caseSplit) bool {
	r := lazy.Pull(cs.pluginTail)
	if r == nil {
		u.updateConflict(kernel.Composite(u.conflict, cs.failedJusts))
		return false
	}
	cs.restoreState(u)
	cs.pluginTail = r.Tail
	u.processConstraints(r.Head, kernel.MkAssumptionJustification(cs.assumptionIdx))
	return true
}

func (u *Unifier) nextHOCaseSplit(cs *caseSplit) bool {
	if len(cs.hoTail) == 0 {
		u.updateConflict(kernel.Composite(u.conflict, cs.failedJusts))
		return false
	}
	cs.restoreState(u)
	alt := cs.hoTail[0]
	cs.hoTail = cs.hoTail[1:]
	u.processConstraints(alt, kernel.MkAssumptionJustification(cs.assumptionIdx))
	return true
}
