package unify

import (
	"github.com/gitrdm/gounify/pkg/kernel"
)

// nextSolution produces the next solution, or reports end-of-stream or an
// error. On the first call it drains the queue; on later calls it forces
// backtracking by setting a synthetic conflict that depends on every open
// assumption, so resolution resumes at the top of the case-split stack.
func (u *Unifier) nextSolution() (Substitution, bool, error) {
	if u.fatal != nil {
		return Substitution{}, false, u.fatal
	}
	if u.inConflict() {
		return u.failure()
	}
	if len(u.caseSplits) > 0 {
		var all *kernel.Justification
		for _, cs := range u.caseSplits {
			all = kernel.Composite(all, kernel.MkAssumptionJustification(cs.assumptionIdx))
		}
		u.setConflict(all)
		if !u.resolveConflict() {
			return u.failure()
		}
	} else if u.first {
		u.first = false
	} else {
		// no case splits are left: the stream is exhausted, and that is
		// not an error
		return Substitution{}, false, nil
	}
	for {
		if u.fatal != nil {
			return Substitution{}, false, u.fatal
		}
		if u.inConflict() {
			if !u.resolveConflict() {
				return u.failure()
			}
			continue
		}
		if u.q.empty() {
			break
		}
		if err := u.checkSystem(); err != nil {
			return Substitution{}, false, err
		}
		u.processNext()
	}
	u.logger.Debug("solution", "assignments", u.subst.Len(), "levelAssignments", u.subst.LevelLen())
	return u.subst, true, nil
}

// failure surfaces an unrecoverable conflict: as a *UnifierError carrying
// the final justification when UseException is set, as a plain
// end-of-stream otherwise. Fatal errors always surface.
func (u *Unifier) failure() (Substitution, bool, error) {
	if u.fatal != nil {
		return Substitution{}, false, u.fatal
	}
	if u.useException {
		return Substitution{}, false, &UnifierError{Justification: u.conflict}
	}
	return Substitution{}, false, nil
}

// SolutionStream enumerates the solutions of a unification problem lazily.
// Each Next call resumes the search from where the previous one stopped.
type SolutionStream struct {
	u    *Unifier
	done bool
	err  error
}

// Next returns the next solution. ok is false when the stream is exhausted;
// err is non-nil when the problem is unsolvable (with Config.UseException
// set) or a fatal error occurred. After ok=false the stream stays finished.
func (s *SolutionStream) Next() (Substitution, bool, error) {
	if s.done {
		return Substitution{}, false, s.err
	}
	sub, ok, err := s.u.nextSolution()
	if !ok {
		s.done = true
		s.err = err
	}
	return sub, ok, err
}

// Take pulls up to n solutions from the stream.
func (s *SolutionStream) Take(n int) ([]Substitution, error) {
	var out []Substitution
	for i := 0; i < n; i++ {
		sub, ok, err := s.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			break
		}
		out = append(out, sub)
	}
	return out, nil
}

// Solutions returns the lazy stream of solutions for this engine.
func (u *Unifier) Solutions() *SolutionStream {
	return &SolutionStream{u: u}
}

// Unify solves the given constraints and returns the lazy solution stream.
func Unify(env *kernel.Environment, cs []kernel.Constraint, ngen *kernel.NameGenerator, cfg Config) *SolutionStream {
	return NewUnifier(env, cs, ngen, cfg).Solutions()
}

// UnifyExprs unifies two expressions. It first runs the kernel's
// definitional-equality check, routing every emitted constraint through the
// simple unifier; only when some constraint comes back Unsupported does it
// spin up the full engine, seeded with the assignments the fast path
// already made. The returned stream never errors on unsolvability: it is
// simply empty, matching Config.UseException = false.
func UnifyExprs(env *kernel.Environment, lhs, rhs kernel.Expr, ngen *kernel.NameGenerator, cfg Config) *SolutionStream {
	s := NewSubstitution()
	var pending []kernel.Constraint
	failed := false
	tc := kernel.NewChecker(env, ngen.MkChild(), func(c kernel.Constraint) {
		if failed {
			return
		}
		st, s2 := UnifySimpleConstraint(s, c)
		switch st {
		case StatusSolved:
			s = s2
		case StatusFailed:
			failed = true
		case StatusUnsupported:
			pending = append(pending, c)
		}
	})
	ok, err := tc.IsDefEq(lhs, rhs, nil)
	if err != nil {
		return &SolutionStream{done: true, err: err}
	}
	if !ok || failed {
		return &SolutionStream{done: true}
	}
	if len(pending) == 0 {
		return solvedStream(s)
	}
	cfg.UseException = false
	return newUnifier(env, pending, ngen, s, cfg).Solutions()
}

// solvedStream is a one-element stream.
func solvedStream(s Substitution) *SolutionStream {
	u := &Unifier{subst: s, first: true, q: newQueueState()}
	u.logger = DefaultConfig().Logger
	return &SolutionStream{u: u}
}
