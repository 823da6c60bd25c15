// Package unify implements a higher-order unifier for the dependently-typed
// calculus in pkg/kernel. Given equality constraints between expressions or
// universe levels, possibly containing metavariables, it enumerates
// substitutions solving all constraints simultaneously, or reports that no
// solution exists.
//
// The engine combines first-order and pattern unification, higher-order
// imitation/projection with backtracking, pluggable user constraints,
// universe-level unification, and justification-tracked conflict-driven
// backjumping. Solutions are produced lazily; see Unify and SolutionStream.
package unify

import (
	"hash/fnv"

	"github.com/benbjohnson/immutable"
	set "github.com/hashicorp/go-set/v3"

	"github.com/gitrdm/gounify/pkg/kernel"
)

// nameHasher adapts kernel.Name to the persistent map's hasher interface.
type nameHasher struct{}

func (nameHasher) Hash(n kernel.Name) uint32 {
	h := fnv.New32a()
	h.Write([]byte(n))
	return h.Sum32()
}

func (nameHasher) Equal(a, b kernel.Name) bool { return a == b }

type exprAssignment struct {
	value kernel.Expr
	j     *kernel.Justification
}

type levelAssignment struct {
	value kernel.Level
	j     *kernel.Justification
}

// Substitution is a persistent mapping from metavariable names to assigned
// values with justifications, kept separately for expression and level
// metavariables. Every operation returns a new value sharing structure with
// the old one; handles held before an operation are unaffected. This is what
// makes case-split snapshots O(1).
type Substitution struct {
	exprs *immutable.Map[kernel.Name, exprAssignment]
	lvls  *immutable.Map[kernel.Name, levelAssignment]
}

var _ kernel.MetaSubstitution = Substitution{}

// NewSubstitution returns an empty substitution.
func NewSubstitution() Substitution {
	return Substitution{
		exprs: immutable.NewMap[kernel.Name, exprAssignment](nameHasher{}),
		lvls:  immutable.NewMap[kernel.Name, levelAssignment](nameHasher{}),
	}
}

// AssignExpr extends the substitution with m := v. The caller must ensure m
// is unassigned; a metavariable is assigned at most once along any branch.
func (s Substitution) AssignExpr(m kernel.Name, v kernel.Expr, j *kernel.Justification) Substitution {
	if s.IsAssigned(m) {
		panic("unify: metavariable assigned twice: " + m.String())
	}
	return Substitution{exprs: s.exprs.Set(m, exprAssignment{value: v, j: j}), lvls: s.lvls}
}

// AssignLevel extends the substitution with the level assignment m := v.
func (s Substitution) AssignLevel(m kernel.Name, v kernel.Level, j *kernel.Justification) Substitution {
	if s.IsLevelAssigned(m) {
		panic("unify: level metavariable assigned twice: " + m.String())
	}
	return Substitution{exprs: s.exprs, lvls: s.lvls.Set(m, levelAssignment{value: v, j: j})}
}

// IsAssigned reports whether the expression metavariable m is assigned.
func (s Substitution) IsAssigned(m kernel.Name) bool {
	_, ok := s.exprs.Get(m)
	return ok
}

// IsLevelAssigned reports whether the level metavariable m is assigned.
func (s Substitution) IsLevelAssigned(m kernel.Name) bool {
	_, ok := s.lvls.Get(m)
	return ok
}

// LookupExpr returns the value and justification assigned to m.
func (s Substitution) LookupExpr(m kernel.Name) (kernel.Expr, *kernel.Justification, bool) {
	a, ok := s.exprs.Get(m)
	if !ok {
		return nil, nil, false
	}
	return a.value, a.j, true
}

// LookupLevel returns the value and justification assigned to the level
// metavariable m.
func (s Substitution) LookupLevel(m kernel.Name) (kernel.Level, *kernel.Justification, bool) {
	a, ok := s.lvls.Get(m)
	if !ok {
		return nil, nil, false
	}
	return a.value, a.j, true
}

// Len returns the number of expression assignments.
func (s Substitution) Len() int { return s.exprs.Len() }

// LevelLen returns the number of level assignments.
func (s Substitution) LevelLen() int { return s.lvls.Len() }

// Instantiate replaces every assigned metavariable in e by its value,
// beta-reducing where an assigned head metavariable was applied to
// arguments. The returned justification is the composite of the
// justifications of all assignments applied.
func (s Substitution) Instantiate(e kernel.Expr) (kernel.Expr, *kernel.Justification) {
	var j *kernel.Justification
	r := s.instantiateExpr(e, &j)
	return r, j
}

// InstantiateLevel is Instantiate for universe levels.
func (s Substitution) InstantiateLevel(l kernel.Level) (kernel.Level, *kernel.Justification) {
	var j *kernel.Justification
	r := s.instantiateLevel(l, &j)
	return r, j
}

// InstantiateCollect is Instantiate that additionally records, in the given
// sets, the level and expression metavariables that remained unassigned in
// the result. Either set may be nil.
func (s Substitution) InstantiateCollect(e kernel.Expr, unassignedLvls, unassignedExprs *set.Set[kernel.Name]) (kernel.Expr, *kernel.Justification) {
	r, j := s.Instantiate(e)
	collectUnassignedExpr(r, unassignedLvls, unassignedExprs)
	return r, j
}

// InstantiateLevelCollect is InstantiateLevel with unassigned-name
// collection.
func (s Substitution) InstantiateLevelCollect(l kernel.Level, unassignedLvls *set.Set[kernel.Name]) (kernel.Level, *kernel.Justification) {
	r, j := s.InstantiateLevel(l)
	collectUnassignedLevel(r, unassignedLvls)
	return r, j
}

func (s Substitution) instantiateExpr(e kernel.Expr, jAcc **kernel.Justification) kernel.Expr {
	if !e.HasMeta() {
		return e
	}
	switch v := e.(type) {
	case *kernel.Meta:
		a, ok := s.exprs.Get(v.Name())
		if !ok {
			return e
		}
		*jAcc = kernel.Composite(*jAcc, a.j)
		return s.instantiateExpr(a.value, jAcc)
	case *kernel.Sort:
		return kernel.MkSort(s.instantiateLevel(v.Level, jAcc))
	case *kernel.Const:
		ls := make([]kernel.Level, len(v.Levels))
		for i, l := range v.Levels {
			ls[i] = s.instantiateLevel(l, jAcc)
		}
		return kernel.MkConst(v.Name, ls...)
	case *kernel.Binding:
		return kernel.UpdateBinding(v,
			s.instantiateExpr(v.Domain, jAcc),
			s.instantiateExpr(v.Body, jAcc))
	case *kernel.App:
		fn, args := kernel.GetAppFnArgs(e)
		newArgs := make([]kernel.Expr, len(args))
		for i, a := range args {
			newArgs[i] = s.instantiateExpr(a, jAcc)
		}
		if m, ok := fn.(*kernel.Meta); ok {
			if a, assigned := s.exprs.Get(m.Name()); assigned {
				*jAcc = kernel.Composite(*jAcc, a.j)
				val := s.instantiateExpr(a.value, jAcc)
				return kernel.BetaReduce(val, newArgs...)
			}
			return kernel.MkApp(fn, newArgs...)
		}
		return kernel.MkApp(s.instantiateExpr(fn, jAcc), newArgs...)
	case *kernel.Macro:
		args := make([]kernel.Expr, len(v.Args))
		for i, a := range v.Args {
			args[i] = s.instantiateExpr(a, jAcc)
		}
		return kernel.MkMacro(v.Def, args...)
	default:
		return e
	}
}

func (s Substitution) instantiateLevel(l kernel.Level, jAcc **kernel.Justification) kernel.Level {
	if !l.HasMeta() {
		return l
	}
	switch v := l.(type) {
	case *kernel.LevelMeta:
		a, ok := s.lvls.Get(v.Name)
		if !ok {
			return l
		}
		*jAcc = kernel.Composite(*jAcc, a.j)
		return s.instantiateLevel(a.value, jAcc)
	case *kernel.LevelSucc:
		return kernel.MkLevelSucc(s.instantiateLevel(v.Of, jAcc))
	case *kernel.LevelMax:
		return kernel.MkLevelMax(s.instantiateLevel(v.Lhs, jAcc), s.instantiateLevel(v.Rhs, jAcc))
	case *kernel.LevelIMax:
		return kernel.MkLevelIMax(s.instantiateLevel(v.Lhs, jAcc), s.instantiateLevel(v.Rhs, jAcc))
	default:
		return l
	}
}

// collectUnassignedExpr records the metavariables occurring in e.
func collectUnassignedExpr(e kernel.Expr, lvls, exprs *set.Set[kernel.Name]) {
	if lvls == nil && exprs == nil {
		return
	}
	kernel.ForEach(e, func(sub kernel.Expr) bool {
		switch v := sub.(type) {
		case *kernel.Meta:
			if exprs != nil {
				exprs.Insert(v.Name())
			}
		case *kernel.Sort:
			collectUnassignedLevel(v.Level, lvls)
		case *kernel.Const:
			for _, l := range v.Levels {
				collectUnassignedLevel(l, lvls)
			}
		}
		return sub.HasMeta()
	})
}

// collectUnassignedLevel records the level metavariables occurring in l.
func collectUnassignedLevel(l kernel.Level, lvls *set.Set[kernel.Name]) {
	if lvls == nil {
		return
	}
	kernel.ForEachLevelMeta(l, func(m *kernel.LevelMeta) {
		lvls.Insert(m.Name)
	})
}
