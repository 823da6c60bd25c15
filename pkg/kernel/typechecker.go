package kernel

import (
	"fmt"
)

// TypeChecker is the kernel collaborator the unifier drives. Implementations
// may emit new constraints while checking (through the callback supplied at
// construction); the unifier drains and processes them after each call.
//
// Push and Pop bracket a savepoint around each case split: Push snapshots
// whatever mutable caches the checker keeps, Pop restores the snapshot.
type TypeChecker interface {
	// Infer returns the type of e. e must be closed with respect to bound
	// variables; free locals and metavariables carry their own types.
	Infer(e Expr) (Expr, error)

	// Whnf reduces e to weak-head-normal-form: beta steps, unfolding of
	// definitions, and macro expansion at the head position only.
	Whnf(e Expr) (Expr, error)

	// IsDefEq decides definitional equality of a and b. On encountering an
	// undecidable pair involving metavariables it emits an equality
	// constraint tagged with j and answers true, deferring the decision to
	// the unifier.
	IsDefEq(a, b Expr, j *Justification) (bool, error)

	// Push creates a savepoint.
	Push()

	// Pop restores the most recent savepoint.
	Pop()
}

// ConstraintCallback receives constraints emitted during checking.
type ConstraintCallback func(c Constraint)

// Checker is a basic TypeChecker over an Environment. It is not a full
// kernel: it assumes well-formed inputs and focuses on the operations the
// unifier needs (type inference of assigned values, weak-head reduction,
// and congruence-based definitional equality with constraint deferral).
type Checker struct {
	env  *Environment
	ngen *NameGenerator
	cb   ConstraintCallback

	// inferCache maps term identity to inferred type, one frame per
	// savepoint. The top frame is the active cache.
	inferCache []map[Expr]Expr
}

var _ TypeChecker = (*Checker)(nil)

// NewChecker builds a checker over env. ngen supplies fresh local names for
// opening binders; cb (optional) receives emitted constraints.
func NewChecker(env *Environment, ngen *NameGenerator, cb ConstraintCallback) *Checker {
	return &Checker{
		env:        env,
		ngen:       ngen,
		cb:         cb,
		inferCache: []map[Expr]Expr{make(map[Expr]Expr)},
	}
}

// Push creates a savepoint of the checker's caches.
func (tc *Checker) Push() {
	top := tc.inferCache[len(tc.inferCache)-1]
	frame := make(map[Expr]Expr, len(top))
	for k, v := range top {
		frame[k] = v
	}
	tc.inferCache = append(tc.inferCache, frame)
}

// Pop restores the most recent savepoint.
func (tc *Checker) Pop() {
	if len(tc.inferCache) > 1 {
		tc.inferCache = tc.inferCache[:len(tc.inferCache)-1]
	}
}

func (tc *Checker) emit(c Constraint) {
	if tc.cb != nil {
		tc.cb(c)
	}
}

// Whnf reduces e to weak-head-normal-form.
func (tc *Checker) Whnf(e Expr) (Expr, error) {
	for {
		fn, args := GetAppFnArgs(e)
		switch head := fn.(type) {
		case *Binding:
			if head.Kind != BindingLambda || len(args) == 0 {
				return e, nil
			}
			e = betaReduce(head, args)
		case *Const:
			decl, ok := tc.env.FindDecl(head.Name)
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownConst, head.Name)
			}
			if decl.Value == nil {
				return e, nil
			}
			val := InstLevelParamsExpr(decl.Value, decl.UnivParams, head.Levels)
			e = MkApp(val, args...)
		case *Macro:
			if head.Def.ExpandFn == nil {
				return e, nil
			}
			expanded, ok := head.Def.ExpandFn(head.Args)
			if !ok {
				return e, nil
			}
			e = MkApp(expanded, args...)
		default:
			return e, nil
		}
	}
}

// BetaReduce applies fn to args, reducing as many outer lambda binders as
// possible and reapplying the leftover arguments.
func BetaReduce(fn Expr, args ...Expr) Expr {
	return betaReduce(fn, args)
}

func betaReduce(fn Expr, args []Expr) Expr {
	e := fn
	i := 0
	for {
		b, ok := e.(*Binding)
		if !ok || b.Kind != BindingLambda || i >= len(args) {
			break
		}
		e = Instantiate(b.Body, args[i])
		i++
	}
	return MkApp(e, args[i:]...)
}

// Infer returns the type of e.
func (tc *Checker) Infer(e Expr) (Expr, error) {
	cache := tc.inferCache[len(tc.inferCache)-1]
	if t, ok := cache[e]; ok {
		return t, nil
	}
	t, err := tc.inferCore(e)
	if err != nil {
		return nil, err
	}
	cache[e] = t
	return t, nil
}

func (tc *Checker) inferCore(e Expr) (Expr, error) {
	switch v := e.(type) {
	case *BVar:
		return nil, fmt.Errorf("%w: #%d", ErrLooseBVar, v.Idx)
	case *Local:
		return v.Type(), nil
	case *Meta:
		return v.Type(), nil
	case *Const:
		decl, ok := tc.env.FindDecl(v.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownConst, v.Name)
		}
		return InstLevelParamsExpr(decl.Type, decl.UnivParams, v.Levels), nil
	case *Sort:
		return MkSort(MkLevelSucc(v.Level)), nil
	case *App:
		fn, args := GetAppFnArgs(e)
		t, err := tc.Infer(fn)
		if err != nil {
			return nil, err
		}
		for _, arg := range args {
			t, err = tc.Whnf(t)
			if err != nil {
				return nil, err
			}
			pi, ok := t.(*Binding)
			if !ok || pi.Kind != BindingPi {
				return nil, fmt.Errorf("%w: %s", ErrNotAFunction, t)
			}
			t = Instantiate(pi.Body, arg)
		}
		return t, nil
	case *Binding:
		local := MkLocal(tc.ngen.Next(), v.BinderName, v.Domain)
		bodyType, err := tc.Infer(Instantiate(v.Body, local))
		if err != nil {
			return nil, err
		}
		if v.Kind == BindingLambda {
			return MkPi(v.BinderName, v.Domain, AbstractLocals(bodyType, []*Local{local})), nil
		}
		domSort, err := tc.inferSortLevel(v.Domain)
		if err != nil {
			return nil, err
		}
		bodySort, err := tc.sortLevelOf(bodyType)
		if err != nil {
			return nil, err
		}
		return MkSort(NormalizeLevel(MkLevelIMax(domSort, bodySort))), nil
	case *Macro:
		if v.Def.TypeFn == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoMacroType, v.Def.Name)
		}
		return v.Def.TypeFn(v.Args)
	default:
		return nil, fmt.Errorf("kernel: cannot infer type of %s", e)
	}
}

// inferSortLevel infers the type of e and extracts its universe level.
func (tc *Checker) inferSortLevel(e Expr) (Level, error) {
	t, err := tc.Infer(e)
	if err != nil {
		return nil, err
	}
	return tc.sortLevelOf(t)
}

// sortLevelOf extracts the level of a type expected to reduce to a sort.
// When the type is metavariable-headed, a fresh level metavariable is
// returned and the obligation is emitted as a constraint.
func (tc *Checker) sortLevelOf(t Expr) (Level, error) {
	w, err := tc.Whnf(t)
	if err != nil {
		return nil, err
	}
	if s, ok := w.(*Sort); ok {
		return s.Level, nil
	}
	if _, ok := IsMetaApp(w); ok {
		u := MkLevelMeta(tc.ngen.Next())
		tc.emit(MkEqConstraint(w, MkSort(u), nil))
		return u, nil
	}
	return nil, fmt.Errorf("kernel: expected a sort, found %s", w)
}

// IsDefEq decides definitional equality, deferring metavariable-dependent
// pairs to the unifier by emitting constraints tagged with j.
func (tc *Checker) IsDefEq(a, b Expr, j *Justification) (bool, error) {
	if a.Equal(b) {
		return true, nil
	}
	wa, err := tc.Whnf(a)
	if err != nil {
		return false, err
	}
	wb, err := tc.Whnf(b)
	if err != nil {
		return false, err
	}
	return tc.defEqCore(wa, wb, j)
}

// defEqCore compares two weak-head-normal terms.
func (tc *Checker) defEqCore(a, b Expr, j *Justification) (bool, error) {
	if a.Equal(b) {
		return true, nil
	}
	_, aFlex := IsMetaApp(a)
	_, bFlex := IsMetaApp(b)
	if aFlex || bFlex {
		tc.emit(MkEqConstraint(a, b, j))
		return true, nil
	}
	switch av := a.(type) {
	case *Sort:
		bv, ok := b.(*Sort)
		if !ok {
			return false, nil
		}
		return tc.levelDefEq(av.Level, bv.Level, j), nil
	case *Const:
		bv, ok := b.(*Const)
		if !ok || av.Name != bv.Name || len(av.Levels) != len(bv.Levels) {
			return false, nil
		}
		for i := range av.Levels {
			if !tc.levelDefEq(av.Levels[i], bv.Levels[i], j) {
				return false, nil
			}
		}
		return true, nil
	case *App:
		bv, ok := b.(*App)
		if !ok {
			return false, nil
		}
		ok, err := tc.IsDefEq(av.Fn, bv.Fn, j)
		if err != nil || !ok {
			return ok, err
		}
		return tc.IsDefEq(av.Arg, bv.Arg, j)
	case *Binding:
		bv, ok := b.(*Binding)
		if !ok || av.Kind != bv.Kind {
			return false, nil
		}
		ok, err := tc.IsDefEq(av.Domain, bv.Domain, j)
		if err != nil || !ok {
			return ok, err
		}
		local := MkLocal(tc.ngen.Next(), av.BinderName, av.Domain)
		return tc.IsDefEq(Instantiate(av.Body, local), Instantiate(bv.Body, local), j)
	case *Macro:
		bv, ok := b.(*Macro)
		if !ok || av.Def != bv.Def || len(av.Args) != len(bv.Args) {
			return false, nil
		}
		for i := range av.Args {
			ok, err := tc.IsDefEq(av.Args[i], bv.Args[i], j)
			if err != nil || !ok {
				return ok, err
			}
		}
		return true, nil
	default:
		return false, nil
	}
}

// levelDefEq compares two levels, deferring metavariable-dependent pairs.
func (tc *Checker) levelDefEq(a, b Level, j *Justification) bool {
	na := NormalizeLevel(a)
	nb := NormalizeLevel(b)
	if na.Equal(nb) {
		return true
	}
	if na.HasMeta() || nb.HasMeta() {
		tc.emit(MkLevelEqConstraint(na, nb, j))
		return true
	}
	return false
}
