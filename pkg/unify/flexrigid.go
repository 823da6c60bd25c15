package unify

import (
	"github.com/gitrdm/gounify/pkg/kernel"
)

// replaceRange rewrites the range of a Pi telescope: given Pi ctx, r it
// returns Pi ctx, newRange.
func replaceRange(typ, newRange kernel.Expr) kernel.Expr {
	if pi, ok := typ.(*kernel.Binding); ok && pi.Kind == kernel.BindingPi {
		return kernel.UpdateBinding(pi, pi.Domain, replaceRange(pi.Body, newRange))
	}
	return newRange
}

// getArity counts the nested Pi binders of a type.
func getArity(typ kernel.Expr) int {
	r := 0
	for {
		pi, ok := typ.(*kernel.Binding)
		if !ok || pi.Kind != kernel.BindingPi {
			return r
		}
		typ = pi.Body
		r++
	}
}

// mkLambdaFor wraps v in lambda binders mirroring t's Pi telescope,
// preserving binder names and info.
func mkLambdaFor(t, v kernel.Expr) kernel.Expr {
	if pi, ok := t.(*kernel.Binding); ok && pi.Kind == kernel.BindingPi {
		return kernel.MkBindingWithInfo(kernel.BindingLambda, pi.BinderName, pi.Domain, mkLambdaFor(pi.Body, v), pi.Info)
	}
	return v
}

// mkAuxTypeMetavarFor builds, for a type Pi (x1:A1)...(xk:Ak), B, a fresh
// metavariable of type Pi (x1:A1)...(xk:Ak), Sort ?u with ?u a fresh
// universe metavariable.
func (u *Unifier) mkAuxTypeMetavarFor(t kernel.Expr) *kernel.Meta {
	newType := replaceRange(t, kernel.MkSort(kernel.MkLevelMeta(u.ngen.Next())))
	return kernel.MkMeta(u.ngen.Next(), newType)
}

// mkAuxMetavarFor builds, for a type Pi (x1:A1)...(xk:Ak), B, a fresh
// metavariable of type Pi (x1:A1)...(xk:Ak), (?mt x1 ... xk) where ?mt
// comes from mkAuxTypeMetavarFor.
func (u *Unifier) mkAuxMetavarFor(t kernel.Expr) *kernel.Meta {
	num := getArity(t)
	r := kernel.MkAppVars(u.mkAuxTypeMetavarFor(t), num)
	newType := replaceRange(t, r)
	return kernel.MkMeta(u.ngen.Next(), newType)
}

// processFlexRigid handles a constraint with exactly one metavariable-headed
// side, generating the classical projection and imitation alternatives.
func (u *Unifier) processFlexRigid(c kernel.Constraint) bool {
	if _, ok := kernel.IsMetaApp(c.Lhs()); ok {
		return u.processFlexRigidCore(c.Lhs(), c.Rhs(), c.Justification())
	}
	return u.processFlexRigidCore(c.Rhs(), c.Lhs(), c.Justification())
}

func (u *Unifier) processFlexRigidCore(lhs, rhs kernel.Expr, j *kernel.Justification) bool {
	mfn, margs := kernel.GetAppFnArgs(lhs)
	m := mfn.(*kernel.Meta)
	mtype := m.Type()

	var alts [][]kernel.Constraint

	// Projections: ?m := fun x1...xk, x_i, either directly when the i-th
	// argument is a local equal to rhs, or guarded by arg =?= rhs when
	// neither the argument nor rhs is a local.
	_, rhsLocal := rhs.(*kernel.Local)
	vidx := len(margs) - 1
	for _, marg := range margs {
		_, margLocal := marg.(*kernel.Local)
		switch {
		case !margLocal && !rhsLocal:
			c1 := kernel.MkEqConstraint(marg, rhs, j)
			c2 := kernel.MkEqConstraint(m, mkLambdaFor(mtype, kernel.MkBVar(vidx)), j)
			alts = append(alts, []kernel.Constraint{c1, c2})
		case margLocal && marg.Equal(rhs):
			c1 := kernel.MkEqConstraint(m, mkLambdaFor(mtype, kernel.MkBVar(vidx)), j)
			alts = append(alts, []kernel.Constraint{c1})
		}
		vidx--
	}

	// Imitation: close over rhs's head, with a fresh auxiliary
	// metavariable per argument position.
	var cs []kernel.Constraint
	imitate := true
	switch r := rhs.(type) {
	case *kernel.App:
		f, rargs := kernel.GetAppFnArgs(rhs)
		sargs := make([]kernel.Expr, 0, len(rargs))
		for _, rarg := range rargs {
			maux := u.mkAuxMetavarFor(mtype)
			cs = append(cs, kernel.MkEqConstraint(kernel.MkApp(maux, margs...), rarg, j))
			sargs = append(sargs, kernel.MkAppVars(maux, len(margs)))
		}
		v := mkLambdaFor(mtype, kernel.MkApp(f, sargs...))
		cs = append(cs, kernel.MkEqConstraint(m, v, j))
	case *kernel.Binding:
		maux1 := u.mkAuxMetavarFor(mtype)
		cs = append(cs, kernel.MkEqConstraint(kernel.MkApp(maux1, margs...), r.Domain, j))
		// extending the telescope with rhs's binder lets the codomain
		// auxiliary mention the bound variable
		pi := kernel.MkPi(r.BinderName, r.Domain, r.Body)
		mtype2 := replaceRange(mtype, pi)
		maux2 := u.mkAuxMetavarFor(mtype2)
		newLocal := kernel.MkLocal(u.ngen.Next(), r.BinderName, r.Domain)
		cs = append(cs, kernel.MkEqConstraint(
			kernel.MkAppPair(kernel.MkApp(maux2, margs...), newLocal),
			kernel.Instantiate(r.Body, newLocal), j))
		v := kernel.UpdateBinding(r, kernel.MkAppVars(maux1, len(margs)), kernel.MkAppVars(maux2, len(margs)+1))
		cs = append(cs, kernel.MkEqConstraint(m, mkLambdaFor(mtype, v), j))
	case *kernel.Sort, *kernel.Const:
		cs = append(cs, kernel.MkEqConstraint(m, mkLambdaFor(mtype, rhs), j))
	case *kernel.Local:
		// (fun ctx, local) is not well-formed: the local escapes.
		imitate = false
	case *kernel.Macro:
		sargs := make([]kernel.Expr, 0, len(r.Args))
		for _, rarg := range r.Args {
			maux := u.mkAuxMetavarFor(mtype)
			cs = append(cs, kernel.MkEqConstraint(kernel.MkApp(maux, margs...), rarg, j))
			sargs = append(sargs, kernel.MkAppVars(maux, len(margs)))
		}
		v := mkLambdaFor(mtype, kernel.MkMacro(r.Def, sargs...))
		cs = append(cs, kernel.MkEqConstraint(m, v, j))
	default:
		imitate = false
	}
	if imitate {
		alts = append(alts, cs)
	}

	switch {
	case len(alts) == 0:
		u.setConflict(j)
		return false
	case len(alts) == 1:
		// single alternative: no backtracking point needed
		return u.processConstraints(alts[0], nil)
	default:
		a := kernel.MkAssumptionJustification(u.nextAssumptionIdx)
		u.pushCaseSplit(newHOCaseSplit(u, alts[1:]))
		return u.processConstraints(alts[0], a)
	}
}
