package kernel

import (
	"fmt"
	"strings"
)

// Expr is an expression of the dependently-typed calculus: a bound variable
// (De Bruijn index), a free local constant, a metavariable, a global
// constant, a sort, a lambda or pi binder, an application, or a macro.
//
// Every node carries two precomputed bits, HasMeta and HasLocal, so that
// traversals which only care about metavariables or local constants can
// skip entire subterms. Equality is structural; local constants and
// metavariables compare by name, and binder display names are ignored.
type Expr interface {
	fmt.Stringer

	// Equal is structural equality.
	Equal(other Expr) bool

	// HasMeta reports whether the term contains an expression or universe
	// metavariable anywhere, including inside the types of locals.
	HasMeta() bool

	// HasLocal reports whether the term contains a free local constant.
	HasLocal() bool

	exprNode()
}

// BinderInfo describes how a binder argument is supplied.
type BinderInfo int

const (
	// BinderDefault is an explicit argument.
	BinderDefault BinderInfo = iota
	// BinderImplicit is an implicit argument.
	BinderImplicit
	// BinderStrictImplicit is a strict implicit argument.
	BinderStrictImplicit
	// BinderInstImplicit is an instance-implicit argument.
	BinderInstImplicit
)

// BindingKind distinguishes lambda from pi binders.
type BindingKind int

const (
	// BindingLambda is a lambda abstraction.
	BindingLambda BindingKind = iota
	// BindingPi is a dependent function type.
	BindingPi
)

// BVar is a bound variable referencing an enclosing binder by De Bruijn index.
type BVar struct {
	Idx int
}

// Local is a free local constant: a unique name, a display name for
// printing, and a type. Two locals are the same local exactly when their
// unique names are equal.
type Local struct {
	name       Name
	binderName Name
	typ        Expr
}

// Meta is a metavariable with a declared type.
type Meta struct {
	name Name
	typ  Expr
}

// Const is a reference to a global declaration applied to universe levels.
type Const struct {
	Name   Name
	Levels []Level

	hasMeta bool
}

// Sort is the type of types at a given universe level.
type Sort struct {
	Level Level

	hasMeta bool
}

// Binding is a lambda or pi binder.
type Binding struct {
	Kind       BindingKind
	BinderName Name
	Domain     Expr
	Body       Expr
	Info       BinderInfo

	hasMeta  bool
	hasLocal bool
}

// App is the application of a function to a single argument. N-ary
// applications are left-nested; use GetAppFnArgs to view the spine.
type App struct {
	Fn  Expr
	Arg Expr

	hasMeta  bool
	hasLocal bool
}

// MacroDef identifies a macro. Two macro expressions agree on their
// definition exactly when they hold the same *MacroDef; definitions are
// never compared structurally.
type MacroDef struct {
	// Name is for display only.
	Name Name

	// TypeFn infers the type of a macro application from its arguments.
	TypeFn func(args []Expr) (Expr, error)

	// ExpandFn unfolds the macro, or reports false when it does not reduce.
	ExpandFn func(args []Expr) (Expr, bool)
}

// Macro is an opaque symbol applied to subterm arguments.
type Macro struct {
	Def  *MacroDef
	Args []Expr

	hasMeta  bool
	hasLocal bool
}

func (*BVar) exprNode()    {}
func (*Local) exprNode()   {}
func (*Meta) exprNode()    {}
func (*Const) exprNode()   {}
func (*Sort) exprNode()    {}
func (*Binding) exprNode() {}
func (*App) exprNode()     {}
func (*Macro) exprNode()   {}

// MkBVar returns the bound variable #idx.
func MkBVar(idx int) Expr { return &BVar{Idx: idx} }

// MkLocal returns a local constant with distinct unique and display names.
func MkLocal(name, binderName Name, typ Expr) *Local {
	return &Local{name: name, binderName: binderName, typ: typ}
}

// MkSimpleLocal returns a local constant whose display name is its unique name.
func MkSimpleLocal(name Name, typ Expr) *Local {
	return MkLocal(name, name, typ)
}

// MkMeta returns a metavariable with the given name and type.
func MkMeta(name Name, typ Expr) *Meta {
	return &Meta{name: name, typ: typ}
}

// MkConst returns a constant applied to universe levels.
func MkConst(name Name, levels ...Level) *Const {
	hasMeta := false
	for _, l := range levels {
		if l.HasMeta() {
			hasMeta = true
			break
		}
	}
	return &Const{Name: name, Levels: levels, hasMeta: hasMeta}
}

// MkSort returns the sort at the given level.
func MkSort(l Level) *Sort {
	return &Sort{Level: l, hasMeta: l.HasMeta()}
}

// MkProp returns Sort 0.
func MkProp() *Sort { return MkSort(MkLevelZero()) }

// MkType returns Sort 1.
func MkType() *Sort { return MkSort(MkLevelOne()) }

func mkBinding(kind BindingKind, binderName Name, domain, body Expr, info BinderInfo) *Binding {
	return &Binding{
		Kind:       kind,
		BinderName: binderName,
		Domain:     domain,
		Body:       body,
		Info:       info,
		hasMeta:    domain.HasMeta() || body.HasMeta(),
		hasLocal:   domain.HasLocal() || body.HasLocal(),
	}
}

// MkLambda returns the lambda abstraction fun (binderName : domain), body.
func MkLambda(binderName Name, domain, body Expr) *Binding {
	return mkBinding(BindingLambda, binderName, domain, body, BinderDefault)
}

// MkPi returns the dependent function type Pi (binderName : domain), body.
func MkPi(binderName Name, domain, body Expr) *Binding {
	return mkBinding(BindingPi, binderName, domain, body, BinderDefault)
}

// MkBindingWithInfo is MkLambda/MkPi with explicit binder info.
func MkBindingWithInfo(kind BindingKind, binderName Name, domain, body Expr, info BinderInfo) *Binding {
	return mkBinding(kind, binderName, domain, body, info)
}

// UpdateBinding returns b with a new domain and body, preserving the binder
// kind, display name, and info.
func UpdateBinding(b *Binding, domain, body Expr) *Binding {
	return mkBinding(b.Kind, b.BinderName, domain, body, b.Info)
}

// MkArrow returns the non-dependent function type domain -> codomain.
func MkArrow(domain, codomain Expr) *Binding {
	return MkPi(Anonymous, domain, codomain)
}

// MkAppPair returns the application of fn to a single argument.
func MkAppPair(fn, arg Expr) *App {
	return &App{
		Fn:       fn,
		Arg:      arg,
		hasMeta:  fn.HasMeta() || arg.HasMeta(),
		hasLocal: fn.HasLocal() || arg.HasLocal(),
	}
}

// MkApp applies fn to zero or more arguments, left-nesting the spine.
func MkApp(fn Expr, args ...Expr) Expr {
	r := fn
	for _, a := range args {
		r = MkAppPair(r, a)
	}
	return r
}

// MkAppVars returns the term (f #n-1 ... #0).
func MkAppVars(f Expr, n int) Expr {
	r := f
	for i := n - 1; i >= 0; i-- {
		r = MkAppPair(r, MkBVar(i))
	}
	return r
}

// MkMacro returns a macro application.
func MkMacro(def *MacroDef, args ...Expr) *Macro {
	hasMeta, hasLocal := false, false
	for _, a := range args {
		hasMeta = hasMeta || a.HasMeta()
		hasLocal = hasLocal || a.HasLocal()
	}
	return &Macro{Def: def, Args: args, hasMeta: hasMeta, hasLocal: hasLocal}
}

// Name returns the unique name of the local constant.
func (l *Local) Name() Name { return l.name }

// BinderName returns the display name of the local constant.
func (l *Local) BinderName() Name { return l.binderName }

// Type returns the declared type of the local constant.
func (l *Local) Type() Expr { return l.typ }

// Name returns the name of the metavariable.
func (m *Meta) Name() Name { return m.name }

// Type returns the declared type of the metavariable.
func (m *Meta) Type() Expr { return m.typ }

func (e *BVar) String() string  { return fmt.Sprintf("#%d", e.Idx) }
func (e *Local) String() string { return e.binderName.String() }
func (e *Meta) String() string  { return "?" + e.name.String() }

func (e *Const) String() string {
	if len(e.Levels) == 0 {
		return e.Name.String()
	}
	parts := make([]string, len(e.Levels))
	for i, l := range e.Levels {
		parts[i] = l.String()
	}
	return fmt.Sprintf("%s.{%s}", e.Name, strings.Join(parts, " "))
}

func (e *Sort) String() string { return fmt.Sprintf("Sort %s", e.Level) }

func (e *Binding) String() string {
	head := "fun"
	if e.Kind == BindingPi {
		head = "Pi"
	}
	name := e.BinderName.String()
	if e.BinderName.IsAnonymous() {
		name = "_"
	}
	return fmt.Sprintf("(%s (%s : %s), %s)", head, name, e.Domain, e.Body)
}

func (e *App) String() string {
	fn, args := GetAppFnArgs(e)
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, fn.String())
	for _, a := range args {
		parts = append(parts, a.String())
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func (e *Macro) String() string {
	parts := make([]string, 0, len(e.Args)+1)
	parts = append(parts, "["+e.Def.Name.String()+"]")
	for _, a := range e.Args {
		parts = append(parts, a.String())
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func (e *BVar) Equal(other Expr) bool {
	o, ok := other.(*BVar)
	return ok && e.Idx == o.Idx
}

func (e *Local) Equal(other Expr) bool {
	o, ok := other.(*Local)
	return ok && e.name == o.name
}

func (e *Meta) Equal(other Expr) bool {
	o, ok := other.(*Meta)
	return ok && e.name == o.name
}

func (e *Const) Equal(other Expr) bool {
	o, ok := other.(*Const)
	if !ok || e.Name != o.Name || len(e.Levels) != len(o.Levels) {
		return false
	}
	for i := range e.Levels {
		if !e.Levels[i].Equal(o.Levels[i]) {
			return false
		}
	}
	return true
}

func (e *Sort) Equal(other Expr) bool {
	o, ok := other.(*Sort)
	return ok && e.Level.Equal(o.Level)
}

func (e *Binding) Equal(other Expr) bool {
	o, ok := other.(*Binding)
	return ok && e.Kind == o.Kind && e.Domain.Equal(o.Domain) && e.Body.Equal(o.Body)
}

func (e *App) Equal(other Expr) bool {
	o, ok := other.(*App)
	return ok && e.Fn.Equal(o.Fn) && e.Arg.Equal(o.Arg)
}

func (e *Macro) Equal(other Expr) bool {
	o, ok := other.(*Macro)
	if !ok || e.Def != o.Def || len(e.Args) != len(o.Args) {
		return false
	}
	for i := range e.Args {
		if !e.Args[i].Equal(o.Args[i]) {
			return false
		}
	}
	return true
}

func (*BVar) HasMeta() bool      { return false }
func (e *Local) HasMeta() bool   { return e.typ != nil && e.typ.HasMeta() }
func (*Meta) HasMeta() bool      { return true }
func (e *Const) HasMeta() bool   { return e.hasMeta }
func (e *Sort) HasMeta() bool    { return e.hasMeta }
func (e *Binding) HasMeta() bool { return e.hasMeta }
func (e *App) HasMeta() bool     { return e.hasMeta }
func (e *Macro) HasMeta() bool   { return e.hasMeta }

func (*BVar) HasLocal() bool      { return false }
func (*Local) HasLocal() bool     { return true }
func (e *Meta) HasLocal() bool    { return e.typ != nil && e.typ.HasLocal() }
func (*Const) HasLocal() bool     { return false }
func (*Sort) HasLocal() bool      { return false }
func (e *Binding) HasLocal() bool { return e.hasLocal }
func (e *App) HasLocal() bool     { return e.hasLocal }
func (e *Macro) HasLocal() bool   { return e.hasLocal }

// GetAppFn returns the head of the application spine of e.
func GetAppFn(e Expr) Expr {
	for {
		app, ok := e.(*App)
		if !ok {
			return e
		}
		e = app.Fn
	}
}

// GetAppFnArgs returns the head of the application spine of e together with
// the argument list, outermost last.
func GetAppFnArgs(e Expr) (Expr, []Expr) {
	var rev []Expr
	for {
		app, ok := e.(*App)
		if !ok {
			break
		}
		rev = append(rev, app.Arg)
		e = app.Fn
	}
	args := make([]Expr, len(rev))
	for i, a := range rev {
		args[len(rev)-1-i] = a
	}
	return e, args
}

// IsMetaApp reports whether e is a metavariable, possibly applied to
// arguments, and returns the head metavariable when it is.
func IsMetaApp(e Expr) (*Meta, bool) {
	m, ok := GetAppFn(e).(*Meta)
	return m, ok
}

// IsSimpleMeta reports whether e is a simple metavariable pattern:
// a head metavariable applied to pairwise-distinct local constants.
// On success it returns the head and the argument locals in order.
func IsSimpleMeta(e Expr) (*Meta, []*Local, bool) {
	fn, args := GetAppFnArgs(e)
	m, ok := fn.(*Meta)
	if !ok {
		return nil, nil, false
	}
	locals := make([]*Local, 0, len(args))
	for _, a := range args {
		l, ok := a.(*Local)
		if !ok {
			return nil, nil, false
		}
		for _, prev := range locals {
			if prev.Name() == l.Name() {
				return nil, nil, false
			}
		}
		locals = append(locals, l)
	}
	return m, locals, true
}

// ForEach walks e in pre-order. fn decides whether to descend into the
// children of the visited node. Types of locals and metavariables are not
// visited, matching the traversal the occurrence checks rely on.
func ForEach(e Expr, fn func(Expr) bool) {
	if !fn(e) {
		return
	}
	switch v := e.(type) {
	case *Binding:
		ForEach(v.Domain, fn)
		ForEach(v.Body, fn)
	case *App:
		ForEach(v.Fn, fn)
		ForEach(v.Arg, fn)
	case *Macro:
		for _, a := range v.Args {
			ForEach(a, fn)
		}
	}
}

// OccursContextCheck reports whether e avoids the metavariable m and uses no
// local constants outside locals. This is the combined occurs/scope check
// used before a pattern assignment ?m locals := e.
func OccursContextCheck(e Expr, m *Meta, locals []*Local) bool {
	ok := true
	ForEach(e, func(sub Expr) bool {
		if !ok {
			return false
		}
		if l, isLocal := sub.(*Local); isLocal {
			found := false
			for _, cand := range locals {
				if cand.Name() == l.Name() {
					found = true
					break
				}
			}
			if !found {
				ok = false
				return false
			}
		}
		if mv, isMeta := sub.(*Meta); isMeta && mv.Name() == m.Name() {
			ok = false
			return false
		}
		return sub.HasMeta() || sub.HasLocal()
	})
	return ok
}

// AbstractLocals replaces each occurrence of locals[i] in e by a bound
// variable so that, after wrapping e in len(locals) binders with locals[0]
// outermost, each variable points at its binder.
func AbstractLocals(e Expr, locals []*Local) Expr {
	n := len(locals)
	return abstractCore(e, 0, locals, n)
}

func abstractCore(e Expr, depth int, locals []*Local, n int) Expr {
	if !e.HasLocal() {
		return e
	}
	switch v := e.(type) {
	case *Local:
		for i, l := range locals {
			if l.Name() == v.name {
				return MkBVar(depth + (n - 1 - i))
			}
		}
		return e
	case *Binding:
		return mkBinding(v.Kind, v.BinderName,
			abstractCore(v.Domain, depth, locals, n),
			abstractCore(v.Body, depth+1, locals, n),
			v.Info)
	case *App:
		return MkAppPair(abstractCore(v.Fn, depth, locals, n), abstractCore(v.Arg, depth, locals, n))
	case *Macro:
		args := make([]Expr, len(v.Args))
		for i, a := range v.Args {
			args[i] = abstractCore(a, depth, locals, n)
		}
		return MkMacro(v.Def, args...)
	default:
		return e
	}
}

// LambdaAbstractLocals abstracts locals in e and wraps the result in lambda
// binders whose domains are the locals' types, locals[0] outermost. This is
// the value assigned to a metavariable by a pattern assignment.
func LambdaAbstractLocals(e Expr, locals []*Local) Expr {
	v := AbstractLocals(e, locals)
	for i := len(locals) - 1; i >= 0; i-- {
		v = MkLambda(locals[i].BinderName(), locals[i].Type(), v)
	}
	return v
}

// Instantiate replaces the outermost bound variable of body by v and
// adjusts the remaining indices. v must not contain loose bound variables.
func Instantiate(body, v Expr) Expr {
	return instantiateCore(body, 0, v)
}

func instantiateCore(e Expr, depth int, v Expr) Expr {
	switch n := e.(type) {
	case *BVar:
		switch {
		case n.Idx == depth:
			return v
		case n.Idx > depth:
			return MkBVar(n.Idx - 1)
		default:
			return e
		}
	case *Binding:
		return mkBinding(n.Kind, n.BinderName,
			instantiateCore(n.Domain, depth, v),
			instantiateCore(n.Body, depth+1, v),
			n.Info)
	case *App:
		return MkAppPair(instantiateCore(n.Fn, depth, v), instantiateCore(n.Arg, depth, v))
	case *Macro:
		args := make([]Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = instantiateCore(a, depth, v)
		}
		return MkMacro(n.Def, args...)
	default:
		return e
	}
}

// InstantiateRev instantiates the outermost len(vs) binders of body, with
// vs[len-1] replacing the innermost binder. Applied left to right this is
// beta reduction of (fun x_1 ... x_n, body) vs[0] ... vs[n-1].
func InstantiateRev(body Expr, vs []Expr) Expr {
	for i := len(vs) - 1; i >= 0; i-- {
		body = Instantiate(body, vs[i])
	}
	return body
}

// InstLevelParamsExpr substitutes universe parameters throughout e.
func InstLevelParamsExpr(e Expr, params []Name, levels []Level) Expr {
	switch v := e.(type) {
	case *Sort:
		return MkSort(InstLevelParams(v.Level, params, levels))
	case *Const:
		if len(v.Levels) == 0 {
			return e
		}
		ls := make([]Level, len(v.Levels))
		for i, l := range v.Levels {
			ls[i] = InstLevelParams(l, params, levels)
		}
		return MkConst(v.Name, ls...)
	case *Binding:
		return mkBinding(v.Kind, v.BinderName,
			InstLevelParamsExpr(v.Domain, params, levels),
			InstLevelParamsExpr(v.Body, params, levels),
			v.Info)
	case *App:
		return MkAppPair(InstLevelParamsExpr(v.Fn, params, levels), InstLevelParamsExpr(v.Arg, params, levels))
	case *Macro:
		args := make([]Expr, len(v.Args))
		for i, a := range v.Args {
			args[i] = InstLevelParamsExpr(a, params, levels)
		}
		return MkMacro(v.Def, args...)
	default:
		return e
	}
}
