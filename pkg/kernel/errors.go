package kernel

import "errors"

// Sentinel errors reported by the kernel. The unifier passes them through
// unchanged; they always indicate a malformed input term rather than a
// unification failure.
var (
	// ErrUnknownConst reports a reference to an undeclared constant.
	ErrUnknownConst = errors.New("kernel: unknown constant")

	// ErrDuplicateDecl reports a redeclared name.
	ErrDuplicateDecl = errors.New("kernel: duplicate declaration")

	// ErrNotAFunction reports an application whose head does not have a
	// function type.
	ErrNotAFunction = errors.New("kernel: expected a function type")

	// ErrLooseBVar reports a bound variable with no enclosing binder.
	ErrLooseBVar = errors.New("kernel: loose bound variable")

	// ErrNoMacroType reports a macro whose definition cannot infer a type.
	ErrNoMacroType = errors.New("kernel: macro has no type")
)
