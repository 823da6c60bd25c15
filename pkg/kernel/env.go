package kernel

import "fmt"

// Declaration is a global constant: an axiom or constant when Value is nil,
// a definition (unfoldable by Whnf) otherwise. UnivParams lists the universe
// parameters abstracted over by Type and Value.
type Declaration struct {
	Name       Name
	UnivParams []Name
	Type       Expr
	Value      Expr
}

// Environment is a registry of declarations. It is populated up front and
// read-only afterwards; the unifier never extends it.
type Environment struct {
	decls map[Name]Declaration
}

// NewEnvironment returns an empty environment.
func NewEnvironment() *Environment {
	return &Environment{decls: make(map[Name]Declaration)}
}

// AddDecl registers a declaration. Redeclaring a name is an error.
func (env *Environment) AddDecl(d Declaration) error {
	if _, ok := env.decls[d.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateDecl, d.Name)
	}
	env.decls[d.Name] = d
	return nil
}

// MustAddDecl is AddDecl for test and example setup; it panics on error.
func (env *Environment) MustAddDecl(d Declaration) {
	if err := env.AddDecl(d); err != nil {
		panic(err)
	}
}

// AddConstant registers an opaque constant with the given type.
func (env *Environment) AddConstant(name Name, typ Expr) error {
	return env.AddDecl(Declaration{Name: name, Type: typ})
}

// AddDefinition registers an unfoldable definition.
func (env *Environment) AddDefinition(name Name, typ, value Expr) error {
	return env.AddDecl(Declaration{Name: name, Type: typ, Value: value})
}

// FindDecl looks up a declaration by name.
func (env *Environment) FindDecl(name Name) (Declaration, bool) {
	d, ok := env.decls[name]
	return d, ok
}
