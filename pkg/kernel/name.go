// Package kernel provides the term model the unifier operates on: hierarchical
// names, universe levels, expressions with De Bruijn bound variables,
// justifications, constraints, and a basic type checker.
//
// The unifier in pkg/unify consumes this package through narrow interfaces
// (TypeChecker, MetaSubstitution); everything here is deterministic and free
// of hidden global state so that the same inputs always produce the same
// solution sequence.
package kernel

import (
	"fmt"
	"strconv"
	"sync/atomic"
)

// Name identifies a declaration, a local constant, or a metavariable.
// Names are hierarchical: child components are appended with a '.' separator.
// Two entities are the same entity exactly when their names are equal.
type Name string

// Anonymous is the empty name.
const Anonymous Name = ""

// IsAnonymous reports whether the name is empty.
func (n Name) IsAnonymous() bool { return n == Anonymous }

// Append returns the name extended with a string component.
func (n Name) Append(s string) Name {
	if n.IsAnonymous() {
		return Name(s)
	}
	return Name(string(n) + "." + s)
}

// AppendIndex returns the name extended with a numeric component.
func (n Name) AppendIndex(i uint64) Name {
	return n.Append(strconv.FormatUint(i, 10))
}

func (n Name) String() string {
	if n.IsAnonymous() {
		return "[anonymous]"
	}
	return string(n)
}

// internalCounter backs MkInternalUniqueName.
var internalCounter uint64

// MkInternalUniqueName returns a name that is distinct from every name
// returned by previous calls within this process. Useful as a generator
// prefix when the caller does not care about reproducible names; code that
// requires deterministic output should construct its own prefix instead.
func MkInternalUniqueName() Name {
	id := atomic.AddUint64(&internalCounter, 1)
	return Name(fmt.Sprintf("_uniq.%d", id))
}

// NameGenerator mints fresh names under a common prefix. Generators are
// deterministic: a generator built from the same prefix always yields the
// same name sequence. They are not safe for concurrent use, matching the
// strictly sequential execution model of the unifier.
type NameGenerator struct {
	prefix Name
	next   uint64
}

// NewNameGenerator creates a generator that yields prefix.0, prefix.1, ...
func NewNameGenerator(prefix Name) *NameGenerator {
	return &NameGenerator{prefix: prefix}
}

// Next returns a fresh name and advances the generator.
func (g *NameGenerator) Next() Name {
	n := g.prefix.AppendIndex(g.next)
	g.next++
	return n
}

// MkChild returns a new generator whose names are all prefixed by a fresh
// name from this generator. Names minted by the child never collide with
// names minted by the parent or by other children.
func (g *NameGenerator) MkChild() *NameGenerator {
	return NewNameGenerator(g.Next())
}
