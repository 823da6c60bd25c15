package unify

import (
	"github.com/gitrdm/gounify/internal/lazy"

	"github.com/gitrdm/gounify/pkg/kernel"
)

// Plugin extends the engine with domain-specific solving. It receives a
// constraint the built-in rules could not discharge and returns a lazy
// sequence of alternatives; each alternative is a list of constraints that,
// together, imply the input constraint. An empty sequence means the plugin
// sees no way to solve the constraint and the current branch fails.
//
// The engine pulls one alternative at a time, keeping the unpulled tail
// inside a case split, so plugins may enumerate unbounded alternatives.
type Plugin func(c kernel.Constraint, ngen *kernel.NameGenerator) lazy.Seq[[]kernel.Constraint]

// NoopPlugin rejects every constraint handed to it.
func NoopPlugin(kernel.Constraint, *kernel.NameGenerator) lazy.Seq[[]kernel.Constraint] {
	return lazy.Empty[[]kernel.Constraint]()
}
