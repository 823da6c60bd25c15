package unify

import (
	"fmt"

	"github.com/gitrdm/gounify/pkg/kernel"
)

// UnifierError reports that the constraints have no solution: every case
// split was exhausted. Justification explains the failure, folding in the
// justification of every attempted alternative.
type UnifierError struct {
	Justification *kernel.Justification
}

func (e *UnifierError) Error() string {
	return fmt.Sprintf("unify: constraints are unsolvable (%s)", e.Justification)
}

// StepLimitError reports that the engine exceeded its step budget. It is
// fatal: the engine cannot be resumed, and the error is surfaced even when
// UseException is disabled. Higher-order unification may not terminate;
// raise MaxSteps if the budget is the problem.
type StepLimitError struct {
	MaxSteps uint64
}

func (e *StepLimitError) Error() string {
	return fmt.Sprintf("unify: maximum number of steps (%d) exceeded; "+
		"the budget can be raised via Config.MaxSteps "+
		"(higher-order unification and plugins may trigger non-termination)", e.MaxSteps)
}

// InterruptedError reports that the external interrupt hook fired.
type InterruptedError struct{}

func (e *InterruptedError) Error() string {
	return "unify: interrupted"
}

// PluginError reports a plugin contract violation.
type PluginError struct {
	Reason string
}

func (e *PluginError) Error() string {
	return "unify: plugin: " + e.Reason
}
