package unify

import "log/slog"

// DefaultMaxSteps is the default step budget. Each constraint dispatch
// consumes one step; the budget is the engine's only termination guarantee.
const DefaultMaxSteps uint64 = 200000

// Config holds the engine's options. The zero value is not useful; start
// from DefaultConfig.
type Config struct {
	// MaxSteps is the hard step budget. Exceeding it is a fatal,
	// non-resumable StepLimitError.
	MaxSteps uint64

	// UseException controls what happens when the constraints are
	// unsolvable: when true the solution stream returns a *UnifierError
	// carrying the final conflict justification; when false the stream
	// simply ends.
	UseException bool

	// Plugin handles constraints the built-in rules cannot discharge.
	// Defaults to NoopPlugin.
	Plugin Plugin

	// Interrupt, when non-nil, is polled at least once per dispatch.
	// Returning true aborts the engine with an InterruptedError.
	Interrupt func() bool

	// Logger receives debug-level traces of assignments, case splits, and
	// backtracking. Defaults to a discard logger.
	Logger *slog.Logger
}

// DefaultConfig returns the standard options.
func DefaultConfig() Config {
	return Config{
		MaxSteps:     DefaultMaxSteps,
		UseException: true,
		Plugin:       NoopPlugin,
		Logger:       slog.New(slog.DiscardHandler),
	}
}
