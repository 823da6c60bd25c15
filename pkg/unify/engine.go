package unify

import (
	"log/slog"

	set "github.com/hashicorp/go-set/v3"

	"github.com/gitrdm/gounify/pkg/kernel"
)

// Unifier is the engine state for one unification problem. It is strictly
// sequential: no method may be called concurrently, and the solution stream
// drives all work. Build one with NewUnifier and pull solutions from
// Solutions.
type Unifier struct {
	env    *kernel.Environment
	ngen   *kernel.NameGenerator
	subst  Substitution
	plugin Plugin
	tc     kernel.TypeChecker

	useException bool
	maxSteps     uint64
	numSteps     uint64

	// first is true until the first solution has been produced.
	first bool

	nextAssumptionIdx uint64
	nextCidx          uint64

	q          queueState
	caseSplits []*caseSplit

	// conflicted is set while the current branch has failed; conflict then
	// holds the justification of the failure, which may be nil.
	conflicted bool
	conflict   *kernel.Justification

	// fatal holds a non-resumable error (step limit, interrupt, kernel
	// error). Once set, every engine method is a no-op.
	fatal error

	// emitted buffers constraints the type checker produced during its
	// last call; the engine drains it after the call returns so the
	// checker never re-enters the engine.
	emitted []kernel.Constraint

	interrupt func() bool
	logger    *slog.Logger
}

// NewUnifier builds an engine for the given constraints. The initial
// constraints are processed eagerly; any conflict or fatal error they cause
// surfaces on the first pull of the solution stream.
func NewUnifier(env *kernel.Environment, cs []kernel.Constraint, ngen *kernel.NameGenerator, cfg Config) *Unifier {
	return newUnifier(env, cs, ngen, NewSubstitution(), cfg)
}

func newUnifier(env *kernel.Environment, cs []kernel.Constraint, ngen *kernel.NameGenerator, s Substitution, cfg Config) *Unifier {
	plugin := cfg.Plugin
	if plugin == nil {
		plugin = NoopPlugin
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	maxSteps := cfg.MaxSteps
	if maxSteps == 0 {
		maxSteps = DefaultMaxSteps
	}
	u := &Unifier{
		env:          env,
		ngen:         ngen,
		subst:        s,
		plugin:       plugin,
		useException: cfg.UseException,
		maxSteps:     maxSteps,
		first:        true,
		q:            newQueueState(),
		interrupt:    cfg.Interrupt,
		logger:       logger,
	}
	u.tc = kernel.NewChecker(env, ngen.MkChild(), func(c kernel.Constraint) {
		u.emitted = append(u.emitted, c)
	})
	for _, c := range cs {
		u.ProcessConstraint(c)
	}
	return u
}

func (u *Unifier) inConflict() bool { return u.conflicted }

func (u *Unifier) setConflict(j *kernel.Justification) {
	u.logger.Debug("conflict", "justification", j.String())
	u.conflicted = true
	u.conflict = j
}

func (u *Unifier) updateConflict(j *kernel.Justification) { u.conflict = j }

func (u *Unifier) resetConflict() {
	u.conflicted = false
	u.conflict = nil
}

// checkSystem polls the interrupt hook and charges one step against the
// budget. It is called at least once per constraint dispatch.
func (u *Unifier) checkSystem() error {
	if u.fatal != nil {
		return u.fatal
	}
	if u.interrupt != nil && u.interrupt() {
		u.fatal = &InterruptedError{}
		return u.fatal
	}
	u.numSteps++
	if u.numSteps > u.maxSteps {
		u.fatal = &StepLimitError{MaxSteps: u.maxSteps}
		return u.fatal
	}
	return nil
}

// drainEmitted processes the constraints the type checker emitted during
// its last call. Leftovers are dropped once a conflict or fatal error is
// set; processing them would be a no-op anyway.
func (u *Unifier) drainEmitted() {
	for len(u.emitted) > 0 {
		c := u.emitted[0]
		u.emitted = u.emitted[1:]
		if u.inConflict() || u.fatal != nil {
			continue
		}
		u.ProcessConstraint(c)
	}
	u.emitted = u.emitted[:0]
}

func (u *Unifier) inferType(e kernel.Expr) (kernel.Expr, bool) {
	t, err := u.tc.Infer(e)
	u.drainEmitted()
	if err != nil {
		u.fatal = err
		return nil, false
	}
	if u.fatal != nil {
		return nil, false
	}
	return t, true
}

func (u *Unifier) whnf(e kernel.Expr) (kernel.Expr, bool) {
	r, err := u.tc.Whnf(e)
	u.drainEmitted()
	if err != nil {
		u.fatal = err
		return nil, false
	}
	if u.fatal != nil {
		return nil, false
	}
	return r, true
}

func (u *Unifier) isDefEq(a, b kernel.Expr, j *kernel.Justification) (bool, bool) {
	r, err := u.tc.IsDefEq(a, b, j)
	u.drainEmitted()
	if err != nil {
		u.fatal = err
		return false, false
	}
	if u.fatal != nil {
		return false, false
	}
	return r, true
}

// addCnstr appends a constraint to the queue in the given band and indexes
// it under every unassigned metavariable it references.
func (u *Unifier) addCnstr(c kernel.Constraint, lvlOccs, varOccs *set.Set[kernel.Name], band uint64) {
	cidx := u.nextCidx + band
	u.q = u.q.insert(cidx, c)
	u.q = u.q.addOccs(cidx, lvlOccs, varOccs)
	u.nextCidx++
}

// ProcessConstraint dispatches a constraint: easy equalities are solved on
// the spot, everything else is enqueued with a priority matching its kind.
// It reports false when the constraint failed (a conflict was set) or the
// engine is already in conflict. This is also the entry point for
// constraints emitted by the type checker.
func (u *Unifier) ProcessConstraint(c kernel.Constraint) bool {
	if u.inConflict() || u.fatal != nil {
		return false
	}
	if err := u.checkSystem(); err != nil {
		return false
	}
	switch c.Kind() {
	case kernel.ConstraintChoice:
		// Choice constraints are never easy.
		if c.Delayed() {
			u.addCnstr(c, nil, nil, firstVeryDelayedCidx)
		} else {
			u.addCnstr(c, nil, nil, 0)
		}
		return true
	case kernel.ConstraintEq:
		return u.processEqConstraint(c)
	case kernel.ConstraintLevelEq:
		return u.processLevelEqConstraint(c)
	default:
		u.addCnstr(c, nil, nil, 0)
		return true
	}
}

// ProcessConstraintCidx removes the constraint with the given insertion id
// from the queue, if present, and re-dispatches it. Missing ids are
// no-ops: occurrence index entries may be stale.
func (u *Unifier) ProcessConstraintCidx(cidx uint64) bool {
	if u.inConflict() || u.fatal != nil {
		return false
	}
	c, ok := u.q.find(cidx)
	if !ok {
		return true
	}
	u.q = u.q.erase(cidx)
	return u.ProcessConstraint(c)
}

type metavarStatus int

const (
	metavarAssigned metavarStatus = iota
	metavarFailed
	metavarContinue
)

// processMetavarEq handles lhs =?= rhs where lhs is a simple metavariable
// pattern ?m x1 ... xn and rhs is not headed by ?m. Assigned means the
// pattern assignment went through; Failed means rhs contains ?m or a local
// outside {x1..xn}; Continue means the rule does not apply.
func (u *Unifier) processMetavarEq(lhs, rhs kernel.Expr, j *kernel.Justification) metavarStatus {
	if _, ok := kernel.IsMetaApp(lhs); !ok {
		return metavarContinue
	}
	m, locals, ok := kernel.IsSimpleMeta(lhs)
	if !ok {
		return metavarContinue
	}
	if rm, flex := kernel.IsMetaApp(rhs); flex && rm.Name() == m.Name() {
		return metavarContinue
	}
	if !kernel.OccursContextCheck(rhs, m, locals) {
		u.setConflict(j)
		return metavarFailed
	}
	if u.assignExprMeta(m, kernel.LambdaAbstractLocals(rhs, locals), j) {
		return metavarAssigned
	}
	return metavarFailed
}

// processEqConstraint instantiates both sides, tries reflexivity and
// pattern assignment, reduces to weak head normal form, and finally either
// re-checks definitional equality or enqueues the constraint classified as
// flex-flex, flex-rigid, or plugin-bound.
func (u *Unifier) processEqConstraint(c kernel.Constraint) bool {
	unassignedLvls := set.New[kernel.Name](0)
	unassignedExprs := set.New[kernel.Name](0)
	lhs, lhsJ := u.subst.InstantiateCollect(c.Lhs(), unassignedLvls, unassignedExprs)
	rhs, rhsJ := u.subst.InstantiateCollect(c.Rhs(), unassignedLvls, unassignedExprs)

	if lhs.Equal(rhs) {
		return true
	}

	newJst := kernel.Composite(kernel.Composite(c.Justification(), lhsJ), rhsJ)
	if !lhs.HasMeta() && !rhs.HasMeta() {
		u.setConflict(newJst)
		return false
	}

	if st := u.processMetavarEq(lhs, rhs, newJst); st != metavarContinue {
		return st == metavarAssigned
	}
	if st := u.processMetavarEq(rhs, lhs, newJst); st != metavarContinue {
		return st == metavarAssigned
	}

	rhs, ok := u.whnf(rhs)
	if !ok {
		return false
	}
	lhs, ok = u.whnf(lhs)
	if !ok {
		return false
	}

	// Instantiation or reduction exposed new structure: let the kernel
	// retry definitional equality before any branching.
	if !lhs.Equal(c.Lhs()) || !rhs.Equal(c.Rhs()) {
		r, ok := u.isDefEq(lhs, rhs, newJst)
		if !ok {
			return false
		}
		if r {
			return !u.inConflict()
		}
		u.setConflict(newJst)
		return false
	}

	_, lhsFlex := kernel.IsMetaApp(lhs)
	_, rhsFlex := kernel.IsMetaApp(rhs)
	switch {
	case lhsFlex && rhsFlex:
		// flex-flex constraints are delayed the most.
		u.addCnstr(c, unassignedLvls, unassignedExprs, firstVeryDelayedCidx)
	case lhsFlex || rhsFlex:
		u.addCnstr(c, unassignedLvls, unassignedExprs, firstDelayedCidx)
	default:
		// only the plugin can make progress here
		u.addCnstr(c, unassignedLvls, unassignedExprs, 0)
	}
	return true
}

// processMetavarEqLevel handles ?m =?= rhs for levels. Occurrence inside a
// successor means rhs is strictly bigger than ?m and the constraint fails;
// occurrence elsewhere (under max/imax) is left for later.
func (u *Unifier) processMetavarEqLevel(lhs, rhs kernel.Level, j *kernel.Justification) metavarStatus {
	m, ok := lhs.(*kernel.LevelMeta)
	if !ok {
		return metavarContinue
	}
	if kernel.LevelOccurs(m, rhs) {
		if kernel.IsLevelSucc(rhs) {
			u.setConflict(j)
			return metavarFailed
		}
		return metavarContinue
	}
	if u.assignLevelMeta(m, rhs, j) {
		return metavarAssigned
	}
	return metavarFailed
}

// processLevelEqConstraint is the universe-level analogue of
// processEqConstraint. Unresolved constraints are enqueued delayed, with
// the rewritten sides when instantiation or normalization changed them.
func (u *Unifier) processLevelEqConstraint(c kernel.Constraint) bool {
	unassignedLvls := set.New[kernel.Name](0)
	lhs0, lhsJ := u.subst.InstantiateLevelCollect(c.LhsLevel(), unassignedLvls)
	rhs0, rhsJ := u.subst.InstantiateLevelCollect(c.RhsLevel(), unassignedLvls)

	lhs := kernel.NormalizeLevel(lhs0)
	rhs := kernel.NormalizeLevel(rhs0)
	for kernel.IsLevelSucc(lhs) && kernel.IsLevelSucc(rhs) {
		lhs = kernel.SuccOf(lhs)
		rhs = kernel.SuccOf(rhs)
	}

	if lhs.Equal(rhs) {
		return true
	}

	newJst := kernel.Composite(kernel.Composite(c.Justification(), lhsJ), rhsJ)
	if !lhs.HasMeta() && !rhs.HasMeta() {
		u.setConflict(newJst)
		return false
	}

	if st := u.processMetavarEqLevel(lhs, rhs, newJst); st != metavarContinue {
		return st == metavarAssigned
	}
	if st := u.processMetavarEqLevel(rhs, lhs, newJst); st != metavarContinue {
		return st == metavarAssigned
	}

	if !lhs.Equal(c.LhsLevel()) || !rhs.Equal(c.RhsLevel()) {
		u.addCnstr(kernel.MkLevelEqConstraint(lhs, rhs, newJst), unassignedLvls, nil, firstDelayedCidx)
	} else {
		u.addCnstr(c, unassignedLvls, nil, firstDelayedCidx)
	}
	return true
}

// assignExprMeta extends the substitution with m := v, checks that v's
// inferred type matches m's declared type, and re-processes every queued
// constraint that references m under the now-stronger substitution.
func (u *Unifier) assignExprMeta(m *kernel.Meta, v kernel.Expr, j *kernel.Justification) bool {
	u.logger.Debug("assign", "meta", m.Name(), "value", v.String())
	u.subst = u.subst.AssignExpr(m.Name(), v, j)
	vType, ok := u.inferType(v)
	if !ok {
		return false
	}
	if u.inConflict() {
		return false
	}
	r, ok := u.isDefEq(m.Type(), vType, j)
	if !ok {
		return false
	}
	if !r {
		u.setConflict(j)
		return false
	}
	if u.inConflict() {
		return false
	}
	return u.wake(m.Name(), false)
}

// assignLevelMeta is assignExprMeta for universe metavariables; levels
// carry no type-equality obligation.
func (u *Unifier) assignLevelMeta(m *kernel.LevelMeta, v kernel.Level, j *kernel.Justification) bool {
	u.logger.Debug("assign level", "meta", m.Name, "value", v.String())
	u.subst = u.subst.AssignLevel(m.Name, v, j)
	return u.wake(m.Name, true)
}

// wake re-processes, in ascending insertion order, every queued constraint
// indexed under m, bailing out at the first conflict.
func (u *Unifier) wake(m kernel.Name, lvl bool) bool {
	cidxs, q := u.q.takeOccs(m, lvl)
	u.q = q
	for _, cidx := range cidxs {
		if u.inConflict() || u.fatal != nil {
			break
		}
		u.ProcessConstraintCidx(cidx)
	}
	return !u.inConflict() && u.fatal == nil
}

// processConstraints dispatches each constraint with j composed onto its
// justification. It reports false as soon as the engine is in conflict.
func (u *Unifier) processConstraints(cs []kernel.Constraint, j *kernel.Justification) bool {
	for _, c := range cs {
		u.ProcessConstraint(c.WithJustification(kernel.Composite(c.Justification(), j)))
	}
	return !u.inConflict() && u.fatal == nil
}

// isFlexRigid reports whether exactly one side of an equality constraint is
// metavariable-headed.
func isFlexRigid(c kernel.Constraint) bool {
	if c.Kind() != kernel.ConstraintEq {
		return false
	}
	_, lhsFlex := kernel.IsMetaApp(c.Lhs())
	_, rhsFlex := kernel.IsMetaApp(c.Rhs())
	return lhsFlex != rhsFlex
}

// isFlexFlex reports whether both sides are metavariable-headed.
func isFlexFlex(c kernel.Constraint) bool {
	if c.Kind() != kernel.ConstraintEq {
		return false
	}
	_, lhsFlex := kernel.IsMetaApp(c.Lhs())
	_, rhsFlex := kernel.IsMetaApp(c.Rhs())
	return lhsFlex && rhsFlex
}

// processNext pops the minimum-id constraint and hands it to the matching
// handler. Flex-flex constraints are conceded: they are assumed satisfiable
// and dropped from the queue.
func (u *Unifier) processNext() bool {
	cidx, c, ok := u.q.min()
	if !ok {
		return true
	}
	u.q = u.q.erase(cidx)
	u.logger.Debug("process", "cidx", cidx, "constraint", c.String())
	switch {
	case c.Kind() == kernel.ConstraintChoice:
		return u.processChoiceConstraint(c)
	case isFlexRigid(c):
		return u.processFlexRigid(c)
	case isFlexFlex(c):
		return true
	default:
		return u.processPluginConstraint(c)
	}
}

// Subst returns the engine's current substitution.
func (u *Unifier) Subst() Substitution { return u.subst }
