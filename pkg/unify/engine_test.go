package unify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitrdm/gounify/internal/lazy"
	"github.com/gitrdm/gounify/pkg/kernel"
)

// scenarioEnv declares A : Type, c d : A, f : A -> A, g : A -> A -> A, and
// the definition id := fun x, x.
func scenarioEnv(t *testing.T) *kernel.Environment {
	t.Helper()
	env := kernel.NewEnvironment()
	a := kernel.MkConst("A")
	env.MustAddDecl(kernel.Declaration{Name: "A", Type: kernel.MkType()})
	env.MustAddDecl(kernel.Declaration{Name: "c", Type: a})
	env.MustAddDecl(kernel.Declaration{Name: "d", Type: a})
	env.MustAddDecl(kernel.Declaration{Name: "f", Type: kernel.MkArrow(a, a)})
	env.MustAddDecl(kernel.Declaration{Name: "g", Type: kernel.MkArrow(a, kernel.MkArrow(a, a))})
	env.MustAddDecl(kernel.Declaration{Name: "id", Type: kernel.MkArrow(a, a), Value: kernel.MkLambda("x", a, kernel.MkBVar(0))})
	return env
}

func quietConfig() Config {
	cfg := DefaultConfig()
	cfg.UseException = false
	return cfg
}

// solve runs the engine on cs and drains up to limit solutions.
func solve(t *testing.T, env *kernel.Environment, cs []kernel.Constraint, cfg Config, limit int) []Substitution {
	t.Helper()
	stream := Unify(env, cs, kernel.NewNameGenerator("t"), cfg)
	subs, err := stream.Take(limit)
	require.NoError(t, err)
	return subs
}

func TestSolveMetaEqConstant(t *testing.T) {
	env := scenarioEnv(t)
	a := kernel.MkConst("A")
	m := kernel.MkMeta("m", a)
	c := kernel.MkConst("c")

	cs := []kernel.Constraint{kernel.MkEqConstraint(m, c, kernel.MkAssertedJustification("?m =?= c"))}
	subs := solve(t, env, cs, quietConfig(), 3)

	require.Len(t, subs, 1, "?m =?= c has a unique solution")
	v, _ := subs[0].Instantiate(m)
	assert.True(t, v.Equal(c), "?m = %s, want c", v)
}

func TestSolvePatternIdentity(t *testing.T) {
	env := scenarioEnv(t)
	a := kernel.MkConst("A")
	x := kernel.MkSimpleLocal("x", a)
	m := kernel.MkMeta("m", kernel.MkArrow(a, a))

	cs := []kernel.Constraint{kernel.MkEqConstraint(kernel.MkApp(m, x), x, kernel.MkAssertedJustification("?m x =?= x"))}
	subs := solve(t, env, cs, quietConfig(), 3)

	require.Len(t, subs, 1)
	v, _ := subs[0].Instantiate(m)
	assert.True(t, v.Equal(kernel.MkLambda("y", a, kernel.MkBVar(0))), "?m = %s, want fun y, y", v)
}

func TestSolvePatternImitatesHead(t *testing.T) {
	env := scenarioEnv(t)
	a := kernel.MkConst("A")
	f := kernel.MkConst("f")
	x := kernel.MkSimpleLocal("x", a)
	m := kernel.MkMeta("m", kernel.MkArrow(a, a))

	cs := []kernel.Constraint{kernel.MkEqConstraint(
		kernel.MkApp(m, x), kernel.MkApp(f, x),
		kernel.MkAssertedJustification("?m x =?= f x"))}
	subs := solve(t, env, cs, quietConfig(), 3)

	require.Len(t, subs, 1)
	v, _ := subs[0].Instantiate(m)
	assert.True(t, v.Equal(kernel.MkLambda("y", a, kernel.MkApp(f, kernel.MkBVar(0)))), "?m = %s, want fun y, f y", v)
}

func TestSolveBinaryPattern(t *testing.T) {
	env := scenarioEnv(t)
	a := kernel.MkConst("A")
	g := kernel.MkConst("g")
	p := kernel.MkSimpleLocal("p", a)
	q := kernel.MkSimpleLocal("q", a)
	m := kernel.MkMeta("m", kernel.MkArrow(a, kernel.MkArrow(a, a)))

	cs := []kernel.Constraint{kernel.MkEqConstraint(
		kernel.MkApp(m, p, q), kernel.MkApp(g, p, q),
		kernel.MkAssertedJustification("?m p q =?= g p q"))}
	subs := solve(t, env, cs, quietConfig(), 3)

	require.Len(t, subs, 1)
	v, _ := subs[0].Instantiate(m)
	want := kernel.MkLambda("x", a, kernel.MkLambda("y", a, kernel.MkApp(g, kernel.MkBVar(1), kernel.MkBVar(0))))
	assert.True(t, v.Equal(want), "?m = %s, want fun x y, g x y", v)
}

func TestOccursCheckRaisesUnifierError(t *testing.T) {
	env := scenarioEnv(t)
	a := kernel.MkConst("A")
	f := kernel.MkConst("f")
	m := kernel.MkMeta("m", a)

	j := kernel.MkAssertedJustification("?m =?= f ?m")
	cfg := DefaultConfig() // UseException on
	stream := Unify(env, []kernel.Constraint{kernel.MkEqConstraint(m, kernel.MkApp(f, m), j)},
		kernel.NewNameGenerator("t"), cfg)

	_, ok, err := stream.Next()
	require.False(t, ok)
	var ue *UnifierError
	require.ErrorAs(t, err, &ue)
	assert.Contains(t, ue.Justification.String(), "?m =?= f ?m",
		"the failure justification must mention the original constraint")
}

func TestOccursCheckSilentWithoutException(t *testing.T) {
	env := scenarioEnv(t)
	a := kernel.MkConst("A")
	f := kernel.MkConst("f")
	m := kernel.MkMeta("m", a)

	cs := []kernel.Constraint{kernel.MkEqConstraint(m, kernel.MkApp(f, m), nil)}
	subs := solve(t, env, cs, quietConfig(), 3)
	assert.Empty(t, subs, "unsolvable problem should yield an empty stream")
}

func TestSolveLevelSuccStripping(t *testing.T) {
	env := scenarioEnv(t)
	u := kernel.MkLevelMeta("u")
	v := kernel.MkLevelParam("v")

	cs := []kernel.Constraint{kernel.MkLevelEqConstraint(
		kernel.MkLevelSucc(u),
		kernel.MkLevelSucc(kernel.MkLevelSucc(v)),
		kernel.MkAssertedJustification("succ ?u =?= succ (succ v)"))}
	subs := solve(t, env, cs, quietConfig(), 3)

	require.Len(t, subs, 1)
	r, _ := subs[0].InstantiateLevel(u)
	assert.True(t, r.Equal(kernel.MkLevelSucc(v)), "?u = %s, want succ v", r)
}

func TestFlexRigidEnumeratesProjections(t *testing.T) {
	env := scenarioEnv(t)
	a := kernel.MkConst("A")
	x := kernel.MkSimpleLocal("x", a)
	m := kernel.MkMeta("m", kernel.MkArrow(a, kernel.MkArrow(a, a)))

	// duplicate locals defeat the pattern rule, so both projections are
	// enumerated through a case split
	cs := []kernel.Constraint{kernel.MkEqConstraint(
		kernel.MkApp(m, x, x), x,
		kernel.MkAssertedJustification("?m x x =?= x"))}
	subs := solve(t, env, cs, quietConfig(), 5)

	require.Len(t, subs, 2, "both projections solve ?m x x =?= x")

	p := kernel.MkSimpleLocal("p", a)
	q := kernel.MkSimpleLocal("q", a)
	v1, _ := subs[0].Instantiate(m)
	v2, _ := subs[1].Instantiate(m)
	r1 := kernel.BetaReduce(v1, p, q)
	r2 := kernel.BetaReduce(v2, p, q)
	assert.True(t, r1.Equal(p), "first projection should pick the first argument, got %s", r1)
	assert.True(t, r2.Equal(q), "second projection should pick the second argument, got %s", r2)
}

func TestFlexRigidBackjumpsToImitation(t *testing.T) {
	env := scenarioEnv(t)
	a := kernel.MkConst("A")
	f := kernel.MkConst("f")
	c := kernel.MkConst("c")
	m := kernel.MkMeta("m", kernel.MkArrow(a, a))

	// the projection alternative requires f c =?= c, which fails, so the
	// engine must backjump and take the imitation ?m := fun x, c
	cs := []kernel.Constraint{kernel.MkEqConstraint(
		kernel.MkApp(m, kernel.MkApp(f, c)), c,
		kernel.MkAssertedJustification("?m (f c) =?= c"))}
	subs := solve(t, env, cs, quietConfig(), 5)

	require.Len(t, subs, 1)
	v, _ := subs[0].Instantiate(m)
	r := kernel.BetaReduce(v, kernel.MkSimpleLocal("z", a))
	assert.True(t, r.Equal(c), "?m z = %s, want c", r)
}

func TestFlexRigidBinderImitation(t *testing.T) {
	env := scenarioEnv(t)
	a := kernel.MkConst("A")
	x := kernel.MkSimpleLocal("x", a)
	idFn := kernel.MkLambda("y", a, kernel.MkBVar(0))
	m := kernel.MkMeta("m", kernel.MkArrow(a, kernel.MkArrow(a, kernel.MkArrow(a, a))))

	cs := []kernel.Constraint{kernel.MkEqConstraint(
		kernel.MkApp(m, x, x), idFn,
		kernel.MkAssertedJustification("?m x x =?= fun y, y"))}
	subs := solve(t, env, cs, quietConfig(), 3)

	require.NotEmpty(t, subs, "binder imitation should produce a solution")
	v, _ := subs[0].Instantiate(m)
	r := kernel.BetaReduce(v, x, x)
	assert.True(t, r.Equal(idFn), "?m x x = %s, want fun y, y", r)
}

func TestChoiceConstraintEnumeratesAlternatives(t *testing.T) {
	env := scenarioEnv(t)
	a := kernel.MkConst("A")
	m := kernel.MkMeta("m", a)
	c := kernel.MkConst("c")
	d := kernel.MkConst("d")

	fn := func(typ kernel.Expr, _ kernel.MetaSubstitution, _ *kernel.NameGenerator) lazy.Seq[kernel.AChoice] {
		return lazy.Of(
			kernel.AChoice{Value: c, J: kernel.MkAssertedJustification("try c")},
			kernel.AChoice{Value: d, J: kernel.MkAssertedJustification("try d")},
		)
	}
	cs := []kernel.Constraint{kernel.MkChoiceConstraint(m, fn, kernel.MkAssertedJustification("choose ?m"), false)}
	subs := solve(t, env, cs, quietConfig(), 5)

	require.Len(t, subs, 2)
	v1, _ := subs[0].Instantiate(m)
	v2, _ := subs[1].Instantiate(m)
	assert.True(t, v1.Equal(c), "first alternative should be c, got %s", v1)
	assert.True(t, v2.Equal(d), "second alternative should be d, got %s", v2)
}

func TestChoiceConstraintPrunesFailingAlternatives(t *testing.T) {
	env := scenarioEnv(t)
	a := kernel.MkConst("A")
	m := kernel.MkMeta("m", a)
	c := kernel.MkConst("c")
	d := kernel.MkConst("d")

	fn := func(typ kernel.Expr, _ kernel.MetaSubstitution, _ *kernel.NameGenerator) lazy.Seq[kernel.AChoice] {
		return lazy.Of(
			// extra constraint is unsatisfiable, so this branch dies
			kernel.AChoice{
				Value:       c,
				J:           kernel.MkAssertedJustification("try c"),
				Constraints: []kernel.Constraint{kernel.MkEqConstraint(c, d, kernel.MkAssertedJustification("c =?= d"))},
			},
			kernel.AChoice{Value: d, J: kernel.MkAssertedJustification("try d")},
		)
	}
	cs := []kernel.Constraint{kernel.MkChoiceConstraint(m, fn, nil, false)}
	subs := solve(t, env, cs, quietConfig(), 5)

	require.Len(t, subs, 1, "only the second alternative survives")
	v, _ := subs[0].Instantiate(m)
	assert.True(t, v.Equal(d), "?m = %s, want d", v)
}

func TestPluginHandlesResidualConstraint(t *testing.T) {
	env := scenarioEnv(t)
	a := kernel.MkConst("A")
	m := kernel.MkMeta("m", a)
	c := kernel.MkConst("c")

	// a rigid-rigid pair with a metavariable inside lands in the plugin,
	// which solves it by fixing ?m
	cfg := quietConfig()
	cfg.Plugin = func(pc kernel.Constraint, _ *kernel.NameGenerator) lazy.Seq[[]kernel.Constraint] {
		return lazy.Of([]kernel.Constraint{
			kernel.MkEqConstraint(m, c, kernel.MkAssertedJustification("plugin: ?m := c")),
		})
	}

	g := kernel.MkConst("g")
	cs := []kernel.Constraint{kernel.MkEqConstraint(
		kernel.MkApp(g, m, c), kernel.MkApp(g, c, m),
		kernel.MkAssertedJustification("g ?m c =?= g c ?m"))}
	subs := solve(t, env, cs, cfg, 3)

	require.NotEmpty(t, subs)
	v, _ := subs[0].Instantiate(m)
	assert.True(t, v.Equal(c), "?m = %s, want c", v)
}

func TestPluginConflictWhenNoAlternatives(t *testing.T) {
	env := scenarioEnv(t)
	g := kernel.MkConst("g")
	m := kernel.MkMeta("m", kernel.MkConst("A"))
	c := kernel.MkConst("c")

	j := kernel.MkAssertedJustification("g ?m c =?= g c ?m")
	cfg := DefaultConfig()
	stream := Unify(env, []kernel.Constraint{
		kernel.MkEqConstraint(kernel.MkApp(g, m, c), kernel.MkApp(g, c, m), j),
	}, kernel.NewNameGenerator("t"), cfg)

	_, ok, err := stream.Next()
	require.False(t, ok)
	var ue *UnifierError
	require.ErrorAs(t, err, &ue)
}

func TestStepLimitIsFatal(t *testing.T) {
	env := scenarioEnv(t)

	cfg := quietConfig() // even with exceptions off, the step limit surfaces
	cfg.MaxSteps = 100
	// each alternative re-issues a fresh plugin constraint: an infinite
	// branch the step counter must cut off
	cfg.Plugin = func(pc kernel.Constraint, _ *kernel.NameGenerator) lazy.Seq[[]kernel.Constraint] {
		return lazy.Of([]kernel.Constraint{kernel.MkPluginConstraint("again", pc.Justification())})
	}

	stream := Unify(env, []kernel.Constraint{kernel.MkPluginConstraint("start", nil)},
		kernel.NewNameGenerator("t"), cfg)
	_, ok, err := stream.Next()
	require.False(t, ok)
	var sl *StepLimitError
	require.ErrorAs(t, err, &sl)
	assert.Equal(t, uint64(100), sl.MaxSteps)

	// the error is sticky: the engine cannot be resumed
	_, ok, err2 := stream.Next()
	require.False(t, ok)
	assert.True(t, errors.As(err2, &sl))
}

func TestInterruptStopsEngine(t *testing.T) {
	env := scenarioEnv(t)
	m := kernel.MkMeta("m", kernel.MkConst("A"))

	cfg := quietConfig()
	cfg.Interrupt = func() bool { return true }
	stream := Unify(env, []kernel.Constraint{kernel.MkEqConstraint(m, kernel.MkConst("c"), nil)},
		kernel.NewNameGenerator("t"), cfg)
	_, ok, err := stream.Next()
	require.False(t, ok)
	var ie *InterruptedError
	require.ErrorAs(t, err, &ie)
}

func TestBareMetaAgainstFlexTermIsAssigned(t *testing.T) {
	env := scenarioEnv(t)
	a := kernel.MkConst("A")
	m1 := kernel.MkMeta("m1", a)
	m2 := kernel.MkMeta("m2", a)

	cs := []kernel.Constraint{kernel.MkEqConstraint(m1, kernel.MkApp(kernel.MkMeta("m3", kernel.MkArrow(a, a)), m2), nil)}
	subs := solve(t, env, cs, quietConfig(), 3)

	// both sides of ?m1 =?= ?m3 ?m2 are metavariable-headed, but ?m1 is a
	// bare metavariable, so the pattern rule assigns it directly instead of
	// conceding the pair as flex-flex
	require.Len(t, subs, 1)
	assert.True(t, subs[0].IsAssigned(m1.Name()))
}

func TestSameHeadFlexFlexLeftUnsolved(t *testing.T) {
	env := scenarioEnv(t)
	a := kernel.MkConst("A")
	x := kernel.MkSimpleLocal("x", a)
	y := kernel.MkSimpleLocal("y", a)
	m := kernel.MkMeta("m", kernel.MkArrow(a, a))

	// ?m x =?= ?m y: same head on both sides is never decomposed into
	// x =?= y; the constraint is conceded as flex-flex
	cs := []kernel.Constraint{kernel.MkEqConstraint(kernel.MkApp(m, x), kernel.MkApp(m, y), nil)}
	subs := solve(t, env, cs, quietConfig(), 3)

	require.Len(t, subs, 1)
	assert.False(t, subs[0].IsAssigned(m.Name()), "?m must remain unassigned")
}

func TestDeterministicSolutionSequence(t *testing.T) {
	run := func() []string {
		env := scenarioEnv(t)
		a := kernel.MkConst("A")
		x := kernel.MkSimpleLocal("x", a)
		m := kernel.MkMeta("m", kernel.MkArrow(a, kernel.MkArrow(a, a)))
		cs := []kernel.Constraint{kernel.MkEqConstraint(kernel.MkApp(m, x, x), x, nil)}
		subs := solve(t, env, cs, quietConfig(), 5)
		var out []string
		for _, s := range subs {
			v, _ := s.Instantiate(m)
			out = append(out, v.String())
		}
		return out
	}
	first := run()
	second := run()
	assert.Equal(t, first, second, "same inputs and generator seed must give the same sequence")
}

func TestAssignmentWakesQueuedConstraints(t *testing.T) {
	env := scenarioEnv(t)
	a := kernel.MkConst("A")
	g := kernel.MkConst("g")
	c := kernel.MkConst("c")
	m1 := kernel.MkMeta("m1", a)
	m2 := kernel.MkMeta("m2", a)

	// first constraint parks in the queue (rigid-rigid with metas);
	// solving ?m1 via the second constraint must wake it, at which point
	// g c ?m2 =?= g c c is re-checked by definitional equality, which
	// emits ?m2 =?= c
	cs := []kernel.Constraint{
		kernel.MkEqConstraint(kernel.MkApp(g, m1, m2), kernel.MkApp(g, c, c), kernel.MkAssertedJustification("g ?m1 ?m2 =?= g c c")),
		kernel.MkEqConstraint(m1, c, kernel.MkAssertedJustification("?m1 =?= c")),
	}
	subs := solve(t, env, cs, quietConfig(), 3)

	require.NotEmpty(t, subs)
	v1, _ := subs[0].Instantiate(m1)
	v2, _ := subs[0].Instantiate(m2)
	assert.True(t, v1.Equal(c))
	assert.True(t, v2.Equal(c), "waking g ?m1 ?m2 =?= g c c after ?m1 := c must solve ?m2, got %s", v2)
}
