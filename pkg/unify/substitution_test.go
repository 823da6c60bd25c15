package unify

import (
	"testing"

	set "github.com/hashicorp/go-set/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitrdm/gounify/pkg/kernel"
)

func TestSubstitutionAssignInstantiate(t *testing.T) {
	a := kernel.MkConst("A")
	c := kernel.MkConst("c")
	m := kernel.MkMeta("m", a)
	j := kernel.MkAssertedJustification("?m := c")

	s := NewSubstitution().AssignExpr(m.Name(), c, j)

	require.True(t, s.IsAssigned(m.Name()))
	v, gotJ, ok := s.LookupExpr(m.Name())
	require.True(t, ok)
	assert.True(t, v.Equal(c))
	assert.Same(t, j, gotJ)

	// assign-then-instantiate round-trip: the meta is replaced by its
	// value and the justification of the assignment is reported
	r, rj := s.Instantiate(m)
	assert.True(t, r.Equal(c))
	assert.True(t, rj.DependsOn(999) == false)
	assert.Equal(t, j.String(), rj.String())
}

func TestSubstitutionPersistence(t *testing.T) {
	a := kernel.MkConst("A")
	m1 := kernel.MkMeta("m1", a)
	m2 := kernel.MkMeta("m2", a)

	snapshot := NewSubstitution().AssignExpr(m1.Name(), kernel.MkConst("c"), nil)
	extended := snapshot.AssignExpr(m2.Name(), kernel.MkConst("d"), nil)
	extended = extended.AssignLevel("u", kernel.MkLevelZero(), nil)

	// arbitrary later assignments leave the snapshot observably unchanged
	assert.True(t, snapshot.IsAssigned(m1.Name()))
	assert.False(t, snapshot.IsAssigned(m2.Name()))
	assert.False(t, snapshot.IsLevelAssigned("u"))
	assert.Equal(t, 1, snapshot.Len())
	assert.Equal(t, 2, extended.Len())
	assert.Equal(t, 1, extended.LevelLen())
}

func TestSubstitutionDoubleAssignPanics(t *testing.T) {
	a := kernel.MkConst("A")
	m := kernel.MkMeta("m", a)
	s := NewSubstitution().AssignExpr(m.Name(), kernel.MkConst("c"), nil)
	assert.Panics(t, func() {
		s.AssignExpr(m.Name(), kernel.MkConst("d"), nil)
	})
}

func TestInstantiateBetaReducesAppliedMetas(t *testing.T) {
	a := kernel.MkConst("A")
	f := kernel.MkConst("f")
	x := kernel.MkSimpleLocal("x", a)
	m := kernel.MkMeta("m", kernel.MkArrow(a, a))

	// ?m := fun y, f y; instantiating (?m x) must yield f x
	s := NewSubstitution().AssignExpr(m.Name(), kernel.MkLambda("y", a, kernel.MkApp(f, kernel.MkBVar(0))), nil)
	r, _ := s.Instantiate(kernel.MkApp(m, x))
	assert.True(t, r.Equal(kernel.MkApp(f, x)), "got %s", r)
}

func TestInstantiateChainsAssignments(t *testing.T) {
	a := kernel.MkConst("A")
	m1 := kernel.MkMeta("m1", a)
	m2 := kernel.MkMeta("m2", a)
	j1 := kernel.MkAssertedJustification("j1")
	j2 := kernel.MkAssertedJustification("j2")

	s := NewSubstitution().
		AssignExpr(m1.Name(), m2, j1).
		AssignExpr(m2.Name(), kernel.MkConst("c"), j2)

	r, j := s.Instantiate(m1)
	assert.True(t, r.Equal(kernel.MkConst("c")))
	// both assignment justifications must be composed into the result
	assert.Contains(t, j.String(), "j1")
	assert.Contains(t, j.String(), "j2")
}

func TestInstantiateCollectReportsUnassigned(t *testing.T) {
	a := kernel.MkConst("A")
	f := kernel.MkConst("f")
	m1 := kernel.MkMeta("m1", a)
	m2 := kernel.MkMeta("m2", a)

	s := NewSubstitution().AssignExpr(m1.Name(), kernel.MkConst("c"), nil)

	lvls := set.New[kernel.Name](0)
	exprs := set.New[kernel.Name](0)
	e := kernel.MkApp(f, m1, m2, kernel.MkSort(kernel.MkLevelMeta("u")))
	_, _ = s.InstantiateCollect(e, lvls, exprs)

	assert.True(t, exprs.Contains(m2.Name()), "unassigned ?m2 should be reported")
	assert.False(t, exprs.Contains(m1.Name()), "assigned ?m1 should not be reported")
	assert.True(t, lvls.Contains(kernel.Name("u")), "unassigned level meta should be reported")
}

func TestInstantiateLevel(t *testing.T) {
	s := NewSubstitution().AssignLevel("u", kernel.MkLevelSucc(kernel.MkLevelZero()), nil)
	r, _ := s.InstantiateLevel(kernel.MkLevelMax(kernel.MkLevelMeta("u"), kernel.MkLevelMeta("v")))
	want := kernel.MkLevelMax(kernel.MkLevelSucc(kernel.MkLevelZero()), kernel.MkLevelMeta("v"))
	assert.True(t, r.Equal(want), "got %s", r)
}
