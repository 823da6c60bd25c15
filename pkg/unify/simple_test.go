package unify

import (
	"testing"

	"github.com/gitrdm/gounify/pkg/kernel"
)

func TestUnifySimpleExpr(t *testing.T) {
	a := kernel.MkConst("A")
	f := kernel.MkConst("f")
	c := kernel.MkConst("c")
	x := kernel.MkSimpleLocal("x", a)
	y := kernel.MkSimpleLocal("y", a)
	m := kernel.MkMeta("m", a)
	s := NewSubstitution()

	t.Run("reflexivity is solved", func(t *testing.T) {
		st, _ := UnifySimpleExpr(s, kernel.MkApp(f, x), kernel.MkApp(f, x), nil)
		if st != StatusSolved {
			t.Errorf("status = %s, want solved", st)
		}
	})

	t.Run("ground disequality fails", func(t *testing.T) {
		st, _ := UnifySimpleExpr(s, c, kernel.MkConst("d"), nil)
		if st != StatusFailed {
			t.Errorf("status = %s, want failed", st)
		}
	})

	t.Run("pattern assignment", func(t *testing.T) {
		mf := kernel.MkMeta("mf", kernel.MkArrow(a, a))
		st, s2 := UnifySimpleExpr(s, kernel.MkApp(mf, x), kernel.MkApp(f, x), nil)
		if st != StatusSolved {
			t.Fatalf("status = %s, want solved", st)
		}
		// substituting the solution into both sides closes the constraint
		lhs, _ := s2.Instantiate(kernel.MkApp(mf, x))
		if !lhs.Equal(kernel.MkApp(f, x)) {
			t.Errorf("instantiated lhs = %s, want f x", lhs)
		}
	})

	t.Run("occurs check fails", func(t *testing.T) {
		st, _ := UnifySimpleExpr(s, m, kernel.MkApp(f, m), nil)
		if st != StatusFailed {
			t.Errorf("?m =?= f ?m: status = %s, want failed", st)
		}
	})

	t.Run("scope check fails", func(t *testing.T) {
		mf := kernel.MkMeta("mf", kernel.MkArrow(a, a))
		st, _ := UnifySimpleExpr(s, kernel.MkApp(mf, x), y, nil)
		if st != StatusFailed {
			t.Errorf("?m x =?= y: status = %s, want failed", st)
		}
	})

	t.Run("same-head flex-flex is unsupported", func(t *testing.T) {
		mf := kernel.MkMeta("mf", kernel.MkArrow(a, a))
		st, _ := UnifySimpleExpr(s, kernel.MkApp(mf, x), kernel.MkApp(mf, y), nil)
		if st != StatusUnsupported {
			t.Errorf("?m x =?= ?m y: status = %s, want unsupported", st)
		}
	})

	t.Run("non-pattern is unsupported", func(t *testing.T) {
		mf := kernel.MkMeta("mf", kernel.MkArrow(a, a))
		st, _ := UnifySimpleExpr(s, kernel.MkApp(mf, c), c, nil)
		if st != StatusUnsupported {
			t.Errorf("?m c =?= c: status = %s, want unsupported", st)
		}
	})

	t.Run("symmetric statuses", func(t *testing.T) {
		pairs := [][2]kernel.Expr{
			{m, c},
			{c, kernel.MkConst("d")},
			{kernel.MkApp(f, x), kernel.MkApp(f, x)},
			{m, kernel.MkApp(f, m)},
		}
		for _, p := range pairs {
			st1, _ := UnifySimpleExpr(s, p[0], p[1], nil)
			st2, _ := UnifySimpleExpr(s, p[1], p[0], nil)
			if st1 != st2 {
				t.Errorf("unify_simple(%s, %s) = %s but swapped = %s", p[0], p[1], st1, st2)
			}
		}
	})
}

func TestUnifySimpleLevel(t *testing.T) {
	z := kernel.MkLevelZero()
	u := kernel.MkLevelMeta("u")
	v := kernel.MkLevelParam("v")
	s := NewSubstitution()

	t.Run("reflexivity", func(t *testing.T) {
		st, _ := UnifySimpleLevel(s, kernel.MkLevelSucc(v), kernel.MkLevelSucc(v), nil)
		if st != StatusSolved {
			t.Errorf("status = %s, want solved", st)
		}
	})

	t.Run("ground disequality", func(t *testing.T) {
		st, _ := UnifySimpleLevel(s, z, kernel.MkLevelSucc(z), nil)
		if st != StatusFailed {
			t.Errorf("status = %s, want failed", st)
		}
	})

	t.Run("assignment", func(t *testing.T) {
		st, s2 := UnifySimpleLevel(s, u, kernel.MkLevelSucc(v), nil)
		if st != StatusSolved {
			t.Fatalf("status = %s, want solved", st)
		}
		r, _ := s2.InstantiateLevel(u)
		if !r.Equal(kernel.MkLevelSucc(v)) {
			t.Errorf("?u = %s, want succ v", r)
		}
	})

	t.Run("strips matching successors", func(t *testing.T) {
		st, s2 := UnifySimpleLevel(s, kernel.MkLevelSucc(u), kernel.MkLevelSucc(kernel.MkLevelSucc(v)), nil)
		if st != StatusSolved {
			t.Fatalf("status = %s, want solved", st)
		}
		r, _ := s2.InstantiateLevel(u)
		if !r.Equal(kernel.MkLevelSucc(v)) {
			t.Errorf("?u = %s, want succ v", r)
		}
	})

	t.Run("occurs under successor fails", func(t *testing.T) {
		st, _ := UnifySimpleLevel(s, u, kernel.MkLevelSucc(u), nil)
		if st != StatusFailed {
			t.Errorf("?u =?= succ ?u: status = %s, want failed", st)
		}
	})

	t.Run("occurs under max is unsupported", func(t *testing.T) {
		st, _ := UnifySimpleLevel(s, u, kernel.MkLevelMax(u, v), nil)
		if st != StatusUnsupported {
			t.Errorf("?u =?= max ?u v: status = %s, want unsupported", st)
		}
	})
}

func TestUnifySimpleConstraint(t *testing.T) {
	s := NewSubstitution()
	m := kernel.MkMeta("m", kernel.MkConst("A"))

	st, s2 := UnifySimpleConstraint(s, kernel.MkEqConstraint(m, kernel.MkConst("c"), nil))
	if st != StatusSolved || !s2.IsAssigned(m.Name()) {
		t.Errorf("eq constraint: status = %s, assigned = %v", st, s2.IsAssigned(m.Name()))
	}

	st, _ = UnifySimpleConstraint(s, kernel.MkChoiceConstraint(m, nil, nil, false))
	if st != StatusUnsupported {
		t.Errorf("choice constraint: status = %s, want unsupported", st)
	}
}
