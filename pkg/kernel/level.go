package kernel

import (
	"fmt"
)

// Level is a universe level: zero, successor, max, imax, a named parameter,
// or a level metavariable. Levels form a small term language of their own;
// the unifier compares them only after normalization.
type Level interface {
	fmt.Stringer

	// Equal is structural equality.
	Equal(other Level) bool

	// HasMeta reports whether the level contains a level metavariable.
	HasMeta() bool

	levelNode()
}

// LevelZero is the smallest universe level.
type LevelZero struct{}

// LevelSucc is the successor of another level.
type LevelSucc struct {
	Of Level
}

// LevelMax is the maximum of two levels.
type LevelMax struct {
	Lhs Level
	Rhs Level
}

// LevelIMax is the "impredicative maximum": zero when Rhs is zero,
// otherwise the maximum of both sides.
type LevelIMax struct {
	Lhs Level
	Rhs Level
}

// LevelParam is a universe parameter bound by a declaration.
type LevelParam struct {
	Name Name
}

// LevelMeta is a universe metavariable to be solved by unification.
type LevelMeta struct {
	Name Name
}

func (*LevelZero) levelNode()  {}
func (*LevelSucc) levelNode()  {}
func (*LevelMax) levelNode()   {}
func (*LevelIMax) levelNode()  {}
func (*LevelParam) levelNode() {}
func (*LevelMeta) levelNode()  {}

var levelZero = &LevelZero{}

// MkLevelZero returns the level 0.
func MkLevelZero() Level { return levelZero }

// MkLevelSucc returns the successor of l.
func MkLevelSucc(l Level) Level { return &LevelSucc{Of: l} }

// MkLevelMax returns max(l, r).
func MkLevelMax(l, r Level) Level { return &LevelMax{Lhs: l, Rhs: r} }

// MkLevelIMax returns imax(l, r).
func MkLevelIMax(l, r Level) Level { return &LevelIMax{Lhs: l, Rhs: r} }

// MkLevelParam returns the universe parameter named n.
func MkLevelParam(n Name) Level { return &LevelParam{Name: n} }

// MkLevelMeta returns the universe metavariable named n.
func MkLevelMeta(n Name) Level { return &LevelMeta{Name: n} }

// MkLevelOne returns the level 1.
func MkLevelOne() Level { return MkLevelSucc(MkLevelZero()) }

func (*LevelZero) String() string    { return "0" }
func (l *LevelSucc) String() string  { return fmt.Sprintf("(succ %s)", l.Of) }
func (l *LevelMax) String() string   { return fmt.Sprintf("(max %s %s)", l.Lhs, l.Rhs) }
func (l *LevelIMax) String() string  { return fmt.Sprintf("(imax %s %s)", l.Lhs, l.Rhs) }
func (l *LevelParam) String() string { return l.Name.String() }
func (l *LevelMeta) String() string  { return "?" + l.Name.String() }

func (*LevelZero) Equal(other Level) bool {
	_, ok := other.(*LevelZero)
	return ok
}

func (l *LevelSucc) Equal(other Level) bool {
	o, ok := other.(*LevelSucc)
	return ok && l.Of.Equal(o.Of)
}

func (l *LevelMax) Equal(other Level) bool {
	o, ok := other.(*LevelMax)
	return ok && l.Lhs.Equal(o.Lhs) && l.Rhs.Equal(o.Rhs)
}

func (l *LevelIMax) Equal(other Level) bool {
	o, ok := other.(*LevelIMax)
	return ok && l.Lhs.Equal(o.Lhs) && l.Rhs.Equal(o.Rhs)
}

func (l *LevelParam) Equal(other Level) bool {
	o, ok := other.(*LevelParam)
	return ok && l.Name == o.Name
}

func (l *LevelMeta) Equal(other Level) bool {
	o, ok := other.(*LevelMeta)
	return ok && l.Name == o.Name
}

func (*LevelZero) HasMeta() bool    { return false }
func (l *LevelSucc) HasMeta() bool  { return l.Of.HasMeta() }
func (l *LevelMax) HasMeta() bool   { return l.Lhs.HasMeta() || l.Rhs.HasMeta() }
func (l *LevelIMax) HasMeta() bool  { return l.Lhs.HasMeta() || l.Rhs.HasMeta() }
func (*LevelParam) HasMeta() bool   { return false }
func (*LevelMeta) HasMeta() bool    { return true }

// IsLevelZero reports whether l is the literal level 0.
func IsLevelZero(l Level) bool {
	_, ok := l.(*LevelZero)
	return ok
}

// IsLevelSucc reports whether l is a successor.
func IsLevelSucc(l Level) bool {
	_, ok := l.(*LevelSucc)
	return ok
}

// IsLevelMeta reports whether l is a level metavariable.
func IsLevelMeta(l Level) bool {
	_, ok := l.(*LevelMeta)
	return ok
}

// SuccOf returns the argument of a successor level. It panics when l is not
// a successor; callers must check IsLevelSucc first.
func SuccOf(l Level) Level {
	return l.(*LevelSucc).Of
}

// LevelOccurs reports whether the metavariable m occurs anywhere in l.
func LevelOccurs(m *LevelMeta, l Level) bool {
	switch v := l.(type) {
	case *LevelMeta:
		return v.Name == m.Name
	case *LevelSucc:
		return LevelOccurs(m, v.Of)
	case *LevelMax:
		return LevelOccurs(m, v.Lhs) || LevelOccurs(m, v.Rhs)
	case *LevelIMax:
		return LevelOccurs(m, v.Lhs) || LevelOccurs(m, v.Rhs)
	default:
		return false
	}
}

// ForEachLevelMeta calls fn for each distinct position holding a level
// metavariable in l. Traversal short-circuits on subterms without metas.
func ForEachLevelMeta(l Level, fn func(*LevelMeta)) {
	if !l.HasMeta() {
		return
	}
	switch v := l.(type) {
	case *LevelMeta:
		fn(v)
	case *LevelSucc:
		ForEachLevelMeta(v.Of, fn)
	case *LevelMax:
		ForEachLevelMeta(v.Lhs, fn)
		ForEachLevelMeta(v.Rhs, fn)
	case *LevelIMax:
		ForEachLevelMeta(v.Lhs, fn)
		ForEachLevelMeta(v.Rhs, fn)
	}
}

// NormalizeLevel rewrites l into a normal form suitable for comparison:
// units of max/imax are removed, imax with a known-positive right side
// becomes max, and successors are floated over max.
func NormalizeLevel(l Level) Level {
	switch v := l.(type) {
	case *LevelZero, *LevelParam, *LevelMeta:
		return l
	case *LevelSucc:
		return MkLevelSucc(NormalizeLevel(v.Of))
	case *LevelMax:
		lhs := NormalizeLevel(v.Lhs)
		rhs := NormalizeLevel(v.Rhs)
		switch {
		case IsLevelZero(lhs):
			return rhs
		case IsLevelZero(rhs):
			return lhs
		case lhs.Equal(rhs):
			return lhs
		case IsLevelSucc(lhs) && IsLevelSucc(rhs):
			return MkLevelSucc(NormalizeLevel(MkLevelMax(SuccOf(lhs), SuccOf(rhs))))
		default:
			return MkLevelMax(lhs, rhs)
		}
	case *LevelIMax:
		lhs := NormalizeLevel(v.Lhs)
		rhs := NormalizeLevel(v.Rhs)
		switch {
		case IsLevelZero(rhs):
			return MkLevelZero()
		case IsLevelSucc(rhs):
			return NormalizeLevel(MkLevelMax(lhs, rhs))
		case IsLevelZero(lhs):
			return rhs
		case lhs.Equal(rhs):
			return lhs
		default:
			return MkLevelIMax(lhs, rhs)
		}
	default:
		return l
	}
}

// InstLevelParams substitutes universe parameters by the corresponding
// levels. The two slices are positional; extra parameters are left intact.
func InstLevelParams(l Level, params []Name, levels []Level) Level {
	switch v := l.(type) {
	case *LevelParam:
		for i, p := range params {
			if i < len(levels) && v.Name == p {
				return levels[i]
			}
		}
		return l
	case *LevelSucc:
		return MkLevelSucc(InstLevelParams(v.Of, params, levels))
	case *LevelMax:
		return MkLevelMax(InstLevelParams(v.Lhs, params, levels), InstLevelParams(v.Rhs, params, levels))
	case *LevelIMax:
		return MkLevelIMax(InstLevelParams(v.Lhs, params, levels), InstLevelParams(v.Rhs, params, levels))
	default:
		return l
	}
}
