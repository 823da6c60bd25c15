package unify

import (
	"github.com/benbjohnson/immutable"
	set "github.com/hashicorp/go-set/v3"

	"github.com/gitrdm/gounify/pkg/kernel"
)

// Insertion-id bands. A constraint's priority is its insertion id; delayed
// and very-delayed constraints are pushed into higher bands so that every
// regular constraint drains first, then every delayed one, then the rest.
const (
	firstDelayedCidx     uint64 = 1 << 28
	firstVeryDelayedCidx uint64 = 1 << 30
)

type cidxComparer struct{}

func (cidxComparer) Compare(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// occSet is an ordered set of constraint ids. Keeping it sorted guarantees
// that constraints awakened by an assignment are re-processed in ascending
// insertion order.
type occSet = *immutable.SortedMap[uint64, struct{}]

// queueState bundles the constraint queue with the two occurrence indices.
// All three structures are persistent: a case split snapshots the whole
// state by copying this struct, and restores it the same way.
type queueState struct {
	// cnstrs is the queue: an ordered multiset of constraints keyed by
	// insertion id. The minimum key is the next constraint to process,
	// and any entry can be removed by id when its metavariable is
	// assigned.
	cnstrs *immutable.SortedMap[uint64, kernel.Constraint]

	// mvarOccs maps an expression metavariable name to the ids of queued
	// constraints that reference it; mlvlOccs is the same for level
	// metavariables.
	mvarOccs *immutable.Map[kernel.Name, occSet]
	mlvlOccs *immutable.Map[kernel.Name, occSet]
}

func newQueueState() queueState {
	return queueState{
		cnstrs:   immutable.NewSortedMap[uint64, kernel.Constraint](cidxComparer{}),
		mvarOccs: immutable.NewMap[kernel.Name, occSet](nameHasher{}),
		mlvlOccs: immutable.NewMap[kernel.Name, occSet](nameHasher{}),
	}
}

func (q queueState) empty() bool { return q.cnstrs.Len() == 0 }

func (q queueState) insert(cidx uint64, c kernel.Constraint) queueState {
	q.cnstrs = q.cnstrs.Set(cidx, c)
	return q
}

func (q queueState) find(cidx uint64) (kernel.Constraint, bool) {
	return q.cnstrs.Get(cidx)
}

func (q queueState) erase(cidx uint64) queueState {
	q.cnstrs = q.cnstrs.Delete(cidx)
	return q
}

// min returns the constraint with the smallest insertion id.
func (q queueState) min() (uint64, kernel.Constraint, bool) {
	itr := q.cnstrs.Iterator()
	if itr.Done() {
		return 0, kernel.Constraint{}, false
	}
	cidx, c, _ := itr.Next()
	return cidx, c, true
}

// addOcc records that the queued constraint cidx references the
// metavariable m.
func (q queueState) addOcc(m kernel.Name, cidx uint64, lvl bool) queueState {
	index := q.mvarOccs
	if lvl {
		index = q.mlvlOccs
	}
	s, ok := index.Get(m)
	if !ok {
		s = immutable.NewSortedMap[uint64, struct{}](cidxComparer{})
	}
	s = s.Set(cidx, struct{}{})
	if lvl {
		q.mlvlOccs = index.Set(m, s)
	} else {
		q.mvarOccs = index.Set(m, s)
	}
	return q
}

// addOccs indexes cidx under every name in the given sets. Slices are
// sorted before insertion so that index structure is deterministic.
func (q queueState) addOccs(cidx uint64, lvlOccs, varOccs *set.Set[kernel.Name]) queueState {
	if lvlOccs != nil {
		for _, m := range sortedNames(lvlOccs) {
			q = q.addOcc(m, cidx, true)
		}
	}
	if varOccs != nil {
		for _, m := range sortedNames(varOccs) {
			q = q.addOcc(m, cidx, false)
		}
	}
	return q
}

// takeOccs removes and returns the occurrence set of m, in ascending id
// order. Entries may be stale: an id whose constraint has already left the
// queue is harmless, since removal by id is a no-op then.
func (q queueState) takeOccs(m kernel.Name, lvl bool) ([]uint64, queueState) {
	index := q.mvarOccs
	if lvl {
		index = q.mlvlOccs
	}
	s, ok := index.Get(m)
	if !ok {
		return nil, q
	}
	if lvl {
		q.mlvlOccs = index.Delete(m)
	} else {
		q.mvarOccs = index.Delete(m)
	}
	cidxs := make([]uint64, 0, s.Len())
	for itr := s.Iterator(); !itr.Done(); {
		cidx, _, _ := itr.Next()
		cidxs = append(cidxs, cidx)
	}
	return cidxs, q
}

func sortedNames(s *set.Set[kernel.Name]) []kernel.Name {
	names := s.Slice()
	for i := 1; i < len(names); i++ {
		for k := i; k > 0 && names[k] < names[k-1]; k-- {
			names[k], names[k-1] = names[k-1], names[k]
		}
	}
	return names
}
