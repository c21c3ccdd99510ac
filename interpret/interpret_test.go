package interpret

import (
	"testing"

	. "github.com/fulldump/biff"

	"github.com/fulldump/inceptiontx/indexlog"
	"github.com/fulldump/inceptiontx/record"
)

var (
	ridA = record.RID{Container: 1, Position: 1}
	ridB = record.RID{Container: 1, Position: 2}
	ridC = record.RID{Container: 1, Position: 3}
	ridX = record.RID{Container: 1, Position: 9}
)

func put(r record.RID) *indexlog.Entry {
	return indexlog.NewEntry(r.Copy(), indexlog.Put)
}

func remove(r record.RID) *indexlog.Entry {
	return indexlog.NewEntry(r.Copy(), indexlog.Remove)
}

func removeKey() *indexlog.Entry {
	return indexlog.NewEntry(nil, indexlog.Remove)
}

func run(semantics Semantics, entries ...*indexlog.Entry) []*indexlog.Entry {
	return Collect(Interpret(entries, semantics))
}

func TestInterpret_Trivial(t *testing.T) {

	for _, s := range []Semantics{Unique, Dictionary, NonUnique} {
		AssertEqual(run(s), []*indexlog.Entry{})
		AssertEqual(run(s, put(ridA)), []*indexlog.Entry{put(ridA)})
		AssertEqual(run(s, remove(ridA)), []*indexlog.Entry{remove(ridA)})
	}
}

func TestInterpret_Pair(t *testing.T) {

	Alternative("Put then remove of the same record cancel", func(a *A) {
		for _, s := range []Semantics{Unique, Dictionary, NonUnique} {
			AssertEqual(run(s, put(ridA), remove(ridA)), []*indexlog.Entry{})
		}
	})

	Alternative("Same record and operation", func(a *A) {
		AssertEqual(run(Unique, put(ridA), put(ridA)), []*indexlog.Entry{put(ridA)})
		AssertEqual(run(NonUnique, remove(ridA), remove(ridA)), []*indexlog.Entry{remove(ridA)})
		AssertEqual(run(Dictionary, removeKey(), removeKey()), []*indexlog.Entry{removeKey()})
	})

	Alternative("Dictionary keeps the last put", func(a *A) {
		AssertEqual(run(Dictionary, put(ridA), put(ridB)), []*indexlog.Entry{put(ridB)})
	})

	Alternative("Two removals", func(a *A) {
		AssertEqual(run(Unique, remove(ridA), remove(ridB)), []*indexlog.Entry{remove(ridA)})
		AssertEqual(run(Dictionary, remove(ridA), remove(ridB)), []*indexlog.Entry{remove(ridA)})
		AssertEqual(run(NonUnique, remove(ridA), remove(ridB)), []*indexlog.Entry{remove(ridA), remove(ridB)})
		AssertEqual(run(NonUnique, removeKey(), remove(ridB)), []*indexlog.Entry{removeKey()})
	})

	Alternative("Second entry removes the key", func(a *A) {
		for _, s := range []Semantics{Unique, Dictionary, NonUnique} {
			AssertEqual(run(s, put(ridA), removeKey()), []*indexlog.Entry{removeKey()})
			AssertEqual(run(s, remove(ridA), removeKey()), []*indexlog.Entry{removeKey()})
		}
	})

	Alternative("Unique replays the external removal first", func(a *A) {
		AssertEqual(run(Unique, put(ridA), remove(ridB)), []*indexlog.Entry{remove(ridB), put(ridA)})
		AssertEqual(run(Dictionary, put(ridA), remove(ridB)), []*indexlog.Entry{put(ridA), remove(ridB)})
		AssertEqual(run(NonUnique, put(ridA), remove(ridB)), []*indexlog.Entry{put(ridA), remove(ridB)})
	})

	Alternative("Otherwise both are kept in order", func(a *A) {
		AssertEqual(run(Unique, remove(ridB), put(ridA)), []*indexlog.Entry{remove(ridB), put(ridA)})
		AssertEqual(run(Unique, remove(ridA), put(ridA)), []*indexlog.Entry{remove(ridA), put(ridA)})
		AssertEqual(run(Unique, put(ridA), put(ridB)), []*indexlog.Entry{put(ridA), put(ridB)})
		AssertEqual(run(NonUnique, removeKey(), put(ridA)), []*indexlog.Entry{removeKey(), put(ridA)})
	})
}

// The pair rules and the general rules must agree once a third entry
// shows up.
func TestInterpret_PairToTripleBoundary(t *testing.T) {

	Alternative("External removal goes first", func(a *A) {
		AssertEqual(run(Unique, put(ridC), put(ridA), remove(ridB)), []*indexlog.Entry{remove(ridB), put(ridC), put(ridA)})
		AssertEqual(run(Unique, put(ridA), remove(ridB), put(ridC)), []*indexlog.Entry{remove(ridB), put(ridA), put(ridC)})
	})

	Alternative("Cancellation", func(a *A) {
		AssertEqual(run(Unique, put(ridA), remove(ridB), remove(ridA)), []*indexlog.Entry{remove(ridB)})
		AssertEqual(run(Unique, put(ridC), put(ridA), remove(ridA)), []*indexlog.Entry{put(ridC)})
	})

	Alternative("Repeated put", func(a *A) {
		AssertEqual(run(Unique, put(ridA), put(ridA), put(ridA)), []*indexlog.Entry{put(ridA)})
		AssertEqual(run(NonUnique, put(ridA), put(ridA), put(ridA)), []*indexlog.Entry{put(ridA)})
	})
}

func TestInterpret_Unique(t *testing.T) {

	Alternative("At most two puts", func(a *A) {
		AssertEqual(run(Unique, put(ridA), put(ridB), put(ridC)), []*indexlog.Entry{put(ridA), put(ridB)})
		AssertEqual(run(Unique, remove(ridX), put(ridA), put(ridB), put(ridC)), []*indexlog.Entry{remove(ridX), put(ridA), put(ridB)})
	})

	Alternative("Re-adding moves the put to the end", func(a *A) {
		AssertEqual(run(Unique, put(ridA), put(ridB), put(ridA)), []*indexlog.Entry{put(ridB), put(ridA)})
	})

	Alternative("Only the first external removal is kept", func(a *A) {
		AssertEqual(run(Unique, remove(ridX), remove(ridC), put(ridA)), []*indexlog.Entry{remove(ridX), put(ridA)})
	})

	Alternative("Key removal resets puts", func(a *A) {
		AssertEqual(run(Unique, put(ridA), remove(ridX), removeKey(), put(ridB)), []*indexlog.Entry{removeKey(), put(ridB)})
		AssertEqual(run(Unique, put(ridA), put(ridB), removeKey()), []*indexlog.Entry{removeKey()})
	})
}

func TestInterpret_Dictionary(t *testing.T) {

	AssertEqual(run(Dictionary, put(ridA), put(ridB), put(ridC)), []*indexlog.Entry{put(ridC)})
	AssertEqual(run(Dictionary, put(ridA), put(ridB), remove(ridB)), []*indexlog.Entry{put(ridA)})
	AssertEqual(run(Dictionary, put(ridA), remove(ridA), remove(ridB)), []*indexlog.Entry{remove(ridB)})
	AssertEqual(run(Dictionary, remove(ridX), put(ridA), put(ridB)), []*indexlog.Entry{put(ridB)})
	AssertEqual(run(Dictionary, put(ridA), put(ridB), remove(ridB), remove(ridA)), []*indexlog.Entry{})
}

func TestInterpret_NonUnique(t *testing.T) {

	Alternative("Key removal overrides previous changes", func(a *A) {
		AssertEqual(run(NonUnique, put(ridA), removeKey(), put(ridB)), []*indexlog.Entry{removeKey(), put(ridB)})
		AssertEqual(run(NonUnique, remove(ridX), put(ridA), removeKey()), []*indexlog.Entry{removeKey()})
	})

	Alternative("Removals before puts", func(a *A) {
		AssertEqual(run(NonUnique, put(ridA), put(ridB), remove(ridA), remove(ridC)), []*indexlog.Entry{remove(ridC), put(ridB)})
		AssertEqual(run(NonUnique, remove(ridA), put(ridA), put(ridB)), []*indexlog.Entry{put(ridA), put(ridB)})
	})

	Alternative("Large inputs are returned as a view", func(a *A) {
		entries := []*indexlog.Entry{remove(ridX)}
		for i := int64(0); i < ViewThreshold; i++ {
			entries = append(entries, put(record.RID{Container: 2, Position: i}))
		}

		result := Interpret(entries, NonUnique)
		_, isView := result.(*view)
		AssertTrue(isView)
		AssertEqual(result.Len(), ViewThreshold+1)

		all := Collect(result)
		AssertEqual(all[0], remove(ridX))
		AssertEqual(all[len(all)-1], put(record.RID{Container: 2, Position: ViewThreshold - 1}))

		seen := 0
		result.Each(func(e *indexlog.Entry) bool {
			seen++
			return seen < 2
		})
		AssertEqual(seen, 2)
	})
}

func TestInterpret_NeverGrows(t *testing.T) {

	alphabet := []func() *indexlog.Entry{
		func() *indexlog.Entry { return put(ridA) },
		func() *indexlog.Entry { return put(ridB) },
		func() *indexlog.Entry { return remove(ridA) },
		func() *indexlog.Entry { return remove(ridB) },
		removeKey,
	}

	var walk func(prefix []int)
	walk = func(prefix []int) {
		if len(prefix) > 0 {
			for _, s := range []Semantics{Unique, Dictionary, NonUnique} {
				entries := make([]*indexlog.Entry, len(prefix))
				for i, p := range prefix {
					entries[i] = alphabet[p]()
				}
				if Interpret(entries, s).Len() > len(entries) {
					t.Fatalf("%s grew %v", s, entries)
				}
			}
		}
		if len(prefix) == 4 {
			return
		}
		for i := range alphabet {
			walk(append(append([]int{}, prefix...), i))
		}
	}
	walk(nil)
}
