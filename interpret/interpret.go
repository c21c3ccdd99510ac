// Package interpret reduces the ordered list of changes made to one index
// key during a transaction to the smallest list with the same effect.
//
// The reduction depends on the uniqueness discipline of the index:
//
//   - Unique: a key holds at most one record, a second one is a conflict.
//   - Dictionary: a key holds one record, last write wins.
//   - NonUnique: a key holds any number of records.
//
// Entries compare by value only. A removal whose value matches a put seen
// earlier in the same list cancels it; any other removal is external and
// refers to state already stored.
package interpret

import (
	"github.com/fulldump/inceptiontx/indexlog"
)

type Semantics int

const (
	Unique Semantics = iota
	Dictionary
	NonUnique
)

func (s Semantics) String() string {
	switch s {
	case Unique:
		return "unique"
	case Dictionary:
		return "dictionary"
	case NonUnique:
		return "nonunique"
	}
	return "unknown"
}

func ParseSemantics(s string) (Semantics, bool) {
	switch s {
	case "unique":
		return Unique, true
	case "dictionary":
		return Dictionary, true
	case "nonunique", "non-unique":
		return NonUnique, true
	}
	return 0, false
}

// ViewThreshold is the input size above which non-unique results are
// returned as a view over the working sets instead of a fresh slice.
const ViewThreshold = 8

// Interpret returns the minimal list of changes equivalent to entries.
// The result is never longer than the input.
func Interpret(entries []*indexlog.Entry, semantics Semantics) Result {
	switch len(entries) {
	case 0, 1:
		return List(entries)
	case 2:
		return interpretPair(entries[0], entries[1], semantics)
	}
	switch semantics {
	case Unique:
		return interpretUnique(entries)
	case Dictionary:
		return interpretDictionary(entries)
	}
	return interpretNonUnique(entries)
}

func interpretPair(first, second *indexlog.Entry, semantics Semantics) Result {

	if first.Operation == second.Operation && first.Equal(second) {
		return List{first}
	}

	if first.Operation == indexlog.Put && second.Operation == indexlog.Remove && first.Equal(second) {
		return List{}
	}

	if second.Operation == indexlog.Remove && second.Value == nil {
		return List{second}
	}

	if first.Operation == indexlog.Remove && second.Operation == indexlog.Remove {
		if semantics != NonUnique || first.Value == nil {
			return List{first}
		}
		return List{first, second}
	}

	if first.Operation == indexlog.Put && second.Operation == indexlog.Put && semantics == Dictionary {
		return List{second}
	}

	// Replay the external removal before the put, otherwise the unique
	// constraint would see two records on the same key.
	if semantics == Unique && first.Operation == indexlog.Put && second.Operation == indexlog.Remove {
		return List{second, first}
	}

	return List{first, second}
}

// accumulate walks entries keeping surviving puts in order and the first
// external removal. A null removal drops every put seen so far.
func accumulate(entries []*indexlog.Entry) (puts *entrySet, external *indexlog.Entry) {
	puts = newEntrySet(len(entries))
	for _, e := range entries {
		switch e.Operation {
		case indexlog.Put:
			if e.Value == nil {
				continue
			}
			puts.remove(e)
			puts.add(e)
		case indexlog.Remove:
			if e.Value != nil && puts.remove(e) {
				continue
			}
			if e.Value == nil {
				puts.reset()
				if external == nil || external.Value != nil {
					external = e
				}
				continue
			}
			if external == nil {
				external = e
			}
		}
	}
	return puts, external
}

func interpretUnique(entries []*indexlog.Entry) Result {
	puts, external := accumulate(entries)
	result := List{}
	if external != nil {
		result = append(result, external)
	}
	// Two puts are enough to make the conflict visible downstream.
	n := 0
	puts.each(func(e *indexlog.Entry) bool {
		result = append(result, e)
		n++
		return n < 2
	})
	return result
}

func interpretDictionary(entries []*indexlog.Entry) Result {
	puts, external := accumulate(entries)
	if last := puts.last(); last != nil {
		return List{last}
	}
	if external != nil {
		return List{external}
	}
	return List{}
}

func interpretNonUnique(entries []*indexlog.Entry) Result {
	var keyRemoval *indexlog.Entry
	removals := newEntrySet(len(entries))
	puts := newEntrySet(len(entries))

	for _, e := range entries {
		switch e.Operation {
		case indexlog.Put:
			if e.Value == nil {
				continue
			}
			removals.remove(e)
			if !puts.contains(e) {
				puts.add(e)
			}
		case indexlog.Remove:
			if e.Value == nil {
				keyRemoval = e
				removals.reset()
				puts.reset()
				continue
			}
			if puts.remove(e) {
				continue
			}
			if !removals.contains(e) {
				removals.add(e)
			}
		}
	}

	if len(entries) > ViewThreshold {
		return &view{head: keyRemoval, removals: removals, puts: puts}
	}

	result := List{}
	if keyRemoval != nil {
		result = append(result, keyRemoval)
	}
	removals.each(func(e *indexlog.Entry) bool {
		result = append(result, e)
		return true
	})
	puts.each(func(e *indexlog.Entry) bool {
		result = append(result, e)
		return true
	})
	return result
}
