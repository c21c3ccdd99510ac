package interpret

import (
	"github.com/fulldump/inceptiontx/indexlog"
	"github.com/fulldump/inceptiontx/record"
)

// Result is an interpreted list of changes.
type Result interface {
	Len() int
	Each(f func(e *indexlog.Entry) bool)
}

// List is an eagerly built Result.
type List []*indexlog.Entry

func (l List) Len() int {
	return len(l)
}

func (l List) Each(f func(e *indexlog.Entry) bool) {
	for _, e := range l {
		if !f(e) {
			return
		}
	}
}

// view chains the working sets of the non-unique interpretation without
// copying them.
type view struct {
	head     *indexlog.Entry
	removals *entrySet
	puts     *entrySet
}

func (v *view) Len() int {
	n := v.removals.len() + v.puts.len()
	if v.head != nil {
		n++
	}
	return n
}

func (v *view) Each(f func(e *indexlog.Entry) bool) {
	if v.head != nil && !f(v.head) {
		return
	}
	stopped := false
	v.removals.each(func(e *indexlog.Entry) bool {
		stopped = !f(e)
		return !stopped
	})
	if stopped {
		return
	}
	v.puts.each(f)
}

// Collect materializes a Result.
func Collect(r Result) []*indexlog.Entry {
	result := make([]*indexlog.Entry, 0, r.Len())
	r.Each(func(e *indexlog.Entry) bool {
		result = append(result, e)
		return true
	})
	return result
}

// entrySet is an insertion ordered set of entries keyed by value. Removed
// slots are left empty and skipped while iterating. Null values are never
// members.
type entrySet struct {
	items []*indexlog.Entry
	index map[record.RID]int
	live  int
}

func newEntrySet(capacity int) *entrySet {
	return &entrySet{
		items: make([]*indexlog.Entry, 0, capacity),
		index: make(map[record.RID]int, capacity),
	}
}

func (s *entrySet) contains(e *indexlog.Entry) bool {
	if e.Value == nil {
		return false
	}
	_, ok := s.index[*e.Value]
	return ok
}

func (s *entrySet) add(e *indexlog.Entry) {
	if e.Value == nil {
		return
	}
	s.index[*e.Value] = len(s.items)
	s.items = append(s.items, e)
	s.live++
}

func (s *entrySet) remove(e *indexlog.Entry) bool {
	if e.Value == nil {
		return false
	}
	i, ok := s.index[*e.Value]
	if !ok {
		return false
	}
	s.items[i] = nil
	delete(s.index, *e.Value)
	s.live--
	return true
}

func (s *entrySet) reset() {
	s.items = s.items[:0]
	clear(s.index)
	s.live = 0
}

func (s *entrySet) len() int {
	return s.live
}

func (s *entrySet) last() *indexlog.Entry {
	for i := len(s.items) - 1; i >= 0; i-- {
		if s.items[i] != nil {
			return s.items[i]
		}
	}
	return nil
}

func (s *entrySet) each(f func(e *indexlog.Entry) bool) {
	for _, e := range s.items {
		if e == nil {
			continue
		}
		if !f(e) {
			return
		}
	}
}
