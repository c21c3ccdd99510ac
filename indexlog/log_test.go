package indexlog

import (
	"errors"
	"testing"
	"time"

	. "github.com/fulldump/biff"

	"github.com/fulldump/inceptiontx/record"
	"github.com/fulldump/inceptiontx/txerror"
)

func rid(container int32, position int64) *record.RID {
	return record.NewRID(container, position)
}

func TestEntry_Equal(t *testing.T) {

	a := NewEntry(rid(1, 1), Put)
	AssertTrue(a.Equal(NewEntry(rid(1, 1), Remove)))
	AssertFalse(a.Equal(NewEntry(rid(1, 2), Put)))
	AssertFalse(a.Equal(NewEntry(nil, Put)))
	AssertTrue(NewEntry(nil, Remove).Equal(NewEntry(nil, Put)))
}

func TestLog_Record(t *testing.T) {

	Alternative("Append in order", func(a *A) {
		l := NewLog()
		AssertNil(l.Record("by-email", "a@example.com", rid(1, 1), Put))
		AssertNil(l.Record("by-email", "a@example.com", rid(1, 2), Put))

		changes := l.Index("by-email").Get("a@example.com")
		AssertEqual(changes.Entries(), []*Entry{
			NewEntry(rid(1, 1), Put),
			NewEntry(rid(1, 2), Put),
		})

		a.Alternative("Removal cancels the head put", func(a *A) {
			AssertNil(l.Record("by-email", "a@example.com", rid(1, 1), Remove))
			AssertEqual(changes.Entries(), []*Entry{
				NewEntry(rid(1, 2), Put),
			})
			AssertEqual(len(l.Refs(record.RID{Container: 1, Position: 1})), 0)
		})

		a.Alternative("Removal of something else is appended", func(a *A) {
			AssertNil(l.Record("by-email", "a@example.com", rid(1, 9), Remove))
			AssertEqual(changes.Len(), 3)
		})
	})

	Alternative("Head put mentioned again is not cancelled", func(a *A) {
		l := NewLog()
		l.Record("by-email", "k", rid(1, 1), Put)
		l.Record("by-email", "k", rid(1, 1), Put)
		l.Record("by-email", "k", rid(1, 1), Remove)
		AssertEqual(l.Index("by-email").Get("k").Len(), 3)
	})

	Alternative("Null key has its own list", func(a *A) {
		l := NewLog()
		AssertNil(l.Record("by-email", nil, rid(1, 1), Put))
		AssertNil(l.Record("by-email", "x", rid(1, 1), Put))

		ic := l.Index("by-email")
		AssertEqual(ic.Get(nil).Len(), 1)
		AssertEqual(ic.Len(), 2)

		keys := []any{}
		ic.Ascend(func(c *KeyChanges) bool {
			keys = append(keys, c.Key())
			return true
		})
		AssertEqual(keys, []any{nil, "x"})
	})

	Alternative("Clear", func(a *A) {
		l := NewLog()
		AssertNil(l.Record("by-email", nil, nil, Clear))
		AssertTrue(l.Index("by-email").Cleared())
		AssertEqual(l.Index("by-email").Len(), 0)
	})

	Alternative("Secondary map", func(a *A) {
		l := NewLog()
		l.Record("by-email", "x", rid(1, 1), Put)
		l.Record("by-name", "y", rid(1, 1), Remove)
		l.Record("by-name", "y", nil, Remove)

		refs := l.Refs(record.RID{Container: 1, Position: 1})
		AssertEqual(len(refs), 2)
		AssertEqual(refs[0].Index, "by-email")
		AssertEqual(refs[1].Operation, Remove)
	})

	Alternative("Collections are rejected", func(a *A) {
		l := NewLog()
		err := l.Record("by-friends", []*record.RID{rid(1, 1)}, rid(1, 2), Put)
		AssertTrue(errors.Is(err, txerror.ErrIllegalOperation))

		err = l.Record("by-friends", Composite{"a", []any{rid(1, 1)}}, rid(1, 2), Put)
		AssertTrue(errors.Is(err, txerror.ErrIllegalOperation))
	})

	Alternative("Indexes sorted", func(a *A) {
		l := NewLog()
		l.Record("b", 1, rid(1, 1), Put)
		l.Record("a", 1, rid(1, 1), Put)
		names := []string{}
		for _, ic := range l.Indexes() {
			names = append(names, ic.Name())
		}
		AssertEqual(names, []string{"a", "b"})
	})
}

func TestDependsOnIdentity(t *testing.T) {

	for _, key := range []any{"s", 3, 2.5, true, []byte("b"), time.Now(), nil} {
		depends, err := DependsOnIdentity(key)
		AssertNil(err)
		AssertFalse(depends)
	}

	depends, err := DependsOnIdentity(rid(1, -2))
	AssertNil(err)
	AssertTrue(depends)

	depends, err = DependsOnIdentity(Composite{"x", 1})
	AssertNil(err)
	AssertTrue(depends)

	_, err = DependsOnIdentity(struct{}{})
	AssertNotNil(err)

	for _, key := range []any{
		rid(1, record.NoPosition),
		record.RID{Container: 1, Position: record.NoPosition},
		Composite{"best", record.EmptyRID()},
	} {
		_, err = DependsOnIdentity(key)
		AssertTrue(errors.Is(err, txerror.ErrIllegalOperation))
	}

	l := NewLog()
	err = l.Record("by-friend", Composite{"best", record.EmptyRID()}, rid(2, 7), Put)
	AssertTrue(errors.Is(err, txerror.ErrIllegalOperation))
	AssertTrue(l.Empty())
	AssertEqual(l.Detach(*record.EmptyRID()).Len(), 0)
}

func TestCompareKeys(t *testing.T) {

	AssertEqual(CompareKeys(nil, false), -1)
	AssertEqual(CompareKeys(1, 1.0), 0)
	AssertEqual(CompareKeys(int64(2), 1.5), 1)
	AssertEqual(CompareKeys("a", "b"), -1)
	AssertEqual(CompareKeys(rid(1, 2), record.RID{Container: 1, Position: 2}), 0)
	AssertEqual(CompareKeys(Composite{"a", 1}, Composite{"a", 2}), -1)
	AssertEqual(CompareKeys(Composite{"a"}, Composite{"a", 2}), -1)
	AssertEqual(CompareKeys("z", rid(0, 0)), -1)
}

func TestLog_Remap(t *testing.T) {

	Alternative("Key embedding a temporary identity", func(a *A) {
		l := NewLog()
		friend := rid(1, -2)
		owner := rid(2, -3)
		key := Composite{"best", friend}

		AssertNil(l.Record("by-friend", key, owner, Put))
		AssertNil(l.Record("by-friend", Composite{"best", rid(1, 5)}, rid(2, 7), Put))
		AssertNil(l.Record("by-friend", Composite{"best", rid(1, 9)}, rid(2, 8), Put))

		oldRID := record.RID{Container: 1, Position: -2}
		newRID := record.RID{Container: 1, Position: 30}

		detached := l.Detach(oldRID)
		AssertEqual(detached.Len(), 1)
		friend.Set(newRID)
		l.Reattach(detached, oldRID, newRID)

		ic := l.Index("by-friend")
		AssertNil(ic.Get(Composite{"best", record.RID{Container: 1, Position: -2}}))
		changes := ic.Get(Composite{"best", record.RID{Container: 1, Position: 30}})
		AssertNotNil(changes)
		AssertEqual(changes.Entries(), []*Entry{NewEntry(rid(2, -3), Put)})
		AssertEqual(ic.Len(), 3)

		a.Alternative("Key with a value identity is rewritten", func(a *A) {
			l := NewLog()
			oldRID := record.RID{Container: 4, Position: -2}
			newRID := record.RID{Container: 4, Position: 0}
			l.Record("by-link", Composite{oldRID}, rid(1, 1), Put)

			detached := l.Detach(oldRID)
			l.Reattach(detached, oldRID, newRID)
			AssertNotNil(l.Index("by-link").Get(Composite{newRID}))
			AssertNil(l.Index("by-link").Get(Composite{oldRID}))
		})
	})

	Alternative("Values are rewritten", func(a *A) {
		l := NewLog()
		value := rid(1, -2)
		l.Record("by-email", "x", value, Put)
		l.Record("by-email", "y", rid(1, -2), Remove)

		oldRID := record.RID{Container: 1, Position: -2}
		newRID := record.RID{Container: 1, Position: 4}
		l.RemapValues(oldRID, newRID)

		AssertEqual(*value, newRID)
		AssertEqual(*l.Index("by-email").Get("y").Entries()[0].Value, newRID)
		AssertEqual(len(l.Refs(oldRID)), 0)
		AssertEqual(len(l.Refs(newRID)), 2)
	})

	Alternative("Merge with an existing key", func(a *A) {
		l := NewLog()
		l.Record("by-link", rid(1, 3), rid(9, 1), Put)
		l.Record("by-link", rid(1, -2), rid(9, 2), Put)

		oldRID := record.RID{Container: 1, Position: -2}
		newRID := record.RID{Container: 1, Position: 3}
		detached := l.Detach(oldRID)
		l.Reattach(detached, oldRID, newRID)

		ic := l.Index("by-link")
		AssertEqual(ic.Len(), 1)
		AssertEqual(ic.Get(rid(1, 3)).Entries(), []*Entry{
			NewEntry(rid(9, 1), Put),
			NewEntry(rid(9, 2), Put),
		})
		AssertEqual(l.Refs(record.RID{Container: 9, Position: 2})[0].Changes, ic.Get(rid(1, 3)))
	})

	Alternative("Merge keeps registration order", func(a *A) {
		l := NewLog()
		l.Record("by-link", rid(1, -2), rid(9, 1), Put)
		l.Record("by-link", rid(1, 3), rid(9, 2), Put)
		l.Record("by-link", rid(1, -2), rid(9, 3), Remove)
		l.Record("by-link", rid(1, 3), rid(9, 4), Put)

		oldRID := record.RID{Container: 1, Position: -2}
		newRID := record.RID{Container: 1, Position: 3}
		detached := l.Detach(oldRID)
		l.Reattach(detached, oldRID, newRID)

		AssertEqual(l.Index("by-link").Get(rid(1, 3)).Entries(), []*Entry{
			NewEntry(rid(9, 1), Put),
			NewEntry(rid(9, 2), Put),
			NewEntry(rid(9, 3), Remove),
			NewEntry(rid(9, 4), Put),
		})
	})
}
