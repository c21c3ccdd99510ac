package recordlog

import (
	"errors"
	"testing"

	. "github.com/fulldump/biff"

	"github.com/fulldump/inceptiontx/record"
	"github.com/fulldump/inceptiontx/txerror"
)

func TestLog_Register(t *testing.T) {

	Alternative("New record", func(a *A) {
		l := NewLog()
		r := record.New("people")

		m, err := l.Register(r, Created, 7)
		AssertNil(err)
		AssertEqual(*r.RID, record.RID{Container: 7, Position: -2})
		AssertEqual(m.Operation.Kind, Created)
		AssertEqual(l.Len(), 1)

		a.Alternative("Second record gets next temporary position", func(a *A) {
			r2 := record.New("people")
			_, err := l.Register(r2, Created, 7)
			AssertNil(err)
			AssertEqual(r2.RID.Position, int64(-3))
		})

		a.Alternative("Update keeps created", func(a *A) {
			m, err := l.Register(r, Updated, 7)
			AssertNil(err)
			AssertEqual(m.Operation.Kind, Created)
			AssertEqual(l.Len(), 1)
		})

		a.Alternative("Delete removes the entry", func(a *A) {
			m, err := l.Register(r, Deleted, 7)
			AssertNil(err)
			AssertTrue(m.Removed)
			AssertEqual(l.Len(), 0)
			AssertNil(l.Lookup(*r.RID))
		})

		a.Alternative("Create twice", func(a *A) {
			_, err := l.Register(r, Created, 7)
			AssertTrue(errors.Is(err, txerror.ErrIllegalOperation))
		})
	})

	Alternative("Persistent record", func(a *A) {
		l := NewLog()
		r := record.Load(record.RID{Container: 1, Position: 4}, "people", 3, nil)

		m, err := l.Register(r, Updated, 1)
		AssertNil(err)
		AssertEqual(m.Operation.Kind, Updated)
		AssertEqual(*r.RID, record.RID{Container: 1, Position: 4})

		a.Alternative("Update then delete", func(a *A) {
			m, err := l.Register(r, Deleted, 1)
			AssertNil(err)
			AssertTrue(m.Deleted)
			AssertEqual(m.Operation.Kind, Deleted)
			AssertEqual(l.Len(), 1)

			a.Alternative("Anything after delete fails", func(a *A) {
				_, err := l.Register(r, Updated, 1)
				AssertTrue(errors.Is(err, txerror.ErrIllegalOperation))
				_, err = l.Register(r, Deleted, 1)
				AssertTrue(errors.Is(err, txerror.ErrIllegalOperation))
			})
		})

		a.Alternative("Create after update fails", func(a *A) {
			_, err := l.Register(r, Created, 1)
			AssertTrue(errors.Is(err, txerror.ErrIllegalOperation))
		})
	})

	Alternative("Temporary identity from another log", func(a *A) {
		previous := NewLog()
		stale := record.New("people")
		previous.Register(stale, Created, 7)
		AssertEqual(stale.RID.Position, int64(-2))

		l := NewLog()
		fresh := record.New("people")
		l.Register(fresh, Created, 7)
		AssertEqual(fresh.RID.Position, int64(-2))

		m, err := l.Register(stale, Updated, 7)
		AssertNil(err)
		AssertEqual(m.Operation.Kind, Created)
		AssertEqual(*stale.RID, record.RID{Container: 7, Position: -3})
		AssertEqual(l.Len(), 2)
		AssertTrue(l.Lookup(*fresh.RID).Record == fresh)

		a.Alternative("Cannot be deleted", func(a *A) {
			other := NewLog()
			other.Register(record.New("people"), Created, 7)
			_, err := other.Register(fresh, Deleted, 7)
			AssertTrue(errors.Is(err, txerror.ErrIllegalOperation))
			AssertEqual(other.Len(), 1)
		})
	})

	Alternative("Delete without identity", func(a *A) {
		l := NewLog()
		_, err := l.Register(record.New("people"), Deleted, 1)
		AssertTrue(errors.Is(err, txerror.ErrIllegalOperation))
	})
}

func TestLog_ForgetTemporary(t *testing.T) {

	l := NewLog()
	created := record.New("people")
	l.Register(created, Created, 1)
	persistent := record.Load(record.RID{Container: 1, Position: 4}, "people", 3, nil)
	l.Register(persistent, Updated, 1)

	l.ForgetTemporary()
	l.Clear()

	AssertEqual(*created.RID, record.RID{Container: 1, Position: record.NoPosition})
	AssertEqual(*persistent.RID, record.RID{Container: 1, Position: 4})

	l.Reset()
	_, err := l.Register(created, Updated, 1)
	AssertNil(err)
	AssertEqual(created.RID.Position, int64(-2))
	AssertEqual(l.Lookup(*created.RID).Kind, Created)
}

func TestLog_Counters(t *testing.T) {

	l := NewLog()
	r := record.New("people")
	m, _ := l.Register(r, Created, 1)
	op := m.Operation

	AssertTrue(op.NeedsIndexCheck())
	op.MarkIndexChecked()
	AssertFalse(op.NeedsIndexCheck())

	r.Set("name", "Fulanez")
	AssertTrue(op.NeedsIndexCheck())

	AssertTrue(op.NeedsHooks())
	op.MarkHooked(r.Dirty())
	AssertFalse(op.NeedsHooks())
}

func TestLog_Remap(t *testing.T) {

	Alternative("Lookup follows generated identities", func(a *A) {
		l := NewLog()
		r := record.New("people")
		l.Register(r, Created, 1)
		old := *r.RID

		permanent := record.RID{Container: 1, Position: 10}
		l.NoteRemap(old, permanent)
		r.RID.Set(permanent)

		AssertNotNil(l.Lookup(permanent))
		AssertNotNil(l.Lookup(old))

		original, ok := l.OriginalOf(permanent)
		AssertTrue(ok)
		AssertEqual(original, old)

		a.Alternative("Remapped identities cannot be removed", func(a *A) {
			err := l.Remove(old)
			AssertTrue(errors.Is(err, txerror.ErrIllegalOperation))
			err = l.Remove(permanent)
			AssertTrue(errors.Is(err, txerror.ErrIllegalOperation))
		})

		a.Alternative("Clear keeps generated map", func(a *A) {
			l.Clear()
			AssertEqual(l.Len(), 0)
			_, ok := l.OriginalOf(permanent)
			AssertTrue(ok)
		})
	})

	Alternative("Cycle guard", func(a *A) {
		l := NewLog()
		x := record.RID{Container: 1, Position: 1}
		y := record.RID{Container: 1, Position: 2}
		l.NoteRemap(x, y)
		l.NoteRemap(y, x)

		AssertNil(l.Lookup(x))
		AssertNil(l.Lookup(y))
	})

	Alternative("Remove", func(a *A) {
		l := NewLog()
		r := record.Load(record.RID{Container: 1, Position: 4}, "people", 1, nil)
		l.Register(r, Updated, 1)

		AssertNil(l.Remove(*r.RID))
		AssertEqual(l.Len(), 0)
		AssertNil(l.Remove(*r.RID))
	})

	Alternative("Reset restarts temporary positions", func(a *A) {
		l := NewLog()
		l.Register(record.New("people"), Created, 1)
		l.Reset()

		r := record.New("people")
		l.Register(r, Created, 1)
		AssertEqual(r.RID.Position, int64(record.FirstTemporaryPosition))
	})
}
