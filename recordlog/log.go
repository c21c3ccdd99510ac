package recordlog

import (
	"github.com/fulldump/inceptiontx/record"
	"github.com/fulldump/inceptiontx/txerror"
)

// Merge describes what Register did with an operation.
type Merge struct {
	Operation *Operation
	// Removed is set when a deletion cancelled a pending creation.
	Removed bool
	// Deleted is set when the entry turned into a deletion.
	Deleted bool
}

// Log keeps one pending operation per record identity in registration
// order. It is owned by a single session and is not safe for concurrent use.
type Log struct {
	entries   map[record.RID]*Operation
	order     []*Operation
	generated map[record.RID]record.RID // new -> old
	nextTemp  int64
}

func NewLog() *Log {
	return &Log{
		entries:   map[record.RID]*Operation{},
		generated: map[record.RID]record.RID{},
		nextTemp:  record.FirstTemporaryPosition,
	}
}

// Register adds or merges an operation for rec. Records without identity
// get a temporary one in container, and so do records carrying a temporary
// identity this log does not hold for them.
func (l *Log) Register(rec *record.Record, kind Kind, container int32) (Merge, error) {

	if rec.RID == nil {
		rec.RID = record.EmptyRID()
	}

	if rec.RID.IsTemporary() {
		if op := l.Lookup(*rec.RID); op == nil || op.Record != rec {
			rec.RID.Position = record.NoPosition
		}
	}

	if !rec.RID.IsValid() {
		if kind == Deleted {
			return Merge{}, txerror.Newf(txerror.IllegalOperation, "cannot delete a record without identity")
		}
		if rec.RID.Container == record.NoContainer {
			rec.RID.Container = container
		}
		rec.RID.Position = l.nextTemp
		l.nextTemp--
	}

	op := l.Lookup(*rec.RID)
	if op == nil {
		if kind == Created && rec.RID.IsPersistent() {
			return Merge{}, txerror.Newf(txerror.IllegalOperation, "record %s already exists", rec.RID)
		}
		if kind == Updated && rec.RID.IsTemporary() {
			kind = Created
		}
		op = &Operation{
			Record: rec,
			Kind:   kind,
			key:    *rec.RID,
		}
		l.entries[op.key] = op
		l.order = append(l.order, op)
		return Merge{Operation: op, Deleted: kind == Deleted}, nil
	}

	switch op.Kind {
	case Deleted:
		return Merge{}, txerror.Newf(txerror.IllegalOperation, "record %s already deleted", rec.RID).WithUserData(kind.String())

	case Created:
		switch kind {
		case Created:
			return Merge{}, txerror.Newf(txerror.IllegalOperation, "record %s already created", rec.RID)
		case Updated:
			op.Record = rec
		case Deleted:
			op.Record = rec
			l.drop(op)
			return Merge{Operation: op, Removed: true}, nil
		}

	case Updated:
		switch kind {
		case Created:
			return Merge{}, txerror.Newf(txerror.IllegalOperation, "record %s already exists", rec.RID)
		case Updated:
			op.Record = rec
		case Deleted:
			op.Record = rec
			op.Kind = Deleted
			return Merge{Operation: op, Deleted: true}, nil
		}
	}

	return Merge{Operation: op}, nil
}

// Lookup finds the operation for rid. On a miss it walks the generated
// identity map backwards (new to old) and gives up when a RID repeats.
func (l *Log) Lookup(rid record.RID) *Operation {
	var visited []record.RID
	current := rid
	for {
		if op, ok := l.entries[current]; ok {
			return op
		}
		previous, ok := l.generated[current]
		if !ok {
			return nil
		}
		visited = append(visited, current)
		for _, v := range visited {
			if v == previous {
				return nil
			}
		}
		current = previous
	}
}

// Remove drops the operation for rid. Identities that are part of a remap
// chain cannot be removed.
func (l *Log) Remove(rid record.RID) error {
	for newRID, oldRID := range l.generated {
		if newRID == rid || oldRID == rid {
			return txerror.Newf(txerror.IllegalOperation, "record %s was remapped and cannot be removed", rid)
		}
	}
	op, ok := l.entries[rid]
	if !ok {
		return nil
	}
	l.drop(op)
	return nil
}

func (l *Log) drop(op *Operation) {
	delete(l.entries, op.key)
	for i, o := range l.order {
		if o == op {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

// NoteRemap records that newRID replaces oldRID.
func (l *Log) NoteRemap(oldRID, newRID record.RID) {
	if oldRID == newRID {
		return
	}
	l.generated[newRID] = oldRID
}

// OriginalOf returns the first identity newRID was known by.
func (l *Log) OriginalOf(newRID record.RID) (record.RID, bool) {
	current, ok := l.generated[newRID]
	if !ok {
		return newRID, false
	}
	visited := []record.RID{newRID}
	for {
		previous, ok := l.generated[current]
		if !ok {
			return current, true
		}
		for _, v := range visited {
			if v == previous {
				return current, true
			}
		}
		visited = append(visited, current)
		current = previous
	}
}

func (l *Log) Operations() []*Operation {
	result := make([]*Operation, len(l.order))
	copy(result, l.order)
	return result
}

func (l *Log) Len() int {
	return len(l.order)
}

// ForgetTemporary takes back the temporary identities handed to pending
// creations so the records get a fresh one if they are saved again.
func (l *Log) ForgetTemporary() {
	for _, op := range l.order {
		if op.Kind == Created && op.Record.RID.IsTemporary() {
			op.Record.RID.Position = record.NoPosition
		}
	}
}

// Clear forgets pending operations but keeps the generated identity map.
func (l *Log) Clear() {
	l.entries = map[record.RID]*Operation{}
	l.order = nil
}

// Reset leaves the log as new.
func (l *Log) Reset() {
	l.Clear()
	l.generated = map[record.RID]record.RID{}
	l.nextTemp = record.FirstTemporaryPosition
}
