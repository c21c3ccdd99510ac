package indexlog

import (
	"github.com/fulldump/inceptiontx/record"
)

type Operation int

const (
	Put Operation = iota
	Remove
	Clear
)

func (o Operation) String() string {
	switch o {
	case Put:
		return "put"
	case Remove:
		return "remove"
	case Clear:
		return "clear"
	}
	return "unknown"
}

func ParseOperation(s string) (Operation, bool) {
	switch s {
	case "put":
		return Put, true
	case "remove":
		return Remove, true
	case "clear":
		return Clear, true
	}
	return 0, false
}

// Entry is one change on an index key. A nil Value on a removal means the
// whole key goes away.
type Entry struct {
	Value     *record.RID
	Operation Operation
}

func NewEntry(value *record.RID, op Operation) *Entry {
	return &Entry{Value: value, Operation: op}
}

// Equal compares values only, the operation is ignored on purpose:
// interpretation relies on it to match a removal with its put.
func (e *Entry) Equal(other *Entry) bool {
	if e.Value == nil || other.Value == nil {
		return e.Value == nil && other.Value == nil
	}
	return *e.Value == *other.Value
}

func (e *Entry) String() string {
	if e.Value == nil {
		return e.Operation.String() + "(null)"
	}
	return e.Operation.String() + "(" + e.Value.String() + ")"
}
