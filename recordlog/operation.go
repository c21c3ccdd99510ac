package recordlog

import (
	"github.com/fulldump/inceptiontx/record"
)

type Kind int

const (
	Created Kind = iota + 1
	Updated
	Deleted
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Deleted:
		return "deleted"
	}
	return "unknown"
}

// Operation is the pending change for one record. It remembers the dirty
// counter seen by the last index check and by the last after-hook so work
// is only repeated when the record actually changed.
type Operation struct {
	Record *record.Record
	Kind   Kind

	key          record.RID
	indexChecked int64
	everChecked  bool
	hooked       int64
	everHooked   bool
}

// Key is the identity the operation was registered under.
func (op *Operation) Key() record.RID {
	return op.key
}

func (op *Operation) NeedsIndexCheck() bool {
	return !op.everChecked || op.indexChecked != op.Record.Dirty()
}

// IndexChecked tells whether indexes saw this record at least once.
func (op *Operation) IndexChecked() bool {
	return op.everChecked
}

func (op *Operation) MarkIndexChecked() {
	op.indexChecked = op.Record.Dirty()
	op.everChecked = true
}

func (op *Operation) NeedsHooks() bool {
	return !op.everHooked || op.hooked != op.Record.Dirty()
}

// MarkHooked stores the dirty counter observed right before the after-hook.
func (op *Operation) MarkHooked(counter int64) {
	op.hooked = counter
	op.everHooked = true
}
