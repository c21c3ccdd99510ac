package transaction

import (
	"github.com/fulldump/inceptiontx/record"
	"github.com/fulldump/inceptiontx/txerror"
)

// Remap replaces a temporary identity with the permanent one assigned by
// storage in every buffered structure. Keys embedding oldRID are taken out
// of their index before the identity changes and put back afterwards, so
// they stay reachable under the new key.
func (t *Transaction) Remap(oldRID, newRID record.RID) error {

	if oldRID == newRID {
		return nil
	}

	if status := t.Status(); status != StatusBegun && status != StatusCommitting {
		return txerror.Newf(txerror.InvalidState, "cannot remap identities, transaction is %s", status)
	}

	if !newRID.IsPersistent() {
		return txerror.Newf(txerror.IllegalOperation, "cannot remap %s to non persistent %s", oldRID, newRID)
	}

	detached := t.indexes.Detach(oldRID)

	t.records.NoteRemap(oldRID, newRID)
	if op := t.records.Lookup(oldRID); op != nil && op.Record.RID != nil && *op.Record.RID == oldRID {
		op.Record.RID.Set(newRID)
	}

	t.indexes.Reattach(detached, oldRID, newRID)
	t.indexes.RemapValues(oldRID, newRID)

	t.logger.Debugw("identity remapped", "tx", t.id, "old", oldRID.String(), "new", newRID.String(), "keys", detached.Len())

	return nil
}
