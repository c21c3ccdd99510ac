package transaction

import (
	"github.com/fulldump/inceptiontx/indexlog"
	"github.com/fulldump/inceptiontx/interpret"
	"github.com/fulldump/inceptiontx/recordlog"
	"github.com/fulldump/inceptiontx/txerror"
)

// Batch is what a commit hands to storage: record operations in
// registration order and the interpreted index changes.
type Batch struct {
	TxID       string
	Operations []*recordlog.Operation
	Indexes    []*IndexBatch
}

type IndexBatch struct {
	Name      string
	Semantics interpret.Semantics
	Cleared   bool
	Keys      []*KeyBatch
}

type KeyBatch struct {
	Key     any
	Changes interpret.Result

	source *indexlog.KeyChanges
}

func (k *KeyBatch) Entries() []*indexlog.Entry {
	return interpret.Collect(k.Changes)
}

func (t *Transaction) buildBatch() (*Batch, error) {

	batch := &Batch{
		TxID:       t.id,
		Operations: t.records.Operations(),
	}

	for _, ic := range t.indexes.Indexes() {
		semantics, err := t.semantics(ic.Name())
		if err != nil {
			return nil, err
		}

		ib := &IndexBatch{
			Name:      ic.Name(),
			Semantics: semantics,
			Cleared:   ic.Cleared(),
		}

		ic.Ascend(func(c *indexlog.KeyChanges) bool {
			entries := c.Entries()
			result := interpret.Interpret(entries, semantics)
			indexEntriesTotal.WithLabelValues("registered").Add(float64(len(entries)))
			indexEntriesTotal.WithLabelValues("interpreted").Add(float64(result.Len()))
			if result.Len() == 0 {
				return true
			}
			ib.Keys = append(ib.Keys, &KeyBatch{
				Key:     c.Key(),
				Changes: result,
				source:  c,
			})
			return true
		})

		if ib.Cleared || len(ib.Keys) > 0 {
			batch.Indexes = append(batch.Indexes, ib)
		}
	}

	return batch, nil
}

// refreshKeys picks up keys rewritten by identity remapping.
func (b *Batch) refreshKeys() {
	for _, ib := range b.Indexes {
		for _, kb := range ib.Keys {
			if kb.source != nil {
				kb.Key = kb.source.Key()
			}
		}
	}
}

func (t *Transaction) semantics(index string) (interpret.Semantics, error) {
	if t.indexManager == nil {
		return 0, txerror.Newf(txerror.IllegalOperation, "no index manager to resolve index '%s'", index)
	}
	semantics, ok := t.indexManager.Semantics(index)
	if !ok {
		return 0, txerror.Newf(txerror.IllegalOperation, "index '%s' does not exist", index)
	}
	return semantics, nil
}
