package storage

import (
	"fmt"
	"slices"
	"sort"

	"github.com/google/btree"

	"github.com/fulldump/inceptiontx/indexlog"
	"github.com/fulldump/inceptiontx/interpret"
	"github.com/fulldump/inceptiontx/record"
	"github.com/fulldump/inceptiontx/schema"
	"github.com/fulldump/inceptiontx/txerror"
)

type indexItem struct {
	key    any
	values []record.RID
}

// Index maps keys to record identities under the uniqueness discipline of
// its definition.
type Index struct {
	Definition *schema.IndexDefinition
	Semantics  interpret.Semantics

	items *btree.BTreeG[*indexItem]
}

func newIndex(def *schema.IndexDefinition) *Index {
	semantics, _ := interpret.ParseSemantics(def.Semantics)
	return &Index{
		Definition: def,
		Semantics:  semantics,
		items: btree.NewG(32, func(a, b *indexItem) bool {
			return indexlog.CompareKeys(a.key, b.key) < 0
		}),
	}
}

func (i *Index) Name() string {
	return i.Definition.Name
}

// Get returns the identities stored under key.
func (i *Index) Get(key any) []record.RID {
	item, found := i.items.Get(&indexItem{key: key})
	if !found {
		return nil
	}
	return slices.Clone(item.values)
}

func (i *Index) Len() int {
	return i.items.Len()
}

// Traverse visits keys in order starting at from, nil means the beginning.
func (i *Index) Traverse(from any, f func(key any, values []record.RID) bool) {
	visit := func(item *indexItem) bool {
		return f(item.key, slices.Clone(item.values))
	}
	if from == nil {
		i.items.Ascend(visit)
		return
	}
	i.items.AscendGreaterOrEqual(&indexItem{key: from}, visit)
}

func (i *Index) clone() *Index {
	return &Index{
		Definition: i.Definition,
		Semantics:  i.Semantics,
		items:      i.items.Clone(),
	}
}

func (i *Index) reset() {
	i.items.Clear(false)
}

// put stores rid under key. Items are never mutated in place since they
// may be shared with a clone.
func (i *Index) put(key any, rid record.RID) error {

	existing, found := i.items.Get(&indexItem{key: key})
	if !found {
		i.items.ReplaceOrInsert(&indexItem{key: key, values: []record.RID{rid}})
		return nil
	}

	switch i.Semantics {
	case interpret.Unique:
		if len(existing.values) == 1 && existing.values[0] == rid {
			return nil
		}
		return txerror.Newf(txerror.IndexConstraintViolated, "index '%s' already has key %v for %s", i.Name(), key, existing.values[0]).WithUserData(i.Name())
	case interpret.Dictionary:
		i.items.ReplaceOrInsert(&indexItem{key: key, values: []record.RID{rid}})
	default:
		if slices.Contains(existing.values, rid) {
			return nil
		}
		values := append(slices.Clone(existing.values), rid)
		i.items.ReplaceOrInsert(&indexItem{key: key, values: values})
	}

	return nil
}

// remove drops rid from key, or the whole key when rid is nil.
func (i *Index) remove(key any, rid *record.RID) {

	if rid == nil {
		i.items.Delete(&indexItem{key: key})
		return
	}

	existing, found := i.items.Get(&indexItem{key: key})
	if !found {
		return
	}

	values := slices.DeleteFunc(slices.Clone(existing.values), func(v record.RID) bool {
		return v == *rid
	})
	if len(values) == 0 {
		i.items.Delete(existing)
		return
	}
	i.items.ReplaceOrInsert(&indexItem{key: key, values: values})
}

// apply replays the changes of one index. Removals of a given identity go
// first on every key so that a key moving between records in the same
// batch does not trip the unique check.
func (i *Index) apply(change *indexChange) error {

	if change.Cleared {
		i.reset()
	}

	for _, kc := range change.Keys {
		key, err := decodeKey(kc.Key)
		if err != nil {
			return fmt.Errorf("decode key of index '%s': %w", i.Name(), err)
		}

		entries, err := i.parseEntries(kc.Changes)
		if err != nil {
			return err
		}
		sort.SliceStable(entries, func(a, b int) bool {
			return isIdentityRemoval(entries[a]) && !isIdentityRemoval(entries[b])
		})

		for _, e := range entries {
			switch e.Operation {
			case indexlog.Put:
				if e.Value == nil {
					return txerror.Newf(txerror.IllegalOperation, "put without value on index '%s'", i.Name())
				}
				if err := i.put(key, *e.Value); err != nil {
					return err
				}
			case indexlog.Remove:
				i.remove(key, e.Value)
			}
		}
	}

	return nil
}

func (i *Index) parseEntries(changes []entryChange) ([]*indexlog.Entry, error) {
	entries := make([]*indexlog.Entry, 0, len(changes))
	for _, c := range changes {
		op, ok := indexlog.ParseOperation(c.Operation)
		if !ok {
			return nil, txerror.Newf(txerror.IllegalOperation, "unknown operation '%s' on index '%s'", c.Operation, i.Name())
		}
		var rid *record.RID
		if c.Value != "" {
			parsed, err := record.Parse(c.Value)
			if err != nil {
				return nil, txerror.New(txerror.IllegalOperation, err)
			}
			rid = &parsed
		}
		entries = append(entries, indexlog.NewEntry(rid, op))
	}
	return entries, nil
}

func isIdentityRemoval(e *indexlog.Entry) bool {
	return e.Operation == indexlog.Remove && e.Value != nil
}
