package indexlog

import (
	"sort"

	"github.com/fulldump/inceptiontx/record"
)

// Ref locates an entry whose value is a given record.
type Ref struct {
	Index     string
	Changes   *KeyChanges
	Operation Operation
	entry     *Entry
}

type dependent struct {
	index   *IndexChanges
	changes *KeyChanges
}

// Detached holds key lists taken out of their index while the identity
// they depend on is being rewritten.
type Detached struct {
	deps []*dependent
}

func (d *Detached) Len() int {
	if d == nil {
		return 0
	}
	return len(d.deps)
}

// Log collects index changes of a transaction, per index and per key.
type Log struct {
	indexes    map[string]*IndexChanges
	byRecord   map[record.RID][]*Ref
	dependents map[record.RID][]*dependent
	seq        uint64
}

func NewLog() *Log {
	l := &Log{}
	l.Reset()
	return l
}

func (l *Log) Reset() {
	l.indexes = map[string]*IndexChanges{}
	l.byRecord = map[record.RID][]*Ref{}
	l.dependents = map[record.RID][]*dependent{}
	l.seq = 0
}

func (l *Log) index(name string) *IndexChanges {
	ic, ok := l.indexes[name]
	if !ok {
		ic = newIndexChanges(name)
		l.indexes[name] = ic
	}
	return ic
}

// Record appends a change for key in index. Clear operations mark the
// whole index as cleared.
func (l *Log) Record(index string, key any, value *record.RID, op Operation) error {

	if op == Clear {
		l.Clear(index)
		return nil
	}

	depends, err := DependsOnIdentity(key)
	if err != nil {
		return err
	}

	ic := l.index(index)
	changes := ic.getOrCreate(key)

	l.seq++
	entry := NewEntry(value, op)
	if cancelled := changes.add(entry, l.seq); cancelled != nil {
		l.dropRef(cancelled)
	} else if value != nil {
		l.byRecord[*value] = append(l.byRecord[*value], &Ref{
			Index:     index,
			Changes:   changes,
			Operation: op,
			entry:     entry,
		})
	}

	if depends {
		for _, rid := range linksOf(key) {
			l.addDependent(rid, ic, changes)
		}
	}

	return nil
}

func (l *Log) Clear(index string) {
	l.index(index).cleared = true
}

func (l *Log) Index(name string) *IndexChanges {
	return l.indexes[name]
}

// Indexes returns touched indexes sorted by name.
func (l *Log) Indexes() []*IndexChanges {
	result := make([]*IndexChanges, 0, len(l.indexes))
	for _, ic := range l.indexes {
		result = append(result, ic)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].name < result[j].name
	})
	return result
}

// Refs lists the entries whose value is rid.
func (l *Log) Refs(rid record.RID) []Ref {
	result := make([]Ref, 0, len(l.byRecord[rid]))
	for _, r := range l.byRecord[rid] {
		result = append(result, *r)
	}
	return result
}

func (l *Log) Empty() bool {
	return len(l.indexes) == 0
}

func (l *Log) dropRef(entry *Entry) {
	rid := *entry.Value
	refs := l.byRecord[rid]
	for i, r := range refs {
		if r.entry == entry {
			refs = append(refs[:i], refs[i+1:]...)
			break
		}
	}
	if len(refs) == 0 {
		delete(l.byRecord, rid)
		return
	}
	l.byRecord[rid] = refs
}

func (l *Log) addDependent(rid record.RID, ic *IndexChanges, changes *KeyChanges) {
	for _, d := range l.dependents[rid] {
		if d.changes == changes {
			return
		}
	}
	l.dependents[rid] = append(l.dependents[rid], &dependent{index: ic, changes: changes})
}

// Detach takes out of their index every key list whose key embeds rid. It
// must run before rid is mutated, while keys still sort as stored.
func (l *Log) Detach(rid record.RID) *Detached {
	deps := l.dependents[rid]
	for _, d := range deps {
		d.index.keys.Delete(d.changes)
	}
	return &Detached{deps: deps}
}

// Reattach rewrites the keys set aside by Detach and puts them back. If the
// new key already has a list, both are merged by registration sequence.
func (l *Log) Reattach(detached *Detached, oldRID, newRID record.RID) {
	for _, d := range detached.deps {
		d.changes.setKey(rewriteKey(d.changes.key, oldRID, newRID))

		existing, found := d.index.keys.Get(d.changes)
		if found && existing != d.changes {
			existing.merge(d.changes)
			l.repoint(d.changes, existing)
			continue
		}
		d.index.keys.ReplaceOrInsert(d.changes)
	}

	delete(l.dependents, oldRID)
	for _, d := range detached.deps {
		l.addDependent(newRID, d.index, d.changes)
	}
}

func (l *Log) repoint(from, to *KeyChanges) {
	for _, refs := range l.byRecord {
		for _, r := range refs {
			if r.Changes == from {
				r.Changes = to
			}
		}
	}
	for _, deps := range l.dependents {
		for _, d := range deps {
			if d.changes == from {
				d.changes = to
			}
		}
	}
}

// RemapValues rewrites entry values equal to oldRID.
func (l *Log) RemapValues(oldRID, newRID record.RID) {
	refs, ok := l.byRecord[oldRID]
	if !ok {
		return
	}
	for _, r := range refs {
		if r.entry.Value != nil && *r.entry.Value == oldRID {
			r.entry.Value.Set(newRID)
		}
	}
	delete(l.byRecord, oldRID)
	l.byRecord[newRID] = append(l.byRecord[newRID], refs...)
}
