package indexlog

import (
	"sync"

	"github.com/google/btree"
)

// KeyChanges is the ordered list of changes of one index key. The session
// appends to it while a mirroring reader may take snapshots.
type KeyChanges struct {
	mu      sync.Mutex
	key     any
	entries []*Entry
	seqs    []uint64 // registration sequence of each entry
}

func (c *KeyChanges) Key() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.key
}

func (c *KeyChanges) setKey(key any) {
	c.mu.Lock()
	c.key = key
	c.mu.Unlock()
}

// Entries returns a snapshot in registration order.
func (c *KeyChanges) Entries() []*Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]*Entry, len(c.entries))
	copy(result, c.entries)
	return result
}

func (c *KeyChanges) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// add appends e, registered with sequence seq. A removal that matches an
// unconsumed put at the head of the list cancels it, the cancelled put is
// returned and e is discarded.
func (c *KeyChanges) add(e *Entry, seq uint64) (cancelled *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e.Operation == Remove && e.Value != nil && len(c.entries) > 0 {
		head := c.entries[0]
		if head.Operation == Put && head.Equal(e) && !c.mentionedAfterHead(e) {
			c.entries = c.entries[1:]
			c.seqs = c.seqs[1:]
			return head
		}
	}

	c.entries = append(c.entries, e)
	c.seqs = append(c.seqs, seq)
	return nil
}

func (c *KeyChanges) mentionedAfterHead(e *Entry) bool {
	for _, other := range c.entries[1:] {
		if other.Equal(e) {
			return true
		}
	}
	return false
}

// merge interleaves the entries of other by registration sequence.
func (c *KeyChanges) merge(other *KeyChanges) {
	other.mu.Lock()
	entries, seqs := other.entries, other.seqs
	other.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	total := len(c.entries) + len(entries)
	mergedEntries := make([]*Entry, 0, total)
	mergedSeqs := make([]uint64, 0, total)
	i, j := 0, 0
	for i < len(c.entries) || j < len(entries) {
		if j == len(entries) || (i < len(c.entries) && c.seqs[i] < seqs[j]) {
			mergedEntries = append(mergedEntries, c.entries[i])
			mergedSeqs = append(mergedSeqs, c.seqs[i])
			i++
			continue
		}
		mergedEntries = append(mergedEntries, entries[j])
		mergedSeqs = append(mergedSeqs, seqs[j])
		j++
	}
	c.entries = mergedEntries
	c.seqs = mergedSeqs
}

// IndexChanges holds every pending change of one index.
type IndexChanges struct {
	name    string
	cleared bool
	keys    *btree.BTreeG[*KeyChanges]
	nullKey *KeyChanges
}

func newIndexChanges(name string) *IndexChanges {
	return &IndexChanges{
		name: name,
		keys: btree.NewG(32, func(a, b *KeyChanges) bool {
			return CompareKeys(a.key, b.key) < 0
		}),
	}
}

func (ic *IndexChanges) Name() string {
	return ic.name
}

func (ic *IndexChanges) Cleared() bool {
	return ic.cleared
}

// Get returns the list for key or nil.
func (ic *IndexChanges) Get(key any) *KeyChanges {
	if isNullKey(key) {
		return ic.nullKey
	}
	found, _ := ic.keys.Get(&KeyChanges{key: key})
	return found
}

func (ic *IndexChanges) getOrCreate(key any) *KeyChanges {
	if isNullKey(key) {
		if ic.nullKey == nil {
			ic.nullKey = &KeyChanges{}
		}
		return ic.nullKey
	}
	if found, ok := ic.keys.Get(&KeyChanges{key: key}); ok {
		return found
	}
	c := &KeyChanges{key: key}
	ic.keys.ReplaceOrInsert(c)
	return c
}

// Ascend visits the null key first and then every key in order.
func (ic *IndexChanges) Ascend(f func(c *KeyChanges) bool) {
	if ic.nullKey != nil {
		if !f(ic.nullKey) {
			return
		}
	}
	ic.keys.Ascend(func(c *KeyChanges) bool {
		return f(c)
	})
}

// Len counts keys with changes, null included.
func (ic *IndexChanges) Len() int {
	n := ic.keys.Len()
	if ic.nullKey != nil {
		n++
	}
	return n
}
