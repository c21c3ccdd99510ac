package record

import (
	"sort"
)

type absent struct{}

// Record is the in-memory form of a stored document. Every mutation bumps
// the dirty counter, which is what transactions use to decide whether hooks
// and index checks must run again.
type Record struct {
	RID       *RID
	Container string
	Version   int64

	properties map[string]any
	originals  map[string]any
	dirty      int64
}

func New(container string) *Record {
	return &Record{
		RID:        EmptyRID(),
		Container:  container,
		properties: map[string]any{},
	}
}

// Load builds a record that mirrors stored state, so it starts clean.
func Load(rid RID, container string, version int64, properties map[string]any) *Record {
	r := &Record{
		RID:        rid.Copy(),
		Container:  container,
		Version:    version,
		properties: map[string]any{},
	}
	for k, v := range properties {
		r.properties[k] = v
	}
	return r
}

func (r *Record) Get(name string) any {
	return r.properties[name]
}

func (r *Record) Has(name string) bool {
	_, ok := r.properties[name]
	return ok
}

func (r *Record) Set(name string, value any) {
	r.keepOriginal(name)
	if list, ok := value.(*List); ok {
		list.owner = r
	}
	r.properties[name] = value
	r.dirty++
}

func (r *Record) Unset(name string) {
	if _, ok := r.properties[name]; !ok {
		return
	}
	r.keepOriginal(name)
	delete(r.properties, name)
	r.dirty++
}

func (r *Record) keepOriginal(name string) {
	if r.originals == nil {
		r.originals = map[string]any{}
	}
	if _, kept := r.originals[name]; kept {
		return
	}
	if v, ok := r.properties[name]; ok {
		r.originals[name] = snapshotValue(v)
		return
	}
	r.originals[name] = absent{}
}

// Names returns property names sorted.
func (r *Record) Names() []string {
	names := make([]string, 0, len(r.properties))
	for k := range r.properties {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Properties returns a shallow copy of the property map.
func (r *Record) Properties() map[string]any {
	result := make(map[string]any, len(r.properties))
	for k, v := range r.properties {
		result[k] = v
	}
	return result
}

func (r *Record) Dirty() int64 {
	return r.dirty
}

// IndexedValue returns the value a property had when indexes were last
// synchronized with this record.
func (r *Record) IndexedValue(name string) (any, bool) {
	if v, kept := r.originals[name]; kept {
		if _, gone := v.(absent); gone {
			return nil, false
		}
		return v, true
	}
	v, ok := r.properties[name]
	return v, ok
}

// MarkIndexed forgets originals, current values become the indexed ones.
func (r *Record) MarkIndexed() {
	r.originals = nil
}

// TrackMultiValues turns plain slices into tracked lists owned by the
// record. It does not count as a modification.
func (r *Record) TrackMultiValues() {
	for k, v := range r.properties {
		switch items := v.(type) {
		case []any:
			r.properties[k] = &List{owner: r, items: items}
		case *List:
			items.owner = r
		}
	}
}

func snapshotValue(v any) any {
	if list, ok := v.(*List); ok {
		return list.Items()
	}
	return v
}
