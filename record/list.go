package record

// List is a multi-valued property. Changes through it are reported to the
// owning record.
type List struct {
	owner *Record
	items []any
}

func NewList(items ...any) *List {
	return &List{items: items}
}

func (l *List) Len() int {
	return len(l.items)
}

func (l *List) At(i int) any {
	return l.items[i]
}

// Items returns a copy.
func (l *List) Items() []any {
	result := make([]any, len(l.items))
	copy(result, l.items)
	return result
}

func (l *List) Add(items ...any) {
	l.touch()
	l.items = append(l.items, items...)
}

func (l *List) RemoveAt(i int) {
	l.touch()
	l.items = append(l.items[:i], l.items[i+1:]...)
}

func (l *List) touch() {
	if l.owner == nil {
		return
	}
	l.owner.dirty++
	for name, v := range l.owner.properties {
		if v == l {
			l.owner.keepOriginal(name)
		}
	}
}
