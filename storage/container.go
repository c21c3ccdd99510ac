package storage

import (
	"github.com/google/btree"
)

// Row is the stored state of a record. Rows are immutable once inserted in
// a container, changes insert a new Row.
type Row struct {
	Position   int64
	Version    int64
	Properties map[string]any
}

func (r *Row) Less(than *Row) bool {
	return r.Position < than.Position
}

// Container holds the rows of one record container ordered by position.
type Container struct {
	ID   int32
	Name string

	next int64
	rows *btree.BTreeG[*Row]
}

func newContainer(id int32, name string) *Container {
	return &Container{
		ID:   id,
		Name: name,
		rows: btree.NewG(32, func(a, b *Row) bool { return a.Less(b) }),
	}
}

func (c *Container) Get(position int64) (*Row, bool) {
	return c.rows.Get(&Row{Position: position})
}

func (c *Container) Len() int {
	return c.rows.Len()
}

func (c *Container) Traverse(f func(row *Row) bool) {
	c.rows.Ascend(f)
}

func (c *Container) put(row *Row) {
	c.rows.ReplaceOrInsert(row)
	if row.Position >= c.next {
		c.next = row.Position + 1
	}
}

func (c *Container) delete(position int64) {
	c.rows.Delete(&Row{Position: position})
}

// clone is a lazy copy-on-write copy, writes to either side do not show
// in the other one.
func (c *Container) clone() *Container {
	return &Container{
		ID:   c.ID,
		Name: c.Name,
		next: c.next,
		rows: c.rows.Clone(),
	}
}
