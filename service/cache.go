package service

import (
	"github.com/fulldump/inceptiontx/record"
)

// recordCache is the level one cache of a session. The transaction empties
// it whenever a transaction begins or rolls back.
type recordCache struct {
	records map[record.RID]*record.Record
}

func newRecordCache() *recordCache {
	return &recordCache{
		records: map[record.RID]*record.Record{},
	}
}

func (c *recordCache) get(rid record.RID) (*record.Record, bool) {
	rec, found := c.records[rid]
	return rec, found
}

func (c *recordCache) put(rec *record.Record) {
	if rec.RID == nil || !rec.RID.IsPersistent() {
		return
	}
	c.records[*rec.RID] = rec
}

func (c *recordCache) drop(rid record.RID) {
	delete(c.records, rid)
}

func (c *recordCache) Len() int {
	return len(c.records)
}

func (c *recordCache) Invalidate() {
	clear(c.records)
}
