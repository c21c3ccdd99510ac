package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fulldump/inceptiontx/record"
	"github.com/fulldump/inceptiontx/recordlog"
	"github.com/fulldump/inceptiontx/storage"
	"github.com/fulldump/inceptiontx/transaction"
)

// Session is the client handle of the database. It owns one reusable
// transaction and a cache of the records it has read. A Session is not
// safe for concurrent use.
type Session struct {
	service *Service
	tx      *transaction.Transaction
	cache   *recordCache
}

func (s *Session) Transaction() *transaction.Transaction {
	return s.tx
}

func (s *Session) Begin(ctx context.Context) error {
	return s.tx.Begin(ctx)
}

func (s *Session) Commit(ctx context.Context) error {
	return s.tx.Commit(ctx, false)
}

func (s *Session) Rollback(ctx context.Context) {
	s.tx.Rollback(ctx, false, 1)
}

func (s *Session) Close(ctx context.Context) {
	s.tx.Close(ctx)
	s.cache.Invalidate()
}

// Save registers rec as created when it has no identity yet and as updated
// otherwise. Outside of a transaction the change is committed right away.
func (s *Session) Save(ctx context.Context, rec *record.Record) error {

	container, found := s.service.db.Storage.ContainerID(rec.Container)
	if !found {
		return fmt.Errorf("save into '%s': %w", rec.Container, ErrorContainerNotFound)
	}

	kind := recordlog.Updated
	if rec.RID == nil || !rec.RID.IsValid() {
		kind = recordlog.Created
	}

	return s.atomically(ctx, func() error {
		return s.tx.RecordChanged(ctx, rec, kind, container)
	})
}

func (s *Session) Delete(ctx context.Context, rec *record.Record) error {

	container, found := s.service.db.Storage.ContainerID(rec.Container)
	if !found {
		return fmt.Errorf("delete from '%s': %w", rec.Container, ErrorContainerNotFound)
	}

	return s.atomically(ctx, func() error {
		return s.tx.RecordChanged(ctx, rec, recordlog.Deleted, container)
	})
}

// atomically runs f inside a transaction level of its own.
func (s *Session) atomically(ctx context.Context, f func() error) error {
	if err := s.tx.Begin(ctx); err != nil {
		return err
	}
	if err := f(); err != nil {
		s.tx.Rollback(ctx, false, 1)
		return err
	}
	return s.tx.Commit(ctx, false)
}

// Load returns the record as this session sees it: pending changes first,
// then cached records, then storage.
func (s *Session) Load(ctx context.Context, rid record.RID) (*record.Record, error) {

	if s.tx.Active() {
		if op := s.tx.Lookup(rid); op != nil {
			if op.Kind == recordlog.Deleted {
				return nil, fmt.Errorf("%s: %w", rid, ErrorRecordNotFound)
			}
			return op.Record, nil
		}
	}

	if rec, found := s.cache.get(rid); found {
		return rec, nil
	}

	rec, err := s.service.db.Storage.Load(ctx, rid)
	if errors.Is(err, storage.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s: %w", rid, ErrorRecordNotFound)
	}
	if err != nil {
		return nil, err
	}

	s.cache.put(rec)
	return rec, nil
}

// Lookup loads the committed records stored under key in an index.
func (s *Session) Lookup(ctx context.Context, index string, key any) ([]*record.Record, error) {
	rids, err := s.service.db.Storage.Lookup(index, key)
	if err != nil {
		return nil, err
	}
	result := make([]*record.Record, 0, len(rids))
	for _, rid := range rids {
		rec, err := s.Load(ctx, rid)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, nil
}

// committed keeps the records of a successful commit cached under their
// permanent identities.
func (s *Session) committed(ctx context.Context, batch *transaction.Batch) {
	for _, op := range batch.Operations {
		if op.Kind == recordlog.Deleted {
			s.cache.drop(*op.Record.RID)
			continue
		}
		s.cache.put(op.Record)
	}
}
