package transaction

import (
	"context"

	"github.com/fulldump/inceptiontx/indexlog"
	"github.com/fulldump/inceptiontx/interpret"
	"github.com/fulldump/inceptiontx/record"
	"github.com/fulldump/inceptiontx/recordlog"
)

// Storage persists committed batches. Apply must be atomic: either every
// change in the batch is applied or none is.
type Storage interface {
	// Stage prepares one record for the coming Apply, it is called once per
	// hook pass so the latest state of the record is what gets applied.
	Stage(ctx context.Context, txID string, op *recordlog.Operation) error
	Apply(ctx context.Context, batch *Batch) ([]Assignment, error)
	// Rollback drops whatever was staged for txID. It must not fail in a
	// way the transaction can act on, errors are only logged.
	Rollback(ctx context.Context, txID string) error
}

// Assignment tells that a temporary identity became a permanent one.
type Assignment struct {
	Old record.RID
	New record.RID
}

type Hooks interface {
	Before(ctx context.Context, kind recordlog.Kind, rec *record.Record) error
	After(ctx context.Context, kind recordlog.Kind, rec *record.Record) error
	Failed(ctx context.Context, kind recordlog.Kind, rec *record.Record, err error)
}

// IndexRecorder receives the index changes computed by an IndexManager.
type IndexRecorder interface {
	Record(index string, key any, value *record.RID, op indexlog.Operation) error
}

// IndexManager translates record changes into index changes.
type IndexManager interface {
	AfterCreate(ctx context.Context, rec *record.Record, recorder IndexRecorder) error
	AfterUpdate(ctx context.Context, rec *record.Record, recorder IndexRecorder) error
	AfterDelete(ctx context.Context, rec *record.Record, recorder IndexRecorder) error
	Semantics(index string) (interpret.Semantics, bool)
}

type Validator interface {
	Validate(ctx context.Context, rec *record.Record) error
}

// Cache is anything holding records that must be forgotten when a
// transaction starts or rolls back.
type Cache interface {
	Invalidate()
}

// CommitListener is called after a successful commit with identities
// already remapped.
type CommitListener func(ctx context.Context, batch *Batch)

// HookFuncs implements Hooks with optional functions.
type HookFuncs struct {
	BeforeCreate func(ctx context.Context, rec *record.Record) error
	AfterCreate  func(ctx context.Context, rec *record.Record) error
	BeforeUpdate func(ctx context.Context, rec *record.Record) error
	AfterUpdate  func(ctx context.Context, rec *record.Record) error
	BeforeDelete func(ctx context.Context, rec *record.Record) error
	AfterDelete  func(ctx context.Context, rec *record.Record) error
	OnFailure    func(ctx context.Context, kind recordlog.Kind, rec *record.Record, err error)
}

func (h *HookFuncs) Before(ctx context.Context, kind recordlog.Kind, rec *record.Record) error {
	switch kind {
	case recordlog.Created:
		return call(ctx, h.BeforeCreate, rec)
	case recordlog.Updated:
		return call(ctx, h.BeforeUpdate, rec)
	case recordlog.Deleted:
		return call(ctx, h.BeforeDelete, rec)
	}
	return nil
}

func (h *HookFuncs) After(ctx context.Context, kind recordlog.Kind, rec *record.Record) error {
	switch kind {
	case recordlog.Created:
		return call(ctx, h.AfterCreate, rec)
	case recordlog.Updated:
		return call(ctx, h.AfterUpdate, rec)
	case recordlog.Deleted:
		return call(ctx, h.AfterDelete, rec)
	}
	return nil
}

func (h *HookFuncs) Failed(ctx context.Context, kind recordlog.Kind, rec *record.Record, err error) {
	if h.OnFailure != nil {
		h.OnFailure(ctx, kind, rec, err)
	}
}

func call(ctx context.Context, f func(ctx context.Context, rec *record.Record) error, rec *record.Record) error {
	if f == nil {
		return nil
	}
	return f(ctx, rec)
}
