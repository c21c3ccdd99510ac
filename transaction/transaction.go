// Package transaction buffers the writes of one session and hands them to
// storage as a single batch on commit.
//
// Begin, Commit and Rollback are reentrant: only the outermost Begin starts
// a transaction and only the matching outermost Commit runs the commit
// protocol. A Transaction is owned by a single goroutine.
package transaction

import (
	"context"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/fulldump/inceptiontx/indexlog"
	"github.com/fulldump/inceptiontx/record"
	"github.com/fulldump/inceptiontx/recordlog"
	"github.com/fulldump/inceptiontx/txerror"
)

const DefaultMaxHookPasses = 100

type Options struct {
	Storage      Storage
	Hooks        Hooks
	IndexManager IndexManager
	Validator    Validator
	Caches       []Cache
	Logger       *zap.SugaredLogger

	// MaxHookPasses bounds the hook fixed point loop, zero means
	// DefaultMaxHookPasses.
	MaxHookPasses int
}

type Transaction struct {
	id        string
	level     int
	passes    int
	lifecycle *fsm.FSM

	records *recordlog.Log
	indexes *indexlog.Log

	storage       Storage
	hooks         Hooks
	indexManager  IndexManager
	validator     Validator
	caches        []Cache
	listeners     []CommitListener
	maxHookPasses int
	logger        *zap.SugaredLogger
}

func New(options *Options) *Transaction {

	t := &Transaction{
		records:       recordlog.NewLog(),
		indexes:       indexlog.NewLog(),
		storage:       options.Storage,
		hooks:         options.Hooks,
		indexManager:  options.IndexManager,
		validator:     options.Validator,
		caches:        options.Caches,
		maxHookPasses: options.MaxHookPasses,
		logger:        options.Logger,
	}

	if t.hooks == nil {
		t.hooks = &HookFuncs{}
	}
	if t.maxHookPasses <= 0 {
		t.maxHookPasses = DefaultMaxHookPasses
	}
	if t.logger == nil {
		t.logger = zap.NewNop().Sugar()
	}
	t.lifecycle = newLifecycle(t)

	return t
}

// ID changes on every outermost Begin.
func (t *Transaction) ID() string {
	return t.id
}

// Level is the current nesting depth, zero when no transaction is active.
func (t *Transaction) Level() int {
	return t.level
}

// Passes returns how many hook passes the last commit needed.
func (t *Transaction) Passes() int {
	return t.passes
}

func (t *Transaction) Active() bool {
	return t.level > 0
}

// Begin opens a transaction or one more nesting level. A new transaction
// cannot begin while the previous one is still committing or rolling back.
func (t *Transaction) Begin(ctx context.Context) error {

	if t.level == 0 && !t.lifecycle.Can(eventBegin) {
		return txerror.Newf(txerror.InvalidState, "cannot begin a transaction in status '%s'", t.Status())
	}

	t.level++
	if t.level > 1 {
		return nil
	}

	t.id = uuid.NewString()
	t.passes = 0
	t.records.Reset()
	t.indexes.Reset()
	t.invalidateCaches()

	if err := t.transition(ctx, eventBegin); err != nil {
		t.level = 0
		return err
	}

	t.logger.Debugw("transaction begun", "tx", t.id)
	return nil
}

// Commit leaves one nesting level, or all of them when force is set, and
// runs the commit protocol once the outermost level is left.
func (t *Transaction) Commit(ctx context.Context, force bool) error {

	if t.level == 0 {
		return txerror.Newf(txerror.InvalidState, "no active transaction to commit")
	}

	if force {
		t.level = 0
	} else {
		t.level--
	}
	if t.level > 0 {
		return nil
	}

	if t.Status() == StatusRollbacking {
		t.finishRollback(ctx)
		return txerror.Newf(txerror.InvalidState, "transaction %s was rolled back by a nested scope", t.id)
	}

	return t.commit(ctx)
}

// Rollback leaves levelAdjustment nesting levels (at least one), or all of
// them when force is set. Leaving a nested level marks the transaction as
// rollback only, leaving the outermost one discards every buffered change.
// Calling it with no active transaction does nothing.
func (t *Transaction) Rollback(ctx context.Context, force bool, levelAdjustment int) {

	if t.level == 0 {
		return
	}

	if levelAdjustment < 1 {
		levelAdjustment = 1
	}
	if force || levelAdjustment > t.level {
		t.level = 0
	} else {
		t.level -= levelAdjustment
	}

	if t.Status() == StatusBegun || t.Status() == StatusCommitting {
		if err := t.transition(ctx, eventRollback); err != nil {
			t.logger.Errorw("rollback transition failed", "tx", t.id, "err", err)
		}
	}

	if t.level > 0 {
		t.logger.Debugw("transaction marked as rollback only", "tx", t.id, "level", t.level)
		return
	}

	t.finishRollback(ctx)
}

func (t *Transaction) finishRollback(ctx context.Context) {

	if t.storage != nil {
		if err := t.storage.Rollback(ctx, t.id); err != nil {
			t.logger.Warnw("storage rollback failed", "tx", t.id, "err", err)
		}
	}

	t.records.ForgetTemporary()
	t.records.Clear()
	t.indexes.Reset()
	t.invalidateCaches()

	if t.Status() != StatusRollbacking {
		// A failed transition left us elsewhere, rollback cannot fail.
		t.lifecycle.SetState(StatusRollbacking)
	}
	if err := t.transition(ctx, eventRolledBack); err != nil {
		t.lifecycle.SetState(StatusRolledBack)
	}

	rollbacksTotal.Inc()
	t.logger.Debugw("transaction rolled back", "tx", t.id)
}

// abort undoes the whole transaction after a failed mutating call and
// returns the cause.
func (t *Transaction) abort(ctx context.Context, cause error) error {
	t.logger.Warnw("forcing rollback", "tx", t.id, "err", cause)
	t.Rollback(ctx, true, 0)
	return cause
}

// Close discards any active transaction and forgets generated identities.
func (t *Transaction) Close(ctx context.Context) {
	t.Rollback(ctx, true, 0)
	t.records.Reset()
	t.indexes.Reset()
	t.listeners = nil
	t.lifecycle.SetState(StatusInvalid)
}

// OnCommit registers a listener called after every successful commit.
func (t *Transaction) OnCommit(listener CommitListener) {
	t.listeners = append(t.listeners, listener)
}

// RecordChanged registers a record operation. Records without identity get
// a temporary one in container.
func (t *Transaction) RecordChanged(ctx context.Context, rec *record.Record, kind recordlog.Kind, container int32) error {

	if err := t.writable(); err != nil {
		return err
	}

	merge, err := t.records.Register(rec, kind, container)
	if err != nil {
		return t.abort(ctx, err)
	}

	if merge.Removed || merge.Deleted {
		err = t.afterDelete(ctx, merge.Operation)
	} else {
		err = t.checkIndexes(ctx, merge.Operation)
	}
	if err != nil {
		return t.abort(ctx, err)
	}

	return nil
}

// RecordIndexChange registers a change on an index key. A Clear operation
// clears the whole index.
func (t *Transaction) RecordIndexChange(ctx context.Context, index string, key any, value *record.RID, op indexlog.Operation) error {

	if err := t.writable(); err != nil {
		return err
	}

	if err := t.indexes.Record(index, key, value, op); err != nil {
		return t.abort(ctx, err)
	}

	return nil
}

func (t *Transaction) ClearIndex(ctx context.Context, index string) error {
	return t.RecordIndexChange(ctx, index, nil, nil, indexlog.Clear)
}

// Lookup returns the pending operation for rid, following generated
// identities.
func (t *Transaction) Lookup(rid record.RID) *recordlog.Operation {
	return t.records.Lookup(rid)
}

func (t *Transaction) Remove(ctx context.Context, rid record.RID) error {

	if err := t.writable(); err != nil {
		return err
	}

	if err := t.records.Remove(rid); err != nil {
		return t.abort(ctx, err)
	}

	return nil
}

// OriginalRID returns the temporary identity a record had before commit.
func (t *Transaction) OriginalRID(rid record.RID) (record.RID, bool) {
	return t.records.OriginalOf(rid)
}

// Operations lists pending record operations in registration order.
func (t *Transaction) Operations() []*recordlog.Operation {
	return t.records.Operations()
}

// Indexes gives read access to the pending index changes.
func (t *Transaction) Indexes() *indexlog.Log {
	return t.indexes
}

func (t *Transaction) invalidateCaches() {
	for _, c := range t.caches {
		c.Invalidate()
	}
}

func (t *Transaction) checkIndexes(ctx context.Context, op *recordlog.Operation) error {

	if t.indexManager == nil || !op.NeedsIndexCheck() {
		return nil
	}

	var err error
	switch {
	case op.Kind == recordlog.Deleted:
		if op.IndexChecked() {
			return nil
		}
		return t.afterDelete(ctx, op)
	case op.Kind == recordlog.Created && !op.IndexChecked():
		err = t.indexManager.AfterCreate(ctx, op.Record, t.indexes)
	default:
		err = t.indexManager.AfterUpdate(ctx, op.Record, t.indexes)
	}
	op.MarkIndexChecked()

	return err
}

func (t *Transaction) afterDelete(ctx context.Context, op *recordlog.Operation) error {
	if t.indexManager == nil {
		return nil
	}
	err := t.indexManager.AfterDelete(ctx, op.Record, t.indexes)
	op.MarkIndexChecked()
	return err
}
