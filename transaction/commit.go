package transaction

import (
	"context"
	"fmt"
	"time"

	"github.com/fulldump/inceptiontx/recordlog"
	"github.com/fulldump/inceptiontx/txerror"
)

func (t *Transaction) commit(ctx context.Context) error {

	start := time.Now()
	defer func() {
		commitDuration.Observe(time.Since(start).Seconds())
	}()

	if err := t.transition(ctx, eventCommit); err != nil {
		return err
	}

	hooked := map[*recordlog.Operation]recordlog.Kind{}

	batch, err := t.runCommit(ctx, hooked)
	if err != nil {
		for _, op := range t.records.Operations() {
			if kind, ok := hooked[op]; ok {
				t.hooks.Failed(ctx, kind, op.Record, err)
			}
		}
		commitsTotal.WithLabelValues("failed").Inc()
		t.logger.Warnw("commit failed, rolling back", "tx", t.id, "passes", t.passes, "err", err)
		if transitionErr := t.transition(ctx, eventRollback); transitionErr != nil {
			t.logger.Errorw("rollback transition failed", "tx", t.id, "err", transitionErr)
		}
		t.finishRollback(ctx)
		return fmt.Errorf("commit transaction %s: %w", t.id, err)
	}

	for _, listener := range t.listeners {
		listener(ctx, batch)
	}

	t.records.Clear()
	t.indexes.Reset()

	if err := t.transition(ctx, eventComplete); err != nil {
		return err
	}

	commitsTotal.WithLabelValues("completed").Inc()
	t.logger.Debugw("transaction committed",
		"tx", t.id,
		"operations", len(batch.Operations),
		"indexes", len(batch.Indexes),
		"passes", t.passes,
	)

	return nil
}

func (t *Transaction) runCommit(ctx context.Context, hooked map[*recordlog.Operation]recordlog.Kind) (*Batch, error) {

	operations := t.records.Operations()

	for _, op := range operations {
		if op.Kind == recordlog.Deleted {
			continue
		}
		if t.validator != nil {
			if err := t.validator.Validate(ctx, op.Record); err != nil {
				if txerror.CodeOf(err) == txerror.Unknown {
					err = txerror.New(txerror.ValidationFailed, err).WithUserData(op.Record.RID.String())
				}
				return nil, err
			}
		}
		op.Record.TrackMultiValues()
	}

	if err := t.runHooks(ctx, operations, hooked); err != nil {
		return nil, err
	}

	// Before-hooks of the last pass may have changed indexed properties.
	for _, op := range t.records.Operations() {
		if err := t.checkIndexes(ctx, op); err != nil {
			return nil, err
		}
	}

	batch, err := t.buildBatch()
	if err != nil {
		return nil, err
	}

	if t.storage == nil {
		return batch, nil
	}

	assignments, err := t.storage.Apply(ctx, batch)
	if err != nil {
		return nil, err
	}

	for _, a := range assignments {
		if err := t.Remap(a.Old, a.New); err != nil {
			return nil, err
		}
	}
	batch.refreshKeys()

	return batch, nil
}

// runHooks runs before and after hooks until no after-hook changes its
// record anymore. Every pass after the first one treats records as
// updated.
func (t *Transaction) runHooks(ctx context.Context, pending []*recordlog.Operation, hooked map[*recordlog.Operation]recordlog.Kind) error {

	t.passes = 0

	for len(pending) > 0 {

		t.passes++
		if t.passes > t.maxHookPasses {
			return txerror.Newf(txerror.IllegalOperation, "hooks did not settle after %d passes", t.maxHookPasses)
		}

		var next []*recordlog.Operation
		for _, op := range pending {

			kind := op.Kind
			if t.passes > 1 {
				kind = recordlog.Updated
			}

			if err := t.checkIndexes(ctx, op); err != nil {
				return err
			}

			if err := t.hooks.Before(ctx, kind, op.Record); err != nil {
				return err
			}
			hooked[op] = kind

			if t.storage != nil {
				if err := t.storage.Stage(ctx, t.id, op); err != nil {
					return err
				}
			}

			pre := op.Record.Dirty()
			if err := t.hooks.After(ctx, kind, op.Record); err != nil {
				return err
			}
			op.MarkHooked(pre)

			if op.Kind == recordlog.Deleted || !op.NeedsHooks() {
				continue
			}

			merge, err := t.records.Register(op.Record, recordlog.Updated, op.Record.RID.Container)
			if err != nil {
				return err
			}
			next = append(next, merge.Operation)
		}

		pending = next
	}

	hookPasses.Observe(float64(t.passes))
	return nil
}
