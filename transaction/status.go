package transaction

import (
	"context"
	"errors"

	"github.com/looplab/fsm"

	"github.com/fulldump/inceptiontx/txerror"
)

const (
	StatusInvalid     = "invalid"
	StatusBegun       = "begun"
	StatusCommitting  = "committing"
	StatusCompleted   = "completed"
	StatusRollbacking = "rollbacking"
	StatusRolledBack  = "rolled_back"
)

const (
	eventBegin      = "begin"
	eventCommit     = "commit"
	eventComplete   = "complete"
	eventRollback   = "rollback"
	eventRolledBack = "rolled_back"
)

func newLifecycle(t *Transaction) *fsm.FSM {
	return fsm.NewFSM(
		StatusInvalid,
		fsm.Events{
			{Name: eventBegin, Src: []string{StatusInvalid, StatusCompleted, StatusRolledBack}, Dst: StatusBegun},
			{Name: eventCommit, Src: []string{StatusBegun}, Dst: StatusCommitting},
			{Name: eventComplete, Src: []string{StatusCommitting}, Dst: StatusCompleted},
			{Name: eventRollback, Src: []string{StatusBegun, StatusCommitting}, Dst: StatusRollbacking},
			{Name: eventRolledBack, Src: []string{StatusRollbacking}, Dst: StatusRolledBack},
		},
		fsm.Callbacks{
			"enter_state": func(ctx context.Context, e *fsm.Event) {
				t.logger.Debugw("transaction status changed",
					"tx", t.id,
					"from", e.Src,
					"to", e.Dst,
					"level", t.level,
				)
			},
		},
	)
}

func (t *Transaction) Status() string {
	return t.lifecycle.Current()
}

// transition fires a lifecycle event. The context is detached so a
// cancelled request never leaves the machine stuck in a transition.
func (t *Transaction) transition(ctx context.Context, event string) error {
	err := t.lifecycle.Event(context.WithoutCancel(ctx), event)
	if err == nil {
		return nil
	}
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return nil
	}
	return txerror.Newf(txerror.InvalidState, "cannot %s transaction in status '%s': %v", event, t.Status(), err)
}

// writable fails unless mutating calls are allowed.
func (t *Transaction) writable() error {
	if status := t.Status(); status != StatusBegun {
		return txerror.Newf(txerror.InvalidState, "transaction is %s", status)
	}
	return nil
}
