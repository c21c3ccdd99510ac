package apiv1

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fulldump/inceptiontx/record"
	"github.com/fulldump/inceptiontx/service"
	"github.com/fulldump/inceptiontx/txerror"
)

const (
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
)

// operation is one change of a transaction request. Ref names a created
// record so later operations can link to it or change it.
type operation struct {
	Op        string         `json:"op"`
	Container string         `json:"container"`
	Ref       string         `json:"ref"`
	RID       string         `json:"rid"`
	Set       map[string]any `json:"set"`
	Unset     []string       `json:"unset"`
}

type transactionRequest struct {
	Operations []operation `json:"operations"`
}

type transactionResponse struct {
	ID      string            `json:"id"`
	Passes  int               `json:"passes"`
	Refs    map[string]string `json:"refs"`
	Records []map[string]any  `json:"records"`
}

// commitTransaction runs every operation in a single transaction.
func commitTransaction(ctx context.Context, w http.ResponseWriter, input *transactionRequest) (*transactionResponse, error) {

	s := GetServicer(ctx)

	session := s.NewSession(nil)
	defer session.Close(ctx)

	if err := session.Begin(ctx); err != nil {
		return nil, err
	}
	id := session.Transaction().ID()

	refs := map[string]*record.Record{}
	touched := []*record.Record{}
	deleted := map[*record.Record]bool{}

	for i, op := range input.Operations {
		rec, err := apply(ctx, session, op, refs)
		if err != nil {
			session.Rollback(ctx)
			return nil, fmt.Errorf("operation %d (%s): %w", i, op.Op, err)
		}
		if op.Op == opDelete {
			deleted[rec] = true
		}
		touched = append(touched, rec)
	}

	if err := session.Commit(ctx); err != nil {
		return nil, err
	}

	response := &transactionResponse{
		ID:      id,
		Passes:  session.Transaction().Passes(),
		Refs:    map[string]string{},
		Records: []map[string]any{},
	}
	for name, rec := range refs {
		response.Refs[name] = rec.RID.String()
	}
	for _, rec := range touched {
		if deleted[rec] {
			continue
		}
		response.Records = append(response.Records, render(rec))
	}

	w.WriteHeader(http.StatusCreated)
	return response, nil
}

func apply(ctx context.Context, session *service.Session, op operation, refs map[string]*record.Record) (*record.Record, error) {

	var rec *record.Record

	switch op.Op {
	case opCreate:
		if op.Container == "" {
			return nil, txerror.Newf(txerror.IllegalOperation, "container is required")
		}
		if _, exists := refs[op.Ref]; exists && op.Ref != "" {
			return nil, txerror.Newf(txerror.IllegalOperation, "reference '%s' already used", op.Ref)
		}
		rec = record.New(op.Container)
	case opUpdate, opDelete:
		var err error
		rec, err = target(ctx, session, op, refs)
		if err != nil {
			return nil, err
		}
	default:
		return nil, txerror.Newf(txerror.IllegalOperation, "unknown operation '%s'", op.Op)
	}

	if op.Op == opDelete {
		return rec, session.Delete(ctx, rec)
	}

	for name, value := range op.Set {
		parsed, err := parseValue(value, refs)
		if err != nil {
			return nil, err
		}
		rec.Set(name, parsed)
	}
	for _, name := range op.Unset {
		rec.Unset(name)
	}

	if err := session.Save(ctx, rec); err != nil {
		return nil, err
	}

	if op.Op == opCreate && op.Ref != "" {
		refs[op.Ref] = rec
	}

	return rec, nil
}

// target finds the record an update or delete operates on.
func target(ctx context.Context, session *service.Session, op operation, refs map[string]*record.Record) (*record.Record, error) {

	if op.RID == "" {
		rec, found := refs[op.Ref]
		if !found {
			return nil, txerror.Newf(txerror.IllegalOperation, "operation needs a rid or a known ref")
		}
		return rec, nil
	}

	rid, err := record.Parse(op.RID)
	if err != nil {
		return nil, txerror.New(txerror.IllegalOperation, err)
	}

	return session.Load(ctx, rid)
}
