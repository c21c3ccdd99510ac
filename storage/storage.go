// Package storage keeps containers, rows and indexes in memory and applies
// committed transaction batches atomically. An optional journal makes the
// state durable: every change is appended to it and replayed on open.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tiendc/go-deepcopy"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fulldump/inceptiontx/record"
	"github.com/fulldump/inceptiontx/recordlog"
	"github.com/fulldump/inceptiontx/schema"
	"github.com/fulldump/inceptiontx/transaction"
	"github.com/fulldump/inceptiontx/txerror"
)

var ErrRecordNotFound = errors.New("record not found")

type Options struct {
	// Journal is optional, without it nothing survives a restart.
	Journal *Journal
	Logger  *zap.SugaredLogger
}

type Storage struct {
	mu         sync.RWMutex
	containers map[int32]*Container
	byName     map[string]int32
	indexes    map[string]*Index
	rules      map[string]*schema.Rule

	pendingMu sync.Mutex
	pending   map[string]map[record.RID]*staged

	journal *Journal
	logger  *zap.SugaredLogger
}

// staged is the state of a record captured by the last hook pass.
type staged struct {
	kind       recordlog.Kind
	version    int64
	properties map[string]any
}

func New(opts *Options) *Storage {
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Storage{
		containers: map[int32]*Container{},
		byName:     map[string]int32{},
		indexes:    map[string]*Index{},
		rules:      map[string]*schema.Rule{},
		pending:    map[string]map[record.RID]*staged{},
		journal:    opts.Journal,
		logger:     logger,
	}
}

// Open builds a storage and replays its journal, if any.
func Open(opts *Options) (*Storage, error) {

	s := New(opts)
	if s.journal == nil {
		return s, nil
	}

	commands := 0
	err := s.journal.Replay(func(cmd *Command) error {
		commands++
		return s.replay(cmd)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("journal replayed",
		"file", s.journal.Filename,
		"codec", s.journal.Codec().Name(),
		"commands", commands,
		"containers", len(s.containers),
		"indexes", len(s.indexes),
	)

	return s, nil
}

func (s *Storage) replay(cmd *Command) error {
	switch cmd.Name {
	case CommandCreateContainer:
		if cmd.Container == nil {
			return fmt.Errorf("missing container payload")
		}
		s.containers[cmd.Container.ID] = newContainer(cmd.Container.ID, cmd.Container.Name)
		s.byName[cmd.Container.Name] = cmd.Container.ID
	case CommandCreateIndex:
		index, err := s.buildIndex(cmd.Index)
		if err != nil {
			return err
		}
		s.indexes[index.Name()] = index
	case CommandDropIndex:
		delete(s.indexes, cmd.Index.Name)
	case CommandSetRule:
		s.rules[ruleKey(cmd.Rule.Container, cmd.Rule.Name)] = cmd.Rule
	case CommandDeleteRule:
		delete(s.rules, ruleKey(cmd.Rule.Container, cmd.Rule.Name))
	case CommandCommit:
		if cmd.Commit == nil {
			return fmt.Errorf("missing commit payload")
		}
		plan, err := s.plan(context.Background(), cmd.Commit)
		if err != nil {
			return err
		}
		s.swap(plan)
	default:
		return fmt.Errorf("unknown command '%s'", cmd.Name)
	}
	return nil
}

func (s *Storage) append(ctx context.Context, cmd *Command) error {
	if s.journal == nil {
		return nil
	}
	return s.journal.Append(ctx, cmd)
}

func (s *Storage) Close() error {
	if s.journal == nil {
		return nil
	}
	return s.journal.Close()
}

func (s *Storage) CreateContainer(ctx context.Context, name string) (int32, error) {

	if name == "" {
		return 0, txerror.Newf(txerror.IllegalOperation, "container name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[name]; exists {
		return 0, txerror.Newf(txerror.IllegalOperation, "container '%s' already exists", name)
	}

	id := int32(len(s.containers) + 1)

	cmd := newCommand(CommandCreateContainer)
	cmd.Container = &containerPayload{ID: id, Name: name}
	if err := s.append(ctx, cmd); err != nil {
		return 0, err
	}

	s.containers[id] = newContainer(id, name)
	s.byName[name] = id

	return id, nil
}

func (s *Storage) ContainerID(name string) (int32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, found := s.byName[name]
	return id, found
}

// Containers returns the container names sorted.
func (s *Storage) Containers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of rows of a container.
func (s *Storage) Count(name string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, found := s.byName[name]
	if !found {
		return 0, false
	}
	return s.containers[id].Len(), true
}

// CreateIndex builds the index over the rows already stored.
func (s *Storage) CreateIndex(ctx context.Context, def *schema.IndexDefinition) error {

	if err := def.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.indexes[def.Name]; exists {
		return txerror.Newf(txerror.IllegalOperation, "index '%s' already exists", def.Name)
	}

	index, err := s.buildIndex(def)
	if err != nil {
		return err
	}

	cmd := newCommand(CommandCreateIndex)
	cmd.Index = def
	if err := s.append(ctx, cmd); err != nil {
		return err
	}

	s.indexes[def.Name] = index
	return nil
}

func (s *Storage) buildIndex(def *schema.IndexDefinition) (*Index, error) {

	if def == nil {
		return nil, fmt.Errorf("missing index payload")
	}

	id, found := s.byName[def.Container]
	if !found {
		return nil, txerror.Newf(txerror.IllegalOperation, "container '%s' does not exist", def.Container)
	}

	index := newIndex(def)

	var err error
	s.containers[id].Traverse(func(row *Row) bool {
		var properties map[string]any
		properties, err = decodeProperties(row.Properties)
		if err != nil {
			return false
		}
		var keys []any
		keys, err = def.Keys(func(name string) (any, bool) {
			v, ok := properties[name]
			return v, ok
		})
		if err != nil {
			return false
		}
		rid := record.RID{Container: id, Position: row.Position}
		for _, key := range keys {
			if err = index.put(key, rid); err != nil {
				return false
			}
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	return index, nil
}

func (s *Storage) DropIndex(ctx context.Context, name string) error {

	s.mu.Lock()
	defer s.mu.Unlock()

	index, exists := s.indexes[name]
	if !exists {
		return txerror.Newf(txerror.IllegalOperation, "index '%s' does not exist", name)
	}

	cmd := newCommand(CommandDropIndex)
	cmd.Index = index.Definition
	if err := s.append(ctx, cmd); err != nil {
		return err
	}

	delete(s.indexes, name)
	return nil
}

func (s *Storage) IndexDefinitions() []*schema.IndexDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*schema.IndexDefinition, 0, len(s.indexes))
	for _, index := range s.indexes {
		result = append(result, index.Definition)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

func (s *Storage) SetRule(ctx context.Context, rule *schema.Rule) error {

	if err := rule.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, found := s.byName[rule.Container]; !found {
		return txerror.Newf(txerror.IllegalOperation, "container '%s' does not exist", rule.Container)
	}

	cmd := newCommand(CommandSetRule)
	cmd.Rule = rule
	if err := s.append(ctx, cmd); err != nil {
		return err
	}

	s.rules[ruleKey(rule.Container, rule.Name)] = rule
	return nil
}

func (s *Storage) DeleteRule(ctx context.Context, container, name string) error {

	s.mu.Lock()
	defer s.mu.Unlock()

	rule, found := s.rules[ruleKey(container, name)]
	if !found {
		return txerror.Newf(txerror.IllegalOperation, "rule '%s' does not exist in '%s'", name, container)
	}

	cmd := newCommand(CommandDeleteRule)
	cmd.Rule = rule
	if err := s.append(ctx, cmd); err != nil {
		return err
	}

	delete(s.rules, ruleKey(container, name))
	return nil
}

func (s *Storage) Rules() []*schema.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*schema.Rule, 0, len(s.rules))
	for _, rule := range s.rules {
		result = append(result, rule)
	}
	sort.Slice(result, func(i, j int) bool {
		return ruleKey(result[i].Container, result[i].Name) < ruleKey(result[j].Container, result[j].Name)
	})
	return result
}

func ruleKey(container, name string) string {
	return container + "/" + name
}

// Load reads a committed record. The returned record is detached from the
// stored row.
func (s *Storage) Load(ctx context.Context, rid record.RID) (*record.Record, error) {

	s.mu.RLock()
	container, found := s.containers[rid.Container]
	var row *Row
	if found {
		row, found = container.Get(rid.Position)
	}
	s.mu.RUnlock()

	if !found {
		return nil, fmt.Errorf("load %s: %w", rid, ErrRecordNotFound)
	}

	properties, err := decodeProperties(row.Properties)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", rid, err)
	}

	return record.Load(rid, container.Name, row.Version, properties), nil
}

// Lookup returns the identities stored under key in an index.
func (s *Storage) Lookup(index string, key any) ([]record.RID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, found := s.indexes[index]
	if !found {
		return nil, txerror.Newf(txerror.IllegalOperation, "index '%s' does not exist", index)
	}
	return i.Get(resolveKey(key, nil)), nil
}

// Scan visits the records of a container in position order.
func (s *Storage) Scan(ctx context.Context, name string, f func(rec *record.Record) bool) error {

	s.mu.RLock()
	id, found := s.byName[name]
	var container *Container
	if found {
		container = s.containers[id].clone()
	}
	s.mu.RUnlock()

	if !found {
		return txerror.Newf(txerror.IllegalOperation, "container '%s' does not exist", name)
	}

	var err error
	container.Traverse(func(row *Row) bool {
		if err = ctx.Err(); err != nil {
			return false
		}
		var properties map[string]any
		properties, err = decodeProperties(row.Properties)
		if err != nil {
			return false
		}
		rid := record.RID{Container: id, Position: row.Position}
		return f(record.Load(rid, name, row.Version, properties))
	})

	return err
}

func decodeProperties(stored map[string]any) (map[string]any, error) {
	var properties map[string]any
	if err := deepcopy.Copy(&properties, stored); err != nil {
		return nil, fmt.Errorf("copy properties: %w", err)
	}
	Decode(properties)
	return properties, nil
}

// Stage remembers the current state of the record behind op. A later stage
// for the same record replaces it.
func (s *Storage) Stage(ctx context.Context, txID string, op *recordlog.Operation) error {

	snapshot := &staged{
		kind:    op.Kind,
		version: op.Record.Version,
	}
	if op.Kind != recordlog.Deleted {
		snapshot.properties = Encode(op.Record.Properties()).(map[string]any)
	}

	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	records, found := s.pending[txID]
	if !found {
		records = map[record.RID]*staged{}
		s.pending[txID] = records
	}
	records[op.Key()] = snapshot

	return nil
}

func (s *Storage) Rollback(ctx context.Context, txID string) error {
	s.takePending(txID)
	return nil
}

func (s *Storage) takePending(txID string) map[record.RID]*staged {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	records := s.pending[txID]
	delete(s.pending, txID)
	return records
}

// Apply makes a batch permanent. Nothing changes unless every record and
// index change can be applied.
func (s *Storage) Apply(ctx context.Context, batch *transaction.Batch) ([]transaction.Assignment, error) {

	pending := s.takePending(batch.TxID)

	s.mu.Lock()
	defer s.mu.Unlock()

	assignments, assigned, err := s.assign(batch)
	if err != nil {
		return nil, err
	}

	payload, err := s.payload(batch, pending, assigned)
	if err != nil {
		return nil, err
	}

	plan, err := s.plan(ctx, payload)
	if err != nil {
		return nil, err
	}

	cmd := newCommand(CommandCommit)
	cmd.Commit = payload
	if err := s.append(ctx, cmd); err != nil {
		return nil, fmt.Errorf("journal commit: %w", err)
	}

	s.swap(plan)

	for _, op := range batch.Operations {
		if op.Kind == recordlog.Deleted {
			continue
		}
		rid := resolveRID(*op.Record.RID, assigned)
		if row, found := s.containers[rid.Container].Get(rid.Position); found {
			op.Record.Version = row.Version
		}
	}

	s.logger.Debugw("batch applied",
		"tx", batch.TxID,
		"records", len(payload.Records),
		"indexes", len(payload.Indexes),
		"assigned", len(assignments),
	)

	return assignments, nil
}

// assign hands out permanent positions to temporary identities.
func (s *Storage) assign(batch *transaction.Batch) ([]transaction.Assignment, map[record.RID]record.RID, error) {

	var assignments []transaction.Assignment
	assigned := map[record.RID]record.RID{}
	next := map[int32]int64{}

	for _, op := range batch.Operations {
		rid := *op.Record.RID
		if !rid.IsTemporary() {
			continue
		}
		container, found := s.containers[rid.Container]
		if !found {
			return nil, nil, txerror.Newf(txerror.IllegalOperation, "container %d does not exist", rid.Container).WithUserData(rid.String())
		}
		if _, seen := next[rid.Container]; !seen {
			next[rid.Container] = container.next
		}
		permanent := record.RID{Container: rid.Container, Position: next[rid.Container]}
		next[rid.Container]++
		assigned[rid] = permanent
		assignments = append(assignments, transaction.Assignment{Old: rid, New: permanent})
	}

	return assignments, assigned, nil
}

// payload turns a batch into its stored form with every identity resolved.
func (s *Storage) payload(batch *transaction.Batch, pending map[record.RID]*staged, assigned map[record.RID]record.RID) (*commitPayload, error) {

	payload := &commitPayload{TxID: batch.TxID}

	for _, op := range batch.Operations {
		snapshot, found := pending[op.Key()]
		if !found || snapshot.kind != op.Kind {
			snapshot = &staged{kind: op.Kind, version: op.Record.Version}
			if op.Kind != recordlog.Deleted {
				snapshot.properties = Encode(op.Record.Properties()).(map[string]any)
			}
		}
		change := recordChange{
			Kind:    op.Kind.String(),
			RID:     resolveRID(*op.Record.RID, assigned).String(),
			Version: snapshot.version,
		}
		if snapshot.properties != nil {
			change.Properties = relink(snapshot.properties, assigned).(map[string]any)
		}
		payload.Records = append(payload.Records, change)
	}

	for _, ib := range batch.Indexes {
		if _, found := s.indexes[ib.Name]; !found {
			return nil, txerror.Newf(txerror.IllegalOperation, "index '%s' does not exist", ib.Name)
		}
		change := &indexChange{Name: ib.Name, Cleared: ib.Cleared}
		for _, kb := range ib.Keys {
			kc := keyChange{Key: Encode(resolveKey(kb.Key, assigned))}
			for _, e := range kb.Entries() {
				ec := entryChange{Operation: e.Operation.String()}
				if e.Value != nil {
					ec.Value = resolveRID(*e.Value, assigned).String()
				}
				kc.Changes = append(kc.Changes, ec)
			}
			change.Keys = append(change.Keys, kc)
		}
		payload.Indexes = append(payload.Indexes, change)
	}

	return payload, nil
}

type plan struct {
	containers map[int32]*Container
	indexes    map[string]*Index
}

// plan applies payload on copies of the touched containers and indexes.
// Live and replayed commits go through here.
func (s *Storage) plan(ctx context.Context, payload *commitPayload) (*plan, error) {

	p := &plan{
		containers: map[int32]*Container{},
		indexes:    map[string]*Index{},
	}

	for _, change := range payload.Records {
		if err := s.planRecord(p, change); err != nil {
			return nil, err
		}
	}

	g, _ := errgroup.WithContext(ctx)
	for _, change := range payload.Indexes {
		index, found := s.indexes[change.Name]
		if !found {
			return nil, txerror.Newf(txerror.IllegalOperation, "index '%s' does not exist", change.Name)
		}
		copied := index.clone()
		p.indexes[change.Name] = copied
		g.Go(func() error {
			return copied.apply(change)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return p, nil
}

func (s *Storage) planRecord(p *plan, change recordChange) error {

	rid, err := record.Parse(change.RID)
	if err != nil {
		return txerror.New(txerror.IllegalOperation, err)
	}

	container, found := p.containers[rid.Container]
	if !found {
		original, exists := s.containers[rid.Container]
		if !exists {
			return txerror.Newf(txerror.IllegalOperation, "container %d does not exist", rid.Container).WithUserData(change.RID)
		}
		container = original.clone()
		p.containers[rid.Container] = container
	}

	current, exists := container.Get(rid.Position)

	switch change.Kind {
	case recordlog.Created.String():
		if exists {
			return txerror.Newf(txerror.ConcurrentModification, "record %s already exists", rid).WithUserData(change.RID)
		}
		container.put(&Row{Position: rid.Position, Version: 1, Properties: change.Properties})

	case recordlog.Updated.String():
		if !exists {
			return txerror.Newf(txerror.ConcurrentModification, "record %s was deleted", rid).WithUserData(change.RID)
		}
		if current.Version != change.Version {
			return txerror.Newf(txerror.ConcurrentModification, "record %s is at version %d, the change was made on version %d", rid, current.Version, change.Version).WithUserData(change.RID)
		}
		container.put(&Row{Position: rid.Position, Version: current.Version + 1, Properties: change.Properties})

	case recordlog.Deleted.String():
		if !exists {
			return txerror.Newf(txerror.ConcurrentModification, "record %s was already deleted", rid).WithUserData(change.RID)
		}
		if current.Version != change.Version {
			return txerror.Newf(txerror.ConcurrentModification, "record %s is at version %d, the deletion was made on version %d", rid, current.Version, change.Version).WithUserData(change.RID)
		}
		container.delete(rid.Position)

	default:
		return txerror.Newf(txerror.IllegalOperation, "unknown record change '%s'", change.Kind)
	}

	return nil
}

func (s *Storage) swap(p *plan) {
	for id, container := range p.containers {
		s.containers[id] = container
	}
	for name, index := range p.indexes {
		s.indexes[name] = index
	}
}
