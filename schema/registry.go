// Package schema keeps index definitions and validation rules, and turns
// record changes into index changes for transactions.
package schema

import (
	"context"
	"sort"
	"sync"

	"github.com/fulldump/inceptiontx/indexlog"
	"github.com/fulldump/inceptiontx/interpret"
	"github.com/fulldump/inceptiontx/record"
	"github.com/fulldump/inceptiontx/transaction"
	"github.com/fulldump/inceptiontx/txerror"
)

type Registry struct {
	mu      sync.RWMutex
	indexes map[string]*IndexDefinition
	rules   map[string]*Rule
}

func NewRegistry() *Registry {
	return &Registry{
		indexes: map[string]*IndexDefinition{},
		rules:   map[string]*Rule{},
	}
}

func (r *Registry) AddIndex(def *IndexDefinition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.indexes[def.Name]; exists {
		return txerror.Newf(txerror.IllegalOperation, "index '%s' already exists", def.Name)
	}
	r.indexes[def.Name] = def
	return nil
}

func (r *Registry) DropIndex(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.indexes[name]
	delete(r.indexes, name)
	return exists
}

func (r *Registry) Index(name string) (*IndexDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.indexes[name]
	return def, ok
}

// Indexes lists definitions sorted by name, optionally only those of one
// container.
func (r *Registry) Indexes(container string) []*IndexDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := []*IndexDefinition{}
	for _, def := range r.indexes {
		if container == "" || def.Container == container {
			result = append(result, def)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}

// SetRule adds or replaces a rule.
func (r *Registry) SetRule(rule *Rule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.rules[rule.Container+"/"+rule.Name] = rule
	r.mu.Unlock()
	return nil
}

func (r *Registry) DeleteRule(container, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := container + "/" + name
	_, exists := r.rules[key]
	delete(r.rules, key)
	return exists
}

func (r *Registry) Rules(container string) []*Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := []*Rule{}
	for _, rule := range r.rules {
		if container == "" || rule.Container == container {
			result = append(result, rule)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Container != result[j].Container {
			return result[i].Container < result[j].Container
		}
		return result[i].Name < result[j].Name
	})
	return result
}

// Validate implements transaction.Validator.
func (r *Registry) Validate(ctx context.Context, rec *record.Record) error {
	for _, rule := range r.Rules(rec.Container) {
		if err := rule.Check(rec); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) Semantics(index string) (interpret.Semantics, bool) {
	def, ok := r.Index(index)
	if !ok {
		return 0, false
	}
	return def.semantics(), true
}

func (r *Registry) AfterCreate(ctx context.Context, rec *record.Record, recorder transaction.IndexRecorder) error {
	defer rec.MarkIndexed()
	for _, def := range r.Indexes(rec.Container) {
		keys, err := def.Keys(current(rec))
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := recorder.Record(def.Name, key, rec.RID.Copy(), indexlog.Put); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Registry) AfterUpdate(ctx context.Context, rec *record.Record, recorder transaction.IndexRecorder) error {
	defer rec.MarkIndexed()
	for _, def := range r.Indexes(rec.Container) {
		before, err := def.Keys(rec.IndexedValue)
		if err != nil {
			return err
		}
		after, err := def.Keys(current(rec))
		if err != nil {
			return err
		}
		for _, key := range before {
			if containsKey(after, key) {
				continue
			}
			if err := recorder.Record(def.Name, key, rec.RID.Copy(), indexlog.Remove); err != nil {
				return err
			}
		}
		for _, key := range after {
			if containsKey(before, key) {
				continue
			}
			if err := recorder.Record(def.Name, key, rec.RID.Copy(), indexlog.Put); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Registry) AfterDelete(ctx context.Context, rec *record.Record, recorder transaction.IndexRecorder) error {
	defer rec.MarkIndexed()
	for _, def := range r.Indexes(rec.Container) {
		keys, err := def.Keys(rec.IndexedValue)
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := recorder.Record(def.Name, key, rec.RID.Copy(), indexlog.Remove); err != nil {
				return err
			}
		}
	}
	return nil
}

func current(rec *record.Record) func(name string) (any, bool) {
	return func(name string) (any, bool) {
		return rec.Get(name), rec.Has(name)
	}
}
