package schema

import (
	"fmt"
	"strings"

	"github.com/fulldump/inceptiontx/indexlog"
	"github.com/fulldump/inceptiontx/interpret"
	"github.com/fulldump/inceptiontx/record"
	"github.com/fulldump/inceptiontx/txerror"
)

// IndexDefinition describes an index over one or more fields of the
// records of a container. Multi-field indexes use indexlog.Composite keys.
type IndexDefinition struct {
	Name      string   `json:"name"`
	Container string   `json:"container"`
	Fields    []string `json:"fields"`
	Semantics string   `json:"semantics"`
	// Sparse indexes skip records missing every indexed field, other
	// indexes store them under the null key.
	Sparse bool `json:"sparse"`
}

func (d *IndexDefinition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return txerror.Newf(txerror.IllegalOperation, "index name is required")
	}
	if d.Container == "" {
		return txerror.Newf(txerror.IllegalOperation, "index '%s' needs a container", d.Name)
	}
	if len(d.Fields) == 0 {
		return txerror.Newf(txerror.IllegalOperation, "index '%s' needs at least one field", d.Name)
	}
	if _, ok := interpret.ParseSemantics(d.Semantics); !ok {
		return txerror.Newf(txerror.IllegalOperation, "index '%s' has unknown semantics '%s'", d.Name, d.Semantics)
	}
	return nil
}

func (d *IndexDefinition) semantics() interpret.Semantics {
	s, _ := interpret.ParseSemantics(d.Semantics)
	return s
}

// Keys computes the index keys for a record given a property getter. A
// multi-valued property of a single-field index produces one key per
// item.
func (d *IndexDefinition) Keys(get func(name string) (any, bool)) ([]any, error) {

	if len(d.Fields) == 1 {
		value, found := get(d.Fields[0])
		if !found {
			if d.Sparse {
				return nil, nil
			}
			return []any{nil}, nil
		}
		if items, multi := multiValue(value); multi {
			return dedupKeys(items), nil
		}
		return []any{value}, nil
	}

	key := make(indexlog.Composite, len(d.Fields))
	missing := 0
	for i, field := range d.Fields {
		value, found := get(field)
		if !found {
			missing++
			continue
		}
		if _, multi := multiValue(value); multi {
			return nil, txerror.Newf(txerror.IllegalOperation, "field '%s' of composite index '%s' is multi-valued", field, d.Name)
		}
		key[i] = value
	}
	if missing == len(d.Fields) && d.Sparse {
		return nil, nil
	}

	return []any{key}, nil
}

func multiValue(value any) ([]any, bool) {
	switch v := value.(type) {
	case *record.List:
		return v.Items(), true
	case []any:
		return v, true
	}
	return nil, false
}

func dedupKeys(keys []any) []any {
	result := make([]any, 0, len(keys))
	for _, k := range keys {
		if !containsKey(result, k) {
			result = append(result, k)
		}
	}
	return result
}

func containsKey(keys []any, key any) bool {
	for _, k := range keys {
		if indexlog.KeysEqual(k, key) {
			return true
		}
	}
	return false
}

func (d *IndexDefinition) String() string {
	return fmt.Sprintf("%s(%s.%s %s)", d.Name, d.Container, strings.Join(d.Fields, ","), d.Semantics)
}
