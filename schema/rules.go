package schema

import (
	"fmt"
	"time"

	"github.com/SierraSoftworks/connor"

	"github.com/fulldump/inceptiontx/record"
	"github.com/fulldump/inceptiontx/txerror"
)

// Rule is a named connor condition every record of a container must match,
// for example {"age": {"$gt": 17}}.
type Rule struct {
	Name      string         `json:"name"`
	Container string         `json:"container"`
	Condition map[string]any `json:"condition"`
}

func (r *Rule) Validate() error {
	if r.Name == "" {
		return txerror.Newf(txerror.IllegalOperation, "rule name is required")
	}
	if r.Container == "" {
		return txerror.Newf(txerror.IllegalOperation, "rule '%s' needs a container", r.Name)
	}
	if len(r.Condition) == 0 {
		return txerror.Newf(txerror.IllegalOperation, "rule '%s' has no condition", r.Name)
	}
	return nil
}

func (r *Rule) Check(rec *record.Record) error {
	match, err := connor.Match(r.Condition, matchable(rec))
	if err != nil {
		return txerror.New(txerror.ValidationFailed, fmt.Errorf("rule '%s': %w", r.Name, err)).WithUserData(rec.RID.String())
	}
	if !match {
		return txerror.Newf(txerror.ValidationFailed, "record %s does not match rule '%s'", rec.RID, r.Name).WithUserData(r.Name)
	}
	return nil
}

// matchable turns record properties into the plain values conditions are
// written against.
func matchable(rec *record.Record) map[string]any {
	data := rec.Properties()
	for k, v := range data {
		data[k] = plain(v)
	}
	return data
}

func plain(v any) any {
	switch value := v.(type) {
	case *record.List:
		items := value.Items()
		for i, item := range items {
			items[i] = plain(item)
		}
		return items
	case *record.RID:
		if value == nil {
			return nil
		}
		return value.String()
	case record.RID:
		return value.String()
	case time.Time:
		return value.UTC().Format(time.RFC3339Nano)
	}
	return v
}
