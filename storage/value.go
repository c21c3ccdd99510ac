package storage

import (
	"encoding/base64"
	"time"

	"github.com/tiendc/go-deepcopy"

	"github.com/fulldump/inceptiontx/indexlog"
	"github.com/fulldump/inceptiontx/record"
)

// Stored values are plain trees (nil, bool, numbers, strings, []any and
// map[string]any) so any codec can persist them. Types without a plain
// form are wrapped in single-key tagged maps.
const (
	tagRID       = "@rid"
	tagDate      = "@date"
	tagBinary    = "@binary"
	tagComposite = "@composite"
)

// Encode converts a property value or an index key to its stored form.
func Encode(v any) any {
	switch value := v.(type) {
	case *record.List:
		return encodeSlice(value.Items())
	case []any:
		return encodeSlice(value)
	case map[string]any:
		result := make(map[string]any, len(value))
		for k, item := range value {
			result[k] = Encode(item)
		}
		return result
	case *record.RID:
		if value == nil {
			return nil
		}
		return map[string]any{tagRID: value.String()}
	case record.RID:
		return map[string]any{tagRID: value.String()}
	case indexlog.Composite:
		return map[string]any{tagComposite: encodeSlice(value)}
	case time.Time:
		return map[string]any{tagDate: value.UTC().Format(time.RFC3339Nano)}
	case []byte:
		return map[string]any{tagBinary: base64.StdEncoding.EncodeToString(value)}
	}
	return v
}

func encodeSlice(items []any) []any {
	result := make([]any, len(items))
	for i, item := range items {
		result[i] = Encode(item)
	}
	return result
}

// Decode is the inverse of Encode. It rewrites v in place where possible.
func Decode(v any) any {
	switch value := v.(type) {
	case []any:
		for i, item := range value {
			value[i] = Decode(item)
		}
		return value
	case map[string]any:
		if len(value) == 1 {
			if decoded, ok := decodeTagged(value); ok {
				return decoded
			}
		}
		for k, item := range value {
			value[k] = Decode(item)
		}
		return value
	}
	return v
}

// decodeKey decodes a stored key leaving the stored form untouched.
func decodeKey(stored any) (any, error) {
	switch value := stored.(type) {
	case map[string]any:
		var copied map[string]any
		if err := deepcopy.Copy(&copied, value); err != nil {
			return nil, err
		}
		return Decode(copied), nil
	case []any:
		var copied []any
		if err := deepcopy.Copy(&copied, value); err != nil {
			return nil, err
		}
		return Decode(copied), nil
	}
	return stored, nil
}

func decodeTagged(value map[string]any) (any, bool) {
	for tag, raw := range value {
		switch tag {
		case tagRID:
			s, _ := raw.(string)
			rid, err := record.Parse(s)
			return rid, err == nil
		case tagDate:
			s, _ := raw.(string)
			t, err := time.Parse(time.RFC3339Nano, s)
			return t, err == nil
		case tagBinary:
			s, _ := raw.(string)
			b, err := base64.StdEncoding.DecodeString(s)
			return b, err == nil
		case tagComposite:
			items, ok := raw.([]any)
			if !ok {
				return nil, false
			}
			return indexlog.Composite(Decode(items).([]any)), true
		}
	}
	return nil, false
}

// relink replaces temporary identities inside a stored tree.
func relink(v any, assigned map[record.RID]record.RID) any {
	if len(assigned) == 0 {
		return v
	}
	switch value := v.(type) {
	case []any:
		for i, item := range value {
			value[i] = relink(item, assigned)
		}
	case map[string]any:
		if s, ok := value[tagRID].(string); ok && len(value) == 1 {
			if rid, err := record.Parse(s); err == nil {
				if to, found := assigned[rid]; found {
					value[tagRID] = to.String()
				}
			}
			return value
		}
		for k, item := range value {
			value[k] = relink(item, assigned)
		}
	}
	return v
}

// resolveKey returns a copy of key with pointers dereferenced and
// temporary identities replaced.
func resolveKey(key any, assigned map[record.RID]record.RID) any {
	switch k := key.(type) {
	case *record.RID:
		if k == nil {
			return nil
		}
		return resolveRID(*k, assigned)
	case record.RID:
		return resolveRID(k, assigned)
	case indexlog.Composite:
		result := make(indexlog.Composite, len(k))
		for i, component := range k {
			result[i] = resolveKey(component, assigned)
		}
		return result
	}
	return key
}

func resolveRID(rid record.RID, assigned map[record.RID]record.RID) record.RID {
	if to, found := assigned[rid]; found {
		return to
	}
	return rid
}
