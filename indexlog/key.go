package indexlog

import (
	"bytes"
	"cmp"
	"fmt"
	"strings"
	"time"

	"github.com/fulldump/inceptiontx/record"
	"github.com/fulldump/inceptiontx/txerror"
)

// Composite is a key made of several scalar components, in field order.
type Composite []any

type KeyType int

const (
	TypeNull KeyType = iota
	TypeBool
	TypeNumber
	TypeString
	TypeBinary
	TypeDate
	TypeLink
	TypeEmbedded
	TypeLinkCollection
	TypeUnsupported
)

func (t KeyType) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeBool:
		return "bool"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeBinary:
		return "binary"
	case TypeDate:
		return "date"
	case TypeLink:
		return "link"
	case TypeEmbedded:
		return "embedded"
	case TypeLinkCollection:
		return "link collection"
	}
	return "unsupported"
}

type Dependency int

const (
	NeverDepends Dependency = iota
	MayDepend
	Rejected
)

// identityDependency says whether keys of a type can contain a record
// identity, and therefore move when that identity is remapped.
var identityDependency = map[KeyType]Dependency{
	TypeNull:           NeverDepends,
	TypeBool:           NeverDepends,
	TypeNumber:         NeverDepends,
	TypeString:         NeverDepends,
	TypeBinary:         NeverDepends,
	TypeDate:           NeverDepends,
	TypeLink:           MayDepend,
	TypeEmbedded:       MayDepend,
	TypeLinkCollection: Rejected,
	TypeUnsupported:    Rejected,
}

func TypeOf(key any) KeyType {
	switch k := key.(type) {
	case nil:
		return TypeNull
	case bool:
		return TypeBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return TypeNumber
	case string:
		return TypeString
	case []byte:
		return TypeBinary
	case time.Time:
		return TypeDate
	case *record.RID:
		if k == nil {
			return TypeNull
		}
		return TypeLink
	case record.RID:
		return TypeLink
	case Composite:
		return TypeEmbedded
	case []*record.RID, []record.RID:
		return TypeLinkCollection
	case []any:
		return collectionType(k)
	case *record.List:
		return collectionType(k.Items())
	}
	return TypeUnsupported
}

func collectionType(items []any) KeyType {
	for _, item := range items {
		switch TypeOf(item) {
		case TypeLink, TypeLinkCollection:
			return TypeLinkCollection
		}
	}
	return TypeUnsupported
}

// DependsOnIdentity tells whether key may embed a record identity. Keys
// must be resolved to scalar components beforehand, collections are
// rejected, and so are keys embedding a record without identity.
func DependsOnIdentity(key any) (bool, error) {
	t := TypeOf(key)
	switch identityDependency[t] {
	case NeverDepends:
		return false, nil
	case MayDepend:
		if c, ok := key.(Composite); ok {
			for _, component := range c {
				if _, err := DependsOnIdentity(component); err != nil {
					return false, err
				}
			}
		}
		for _, rid := range linksOf(key) {
			if !rid.IsValid() {
				return false, txerror.Newf(txerror.IllegalOperation, "index key embeds record %s without identity", rid).WithUserData(key)
			}
		}
		return true, nil
	}
	return false, txerror.Newf(txerror.IllegalOperation, "index key of type %s is not supported", t).WithUserData(key)
}

func isNullKey(key any) bool {
	return TypeOf(key) == TypeNull
}

// linksOf returns the current value of every identity embedded in key.
func linksOf(key any) []record.RID {
	switch k := key.(type) {
	case *record.RID:
		if k != nil {
			return []record.RID{*k}
		}
	case record.RID:
		return []record.RID{k}
	case Composite:
		var result []record.RID
		for _, component := range k {
			result = append(result, linksOf(component)...)
		}
		return result
	}
	return nil
}

// rewriteKey replaces oldRID by newRID inside key. Pointers are mutated in
// place, values are replaced.
func rewriteKey(key any, oldRID, newRID record.RID) any {
	switch k := key.(type) {
	case *record.RID:
		if k != nil && *k == oldRID {
			k.Set(newRID)
		}
		return k
	case record.RID:
		if k == oldRID {
			return newRID
		}
		return k
	case Composite:
		for i, component := range k {
			k[i] = rewriteKey(component, oldRID, newRID)
		}
		return k
	}
	return key
}

// CompareKeys orders keys first by type and then by value.
func CompareKeys(a, b any) int {
	ta, tb := TypeOf(a), TypeOf(b)
	if ta != tb {
		return cmp.Compare(ta, tb)
	}
	switch ta {
	case TypeNull:
		return 0
	case TypeBool:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	case TypeNumber:
		return compareNumbers(a, b)
	case TypeString:
		return strings.Compare(a.(string), b.(string))
	case TypeBinary:
		return bytes.Compare(a.([]byte), b.([]byte))
	case TypeDate:
		return a.(time.Time).Compare(b.(time.Time))
	case TypeLink:
		return record.Compare(linksOf(a)[0], linksOf(b)[0])
	case TypeEmbedded:
		ca, cb := a.(Composite), b.(Composite)
		for i := 0; i < len(ca) && i < len(cb); i++ {
			if c := CompareKeys(ca[i], cb[i]); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(ca), len(cb))
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func KeysEqual(a, b any) bool {
	return CompareKeys(a, b) == 0
}

func compareNumbers(a, b any) int {
	ia, aInt := asInt64(a)
	ib, bInt := asInt64(b)
	if aInt && bInt {
		return cmp.Compare(ia, ib)
	}
	return cmp.Compare(asFloat64(a), asFloat64(b))
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	case float32:
		if n == float32(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

func asFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	}
	i, _ := asInt64(v)
	return float64(i)
}
