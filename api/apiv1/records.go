package apiv1

import (
	"context"
	"strconv"

	"github.com/fulldump/box"

	"github.com/fulldump/inceptiontx/record"
	"github.com/fulldump/inceptiontx/storage"
	"github.com/fulldump/inceptiontx/txerror"
)

// render writes a record as JSON friendly values. Links and other special
// values use the same tagged form storage uses.
func render(rec *record.Record) map[string]any {
	result := storage.Encode(rec.Properties()).(map[string]any)
	result["@rid"] = rec.RID.String()
	result["@version"] = rec.Version
	return result
}

// parseValue turns request values into property values. {"$ref": name}
// links to a record created earlier in the same request and {"$rid": rid}
// links to a stored one.
func parseValue(v any, refs map[string]*record.Record) (any, error) {
	switch value := v.(type) {
	case []any:
		result := make([]any, len(value))
		for i, item := range value {
			parsed, err := parseValue(item, refs)
			if err != nil {
				return nil, err
			}
			result[i] = parsed
		}
		return result, nil
	case map[string]any:
		if name, ok := value["$ref"].(string); ok && len(value) == 1 {
			rec, found := refs[name]
			if !found {
				return nil, txerror.Newf(txerror.IllegalOperation, "unknown reference '%s'", name)
			}
			return rec.RID, nil
		}
		if s, ok := value["$rid"].(string); ok && len(value) == 1 {
			rid, err := record.Parse(s)
			if err != nil {
				return nil, txerror.New(txerror.IllegalOperation, err)
			}
			return rid, nil
		}
		result := make(map[string]any, len(value))
		for k, item := range value {
			parsed, err := parseValue(item, refs)
			if err != nil {
				return nil, err
			}
			result[k] = parsed
		}
		return result, nil
	}
	return v, nil
}

func getRecord(ctx context.Context) (map[string]any, error) {

	s := GetServicer(ctx)

	container, err := s.ContainerID(box.GetUrlParameter(ctx, "containerName"))
	if err != nil {
		return nil, err
	}

	position, err := strconv.ParseInt(box.GetUrlParameter(ctx, "position"), 10, 64)
	if err != nil {
		return nil, txerror.Newf(txerror.IllegalOperation, "position must be a number")
	}

	rec, err := s.Get(ctx, record.RID{Container: container, Position: position})
	if err != nil {
		return nil, err
	}

	return render(rec), nil
}

type lookupRequest struct {
	Index string `json:"index"`
	Key   any    `json:"key"`
}

func lookup(ctx context.Context, input *lookupRequest) ([]map[string]any, error) {

	s := GetServicer(ctx)

	if _, err := s.ContainerID(box.GetUrlParameter(ctx, "containerName")); err != nil {
		return nil, err
	}

	key, err := parseValue(input.Key, nil)
	if err != nil {
		return nil, err
	}

	records, err := s.Lookup(ctx, input.Index, key)
	if err != nil {
		return nil, err
	}

	result := make([]map[string]any, len(records))
	for i, rec := range records {
		result[i] = render(rec)
	}
	return result, nil
}
