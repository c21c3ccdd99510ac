package apiv1

import (
	"context"
	"net/http"

	"github.com/fulldump/box"

	"github.com/fulldump/inceptiontx/schema"
)

type setRuleRequest struct {
	Name      string         `json:"name"`
	Condition map[string]any `json:"condition"`
}

func setRule(ctx context.Context, w http.ResponseWriter, input *setRuleRequest) (*schema.Rule, error) {

	s := GetServicer(ctx)

	rule := &schema.Rule{
		Name:      input.Name,
		Container: box.GetUrlParameter(ctx, "containerName"),
		Condition: input.Condition,
	}
	if err := s.SetRule(ctx, rule); err != nil {
		return nil, err
	}

	w.WriteHeader(http.StatusCreated)
	return rule, nil
}

func listRules(ctx context.Context) ([]*schema.Rule, error) {
	return GetServicer(ctx).ListRules(box.GetUrlParameter(ctx, "containerName"))
}

type deleteRuleRequest struct {
	Name string `json:"name"`
}

func deleteRule(ctx context.Context, w http.ResponseWriter, input *deleteRuleRequest) error {

	s := GetServicer(ctx)

	if err := s.DeleteRule(ctx, box.GetUrlParameter(ctx, "containerName"), input.Name); err != nil {
		return err
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}
