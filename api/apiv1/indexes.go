package apiv1

import (
	"context"
	"net/http"

	"github.com/fulldump/box"

	"github.com/fulldump/inceptiontx/schema"
)

type createIndexRequest struct {
	Name      string   `json:"name"`
	Fields    []string `json:"fields"`
	Semantics string   `json:"semantics"`
	Sparse    bool     `json:"sparse"`
}

func createIndex(ctx context.Context, w http.ResponseWriter, input *createIndexRequest) (*schema.IndexDefinition, error) {

	s := GetServicer(ctx)

	def := &schema.IndexDefinition{
		Name:      input.Name,
		Container: box.GetUrlParameter(ctx, "containerName"),
		Fields:    input.Fields,
		Semantics: input.Semantics,
		Sparse:    input.Sparse,
	}
	if err := s.CreateIndex(ctx, def); err != nil {
		return nil, err
	}

	w.WriteHeader(http.StatusCreated)
	return def, nil
}

func listIndexes(ctx context.Context) ([]*schema.IndexDefinition, error) {
	return GetServicer(ctx).ListIndexes(box.GetUrlParameter(ctx, "containerName"))
}

type dropIndexRequest struct {
	Name string `json:"name"`
}

func dropIndex(ctx context.Context, w http.ResponseWriter, input *dropIndexRequest) error {

	s := GetServicer(ctx)

	if _, err := s.ContainerID(box.GetUrlParameter(ctx, "containerName")); err != nil {
		return err
	}
	if err := s.DropIndex(ctx, input.Name); err != nil {
		return err
	}

	w.WriteHeader(http.StatusNoContent)
	return nil
}
