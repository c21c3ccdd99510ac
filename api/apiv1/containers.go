package apiv1

import (
	"context"
	"net/http"

	"github.com/fulldump/box"

	"github.com/fulldump/inceptiontx/service"
)

type createContainerRequest struct {
	Name string `json:"name"`
}

func createContainer(ctx context.Context, w http.ResponseWriter, input *createContainerRequest) (*service.Container, error) {

	s := GetServicer(ctx)

	container, err := s.CreateContainer(ctx, input.Name)
	if err != nil {
		return nil, err
	}

	w.WriteHeader(http.StatusCreated)
	return container, nil
}

func getContainer(ctx context.Context) (*service.Container, error) {
	s := GetServicer(ctx)
	return s.GetContainer(box.GetUrlParameter(ctx, "containerName"))
}

func listContainers(ctx context.Context) []*service.Container {
	return GetServicer(ctx).ListContainers()
}
