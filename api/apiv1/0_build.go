package apiv1

import (
	"github.com/fulldump/box"

	"github.com/fulldump/inceptiontx/service"
)

func Build(v1 *box.R, s service.Servicer) *box.R {

	v1.WithInterceptors(
		injectServicer(s),
	)

	v1.Resource("/containers").
		WithActions(
			box.Get(listContainers),
			box.Post(createContainer),
		)

	v1.Resource("/containers/{containerName}").
		WithActions(
			box.Get(getContainer),
			box.ActionPost(createIndex),
			box.ActionPost(listIndexes),
			box.ActionPost(dropIndex),
			box.ActionPost(setRule),
			box.ActionPost(listRules),
			box.ActionPost(deleteRule),
			box.ActionPost(lookup),
		)

	v1.Resource("/containers/{containerName}/records/{position}").
		WithActions(
			box.Get(getRecord),
		)

	v1.Resource("/transactions").
		WithActions(
			box.Post(commitTransaction),
		)

	return v1
}
