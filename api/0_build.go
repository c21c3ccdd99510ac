package api

import (
	"net/http"

	"github.com/fulldump/box"
	"github.com/fulldump/box/boxopenapi"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fulldump/inceptiontx/api/apiv1"
	"github.com/fulldump/inceptiontx/service"
)

// Build mounts the HTTP API. Empty apiKey disables authentication.
func Build(s service.Servicer, version, apiKey, apiSecret string) *box.B {

	b := box.NewBox()

	v1 := b.Resource("/v1")
	v1.WithInterceptors(
		box.SetResponseHeader("Content-Type", "application/json"),
		Authenticate(apiKey, apiSecret),
	)
	apiv1.Build(v1, s)

	b.Resource("/v1/*").
		WithActions(box.AnyMethod(func(w http.ResponseWriter) interface{} {
			w.WriteHeader(http.StatusNotImplemented)
			return PrettyError{
				Message:     "not implemented",
				Description: "this endpoint does not exist, please check the documentation",
			}
		}))

	b.Resource("/release").
		WithActions(box.Get(func() string {
			return version
		}))

	metrics := promhttp.Handler()
	b.Resource("/metrics").
		WithActions(box.Get(func(w http.ResponseWriter, r *http.Request) {
			metrics.ServeHTTP(w, r)
		}))

	spec := boxopenapi.Spec(b)
	spec.Info.Title = "InceptionTX"
	spec.Info.Description = "An embedded multi-model database with optimistic transactions."
	b.Resource("/openapi.json").
		WithActions(box.Get(func(r *http.Request) any {

			served := spec
			served.Servers = []boxopenapi.Server{
				{
					Url: "https://" + r.Host,
				},
				{
					Url: "http://" + r.Host,
				},
			}

			return served
		}))

	return b
}
