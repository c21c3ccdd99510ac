package api

import (
	"testing"

	"github.com/fulldump/apitest"
	"github.com/fulldump/biff"
	"go.uber.org/zap"

	"github.com/fulldump/inceptiontx/database"
	"github.com/fulldump/inceptiontx/service"
)

func TestAcceptance(t *testing.T) {

	biff.Alternative("Setup", func(a *biff.A) {

		db := database.NewDatabase(&database.Config{
			Dir: t.TempDir(),
		})

		biff.AssertNil(db.Load())
		biff.AssertEqual(db.GetStatus(), database.StatusOperating)

		s := service.NewService(db, nil)

		b := Build(s, "test", "", "")
		b.WithInterceptors(
			InterceptorUnavailable(db),
			RecoverFromPanic(zap.NewNop().Sugar()),
			PrettyErrorInterceptor,
		)

		api := apitest.NewWithHandler(b)

		service.Acceptance(a, func(method, path string) *apitest.Request {
			return api.Request(method, "/v1"+path)
		})

	})
}

func TestUnavailable(t *testing.T) {

	db := database.NewDatabase(&database.Config{})

	b := Build(service.NewService(db, nil), "test", "", "")
	b.WithInterceptors(
		InterceptorUnavailable(db),
		PrettyErrorInterceptor,
	)

	api := apitest.NewWithHandler(b)

	resp := api.Request("GET", "/v1/containers").Do()
	biff.AssertEqual(resp.StatusCode, 503)

	biff.AssertNil(db.Load())

	resp = api.Request("GET", "/v1/containers").Do()
	biff.AssertEqual(resp.StatusCode, 200)
}
