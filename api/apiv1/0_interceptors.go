package apiv1

import (
	"context"

	"github.com/fulldump/box"

	"github.com/fulldump/inceptiontx/service"
)

const ContextServicerKey = "4c1f6a52-8e0b-11f0-a1d4-2f6d9c1e7b30"

func SetServicer(ctx context.Context, s service.Servicer) context.Context {
	return context.WithValue(ctx, ContextServicerKey, s)
}

func GetServicer(ctx context.Context) service.Servicer {
	return ctx.Value(ContextServicerKey).(service.Servicer)
}

func injectServicer(s service.Servicer) box.I {
	return func(next box.H) box.H {
		return func(ctx context.Context) {
			next(SetServicer(ctx, s))
		}
	}
}
