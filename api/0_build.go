package api

import (
	"context"

	"github.com/fulldump/box"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fulldump/liverepo/service"
	"github.com/fulldump/liverepo/storage"
)

func Build(s service.Servicer, store storage.Context, version, apiKey, apiSecret string) *box.B {

	b := box.NewBox()

	v1 := b.Resource("/v1").
		WithInterceptors(
			Authenticate(apiKey, apiSecret),
			InterceptorUnavailable(store),
			injectServicer(s),
		)

	v1.Resource("/users").
		WithActions(
			box.Get(listUsers).WithName("listUsers"),
			box.Post(addUser).WithName("addUser"),
			box.Action(watch).WithName("watch"),
		)

	v1.Resource("/users/{userId}").
		WithActions(
			box.Get(getUser).WithName("getUser"),
			box.Delete(deleteUser).WithName("deleteUser"),
			box.ActionPost(rename).WithName("rename"),
		)

	b.Resource("/version").
		WithActions(
			box.Get(func() any {
				return map[string]string{"version": version}
			}).WithName("version"),
		)

	b.Resource("/metrics").
		WithActions(
			box.Get(promhttp.Handler().ServeHTTP).WithName("metrics"),
		)

	return b
}

const contextServicerKey = "ed0fa170-5593-11ed-9d60-9bdc940af29d"

func injectServicer(s service.Servicer) box.I {
	return func(next box.H) box.H {
		return func(ctx context.Context) {
			next(context.WithValue(ctx, contextServicerKey, s))
		}
	}
}

func GetServicer(ctx context.Context) service.Servicer {
	s, _ := ctx.Value(contextServicerKey).(service.Servicer)
	return s
}
