package api

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/fulldump/apitest"
	"github.com/fulldump/biff"

	"github.com/fulldump/liverepo/actor"
	"github.com/fulldump/liverepo/service"
	"github.com/fulldump/liverepo/storage"
)

func newTestStorage(t *testing.T) *storage.Storage {
	writer := actor.New("api-test")
	t.Cleanup(writer.Stop)

	store, err := storage.New(storage.Options{Dir: t.TempDir(), Writer: writer})
	biff.AssertNil(err)
	biff.AssertNil(storage.ConnectDefault(context.Background(), store))
	t.Cleanup(func() {
		storage.DeleteDefault(context.Background(), store)
	})

	return store
}

func newTestApi(t *testing.T, store storage.Context, apiKey, apiSecret string) *apitest.Apitest {
	b := Build(service.NewUserService(store), store, "test", apiKey, apiSecret)
	b.WithInterceptors(
		PrettyErrorInterceptor,
		RecoverFromPanic,
	)

	api := apitest.NewWithHandler(b)
	t.Cleanup(api.Destroy)
	return api
}

func TestAcceptance(t *testing.T) {

	biff.Alternative("Setup", func(a *biff.A) {

		api := newTestApi(t, newTestStorage(t), "", "")

		service.Acceptance(a, func(method, path string) *apitest.Request {
			return api.Request(method, "/v1"+path)
		})

	})
}

func TestUnavailable(t *testing.T) {

	writer := actor.New("api-test")
	defer writer.Stop()
	store, err := storage.New(storage.Options{Dir: t.TempDir(), Writer: writer})
	biff.AssertNil(err)

	api := newTestApi(t, store, "", "")

	resp := api.Request("GET", "/v1/users").Do()
	biff.AssertEqual(resp.StatusCode, http.StatusServiceUnavailable)

	biff.AssertNil(storage.ConnectDefault(context.Background(), store))
	defer storage.DeleteDefault(context.Background(), store)

	resp = api.Request("GET", "/v1/users").Do()
	biff.AssertEqual(resp.StatusCode, http.StatusOK)
}

func TestVersionAndMetrics(t *testing.T) {

	api := newTestApi(t, newTestStorage(t), "", "")

	resp := api.Request("GET", "/version").Do()
	biff.AssertEqual(resp.StatusCode, http.StatusOK)
	biff.AssertEqualJson(resp.BodyJson(), map[string]any{"version": "test"})

	api.Request("GET", "/v1/users").Do()

	resp = api.Request("GET", "/metrics").Do()
	biff.AssertEqual(resp.StatusCode, http.StatusOK)
	biff.AssertTrue(strings.Contains(resp.BodyString(), "liverepo_repository_ops_total"))
}
