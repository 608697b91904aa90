package api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fulldump/biff"
	"github.com/go-json-experiment/json"

	"github.com/fulldump/liverepo/service"
)

func TestWatch(t *testing.T) {

	store := newTestStorage(t)
	users := service.NewUserService(store)

	b := Build(users, store, "test", "", "")
	b.WithInterceptors(PrettyErrorInterceptor, RecoverFromPanic)
	server := httptest.NewServer(b)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", server.URL+"/v1/users:watch", nil)
	biff.AssertNil(err)
	resp, err := http.DefaultClient.Do(req)
	biff.AssertNil(err)
	defer resp.Body.Close()

	biff.AssertEqual(resp.StatusCode, http.StatusOK)
	biff.AssertEqual(resp.Header.Get("Content-Type"), "application/x-ndjson")

	lines := bufio.NewScanner(resp.Body)
	next := func() []*service.User {
		biff.AssertTrue(lines.Scan())
		snapshot := []*service.User{}
		biff.AssertNil(json.Unmarshal(lines.Bytes(), &snapshot))
		return snapshot
	}

	biff.AssertEqual(len(next()), 0)

	sara := &service.User{Name: "Sara", Age: 33}
	biff.AssertNil(users.Add(ctx, sara))
	snapshot := next()
	biff.AssertEqual(len(snapshot), 1)
	biff.AssertEqual(snapshot[0].Id, sara.Id)

	biff.AssertNil(users.Rename(ctx, sara.Id, "Sarah"))
	snapshot = next()
	biff.AssertEqual(snapshot[0].Name, "Sarah")

	biff.AssertNil(users.Delete(ctx, sara.Id))
	biff.AssertEqual(len(next()), 0)
}
