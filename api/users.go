package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fulldump/box"
	"github.com/go-json-experiment/json"
	"github.com/google/uuid"

	"github.com/fulldump/liverepo/service"
)

var ErrInvalidUserId = fmt.Errorf("invalid user id")

func userId(ctx context.Context) (uuid.UUID, error) {
	raw := box.GetUrlParameter(ctx, "userId")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: '%s'", ErrInvalidUserId, raw)
	}
	return id, nil
}

func listUsers(ctx context.Context) ([]*service.User, error) {
	return GetServicer(ctx).List(ctx)
}

type addUserRequest struct {
	Id    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Age   int       `json:"age"`
	Email string    `json:"email"`
}

func addUser(ctx context.Context, w http.ResponseWriter, input *addUserRequest) (*service.User, error) {

	user := &service.User{
		Id:    input.Id,
		Name:  input.Name,
		Age:   input.Age,
		Email: input.Email,
	}

	err := GetServicer(ctx).Add(ctx, user)
	if err != nil {
		return nil, err
	}

	w.WriteHeader(http.StatusCreated)
	return user, nil
}

func getUser(ctx context.Context) (*service.User, error) {
	id, err := userId(ctx)
	if err != nil {
		return nil, err
	}
	return GetServicer(ctx).Get(ctx, id)
}

func deleteUser(ctx context.Context) error {
	id, err := userId(ctx)
	if err != nil {
		return err
	}
	return GetServicer(ctx).Delete(ctx, id)
}

type renameRequest struct {
	Name string `json:"name"`
}

func rename(ctx context.Context, input *renameRequest) (*service.User, error) {
	id, err := userId(ctx)
	if err != nil {
		return nil, err
	}

	s := GetServicer(ctx)
	err = s.Rename(ctx, id, input.Name)
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

// watch writes one JSON line with all the users now and another one after
// every change, until the client goes away.
func watch(ctx context.Context, w http.ResponseWriter) error {

	users := GetServicer(ctx).Watch(ctx)
	defer users.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	for snapshot, err := range users.All(ctx) {
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		err = json.MarshalWrite(w, snapshot)
		if err != nil {
			return err
		}
		w.Write([]byte("\n"))
		if flusher != nil {
			flusher.Flush()
		}
	}

	return nil
}
