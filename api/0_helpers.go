package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/fulldump/box"

	"github.com/fulldump/liverepo/database"
	"github.com/fulldump/liverepo/repository"
	"github.com/fulldump/liverepo/service"
)

type PrettyError struct {
	Message     string `json:"message"`
	Description string `json:"description"`
}

func writeError(w http.ResponseWriter, status int, err error, description string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": PrettyError{
			Message:     err.Error(),
			Description: description,
		},
	})
}

func PrettyErrorInterceptor(next box.H) box.H {
	return func(ctx context.Context) {

		next(ctx)

		err := box.GetError(ctx)
		if err == nil {
			return
		}
		w := box.GetResponse(ctx)
		r := box.GetRequest(ctx)

		switch {
		case errors.Is(err, ErrUnauthorized):
			writeError(w, http.StatusUnauthorized, err, "user is not authenticated")
		case errors.Is(err, ErrUnavailable):
			writeError(w, http.StatusServiceUnavailable, err, "database is not ready")
		case err == box.ErrResourceNotFound:
			writeError(w, http.StatusNotFound, err, fmt.Sprintf("resource '%s' not found", r.URL.String()))
		case err == box.ErrMethodNotAllowed:
			writeError(w, http.StatusMethodNotAllowed, err, fmt.Sprintf("method '%s' not allowed", r.Method))
		case errors.Is(err, repository.ErrObjectNotFound), errors.Is(err, repository.ErrKeyNotFound):
			writeError(w, http.StatusNotFound, err, "user not found")
		case errors.Is(err, database.ErrDuplicateKey):
			writeError(w, http.StatusConflict, err, "user already exists")
		case errors.Is(err, ErrInvalidUserId), errors.Is(err, service.ErrInvalidName):
			writeError(w, http.StatusBadRequest, err, "invalid input")
		case isSyntaxError(err):
			writeError(w, http.StatusBadRequest, err, "Malformed JSON")
		default:
			writeError(w, http.StatusInternalServerError, err, "Unexpected error")
		}
	}
}

func isSyntaxError(err error) bool {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	return errors.As(err, &syntaxError) || errors.As(err, &typeError) || errors.Is(err, io.ErrUnexpectedEOF)
}
