package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/fulldump/box"

	"github.com/fulldump/liverepo/database"
	"github.com/fulldump/liverepo/storage"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnavailable  = errors.New("temporary unavailable")
)

func RecoverFromPanic(next box.H) box.H {
	return func(ctx context.Context) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("panic serving request", "url", box.GetRequest(ctx).URL.String(), "panic", err)
				debug.PrintStack()
				box.SetError(ctx, fmt.Errorf("panic: %v", err))
			}
		}()
		next(ctx)
	}
}

func AccessLog(l *log.Logger) box.I {
	return func(next box.H) box.H {
		return func(ctx context.Context) {
			r := box.GetRequest(ctx)
			now := time.Now()
			defer func() {
				l.Println(now.UTC().Format(time.RFC3339Nano), formatRemoteAddr(r), r.Method, r.URL.String(), time.Since(now))
			}()

			next(ctx)
		}
	}
}

func formatRemoteAddr(r *http.Request) string {
	xorigin := strings.TrimSpace(strings.Split(
		r.Header.Get("X-Forwarded-For"), ",")[0])
	if xorigin != "" {
		return xorigin
	}

	i := strings.LastIndex(r.RemoteAddr, ":")
	if i < 0 {
		return r.RemoteAddr
	}
	return r.RemoteAddr[0:i]
}

// InterceptorUnavailable rejects requests while no database is connected or
// the connected one is not operating.
func InterceptorUnavailable(store storage.Context) box.I {
	return func(next box.H) box.H {
		return func(ctx context.Context) {

			db, err := store.Realm()
			if err != nil {
				box.SetError(ctx, fmt.Errorf("%w: %s", ErrUnavailable, err))
				return
			}

			status := db.GetStatus()
			if status != database.StatusOperating {
				box.SetError(ctx, fmt.Errorf("%w: %s", ErrUnavailable, status))
				return
			}

			next(ctx)
		}
	}
}

// Authenticate checks the X-Api-Key and X-Api-Secret headers. An empty
// apiKey disables it.
func Authenticate(apiKey, apiSecret string) box.I {
	return func(next box.H) box.H {
		if apiKey == "" {
			return next
		}
		return func(ctx context.Context) {
			r := box.GetRequest(ctx)
			key := r.Header.Get("X-Api-Key")
			secret := r.Header.Get("X-Api-Secret")
			if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 ||
				subtle.ConstantTimeCompare([]byte(secret), []byte(apiSecret)) != 1 {
				box.SetError(ctx, ErrUnauthorized)
				return
			}
			next(ctx)
		}
	}
}
