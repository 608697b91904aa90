package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fulldump/box"

	"github.com/fulldump/liverepo/api"
	"github.com/fulldump/liverepo/configuration"
	"github.com/fulldump/liverepo/service"
	"github.com/fulldump/liverepo/storage"
)

var VERSION = "dev"

// Bootstrap connects the database and prepares the HTTP server. start
// blocks until stop is called or the process gets SIGTERM or SIGINT.
func Bootstrap(c *configuration.Configuration) (start, stop func(), err error) {

	store, err := storage.New(storage.Options{Dir: c.Dir})
	if err != nil {
		return nil, nil, err
	}

	var password, salt *string
	if c.Password != "" {
		password = &c.Password
	}
	if c.Salt != "" {
		salt = &c.Salt
	}
	err = store.Connect(context.Background(), c.Database, password, salt)
	if err != nil {
		return nil, nil, err
	}

	b := api.Build(service.NewUserService(store), store, VERSION, c.ApiKey, c.ApiSecret)
	if c.EnableCompression {
		b.WithInterceptors(api.Compression)
	}
	b.WithInterceptors(
		api.AccessLog(log.New(os.Stdout, "ACCESS: ", log.Lshortfile)),
		api.PrettyErrorInterceptor,
		api.RecoverFromPanic,
	)

	s := &http.Server{
		Addr:    c.HttpAddr,
		Handler: box.Box2Http(b),
	}

	ln, err := net.Listen("tcp", c.HttpAddr)
	if err != nil {
		store.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("listen %s: %w", c.HttpAddr, err)
	}
	slog.Info("listening", "addr", ln.Addr().String())

	var stopOnce sync.Once
	stop = func() {
		stopOnce.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := s.Shutdown(ctx)
			if err != nil {
				slog.Error("shutdown http server", "error", err)
			}
			err = store.Disconnect(ctx)
			if err != nil {
				slog.Error("disconnect database", "error", err)
			}
		})
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-signalChan
		slog.Info("signal received", "signal", sig.String())
		stop()
	}()

	start = func() {
		err := s.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("serve", "error", err)
		}
	}

	return start, stop, nil
}
