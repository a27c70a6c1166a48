// cmd/api/server.go
// This file contains the serve() method which starts the HTTP server and
// handles graceful shutdown when an OS signal is received.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"
)

// serve builds the HTTP server, starts it in a background goroutine, then
// blocks until it receives a SIGINT or SIGTERM signal. On signal receipt it
// initiates a graceful shutdown: in-flight requests are given 20 seconds to
// complete before the server is forcefully stopped.
func (app *applicationDependencies) serve() error {
	apiServer := &http.Server{
		Addr:         net.JoinHostPort(app.config.host, strconv.Itoa(app.config.port)),
		Handler:      app.routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(app.logger.Handler(), slog.LevelError),
	}

	// shutdownErr receives any error returned by Shutdown().
	shutdownErr := make(chan error)

	go func() {
		// quit is a buffered channel so the signal package never blocks.
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		s := <-quit
		app.logger.Info("shutting down server", "signal", s.String())

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		// Shutdown stops accepting new connections and waits for active
		// requests to finish, respecting the context deadline.
		shutdownErr <- apiServer.Shutdown(ctx)
	}()

	app.logger.Info("starting server",
		"address", apiServer.Addr,
		"environment", app.config.environment,
		"debug", app.config.debug,
	)

	// ListenAndServe always returns a non-nil error; ErrServerClosed means
	// Shutdown was called. Anything else (e.g. port in use) is fatal.
	err := apiServer.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdownErr
	if app.stop != nil {
		close(app.stop)
	}
	if err != nil {
		return err
	}

	app.logger.Info("server stopped", "address", apiServer.Addr)
	return nil
}
