package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/pyama86/dispatchd/jobs"
)

const shutdownTimeout = 10 * time.Second

// Handle は HTTP API と定期ジョブを起動し、ctx がキャンセルされるまで待つ
func Handle(ctx context.Context, configPath string) error {
	secret := os.Getenv("DISPATCHD_JWT_SECRET")
	if secret == "" {
		return errors.New("DISPATCHD_JWT_SECRET is required")
	}

	app, err := OpenApp(configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	app.Dispatcher.Start(ctx)
	defer app.Dispatcher.Stop()

	runner, err := jobs.NewDispatchRunner(app.Config.Location(), app.Config.Jobs, app.Monitor, app.Coverage)
	if err != nil {
		return err
	}
	if err := runner.Start(ctx); err != nil {
		return err
	}
	defer runner.Stop()

	auth := NewAuthenticator(secret, app.Repo, app.Incidents.HasAccess)
	srv := &http.Server{
		Addr:              app.Config.Listen,
		Handler:           NewServer(app, auth).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Listening", slog.String("addr", srv.Addr), slog.Any("jobs", runner.Names()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}
