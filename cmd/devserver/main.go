// Command devserver serves the webhook over plain HTTP with the
// operational endpoints, for local runs and container deployments.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"sr-chatbot/handler"
	"sr-chatbot/internal/bootstrap"
	"sr-chatbot/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(".env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build application: %v\n", err)
		os.Exit(1)
	}
	logger := app.Logger

	h, err := handler.NewHandler(app.Inquiry, logger.Named("handler"))
	if err != nil {
		logger.Fatal("failed to create handler", zap.Error(err))
	}
	var history handler.HistoryReader
	if app.History != nil {
		history = app.History
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler.NewRouter(h, app.Metrics, history, logger.Named("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr), zap.String("backend", cfg.StateBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	if err := app.Close(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "close: %v\n", err)
	}
}
