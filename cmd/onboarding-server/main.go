package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentflow/onboarding/pkg/api"
	"github.com/agentflow/onboarding/pkg/bootstrap"
	"github.com/agentflow/onboarding/pkg/framework"
)

func main() {
	keepalive := flag.Duration("keepalive", 30*time.Second, "SSE keepalive interval")
	shutdownTimeout := flag.Duration("shutdown-timeout", 15*time.Second, "grace period for in-flight requests")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := bootstrap.NewService(ctx, "onboarding-server")
	if err != nil {
		bootstrap.NewLogger("onboarding-server").Error("Service init failed", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	server := api.NewServer(svc.Onboarding, svc.Verifier, svc.Logger,
		api.WithMaxUpload(svc.Config.MaxUploadBytes),
		api.WithKeepalive(*keepalive),
	)

	httpServer := &http.Server{
		Addr:              ":" + svc.Config.Port,
		Handler:           framework.WrapHTTP("onboarding-server", svc.Logger, server.Router()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		svc.Logger.Info("Listening", "addr", httpServer.Addr, "store", svc.Config.Store)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			svc.Logger.Error("Server failed", "error", err)
		}
	case <-ctx.Done():
		svc.Logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), *shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			svc.Logger.Warn("Graceful shutdown incomplete", "error", err)
		}
	}
}
