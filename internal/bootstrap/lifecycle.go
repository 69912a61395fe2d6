package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonesrussell/campscout/internal/logger"
)

const shutdownTimeout = 30 * time.Second

// RunUntilInterrupt blocks until a termination signal arrives or the
// server fails, then shuts everything down in reverse start order.
func RunUntilInterrupt(
	log logger.Logger,
	server *ServerComponents,
	services *ServiceComponents,
) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-server.ErrorChan:
		if err != nil {
			log.Error("server error", logger.Error(err))
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-sigChan:
		log.Info("shutdown signal received", logger.String("signal", sig.String()))
		return shutdown(log, server, services)
	}
}

// shutdown stops intake first (server, then scheduler) so no new work
// arrives while the orchestrator drains in-flight jobs.
func shutdown(log logger.Logger, server *ServerComponents, services *ServiceComponents) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Server.Shutdown(ctx); err != nil {
		log.Error("HTTP server shutdown failed", logger.Error(err))
	}

	if err := services.Scheduler.Stop(ctx); err != nil {
		log.Error("scheduler shutdown failed", logger.Error(err))
	}

	if err := services.Orchestrator.Stop(ctx); err != nil {
		log.Error("orchestrator drain failed", logger.Error(err))
		return fmt.Errorf("orchestrator drain: %w", err)
	}

	log.Info("shutdown complete")
	return nil
}
