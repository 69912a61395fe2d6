package bootstrap

import (
	"github.com/jonesrussell/campscout/internal/api"
	"github.com/jonesrussell/campscout/internal/config"
	"github.com/jonesrussell/campscout/internal/logger"
)

// ServerComponents holds the HTTP server and its error channel.
type ServerComponents struct {
	Server    *api.Server
	ErrorChan chan error
}

// SetupHTTPServer builds the router, handlers, and server, and starts
// listening in a goroutine. Listen errors arrive on ErrorChan.
func SetupHTTPServer(
	cfg *config.Config,
	log logger.Logger,
	db *DatabaseComponents,
	services *ServiceComponents,
) *ServerComponents {
	handlers := api.Handlers{
		Scrape:   api.NewScrapeHandler(services.Orchestrator, log),
		Sources:  api.NewSourceHandler(db.Sources, services.Alerts, log),
		Jobs:     api.NewJobHandler(db.Jobs, log),
		Requests: api.NewRequestHandler(db.Requests, services.Pipeline, log),
		Alerts:   api.NewAlertHandler(services.Alerts, log),
		Dedup:    api.NewDedupHandler(services.Scanner, services.Merger, log),
		Health:   api.NewHealthHandler(services.Orchestrator, services.Metrics),
	}

	router := api.NewRouter(handlers, log)
	server := api.NewServer(cfg.Server.Address(), router, log)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	return &ServerComponents{Server: server, ErrorChan: errChan}
}
