package extraction

import (
	"context"
	"errors"
	"time"

	"github.com/jonesrussell/campscout/internal/logger"
)

// Timeouts per fetch mode. Browser-driven extraction renders the page
// and needs more headroom.
type Timeouts struct {
	Fetch   time.Duration
	Browser time.Duration
}

// DefaultTimeouts returns the standard extraction timeouts.
func DefaultTimeouts() Timeouts {
	return Timeouts{Fetch: 60 * time.Second, Browser: 120 * time.Second}
}

// LocalWorker runs built-in modules in process and delegates stored
// script code to a remote runner. It is the Worker the orchestrator and
// the development pipeline share.
type LocalWorker struct {
	registry *Registry
	remote   Worker // runner for script code; may be nil
	timeouts Timeouts
	logger   logger.Logger
}

// NewLocalWorker creates a worker over the built-in registry with an
// optional remote runner for generated script code.
func NewLocalWorker(registry *Registry, remote Worker, timeouts Timeouts, log logger.Logger) *LocalWorker {
	if timeouts.Fetch <= 0 {
		timeouts.Fetch = DefaultTimeouts().Fetch
	}
	if timeouts.Browser <= 0 {
		timeouts.Browser = DefaultTimeouts().Browser
	}
	return &LocalWorker{
		registry: registry,
		remote:   remote,
		timeouts: timeouts,
		logger:   log,
	}
}

// Extract runs the requested logic against the URL under the mode's
// timeout. Timeout expiry is a failure, never a hung operation.
func (w *LocalWorker) Extract(ctx context.Context, url string, spec Spec, hints Hints) (*Result, error) {
	timeout := w.timeouts.Fetch
	if hints.Browser {
		timeout = w.timeouts.Browser
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	result, err := w.dispatch(ctx, url, spec, hints)
	duration := time.Since(start)

	if err != nil {
		w.logger.Warn("extraction failed",
			logger.String("url", url),
			logger.Duration("duration", duration),
			logger.Error(err),
		)
		return nil, err
	}

	w.logger.Debug("extraction finished",
		logger.String("url", url),
		logger.Int("sessions", len(result.Sessions)),
		logger.Duration("duration", duration),
	)

	return result, nil
}

func (w *LocalWorker) dispatch(ctx context.Context, url string, spec Spec, hints Hints) (*Result, error) {
	switch {
	case spec.ModuleName != "" && spec.ScriptCode != "":
		return nil, errors.New("extraction spec names both a module and script code")
	case spec.ModuleName != "":
		l, err := w.registry.Get(spec.ModuleName)
		if err != nil {
			return nil, err
		}
		return l.Extract(ctx, url, hints)
	case spec.ScriptCode != "":
		if w.remote == nil {
			return nil, errors.New("no script runner configured for stored extraction code")
		}
		return w.remote.Extract(ctx, url, spec, hints)
	default:
		return nil, errors.New("extraction spec is empty")
	}
}

// Ensure LocalWorker implements Worker.
var _ Worker = (*LocalWorker)(nil)

// WorkerFunc adapts a function to the Worker interface. Tests use this.
type WorkerFunc func(ctx context.Context, url string, spec Spec, hints Hints) (*Result, error)

// Extract calls f.
func (f WorkerFunc) Extract(ctx context.Context, url string, spec Spec, hints Hints) (*Result, error) {
	return f(ctx, url, spec, hints)
}
