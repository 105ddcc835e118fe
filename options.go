package vmjobs

import (
	"context"
	"log/slog"
	"time"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher) error

// Storer is the minimal store interface held by the Dispatcher. It covers
// lifecycle operations only; the job record operations live on job.Store,
// which every backend in the store packages also implements.
type Storer interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// launcherRunner is an internal interface for launcher lifecycle.
type launcherRunner interface {
	Stop(ctx context.Context) error
}

// extensionEmitter is an internal interface for extension lifecycle events.
type extensionEmitter interface {
	EmitShutdown(ctx context.Context)
}

// Dispatcher owns the configuration, logger and store shared by the job
// launcher, the query facade and the action layer.
//
// Create one with New() and functional options, then pass it to
// engine.Build which wires the subsystems together.
type Dispatcher struct {
	config     Config
	logger     *slog.Logger
	store      Storer
	extensions extensionEmitter
	launcher   launcherRunner

	stopped bool
}

// New creates a new Dispatcher with the given options.
func New(opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Logger returns the dispatcher's logger.
func (d *Dispatcher) Logger() *slog.Logger { return d.logger }

// Store returns the dispatcher's store.
func (d *Dispatcher) Store() Storer { return d.store }

// Config returns a copy of the dispatcher's configuration.
func (d *Dispatcher) Config() Config { return d.config }

// SetLauncher sets the job launcher (called by the engine package).
func (d *Dispatcher) SetLauncher(l launcherRunner) { d.launcher = l }

// SetExtensions sets the extension emitter (called by the engine package).
func (d *Dispatcher) SetExtensions(e extensionEmitter) { d.extensions = e }

// Stop waits for running jobs, notifies extensions and closes the store.
// It is safe to call more than once.
func (d *Dispatcher) Stop(ctx context.Context) error {
	if d.stopped {
		return nil
	}
	d.stopped = true

	if d.launcher != nil {
		if err := d.launcher.Stop(ctx); err != nil {
			d.logger.Error("launcher stop error", slog.String("error", err.Error()))
		}
	}
	if d.extensions != nil {
		d.extensions.EmitShutdown(ctx)
	}
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// WithLogger sets the structured logger for the dispatcher.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) error {
		d.logger = l
		return nil
	}
}

// WithStore sets the persistence backend for the dispatcher.
// The store must implement Storer at minimum; typically it will be a
// store.Store which also implements job.Store.
func WithStore(s Storer) Option {
	return func(d *Dispatcher) error {
		d.store = s
		return nil
	}
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(d *Dispatcher) error {
		d.config = cfg
		return nil
	}
}

// WithServiceName sets the service name expected in action requests.
func WithServiceName(name string) Option {
	return func(d *Dispatcher) error {
		d.config.ServiceName = name
		return nil
	}
}

// WithMaxActiveJobs bounds the number of concurrently executing jobs.
func WithMaxActiveJobs(n int) Option {
	return func(d *Dispatcher) error {
		if n < 0 {
			return ErrInvalidParameter
		}
		d.config.MaxActiveJobs = n
		return nil
	}
}

// WithLaunchRate limits launches to rate per second with the given burst.
func WithLaunchRate(rate float64, burst int) Option {
	return func(d *Dispatcher) error {
		if rate < 0 || burst < 0 {
			return ErrInvalidParameter
		}
		d.config.LaunchRate = rate
		d.config.LaunchBurst = burst
		return nil
	}
}

// WithShutdownTimeout sets how long Stop waits for running jobs.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) error {
		d.config.ShutdownTimeout = timeout
		return nil
	}
}
