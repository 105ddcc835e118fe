// Package engine wires the vmjobs subsystems together. It creates the
// extension registry, event broker, middleware chain, job launcher, query
// facade and action table, and provides the application-level API for
// registering and dispatching actions.
//
// This package exists to break the import cycle: the root vmjobs package
// defines the errors and configuration imported by every subsystem and so
// cannot import those packages back. Engine sits above all subsystem
// packages and below the application layer.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/darkh14/vmjobs"
	"github.com/darkh14/vmjobs/action"
	"github.com/darkh14/vmjobs/ext"
	"github.com/darkh14/vmjobs/id"
	"github.com/darkh14/vmjobs/job"
	"github.com/darkh14/vmjobs/jobinfo"
	mw "github.com/darkh14/vmjobs/middleware"
	"github.com/darkh14/vmjobs/observability"
	"github.com/darkh14/vmjobs/stream"
	"github.com/darkh14/vmjobs/worker"
)

const instrumentationName = "github.com/darkh14/vmjobs"

// Engine wraps a Dispatcher with typed subsystem access.
// Use Build() to create one from a Dispatcher.
type Engine struct {
	d          *vmjobs.Dispatcher
	extensions *ext.Registry
	jobStore   job.Store
	broker     *stream.Broker
	launcher   *worker.Launcher
	jobs       *jobinfo.Service
	actions    *action.Table
	mws        []mw.Middleware
	logger     *slog.Logger

	jobTimeout  time.Duration
	brokerOpts  []stream.BrokerOption
	withoutJobs bool

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) {
		eng.extensions.Register(e)
	}
}

// WithMiddleware adds middleware to the engine's chain.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) {
		eng.mws = append(eng.mws, m)
	}
}

// WithJobTimeout bounds every job callable. Zero (the default) leaves
// jobs unbounded.
func WithJobTimeout(d time.Duration) Option {
	return func(eng *Engine) {
		eng.jobTimeout = d
	}
}

// WithBrokerOptions configures the job event broker.
func WithBrokerOptions(opts ...stream.BrokerOption) Option {
	return func(eng *Engine) {
		eng.brokerOpts = append(eng.brokerOpts, opts...)
	}
}

// WithoutJobActions skips registering jobs_get_info and jobs_delete.
func WithoutJobActions() Option {
	return func(eng *Engine) {
		eng.withoutJobs = true
	}
}

// WithTracerProvider sets a custom OTel TracerProvider for the engine.
// If not set, the global otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) {
		eng.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom OTel MeterProvider for the engine.
// Both the metrics middleware and the observability extension use it.
// If not set, the global otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) {
		eng.meterProvider = mp
	}
}

// Build creates an Engine from an existing Dispatcher.
// The Dispatcher's store must implement job.Store.
func Build(d *vmjobs.Dispatcher, opts ...Option) (*Engine, error) {
	logger := d.Logger()
	store := d.Store()

	if store == nil {
		return nil, vmjobs.ErrNoStore
	}

	js, ok := store.(job.Store)
	if !ok {
		return nil, fmt.Errorf("vmjobs: store does not implement job.Store")
	}

	eng := &Engine{
		d:          d,
		extensions: ext.NewRegistry(logger),
		jobStore:   js,
		actions:    action.NewTable(),
		logger:     logger,
	}

	for _, opt := range opts {
		opt(eng)
	}

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer(instrumentationName))
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter(instrumentationName))
	} else {
		metricsMw = mw.Metrics()
	}

	// Register the observability metrics extension.
	var obsExt *observability.MetricsExtension
	if eng.meterProvider != nil {
		obsExt = observability.NewMetricsExtensionWithMeter(eng.meterProvider.Meter(instrumentationName + "/observability"))
	} else {
		obsExt = observability.NewMetricsExtension()
	}
	eng.extensions.Register(obsExt)

	eng.broker = stream.NewBroker(logger, eng.brokerOpts...)
	eng.extensions.Register(eng.broker)

	// Default middleware stack: recover → tracing → metrics → logging → timeout.
	defaultMws := []mw.Middleware{
		mw.Recover(logger),
		tracingMw,
		metricsMw,
		mw.Logging(logger),
		mw.Timeout(eng.jobTimeout, logger),
	}
	allMws := make([]mw.Middleware, 0, len(defaultMws)+len(eng.mws))
	allMws = append(allMws, defaultMws...)
	allMws = append(allMws, eng.mws...)

	config := d.Config()
	executor := worker.NewExecutor(eng.jobStore, eng.extensions, logger, allMws...)
	admission := worker.NewAdmission(config.MaxActiveJobs, config.LaunchRate, config.LaunchBurst)
	eng.launcher = worker.NewLauncher(eng.jobStore, executor, eng.extensions, logger,
		worker.WithAdmission(admission),
	)

	eng.jobs = jobinfo.NewService(eng.jobStore, eng.extensions, logger)
	if !eng.withoutJobs {
		if err := eng.actions.Register(eng.jobs.Actions()...); err != nil {
			return nil, err
		}
	}

	// Wire back into the Dispatcher.
	d.SetLauncher(eng.launcher)
	d.SetExtensions(eng.extensions)

	return eng, nil
}

// Register adds actions answered synchronously.
func (eng *Engine) Register(actions ...action.Action) error {
	return eng.actions.Register(actions...)
}

// RegisterBackground adds actions that run as background jobs when the
// request carries background_job=true. The job is named after the action.
func (eng *Engine) RegisterBackground(actions ...action.Action) error {
	wrapped := make([]action.Action, 0, len(actions))
	for _, a := range actions {
		if a.Handler == nil {
			return fmt.Errorf("action: register %q: handler is required", a.Name)
		}
		a.Handler = action.Background(eng.launcher, a.Name, a.Handler)
		wrapped = append(wrapped, a)
	}
	if err := eng.actions.Register(wrapped...); err != nil {
		return err
	}
	for _, a := range wrapped {
		eng.logger.Debug("background action registered", slog.String("action", a.Name))
	}
	return nil
}

// Dispatch runs the action registered under name.
func (eng *Engine) Dispatch(ctx context.Context, name string, params job.Parameters) (any, error) {
	return eng.actions.Dispatch(ctx, name, params)
}

// Launch starts fn as a background job named name.
func (eng *Engine) Launch(ctx context.Context, name string, params job.Parameters, fn job.Func) (id.JobID, error) {
	return eng.launcher.Launch(ctx, name, params, fn)
}

// Stop refuses new launches, waits for running jobs, notifies extensions
// and closes the store. Without a deadline on ctx the configured
// shutdown timeout applies.
func (eng *Engine) Stop(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		if timeout := eng.d.Config().ShutdownTimeout; timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
	}
	return eng.d.Stop(ctx)
}

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Dispatcher returns the underlying Dispatcher.
func (eng *Engine) Dispatcher() *vmjobs.Dispatcher { return eng.d }

// Store returns the job store.
func (eng *Engine) Store() job.Store { return eng.jobStore }

// Launcher returns the background job launcher.
func (eng *Engine) Launcher() *worker.Launcher { return eng.launcher }

// Jobs returns the job query and delete facade.
func (eng *Engine) Jobs() *jobinfo.Service { return eng.jobs }

// Actions returns the action table.
func (eng *Engine) Actions() *action.Table { return eng.actions }

// Broker returns the job event broker.
func (eng *Engine) Broker() *stream.Broker { return eng.broker }
