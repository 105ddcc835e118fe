// # Building an Engine
//
//	d, err := vmjobs.New(
//	    vmjobs.WithStore(pgStore),
//	    vmjobs.WithMaxActiveJobs(8),
//	)
//
//	eng, err := engine.Build(d,
//	    engine.WithExtension(myExtension),
//	    engine.WithJobTimeout(time.Hour),
//	)
//
// # Registering Actions
//
//	// Answered inline.
//	eng.Register(action.Action{Name: "get_version", Handler: version})
//
//	// Launched in the background when background_job=true.
//	eng.RegisterBackground(action.Action{
//	    Name:     "fit",
//	    Required: []string{"model_id"},
//	    Handler:  fit,
//	})
//
// # Dispatching
//
//	res, err := eng.Dispatch(ctx, "fit", job.Parameters{
//	    "model_id":       "m1",
//	    "background_job": true,
//	})
//	// res is an action.LaunchResult carrying the new job id.
//
// # Options
//
//   - [WithExtension] registers a lifecycle extension
//   - [WithMiddleware] adds a middleware to the execution chain
//   - [WithJobTimeout] bounds every job callable
//   - [WithBrokerOptions] configures the event broker
//   - [WithTracerProvider] sets the OpenTelemetry tracer provider
//   - [WithMeterProvider] sets the OpenTelemetry meter provider
package engine
