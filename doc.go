// Package vmjobs runs long operations of the vector model service as
// durable background jobs and exposes them through a small action-dispatch
// layer.
//
// A caller sends an action request. When the request carries
// background_job=true, the handler is launched on its own goroutine and the
// caller immediately receives the new job id. The job record moves through
// pending, running and then completed or failed, and can be queried or
// deleted later.
//
// # Quick Start
//
//	d, err := vmjobs.New(
//	    vmjobs.WithStore(memory.New()),
//	    vmjobs.WithMaxActiveJobs(8),
//	)
//	eng, err := engine.Build(d)
//	eng.RegisterBackground(action.Action{Name: "fit", Handler: fit})
//
// # Architecture
//
// The job package defines the record and the job.Store contract. Backends
// live under store/ (memory, postgres, bun, redis, mongo). The worker
// package launches and executes jobs through a middleware chain, ext
// carries lifecycle hooks, jobinfo is the query and delete facade, and
// action holds the dispatch table and the background wrapper.
//
// Job and worker ids are TypeIDs: type-prefixed, K-sortable, UUIDv7-based.
package vmjobs
