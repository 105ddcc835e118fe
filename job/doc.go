// Package job defines the job record, its status machine and the store
// contract shared by every backend.
//
// # Job Record
//
// A [Job] tracks one background execution of a long operation. Status
// moves forward only:
//
//	pending → running → completed
//	pending → running → failed
//	pending → failed
//
// The last edge is used when a worker cannot mark its record running.
// Completed and failed are terminal.
//
// Mutations go through [Update]. Backends call [Update.Apply] on the
// current record and persist the result only if the record still has the
// status that was read, so concurrent updates of one record serialize.
//
// # Parameters
//
// [Parameters] is the JSON-like mapping an action or job callable
// receives. The launcher stores its JSON encoding on the record for
// traceability; it is never re-executed.
package job
