// Package jobinfo is the query and delete facade over the job store. It
// projects records for callers, translates request parameters into
// job.Filter values and exposes both operations as actions.
package jobinfo
