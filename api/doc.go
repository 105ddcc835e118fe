// Package api exposes an Engine over HTTP with echo.
//
// Routes:
//
//	POST   /                     action processor (service_name, request_type, parameters)
//	GET    /health               store connectivity
//	GET    /v1/jobs              list job infos (huma, OpenAPI at /v1/openapi.json)
//	GET    /v1/jobs/stats        counts per status
//	GET    /v1/jobs/{jobId}      full job record
//	DELETE /v1/jobs/{jobId}      delete a job record
//	GET    /v1/jobs/stream       websocket of job lifecycle events (?topic, ?type, ?codec)
//
// The action processor always answers 200 with an envelope:
//
//	{"status": "OK", "error_text": "", "result": ...}
//	{"status": "error", "error_text": "..."}
package api
