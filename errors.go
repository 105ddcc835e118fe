package vmjobs

import "errors"

var (
	// Store errors.
	ErrNoStore         = errors.New("vmjobs: no store configured")
	ErrStoreClosed     = errors.New("vmjobs: store closed")
	ErrMigrationFailed = errors.New("vmjobs: migration failed")

	// Job record errors.
	ErrJobNotFound       = errors.New("vmjobs: job not found")
	ErrJobAlreadyExists  = errors.New("vmjobs: job already exists")
	ErrInvalidTransition = errors.New("vmjobs: invalid status transition")
	ErrInvalidUpdate     = errors.New("vmjobs: invalid job update")
	ErrUpdateContention  = errors.New("vmjobs: status update lost every compare-and-swap attempt")

	// Launch errors.
	ErrTooManyJobs        = errors.New("vmjobs: too many active jobs")
	ErrLaunchRateExceeded = errors.New("vmjobs: launch rate exceeded")
	ErrLauncherStopped    = errors.New("vmjobs: launcher stopped")

	// Action errors.
	ErrUnknownAction     = errors.New("vmjobs: unknown action")
	ErrDuplicateAction   = errors.New("vmjobs: duplicate action")
	ErrParameterNotFound = errors.New("vmjobs: parameter not found")
	ErrInvalidParameter  = errors.New("vmjobs: invalid parameter")
	ErrServiceMismatch   = errors.New("vmjobs: service name mismatch")
)
