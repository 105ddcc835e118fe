package api

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/darkh14/vmjobs"
)

// mapError converts vmjobs errors into huma status errors.
func mapError(err error) error {
	switch {
	case errors.Is(err, vmjobs.ErrJobNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, vmjobs.ErrJobAlreadyExists),
		errors.Is(err, vmjobs.ErrInvalidTransition):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, vmjobs.ErrTooManyJobs),
		errors.Is(err, vmjobs.ErrLaunchRateExceeded):
		return huma.Error429TooManyRequests(err.Error())
	case errors.Is(err, vmjobs.ErrInvalidParameter),
		errors.Is(err, vmjobs.ErrParameterNotFound),
		errors.Is(err, vmjobs.ErrInvalidUpdate):
		return huma.Error400BadRequest(err.Error())
	case errors.Is(err, vmjobs.ErrStoreClosed),
		errors.Is(err, vmjobs.ErrLauncherStopped):
		return huma.Error503ServiceUnavailable(err.Error())
	default:
		return huma.Error500InternalServerError(err.Error())
	}
}
