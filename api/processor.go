package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/darkh14/vmjobs"
	"github.com/darkh14/vmjobs/job"
)

const (
	statusOK    = "OK"
	statusError = "error"
)

// Envelope is the body of every action processor response.
type Envelope struct {
	Status    string `json:"status"`
	ErrorText string `json:"error_text"`
	Result    any    `json:"result,omitempty"`
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// process answers POST / requests. Failures are reported in the envelope,
// never as HTTP errors.
func (a *API) process(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusOK, a.errorEnvelope(c, "", fmt.Errorf("read request: %w", err)))
	}
	body = bytes.TrimPrefix(body, utf8BOM)

	params := job.Parameters{}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &params); err != nil {
			return c.JSON(http.StatusOK, a.errorEnvelope(c, "", fmt.Errorf("%w: request body is not a JSON object: %v", vmjobs.ErrInvalidParameter, err)))
		}
	}

	requestType, _ := params.String("request_type")
	result, err := a.dispatch(c, requestType, params)
	if err != nil {
		return c.JSON(http.StatusOK, a.errorEnvelope(c, requestType, err))
	}
	return c.JSON(http.StatusOK, Envelope{Status: statusOK, Result: result})
}

func (a *API) dispatch(c echo.Context, requestType string, params job.Parameters) (any, error) {
	if a.serviceName != "" {
		got, _ := params.String("service_name")
		if got != a.serviceName {
			return nil, fmt.Errorf("%w: service name %q is not allowed, correct service name is %q",
				vmjobs.ErrServiceMismatch, got, a.serviceName)
		}
	}
	if requestType == "" {
		return nil, fmt.Errorf("%w: property \"request_type\" is required", vmjobs.ErrParameterNotFound)
	}
	return a.eng.Dispatch(c.Request().Context(), requestType, params)
}

func (a *API) errorEnvelope(c echo.Context, requestType string, err error) Envelope {
	level := slog.LevelWarn
	if !isClientError(err) {
		level = slog.LevelError
	}
	a.logger.Log(c.Request().Context(), level, "request failed",
		slog.String("request_type", requestType),
		slog.String("error", err.Error()),
	)
	return Envelope{Status: statusError, ErrorText: err.Error()}
}

func isClientError(err error) bool {
	for _, target := range []error{
		vmjobs.ErrServiceMismatch,
		vmjobs.ErrUnknownAction,
		vmjobs.ErrParameterNotFound,
		vmjobs.ErrInvalidParameter,
		vmjobs.ErrJobNotFound,
		vmjobs.ErrTooManyJobs,
		vmjobs.ErrLaunchRateExceeded,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
