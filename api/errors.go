package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/amankumar20031130-afk/taskflow/domain"
)

type errorResponse struct {
	Message string              `json:"message"`
	Errors  []domain.FieldError `json:"errors,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// translateError maps an error returned by a handler to its HTTP status and body.
func translateError(err error) (int, errorResponse) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, errorResponse{Message: "Validation Error", Errors: verr.Fields}
	}
	var herr *echo.HTTPError
	if errors.As(err, &herr) {
		msg := http.StatusText(herr.Code)
		if herr.Message != nil {
			msg = fmt.Sprint(herr.Message)
		}
		return herr.Code, errorResponse{Message: msg}
	}

	switch {
	case errors.Is(err, domain.ErrDueDateInPast):
		return http.StatusBadRequest, errorResponse{Message: "Due date cannot be in the past"}
	case errors.Is(err, domain.ErrInvalidID):
		return http.StatusBadRequest, errorResponse{Message: "Invalid ID format"}
	case errors.Is(err, domain.ErrEmailTaken):
		return http.StatusConflict, errorResponse{Message: "User already exists"}
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorResponse{Message: "Invalid credentials"}
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, errorResponse{Message: "Unauthorized"}
	case errors.Is(err, domain.ErrTaskNotFound):
		return http.StatusNotFound, errorResponse{Message: "Task not found"}
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, errorResponse{Message: "User not found"}
	case errors.Is(err, domain.ErrNotificationNotFound):
		return http.StatusNotFound, errorResponse{Message: "Notification not found"}
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return http.StatusConflict, errorResponse{Message: "Task was modified concurrently"}
	}
	return http.StatusInternalServerError, errorResponse{Message: "Internal Server Error"}
}

// errorHandler is the echo HTTPErrorHandler for the service.
func errorHandler(logger *log.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, body := translateError(err)
		if status >= http.StatusInternalServerError {
			logger.WithError(err).WithFields(log.Fields{
				"method": c.Request().Method,
				"path":   c.Path(),
			}).Error("request failed")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.WithError(werr).Error("unable to write error response")
		}
	}
}
