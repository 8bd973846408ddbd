// Package common holds the response helpers shared by the y12d API handlers.
package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apierrors "github.com/bitswalk/y12/src/common/errors"
	"github.com/bitswalk/y12/src/y12d/build"
	"github.com/bitswalk/y12/src/y12d/db"
	"github.com/bitswalk/y12/src/y12d/storage"
)

// ErrorResponse is the body of every error answer
type ErrorResponse = apierrors.Response

func respond(c *gin.Context, status int, message, reason string) {
	c.JSON(status, ErrorResponse{
		Error:   http.StatusText(status),
		Code:    status,
		Message: message,
		Reason:  reason,
	})
}

// BadRequest sends a 400 Bad Request response
func BadRequest(c *gin.Context, message string) {
	respond(c, http.StatusBadRequest, message, "")
}

// NotFound sends a 404 Not Found response
func NotFound(c *gin.Context, message string) {
	respond(c, http.StatusNotFound, message, "")
}

// Unauthorized sends a 401 Unauthorized response
func Unauthorized(c *gin.Context, message string) {
	respond(c, http.StatusUnauthorized, message, "")
}

// InternalError sends a 500 Internal Server Error response
func InternalError(c *gin.Context, message string) {
	respond(c, http.StatusInternalServerError, message, "")
}

// AbortTooManyRequests aborts the request with a 429 Too Many Requests response
func AbortTooManyRequests(c *gin.Context, message string) {
	resp := apierrors.ErrRateLimited.ToResponse()
	resp.Message = message
	c.AbortWithStatusJSON(http.StatusTooManyRequests, resp)
}

// Translate maps package sentinels to the domain error the API answers with
func Translate(err error) *apierrors.Error {
	var e *apierrors.Error
	switch {
	case errors.As(err, &e):
		return e
	case errors.Is(err, db.ErrJobNotFound):
		return apierrors.ErrJobNotFound
	case errors.Is(err, db.ErrJobTerminal):
		return apierrors.ErrJobTerminal
	case errors.Is(err, db.ErrInvalidTransition):
		return apierrors.ErrJobTransition.WithMessage(err.Error())
	case errors.Is(err, db.ErrVersionConflict):
		return apierrors.ErrJobConflict
	case errors.Is(err, build.ErrInvalidRequest):
		return apierrors.ErrMissingRequiredField.WithMessage(err.Error())
	case errors.Is(err, build.ErrUnknownStatus):
		return apierrors.ErrInvalidFieldValue.WithMessage(err.Error())
	case errors.Is(err, build.ErrChecksumMismatch):
		return apierrors.ErrChecksumMismatch.WithMessage(err.Error())
	case errors.Is(err, build.ErrUploadNotVerified):
		return apierrors.ErrStorageVerifyFailed
	case errors.Is(err, build.ErrNotRunning):
		return apierrors.ErrUnavailable
	case storage.IsNotFound(err):
		return apierrors.ErrArtifactNotFound
	}
	return apierrors.ErrInternal.WithMessage(err.Error())
}

// Error answers with the status and message of err
func Error(c *gin.Context, err error) {
	e := Translate(err)
	c.JSON(e.HTTPStatus, e.ToResponse())
}

// ErrorWithDetails answers like Error and adds fields to the body
func ErrorWithDetails(c *gin.Context, err error, details gin.H) {
	e := Translate(err)
	body := gin.H{
		"error":   http.StatusText(e.HTTPStatus),
		"code":    e.HTTPStatus,
		"message": e.Message,
		"reason":  e.Reason(),
	}
	for k, v := range details {
		body[k] = v
	}
	c.JSON(e.HTTPStatus, body)
}
