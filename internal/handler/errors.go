package handler

import (
	"errors"
	"net/http"

	"github.com/stemsi/exstem-cbt/internal/model"
	"github.com/stemsi/exstem-cbt/internal/response"
	"github.com/stemsi/exstem-cbt/internal/service"
	"github.com/stemsi/exstem-cbt/internal/session"
)

// classify maps a domain error to its HTTP status and API error code.
func classify(err error) (int, response.ErrCode) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, response.ErrSessionNotFound
	case errors.Is(err, service.ErrExamNotFound):
		return http.StatusNotFound, response.ErrExamNotFound
	case errors.Is(err, service.ErrExamNotAvailable):
		return http.StatusConflict, response.ErrExamNotAvailable
	case errors.Is(err, session.ErrIncompleteExam):
		return http.StatusConflict, response.ErrExamIncomplete
	case errors.Is(err, session.ErrNotInProgress):
		return http.StatusConflict, response.ErrNotInProgress
	case errors.Is(err, session.ErrClosed):
		return http.StatusGone, response.ErrSessionClosed
	case errors.Is(err, session.ErrUnknownQuestion):
		return http.StatusNotFound, response.ErrUnknownQuestion
	case errors.Is(err, model.ErrAnswerShape):
		return http.StatusUnprocessableEntity, response.ErrAnswerShape
	}
	return http.StatusInternalServerError, response.ErrInternal
}
