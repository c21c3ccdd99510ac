package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/fulldump/box"

	"github.com/fulldump/inceptiontx/database"
	"github.com/fulldump/inceptiontx/service"
	"github.com/fulldump/inceptiontx/txerror"
)

type PrettyError struct {
	Message     string `json:"message"`
	Description string `json:"description"`
	Code        string `json:"code,omitempty"`
}

func (p PrettyError) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"error": struct {
			Message     string `json:"message"`
			Description string `json:"description"`
			Code        string `json:"code,omitempty"`
		}{
			p.Message,
			p.Description,
			p.Code,
		},
	})
}

func (p PrettyError) MarshalTo(w io.Writer) error {
	return json.NewEncoder(w).Encode(p)
}

var (
	ErrUnavailable  = errors.New("temporary unavailable")
	ErrUnauthorized = errors.New("unauthorized")
)

func InterceptorUnavailable(db *database.Database) box.I {
	return func(next box.H) box.H {
		return func(ctx context.Context) {

			status := db.GetStatus()
			if status == database.StatusOpening || status == database.StatusClosing {
				box.SetError(ctx, fmt.Errorf("%w: %s", ErrUnavailable, status))
				return
			}
			next(ctx)
		}
	}
}

// statusOf maps an error to its HTTP status and a short description.
func statusOf(ctx context.Context, err error) (int, string) {

	switch {
	case errors.Is(err, box.ErrResourceNotFound):
		return http.StatusNotFound, fmt.Sprintf("resource '%s' not found", box.GetRequest(ctx).URL.String())
	case errors.Is(err, box.ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed, fmt.Sprintf("method '%s' not allowed", box.GetRequest(ctx).Method)
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "user is not authenticated"
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable, "database is not operating, try again later"
	case errors.Is(err, service.ErrorContainerNotFound):
		return http.StatusNotFound, "container not found"
	case errors.Is(err, service.ErrorRecordNotFound):
		return http.StatusNotFound, "record not found"
	}

	var syntaxError *json.SyntaxError
	if errors.As(err, &syntaxError) {
		return http.StatusBadRequest, "Malformed JSON"
	}

	switch txerror.CodeOf(err) {
	case txerror.InvalidState, txerror.IllegalOperation:
		return http.StatusBadRequest, "the request cannot be performed"
	case txerror.ValidationFailed:
		return http.StatusUnprocessableEntity, "a record does not pass validation"
	case txerror.IndexConstraintViolated:
		return http.StatusConflict, "an index constraint would be violated"
	case txerror.ConcurrentModification:
		return http.StatusConflict, "a record was modified by another transaction"
	}

	return http.StatusInternalServerError, "Unexpected error"
}

func PrettyErrorInterceptor(next box.H) box.H {
	return func(ctx context.Context) {

		next(ctx)

		err := box.GetError(ctx)
		if err == nil {
			return
		}

		status, description := statusOf(ctx, err)

		pretty := PrettyError{
			Message:     err.Error(),
			Description: description,
		}
		if code := txerror.CodeOf(err); code != txerror.Unknown {
			pretty.Code = code.String()
		}

		w := box.GetResponse(ctx)
		w.WriteHeader(status)
		pretty.MarshalTo(w)
	}
}
