package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ProfDrJones/journals/internal/editor"
	httperrors "github.com/ProfDrJones/journals/internal/http/errors"
	"github.com/ProfDrJones/journals/internal/settings"
	"github.com/ProfDrJones/journals/internal/store"
)

// errBadRequest marks malformed requests: bad JSON, unknown operations,
// unparseable path parameters.
var errBadRequest = errors.New("bad request")

const maxBodyBytes = 1 << 20

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return badRequest("decode body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors to HTTP status codes. Zero means the error
// is internal.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, settings.ErrUnknownKey):
		return http.StatusBadRequest
	case errors.Is(err, editor.ErrNotFound), errors.Is(err, editor.ErrInvalidRecurrenceID),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, editor.ErrNoInstance), errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, editor.ErrInvalidValue), errors.Is(err, editor.ErrUnsupportedRecurrenceShape),
		errors.Is(err, editor.ErrColorResolutionFailed), errors.Is(err, editor.ErrUnknownTimezone),
		errors.Is(err, settings.ErrInvalidValue):
		return http.StatusUnprocessableEntity
	}
	return 0
}

func writeError(logger *zap.Logger, w http.ResponseWriter, r *http.Request, err error, message string) {
	status := statusFor(err)
	switch status {
	case 0:
		httperrors.InternalError(logger, w, r, err, message)
	case http.StatusBadRequest:
		httperrors.BadRequestError(logger, w, r, err, err.Error())
	default:
		httperrors.ClientError(logger, w, r, err, status, err.Error())
	}
}
