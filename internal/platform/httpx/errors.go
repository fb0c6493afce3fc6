package httpx

import (
	"errors"
	"net/http"
	"strings"
)

// Sentinel errors shared by the domain layers.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflicting state")
)

var sentinels = []error{
	ErrNotFound, ErrDuplicate, ErrValidation,
	ErrForbidden, ErrUnauthorized, ErrConflict,
}

// RespondError maps domain errors to HTTP responses. The detail message is
// forwarded verbatim; clients surface it to the user unchanged.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", Detail(err))
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", Detail(err))
	case errors.Is(err, ErrConflict):
		Problem(w, http.StatusBadRequest, "Invalid State", Detail(err))
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", Detail(err))
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", Detail(err))
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", Detail(err))
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// Detail strips the sentinel prefix so clients see only the human-readable
// part.
func Detail(err error) string {
	msg := err.Error()
	for _, sentinel := range sentinels {
		if prefix := sentinel.Error() + ": "; strings.HasPrefix(msg, prefix) {
			return msg[len(prefix):]
		}
	}
	return msg
}
