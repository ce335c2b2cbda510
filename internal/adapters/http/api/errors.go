package api

import (
	"errors"
	"net/http"

	"github.com/okian/faceoff/internal/adapters/catalog"
	service "github.com/okian/faceoff/internal/app"
	"github.com/okian/faceoff/internal/domain/merge"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("missing bearer token")
)

// opError tags an error with the handler operation that produced it.
type opError struct {
	op   string
	kind error
	err  error
}

func (e *opError) Error() string {
	switch {
	case e.err == nil:
		return e.op + ": " + e.kind.Error()
	case e.kind == nil:
		return e.op + ": " + e.err.Error()
	default:
		return e.op + ": " + e.kind.Error() + ": " + e.err.Error()
	}
}

func (e *opError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.kind != nil {
		out = append(out, e.kind)
	}
	if e.err != nil {
		out = append(out, e.err)
	}
	return out
}

// Wrap tags err with op. A nil err stays nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &opError{op: op, err: err}
}

// WrapKind tags err with op and a sentinel kind; errors.Is matches both.
func WrapKind(op string, kind, err error) error {
	return &opError{op: op, kind: kind, err: err}
}

// NewKind reports a sentinel kind from op with no underlying cause.
func NewKind(op string, kind error) error {
	return &opError{op: op, kind: kind}
}

// classify maps an error to an HTTP status and a stable error code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, merge.ErrInvalidChoice),
		errors.Is(err, service.ErrInvalidUser),
		errors.Is(err, service.ErrInvalidDataset),
		errors.Is(err, service.ErrNoItems),
		errors.Is(err, service.ErrTooManyItems),
		errors.Is(err, catalog.ErrNoIDs),
		errors.Is(err, catalog.ErrTooManyIDs):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrDatasetNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrStaleSession):
		return http.StatusConflict, "stale_session"
	case errors.Is(err, catalog.ErrMissingToken):
		return http.StatusServiceUnavailable, "catalog_unavailable"
	case errors.Is(err, catalog.ErrUpstream):
		return http.StatusBadGateway, "upstream_error"
	case errors.Is(err, service.ErrCatalogUnavailable),
		errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, service.ErrCorruptSession):
		return http.StatusInternalServerError, "corrupt_session"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
