// Package resolveerr defines the typed error kinds the resolution core
// surfaces (spec §7), wrapping them in ectoerror/httperror the same way
// the teacher wraps every repository-layer failure, even outside an HTTP
// transport.
package resolveerr

import (
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
)

// Kind identifies one of the core's error surfaces.
type Kind string

const (
	InputInvalid          Kind = "INPUT_INVALID"
	NotFound              Kind = "NOT_FOUND"
	StateInvalid          Kind = "STATE_INVALID"
	LockAcquisitionFailed Kind = "LOCK_ACQUISITION_FAILED"
	MergeFailed           Kind = "MERGE_FAILED"
	BatchMemoryExceeded   Kind = "BATCH_MEMORY_EXCEEDED"
	BatchTooLarge         Kind = "BATCH_TOO_LARGE"
	StoreUnavailable      Kind = "STORE_UNAVAILABLE"
	LLMUnavailable        Kind = "LLM_UNAVAILABLE"
)

var statusByKind = map[Kind]int{
	InputInvalid:          http.StatusBadRequest,
	NotFound:              http.StatusNotFound,
	StateInvalid:          http.StatusConflict,
	LockAcquisitionFailed: http.StatusLocked,
	MergeFailed:           http.StatusInternalServerError,
	BatchMemoryExceeded:   http.StatusRequestEntityTooLarge,
	BatchTooLarge:         http.StatusRequestEntityTooLarge,
	StoreUnavailable:      http.StatusServiceUnavailable,
	LLMUnavailable:        http.StatusServiceUnavailable,
}

// New builds an error of the given kind carrying msg.
func New(kind Kind, msg string) error {
	err := httperror.NewHTTPError(statusByKind[kind], msg)
	return attachKind(err, kind, nil)
}

// Newf builds an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) error {
	return New(kind, fmt.Sprintf(format, args...))
}

// WithMeta builds an error of the given kind carrying structured metadata,
// e.g. the failed merge step name for MergeFailed.
func WithMeta(kind Kind, msg string, meta map[string]any) error {
	err := httperror.NewHTTPError(statusByKind[kind], msg)
	return attachKind(err, kind, meta)
}

func attachKind(err error, kind Kind, meta map[string]any) error {
	he := httperror.ToHTTPError(err)
	if he.Meta == nil {
		he.Meta = map[string]any{}
	}
	he.Meta["kind"] = string(kind)
	for k, v := range meta {
		he.Meta[k] = v
	}
	return he
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// KindOf extracts the Kind attached to err, or "" if err was not built by
// this package.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if !httperror.IsHTTPError(err) {
		return ""
	}
	he := httperror.ToHTTPError(err)
	if he.Meta == nil {
		return ""
	}
	k, _ := he.Meta["kind"].(string)
	return Kind(k)
}
