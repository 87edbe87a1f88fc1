package manager

import (
	"errors"

	"chatd/internal/engine"
)

// tooBusyError signals that the manager cannot take the request right now
// (a model is loading) for 429 mapping.
type tooBusyError struct{ modelID string }

func (e tooBusyError) Error() string { return "too busy: " + e.modelID }

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool {
	var tb tooBusyError
	return errors.As(err, &tb)
}

// modelNotFoundError is returned when a requested model is not present in the registry.
type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

// ErrModelNotFound returns a modelNotFoundError for id.
func ErrModelNotFound(id string) error { return modelNotFoundError{id: id} }

// IsModelNotFound reports whether the error indicates a missing model id.
func IsModelNotFound(err error) bool {
	var nf modelNotFoundError
	return errors.As(err, &nf)
}

// ErrNoModel is returned by chat calls when nothing is loaded and no default
// model is configured.
var ErrNoModel = errors.New("no model loaded")

// IsNoModel reports whether err is (or wraps) ErrNoModel.
func IsNoModel(err error) bool { return errors.Is(err, ErrNoModel) }

// IsDependencyUnavailable reports whether err indicates a missing/failed
// runtime dependency (e.g. a build without llama support).
func IsDependencyUnavailable(err error) bool { return engine.IsDependencyUnavailable(err) }
