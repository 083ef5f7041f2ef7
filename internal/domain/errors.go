package domain

import (
	"errors"
	"fmt"
)

// Base error types (sentinel errors).
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnsupported  = errors.New("unsupported operation")
	ErrInternal     = errors.New("internal error")
	ErrUnavailable  = errors.New("service unavailable")
	ErrRateLimited  = errors.New("rate limited")
)

// Precondition errors raised by the map state holder.
var (
	ErrNullArgument   = fmt.Errorf("argument is nil: %w", ErrInvalidInput)
	ErrNotInitialized = errors.New("map not initialized")
	ErrNotSupported   = fmt.Errorf("layer variant: %w", ErrUnsupported)
)

// Specific errors.
var (
	ErrMapNotFound        = fmt.Errorf("map: %w", ErrNotFound)
	ErrLayerNotFound      = fmt.Errorf("layer: %w", ErrNotFound)
	ErrPresetNotFound     = fmt.Errorf("preset: %w", ErrNotFound)
	ErrCallNotFound       = fmt.Errorf("call: %w", ErrNotFound)
	ErrTilesetNotFound    = fmt.Errorf("tileset: %w", ErrNotFound)
	ErrTileNotFound       = fmt.Errorf("tile: %w", ErrNotFound)
	ErrInvalidEvent       = fmt.Errorf("event: %w", ErrUnsupported)
	ErrRuntimeUnavailable = fmt.Errorf("runtime: %w", ErrUnavailable)
	ErrCallTimeout        = fmt.Errorf("runtime call timed out: %w", ErrUnavailable)
	ErrMapDisposed        = fmt.Errorf("map disposed: %w", ErrUnavailable)
	ErrTooManyMaps        = fmt.Errorf("map limit reached: %w", ErrUnavailable)
	ErrNotReady           = fmt.Errorf("service not ready: %w", ErrUnavailable)
	ErrStorageUnavailable = fmt.Errorf("storage: %w", ErrUnavailable)
)

// ValidationError represents a detailed validation error.
type ValidationError struct {
	Field      string      // Field that failed validation
	Value      interface{} // The invalid value
	Constraint string      // The constraint that was violated
	Message    string      // Human-readable message
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s (value: %v, constraint: %s)",
		e.Field, e.Message, e.Value, e.Constraint)
}

// Unwrap returns the underlying error type.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// BoundaryError is a failure reported by the mapping runtime for a single call.
type BoundaryError struct {
	Method  string // Boundary method name
	MapID   string // Map instance id
	LayerID string // Layer id, if the call addressed a layer
	Err     error  // Underlying error
}

// Error implements the error interface.
func (e *BoundaryError) Error() string {
	if e.LayerID != "" {
		return fmt.Sprintf("runtime call %s failed for map %s, layer %s: %v",
			e.Method, e.MapID, e.LayerID, e.Err)
	}
	return fmt.Sprintf("runtime call %s failed for map %s: %v", e.Method, e.MapID, e.Err)
}

// Unwrap returns the underlying error.
func (e *BoundaryError) Unwrap() error {
	return e.Err
}

// RemoteError is an error message raised inside the mapping runtime.
type RemoteError struct {
	Message string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	return "remote: " + e.Message
}

// StorageError represents an error during storage operations.
type StorageError struct {
	Operation string // Operation that failed (download, list, etc.)
	Key       string // Object key
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage error during %s for %s: %v",
			e.Operation, e.Key, e.Err)
	}
	return fmt.Sprintf("storage error during %s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string // Configuration field
	Message string // Error message
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidInput
}
