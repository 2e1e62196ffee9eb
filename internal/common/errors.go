// Package common defines sentinel errors shared by the offload pipeline,
// its persistence adapters and the outer surfaces (hooks, CLI). Callers
// should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Item-specific errors.
	ErrorIncorrectMetadata = errors.New("incorrect metadata")
	ErrNoPrimaryPath       = errors.New("no primary file path")
	ErrDownloadFailed      = errors.New("primary file download failed")

	// Rendering errors. ErrUnsupportedFormat means "no thumbnail available"
	// and is never fatal for the caller.
	ErrUnsupportedFormat = errors.New("unsupported source format")
	ErrRenderFailed      = errors.New("render failed")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
