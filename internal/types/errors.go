package types

import "errors"

var (
	// ErrInvalidInput is returned when a computation receives unusable input,
	// such as an empty coordinate set.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConfig is returned for rejected configuration (zoom range, padding).
	// It is always raised before any tile computation or download starts.
	ErrConfig = errors.New("configuration error")
	// ErrStorage is returned when the tile list file or the tile directory
	// cannot be read or written.
	ErrStorage = errors.New("storage error")
)
