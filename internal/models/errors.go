package models

import (
	"errors"
	"fmt"
)

// ErrValidation represents a validation error with field and message.
type ErrValidation struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ErrValidation) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Common validation errors for catalog models.
var (
	// ErrNameRequired indicates a series was created without a display name.
	ErrNameRequired = errors.New("name is required")

	// ErrNormalizedNameRequired indicates a series has no comparison key.
	ErrNormalizedNameRequired = errors.New("normalized_name is required")

	// ErrInvalidContentType indicates a content type other than series or movie.
	ErrInvalidContentType = errors.New("invalid content type: must be 'series' or 'movie'")

	// ErrSeriesIDRequired indicates an episode without an owning series.
	ErrSeriesIDRequired = errors.New("series_id is required")

	// ErrChannelIDRequired indicates an episode or context without a channel.
	ErrChannelIDRequired = errors.New("channel_id is required")

	// ErrMessageIDRequired indicates an episode without a positive message id.
	ErrMessageIDRequired = errors.New("message_id must be positive")

	// ErrInvalidNumbering indicates a non-positive season or episode number.
	ErrInvalidNumbering = errors.New("season and episode numbers must be positive")
)

// Lookup errors returned by the service layer.
var (
	// ErrSeriesNotFound indicates no series has the requested ID.
	ErrSeriesNotFound = errors.New("series not found")

	// ErrEpisodeNotFound indicates no episode has the requested ID.
	ErrEpisodeNotFound = errors.New("episode not found")
)
