package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested document or blob was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTokenExpired indicates a bearer token past its expiry
	ErrTokenExpired = errors.New("token expired")

	// ErrNoCSVEntry indicates a source archive holds no CSV entry
	ErrNoCSVEntry = errors.New("no csv entry in archive")

	// ErrMalformedRow indicates a CSV row is missing required columns
	ErrMalformedRow = errors.New("malformed row")

	// ErrUnknownRegion indicates a sub-region code missing from the codebooks
	ErrUnknownRegion = errors.New("unknown region code")

	// ErrEmptyCodebook indicates a parsed source produced no region codes
	ErrEmptyCodebook = errors.New("empty codebook")

	// ErrRunStateMissing indicates the current run state document does not exist
	ErrRunStateMissing = errors.New("run state missing")
)
