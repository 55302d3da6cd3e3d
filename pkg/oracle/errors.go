package oracle

import "errors"

var (
	// ErrTransport is returned when the provider cannot be reached or the API call fails
	ErrTransport = errors.New("oracle transport failure")

	// ErrMalformed is returned when the provider's answer cannot be decoded into a selection
	ErrMalformed = errors.New("oracle response malformed")
)
