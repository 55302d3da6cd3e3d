package catalog

import "errors"

var (
	// ErrSourceUnreadable is returned when the catalog source file cannot be read
	ErrSourceUnreadable = errors.New("catalog source unreadable")

	// ErrParseFailed is returned when the catalog source does not parse or validate
	ErrParseFailed = errors.New("catalog parse failed")

	// ErrDuplicateName is returned when two records share a capability name
	ErrDuplicateName = errors.New("duplicate capability name")
)
