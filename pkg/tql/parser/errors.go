package parser

import "errors"

var (
	// ErrInvalidSyntax is the base error for queries matching no grammar rule.
	ErrInvalidSyntax = errors.New("invalid query syntax")

	// ErrUnknownDataType is returned for a selector naming an unknown
	// collection.
	ErrUnknownDataType = errors.New("unknown data type")

	// ErrUnknownAggregate is returned for an unrecognized aggregate function.
	ErrUnknownAggregate = errors.New("unknown aggregate function")

	// ErrInvalidDuration is returned for a malformed range duration.
	ErrInvalidDuration = errors.New("invalid duration format")

	errEmptyQuery = errors.New("empty query")
)
