package interaction

import "errors"

var (
	ErrProductNotFound = errors.New("product not found")

	ErrInvalidKind = errors.New("invalid interaction kind")

	ErrInvalidDuration = errors.New("hover requires a positive duration")
)
