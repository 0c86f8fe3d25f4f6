package request

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("request: validation failed")

	ErrEmptyMessage = fmt.Errorf("%w: empty message", ErrValidation)
	ErrNotObject    = fmt.Errorf("%w: message is not an object", ErrValidation)
	ErrMissingURL   = fmt.Errorf("%w: missing url", ErrValidation)
	ErrInvalidURL   = fmt.Errorf("%w: invalid url", ErrValidation)
)
