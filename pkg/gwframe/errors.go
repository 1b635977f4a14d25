package gwframe

import "errors"

var (
	// ErrInvalidID is returned for ids that are not 4 printable bytes, or that use
	// the reserved control tag
	ErrInvalidID = errors.New("gwframe: invalid logical connection id")

	// ErrInvalidSize is returned when the SIZE field is not ASCII decimal
	ErrInvalidSize = errors.New("gwframe: invalid size field")

	// ErrFrameTooLarge is returned when a payload does not fit in the SIZE field
	ErrFrameTooLarge = errors.New("gwframe: payload too large")

	// ErrMalformedFrame is returned when a frame is truncated or its header cannot
	// be parsed. The stream cannot be resynchronized after this error.
	ErrMalformedFrame = errors.New("gwframe: malformed frame")
)
