package gwshare

import "errors"

var (
	// ErrControlLost is returned by a broker's Run when the control connection reaches
	// end of stream, delivers a malformed frame, or cannot be written
	ErrControlLost = errors.New("control connection lost")

	// ErrIDSpaceExhausted is returned by the id minter when every mintable id is live
	ErrIDSpaceExhausted = errors.New("no free logical connection id")

	// ErrDuplicateID is returned when a socket is added under an id that is already live
	ErrDuplicateID = errors.New("duplicate logical connection id")

	// ErrMultiplexerClosed is returned by Select after Close
	ErrMultiplexerClosed = errors.New("multiplexer closed")
)
