package gwframe

import (
	"errors"
	"fmt"
	"io"
	"strconv"
)

// Frame is a single unit of traffic on the control channel. It carries a slice of the
// byte stream of one logical connection, identified by ID. A Frame with an empty Payload
// is a close notification for that logical connection.
type Frame struct {
	ID      string
	Payload []byte
}

// NewDataFrame creates a Frame that carries payload for logical connection id
func NewDataFrame(id string, payload []byte) *Frame {
	return &Frame{ID: id, Payload: payload}
}

// NewCloseFrame creates a zero-size Frame telling the peer that logical connection id
// has been closed
func NewCloseFrame(id string) *Frame {
	return &Frame{ID: id}
}

// Size returns the payload length as it is carried in the SIZE field
func (f *Frame) Size() int {
	return len(f.Payload)
}

// IsClose returns true if this is a close notification
func (f *Frame) IsClose() bool {
	return len(f.Payload) == 0
}

func (f *Frame) String() string {
	if f.IsClose() {
		return fmt.Sprintf("Frame(%s, close)", f.ID)
	}
	return fmt.Sprintf("Frame(%s, %d bytes)", f.ID, len(f.Payload))
}

// ValidateID returns nil if id can be carried in the ID field of a frame as a logical
// connection id. The reserved control tag is rejected.
func ValidateID(id string) error {
	if len(id) != IDLength {
		return fmt.Errorf("%w: %q must be %d bytes", ErrInvalidID, id, IDLength)
	}
	if id == ControlName {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidID, id)
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if c < 0x21 || c > 0x7e {
			return fmt.Errorf("%w: %q contains non-printable byte 0x%02x", ErrInvalidID, id, c)
		}
	}
	return nil
}

// FormatID renders a minted sequence number as a zero-padded 4-digit logical
// connection id. n must be in [1, MaxMintedID].
func FormatID(n int) (string, error) {
	if n < 1 || n > MaxMintedID {
		return "", fmt.Errorf("%w: sequence number %d out of range", ErrInvalidID, n)
	}
	return fmt.Sprintf("%0*d", IDLength, n), nil
}

// formatSize renders a payload length into the fixed-width SIZE field
func formatSize(n int) []byte {
	return []byte(fmt.Sprintf("%0*d", SizeLength, n))
}

// parseSize parses the fixed-width SIZE field. Only ASCII decimal digits are accepted.
func parseSize(b []byte) (int, error) {
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("%w: %q", ErrInvalidSize, b)
		}
	}
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %s", ErrInvalidSize, b, err)
	}
	return n, nil
}

// Marshal serializes a frame into a single buffer: ID, SIZE, then PAYLOAD
func Marshal(f *Frame) ([]byte, error) {
	if err := ValidateID(f.ID); err != nil {
		return nil, err
	}
	if len(f.Payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(f.Payload))
	}
	b := make([]byte, 0, HeaderSize+len(f.Payload))
	b = append(b, f.ID...)
	b = append(b, formatSize(len(f.Payload))...)
	b = append(b, f.Payload...)
	return b, nil
}

// Encode writes one frame to w with a single Write call, so that concurrent
// writers serialized by the caller never interleave a header with another
// frame's payload.
func Encode(w io.Writer, f *Frame) error {
	b, err := Marshal(f)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// Decode reads exactly one frame from r. SIZE is authoritative: the payload is
// accumulated across as many short reads as the transport delivers.
//
// If reading fails before any byte of the ID has arrived, Decode returns the read
// error unwrapped; io.EOF there means "connection gone". Any later short read, or a
// SIZE field that is not decimal, returns an error wrapping ErrMalformedFrame.
func Decode(r io.Reader) (*Frame, error) {
	var header [HeaderSize]byte

	n, err := io.ReadFull(r, header[:IDLength])
	if err != nil {
		if n == 0 {
			return nil, err
		}
		return nil, fmt.Errorf("%w: reading id: %s", ErrMalformedFrame, err)
	}

	if _, err = io.ReadFull(r, header[IDLength:]); err != nil {
		return nil, fmt.Errorf("%w: reading size for id %q: %s", ErrMalformedFrame, header[:IDLength], err)
	}

	id := string(header[:IDLength])
	size, err := parseSize(header[IDLength:])
	if err != nil {
		return nil, fmt.Errorf("%w: id %q: %s", ErrMalformedFrame, id, err)
	}

	f := &Frame{ID: id}
	if size > 0 {
		f.Payload = make([]byte, size)
		if _, err = io.ReadFull(r, f.Payload); err != nil {
			return nil, fmt.Errorf("%w: reading %d byte payload for id %q: %s", ErrMalformedFrame, size, id, err)
		}
	}
	return f, nil
}

// IsEndOfStream returns true if err reports a clean end of stream rather than a
// broken frame
func IsEndOfStream(err error) bool {
	return errors.Is(err, io.EOF) && !errors.Is(err, ErrMalformedFrame)
}
