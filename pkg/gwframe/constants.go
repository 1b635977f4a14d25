// Package gwframe implements the framing used on the gwtunnel control channel.
//
// Every frame is laid out as
//
//     ID      4 bytes, ASCII logical connection id
//     SIZE    8 bytes, ASCII decimal payload length, zero padded
//     PAYLOAD SIZE bytes
//
// A frame with SIZE 0 has no payload and means the logical connection named by ID
// has been closed.
package gwframe

const (
	// IDLength is the width of the ID field
	IDLength = 4

	// SizeLength is the width of the SIZE field
	SizeLength = 8

	// HeaderSize is the number of bytes preceding the payload
	HeaderSize = IDLength + SizeLength

	// MaxPayloadSize is the largest payload that fits in the SIZE field
	MaxPayloadSize = 99999999

	// MaxMintedID is the largest sequence number that fits in the ID field
	MaxMintedID = 9999

	// ControlName is the local tag of the control socket. It is never a logical
	// connection id and never appears on the wire.
	ControlName = "ctrl"
)
