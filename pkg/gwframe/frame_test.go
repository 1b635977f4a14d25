package gwframe

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"testing"
	"testing/iotest"
)

func TestFrameEncodeDecode(t *testing.T) {
	for _, size := range []int{0, 1, 4095, 4096, 100000} {
		payload := make([]byte, size)
		rand.Read(payload)

		var buf bytes.Buffer
		if err := Encode(&buf, NewDataFrame("0042", payload)); err != nil {
			t.Fatalf("Encode(%d bytes) failed: %v", size, err)
		}
		if buf.Len() != HeaderSize+size {
			t.Errorf("Encoded length for %d byte payload: got %d, want %d", size, buf.Len(), HeaderSize+size)
		}

		decoded, err := Decode(&buf)
		if err != nil {
			t.Fatalf("Decode(%d bytes) failed: %v", size, err)
		}
		if decoded.ID != "0042" {
			t.Errorf("ID mismatch: got %q, want %q", decoded.ID, "0042")
		}
		if decoded.Size() != size {
			t.Errorf("Size mismatch: got %d, want %d", decoded.Size(), size)
		}
		if !bytes.Equal(decoded.Payload, payload) {
			t.Errorf("Payload mismatch for %d byte frame", size)
		}
		if decoded.IsClose() != (size == 0) {
			t.Errorf("IsClose() = %v for %d byte frame", decoded.IsClose(), size)
		}
	}
}

func TestFrameWireLayout(t *testing.T) {
	tests := []struct {
		name  string
		frame *Frame
		wire  string
	}{
		{
			name:  "Data frame",
			frame: NewDataFrame("0001", []byte("PING")),
			wire:  "000100000004PING",
		},
		{
			name:  "Close frame",
			frame: NewCloseFrame("0001"),
			wire:  "000100000000",
		},
		{
			name:  "Non-numeric id",
			frame: NewDataFrame("ab-9", []byte("x")),
			wire:  "ab-900000001x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Marshal(tt.frame)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if string(b) != tt.wire {
				t.Errorf("Wire bytes: got %q, want %q", b, tt.wire)
			}
		})
	}
}

func TestDecodeSegmented(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789"), 1000)
	wire, err := Marshal(NewDataFrame("0007", payload))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	// Two frames back to back, delivered one byte per Read
	stream := append(append([]byte{}, wire...), "000700000000"...)
	r := iotest.OneByteReader(bytes.NewReader(stream))

	f, err := Decode(r)
	if err != nil {
		t.Fatalf("Decode of first frame failed: %v", err)
	}
	if !bytes.Equal(f.Payload, payload) {
		t.Errorf("Payload mismatch after segmented read")
	}

	f, err = Decode(r)
	if err != nil {
		t.Fatalf("Decode of second frame failed: %v", err)
	}
	if !f.IsClose() || f.ID != "0007" {
		t.Errorf("Second frame: got %v, want close for 0007", f)
	}

	if _, err = Decode(r); err != io.EOF {
		t.Errorf("Decode at end of stream: got %v, want io.EOF", err)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		isEOF bool
	}{
		{name: "Empty stream", input: "", isEOF: true},
		{name: "Truncated id", input: "00"},
		{name: "Missing size", input: "0001"},
		{name: "Truncated size", input: "00010000"},
		{name: "Non-decimal size", input: "00010000004x"},
		{name: "Signed size", input: "0001-0000004PING"},
		{name: "Truncated payload", input: "000100000010PING"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader([]byte(tt.input)))
			if err == nil {
				t.Fatalf("Decode(%q) succeeded, expected an error", tt.input)
			}
			if tt.isEOF {
				if err != io.EOF {
					t.Errorf("Decode(%q): got %v, want io.EOF", tt.input, err)
				}
				if !IsEndOfStream(err) {
					t.Errorf("IsEndOfStream(%v) = false", err)
				}
				return
			}
			if !errors.Is(err, ErrMalformedFrame) {
				t.Errorf("Decode(%q): got %v, want ErrMalformedFrame", tt.input, err)
			}
			if IsEndOfStream(err) {
				t.Errorf("IsEndOfStream(%v) = true for a malformed frame", err)
			}
		})
	}
}

func TestMarshalRejects(t *testing.T) {
	tests := []struct {
		name  string
		frame *Frame
		want  error
	}{
		{name: "Short id", frame: NewDataFrame("001", []byte("x")), want: ErrInvalidID},
		{name: "Long id", frame: NewDataFrame("00001", []byte("x")), want: ErrInvalidID},
		{name: "Reserved id", frame: NewCloseFrame(ControlName), want: ErrInvalidID},
		{name: "Control byte in id", frame: NewCloseFrame("00\n1"), want: ErrInvalidID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Marshal(tt.frame)
			if !errors.Is(err, tt.want) {
				t.Errorf("Marshal: got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFormatID(t *testing.T) {
	tests := []struct {
		n       int
		want    string
		wantErr bool
	}{
		{n: 1, want: "0001"},
		{n: 42, want: "0042"},
		{n: 9999, want: "9999"},
		{n: 0, wantErr: true},
		{n: 10000, wantErr: true},
	}

	for _, tt := range tests {
		got, err := FormatID(tt.n)
		if tt.wantErr {
			if err == nil {
				t.Errorf("FormatID(%d) = %q, expected an error", tt.n, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("FormatID(%d) failed: %v", tt.n, err)
		}
		if got != tt.want {
			t.Errorf("FormatID(%d) = %q, want %q", tt.n, got, tt.want)
		}
		if err := ValidateID(got); err != nil {
			t.Errorf("ValidateID(%q) failed: %v", got, err)
		}
	}
}

func TestDecodeReadError(t *testing.T) {
	boom := errors.New("boom")
	if _, err := Decode(iotest.ErrReader(boom)); err != boom {
		t.Errorf("Decode with failing reader: got %v, want %v", err, boom)
	}
}
