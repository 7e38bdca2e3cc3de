package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ErrBadOpcode is returned by Decode when the header names an opcode this
// codec does not understand; the caller must disconnect (§4.A, §7).
var ErrBadOpcode = errors.New("frame: unknown opcode")

// ErrControlFragmented is returned when a control frame arrives with FIN=0
// or with a payload larger than 125 bytes; control frames must
// never be fragmented (§4.A).
var ErrControlFragmented = errors.New("frame: control frame must not be fragmented")

const maxControlPayload = 125

// Encode writes f to w in RFC 6455 wire format. Masking is applied from
// f.MaskKey when f.Masked is set; the caller (the session) decides whether
// a given role must mask (clients mask, servers must not).
func Encode(w io.Writer, f Frame) error {
	if f.Opcode.IsControl() && len(f.Payload) > maxControlPayload {
		return ErrControlFragmented
	}

	var header [2]byte
	if f.FIN {
		header[0] |= 0x80
	}
	if f.RSV1 {
		header[0] |= 0x40
	}
	if f.RSV2 {
		header[0] |= 0x20
	}
	if f.RSV3 {
		header[0] |= 0x10
	}
	header[0] |= byte(f.Opcode) & 0x0F

	n := len(f.Payload)
	switch {
	case n < 126:
		header[1] = byte(n)
	case n <= 0xFFFF:
		header[1] = 126
	default:
		header[1] = 127
	}
	if f.Masked {
		header[1] |= 0x80
	}

	if _, err := w.Write(header[:]); err != nil {
		return err
	}

	switch {
	case n < 126:
		// length already encoded in the header byte
	case n <= 0xFFFF:
		var ext [2]byte
		binary.BigEndian.PutUint16(ext[:], uint16(n))
		if _, err := w.Write(ext[:]); err != nil {
			return err
		}
	default:
		var ext [8]byte
		binary.BigEndian.PutUint64(ext[:], uint64(n))
		if _, err := w.Write(ext[:]); err != nil {
			return err
		}
	}

	if f.Masked {
		if _, err := w.Write(f.MaskKey[:]); err != nil {
			return err
		}
		masked := make([]byte, n)
		copy(masked, f.Payload)
		Mask(masked, f.MaskKey)
		if _, err := w.Write(masked); err != nil {
			return err
		}
		return nil
	}

	if n > 0 {
		if _, err := w.Write(f.Payload); err != nil {
			return err
		}
	}
	return nil
}

// Decode reads one frame from r. Any short read is propagated as an error
// by the caller, which must disconnect per §4.B failure semantics.
func Decode(r io.Reader) (Frame, error) {
	var header [2]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Frame{}, err
	}

	f := Frame{
		FIN:    header[0]&0x80 != 0,
		RSV1:   header[0]&0x40 != 0,
		RSV2:   header[0]&0x20 != 0,
		RSV3:   header[0]&0x10 != 0,
		Opcode: Opcode(header[0] & 0x0F),
		Masked: header[1]&0x80 != 0,
	}
	if !knownOpcode(f.Opcode) {
		return Frame{}, fmt.Errorf("%w: 0x%x", ErrBadOpcode, byte(f.Opcode))
	}

	length := uint64(header[1] & 0x7F)
	switch length {
	case 126:
		var ext [2]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return Frame{}, err
		}
		length = uint64(binary.BigEndian.Uint16(ext[:]))
	case 127:
		var ext [8]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return Frame{}, err
		}
		length = binary.BigEndian.Uint64(ext[:])
	}

	if f.Opcode.IsControl() && (!f.FIN || length > maxControlPayload) {
		return Frame{}, ErrControlFragmented
	}

	if f.Masked {
		if _, err := io.ReadFull(r, f.MaskKey[:]); err != nil {
			return Frame{}, err
		}
	}

	if length > 0 {
		f.Payload = make([]byte, length)
		if _, err := io.ReadFull(r, f.Payload); err != nil {
			return Frame{}, err
		}
		if f.Masked {
			Mask(f.Payload, f.MaskKey)
		}
	}

	return f, nil
}
