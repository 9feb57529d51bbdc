package rtcm

import (
	"errors"

	crc24q "github.com/goblimey/go-crc24q/crc24q"
)

const (
	// Preamble is the fixed first byte of every RTCM3 frame.
	Preamble = 0xD3

	headerLen = 3
	crcLen    = 3

	// MaxPayloadLen is the largest payload the 10-bit length field can carry.
	MaxPayloadLen = 1023
)

// Structural reasons a buffer cannot start a valid frame. Extract returns
// these so callers can resynchronize by discarding a single byte.
var (
	ErrPreamble = errors.New("rtcm: bad preamble")
	ErrReserved = errors.New("rtcm: reserved bits set")
	ErrChecksum = errors.New("rtcm: crc mismatch")
)

// Frame is one complete, checksum-valid RTCM3 frame.
type Frame struct {
	// Raw is the whole frame including header and CRC.
	Raw []byte
	// Payload is the message body between header and CRC.
	Payload []byte
	// Type is the 12-bit message number from the start of the payload,
	// zero when the payload is too short to carry one.
	Type uint16
}

// Extract attempts to parse one frame from the start of buf.
//
// Outcomes:
//   - complete:   returns the frame and the exact byte count it occupied
//   - incomplete: n == 0 and err == nil; nothing may be consumed yet
//   - invalid:    err is one of the structural sentinels above; the caller
//     should drop exactly one byte and retry
//
// The returned Frame aliases buf; callers that retain it across buffer
// mutations must copy.
func Extract(buf []byte) (Frame, int, error) {
	if len(buf) < headerLen {
		return Frame{}, 0, nil
	}
	if buf[0] != Preamble {
		return Frame{}, 0, ErrPreamble
	}
	if buf[1]&0xFC != 0 {
		return Frame{}, 0, ErrReserved
	}

	payloadLen := int(buf[1]&0x03)<<8 | int(buf[2])
	total := headerLen + payloadLen + crcLen
	if len(buf) < total {
		return Frame{}, 0, nil
	}

	crc := crc24q.Hash(buf[:headerLen+payloadLen])
	if crc24q.HiByte(crc) != buf[total-3] ||
		crc24q.MiByte(crc) != buf[total-2] ||
		crc24q.LoByte(crc) != buf[total-1] {
		return Frame{}, 0, ErrChecksum
	}

	f := Frame{
		Raw:     buf[:total],
		Payload: buf[headerLen : headerLen+payloadLen],
	}
	if payloadLen >= 2 {
		f.Type = uint16(getBitU(f.Payload, 0, 12))
	}
	return f, total, nil
}

// appendFrame wraps payload in a complete frame: header, payload, CRC24Q.
func appendFrame(payload []byte) []byte {
	out := make([]byte, headerLen+len(payload), headerLen+len(payload)+crcLen)
	out[0] = Preamble
	setBitU(out, 14, 10, uint32(len(payload)))
	copy(out[headerLen:], payload)
	crc := crc24q.Hash(out)
	return append(out, crc24q.HiByte(crc), crc24q.MiByte(crc), crc24q.LoByte(crc))
}
