package rtcm

import "fmt"

// TypeStationARP is the message number of the stationary antenna reference
// point message ("1005").
const TypeStationARP = 1005

const arpPayloadLen = 19 // 152 bits

const ecefScale = 1e-4 // field units are tenths of millimeters

// StationARP is a decoded 1005 message: the base station's antenna
// reference point in ECEF meters plus the station flags carried alongside.
type StationARP struct {
	StationID uint16
	ITRFYear  uint8

	GPS     bool
	GLONASS bool
	Galileo bool
	// ReferenceStation is the physical reference station indicator.
	ReferenceStation bool
	// SingleOscillator indicates a single receiver oscillator.
	SingleOscillator bool
	QuarterCycle     uint8

	// ECEF antenna reference point, meters.
	X float64
	Y float64
	Z float64
}

// DecodeStationARP decodes a 1005 payload. The payload must be exactly the
// 19 bytes the message defines; anything else is a malformed payload, an
// error isolated to this one message.
func DecodeStationARP(payload []byte) (StationARP, error) {
	if len(payload) != arpPayloadLen {
		return StationARP{}, fmt.Errorf("rtcm: 1005 payload length %d, want %d", len(payload), arpPayloadLen)
	}
	if n := getBitU(payload, 0, 12); n != TypeStationARP {
		return StationARP{}, fmt.Errorf("rtcm: message number %d, want %d", n, TypeStationARP)
	}

	arp := StationARP{
		StationID:        uint16(getBitU(payload, 12, 12)),
		ITRFYear:         uint8(getBitU(payload, 24, 6)),
		GPS:              getBitU(payload, 30, 1) != 0,
		GLONASS:          getBitU(payload, 31, 1) != 0,
		Galileo:          getBitU(payload, 32, 1) != 0,
		ReferenceStation: getBitU(payload, 33, 1) != 0,
		X:                float64(getBits38(payload, 34)) * ecefScale,
		SingleOscillator: getBitU(payload, 72, 1) != 0,
		Y:                float64(getBits38(payload, 74)) * ecefScale,
		QuarterCycle:     uint8(getBitU(payload, 112, 2)),
		Z:                float64(getBits38(payload, 114)) * ecefScale,
	}
	return arp, nil
}

// EncodeStationARP builds a complete 1005 frame, header and CRC included.
// Coordinates are clamped to the 38-bit field range.
func EncodeStationARP(arp StationARP) []byte {
	payload := make([]byte, arpPayloadLen)
	setBitU(payload, 0, 12, TypeStationARP)
	setBitU(payload, 12, 12, uint32(arp.StationID))
	setBitU(payload, 24, 6, uint32(arp.ITRFYear))
	setBitU(payload, 30, 1, b2u(arp.GPS))
	setBitU(payload, 31, 1, b2u(arp.GLONASS))
	setBitU(payload, 32, 1, b2u(arp.Galileo))
	setBitU(payload, 33, 1, b2u(arp.ReferenceStation))
	setBits38(payload, 34, clampECEF(arp.X))
	setBitU(payload, 72, 1, b2u(arp.SingleOscillator))
	setBits38(payload, 74, clampECEF(arp.Y))
	setBitU(payload, 112, 2, uint32(arp.QuarterCycle))
	setBits38(payload, 114, clampECEF(arp.Z))
	return appendFrame(payload)
}

func clampECEF(meters float64) int64 {
	const limit = int64(1)<<37 - 1
	var v int64
	if meters >= 0 {
		v = int64(meters/ecefScale + 0.5)
	} else {
		v = int64(meters/ecefScale - 0.5)
	}
	if v > limit {
		return limit
	}
	if v < -limit-1 {
		return -limit - 1
	}
	return v
}

func b2u(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}
