package rtcm

// Package rtcm handles the RTCM3 transport framing emitted by GNSS base
// stations and the one message this project decodes from it:
// - Extract: pull complete, CRC24Q-valid frames off a byte stream
// - StationARP: message 1005, the station's ECEF antenna reference point
// - EncodeStationARP: build 1005 frames for simulators and tests
//
// Frame layout: 0xD3 preamble, six reserved zero bits, 10-bit payload
// length, payload, 3-byte CRC24Q over header and payload.
