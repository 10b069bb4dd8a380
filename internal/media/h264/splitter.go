package h264

import (
	mch264 "github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
)

// AccessUnitSplitter cuts a raw Annex-B byte stream into access units at access
// unit delimiters. The encoder is configured to emit one delimiter per frame.
type AccessUnitSplitter struct {
	buf []byte
	// scan is where the next delimiter search resumes.
	scan int
}

// Write appends stream bytes and returns every access unit completed by them.
func (s *AccessUnitSplitter) Write(p []byte) [][]byte {
	s.buf = append(s.buf, p...)

	var units [][]byte
	for {
		// The unit in progress starts at offset 0; look for the next delimiter after its own start code.
		next := findAUD(s.buf, max(leadingStartCodeLen(s.buf)+1, s.scan))
		if next < 0 {
			// A start code may straddle the end of the buffer.
			s.scan = max(len(s.buf)-4, 1)
			break
		}
		s.scan = 0
		unit := make([]byte, next)
		copy(unit, s.buf[:next])
		units = append(units, unit)
		s.buf = s.buf[next:]
	}
	return units
}

// Flush returns the trailing access unit, if any.
func (s *AccessUnitSplitter) Flush() []byte {
	if len(s.buf) == 0 {
		return nil
	}
	unit := s.buf
	s.buf = nil
	s.scan = 0
	return unit
}

// findAUD returns the offset of the start code of the first AUD NAL unit at or after from.
func findAUD(data []byte, from int) int {
	for i := from; i+3 < len(data); i++ {
		if data[i] != 0x00 || data[i+1] != 0x00 || data[i+2] != 0x01 {
			continue
		}
		if mch264.NALUType(data[i+3]&0x1F) != mch264.NALUTypeAccessUnitDelimiter {
			continue
		}
		// Include the leading zero of a 4-byte start code.
		if data[i-1] == 0x00 {
			return i - 1
		}
		return i
	}
	return -1
}

func leadingStartCodeLen(data []byte) int {
	switch {
	case len(data) >= 4 && data[0] == 0 && data[1] == 0 && data[2] == 0 && data[3] == 1:
		return 4
	case len(data) >= 3 && data[0] == 0 && data[1] == 0 && data[2] == 1:
		return 3
	}
	return 0
}
