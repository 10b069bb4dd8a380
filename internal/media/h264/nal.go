// Package h264 holds the Annex-B helpers shared by the encoder and the MP4 muxer.
package h264

import (
	"bytes"
	"fmt"

	mch264 "github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
)

var (
	// Standard Annex-B start codes
	StartCode3 = []byte{0x00, 0x00, 0x01}
	StartCode4 = []byte{0x00, 0x00, 0x00, 0x01}
)

// NALUType returns the type of a NAL unit without start code.
func NALUType(nalu []byte) mch264.NALUType {
	if len(nalu) == 0 {
		return 0
	}
	return mch264.NALUType(nalu[0] & 0x1F)
}

// ParseAccessUnit splits an Annex-B access unit into NAL units without start codes.
func ParseAccessUnit(data []byte) ([][]byte, error) {
	var au mch264.AnnexB
	if err := au.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("failed to parse Annex-B access unit: %w", err)
	}
	return au, nil
}

// IsKeyFrame reports whether the access unit contains an IDR slice.
func IsKeyFrame(nalus [][]byte) bool {
	for _, n := range nalus {
		if NALUType(n) == mch264.NALUTypeIDR {
			return true
		}
	}
	return false
}

// ParameterSets returns the first SPS and PPS in the access unit.
func ParameterSets(nalus [][]byte) (sps, pps []byte) {
	for _, n := range nalus {
		switch NALUType(n) {
		case mch264.NALUTypeSPS:
			if sps == nil {
				sps = n
			}
		case mch264.NALUTypePPS:
			if pps == nil {
				pps = n
			}
		}
	}
	return sps, pps
}

// ToAVCC converts NAL units to length-prefixed form, dropping access unit delimiters.
func ToAVCC(nalus [][]byte) []byte {
	size := 0
	for _, n := range nalus {
		size += 4 + len(n)
	}
	out := make([]byte, 0, size)
	for _, n := range nalus {
		if len(n) == 0 || NALUType(n) == mch264.NALUTypeAccessUnitDelimiter {
			continue
		}
		l := uint32(len(n))
		out = append(out, byte(l>>24), byte(l>>16), byte(l>>8), byte(l))
		out = append(out, n...)
	}
	return out
}

// ToAnnexB joins NAL units with 4-byte start codes.
func ToAnnexB(nalus [][]byte) []byte {
	var buf bytes.Buffer
	for _, n := range nalus {
		buf.Write(StartCode4)
		buf.Write(n)
	}
	return buf.Bytes()
}
