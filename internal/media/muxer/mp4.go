package muxer

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bluenviron/mediacommon/v2/pkg/formats/mp4"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/pmp4"

	"github.com/slopify/slopify/packages/cli/internal/media/encoder"
	"github.com/slopify/slopify/packages/cli/internal/media/h264"
	"github.com/slopify/slopify/packages/cli/internal/util"
)

const (
	videoTrackID = 1
	// videoTimeScale is the MP4 track clock rate.
	videoTimeScale = 90000
)

type mp4Sample struct {
	payload   []byte
	timestamp int64 // microseconds
	key       bool
}

// MP4Muxer collects H.264 access units and writes them as a progressive MP4
// with the index ahead of the media data.
type MP4Muxer struct {
	logger *slog.Logger

	mu        sync.Mutex
	cfg       Config
	ready     bool
	finalized bool
	sps, pps  []byte
	samples   []mp4Sample
	lastTS    int64
}

// NewMP4Muxer creates an H.264 muxer.
func NewMP4Muxer(logger *slog.Logger) *MP4Muxer {
	return &MP4Muxer{logger: util.ComponentLogger(logger, "mp4_muxer")}
}

func (m *MP4Muxer) MIMEType() string { return MIMETypeMP4 }

func (m *MP4Muxer) Initialize(cfg Config) error {
	if err := validateConfig(cfg); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finalized {
		return ErrFinalized
	}
	m.cfg = cfg
	m.ready = true
	return nil
}

// AddVideoChunk appends one Annex-B access unit.
func (m *MP4Muxer) AddVideoChunk(chunk encoder.Chunk, meta *ChunkMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.finalized {
		return ErrFinalized
	}
	if !m.ready {
		return ErrNotInitialized
	}
	if len(m.samples) > 0 && chunk.Timestamp < m.lastTS {
		return fmt.Errorf("%w: %d after %d", ErrTimestampOrder, chunk.Timestamp, m.lastTS)
	}
	if len(chunk.Data) == 0 {
		m.logger.Debug("Skipping empty video chunk", "timestamp", chunk.Timestamp)
		return nil
	}

	nalus, err := h264.ParseAccessUnit(chunk.Data)
	if err != nil {
		return fmt.Errorf("failed to parse access unit: %w", err)
	}
	if meta != nil && len(meta.SPS) > 0 && len(meta.PPS) > 0 {
		m.sps, m.pps = meta.SPS, meta.PPS
	}
	if m.sps == nil {
		if sps, pps := h264.ParameterSets(nalus); sps != nil && pps != nil {
			m.sps, m.pps = sps, pps
		}
	}

	key := chunk.IsKey() || h264.IsKeyFrame(nalus)
	if len(m.samples) == 0 && !key {
		return errors.New("first chunk must be a key frame")
	}
	payload := h264.ToAVCC(nalus)
	if len(payload) == 0 {
		return nil
	}

	m.samples = append(m.samples, mp4Sample{payload: payload, timestamp: chunk.Timestamp, key: key})
	m.lastTS = chunk.Timestamp
	return nil
}

// Finalize writes a progressive MP4: ftyp, then moov with the full sample
// index and durations, then a single mdat.
func (m *MP4Muxer) Finalize() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.finalized {
		return nil, ErrFinalized
	}
	if !m.ready {
		return nil, ErrNotInitialized
	}
	if len(m.samples) == 0 {
		return nil, errors.New("no video chunks to mux")
	}
	if m.sps == nil || m.pps == nil {
		return nil, errors.New("missing H.264 parameter sets")
	}

	lastDuration := scaleTimestamp(frameDuration(m.cfg.FrameRate))
	samples := make([]*pmp4.Sample, 0, len(m.samples))
	for i, s := range m.samples {
		duration := lastDuration
		if i+1 < len(m.samples) {
			if d := scaleTimestamp(m.samples[i+1].timestamp) - scaleTimestamp(s.timestamp); d > 0 {
				duration = d
			}
		}
		payload := s.payload
		samples = append(samples, &pmp4.Sample{
			Duration:        uint32(duration),
			IsNonSyncSample: !s.key,
			PayloadSize:     uint32(len(payload)),
			GetPayload:      func() ([]byte, error) { return payload, nil },
		})
	}

	pres := &pmp4.Presentation{
		Tracks: []*pmp4.Track{
			{
				ID:        videoTrackID,
				TimeScale: videoTimeScale,
				Codec:     &mp4.CodecH264{SPS: m.sps, PPS: m.pps},
				Samples:   samples,
			},
		},
	}
	var out bytes.Buffer
	if err := pres.Marshal(&out); err != nil {
		return nil, fmt.Errorf("failed to marshal mp4: %w", err)
	}

	m.finalized = true
	m.samples = nil
	m.logger.Debug("MP4 finalized", "samples", len(samples), "size", out.Len())
	return out.Bytes(), nil
}

// scaleTimestamp converts microseconds into track timescale units.
func scaleTimestamp(us int64) int64 {
	if us <= 0 {
		return 0
	}
	return us * videoTimeScale / 1_000_000
}
