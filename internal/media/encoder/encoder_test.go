package encoder

import (
	"context"
	"errors"
	"image"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slopify/slopify/packages/cli/internal/media/compositor"
	"github.com/slopify/slopify/packages/cli/internal/media/h264"
)

func TestCalculateBitrate(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		want          int
	}{
		{"tiny clamps to min", 320, 240, MinBitrate},
		{"720p", 1280, 720, 4_147_200},
		{"1080p", 1920, 1080, 9_331_200},
		{"4k clamps to max", 3840, 2160, MaxBitrate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CalculateBitrate(tt.width, tt.height))
		})
	}
}

func TestChunkType(t *testing.T) {
	assert.Equal(t, "key", ChunkKey.String())
	assert.Equal(t, "delta", ChunkDelta.String())
	assert.True(t, Chunk{Type: ChunkKey}.IsKey())

	c := Chunk{Data: []byte{1, 2, 3}}
	clone := c.Clone()
	clone.Data[0] = 9
	assert.Equal(t, byte(1), c.Data[0])
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{Width: 1280, Height: 720, FrameRate: 30}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultCodec, cfg.Codec)
	assert.Equal(t, CalculateBitrate(1280, 720), cfg.Bitrate)
	assert.Equal(t, DefaultKeyFrameInterval, cfg.KeyFrameInterval)

	odd := Config{Width: 641, Height: 480, FrameRate: 30}
	assert.Error(t, odd.Validate())

	bad := Config{Codec: "hevc", Width: 640, Height: 480, FrameRate: 30}
	assert.Error(t, bad.Validate())
}

func TestFamilyAndProfile(t *testing.T) {
	assert.Equal(t, FamilyAVC, Family("avc1.42E01E"))
	assert.Equal(t, FamilyVP8, Family("vp8"))
	assert.Equal(t, FamilyVP9, Family("vp09.00.10.08"))
	assert.Equal(t, FamilyUnknown, Family("av01.0.04M.08"))

	assert.Equal(t, "baseline", AVCProfile("avc1.42E01E"))
	assert.Equal(t, "main", AVCProfile("avc1.4D401E"))
	assert.Equal(t, "high", AVCProfile("avc1.640028"))

	assert.Equal(t, "libx264", FFmpegCodec("avc1.640028"))
	assert.Equal(t, "libvpx", FFmpegCodec("vp8"))
	assert.Equal(t, "libvpx-vp9", FFmpegCodec("vp09.00.10.08"))
}

func TestArgs(t *testing.T) {
	cfg := Config{Codec: "avc1.42E01E", Width: 640, Height: 360, FrameRate: 30}
	require.NoError(t, cfg.Validate())
	args := Args(cfg)

	assert.Subset(t, args, []string{"-s", "640x360", "-c:v", "libx264", "-profile:v", "baseline", "-g", "30", "-keyint_min", "30"})
	assert.Contains(t, args, "aud=1")
	assert.Equal(t, "pipe:1", args[len(args)-1])
	assert.Equal(t, "h264", args[len(args)-2])

	vp := Config{Codec: "vp8", Width: 640, Height: 360, FrameRate: 25, KeyFrameInterval: 30}
	require.NoError(t, vp.Validate())
	vargs := Args(vp)
	assert.Contains(t, vargs, "libvpx")
	assert.Equal(t, "ivf", vargs[len(vargs)-2])
}

func TestIsVPXKeyFrame(t *testing.T) {
	assert.True(t, IsVPXKeyFrame(FamilyVP8, []byte{0x10, 0x02, 0x00}))
	assert.False(t, IsVPXKeyFrame(FamilyVP8, []byte{0x11, 0x02, 0x00}))

	// frame_marker=2, profile 0, show_existing=0, frame_type=0
	assert.True(t, IsVPXKeyFrame(FamilyVP9, []byte{0x82}))
	// frame_type=1
	assert.False(t, IsVPXKeyFrame(FamilyVP9, []byte{0x86}))
	// show_existing_frame=1
	assert.False(t, IsVPXKeyFrame(FamilyVP9, []byte{0x88}))
	assert.False(t, IsVPXKeyFrame(FamilyVP9, nil))
}

func testFrame(w, h int, ts int64) *compositor.Frame {
	return compositor.NewFrame(image.NewRGBA(image.Rect(0, 0, w, h)), ts)
}

func TestSyntheticEncoder(t *testing.T) {
	enc := NewSyntheticEncoder()
	var delivered []Chunk
	require.NoError(t, enc.Initialize(Config{Width: 16, Height: 16, FrameRate: 30}, func(c Chunk) {
		delivered = append(delivered, c)
	}))

	for i := 0; i < 4; i++ {
		require.NoError(t, enc.EncodeFrame(testFrame(16, 16, int64(i)*33_333), i%2 == 0))
	}
	chunks, err := enc.Flush(context.Background())
	require.NoError(t, err)
	require.Len(t, chunks, 4)
	assert.Equal(t, chunks, delivered)
	assert.Equal(t, []bool{true, false, true, false}, enc.KeyFrames())

	nalus, err := h264.ParseAccessUnit(chunks[0].Data)
	require.NoError(t, err)
	sps, pps := h264.ParameterSets(nalus)
	assert.Equal(t, SyntheticSPS, sps)
	assert.Equal(t, SyntheticPPS, pps)
	assert.Equal(t, ChunkDelta, chunks[1].Type)
	assert.Equal(t, int64(33_333), chunks[1].Timestamp)

	require.NoError(t, enc.Close())
	require.NoError(t, enc.Close())
	assert.ErrorIs(t, enc.EncodeFrame(testFrame(16, 16, 0), false), ErrClosed)
}

func TestSyntheticEncoderFailure(t *testing.T) {
	boom := errors.New("boom")
	enc := &SyntheticEncoder{FailAfter: 2, Err: boom}
	require.NoError(t, enc.Initialize(Config{Width: 16, Height: 16, FrameRate: 30}, nil))
	require.NoError(t, enc.EncodeFrame(testFrame(16, 16, 0), true))
	require.NoError(t, enc.EncodeFrame(testFrame(16, 16, 1), false))
	assert.ErrorIs(t, enc.EncodeFrame(testFrame(16, 16, 2), false), boom)
}

func TestFFmpegEncoderNotInitialized(t *testing.T) {
	enc := NewFFmpegEncoder("", nil)
	assert.ErrorIs(t, enc.EncodeFrame(testFrame(16, 16, 0), true), ErrNotInitialized)
	_, err := enc.Flush(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.NoError(t, enc.Close())
	assert.NoError(t, enc.Close())
}

func TestFFmpegEncoderH264(t *testing.T) {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not available")
	}
	enc := NewFFmpegEncoder(path, nil)
	cfg := Config{Codec: "avc1.42E01E", Width: 64, Height: 64, FrameRate: 30, KeyFrameInterval: 30}
	if err := enc.Initialize(cfg, nil); err != nil {
		t.Skipf("encoder unavailable: %v", err)
	}
	defer enc.Close()

	for i := 0; i < 35; i++ {
		require.NoError(t, enc.EncodeFrame(testFrame(64, 64, int64(i)*1e6/30), i%30 == 0))
	}
	chunks, err := enc.Flush(context.Background())
	if err != nil {
		t.Skipf("libx264 unavailable: %v", err)
	}
	require.Len(t, chunks, 35)
	assert.Equal(t, ChunkKey, chunks[0].Type)
	assert.Equal(t, ChunkKey, chunks[30].Type)
	assert.Equal(t, ChunkDelta, chunks[1].Type)
	for i := 1; i < len(chunks); i++ {
		assert.Greater(t, chunks[i].Timestamp, chunks[i-1].Timestamp)
	}
}
