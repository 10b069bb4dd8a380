package encoder

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFFmpegEnv switches the test binary into a stand-in for ffmpeg when it is
// started by FFmpegEncoder with os.Args[0] as the binary path.
const fakeFFmpegEnv = "SLOPIFY_FAKE_FFMPEG"

func TestMain(m *testing.M) {
	switch os.Getenv(fakeFFmpegEnv) {
	case "ivf":
		os.Exit(fakeIVFEncoder(os.Args[1:]))
	case "fail":
		fmt.Fprintln(os.Stderr, "unknown encoder")
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func argValue(args []string, name string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == name {
			return args[i+1]
		}
	}
	return ""
}

// fakeIVFEncoder reads rawvideo RGBA frames sized by -s and writes one VP8
// IVF frame per input frame, with a key frame every -g frames.
func fakeIVFEncoder(args []string) int {
	var w, h int
	if _, err := fmt.Sscanf(argValue(args, "-s"), "%dx%d", &w, &h); err != nil {
		fmt.Fprintln(os.Stderr, "bad -s:", err)
		return 2
	}
	gop, err := strconv.Atoi(argValue(args, "-g"))
	if err != nil || gop <= 0 {
		fmt.Fprintln(os.Stderr, "bad -g")
		return 2
	}

	header := make([]byte, 32)
	copy(header[0:4], "DKIF")
	binary.LittleEndian.PutUint16(header[6:8], 32)
	copy(header[8:12], "VP80")
	binary.LittleEndian.PutUint16(header[12:14], uint16(w))
	binary.LittleEndian.PutUint16(header[14:16], uint16(h))
	binary.LittleEndian.PutUint32(header[16:20], 30)
	binary.LittleEndian.PutUint32(header[20:24], 1)
	if _, err := os.Stdout.Write(header); err != nil {
		return 1
	}

	frame := make([]byte, w*h*4)
	for n := uint64(0); ; n++ {
		if _, err := io.ReadFull(os.Stdin, frame); err != nil {
			return 0
		}
		payload := []byte{0x11, 0x02, 0x00}
		if n%uint64(gop) == 0 {
			payload[0] = 0x10
		}
		out := make([]byte, 12, 12+len(payload))
		binary.LittleEndian.PutUint32(out[0:4], uint32(len(payload)))
		binary.LittleEndian.PutUint64(out[4:12], n)
		if _, err := os.Stdout.Write(append(out, payload...)); err != nil {
			return 1
		}
	}
}

func TestFFmpegEncoderIVF(t *testing.T) {
	t.Setenv(fakeFFmpegEnv, "ivf")

	var mu sync.Mutex
	var delivered []Chunk
	enc := NewFFmpegEncoder(os.Args[0], nil)
	cfg := Config{Codec: "vp8", Width: 32, Height: 32, FrameRate: 30, KeyFrameInterval: 30}
	require.NoError(t, enc.Initialize(cfg, func(c Chunk) {
		mu.Lock()
		delivered = append(delivered, c)
		mu.Unlock()
	}))
	defer enc.Close()

	assert.ErrorContains(t, enc.EncodeFrame(testFrame(32, 32, 0), false), "does not match interval")

	const total = 35
	want := make([]int64, total)
	for i := 0; i < total; i++ {
		want[i] = int64(i) * 1e6 / 30
		require.NoError(t, enc.EncodeFrame(testFrame(32, 32, want[i]), i%30 == 0))
	}
	chunks, err := enc.Flush(context.Background())
	require.NoError(t, err)
	require.Len(t, chunks, total)
	for i, c := range chunks {
		assert.Equal(t, want[i], c.Timestamp, "chunk %d", i)
		assert.Equal(t, i%30 == 0, c.IsKey(), "chunk %d", i)
	}
	mu.Lock()
	assert.Equal(t, chunks, delivered)
	mu.Unlock()

	assert.Error(t, enc.EncodeFrame(testFrame(32, 32, 0), false))
	require.NoError(t, enc.Close())
	assert.NoError(t, enc.Close())
}

func TestFFmpegEncoderProcessFailure(t *testing.T) {
	t.Setenv(fakeFFmpegEnv, "fail")

	enc := NewFFmpegEncoder(os.Args[0], nil)
	cfg := Config{Codec: "vp8", Width: 64, Height: 64, FrameRate: 30, KeyFrameInterval: 30}
	require.NoError(t, enc.Initialize(cfg, nil))

	var encodeErr error
	for i := 0; i < 1000 && encodeErr == nil; i++ {
		encodeErr = enc.EncodeFrame(testFrame(64, 64, int64(i)*1e6/30), i%30 == 0)
	}
	assert.Error(t, encodeErr)

	_, err := enc.Flush(context.Background())
	assert.Error(t, err)

	require.NoError(t, enc.Close())
	assert.NoError(t, enc.Close())
}

func TestFFmpegEncoderCloseWithoutFlush(t *testing.T) {
	t.Setenv(fakeFFmpegEnv, "ivf")

	enc := NewFFmpegEncoder(os.Args[0], nil)
	cfg := Config{Codec: "vp8", Width: 16, Height: 16, FrameRate: 30, KeyFrameInterval: 30}
	require.NoError(t, enc.Initialize(cfg, nil))
	require.NoError(t, enc.EncodeFrame(testFrame(16, 16, 0), true))

	require.NoError(t, enc.Close())
	assert.NoError(t, enc.Close())
	assert.ErrorIs(t, enc.EncodeFrame(testFrame(16, 16, 1), false), ErrClosed)
	_, err := enc.Flush(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}
