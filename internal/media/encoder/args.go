package encoder

import (
	"fmt"
	"strconv"
)

// FFmpegCodec maps a codec id to the ffmpeg encoder name.
func FFmpegCodec(codec string) string {
	switch Family(codec) {
	case FamilyAVC:
		return "libx264"
	case FamilyVP8:
		return "libvpx"
	case FamilyVP9:
		return "libvpx-vp9"
	default:
		return ""
	}
}

// Args builds the ffmpeg command line that reads rawvideo RGBA frames on stdin
// and writes an elementary stream on stdout.
func Args(cfg Config) []string {
	fps := strconv.FormatFloat(cfg.FrameRate, 'f', -1, 64)
	gop := strconv.Itoa(cfg.KeyFrameInterval)

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"-framerate", fps,
		"-i", "pipe:0",
		"-an",
		"-c:v", FFmpegCodec(cfg.Codec),
		"-pix_fmt", "yuv420p",
		"-b:v", strconv.Itoa(cfg.Bitrate),
		"-g", gop,
		"-keyint_min", gop,
		"-force_key_frames", fmt.Sprintf("expr:eq(mod(n,%s),0)", gop),
	}

	switch Family(cfg.Codec) {
	case FamilyAVC:
		args = append(args,
			"-profile:v", AVCProfile(cfg.Codec),
			"-bf", "0",
			"-sc_threshold", "0",
			"-tune", "zerolatency",
			"-x264-params", "aud=1",
			"-f", "h264",
		)
	default:
		args = append(args,
			"-deadline", "realtime",
			"-lag-in-frames", "0",
			"-auto-alt-ref", "0",
			"-f", "ivf",
		)
	}
	return append(args, "pipe:1")
}
