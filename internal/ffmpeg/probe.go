package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Metadata describes the first video stream of a media file. Width and Height
// are display dimensions: a stream rotated by 90 or 270 degrees reports its
// coded size swapped, matching the frames ffmpeg emits after autorotation.
type Metadata struct {
	Duration  float64 // seconds
	Width     int
	Height    int
	// Rotation is the display rotation in degrees, normalized to 0, 90, 180 or 270.
	Rotation  int
	Codec     string
	FrameRate float64
	Format    string
}

type probeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		CodecName    string `json:"codec_name"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		AvgFrameRate string `json:"avg_frame_rate"`
		Duration     string `json:"duration"`
		Tags         struct {
			Rotate string `json:"rotate"`
		} `json:"tags"`
		SideDataList []struct {
			Rotation *float64 `json:"rotation"`
		} `json:"side_data_list"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

// Prober reads media metadata with ffprobe.
type Prober struct {
	Path   string
	Runner Runner
}

// NewProber creates a prober for the given ffprobe binary.
func NewProber(path string) *Prober {
	if path == "" {
		path = "ffprobe"
	}
	return &Prober{Path: path, Runner: ExecRunner{}}
}

// Probe returns the metadata of the first video stream in path.
func (p *Prober) Probe(ctx context.Context, path string) (Metadata, error) {
	res, err := p.Runner.Run(ctx, p.Path,
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	)
	if err != nil {
		return Metadata{}, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(res.Stderr))
	}
	return ParseProbeOutput([]byte(res.Stdout))
}

// ParseProbeOutput parses ffprobe's JSON output.
func ParseProbeOutput(data []byte) (Metadata, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	for _, s := range out.Streams {
		if s.CodecType != "video" {
			continue
		}
		if s.Width <= 0 || s.Height <= 0 {
			return Metadata{}, fmt.Errorf("video stream has no dimensions")
		}
		rotation := normalizeRotation(parseSeconds(s.Tags.Rotate))
		for _, sd := range s.SideDataList {
			if sd.Rotation != nil {
				rotation = normalizeRotation(*sd.Rotation)
				break
			}
		}
		width, height := s.Width, s.Height
		if rotation == 90 || rotation == 270 {
			width, height = height, width
		}
		md := Metadata{
			Width:     width,
			Height:    height,
			Rotation:  rotation,
			Codec:     s.CodecName,
			FrameRate: parseRational(s.AvgFrameRate),
			Format:    out.Format.FormatName,
		}
		md.Duration = parseSeconds(out.Format.Duration)
		if md.Duration <= 0 {
			md.Duration = parseSeconds(s.Duration)
		}
		if md.Duration <= 0 {
			return Metadata{}, fmt.Errorf("video has no duration")
		}
		return md, nil
	}
	return Metadata{}, fmt.Errorf("no video stream found")
}

// normalizeRotation maps a display matrix angle such as -90 onto 0..359,
// rounded to a quarter turn.
func normalizeRotation(deg float64) int {
	quarter := int(math.Round(deg/90)) % 4
	if quarter < 0 {
		quarter += 4
	}
	return quarter * 90
}

func parseSeconds(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

// parseRational parses "30000/1001" style rates.
func parseRational(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return parseSeconds(s)
	}
	n, d := parseSeconds(num), parseSeconds(den)
	if d == 0 {
		return 0
	}
	return n / d
}
