package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// ListEncoders returns the video encoder names compiled into the ffmpeg binary.
func ListEncoders(ctx context.Context, runner Runner, path string) (map[string]bool, error) {
	res, err := runner.Run(ctx, path, "-hide_banner", "-encoders")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg -encoders: %w", err)
	}
	return ParseEncoders(res.Stdout), nil
}

// ParseEncoders parses the output of `ffmpeg -encoders`. Only video encoders
// (capability flags starting with V) are returned.
func ParseEncoders(out string) map[string]bool {
	encoders := make(map[string]bool)
	scanner := bufio.NewScanner(strings.NewReader(out))
	inList := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "------" {
			inList = true
			continue
		}
		if !inList {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || !strings.HasPrefix(fields[0], "V") {
			continue
		}
		encoders[fields[1]] = true
	}
	return encoders
}
