// Package output wraps finished containers and saves them to disk.
package output

import (
	"fmt"
	"strings"
	"time"
)

// VideoMIMEType is the MIME type of the default container.
const VideoMIMEType = "video/mp4"

// Blob is an immutable finished video. The caller owns Data.
type Blob struct {
	Data     []byte
	MIMEType string
}

// Size returns the byte length.
func (b *Blob) Size() int {
	if b == nil {
		return 0
	}
	return len(b.Data)
}

// Empty reports whether the blob carries no bytes, which is how a cancelled run ends.
func (b *Blob) Empty() bool { return b.Size() == 0 }

// CreateVideoBlob tags buf with VideoMIMEType.
func CreateVideoBlob(buf []byte) *Blob {
	return CreateBlob(buf, VideoMIMEType)
}

// CreateBlob tags buf with the given container MIME type.
func CreateBlob(buf []byte, mimeType string) *Blob {
	if mimeType == "" {
		mimeType = VideoMIMEType
	}
	return &Blob{Data: buf, MIMEType: mimeType}
}

// Extension returns the file extension for the blob's container.
func (b *Blob) Extension() string {
	if b != nil && b.MIMEType == "video/webm" {
		return ".webm"
	}
	return ".mp4"
}

// GenerateFilename returns slopify-video-<UTC time to the second>.mp4 with
// ':' and '.' replaced by '-'.
func GenerateFilename(now time.Time) string {
	ts := now.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)
	return "slopify-video-" + ts[:19] + ".mp4"
}

var sizeUnits = []string{"B", "KB", "MB", "GB"}

// FormatFileSize renders a byte count with one decimal in 1024-based units.
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	v := float64(bytes)
	i := 0
	for v >= 1024 && i < len(sizeUnits)-1 {
		v /= 1024
		i++
	}
	return fmt.Sprintf("%.1f %s", v, sizeUnits[i])
}
