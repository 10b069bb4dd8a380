package ingest

import (
	"context"
	"fmt"
	"slices"

	"github.com/slopify/slopify/packages/cli/internal/ffmpeg"
)

const (
	// MaxFileSizeBytes is inclusive.
	MaxFileSizeBytes = 500 * 1024 * 1024
	MaxFileSizeMB    = 500
	// MaxDurationSeconds is inclusive.
	MaxDurationSeconds = 300
)

// AllowedMIMETypes lists the accepted containers.
var AllowedMIMETypes = []string{"video/mp4", "video/webm", "video/quicktime"}

// IsAllowedMIMEType reports whether t is accepted.
func IsAllowedMIMEType(t string) bool {
	return slices.Contains(AllowedMIMETypes, t)
}

// ErrorKind classifies validation failures.
type ErrorKind string

const (
	KindFormat   ErrorKind = "format"
	KindSize     ErrorKind = "size"
	KindDuration ErrorKind = "duration"
)

var (
	MsgUnsupportedFormat = "Unsupported format. Please use MP4, WebM, or MOV files."
	MsgFileTooLarge      = fmt.Sprintf("File too large. Maximum size is %dMB.", MaxFileSizeMB)
	MsgReadFailed        = "Failed to read video file."
	MsgTooLong           = fmt.Sprintf("Video too long. Maximum duration is %d minutes.", MaxDurationSeconds/60)
)

// ValidationError is a user-correctable rejection.
type ValidationError struct {
	Kind    ErrorKind
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Metadata describes an accepted file.
type Metadata struct {
	Duration float64
	Width    int
	Height   int
	Name     string
	Size     int64
	Type     string
}

// ValidationResult holds Metadata when Valid, Error otherwise.
type ValidationResult struct {
	Valid    bool
	Metadata *Metadata
	Error    *ValidationError
}

func invalid(kind ErrorKind, msg string) ValidationResult {
	return ValidationResult{Error: &ValidationError{Kind: kind, Message: msg}}
}

// MetadataReader extracts stream metadata from a file.
type MetadataReader interface {
	ReadMetadata(ctx context.Context, path string) (ffmpeg.Metadata, error)
}

// MetadataReaderFunc adapts a function to MetadataReader.
type MetadataReaderFunc func(ctx context.Context, path string) (ffmpeg.Metadata, error)

func (f MetadataReaderFunc) ReadMetadata(ctx context.Context, path string) (ffmpeg.Metadata, error) {
	return f(ctx, path)
}

// ProbeReader reads metadata with ffprobe.
type ProbeReader struct {
	Prober *ffmpeg.Prober
}

// NewProbeReader creates a reader for the given ffprobe binary.
func NewProbeReader(ffprobePath string) *ProbeReader {
	return &ProbeReader{Prober: ffmpeg.NewProber(ffprobePath)}
}

func (r *ProbeReader) ReadMetadata(ctx context.Context, path string) (ffmpeg.Metadata, error) {
	return r.Prober.Probe(ctx, path)
}

// Validator runs the checks in order: type, size, metadata, duration.
type Validator struct {
	Reader MetadataReader
}

// NewValidator creates a validator backed by reader.
func NewValidator(reader MetadataReader) *Validator {
	return &Validator{Reader: reader}
}

// Validate never touches the reader for files rejected by type or size.
func (v *Validator) Validate(ctx context.Context, f *File) ValidationResult {
	if !IsAllowedMIMEType(f.MIMEType) {
		return invalid(KindFormat, MsgUnsupportedFormat)
	}
	if f.Size > MaxFileSizeBytes {
		return invalid(KindSize, MsgFileTooLarge)
	}

	md, err := v.Reader.ReadMetadata(ctx, f.Path)
	if err != nil {
		return invalid(KindFormat, MsgReadFailed)
	}
	if md.Duration > MaxDurationSeconds {
		return invalid(KindDuration, MsgTooLong)
	}

	return ValidationResult{
		Valid: true,
		Metadata: &Metadata{
			Duration: md.Duration,
			Width:    md.Width,
			Height:   md.Height,
			Name:     f.Name,
			Size:     f.Size,
			Type:     f.MIMEType,
		},
	}
}
