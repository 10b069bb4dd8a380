// Package ingest validates candidate videos and converts files the decoder
// cannot read into H.264 MP4.
package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// File is a candidate video on disk.
type File struct {
	Path     string
	Name     string
	MIMEType string
	Size     int64
}

var extensionTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".qt":   "video/quicktime",
}

// OpenFile stats path and sniffs its MIME type from content, falling back to
// the extension when the content is not recognized.
func OpenFile(path string) (*File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	f := &File{
		Path: path,
		Name: filepath.Base(path),
		Size: info.Size(),
	}
	if m, err := mimetype.DetectFile(path); err == nil {
		f.MIMEType = baseType(m.String())
	}
	if !IsAllowedMIMEType(f.MIMEType) {
		if t, ok := extensionTypes[strings.ToLower(filepath.Ext(path))]; ok {
			f.MIMEType = t
		}
	}
	return f, nil
}

func baseType(s string) string {
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// Extension returns the file's extension including the dot, or ".mp4".
func (f *File) Extension() string {
	if ext := filepath.Ext(f.Name); ext != "" && ext != "." {
		return ext
	}
	return ".mp4"
}

// ConvertedName replaces the extension with _converted.mp4. Names without an
// extension are kept as they are.
func ConvertedName(name string) string {
	ext := filepath.Ext(name)
	if ext == "" || ext == "." {
		return name
	}
	return strings.TrimSuffix(name, ext) + "_converted.mp4"
}
