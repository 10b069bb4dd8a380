//go:build darwin || linux

package compat

import (
	"fmt"
	"runtime"

	"github.com/ebitengine/purego"
)

func nativeLibraries() []nativeLibrary {
	if runtime.GOOS == "darwin" {
		return []nativeLibrary{
			{name: "libx264", candidates: []string{"libx264.dylib", "/opt/homebrew/lib/libx264.dylib", "/usr/local/lib/libx264.dylib"}},
			{name: "libvpx", candidates: []string{"libvpx.dylib", "/opt/homebrew/lib/libvpx.dylib", "/usr/local/lib/libvpx.dylib"}, versionSymbol: "vpx_codec_version_str"},
			{name: "libavcodec", candidates: []string{"libavcodec.dylib", "/opt/homebrew/lib/libavcodec.dylib", "/usr/local/lib/libavcodec.dylib"}},
		}
	}
	return []nativeLibrary{
		{name: "libx264", candidates: []string{"libx264.so", "libx264.so.164", "libx264.so.163"}},
		{name: "libvpx", candidates: []string{"libvpx.so", "libvpx.so.9", "libvpx.so.8", "libvpx.so.7"}, versionSymbol: "vpx_codec_version_str"},
		{name: "libavcodec", candidates: []string{"libavcodec.so", "libavcodec.so.61", "libavcodec.so.60", "libavcodec.so.59"}},
	}
}

// ProbeNativeLibraries tries to dlopen each codec library. It only informs
// diagnostics; processing runs through the ffmpeg binary either way.
func ProbeNativeLibraries() []LibraryStatus {
	libs := nativeLibraries()
	out := make([]LibraryStatus, 0, len(libs))
	for _, lib := range libs {
		out = append(out, probeLibrary(lib))
	}
	return out
}

func probeLibrary(lib nativeLibrary) LibraryStatus {
	status := LibraryStatus{Name: lib.name}
	var lastErr error
	for _, path := range lib.candidates {
		handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			lastErr = err
			continue
		}
		status.Path = path
		status.Available = true
		if lib.versionSymbol != "" {
			status.Version = readVersion(handle, lib.versionSymbol)
		}
		purego.Dlclose(handle)
		return status
	}
	if lastErr != nil {
		status.Error = fmt.Sprintf("not found: %v", lastErr)
	}
	return status
}

func readVersion(handle uintptr, symbol string) string {
	if _, err := purego.Dlsym(handle, symbol); err != nil {
		return ""
	}
	var version func() string
	purego.RegisterLibFunc(&version, handle, symbol)
	return version()
}
