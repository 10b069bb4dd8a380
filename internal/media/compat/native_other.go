//go:build !darwin && !linux

package compat

// ProbeNativeLibraries reports every library unavailable on this platform.
func ProbeNativeLibraries() []LibraryStatus {
	return []LibraryStatus{
		{Name: "libx264", Error: "dynamic loading not supported on this platform"},
		{Name: "libvpx", Error: "dynamic loading not supported on this platform"},
		{Name: "libavcodec", Error: "dynamic loading not supported on this platform"},
	}
}
