package compat

// LibraryStatus describes one native codec library.
type LibraryStatus struct {
	Name      string
	Path      string
	Available bool
	Version   string
	Error     string
}

type nativeLibrary struct {
	name       string
	candidates []string
	// versionSymbol returns a version string when present.
	versionSymbol string
}
