package util

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"golang.org/x/term"
)

// UISpinner wraps spinner for terminal progress output. When the output is not a
// terminal (or debug is set) it degrades to plain lines.
type UISpinner struct {
	sp    *spinner.Spinner
	out   io.Writer
	plain bool
}

// NewUISpinner creates and starts a spinner with the given message
func NewUISpinner(debug bool, message string) *UISpinner {
	s := &UISpinner{out: os.Stdout, plain: debug || !IsTerminal(os.Stdout)}

	if s.plain {
		fmt.Fprintf(s.out, "%s\n", message)
		return s
	}

	// Use dots spinner style (CharSet 14)
	s.sp = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(s.out))
	s.sp.Prefix = "  "
	s.sp.Suffix = " " + message
	s.sp.Start()
	return s
}

// Update replaces the spinner message
func (s *UISpinner) Update(message string) {
	if s.plain {
		return
	}
	s.sp.Lock()
	s.sp.Suffix = " " + message
	s.sp.Unlock()
}

// Success stops the spinner and prints a success message
func (s *UISpinner) Success(message string) {
	s.finish("✓", message)
}

// Fail stops the spinner and prints an error message
func (s *UISpinner) Fail(message string) {
	s.finish("✗", message)
}

// Stop stops the spinner without printing anything
func (s *UISpinner) Stop() {
	if s.sp != nil {
		s.sp.Stop()
		fmt.Fprint(s.out, "\r\033[K")
	}
}

func (s *UISpinner) finish(mark, message string) {
	if s.plain {
		fmt.Fprintf(s.out, "%s %s\n", mark, message)
		return
	}
	s.sp.Stop()
	fmt.Fprintf(s.out, "\r\033[K  %s %s\n", mark, message) // \033[K clears the line
}

// IsTerminal reports whether f is attached to a terminal
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
