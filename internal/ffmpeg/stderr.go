package ffmpeg

import (
	"bytes"
	"sync"
)

// maxStderr bounds how much child stderr is kept for error messages.
const maxStderr = 64 * 1024

// StderrBuffer collects a child's stderr. exec copies into it from its own
// goroutine, so reads are safe while the process is still running. Only the
// last maxStderr bytes are kept.
type StderrBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *StderrBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(p)
	if len(p) > maxStderr {
		p = p[len(p)-maxStderr:]
	}
	if over := b.buf.Len() + len(p) - maxStderr; over > 0 {
		b.buf.Next(over)
	}
	b.buf.Write(p)
	return n, nil
}

func (b *StderrBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *StderrBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}
