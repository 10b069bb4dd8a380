package ingest

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/slopify/slopify/packages/cli/internal/util"
)

const (
	MsgEngineLoading = "Downloading video converter..."
	MsgEngineReady   = "Video converter ready"
)

type loadCall struct {
	done   chan struct{}
	engine Engine
	err    error
}

// EngineService owns the transcoding engine. The engine loads lazily on the
// first Acquire; concurrent acquires share one in-flight load. Every successful
// Acquire must be paired with Release, and the engine unloads when the last
// reference goes away.
type EngineService struct {
	loader Loader
	logger *slog.Logger

	mu      sync.Mutex
	engine  Engine
	loading *loadCall
	refs    int
	loads   int
}

// NewEngineService creates a service around loader.
func NewEngineService(loader Loader, logger *slog.Logger) *EngineService {
	return &EngineService{loader: loader, logger: util.ComponentLogger(logger, "engine_service")}
}

// Acquire returns the loaded engine. Only the caller that starts a load sees
// the loading-ffmpeg progress events.
func (s *EngineService) Acquire(ctx context.Context, onProgress func(TranscodeProgress)) (Engine, error) {
	s.mu.Lock()
	if s.engine != nil {
		s.refs++
		e := s.engine
		s.mu.Unlock()
		return e, nil
	}
	call := s.loading
	owner := call == nil
	if owner {
		call = &loadCall{done: make(chan struct{})}
		s.loading = call
		s.loads++
	}
	s.mu.Unlock()

	if owner {
		if onProgress != nil {
			onProgress(TranscodeProgress{Stage: StageLoadingFFmpeg, Percentage: 0, Message: MsgEngineLoading})
		}
		s.logger.Debug("Loading transcoding engine")
		call.engine, call.err = s.loader(ctx)

		s.mu.Lock()
		s.loading = nil
		if call.err == nil {
			s.engine = call.engine
		}
		s.mu.Unlock()
		close(call.done)

		if call.err != nil {
			s.logger.Warn("Failed to load transcoding engine", "error", call.err)
			return nil, call.err
		}
		if onProgress != nil {
			onProgress(TranscodeProgress{Stage: StageLoadingFFmpeg, Percentage: 100, Message: MsgEngineReady})
		}
	} else {
		select {
		case <-call.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if call.err != nil {
			return nil, call.err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		// Unloaded between the load and this acquire.
		s.engine = call.engine
	}
	s.refs++
	return s.engine, nil
}

// Release drops one reference.
func (s *EngineService) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refs == 0 {
		return
	}
	s.refs--
	if s.refs > 0 || s.engine == nil {
		return
	}
	if c, ok := s.engine.(io.Closer); ok {
		if err := c.Close(); err != nil {
			s.logger.Warn("Failed to unload transcoding engine", "error", err)
		}
	}
	s.engine = nil
	s.logger.Debug("Transcoding engine unloaded")
}

// IsLoaded reports whether an engine is currently loaded.
func (s *EngineService) IsLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine != nil
}

// Loads returns how many times the loader ran.
func (s *EngineService) Loads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}
