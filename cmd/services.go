package cmd

import (
	"github.com/slopify/slopify/packages/cli/config"
	"github.com/slopify/slopify/packages/cli/internal/ffmpeg"
	"github.com/slopify/slopify/packages/cli/internal/media/compat"
	"github.com/slopify/slopify/packages/cli/internal/media/encoder"
	"github.com/slopify/slopify/packages/cli/internal/media/ingest"
	"github.com/slopify/slopify/packages/cli/internal/media/output"
	"github.com/slopify/slopify/packages/cli/internal/media/processor"
	"github.com/slopify/slopify/packages/cli/internal/media/source"
	"github.com/slopify/slopify/packages/cli/internal/media/studio"
	"github.com/slopify/slopify/packages/cli/internal/project"
	"github.com/slopify/slopify/packages/cli/internal/util"
)

// engineService is shared by every transcode a command starts, so the ffmpeg
// engine is loaded at most once per process.
var engineService *ingest.EngineService

func sharedEngineService() *ingest.EngineService {
	if engineService == nil {
		logger := util.GetLogger()
		engineService = ingest.NewEngineService(ingest.FFmpegLoader(config.GetFFmpegPath(), ffmpeg.ExecRunner{}, logger), logger)
	}
	return engineService
}

func newProber() *compat.Prober {
	return compat.NewProber(config.GetFFmpegPath(), config.GetFFprobePath())
}

func newIngester() *ingest.Ingester {
	logger := util.GetLogger()
	in := ingest.NewIngester(
		ingest.NewValidator(ingest.NewProbeReader(config.GetFFprobePath())),
		ingest.NewDecodeChecker(config.GetFFprobePath(), config.GetFFmpegPath()),
		ingest.NewTranscoder(sharedEngineService(), logger),
		logger,
	)
	in.Config = transcodeConfig()
	return in
}

func transcodeConfig() ingest.TranscodeConfig {
	cfg := ingest.DefaultTranscodeConfig()
	cfg.MaxWidth = config.GetTranscodeMaxWidth()
	cfg.MaxHeight = config.GetTranscodeMaxHeight()
	return cfg
}

func newStudio(outputDir string, frameRate float64, encoders encoder.Factory) *studio.Studio {
	logger := util.GetLogger()
	opener := source.NewFileOpener(source.Options{
		FFmpegPath:  config.GetFFmpegPath(),
		FFprobePath: config.GetFFprobePath(),
		FrameRate:   frameRate,
		Logger:      logger,
	})
	return studio.New(newProber(), opener, processor.New(encoders, logger), output.NewPackager(outputDir, logger), logger)
}

func ffmpegEncoders() encoder.Factory {
	return encoder.FFmpegFactory(config.GetFFmpegPath(), util.GetLogger())
}

func newProjectStore() *project.Store {
	return project.NewDefaultStore()
}
