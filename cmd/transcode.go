package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/slopify/slopify/packages/cli/internal/media/ingest"
	"github.com/slopify/slopify/packages/cli/internal/media/output"
)

type TranscodeOptions struct {
	OutputDir    string
	MaxWidth     int
	MaxHeight    int
	VideoBitrate int
}

func NewTranscodeCommand() *cobra.Command {
	opts := &TranscodeOptions{}

	cmd := &cobra.Command{
		Use:   "transcode <file>",
		Short: "Convert a video to H.264 MP4",
		Long:  "Convert a video to H.264 high profile MP4 with AAC audio, scaled down to fit the maximum size. Press Ctrl+C to cancel.",
		Example: `  slopify transcode clip.mov
  slopify transcode clip.mkv --output-dir ./converted --max-width 1280 --max-height 720`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranscode(cmd, opts, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.OutputDir, "output-dir", "", "Directory for the converted file (default: next to the input)")
	flags.IntVar(&opts.MaxWidth, "max-width", 0, "Maximum output width (default from config)")
	flags.IntVar(&opts.MaxHeight, "max-height", 0, "Maximum output height (default from config)")
	flags.IntVar(&opts.VideoBitrate, "video-bitrate", 0, "Video bitrate in bits per second")

	return cmd
}

func runTranscode(cmd *cobra.Command, opts *TranscodeOptions, path string) error {
	f, err := ingest.OpenFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", path)
	}

	cfg := transcodeConfig()
	if opts.MaxWidth > 0 {
		cfg.MaxWidth = opts.MaxWidth
	}
	if opts.MaxHeight > 0 {
		cfg.MaxHeight = opts.MaxHeight
	}
	if opts.VideoBitrate > 0 {
		cfg.VideoBitrate = opts.VideoBitrate
	}

	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt)
	defer stop()

	t := ingest.NewTranscoder(sharedEngineService(), nil)
	t.OutputDir = opts.OutputDir

	onProgress, stopSpinner := transcodeSpinner(true)
	outcome := t.TranscodeVideo(ctx, f, cfg, onProgress)
	stopSpinner()

	if !outcome.Success {
		return errors.New(outcome.Error)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Converted %s (%s) to %s (%s)\n",
		f.Path, output.FormatFileSize(outcome.OriginalSize),
		outcome.File.Path, output.FormatFileSize(outcome.TranscodedSize))
	return nil
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
