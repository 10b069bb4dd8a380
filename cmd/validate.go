package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/slopify/slopify/packages/cli/internal/media/ingest"
	"github.com/slopify/slopify/packages/cli/internal/media/output"
	"github.com/slopify/slopify/packages/cli/internal/util"
)

type ValidateOptions struct {
	Transcode    bool
	OutputDir    string
	OutputFormat string
}

type validateReport struct {
	File            string           `json:"file"`
	Valid           bool             `json:"valid"`
	Metadata        *ingest.Metadata `json:"metadata,omitempty"`
	ErrorKind       string           `json:"error_kind,omitempty"`
	Error           string           `json:"error,omitempty"`
	NeedsTranscode  bool             `json:"needs_transcode,omitempty"`
	Transcoded      bool             `json:"transcoded,omitempty"`
	ConvertedPath   string           `json:"converted_path,omitempty"`
	ConversionError string           `json:"conversion_error,omitempty"`
}

func NewValidateCommand() *cobra.Command {
	opts := &ValidateOptions{}

	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check that video files can be used as sources",
		Long:  "Validate format, size and duration of each file. Files of an accepted type that cannot be decoded can be converted to H.264 MP4 with --transcode.",
		Example: `  slopify validate clip.mp4
  slopify validate intro.mov outro.webm --output json
  slopify validate old.avi --transcode --output-dir ./converted`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.Transcode, "transcode", false, "Convert files the decoder cannot read")
	flags.StringVar(&opts.OutputDir, "output-dir", "", "Directory for converted files (default: next to the input)")
	flags.StringVarP(&opts.OutputFormat, "output", "o", "text", "Output format (json or text)")

	cmd.RegisterFlagCompletionFunc("output", completeOutputFormat)

	return cmd
}

func runValidate(cmd *cobra.Command, opts *ValidateOptions, paths []string) error {
	ctx := cmdContext(cmd)
	in := newIngester()
	in.Transcoder.OutputDir = opts.OutputDir
	util.GetCompatLogger().Debugf("Validating %d files (transcode=%v)", len(paths), opts.Transcode)

	var reports []validateReport
	failed := 0
	for _, path := range paths {
		f, err := ingest.OpenFile(path)
		if err != nil {
			return errors.Wrapf(err, "failed to open %s", path)
		}

		report := validateReport{File: f.Path}
		var res ingest.Result
		if opts.Transcode {
			onProgress, stop := transcodeSpinner(opts.OutputFormat != "json")
			res = in.Ingest(ctx, f, onProgress)
			stop()
		} else {
			res = ingest.Result{File: f, Validation: in.Validator.Validate(ctx, f)}
			if v := res.Validation; !v.Valid && v.Error.Kind == ingest.KindFormat && ingest.IsAllowedMIMEType(f.MIMEType) {
				report.NeedsTranscode = in.Checker.NeedsTranscoding(ctx, f)
			}
		}

		report.Valid = res.OK()
		report.Metadata = res.Validation.Metadata
		if res.Validation.Error != nil {
			report.ErrorKind = string(res.Validation.Error.Kind)
			report.Error = res.Validation.Error.Message
		}
		report.Transcoded = res.Transcoded
		if res.Transcoded {
			report.ConvertedPath = res.File.Path
		}
		report.ConversionError = res.ConversionError
		if !report.Valid {
			failed++
		}
		reports = append(reports, report)
	}

	out := cmd.OutOrStdout()
	if opts.OutputFormat == "json" {
		data, _ := json.MarshalIndent(reports, "", "  ")
		fmt.Fprintln(out, string(data))
	} else {
		for _, r := range reports {
			printValidateReport(out, r)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed validation", failed, len(paths))
	}
	return nil
}

func printValidateReport(w io.Writer, r validateReport) {
	if r.Valid {
		m := r.Metadata
		fmt.Fprintf(w, "%s %s: %dx%d, %.2fs, %s, %s\n", color.GreenString("✓"), r.File,
			m.Width, m.Height, m.Duration, output.FormatFileSize(m.Size), m.Type)
		if r.Transcoded {
			fmt.Fprintf(w, "  converted to %s\n", r.ConvertedPath)
		}
		return
	}
	fmt.Fprintf(w, "%s %s: %s\n", color.RedString("✗"), r.File, r.Error)
	if r.ConversionError != "" {
		fmt.Fprintf(w, "  %s\n", r.ConversionError)
	}
	if r.NeedsTranscode {
		fmt.Fprintln(w, "  This file may be converted: run again with --transcode")
	}
}

// progressSpinner renders transcoding progress on a UISpinner.
type progressSpinner struct {
	sp *util.UISpinner
}

func (p *progressSpinner) update(ev ingest.TranscodeProgress) {
	msg := fmt.Sprintf("%s (%d%%)", ev.Message, ev.Percentage)
	switch {
	case ev.Stage == ingest.StageComplete:
		if p.sp != nil {
			p.sp.Success(ev.Message)
			p.sp = nil
		}
	case ev.Stage == ingest.StageError:
		if p.sp != nil {
			p.sp.Fail(ev.Message)
			p.sp = nil
		}
	case p.sp == nil:
		p.sp = util.NewUISpinner(verbose, msg)
	default:
		p.sp.Update(msg)
	}
}

// stop clears a spinner left running by a cancelled conversion.
func (p *progressSpinner) stop() {
	if p.sp != nil {
		p.sp.Stop()
		p.sp = nil
	}
}

// transcodeSpinner returns a progress callback and a cleanup func. The
// callback is nil when progress should not be shown.
func transcodeSpinner(show bool) (func(ingest.TranscodeProgress), func()) {
	if !show {
		return nil, func() {}
	}
	p := &progressSpinner{}
	return p.update, p.stop
}
