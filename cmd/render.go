package cmd

import (
	"fmt"
	"image/color"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/slopify/slopify/packages/cli/config"
	"github.com/slopify/slopify/packages/cli/internal/media/compositor"
	"github.com/slopify/slopify/packages/cli/internal/media/encoder"
	"github.com/slopify/slopify/packages/cli/internal/media/layout"
	"github.com/slopify/slopify/packages/cli/internal/media/output"
	"github.com/slopify/slopify/packages/cli/internal/media/processor"
	"github.com/slopify/slopify/packages/cli/internal/media/studio"
	"github.com/slopify/slopify/packages/cli/internal/util"
)

type RenderOptions struct {
	JobFile    string
	Main       string
	Overlays   []string
	Project    string
	Width      int
	Height     int
	FrameRate  float64
	Duration   float64
	Codec      string
	Background string
	OutputDir  string
	Filename   string
	Open       bool
	DryRun     bool
}

func NewRenderCommand() *cobra.Command {
	opts := &RenderOptions{}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a main video with overlays",
		Long: `Render a main video with up to eight overlay videos placed around it.

Overlays are given as path[@slot]. Slots are top-left, top-center, top-right,
middle-left, middle-right, bottom-left, bottom-center, bottom-right or their
index 0-7. Overlays without a slot fill the positions shown for the overlay
count. Shorter overlays loop over the main video's duration.`,
		Example: `  slopify render --main talk.mp4 --overlay react.mp4
  slopify render --main talk.mp4 --overlay a.mp4@top-left --overlay b.mp4@bottom-right --fps 24
  slopify render --main talk.mp4 --project 2d1c1b9e-52e4-4cbd-8f5e-0b6f63f1a7a1
  slopify render -f job.yaml --open`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.JobFile, "file", "f", "", "Render job manifest (YAML)")
	flags.StringVar(&opts.Main, "main", "", "Main video")
	flags.StringArrayVar(&opts.Overlays, "overlay", []string{}, "Overlay video as path[@slot] (repeatable)")
	flags.StringVar(&opts.Project, "project", "", "Use the overlays and positions of a saved project")
	flags.IntVar(&opts.Width, "width", 0, "Output width (default: main video width)")
	flags.IntVar(&opts.Height, "height", 0, "Output height (default: main video height)")
	flags.Float64Var(&opts.FrameRate, "fps", 0, "Output frame rate (default from config)")
	flags.Float64Var(&opts.Duration, "duration", 0, "Output duration in seconds (default: main video duration)")
	flags.StringVar(&opts.Codec, "codec", "", "Output codec, e.g. avc1.42E01E or vp8 (default: best supported)")
	flags.StringVar(&opts.Background, "background", "", "Canvas background color (default from config)")
	flags.StringVar(&opts.OutputDir, "output-dir", "", "Directory to save the video in (default from config)")
	flags.StringVar(&opts.Filename, "filename", "", "Output file name (default: slopify-video-<timestamp>.<ext>)")
	flags.BoolVar(&opts.Open, "open", false, "Open the saved video")
	flags.BoolVar(&opts.DryRun, "dry-run", false, "Decode and composite without encoding or saving")

	cmd.RegisterFlagCompletionFunc("codec", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"avc1.42E01E", "avc1.4D401E", "avc1.640028", "vp8", "vp09.00.10.08"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runRender(cmd *cobra.Command, opts *RenderOptions) error {
	job, err := renderJobFromOptions(opts)
	if err != nil {
		return err
	}
	overlays, err := assignOverlays(job.Overlays)
	if err != nil {
		return errors.Wrap(err, "invalid overlays")
	}

	bg, err := compositor.ParseHexColor(job.Background)
	if err != nil {
		return errors.Wrapf(err, "invalid background %q", job.Background)
	}

	ctx, stop := signal.NotifyContext(cmdContext(cmd), os.Interrupt)
	defer stop()

	encoders := ffmpegEncoders()
	if opts.DryRun {
		encoders = encoder.SyntheticFactory()
		if job.Codec == "" {
			job.Codec = encoder.DefaultCodec
		}
	}
	if job.Codec == "" {
		job.Codec = newProber().SelectBestCodec(ctx)
	}

	log := util.GetCompatLogger()
	log.Debugf("Rendering %s with %d overlays as %s at %.2f fps", job.Main, len(overlays), job.Codec, job.FrameRate)

	s := newStudio(job.OutputDir, job.FrameRate, encoders)
	progress := newRenderProgress()
	blob, err := s.ProcessVideos(ctx, job.Main, overlays, studio.Options{
		Width:      job.Width,
		Height:     job.Height,
		FrameRate:  job.FrameRate,
		Duration:   job.Duration,
		Codec:      job.Codec,
		Background: color.Color(bg),
	}, progress.update)
	progress.stop(err)
	if err != nil {
		var cerr *studio.CompatibilityError
		if errors.As(err, &cerr) {
			return errors.New(cerr.Message)
		}
		return errors.Wrap(err, "render failed")
	}

	out := cmd.OutOrStdout()
	if blob == nil {
		fmt.Fprintln(out, "Rendering cancelled")
		return nil
	}
	if opts.DryRun {
		fmt.Fprintf(out, "Dry run complete: %s of %s\n", output.FormatFileSize(int64(blob.Size())), blob.MIMEType)
		return nil
	}

	path, err := s.Download(blob, job.Filename)
	if err != nil {
		return errors.Wrap(err, "failed to save video")
	}
	fmt.Fprintf(out, "Saved %s (%s)\n", path, output.FormatFileSize(int64(blob.Size())))

	if job.Open {
		if err := s.Packager.Reveal(path); err != nil {
			return errors.Wrap(err, "failed to open video")
		}
	}
	return nil
}

// renderJobFromOptions merges the manifest (when given) with flags. Flags win.
func renderJobFromOptions(opts *RenderOptions) (*RenderJob, error) {
	job := &RenderJob{}
	if opts.JobFile != "" {
		loaded, err := loadRenderJob(opts.JobFile)
		if err != nil {
			return nil, err
		}
		job = loaded
	}

	if opts.Main != "" {
		job.Main = opts.Main
	}
	if job.Main == "" {
		return nil, errors.New("a main video is required: use --main or a job file")
	}

	if opts.Project != "" {
		ids, positions, err := projectOverlays(opts.Project)
		if err != nil {
			return nil, err
		}
		job.Overlays = nil
		for i, id := range ids {
			job.Overlays = append(job.Overlays, JobOverlay{Src: id, Position: layout.Position(positions[i]).String()})
		}
	}
	for _, o := range opts.Overlays {
		job.Overlays = append(job.Overlays, parseOverlayFlag(o))
	}

	if opts.Width > 0 {
		job.Width = opts.Width
	}
	if opts.Height > 0 {
		job.Height = opts.Height
	}
	if opts.FrameRate > 0 {
		job.FrameRate = opts.FrameRate
	}
	if job.FrameRate <= 0 {
		job.FrameRate = float64(config.GetFrameRate())
	}
	if opts.Duration > 0 {
		job.Duration = opts.Duration
	}
	if opts.Codec != "" {
		job.Codec = opts.Codec
	}
	if opts.Background != "" {
		job.Background = opts.Background
	}
	if job.Background == "" {
		job.Background = config.GetBackground()
	}
	if opts.OutputDir != "" {
		job.OutputDir = opts.OutputDir
	}
	if job.OutputDir == "" {
		job.OutputDir = config.GetOutputDir()
	}
	if opts.Filename != "" {
		job.Filename = opts.Filename
	}
	job.Open = job.Open || opts.Open
	return job, nil
}

func projectOverlays(id string) ([]string, []int, error) {
	p, err := newProjectStore().Get(config.GetProjectUser(), id)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load project")
	}
	if p == nil {
		return nil, nil, errors.Errorf("project %s not found", id)
	}
	g, err := p.Assignment()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "project %s has an invalid layout", id)
	}
	return g.OverlayIDs(), g.Positions(), nil
}

// renderProgress shows processor progress on a spinner.
type renderProgress struct {
	sp    *util.UISpinner
	stage processor.Stage
}

func newRenderProgress() *renderProgress {
	return &renderProgress{}
}

func (r *renderProgress) update(p processor.Progress) {
	msg := renderMessage(p)
	if r.sp == nil {
		r.sp = util.NewUISpinner(verbose, msg)
		r.stage = p.Stage
		return
	}
	if p.Stage != r.stage && (verbose || !util.IsTerminal(os.Stdout)) {
		fmt.Println(msg)
	}
	r.stage = p.Stage
	r.sp.Update(msg)
}

func (r *renderProgress) stop(err error) {
	if r.sp == nil {
		return
	}
	switch {
	case err != nil:
		r.sp.Fail("Rendering failed")
	case r.stage == processor.StageComplete:
		r.sp.Success("Rendering complete")
	default:
		r.sp.Stop()
	}
	r.sp = nil
}

func renderMessage(p processor.Progress) string {
	switch p.Stage {
	case processor.StageProcessing:
		return fmt.Sprintf("Processing frame %d/%d (%d%%)", p.CurrentFrame, p.TotalFrames, p.Percentage)
	case processor.StageEncoding:
		return "Encoding..."
	case processor.StageFinalizing:
		return "Finalizing..."
	case processor.StageComplete:
		return "Complete"
	case processor.StageCancelled:
		return "Cancelled"
	default:
		return "Initializing..."
	}
}
