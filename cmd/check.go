package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/slopify/slopify/packages/cli/internal/media/compat"
	"github.com/slopify/slopify/packages/cli/internal/util"
)

type CheckOptions struct {
	OutputFormat string
	SkipCodecs   bool
}

type checkReport struct {
	Supported       bool                   `json:"supported"`
	Message         string                 `json:"message"`
	Features        map[string]bool        `json:"features"`
	MissingFeatures []string               `json:"missing_features"`
	BestCodec       string                 `json:"best_codec,omitempty"`
	Libraries       []compat.LibraryStatus `json:"libraries"`
}

func NewCheckCommand() *cobra.Command {
	opts := &CheckOptions{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether this system can process video",
		Long:  "Report the capabilities the processing pipeline needs, the preferred output codec and the native codec libraries found on this system.",
		Example: `  slopify check
  slopify check --output json
  slopify check --skip-codecs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.OutputFormat, "output", "o", "text", "Output format (json or text)")
	flags.BoolVar(&opts.SkipCodecs, "skip-codecs", false, "Skip the test encodes used to pick a codec")

	cmd.RegisterFlagCompletionFunc("output", completeOutputFormat)

	return cmd
}

func runCheck(cmd *cobra.Command, opts *CheckOptions) error {
	prober := newProber()
	c := prober.CheckSupport()

	report := checkReport{
		Supported: c.Supported,
		Message:   compat.DescribeIncompatibility(c),
		Features: map[string]bool{
			compat.FeatureVideoDecoder:    c.Features.VideoDecoder,
			compat.FeatureVideoEncoder:    c.Features.VideoEncoder,
			compat.FeatureOffscreenCanvas: c.Features.OffscreenCanvas,
			compat.FeatureWebWorkers:      c.Features.WebWorkers,
		},
		MissingFeatures: c.MissingFeatures,
		Libraries:       compat.ProbeNativeLibraries(),
	}
	if report.MissingFeatures == nil {
		report.MissingFeatures = []string{}
	}
	if c.Supported && !opts.SkipCodecs {
		report.BestCodec = prober.SelectBestCodec(cmdContext(cmd))
	}

	out := cmd.OutOrStdout()
	if opts.OutputFormat == "json" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}
	printCheckReport(out, report)
	return nil
}

func printCheckReport(w io.Writer, r checkReport) {
	ok := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()
	status := func(v bool, yes, no string) string {
		if v {
			return ok(yes)
		}
		return bad(no)
	}

	fmt.Fprintln(w, r.Message)
	fmt.Fprintln(w)

	features := []map[string]interface{}{}
	for _, name := range []string{compat.FeatureVideoDecoder, compat.FeatureVideoEncoder, compat.FeatureOffscreenCanvas, compat.FeatureWebWorkers} {
		features = append(features, map[string]interface{}{
			"feature": name,
			"status":  status(r.Features[name], "available", "missing"),
		})
	}
	util.RenderTable(w, []util.TableColumn{
		{Header: "FEATURE", Key: "feature"},
		{Header: "STATUS", Key: "status"},
	}, features)

	if r.BestCodec != "" {
		fmt.Fprintf(w, "\nPreferred codec: %s\n", r.BestCodec)
	}

	fmt.Fprintln(w)
	libs := []map[string]interface{}{}
	for _, lib := range r.Libraries {
		detail := lib.Path
		if lib.Version != "" {
			detail += " (" + lib.Version + ")"
		}
		if !lib.Available {
			detail = lib.Error
		}
		libs = append(libs, map[string]interface{}{
			"library": lib.Name,
			"status":  status(lib.Available, "found", "not found"),
			"detail":  detail,
		})
	}
	util.RenderTable(w, []util.TableColumn{
		{Header: "LIBRARY", Key: "library"},
		{Header: "STATUS", Key: "status"},
		{Header: "DETAIL", Key: "detail"},
	}, libs)
}
