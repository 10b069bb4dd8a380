package cmd

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/slopify/slopify/packages/cli/internal/media/layout"
	"github.com/slopify/slopify/packages/cli/internal/util"
)

type LayoutOptions struct {
	Width        int
	Height       int
	Grid         bool
	OutputFormat string
}

type layoutSlot struct {
	Index    int    `json:"index"`
	Position string `json:"position"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

func NewLayoutCommand() *cobra.Command {
	opts := &LayoutOptions{}

	cmd := &cobra.Command{
		Use:   "layout [count]",
		Short: "Show overlay positions for a canvas",
		Long:  "Show which positions are used for a number of overlays (all eight when omitted) and where they are drawn on a canvas.",
		Example: `  slopify layout 2
  slopify layout 4 --width 1280 --height 720
  slopify layout --grid --output json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count := layout.TotalOverlayPositions
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 0 || n > layout.TotalOverlayPositions {
					return fmt.Errorf("count must be between 0 and %d", layout.TotalOverlayPositions)
				}
				count = n
			}
			return runLayout(cmd, opts, count)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.Width, "width", 1920, "Canvas width")
	flags.IntVar(&opts.Height, "height", 1080, "Canvas height")
	flags.BoolVar(&opts.Grid, "grid", false, "Use the uniform 3x3 grid geometry")
	flags.StringVarP(&opts.OutputFormat, "output", "o", "text", "Output format (json or text)")

	cmd.RegisterFlagCompletionFunc("output", completeOutputFormat)

	return cmd
}

func layoutSlots(count, width, height int, grid bool) []layoutSlot {
	slots := []layoutSlot{}
	for _, p := range layout.VisiblePositions(count) {
		s := layoutSlot{Index: int(p), Position: p.String()}
		if grid {
			r := layout.GridCellGeometry(p)
			s.X = int(math.Round(r.X * float64(width)))
			s.Y = int(math.Round(r.Y * float64(height)))
			s.Width = int(math.Round(r.W * float64(width)))
			s.Height = int(math.Round(r.H * float64(height)))
		} else {
			r := layout.PixelGeometry(p, width, height)
			s.X, s.Y, s.Width, s.Height = r.Min.X, r.Min.Y, r.Dx(), r.Dy()
		}
		slots = append(slots, s)
	}
	return slots
}

func runLayout(cmd *cobra.Command, opts *LayoutOptions, count int) error {
	if opts.Width <= 0 || opts.Height <= 0 {
		return fmt.Errorf("invalid canvas size %dx%d", opts.Width, opts.Height)
	}
	slots := layoutSlots(count, opts.Width, opts.Height, opts.Grid)

	out := cmd.OutOrStdout()
	if opts.OutputFormat == "json" {
		data, _ := json.MarshalIndent(slots, "", "  ")
		fmt.Fprintln(out, string(data))
		return nil
	}

	rows := make([]map[string]interface{}, 0, len(slots))
	for _, s := range slots {
		rows = append(rows, map[string]interface{}{
			"index":    s.Index,
			"position": s.Position,
			"origin":   fmt.Sprintf("%d,%d", s.X, s.Y),
			"size":     fmt.Sprintf("%dx%d", s.Width, s.Height),
		})
	}
	util.RenderTable(out, []util.TableColumn{
		{Header: "INDEX", Key: "index", AlignRight: true},
		{Header: "POSITION", Key: "position"},
		{Header: "ORIGIN", Key: "origin"},
		{Header: "SIZE", Key: "size"},
	}, rows)
	return nil
}
