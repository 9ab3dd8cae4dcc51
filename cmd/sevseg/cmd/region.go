package cmd

import (
	"errors"
	"fmt"
	"image"

	"github.com/MeKo-Tech/sevseg/internal/capture"
	"github.com/MeKo-Tech/sevseg/internal/region"
	"github.com/MeKo-Tech/sevseg/internal/threshold"
	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
)

var regionCmd = &cobra.Command{
	Use:   "region",
	Short: "Work with the display region",
	Long: `Helpers for picking the four display corners. Points are written as
"x,y x,y x,y x,y" in frame pixels and are accepted in any order.`,
}

var regionOrderCmd = &cobra.Command{
	Use:   "order <points>",
	Short: "Print four points as top-left, top-right, bottom-right, bottom-left",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pts, err := region.ParsePoints(args[0])
		if err != nil {
			return err
		}
		q, ok := region.OrderPoints(pts)
		if !ok {
			return fmt.Errorf("need exactly 4 points, got %d", len(pts))
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), q.String())
		return nil
	},
}

var regionAddCmd = &cobra.Command{
	Use:   "add <x,y>",
	Short: "Apply one click to the configured points",
	Long: `Append a point while fewer than four are set, otherwise replace the
nearest one. The resulting point set is printed and can be passed back
with --points.

Examples:
  sevseg region add 10,10
  sevseg region add --points "10,10 200,12 198,80" 12,78`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		click, err := region.ParsePoints(args[0])
		if err != nil {
			return err
		}
		if len(click) != 1 {
			return fmt.Errorf("want one point, got %d", len(click))
		}
		pts, err := GetConfig().Points()
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), region.FormatPoints(region.AddPoint(pts, click[0])))
		return nil
	},
}

var regionCropCmd = &cobra.Command{
	Use:   "crop <image>",
	Short: "Crop the configured region out of one frame",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		outPath, _ := cmd.Flags().GetString("out")
		binarize, _ := cmd.Flags().GetBool("binarize")

		pts, err := cfg.Points()
		if err != nil {
			return err
		}
		frame, err := capture.LoadFrame(args[0])
		if err != nil {
			return err
		}
		strip := cfg.ToParams().Extractor().Crop(frame, pts)
		if strip == nil {
			return errors.New("cannot crop: the region needs four non-collinear points")
		}

		var img image.Image = strip
		msg := fmt.Sprintf("wrote %dx%d strip to %s", strip.Bounds().Dx(), strip.Bounds().Dy(), outPath)
		if binarize {
			th := threshold.New(cfg.ToParams().Threshold, cfg.ToEstimator())
			bin, t, err := th.Apply(strip)
			if err != nil {
				return err
			}
			img = bin
			msg += fmt.Sprintf(" (threshold %d)", t)
		}
		if err := imaging.Save(img, outPath); err != nil {
			return fmt.Errorf("save strip: %w", err)
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(regionCmd)
	regionCmd.AddCommand(regionOrderCmd, regionAddCmd, regionCropCmd)

	af := regionAddCmd.Flags()
	af.String("points", "", `current points as "x,y ..."`)
	bindFlag(af, "points", "display.points")

	addDisplayFlags(regionCropCmd)
	cf := regionCropCmd.Flags()
	cf.StringP("out", "o", "strip.png", "output image")
	cf.Bool("binarize", false, "binarize the strip before saving")
	cf.StringP("threshold", "t", "auto", `threshold for --binarize (0..255 or "auto")`)
	bindFlag(cf, "threshold", "threshold.value")
}
