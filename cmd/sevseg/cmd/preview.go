package cmd

import (
	"errors"
	"fmt"
	"image"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/sevseg/internal/capture"
	"github.com/MeKo-Tech/sevseg/internal/config"
	"github.com/MeKo-Tech/sevseg/internal/pipeline"
	"github.com/MeKo-Tech/sevseg/internal/threshold"
	"github.com/spf13/cobra"
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Save what the pipeline sees without classifying",
	Long: `Capture frames from the source and write the cropped display strip of each
(or the whole frame while the region is incomplete) into --out. With a
region set, the estimated threshold of every strip is printed, which helps
to pick a fixed --threshold.

Examples:
  sevseg preview --source 0 --count 5
  sevseg preview --source 0 --points "10,10 200,12 198,80 12,78" --binarize`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := GetConfig()
		count, _ := cmd.Flags().GetInt("count")
		outDir, _ := cmd.Flags().GetString("out")
		binarize, _ := cmd.Flags().GetBool("binarize")

		sink, err := capture.NewFrameSink(outDir)
		if err != nil {
			return err
		}
		if err := sink.Clear(); err != nil {
			return err
		}
		ctrl, err := newController(cfg, pipeline.NoOpObserver{})
		if err != nil {
			return err
		}
		fixed := ctrl.Threshold()
		est := cfg.ToEstimator()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		err = ctrl.Preview(ctx, func(pf pipeline.PreviewFrame) error {
			var img image.Image = pf.Frame
			line := fmt.Sprintf("frame %d: region incomplete", pf.Index)
			if pf.Strip != nil {
				img = pf.Strip
				t, err := est.Estimate(pf.Strip)
				switch {
				case err != nil:
					line = fmt.Sprintf("frame %d: no threshold (%v)", pf.Index, err)
				case fixed != nil:
					line = fmt.Sprintf("frame %d: estimated threshold %d, fixed %d", pf.Index, t, *fixed)
					t = *fixed
				default:
					line = fmt.Sprintf("frame %d: estimated threshold %d", pf.Index, t)
				}
				if binarize && err == nil {
					img = threshold.Binarize(pf.Strip, t)
				}
			}
			path, err := sink.Save(img)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "%s -> %s\n", line, path)
			if count > 0 && pf.Index+1 >= count {
				return pipeline.ErrStopPreview
			}
			return nil
		})
		if errors.Is(err, pipeline.ErrBusy) {
			return fmt.Errorf("source is in use: %w", err)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(previewCmd)
	addDisplayFlags(previewCmd)

	d := config.DefaultConfig()
	fs := previewCmd.Flags()
	fs.StringP("source", "s", d.Capture.Source, "camera index, video file, frame directory or watch:<dir>")
	fs.StringP("threshold", "t", d.Threshold.Value, `fixed threshold for --binarize (0..255 or "auto")`)
	fs.Int("count", 1, "frames to save (0 runs until interrupted)")
	fs.StringP("out", "o", "preview", "output directory")
	fs.Bool("binarize", false, "save binarized strips")
	bindFlag(fs, "source", "capture.source")
	bindFlag(fs, "threshold", "threshold.value")
}
