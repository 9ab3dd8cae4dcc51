package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/MeKo-Tech/sevseg/internal/config"
	"github.com/MeKo-Tech/sevseg/internal/pipeline"
	"github.com/MeKo-Tech/sevseg/internal/store"
	"github.com/spf13/cobra"
)

// newClassifier replaces the configured classifier backend when set.
var newClassifier pipeline.ClassifierFactory

var liveCmd = &cobra.Command{
	Use:   "live",
	Short: "Sample a live source and print one reading per interval",
	Long: `Capture a batch of frames from the source every interval, classify the
display in each of them and print the aggregated reading.

The run stops after --duration, when a finite source is exhausted, or on
Ctrl-C. Readings are recorded in the run database unless --store=false.
Edits to threshold.value in the config file apply to the running session.

Examples:
  sevseg live --source 0 --points "10,10 200,12 198,80 12,78"
  sevseg live --source watch:./incoming --interval 2s --frames 3
  sevseg live --duration 10m --threshold 90 --save-frames`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runDetection(cmd, GetConfig(), pipeline.ModeLive)
	},
}

var replayCmd = &cobra.Command{
	Use:   "replay <recording>",
	Short: "Replay a recording as if it were sampled live",
	Long: `Partition a video file or a directory of frames into sampling intervals
using its frame rate, and print one reading per interval with its offset
into the recording.

Examples:
  sevseg replay meter.mp4
  sevseg replay ./frames --fps 10 --interval 500ms --frames 3
  sevseg replay meter.mp4 --skip 1m30s --save-frames --frame-dir out`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		cfg.Capture.Source = args[0]
		return runDetection(cmd, cfg, pipeline.ModeReplay)
	},
}

func init() {
	rootCmd.AddCommand(liveCmd, replayCmd)

	addDisplayFlags(liveCmd)
	addDetectionFlags(liveCmd)
	d := config.DefaultConfig()
	lf := liveCmd.Flags()
	lf.StringP("source", "s", d.Capture.Source, "camera index, video file, frame directory or watch:<dir>")
	lf.Duration("duration", d.Capture.Duration, "stop after this long (0 runs until interrupted)")
	lf.Int("width", d.Capture.Width, "requested capture width")
	lf.Int("height", d.Capture.Height, "requested capture height")
	bindFlag(lf, "source", "capture.source")
	bindFlag(lf, "duration", "capture.duration")
	bindFlag(lf, "width", "capture.width")
	bindFlag(lf, "height", "capture.height")

	addDisplayFlags(replayCmd)
	addDetectionFlags(replayCmd)
	rf := replayCmd.Flags()
	rf.Float64("fps", d.Replay.FPS, "frame rate of the recording (0 reads it from the file)")
	rf.Duration("skip", d.Replay.Skip, "start this far into the recording")
	bindFlag(rf, "fps", "replay.fps")
	bindFlag(rf, "skip", "replay.skip")
}

// addDisplayFlags registers the region flags shared by every command that
// crops the display.
func addDisplayFlags(c *cobra.Command) {
	d := config.DefaultConfig()
	fs := c.Flags()
	fs.String("points", d.Display.Points, `display corners as "x,y x,y x,y x,y"`)
	fs.IntP("digits", "d", d.Display.DigitCount, "number of digits on the display")
	fs.Int("crop-width", d.Display.CropWidth, "strip width per digit")
	fs.Int("crop-height", d.Display.CropHeight, "strip height")
	bindFlag(fs, "points", "display.points")
	bindFlag(fs, "digits", "display.digit_count")
	bindFlag(fs, "crop-width", "display.crop_width")
	bindFlag(fs, "crop-height", "display.crop_height")
}

func addDetectionFlags(c *cobra.Command) {
	d := config.DefaultConfig()
	fs := c.Flags()
	fs.DurationP("interval", "i", d.Capture.Interval, "sampling interval")
	fs.IntP("frames", "n", d.Capture.FramesPerSample, "frames per reading")
	fs.StringP("threshold", "t", d.Threshold.Value, `binarization threshold (0..255 or "auto")`)
	fs.Bool("save-frames", d.Capture.SaveFrames, "save every classified frame")
	fs.String("frame-dir", d.Capture.FrameDir, "directory for saved frames")
	fs.String("backend", d.Classifier.Backend, "classifier backend (auto, onnx, dense, tesseract)")
	fs.Bool("store", d.Store.Enabled, "record the run in the database")
	bindFlag(fs, "interval", "capture.interval")
	bindFlag(fs, "frames", "capture.frames_per_sample")
	bindFlag(fs, "threshold", "threshold.value")
	bindFlag(fs, "save-frames", "capture.save_frames")
	bindFlag(fs, "frame-dir", "capture.frame_dir")
	bindFlag(fs, "backend", "classifier.backend")
	bindFlag(fs, "store", "store.enabled")
}

// newController builds a controller for cfg reporting to obs.
func newController(cfg *config.Config, obs pipeline.Observer) (*pipeline.Controller, error) {
	opts := []pipeline.Option{
		pipeline.WithObserver(obs),
		pipeline.WithEstimator(cfg.ToEstimator()),
		pipeline.WithCaptureOptions(cfg.ToCaptureOptions()),
	}
	if newClassifier != nil {
		opts = append(opts, pipeline.WithClassifierFactory(newClassifier))
	} else {
		opts = append(opts, pipeline.WithClassifierConfig(cfg.ToClassifierConfig()))
	}
	return pipeline.NewController(cfg.ToParams(), opts...)
}

// openStore opens the run database when recording is enabled; it returns a
// nil store otherwise.
func openStore(cfg *config.Config) (*store.Store, error) {
	if !cfg.Store.Enabled {
		return nil, nil
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open run database: %w", err)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if st == nil {
		return
	}
	if err := st.Close(); err != nil {
		slog.Warn("failed to close run database", "error", err)
	}
}

func runDetection(cmd *cobra.Command, cfg *config.Config, mode pipeline.Mode) error {
	out := cmd.OutOrStdout()
	observers := pipeline.MultiObserver{
		pipeline.NewConsoleObserver(out),
		pipeline.NewLogObserver(slog.Default(), slog.LevelDebug),
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(st)
	var rec *store.Recorder
	if st != nil {
		rec = store.NewRecorder(st, cfg.Capture.Source, cfg.Display.DigitCount)
		observers = append(observers, rec)
	}

	ctrl, err := newController(cfg, observers)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if mode == pipeline.ModeReplay {
		err = ctrl.RunReplay(ctx)
	} else {
		watchThreshold(ctrl)
		err = ctrl.RunLive(ctx)
	}
	if rec != nil {
		printRunID(out, rec.RunID())
	}
	return err
}

func printRunID(w io.Writer, id string) {
	if id != "" {
		_, _ = fmt.Fprintf(w, "run %s recorded\n", id)
	}
}
