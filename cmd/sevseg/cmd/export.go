package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/sevseg/internal/config"
	"github.com/MeKo-Tech/sevseg/internal/export"
	"github.com/MeKo-Tech/sevseg/internal/store"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the readings of a recorded run",
	Long: `Write the readings of a recorded run as CSV, JSON, an aligned text table,
or a PNG chart. Without --run the most recent run is exported. Without
--format the format follows the extension of --out, defaulting to text.

Examples:
  sevseg export
  sevseg export --format csv --out readings.csv
  sevseg export --run 5f0c... --out chart.png`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		runID, _ := cmd.Flags().GetString("run")
		outPath, _ := cmd.Flags().GetString("out")
		formatName, _ := cmd.Flags().GetString("format")

		format, err := exportFormat(formatName, outPath)
		if err != nil {
			return err
		}

		st, err := openExistingStore(GetConfig())
		if err != nil {
			return err
		}
		defer closeStore(st)

		run, err := resolveRun(st, runID)
		if err != nil {
			return err
		}
		results, err := st.Results(run.ID)
		if err != nil {
			return err
		}

		var w io.Writer = cmd.OutOrStdout()
		toFile := outPath != "" && outPath != "-"
		if toFile {
			f, err := os.Create(outPath) //nolint:gosec // user-chosen output path
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			defer func() { _ = f.Close() }()
			w = f
		}
		if err := export.Write(w, format, run.ID, results); err != nil {
			return fmt.Errorf("export run %s: %w", run.ID, err)
		}
		if toFile {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "exported %d readings of run %s to %s\n", len(results), run.ID, outPath)
		}
		return nil
	},
}

// exportFormat picks the explicit format, or the one implied by path.
func exportFormat(name, path string) (export.Format, error) {
	if name != "" {
		return export.ParseFormat(name)
	}
	if ext := strings.TrimPrefix(filepath.Ext(path), "."); ext != "" {
		if ext == "txt" {
			return export.FormatText, nil
		}
		return export.ParseFormat(ext)
	}
	return export.FormatText, nil
}

// openExistingStore opens the run database for reading without creating it.
func openExistingStore(cfg *config.Config) (*store.Store, error) {
	if _, err := os.Stat(cfg.Store.Path); err != nil {
		return nil, fmt.Errorf("no run database at %s", cfg.Store.Path)
	}
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open run database: %w", err)
	}
	return st, nil
}

func resolveRun(st *store.Store, id string) (store.Run, error) {
	var (
		run store.Run
		err error
	)
	if id == "" {
		run, err = st.LatestRun()
	} else {
		run, err = st.Run(id)
	}
	if errors.Is(err, store.ErrRunNotFound) {
		if id == "" {
			return store.Run{}, errors.New("no runs recorded yet")
		}
		return store.Run{}, fmt.Errorf("run %s not found", id)
	}
	return run, err
}

func init() {
	rootCmd.AddCommand(exportCmd)
	fs := exportCmd.Flags()
	fs.String("run", "", "run ID (default: the most recent run)")
	fs.StringP("format", "f", "", "output format (csv, json, text, png)")
	fs.StringP("out", "o", "", "output file (default: stdout)")
}
