package cmd

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/MeKo-Tech/sevseg/internal/classifier"
	"github.com/MeKo-Tech/sevseg/internal/testutil"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// execute runs the root command with args in a clean environment and
// returns what it wrote to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	resetContexts(rootCmd)
	cfgFile, globalConfig, configLoader = "", nil, nil

	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if err != nil {
		t.Logf("stderr: %s", errOut.String())
	}
	return out.String(), err
}

// syncBuffer is a bytes.Buffer safe to read while a command writes to it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// executeAsync runs the root command in the background until ctx is
// cancelled. The returned channel yields the command's error.
func executeAsync(t *testing.T, ctx context.Context, args ...string) (*syncBuffer, <-chan error) {
	t.Helper()
	resetFlags(rootCmd)
	resetContexts(rootCmd)
	cfgFile, globalConfig, configLoader = "", nil, nil

	out := new(syncBuffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(new(syncBuffer))
	rootCmd.SetArgs(args)
	done := make(chan error, 1)
	go func() { done <- rootCmd.ExecuteContext(ctx) }()
	return out, done
}

// resetFlags restores every flag to its default; cobra keeps parsed
// values between Execute calls.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// resetContexts drops the contexts cobra stored on every command during a
// previous Execute, so the next run's context reaches the subcommand.
func resetContexts(c *cobra.Command) {
	c.SetContext(nil) //nolint:staticcheck // nil lets cobra inherit the parent context
	for _, sub := range c.Commands() {
		resetContexts(sub)
	}
}

// isolate moves the test into an empty directory with no config files in
// reach.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	return dir
}

// useSegmentClassifier swaps the model backend for the segment decoder.
func useSegmentClassifier(t *testing.T, digits int) {
	t.Helper()
	newClassifier = func() (classifier.Classifier, error) {
		return testutil.NewSegmentClassifier(digits, testutil.DefaultDisplayConfig()), nil
	}
	t.Cleanup(func() { newClassifier = nil })
}

// writeRecording renders n frames of digits and returns the directory and
// the display corners.
func writeRecording(t *testing.T, dir, digits string, n int) (string, string) {
	t.Helper()
	frame, corners := testutil.Frame(digits, 200, 150, image.Pt(20, 30), testutil.DefaultDisplayConfig())
	frames := make([]image.Image, n)
	for i := range frames {
		frames[i] = frame
	}
	testutil.WriteFrames(t, dir, frames...)
	return dir, pointsArg(corners)
}

func pointsArg(corners [4]image.Point) string {
	parts := make([]string, len(corners))
	for i, c := range corners {
		parts[i] = fmt.Sprintf("%d,%d", c.X, c.Y)
	}
	return strings.Join(parts, " ")
}
