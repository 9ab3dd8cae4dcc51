package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigInitAndShow(t *testing.T) {
	dir := isolate(t)

	out, err := execute(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote sevseg.yaml")
	_, err = os.Stat(filepath.Join(dir, "sevseg.yaml"))
	require.NoError(t, err)

	_, err = execute(t, "config", "init")
	require.Error(t, err, "existing file must not be overwritten")

	_, err = execute(t, "config", "init", "--force")
	require.NoError(t, err)

	out, err = execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# loaded from")
	assert.Contains(t, out, "digit_count: 4")
}

func TestConfigShowAppliesFlagsAndFile(t *testing.T) {
	dir := isolate(t)
	file := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(file, []byte("display:\n  digit_count: 6\nlog_level: warn\n"), 0o600))

	out, err := execute(t, "config", "show", "--config", file, "--log-level", "debug")
	require.NoError(t, err)
	assert.Contains(t, out, "digit_count: 6")
	assert.Contains(t, out, "log_level: debug")
}

func TestConfigEnvironmentOverride(t *testing.T) {
	isolate(t)
	t.Setenv("SEVSEG_DISPLAY_DIGIT_COUNT", "5")

	out, err := execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "digit_count: 5")
}

func TestExportWithoutDatabase(t *testing.T) {
	isolate(t)
	_, err := execute(t, "export")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no run database")

	_, err = execute(t, "export", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported export format")
}

func TestExportFormatFromExtension(t *testing.T) {
	for _, tc := range []struct {
		name, format, path, want string
	}{
		{"explicit wins", "json", "out.csv", "json"},
		{"csv extension", "", "out.csv", "csv"},
		{"txt extension", "", "out.txt", "text"},
		{"png extension", "", "chart.PNG", "png"},
		{"stdout", "", "", "text"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f, err := exportFormat(tc.format, tc.path)
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(f))
		})
	}
}
