package export

import (
	"bytes"
	"encoding/json"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/sevseg/internal/aggregate"
)

func intPtr(v int) *int { return &v }

func sample() []aggregate.DetectionResult {
	return []aggregate.DetectionResult{
		{Value: intPtr(1234), FailedRate: 1.0 / 12.0, Timestamp: "00:00:00.000"},
		{Value: nil, FailedRate: 1, Timestamp: "00:00:01.000"},
		{Value: intPtr(1240), FailedRate: 0, Timestamp: "00:00:02.000"},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" CSV ")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)
	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample()))
	want := "index,timestamp,value,failed_rate\n" +
		"0,00:00:00.000,1234,0.0833\n" +
		"1,00:00:01.000,,1.0000\n" +
		"2,00:00:02.000,1240,0.0000\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, "run-1", sample()))

	var doc struct {
		RunID   string           `json:"run_id"`
		Results []map[string]any `json:"results"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "run-1", doc.RunID)
	require.Len(t, doc.Results, 3)
	assert.Nil(t, doc.Results[1]["value"])
	assert.InDelta(t, 1234, doc.Results[0]["value"], 0)

	buf.Reset()
	require.NoError(t, WriteJSON(&buf, Document{}))
	assert.Contains(t, buf.String(), `"results": []`)
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, sample()))
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[0]), "1234")
	assert.Contains(t, string(lines[1]), " - ")
	assert.Contains(t, string(lines[1]), "100.0%")
}

func TestWriteChart(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatPNG, "run-1", sample()))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Positive(t, img.Bounds().Dx())

	err = WriteChart(&bytes.Buffer{}, "", []aggregate.DetectionResult{aggregate.Failed("x")})
	assert.ErrorIs(t, err, ErrNoValues)
}
