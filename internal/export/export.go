// Package export writes detection results as CSV, JSON, plain text or a
// PNG chart.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/sevseg/internal/aggregate"
)

// Format is an output format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatText Format = "text"
	FormatPNG  Format = "png"
)

// Formats lists the supported formats.
var Formats = []Format{FormatCSV, FormatJSON, FormatText, FormatPNG}

// ParseFormat parses a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Formats {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// Document is the JSON export envelope.
type Document struct {
	RunID   string                      `json:"run_id,omitempty"`
	Results []aggregate.DetectionResult `json:"results"`
}

// Write renders results in the given format.
func Write(w io.Writer, f Format, runID string, results []aggregate.DetectionResult) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, results)
	case FormatJSON:
		return WriteJSON(w, Document{RunID: runID, Results: results})
	case FormatText:
		return WriteText(w, results)
	case FormatPNG:
		return WriteChart(w, runID, results)
	}
	return fmt.Errorf("unsupported export format %q", f)
}

// WriteCSV writes one row per result; a missing value is an empty cell.
func WriteCSV(w io.Writer, results []aggregate.DetectionResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"index", "timestamp", "value", "failed_rate"}); err != nil {
		return err
	}
	for i, r := range results {
		row := []string{
			strconv.Itoa(i),
			r.Timestamp,
			valueCell(r.Value),
			strconv.FormatFloat(r.FailedRate, 'f', 4, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the document as indented JSON.
func WriteJSON(w io.Writer, doc Document) error {
	if doc.Results == nil {
		doc.Results = []aggregate.DetectionResult{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// WriteText writes one aligned line per result.
func WriteText(w io.Writer, results []aggregate.DetectionResult) error {
	for i, r := range results {
		v := valueCell(r.Value)
		if v == "" {
			v = "-"
		}
		if _, err := fmt.Fprintf(w, "%4d  %-23s  %8s  %5.1f%%\n", i, r.Timestamp, v, r.FailedRate*100); err != nil {
			return err
		}
	}
	return nil
}

func valueCell(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
