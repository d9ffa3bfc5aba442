package shimmer

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// ChartOptions configures a chart per measure
type ChartOptions struct {
	Measures map[string]MeasureOptions
}

// MeasureOptions configures the chart of one measure
type MeasureOptions struct {
	Thresholds map[string]float64
}

// DefaultChartOptions returns the options used for all charts. heart_rate and body_weight
// are charted without thresholds.
func DefaultChartOptions() ChartOptions {
	return ChartOptions{
		Measures: map[string]MeasureOptions{
			"heart_rate":  {Thresholds: map[string]float64{}},
			"body_weight": {Thresholds: map[string]float64{}},
		},
	}
}

// MeasureName returns the chart measure of a schema, "body-weight" becomes "body_weight"
func MeasureName(schema Schema) string {
	return strings.ReplaceAll(schema.Name, "-", "_")
}

// Charter renders the body of a data response
type Charter interface {
	Render(ctx context.Context, body json.RawMessage, measure string, options ChartOptions) error
}

// SummaryCharter writes a one line summary per chart instead of drawing it
type SummaryCharter struct {
	Out io.Writer
}

// Render implements Charter
func (c SummaryCharter) Render(ctx context.Context, body json.RawMessage, measure string, options ChartOptions) error {
	var datums []map[string]interface{}
	if err := json.Unmarshal(body, &datums); err != nil {
		var datum map[string]interface{}
		if err := json.Unmarshal(body, &datum); err != nil {
			return fmt.Errorf("cannot chart %s: %w", measure, err)
		}
		datums = append(datums, datum)
	}
	line := fmt.Sprintf("%s: %d data points", measure, len(datums))
	if m, ok := options.Measures[measure]; ok && len(m.Thresholds) > 0 {
		names := make([]string, 0, len(m.Thresholds))
		for name := range m.Thresholds {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			line += fmt.Sprintf(", %s=%v", name, m.Thresholds[name])
		}
	}
	_, err := fmt.Fprintln(c.Out, line)
	return err
}
