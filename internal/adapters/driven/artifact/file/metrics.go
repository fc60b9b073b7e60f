package file

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/custodia-labs/convoharvest/internal/core/domain"
	"github.com/custodia-labs/convoharvest/internal/core/ports/driven"
)

// MetricsFileName is the CSV artifact name inside the output directory.
const MetricsFileName = "conversation_metrics.csv"

// Ensure CSVMetricsWriter implements the interface.
var _ driven.MetricsWriter = (*CSVMetricsWriter)(nil)

// CSVMetricsWriter writes the metrics table as CSV with a header row.
type CSVMetricsWriter struct {
	path string
}

// NewCSVMetricsWriter creates a writer for <dir>/conversation_metrics.csv.
func NewCSVMetricsWriter(dir string) *CSVMetricsWriter {
	return &CSVMetricsWriter{path: filepath.Join(dir, MetricsFileName)}
}

// Path returns the CSV file path.
func (w *CSVMetricsWriter) Path() string {
	return w.path
}

// WriteMetrics replaces the CSV with table, one row per record in order.
func (w *CSVMetricsWriter) WriteMetrics(ctx context.Context, table domain.MetricsTable) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return writeAtomic(w.path, func(f *os.File) error {
		cw := csv.NewWriter(f)
		if err := cw.Write(domain.MetricsColumns); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		for _, r := range table {
			if err := cw.Write(metricsRow(r)); err != nil {
				return fmt.Errorf("write row for %s: %w", r.ParticipantID, err)
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return fmt.Errorf("flush metrics: %w", err)
		}
		return nil
	})
}

func metricsRow(r domain.MetricsRecord) []string {
	return []string{
		r.ParticipantID,
		strconv.Itoa(r.UserTurnCount),
		strconv.Itoa(r.UserWordCount),
		strconv.FormatBool(r.HasConversation),
	}
}
