package export

import (
	"context"
	"fmt"
	"io"

	"github.com/Veraticus/credit-engine/internal/service"
)

// SheetsExporter publishes the report through a ReportWriter instead of w.
type SheetsExporter struct {
	writer service.ReportWriter
}

// Export implements Exporter.
func (e *SheetsExporter) Export(ctx context.Context, w io.Writer, report *Report) error {
	if err := e.writer.Write(ctx, report.Opportunities, &report.Summary); err != nil {
		return fmt.Errorf("failed to publish report: %w", err)
	}

	if w != nil {
		_, _ = fmt.Fprintf(w, "published %d opportunities\n", len(report.Opportunities))
	}
	return nil
}
