package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/alanyoungcy/themetrader/internal/domain"
)

// ReportArchiver implements domain.ReportArchiver. Reports are written as
// pretty JSON under prefix/YYYY/MM/DD/<started>_<cycle id>.json so a day's
// reports list in run order.
type ReportArchiver struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	prefix string
}

// NewReportArchiver creates a ReportArchiver writing under prefix.
func NewReportArchiver(writer domain.BlobWriter, reader domain.BlobReader, prefix string) *ReportArchiver {
	return &ReportArchiver{
		writer: writer,
		reader: reader,
		prefix: strings.Trim(prefix, "/"),
	}
}

// ArchiveReport uploads report and returns its object path.
func (a *ReportArchiver) ArchiveReport(ctx context.Context, report domain.CycleReport) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("s3blob: marshal report %s: %w", report.ID, err)
	}
	p := a.reportPath(report)
	if err := a.writer.Put(ctx, p, bytes.NewReader(data), "application/json"); err != nil {
		return "", fmt.Errorf("s3blob: archive report %s: %w", report.ID, err)
	}
	return p, nil
}

// ListReports lists the reports archived on day (UTC).
func (a *ReportArchiver) ListReports(ctx context.Context, day time.Time) ([]domain.BlobInfo, error) {
	infos, err := a.reader.List(ctx, a.dayPrefix(day)+"/")
	if err != nil {
		return nil, fmt.Errorf("s3blob: list reports %s: %w", day.Format(time.DateOnly), err)
	}
	return infos, nil
}

func (a *ReportArchiver) dayPrefix(day time.Time) string {
	return path.Join(a.prefix, day.UTC().Format("2006/01/02"))
}

func (a *ReportArchiver) reportPath(r domain.CycleReport) string {
	name := fmt.Sprintf("%s_%s.json", r.StartedAt.UTC().Format("150405"), r.ID)
	return path.Join(a.dayPrefix(r.StartedAt), name)
}

var _ domain.ReportArchiver = (*ReportArchiver)(nil)
