package export_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/salasarservices/pulse/internal/export"
	"github.com/salasarservices/pulse/internal/model"
	"github.com/salasarservices/pulse/internal/period"
	"github.com/salasarservices/pulse/internal/store"
)

func sampleReport(t *testing.T) *model.Report {
	t.Helper()
	set, err := period.NewSet("July 2025", time.Date(2025, 8, 28, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return &model.Report{
		Month:   "July 2025",
		Periods: set,
		Sections: []model.Section{{
			ID:      "search",
			Title:   "Website Performance",
			Periods: set.Month,
			Cards: []model.Card{
				{Title: "Total Website Clicks", Format: "number", Delta: model.Delta{Current: 1200, Previous: 1000, PctChange: 20}},
				{Title: "Average CTR", Format: "percent", Delta: model.Delta{Current: 2.5, Previous: 3, PctChange: -16.7}, Degraded: true},
			},
			Tables: []model.Table{
				{Title: "Top Content", KeyLabel: "Page", Rows: []model.RowDelta{{Key: "/a", Current: 10, Previous: 8, PctChange: 25}}},
				{Title: "Top Countries", KeyLabel: "Country", Rows: []model.RowDelta{}},
			},
		}},
		Warnings: []string{"Website Performance / Average CTR: HTTP 500 (shown as 0)"},
	}
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "Salasar-Services-Report-August 2025.pdf", export.FileName("August 2025"))
}

func TestPDF(t *testing.T) {
	doc, err := export.PDF(sampleReport(t), &model.LeadSummary{Total: 3, Interested: 1, Closed: 1, TotalBrokerage: 250000})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF-")))

	withoutLeads, err := export.PDF(sampleReport(t), nil)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(withoutLeads, []byte("%PDF-")))

	_, err = export.PDF(nil, nil)
	assert.Error(t, err)
}

func TestPDFWithTrends(t *testing.T) {
	rep := sampleReport(t)
	plain, err := export.PDF(rep, nil)
	require.NoError(t, err)

	window := period.TrendWindow(rep.Periods.Month.Current.End, period.TrendDays)
	pts := make([]model.Point, 0, window.Days())
	for i, d := range window.Dates() {
		pts = append(pts, model.Point{Date: d, Value: float64(i % 7)})
	}
	rep.Sections[0].Trends = []model.Trend{
		{ID: "clicks", Title: "Clicks", Period: window, Points: pts},
		{ID: "impressions", Title: "Impressions", Period: window, Points: []model.Point{}, Degraded: true},
	}
	doc, err := export.PDF(rep, nil)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF-")))
	assert.Greater(t, len(doc), len(plain))
}

func TestPDFEmptyReport(t *testing.T) {
	doc, err := export.PDF(&model.Report{Month: "July 2025"}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, doc)
}

// ─── S3 ───────────────────────────────────────────────────────────────────────

type fakeS3 struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.in = in
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Upload(t *testing.T) {
	api := &fakeS3{}
	u := export.NewS3UploaderWithClient(api, "reports", "pulse/monthly")

	loc, err := u.Upload(context.Background(), "r.pdf", []byte("%PDF-1.3"))
	require.NoError(t, err)
	assert.Equal(t, "s3://reports/pulse/monthly/r.pdf", loc)
	assert.Equal(t, "reports", aws.ToString(api.in.Bucket))
	assert.Equal(t, "pulse/monthly/r.pdf", aws.ToString(api.in.Key))
	assert.Equal(t, "application/pdf", aws.ToString(api.in.ContentType))
	assert.Equal(t, []byte("%PDF-1.3"), api.body)

	assert.Equal(t, "r.pdf", export.NewS3UploaderWithClient(api, "b", "").Key("r.pdf"))

	_, err = export.NewS3UploaderWithClient(&fakeS3{err: errors.New("AccessDenied")}, "b", "").Upload(context.Background(), "r.pdf", nil)
	assert.ErrorContains(t, err, "AccessDenied")
}

// ─── Exporter ─────────────────────────────────────────────────────────────────

func TestExportWritesAndRecords(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "pulse.db"))
	require.NoError(t, err)
	defer s.Close()

	out := filepath.Join(t.TempDir(), "report.pdf")
	e := &export.Exporter{Recorder: s}
	rec, doc, err := e.Export(context.Background(), sampleReport(t), nil, export.Options{Path: out})
	require.NoError(t, err)

	written, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, doc, written)
	assert.Equal(t, out, rec.Location)
	assert.Equal(t, len(doc), rec.Bytes)
	assert.Equal(t, 1, rec.Warnings)
	assert.NotEmpty(t, rec.ID)

	recs, err := s.ListExports()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, rec.ID, recs[0].ID)
	assert.Equal(t, "Salasar-Services-Report-July 2025.pdf", recs[0].File)
}

func TestExportUpload(t *testing.T) {
	api := &fakeS3{}
	e := &export.Exporter{Uploader: export.NewS3UploaderWithClient(api, "reports", "")}
	rec, _, err := e.Export(context.Background(), sampleReport(t), nil, export.Options{Path: "-", Upload: true})
	require.NoError(t, err)
	assert.Equal(t, "s3://reports/Salasar-Services-Report-July 2025.pdf", rec.Location)

	_, _, err = (&export.Exporter{}).Export(context.Background(), sampleReport(t), nil, export.Options{Path: "-", Upload: true})
	assert.ErrorContains(t, err, "PULSE_S3_BUCKET")
}
