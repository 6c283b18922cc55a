package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/salasarservices/pulse/internal/model"
	"github.com/salasarservices/pulse/internal/store"
)

// Recorder persists export history.
type Recorder interface {
	PutExport(rec store.ExportRecord) error
}

// Uploader archives a finished document and returns its location.
type Uploader interface {
	Upload(ctx context.Context, name string, body []byte) (string, error)
}

// Exporter produces, saves and records PDF reports.
type Exporter struct {
	Recorder Recorder // optional
	Uploader Uploader // optional; required when Options.Upload is set
}

// Options controls where an export goes.
type Options struct {
	// Path is the output file. Empty writes FileName(month) in the working
	// directory; "-" skips the local write.
	Path   string
	Upload bool
}

// Export renders rep, writes and optionally uploads it, and records the
// export. The returned bytes are the PDF document.
func (e *Exporter) Export(ctx context.Context, rep *model.Report, summary *model.LeadSummary, opts Options) (store.ExportRecord, []byte, error) {
	doc, err := PDF(rep, summary)
	if err != nil {
		return store.ExportRecord{}, nil, err
	}

	name := FileName(rep.Month)
	rec := store.ExportRecord{
		ID:        uuid.NewString(),
		Month:     rep.Month,
		File:      name,
		Bytes:     len(doc),
		Warnings:  len(rep.Warnings),
		CreatedAt: time.Now().UTC(),
	}

	if opts.Path != "-" {
		out := opts.Path
		if out == "" {
			out = name
		}
		if err := os.WriteFile(out, doc, 0644); err != nil {
			return rec, doc, fmt.Errorf("writing %s: %w", out, err)
		}
		abs, err := filepath.Abs(out)
		if err != nil {
			abs = out
		}
		rec.Location = abs
	}

	if opts.Upload {
		if e.Uploader == nil {
			return rec, doc, fmt.Errorf("upload requested but no archive bucket is configured (set PULSE_S3_BUCKET)")
		}
		loc, err := e.Uploader.Upload(ctx, name, doc)
		if err != nil {
			return rec, doc, err
		}
		rec.Location = loc
	}

	if e.Recorder != nil {
		if err := e.Recorder.PutExport(rec); err != nil {
			slog.Debug("recording export failed", "id", rec.ID, "err", err)
		}
	}
	return rec, doc, nil
}
