// Package export copies the filtered provider directory into an NDJSON file,
// one doctor per line, optionally gzip-compressed and uploaded to S3.
package export

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/gyeh/npi-directory/internal/api"
	"github.com/gyeh/npi-directory/internal/progress"
	"github.com/gyeh/npi-directory/internal/provider"
)

// DefaultWorkers bounds concurrent page fetches.
const DefaultWorkers = 3

// PageFetcher fetches one page of the directory. *api.Client implements it.
type PageFetcher interface {
	FetchPage(ctx context.Context, q api.Query) (*provider.Page, error)
}

// Uploader ships a finished export. *cloud.S3Client implements it.
type Uploader interface {
	UploadFile(ctx context.Context, key, localPath string) error
}

// Exporter walks every page matching a query and writes the records in
// page order.
type Exporter struct {
	Fetcher  PageFetcher
	Workers  int
	Progress progress.Manager

	// Uploader and UploadKey are optional; both must be set to upload.
	Uploader  Uploader
	UploadKey string
}

// Summary describes a finished export.
type Summary struct {
	Path     string
	Pages    int
	Records  int64
	Bytes    int64
	Uploaded string
	Elapsed  time.Duration
}

// Run exports every page of q to dest. q.Page is ignored; the export always
// starts at page 1. A dest ending in ".gz" is gzip-compressed.
func (e *Exporter) Run(ctx context.Context, q api.Query, dest string) (*Summary, error) {
	start := time.Now()
	workers := e.Workers
	if workers < 1 {
		workers = DefaultWorkers
	}
	pm := e.Progress
	if pm == nil {
		pm = &progress.NoopManager{}
	}
	tracker := pm.NewTracker(0, 1, "export")
	defer pm.Wait()
	defer tracker.Done()

	tracker.SetStage("Fetching page 1")
	q.Page = 1
	first, err := e.Fetcher.FetchPage(ctx, q)
	if err != nil {
		return nil, err
	}
	total := first.Pagination.TotalPages
	if total < 1 {
		total = 1
	}
	log.Info().Int("pages", total).Int("providers", first.Pagination.TotalDoctors).Str("dest", dest).Msg("starting export")

	out, err := newSink(dest)
	if err != nil {
		return nil, err
	}
	if err := out.writePage(first); err != nil {
		out.abort()
		return nil, fmt.Errorf("writing page 1: %w", err)
	}
	tracker.SetProgress(1, int64(total))
	tracker.SetCounter("records", out.records)

	if total > 1 {
		tracker.SetStage("Fetching pages")
		if err := e.fetchRest(ctx, q, total, out, tracker); err != nil {
			out.abort()
			return nil, err
		}
	}

	tracker.SetStage("Writing")
	size, err := out.commit()
	if err != nil {
		return nil, fmt.Errorf("finishing export: %w", err)
	}

	sum := &Summary{Path: dest, Pages: total, Records: out.records, Bytes: size}
	if e.Uploader != nil && e.UploadKey != "" {
		tracker.SetStage("Uploading")
		if err := e.Uploader.UploadFile(ctx, e.UploadKey, dest); err != nil {
			tracker.Warn("upload failed")
			return sum, err
		}
		sum.Uploaded = e.UploadKey
	}
	sum.Elapsed = time.Since(start)
	tracker.SetStage("Done")
	return sum, nil
}

// fetchRest fetches pages 2..total with a bounded pool while one writer
// drains them in page order.
func (e *Exporter) fetchRest(ctx context.Context, q api.Query, total int, out *sink, tracker progress.Tracker) error {
	workers := e.Workers
	if workers < 1 {
		workers = DefaultWorkers
	}

	slots := make([]chan *provider.Page, total+1)
	for p := 2; p <= total; p++ {
		slots[p] = make(chan *provider.Page, 1)
	}

	g, gctx := errgroup.WithContext(ctx)
	// One slot is held by the writer for the whole run.
	g.SetLimit(workers + 1)

	g.Go(func() error {
		for p := 2; p <= total; p++ {
			select {
			case page := <-slots[p]:
				if err := out.writePage(page); err != nil {
					return fmt.Errorf("writing page %d: %w", p, err)
				}
				tracker.SetProgress(int64(p), int64(total))
				tracker.SetCounter("records", out.records)
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for p := 2; p <= total; p++ {
		if gctx.Err() != nil {
			break
		}
		pq := q
		pq.Page = p
		g.Go(func() error {
			page, err := e.Fetcher.FetchPage(gctx, pq)
			if err != nil {
				return err
			}
			slots[pq.Page] <- page
			return nil
		})
	}

	return g.Wait()
}
