package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dgallion1/colporter/internal/config"
	"github.com/dgallion1/colporter/internal/content"
	"github.com/dgallion1/colporter/internal/epub"
	"github.com/dgallion1/colporter/internal/repo"
	"github.com/dgallion1/colporter/internal/resolve"
	"github.com/dgallion1/colporter/internal/walk"
)

// Worker runs a single export job end to end.
type Worker struct {
	repo     repo.Repository
	payloads repo.ResourcePayloader
	log      *slog.Logger
	cfg      config.Config
	stats    *Stats
}

func NewWorker(rp repo.Repository, payloads repo.ResourcePayloader, log *slog.Logger, cfg config.Config, stats *Stats) *Worker {
	return &Worker{
		repo:     rp,
		payloads: payloads,
		log:      log,
		cfg:      cfg,
		stats:    stats,
	}
}

// Process flattens the content tree and streams it into an EPUB artifact.
// The walk and the packaging interleave: each document is packaged as soon
// as it is yielded.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "content", job.ContentID+"@"+job.ContentVersion)
	start := time.Now()

	job.SetStatus(StatusWalking, "walking")

	resolver := resolve.New(w.repo)
	walker := walk.New(w.repo, resolver, walk.Options{CycleGuard: w.cfg.CycleGuard})
	seq := walker.Flatten(ctx, job.ContentID, job.ContentVersion)

	// Track progress per yielded unit without buffering the sequence.
	tracked := func(yield func(content.ExportUnit, error) bool) {
		first := true
		for unit, err := range seq {
			if err != nil {
				yield(unit, err)
				return
			}
			if first {
				first = false
				job.SetTitle(unit.Node.Title)
				job.SetStatus(StatusPackaging, "packaging")
			}
			job.IncrDocumentsExported()
			job.AddRefErrors(unit.Errors)
			if !yield(unit, nil) {
				return
			}
		}
	}

	outPath := filepath.Join(w.cfg.OutputDir, job.ID+".epub")
	f, err := os.Create(outPath)
	if err != nil {
		log.Error("create artifact failed", "path", outPath, "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "packaging")
		return
	}

	digest := sha256.New()
	meta := epub.Meta{Identifier: job.ContentID + "@" + job.ContentVersion}
	res, werr := epub.Write(ctx, io.MultiWriter(f, digest), meta, tracked, w.payloads, epub.Options{
		MaxRefErrors: w.cfg.MaxRefErrors,
	})
	if cerr := f.Close(); cerr != nil && werr == nil {
		werr = cerr
	}

	job.SetResourcesEmbedded(res.Resources)
	for _, warn := range res.Warnings {
		job.AddError(warn)
	}
	w.stats.RecordRun(res.Documents, res.Resources, len(res.RefErrors), time.Since(start), werr == nil)

	if werr != nil {
		os.Remove(outPath)
		log.Error("export failed", "error", werr, "documents", res.Documents)
		job.AddError(werr.Error())
		job.SetStatus(StatusFailed, "packaging")
		return
	}

	job.SetArtifact(outPath, hex.EncodeToString(digest.Sum(nil)))
	log.Info("export complete",
		"documents", res.Documents,
		"resources", res.Resources,
		"ref_errors", len(res.RefErrors),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if len(res.RefErrors) > 0 || len(res.Warnings) > 0 {
		job.SetStatus(StatusPartial, "done")
		return
	}
	job.SetStatus(StatusCompleted, "done")
}
