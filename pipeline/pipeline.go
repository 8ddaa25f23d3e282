package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/djherbis/times"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"exhibit/config"
	"exhibit/detect"
	"exhibit/fuzzy"
	"exhibit/hasher"
	"exhibit/logger"
	"exhibit/metadata"
	"exhibit/report"
	"exhibit/store"
	"exhibit/tracing"
	"exhibit/utils"
)

// Metrics are the pipeline's running counters.
type Metrics struct {
	Submissions int64
	Detections  int64
	Failures    int64
	Reports     int64
}

// Pipeline drives the evidence flow: intake, detection, persistence, audit,
// and report generation.
type Pipeline struct {
	cfg       *config.Config
	store     *store.Store
	detectors map[detect.Kind]detect.Detector
	generator *report.Generator
	limiter   *rate.Limiter
	otel      *otelEmitter

	submissions atomic.Int64
	detections  atomic.Int64
	failures    atomic.Int64
	reports     atomic.Int64
}

// New wires a pipeline. The detector set decides which kinds Submit accepts.
func New(cfg *config.Config, st *store.Store, detectors []detect.Detector) (*Pipeline, error) {
	if err := os.MkdirAll(cfg.UploadDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	if err := os.MkdirAll(cfg.ReportsDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating reports directory: %w", err)
	}

	byKind := make(map[detect.Kind]detect.Detector, len(detectors))
	for _, d := range detectors {
		byKind[d.Kind()] = d
	}

	var limiter *rate.Limiter
	if cfg.MaxPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.MaxPerSecond), cfg.MaxPerSecond)
	}

	emitter, err := newOtelEmitter(cfg)
	if err != nil {
		return nil, fmt.Errorf("configuring event export: %w", err)
	}
	if emitter != nil {
		logger.Infof("exporting events to %s", emitter.endpoint)
	}

	return &Pipeline{
		cfg:       cfg,
		store:     st,
		detectors: byKind,
		generator: report.NewGenerator(),
		limiter:   limiter,
		otel:      emitter,
	}, nil
}

// Submit ingests one evidence file and runs the requested detector over it.
// The returned record is already persisted; detector failures surface as
// error envelopes inside it, not as a Submit error.
func (p *Pipeline) Submit(ctx context.Context, kind detect.Kind, originalName string, content io.Reader) (*store.DetectionRecord, error) {
	ctx, endTask := tracing.StartTask(ctx, "submit")
	defer endTask()
	p.submissions.Add(1)

	detector, ok := p.detectors[kind]
	if !ok {
		p.otel.EmitRejection(kind, "invalid detection type")
		return nil, statusErrorf(http.StatusBadRequest, "invalid detection type %q", kind)
	}
	if originalName == "" {
		p.otel.EmitRejection(kind, "no file selected")
		return nil, statusErrorf(http.StatusBadRequest, "no file selected")
	}
	if !p.cfg.ExtensionAllowed(utils.Extension(originalName)) {
		p.otel.EmitRejection(kind, "file type not allowed")
		return nil, statusErrorf(http.StatusBadRequest, "file type not allowed: %s", originalName)
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, statusErrorf(http.StatusServiceUnavailable, "submission canceled while rate limited")
		}
	}

	storedPath, err := p.saveUpload(originalName, content)
	if err != nil {
		return nil, err
	}
	p.audit(ctx, "evidence_uploaded", map[string]interface{}{
		"detection_type": string(kind),
		"original_name":  originalName,
		"stored_at":      uploadTimestamp(storedPath),
	})

	detectCtx := ctx
	if p.cfg.InferenceTimeout > 0 {
		var cancel context.CancelFunc
		detectCtx, cancel = context.WithTimeout(ctx, p.cfg.InferenceTimeout)
		defer cancel()
	}
	endRegion := tracing.StartRegion(detectCtx, "detect")
	env := detector.Detect(detectCtx, storedPath)
	endRegion()

	// record embedded evidence metadata unless the detector already did
	if env.FileMetadata == nil {
		if meta := metadata.Extract(storedPath, detect.SniffMIME(storedPath), p.cfg.MetadataMaxBytes); len(meta) > 0 {
			env.FileMetadata = meta
		}
	}

	rec := &store.DetectionRecord{
		UserID:        p.cfg.DemoUserID,
		FilePath:      storedPath,
		OriginalName:  originalName,
		DetectionType: string(kind),
		Result:        env,
		Confidence:    env.Confidence,
		FileHashes:    hasher.ComputeHashes(storedPath, p.cfg.HashAlgorithms),
		CreatedAt:     time.Now().UTC(),
	}
	if p.cfg.FuzzyHash {
		rec.FuzzyHashes = fuzzy.FingerprintFile(storedPath, p.cfg.FuzzyAlgorithms)
	}

	if _, err := p.store.InsertDetection(ctx, rec); err != nil {
		return nil, statusErrorf(http.StatusInternalServerError, "persisting detection: %v", err)
	}

	if env.Type == detect.TypeError {
		p.failures.Add(1)
		logger.Warnf("detection %d failed: %s", rec.ID, env.Error)
	} else {
		p.detections.Add(1)
		logger.Infof("detection %d: %s %s (%.2f)", rec.ID, rec.DetectionType, env.Prediction, env.Confidence)
	}

	p.audit(ctx, "detection_completed", map[string]interface{}{
		"detection_id":   rec.ID,
		"detection_type": rec.DetectionType,
		"original_name":  originalName,
		"result_type":    string(env.Type),
	})
	p.otel.EmitDetection(rec)
	return rec, nil
}

// saveUpload writes the evidence to the upload directory under a
// collision-free name, enforcing the size cap and directory confinement.
func (p *Pipeline) saveUpload(originalName string, content io.Reader) (string, error) {
	name := fmt.Sprintf("%s_%s", uuid.NewString(), utils.SanitizeFilename(originalName))
	storedPath := filepath.Join(p.cfg.UploadDir, name)
	if !utils.IsPathWithin(storedPath, []string{p.cfg.UploadDir}) {
		return "", statusErrorf(http.StatusBadRequest, "upload escapes storage directory")
	}

	f, err := os.OpenFile(storedPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", statusErrorf(http.StatusInternalServerError, "storing upload: %v", err)
	}
	defer f.Close()

	limit := p.cfg.MaxFileSize
	written, err := io.Copy(f, io.LimitReader(content, limit+1))
	if err != nil {
		os.Remove(storedPath)
		return "", statusErrorf(http.StatusInternalServerError, "storing upload: %v", err)
	}
	if written > limit {
		os.Remove(storedPath)
		return "", statusErrorf(http.StatusRequestEntityTooLarge, "file exceeds %d byte limit", limit)
	}
	return storedPath, nil
}

// GenerateReport builds, persists, and renders the evidence report for a
// stored detection.
func (p *Pipeline) GenerateReport(ctx context.Context, detectionID int64) (*store.EvidenceReport, error) {
	ctx, endTask := tracing.StartTask(ctx, "report")
	defer endTask()

	rec, err := p.store.GetDetection(ctx, detectionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, statusErrorf(http.StatusNotFound, "detection %d not found", detectionID)
	}
	if err != nil {
		return nil, statusErrorf(http.StatusInternalServerError, "loading detection: %v", err)
	}

	body := p.generator.Build(ctx, rec)
	hash, err := report.Hash(body)
	if err != nil {
		return nil, statusErrorf(http.StatusInternalServerError, "hashing report: %v", err)
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, statusErrorf(http.StatusInternalServerError, "encoding report: %v", err)
	}

	rep := &store.EvidenceReport{
		DetectionID: rec.ID,
		Body:        encoded,
		ReportHash:  hash,
	}
	if _, err := p.store.InsertReport(ctx, rep); err != nil {
		return nil, statusErrorf(http.StatusInternalServerError, "persisting report: %v", err)
	}

	pdfPath := filepath.Join(p.cfg.ReportsDir, body.ReportID+".pdf")
	if err := report.RenderPDF(body, pdfPath); err != nil {
		return nil, statusErrorf(http.StatusInternalServerError, "rendering report pdf: %v", err)
	}
	if err := p.store.SetReportPDF(ctx, rep.ID, pdfPath); err != nil {
		return nil, statusErrorf(http.StatusInternalServerError, "recording report pdf: %v", err)
	}
	rep.PDFPath = pdfPath

	p.reports.Add(1)
	logger.Infof("report %s generated for detection %d", body.ReportID, rec.ID)
	p.audit(ctx, "report_generated", map[string]interface{}{
		"detection_id": rec.ID,
		"report_id":    body.ReportID,
		"report_hash":  hash,
	})
	p.otel.EmitReport(rep, body.ReportID)
	return rep, nil
}

// Recent lists stored detections newest first.
func (p *Pipeline) Recent(ctx context.Context, filter store.ListFilter) ([]store.DetectionRecord, error) {
	return p.store.ListDetections(ctx, filter)
}

// Snapshot returns the current counters.
func (p *Pipeline) Snapshot() Metrics {
	return Metrics{
		Submissions: p.submissions.Load(),
		Detections:  p.detections.Load(),
		Failures:    p.failures.Load(),
		Reports:     p.reports.Load(),
	}
}

// Close flushes the event exporter.
func (p *Pipeline) Close() {
	p.otel.Shutdown()
}

func (p *Pipeline) audit(ctx context.Context, action string, details map[string]interface{}) {
	encoded, err := json.Marshal(details)
	if err != nil {
		encoded = []byte("{}")
	}
	if err := p.store.AppendAudit(ctx, p.cfg.DemoUserID, action, string(encoded)); err != nil {
		logger.Warnf("audit append failed: %v", err)
	}
}

// uploadTimestamp reads the stored file's birth time where the filesystem
// tracks it, falling back to mtime.
func uploadTimestamp(path string) string {
	ts, err := times.Stat(path)
	if err != nil {
		return ""
	}
	if ts.HasBirthTime() {
		return ts.BirthTime().UTC().Format(time.RFC3339)
	}
	return ts.ModTime().UTC().Format(time.RFC3339)
}
