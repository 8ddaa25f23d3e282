package report

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"exhibit/detect"
	"exhibit/hasher"
	"exhibit/store"
	"exhibit/sysinfo"
)

func fixedGenerator(at time.Time) *Generator {
	return &Generator{
		clock: func() time.Time { return at },
		collect: func(context.Context) sysinfo.Snapshot {
			return sysinfo.Snapshot{Hostname: "examiner-1", OS: "linux", Architecture: "amd64"}
		},
	}
}

func sampleRecord(t *testing.T) *store.DetectionRecord {
	t.Helper()
	path := filepath.Join(t.TempDir(), "evidence.png")
	if err := os.WriteFile(path, []byte("evidence bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	env := detect.NewEnvelope(detect.TypeImage, path, "fake", 0.91)
	env.ModelVersion = "model-a"
	env.DetectionMethod = "image_classification"
	return &store.DetectionRecord{
		ID:            7,
		UserID:        1,
		FilePath:      path,
		OriginalName:  "evidence.png",
		DetectionType: "deepfake",
		Result:        env,
		Confidence:    0.91,
		FileHashes:    map[string]string{"sha256": "cafe01"},
		FuzzyHashes:   map[string]string{"tlsh": "T1AB"},
		CreatedAt:     time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
	}
}

func TestBuildReportBody(t *testing.T) {
	generated := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	g := fixedGenerator(generated)
	rec := sampleRecord(t)

	body := g.Build(context.Background(), rec)

	if body.ReportID != "EVD-7-20260302" {
		t.Fatalf("report id = %s", body.ReportID)
	}
	if body.CaseInfo.DetectionID != 7 || body.CaseInfo.DetectionType != "deepfake" {
		t.Fatalf("case info = %+v", body.CaseInfo)
	}
	if body.TechnicalAnalysis.Prediction != "fake" || body.TechnicalAnalysis.ModelVersion != "model-a" {
		t.Fatalf("analysis = %+v", body.TechnicalAnalysis)
	}
	if body.Verification.OriginalFileSHA256 != "cafe01" {
		t.Fatalf("hash = %s", body.Verification.OriginalFileSHA256)
	}
	if body.Verification.IntegrityStatus != "verified" {
		t.Fatalf("integrity = %s", body.Verification.IntegrityStatus)
	}
	if len(body.LegalStatements) != 6 {
		t.Fatalf("legal statements = %d", len(body.LegalStatements))
	}
	if len(body.Appendix.Methodology) == 0 {
		t.Fatal("methodology empty")
	}
	if body.Appendix.SystemInfo.Hostname != "examiner-1" {
		t.Fatalf("system info = %+v", body.Appendix.SystemInfo)
	}
}

func TestCustodyChainOrder(t *testing.T) {
	generated := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	g := fixedGenerator(generated)
	rec := sampleRecord(t)

	body := g.Build(context.Background(), rec)
	chain := body.ChainOfCustody
	if len(chain) != 4 {
		t.Fatalf("custody entries = %d", len(chain))
	}
	wantActions := []string{"evidence_received", "hash_calculated", "analysis_performed", "report_generated"}
	for i, want := range wantActions {
		if chain[i].Action != want {
			t.Fatalf("entry %d action = %s, want %s", i, chain[i].Action, want)
		}
	}
	detectedAt := rec.CreatedAt.Format(time.RFC3339)
	for i := 0; i < 3; i++ {
		if chain[i].Timestamp != detectedAt {
			t.Fatalf("entry %d timestamp = %s, want %s", i, chain[i].Timestamp, detectedAt)
		}
	}
	if chain[3].Timestamp != generated.Format(time.RFC3339) {
		t.Fatalf("generation timestamp = %s", chain[3].Timestamp)
	}
}

func TestBuildDefaultsUnknownFields(t *testing.T) {
	g := fixedGenerator(time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC))
	rec := sampleRecord(t)
	rec.Result.Prediction = ""
	rec.Result.ModelVersion = ""
	rec.Result.DetectionMethod = ""

	body := g.Build(context.Background(), rec)
	ta := body.TechnicalAnalysis
	if ta.Prediction != "unknown" || ta.ModelVersion != "unknown" || ta.DetectionMethod != "unknown" {
		t.Fatalf("analysis = %+v", ta)
	}
}

func TestBuildMissingFileSentinel(t *testing.T) {
	g := fixedGenerator(time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC))
	rec := sampleRecord(t)
	rec.FileHashes = nil
	rec.FilePath = filepath.Join(t.TempDir(), "gone.png")

	body := g.Build(context.Background(), rec)
	if body.Verification.OriginalFileSHA256 != hasher.HashCalculationFailed {
		t.Fatalf("hash = %s", body.Verification.OriginalFileSHA256)
	}
	if body.Verification.IntegrityStatus != "unverifiable" {
		t.Fatalf("integrity = %s", body.Verification.IntegrityStatus)
	}
}

func TestMethodologyFallback(t *testing.T) {
	for _, known := range []string{"deepfake", "object", "fraud"} {
		if len(methodology(known)) == 0 {
			t.Fatalf("no methodology for %s", known)
		}
	}
	generic := methodology("palmistry")
	if len(generic) != len(genericMethodology) {
		t.Fatalf("fallback = %v", generic)
	}
}

func TestHashStableAndSensitive(t *testing.T) {
	g := fixedGenerator(time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC))
	rec := sampleRecord(t)
	body := g.Build(context.Background(), rec)

	h1, err := Hash(body)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := Hash(body)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Fatalf("hash not stable: %s vs %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Fatalf("hash length = %d", len(h1))
	}

	body.TechnicalAnalysis.ConfidenceScore = 0.92
	h3, err := Hash(body)
	if err != nil {
		t.Fatal(err)
	}
	if h3 == h1 {
		t.Fatal("hash unchanged after content edit")
	}
}

func TestRenderPDF(t *testing.T) {
	g := fixedGenerator(time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC))
	rec := sampleRecord(t)
	body := g.Build(context.Background(), rec)

	out := filepath.Join(t.TempDir(), "report.pdf")
	if err := RenderPDF(body, out); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) < 4 || string(data[:4]) != "%PDF" {
		t.Fatalf("output is not a pdf (%d bytes)", len(data))
	}
}

func TestWrap(t *testing.T) {
	lines := wrap("alpha beta gamma delta", 11)
	if len(lines) != 2 || lines[0] != "alpha beta" || lines[1] != "gamma delta" {
		t.Fatalf("wrap = %v", lines)
	}
	if got := wrap("", 10); len(got) != 1 || got[0] != "" {
		t.Fatalf("empty wrap = %v", got)
	}
}
