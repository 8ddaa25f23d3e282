package report

import (
	"context"
	"fmt"
	"time"

	"exhibit/hasher"
	"exhibit/store"
	"exhibit/sysinfo"
)

const unknown = "unknown"

// Body is the structured content of a court evidence report. Section order is
// fixed; the rendered PDF and the report hash both follow it.
type Body struct {
	ReportID          string            `json:"report_id"`
	CaseInfo          CaseInfo          `json:"case_info"`
	TechnicalAnalysis TechnicalAnalysis `json:"technical_analysis"`
	ChainOfCustody    []CustodyEntry    `json:"chain_of_custody"`
	Verification      Verification      `json:"verification"`
	LegalStatements   []string          `json:"legal_statements"`
	Appendix          Appendix          `json:"appendix"`
}

// CaseInfo identifies the detection the report testifies about.
type CaseInfo struct {
	DetectionID   int64  `json:"detection_id"`
	DetectionType string `json:"detection_type"`
	ExaminerID    int64  `json:"examiner_id"`
	EvidenceFile  string `json:"evidence_file"`
	AnalysisDate  string `json:"analysis_date"`
}

// TechnicalAnalysis summarizes the verdict. Fields the detection could not
// supply read "unknown" rather than being omitted.
type TechnicalAnalysis struct {
	Prediction      string  `json:"prediction"`
	ConfidenceScore float64 `json:"confidence_score"`
	DetectionMethod string  `json:"detection_method"`
	ModelVersion    string  `json:"model_version"`
}

// CustodyEntry is one link in the chain of custody.
type CustodyEntry struct {
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
	Details   string `json:"details"`
}

// Verification carries the integrity evidence for the original file.
type Verification struct {
	OriginalFileSHA256 string            `json:"original_file_sha256"`
	FuzzyFingerprints  map[string]string `json:"fuzzy_fingerprints,omitempty"`
	VerifiedAt         string            `json:"verified_at"`
	IntegrityStatus    string            `json:"integrity_status"`
}

// Appendix holds supporting material appended after the legal sections.
type Appendix struct {
	Methodology  []string         `json:"methodology"`
	SystemInfo   sysinfo.Snapshot `json:"system_info"`
	ResultDetail interface{}      `json:"result_detail,omitempty"`
}

// Generator builds report bodies from detection records. The zero value is
// not usable; construct with NewGenerator.
type Generator struct {
	clock   func() time.Time
	collect func(ctx context.Context) sysinfo.Snapshot
}

func NewGenerator() *Generator {
	return &Generator{
		clock:   time.Now,
		collect: sysinfo.Collect,
	}
}

// Build assembles the full report body for a detection record.
func (g *Generator) Build(ctx context.Context, rec *store.DetectionRecord) Body {
	now := g.clock().UTC()
	detectedAt := rec.CreatedAt.UTC()

	fileHash := rec.FileHashes["sha256"]
	if fileHash == "" {
		fileHash = hasher.FileSHA256(rec.FilePath)
	}
	integrity := "verified"
	if fileHash == hasher.HashCalculationFailed {
		integrity = "unverifiable"
	}

	analysis := TechnicalAnalysis{
		Prediction:      orUnknown(rec.Result.Prediction),
		ConfidenceScore: rec.Result.Confidence,
		DetectionMethod: orUnknown(rec.Result.DetectionMethod),
		ModelVersion:    orUnknown(rec.Result.ModelVersion),
	}

	return Body{
		ReportID: ReportID(rec.ID, now),
		CaseInfo: CaseInfo{
			DetectionID:   rec.ID,
			DetectionType: rec.DetectionType,
			ExaminerID:    rec.UserID,
			EvidenceFile:  rec.OriginalName,
			AnalysisDate:  detectedAt.Format(time.RFC3339),
		},
		TechnicalAnalysis: analysis,
		ChainOfCustody:    custodyChain(rec, detectedAt, now),
		Verification: Verification{
			OriginalFileSHA256: fileHash,
			FuzzyFingerprints:  rec.FuzzyHashes,
			VerifiedAt:         now.Format(time.RFC3339),
			IntegrityStatus:    integrity,
		},
		LegalStatements: legalStatements(analysis, now),
		Appendix: Appendix{
			Methodology:  methodology(rec.DetectionType),
			SystemInfo:   g.collect(ctx),
			ResultDetail: rec.Result,
		},
	}
}

// ReportID derives the stable identifier for a report generated on the given
// day.
func ReportID(detectionID int64, generatedAt time.Time) string {
	return fmt.Sprintf("EVD-%d-%s", detectionID, generatedAt.UTC().Format("20060102"))
}

// custodyChain records the four fixed custody events: three from detection
// time and the generation event itself.
func custodyChain(rec *store.DetectionRecord, detectedAt, generatedAt time.Time) []CustodyEntry {
	ts := detectedAt.Format(time.RFC3339)
	return []CustodyEntry{
		{
			Action:    "evidence_received",
			Timestamp: ts,
			Details:   fmt.Sprintf("File %q submitted for analysis", rec.OriginalName),
		},
		{
			Action:    "hash_calculated",
			Timestamp: ts,
			Details:   "SHA-256 digest computed for integrity verification",
		},
		{
			Action:    "analysis_performed",
			Timestamp: ts,
			Details:   fmt.Sprintf("Automated %s analysis executed", rec.DetectionType),
		},
		{
			Action:    "report_generated",
			Timestamp: generatedAt.Format(time.RFC3339),
			Details:   "Court evidence report compiled from stored record",
		},
	}
}

func orUnknown(s string) string {
	if s == "" {
		return unknown
	}
	return s
}
