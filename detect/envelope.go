package detect

import (
	"time"

	"github.com/goccy/go-json"
)

// Kind identifies a detector family.
type Kind string

const (
	KindDeepfake Kind = "deepfake"
	KindObject   Kind = "object"
	KindFraud    Kind = "fraud"
)

// ParseKind validates a detector kind tag.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindDeepfake, KindObject, KindFraud:
		return Kind(s), true
	}
	return "", false
}

// ResultType tags the modality of an envelope.
type ResultType string

const (
	TypeImage       ResultType = "image"
	TypeVideo       ResultType = "video"
	TypeDocument    ResultType = "document"
	TypeTransaction ResultType = "transaction"
	TypeBatch       ResultType = "batch"
	TypeError       ResultType = "error"
)

// Envelope is the normalized detector output. Every path through a detector,
// success or failure, returns one; Error is set only on failure, and
// Prediction/Confidence then carry their zero defaults so consumers never
// branch on missing fields. Confidence is always within [0,1].
type Envelope struct {
	Prediction string     `json:"prediction"`
	Confidence float64    `json:"confidence"`
	Type       ResultType `json:"type"`
	FilePath   string     `json:"file_path"`
	Timestamp  string     `json:"timestamp"`
	Error      string     `json:"error,omitempty"`

	ModelVersion    string `json:"model_version,omitempty"`
	DetectionMethod string `json:"detection_method,omitempty"`

	Video    *VideoStats    `json:"video,omitempty"`
	Objects  *ObjectStats   `json:"objects,omitempty"`
	Fraud    *FraudStats    `json:"fraud,omitempty"`
	Batch    *BatchStats    `json:"batch,omitempty"`
	Document *DocumentStats `json:"document,omitempty"`

	// FileMetadata carries embedded evidence metadata (EXIF tags, PDF
	// document info) surfaced for the report appendix.
	FileMetadata map[string]interface{} `json:"file_metadata,omitempty"`
}

// VideoStats describes a frame-sampled video verdict.
type VideoStats struct {
	TotalFrames    int            `json:"total_frames"`
	AnalyzedFrames int            `json:"analyzed_frames"`
	FPS            float64        `json:"fps"`
	ClassFrequency map[string]int `json:"class_frequency,omitempty"`
	FakeFrames     int            `json:"fake_frames,omitempty"`
	RealFrames     int            `json:"real_frames,omitempty"`
	FakeRatio      float64        `json:"fake_ratio,omitempty"`
}

// ObjectStats describes object detections within an image or across sampled
// video frames.
type ObjectStats struct {
	Detections      []Detection       `json:"detections,omitempty"`
	ObjectCount     int               `json:"object_count"`
	AllClasses      []string          `json:"all_classes,omitempty"`
	TotalDetections int               `json:"total_detections,omitempty"`
	FrameAnalysis   []FrameDetections `json:"frame_analysis,omitempty"`
}

// Detection is a single located object.
type Detection struct {
	Class      string     `json:"class"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"`
	Center     [2]float64 `json:"center,omitempty"`
}

// FrameDetections groups the objects found in one sampled frame.
type FrameDetections struct {
	Frame   int         `json:"frame"`
	Objects []Detection `json:"objects"`
}

// FraudStats carries single-transaction scoring detail.
type FraudStats struct {
	RiskScore     float64  `json:"risk_score"`
	Features      Features `json:"features_analyzed"`
	MerchantHits  []string `json:"merchant_watchlist_hits,omitempty"`
	DeviceFlagged bool     `json:"device_flagged,omitempty"`
}

// BatchStats summarizes batch transaction scoring.
type BatchStats struct {
	TotalTransactions      int         `json:"total_transactions"`
	FraudulentTransactions int         `json:"fraudulent_transactions"`
	FraudRate              float64     `json:"fraud_rate"`
	Results                []RowResult `json:"detailed_results,omitempty"`
}

// RowResult is the per-row outcome of batch scoring.
type RowResult struct {
	TransactionID string  `json:"transaction_id"`
	Prediction    string  `json:"prediction"`
	RiskScore     float64 `json:"risk_score"`
}

// DocumentStats carries document authenticity analysis.
type DocumentStats struct {
	ImageDimensions    [2]int   `json:"image_dimensions,omitempty"`
	AuthenticityScore  float64  `json:"authenticity_score"`
	SuspiciousElements []string `json:"suspicious_elements,omitempty"`
}

// NewEnvelope builds a successful envelope with a clamped confidence and the
// current UTC timestamp.
func NewEnvelope(t ResultType, path, prediction string, confidence float64) Envelope {
	return Envelope{
		Prediction: prediction,
		Confidence: ClampConfidence(confidence),
		Type:       t,
		FilePath:   path,
		Timestamp:  now(),
	}
}

// ErrorEnvelope builds the failure-shaped envelope: prediction empty,
// confidence zero, type "error".
func ErrorEnvelope(path string, err error) Envelope {
	msg := "detection failed"
	if err != nil {
		msg = err.Error()
	}
	return Envelope{
		Confidence: 0,
		Type:       TypeError,
		FilePath:   path,
		Timestamp:  now(),
		Error:      msg,
	}
}

// ClampConfidence forces a confidence into [0,1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// Marshal serializes the envelope for storage.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEnvelope parses a stored envelope.
func UnmarshalEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(data, &e)
	return e, err
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
