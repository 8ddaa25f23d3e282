package detect

import (
	"context"
	"encoding/csv"
	"fmt"
	"image"
	"io"
	"math"
	"math/rand"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"
	"github.com/schollz/progressbar/v3"

	"exhibit/logger"
	"exhibit/metadata"
	"exhibit/utils"
)

const (
	predictionFraudulent = "fraudulent"
	predictionLegitimate = "legitimate"
)

// Features are the six normalized inputs to the risk score. Missing
// transaction fields fall back to the documented defaults so scoring is total
// over arbitrary input.
type Features struct {
	Amount            float64 `json:"amount"`
	Hour              float64 `json:"hour"`
	MerchantRisk      float64 `json:"merchant_risk"`
	UserHistory       float64 `json:"user_history"`
	LocationRisk      float64 `json:"location_risk"`
	DeviceFingerprint float64 `json:"device_fingerprint"`
}

// FraudDetector scores transactions (single JSON, batch CSV) and analyzes
// document images for forgery.
type FraudDetector struct {
	threshold   float64
	watchlist   *Watchlist
	analyzer    DocumentAnalyzer
	metadataMax int64
}

func NewFraudDetector(threshold float64, watchlist *Watchlist, analyzer DocumentAnalyzer, metadataMax int64) *FraudDetector {
	if analyzer == nil {
		analyzer = NewStubDocumentAnalyzer(time.Now().UnixNano())
	}
	return &FraudDetector{
		threshold:   threshold,
		watchlist:   watchlist,
		analyzer:    analyzer,
		metadataMax: metadataMax,
	}
}

func (d *FraudDetector) Kind() Kind { return KindFraud }

func (d *FraudDetector) Detect(ctx context.Context, path string) Envelope {
	if !exists(path) {
		return ErrorEnvelope(path, ErrFileNotFound)
	}
	switch utils.Extension(path) {
	case "json":
		return d.detectTransaction(ctx, path)
	case "csv":
		return d.detectBatch(ctx, path)
	default:
		return d.detectDocument(ctx, path)
	}
}

func (d *FraudDetector) detectTransaction(_ context.Context, path string) Envelope {
	data, err := os.ReadFile(path)
	if err != nil {
		return ErrorEnvelope(path, err)
	}
	var txn map[string]interface{}
	if err := json.Unmarshal(data, &txn); err != nil {
		return ErrorEnvelope(path, fmt.Errorf("parsing transaction: %w", err))
	}

	features := extractFeatures(txn)
	risk := riskScore(features)

	prediction := predictionLegitimate
	confidence := 1 - risk
	if risk > d.threshold {
		prediction = predictionFraudulent
		confidence = risk
	}

	env := NewEnvelope(TypeTransaction, path, prediction, confidence)
	env.DetectionMethod = "rule_based_scoring"
	env.Fraud = &FraudStats{
		RiskScore:     math.Round(risk*10000) / 10000,
		Features:      features,
		MerchantHits:  d.watchlist.MerchantHits(stringField(txn, "merchant")),
		DeviceFlagged: d.watchlist.DeviceFlagged(stringField(txn, "device_id")),
	}
	return env
}

func (d *FraudDetector) detectBatch(ctx context.Context, path string) Envelope {
	f, err := os.Open(path)
	if err != nil {
		return ErrorEnvelope(path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err == io.EOF {
		return d.emptyBatch(path)
	}
	if err != nil {
		return ErrorEnvelope(path, fmt.Errorf("reading batch header: %w", err))
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return ErrorEnvelope(path, fmt.Errorf("reading batch rows: %w", err))
	}
	if len(rows) == 0 {
		return d.emptyBatch(path)
	}

	bar := progressbar.NewOptions(len(rows),
		progressbar.OptionSetDescription("scoring transactions"),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetWriter(os.Stderr),
	)

	var (
		results    = make([]RowResult, 0, len(rows))
		fraudulent int
		risks      []float64
	)
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return ErrorEnvelope(path, err)
		}
		txn := rowToTransaction(header, row)
		features := extractFeatures(txn)
		risk := riskScore(features)

		prediction := predictionLegitimate
		if risk > d.threshold {
			prediction = predictionFraudulent
			fraudulent++
		}
		risks = append(risks, risk)

		id := stringField(txn, "transaction_id")
		if id == "" {
			id = strconv.Itoa(i)
		}
		results = append(results, RowResult{
			TransactionID: id,
			Prediction:    prediction,
			RiskScore:     math.Round(risk*10000) / 10000,
		})
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	// batch confidence is the mean risk score, not a per-row confidence
	env := NewEnvelope(TypeBatch, path, "batch_analyzed", meanConfidence(risks))
	env.DetectionMethod = "rule_based_scoring"
	env.Batch = &BatchStats{
		TotalTransactions:      len(rows),
		FraudulentTransactions: fraudulent,
		FraudRate:              float64(fraudulent) / float64(len(rows)),
		Results:                results,
	}
	return env
}

// emptyBatch is the defined result for a batch with no transactions.
func (d *FraudDetector) emptyBatch(path string) Envelope {
	env := NewEnvelope(TypeBatch, path, "no_transactions", 0)
	env.DetectionMethod = "rule_based_scoring"
	env.Batch = &BatchStats{}
	return env
}

func (d *FraudDetector) detectDocument(ctx context.Context, path string) Envelope {
	if !isImagePath(path) && utils.Extension(path) != "pdf" {
		return ErrorEnvelope(path, ErrUnsupportedFormat)
	}

	stats := &DocumentStats{}
	var img image.Image
	if isImagePath(path) {
		dims, err := imageDimensions(path)
		if err != nil {
			return ErrorEnvelope(path, err)
		}
		stats.ImageDimensions = dims
		if img, err = loadImage(path); err != nil {
			return ErrorEnvelope(path, err)
		}
	}

	finding, err := d.analyzer.Analyze(ctx, path, img)
	if err != nil {
		return ErrorEnvelope(path, err)
	}
	stats.AuthenticityScore = finding.AuthenticityScore
	stats.SuspiciousElements = finding.SuspiciousElements

	prediction := predictionFraudulent
	if finding.AuthenticityScore > 0.6 {
		prediction = "authentic"
	}
	env := NewEnvelope(TypeDocument, path, prediction, finding.AuthenticityScore)
	env.DetectionMethod = "document_analysis"
	env.Document = stats
	if meta := metadata.Extract(path, SniffMIME(path), d.metadataMax); len(meta) > 0 {
		env.FileMetadata = meta
	}
	return env
}

// riskScore combines the six features into a score within [0,1]. The weights
// are part of the scoring contract and must not change without revalidating
// stored verdicts.
func riskScore(f Features) float64 {
	score := math.Min(f.Amount/10000, 0.3)
	if f.Hour < 6 || f.Hour > 22 {
		score += 0.2
	}
	score += f.MerchantRisk * 0.25
	score += (1 - f.UserHistory) * 0.15
	score += f.LocationRisk * 0.10
	return math.Min(score, 1.0)
}

func extractFeatures(txn map[string]interface{}) Features {
	// user_history is accepted as an alias for the canonical user_score key
	userHistory := numericField(txn, "user_score", math.NaN())
	if math.IsNaN(userHistory) {
		userHistory = numericField(txn, "user_history", 0.7)
	}
	return Features{
		Amount:            numericField(txn, "amount", 0),
		Hour:              numericField(txn, "hour", 12),
		MerchantRisk:      numericField(txn, "merchant_risk", 0.5),
		UserHistory:       userHistory,
		LocationRisk:      numericField(txn, "location_risk", 0.3),
		DeviceFingerprint: deviceFingerprint(stringField(txn, "device_id")),
	}
}

// deviceFingerprint buckets a device identifier into [0,1) with a stable
// non-cryptographic hash.
func deviceFingerprint(deviceID string) float64 {
	if deviceID == "" {
		deviceID = "unknown"
	}
	return float64(xxhash.Sum64String(deviceID)%1000) / 1000
}

func rowToTransaction(header, row []string) map[string]interface{} {
	txn := make(map[string]interface{}, len(header))
	for i, key := range header {
		if i >= len(row) {
			break
		}
		txn[key] = row[i]
	}
	return txn
}

func numericField(txn map[string]interface{}, key string, fallback float64) float64 {
	v, ok := txn[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f
		}
		logger.Debugf("ignoring non-numeric %s value %q", key, n)
	}
	return fallback
}

func stringField(txn map[string]interface{}, key string) string {
	if s, ok := txn[key].(string); ok {
		return s
	}
	return ""
}

// StubDocumentAnalyzer stands in for a trained forgery model. Scores are
// sampled, not learned, so two runs over the same file can disagree.
type StubDocumentAnalyzer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewStubDocumentAnalyzer(seed int64) *StubDocumentAnalyzer {
	return &StubDocumentAnalyzer{rng: rand.New(rand.NewSource(seed))}
}

func (s *StubDocumentAnalyzer) Analyze(_ context.Context, _ string, _ image.Image) (DocumentFinding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	finding := DocumentFinding{
		AuthenticityScore: 0.3 + s.rng.Float64()*0.6,
	}
	if s.rng.Float64() > 0.7 {
		finding.SuspiciousElements = append(finding.SuspiciousElements, "text_inconsistency")
	}
	if s.rng.Float64() > 0.8 {
		finding.SuspiciousElements = append(finding.SuspiciousElements, "image_tampering")
	}
	if s.rng.Float64() > 0.9 {
		finding.SuspiciousElements = append(finding.SuspiciousElements, "font_mismatch")
	}
	return finding, nil
}
