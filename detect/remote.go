package detect

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
)

// RemoteBackend loads model handles backed by an HTTP inference service.
// Frames are shipped as PNG and verdicts come back as JSON.
type RemoteBackend struct {
	baseURL string
	client  *http.Client
}

func NewRemoteBackend(baseURL string, timeout time.Duration) *RemoteBackend {
	return &RemoteBackend{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (b *RemoteBackend) Classifier(modelID string) (ImageClassifier, error) {
	if b.baseURL == "" {
		return nil, ErrNoBackend
	}
	return &remoteClassifier{backend: b, modelID: modelID}, nil
}

func (b *RemoteBackend) ObjectModel(modelID string) (ObjectModel, error) {
	if b.baseURL == "" {
		return nil, ErrNoBackend
	}
	return &remoteObjectModel{backend: b, modelID: modelID}, nil
}

func (b *RemoteBackend) post(ctx context.Context, endpoint, modelID string, img image.Image, out interface{}) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}

	u := fmt.Sprintf("%s%s?model=%s", b.baseURL, endpoint, url.QueryEscape(modelID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "image/png")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("inference request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("inference service returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type remoteClassifier struct {
	backend *RemoteBackend
	modelID string
}

func (c *remoteClassifier) ModelID() string { return c.modelID }

func (c *remoteClassifier) Classify(ctx context.Context, img image.Image) (Classification, error) {
	var out struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	}
	if err := c.backend.post(ctx, "/v1/classify", c.modelID, img, &out); err != nil {
		return Classification{}, err
	}
	return Classification{Label: out.Label, Confidence: ClampConfidence(out.Confidence)}, nil
}

type remoteObjectModel struct {
	backend *RemoteBackend
	modelID string
}

func (m *remoteObjectModel) ModelID() string { return m.modelID }

func (m *remoteObjectModel) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	var out struct {
		Detections []struct {
			Class      string     `json:"class"`
			Confidence float64    `json:"confidence"`
			BBox       [4]float64 `json:"bbox"`
		} `json:"detections"`
	}
	if err := m.backend.post(ctx, "/v1/detect", m.modelID, img, &out); err != nil {
		return nil, err
	}
	dets := make([]Detection, 0, len(out.Detections))
	for _, d := range out.Detections {
		dets = append(dets, Detection{
			Class:      d.Class,
			Confidence: ClampConfidence(d.Confidence),
			BBox:       d.BBox,
			Center: [2]float64{
				(d.BBox[0] + d.BBox[2]) / 2,
				(d.BBox[1] + d.BBox[3]) / 2,
			},
		})
	}
	return dets, nil
}
