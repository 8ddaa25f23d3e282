package detect

import (
	"context"
	"image"
)

// Classification is a single-label verdict from an image classifier.
type Classification struct {
	Label      string
	Confidence float64
}

// ImageClassifier runs single-label inference on one decoded frame.
type ImageClassifier interface {
	ModelID() string
	Classify(ctx context.Context, img image.Image) (Classification, error)
}

// ObjectModel locates and labels objects within one decoded frame.
type ObjectModel interface {
	ModelID() string
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
}

// VideoSource yields decoded frames from an opened video stream. Next returns
// io.EOF once the stream is exhausted.
type VideoSource interface {
	TotalFrames() int
	FPS() float64
	Next() (image.Image, error)
	Close() error
}

// VideoOpener opens a video file for frame extraction.
type VideoOpener func(path string) (VideoSource, error)

// DocumentFinding is the outcome of document authenticity analysis.
type DocumentFinding struct {
	AuthenticityScore  float64
	SuspiciousElements []string
}

// DocumentAnalyzer inspects a document image for signs of forgery.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, path string, img image.Image) (DocumentFinding, error)
}
