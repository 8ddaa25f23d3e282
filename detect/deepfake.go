package detect

import (
	"context"
	"image"
	"strings"

	"exhibit/logger"
)

const (
	labelFake = "fake"
	labelReal = "real"

	slotDeepfakeImage = "deepfake-image"
	slotDeepfakeVideo = "deepfake-video"
)

// DeepfakeDetector classifies images and videos as authentic or synthetic.
// Video verdicts are a majority vote over sampled frames, with ties counted
// as fake.
type DeepfakeDetector struct {
	cache      *ModelCache
	imageModel string
	videoModel string
	sampleRate int
	openVideo  VideoOpener
}

func NewDeepfakeDetector(cache *ModelCache, imageModel, videoModel string, sampleRate int, openVideo VideoOpener) *DeepfakeDetector {
	return &DeepfakeDetector{
		cache:      cache,
		imageModel: imageModel,
		videoModel: videoModel,
		sampleRate: sampleRate,
		openVideo:  openVideo,
	}
}

func (d *DeepfakeDetector) Kind() Kind { return KindDeepfake }

func (d *DeepfakeDetector) Detect(ctx context.Context, path string) Envelope {
	if !exists(path) {
		return ErrorEnvelope(path, ErrFileNotFound)
	}
	switch {
	case isVideoPath(path):
		return d.detectVideo(ctx, path)
	case isImagePath(path):
		return d.detectImage(ctx, path)
	default:
		return ErrorEnvelope(path, ErrUnsupportedFormat)
	}
}

func (d *DeepfakeDetector) detectImage(ctx context.Context, path string) Envelope {
	if !verifyImageContent(path) {
		return ErrorEnvelope(path, ErrUnsupportedFormat)
	}
	classifier, err := d.cache.Classifier(slotDeepfakeImage, d.imageModel)
	if err != nil {
		return ErrorEnvelope(path, err)
	}
	img, err := loadImage(path)
	if err != nil {
		return ErrorEnvelope(path, err)
	}
	verdict, err := classifier.Classify(ctx, img)
	if err != nil {
		return ErrorEnvelope(path, err)
	}

	env := NewEnvelope(TypeImage, path, normalizeDeepfakeLabel(verdict.Label), verdict.Confidence)
	env.ModelVersion = classifier.ModelID()
	env.DetectionMethod = "image_classification"
	return env
}

func (d *DeepfakeDetector) detectVideo(ctx context.Context, path string) Envelope {
	classifier, err := d.cache.Classifier(slotDeepfakeVideo, d.videoModel)
	if err != nil {
		return ErrorEnvelope(path, err)
	}
	if d.openVideo == nil {
		return ErrorEnvelope(path, ErrVideoOpen)
	}
	src, err := d.openVideo(path)
	if err != nil {
		logger.Warnf("opening video %s: %v", path, err)
		return ErrorEnvelope(path, ErrVideoOpen)
	}
	defer src.Close()

	var (
		fakeFrames  int
		realFrames  int
		confidences []float64
	)
	total, analyzed, err := sampleFrames(ctx, src, d.sampleRate, func(ctx context.Context, _ int, img image.Image) error {
		verdict, err := classifier.Classify(ctx, img)
		if err != nil {
			return err
		}
		if normalizeDeepfakeLabel(verdict.Label) == labelFake {
			fakeFrames++
		} else {
			realFrames++
		}
		confidences = append(confidences, verdict.Confidence)
		return nil
	})
	if err != nil {
		return ErrorEnvelope(path, err)
	}
	if analyzed == 0 {
		return ErrorEnvelope(path, ErrNoFrames)
	}

	prediction := labelReal
	if fakeFrames >= realFrames {
		prediction = labelFake
	}
	env := NewEnvelope(TypeVideo, path, prediction, meanConfidence(confidences))
	env.ModelVersion = classifier.ModelID()
	env.DetectionMethod = "frame_sampling"
	env.Video = &VideoStats{
		TotalFrames:    total,
		AnalyzedFrames: analyzed,
		FPS:            src.FPS(),
		FakeFrames:     fakeFrames,
		RealFrames:     realFrames,
		FakeRatio:      float64(fakeFrames) / float64(analyzed),
	}
	return env
}

// normalizeDeepfakeLabel folds backend label variants onto the fake/real
// vocabulary.
func normalizeDeepfakeLabel(label string) string {
	if strings.Contains(strings.ToLower(label), labelFake) {
		return labelFake
	}
	return labelReal
}
