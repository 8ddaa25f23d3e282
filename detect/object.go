package detect

import (
	"context"
	"image"
	"sort"

	"exhibit/logger"
)

const slotObject = "object"

// ObjectDetector locates objects in images and videos. Image results report
// every detection; video results report the most frequent class across
// sampled frames.
type ObjectDetector struct {
	cache      *ModelCache
	modelID    string
	sampleRate int
	openVideo  VideoOpener
}

func NewObjectDetector(cache *ModelCache, modelID string, sampleRate int, openVideo VideoOpener) *ObjectDetector {
	return &ObjectDetector{
		cache:      cache,
		modelID:    modelID,
		sampleRate: sampleRate,
		openVideo:  openVideo,
	}
}

func (d *ObjectDetector) Kind() Kind { return KindObject }

func (d *ObjectDetector) Detect(ctx context.Context, path string) Envelope {
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

func (d *ObjectDetector) detectImage(ctx context.Context, path string) Envelope {
	if !verifyImageContent(path) {
		return ErrorEnvelope(path, ErrUnsupportedFormat)
	}
	model, err := d.cache.ObjectModel(slotObject, d.modelID)
	if err != nil {
		return ErrorEnvelope(path, err)
	}
	img, err := loadImage(path)
	if err != nil {
		return ErrorEnvelope(path, err)
	}
	detections, err := model.Detect(ctx, img)
	if err != nil {
		return ErrorEnvelope(path, err)
	}

	prediction := "no_objects"
	confidence := 0.0
	if len(detections) > 0 {
		primary := detections[0]
		for _, det := range detections[1:] {
			if det.Confidence > primary.Confidence {
				primary = det
			}
		}
		prediction = primary.Class
		confidence = primary.Confidence
	}

	env := NewEnvelope(TypeImage, path, prediction, confidence)
	env.ModelVersion = model.ModelID()
	env.DetectionMethod = "object_detection"
	env.Objects = &ObjectStats{
		Detections:  detections,
		ObjectCount: len(detections),
		AllClasses:  uniqueClasses(detections),
	}
	return env
}

func (d *ObjectDetector) detectVideo(ctx context.Context, path string) Envelope {
	model, err := d.cache.ObjectModel(slotObject, d.modelID)
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
		frequency   = make(map[string]int)
		confidences []float64
		frames      []FrameDetections
		detCount    int
	)
	total, analyzed, err := sampleFrames(ctx, src, d.sampleRate, func(ctx context.Context, index int, img image.Image) error {
		detections, err := model.Detect(ctx, img)
		if err != nil {
			return err
		}
		for _, det := range detections {
			frequency[det.Class]++
			confidences = append(confidences, det.Confidence)
		}
		detCount += len(detections)
		frames = append(frames, FrameDetections{Frame: index, Objects: detections})
		return nil
	})
	if err != nil {
		return ErrorEnvelope(path, err)
	}
	if analyzed == 0 {
		return ErrorEnvelope(path, ErrNoFrames)
	}

	prediction := "no_objects"
	if len(frequency) > 0 {
		prediction = majorityLabel(frequency, "")
	}
	env := NewEnvelope(TypeVideo, path, prediction, meanConfidence(confidences))
	env.ModelVersion = model.ModelID()
	env.DetectionMethod = "frame_sampling"
	env.Video = &VideoStats{
		TotalFrames:    total,
		AnalyzedFrames: analyzed,
		FPS:            src.FPS(),
		ClassFrequency: frequency,
	}
	env.Objects = &ObjectStats{
		ObjectCount:     len(frequency),
		AllClasses:      classNames(frequency),
		TotalDetections: detCount,
		FrameAnalysis:   frames,
	}
	return env
}

func uniqueClasses(detections []Detection) []string {
	seen := make(map[string]bool)
	for _, det := range detections {
		seen[det.Class] = true
	}
	return classNamesFromSet(seen)
}

func classNames(freq map[string]int) []string {
	seen := make(map[string]bool, len(freq))
	for class := range freq {
		seen[class] = true
	}
	return classNamesFromSet(seen)
}

func classNamesFromSet(seen map[string]bool) []string {
	names := make([]string, 0, len(seen))
	for class := range seen {
		names = append(names, class)
	}
	sort.Strings(names)
	return names
}
