package detect

import (
	"context"
	"errors"
	"image"
	"io"
	"sort"
)

// frameVisitor receives each sampled frame together with its index in the
// stream.
type frameVisitor func(ctx context.Context, index int, img image.Image) error

// sampleFrames walks a video stream and invokes visit on every rate-th frame,
// starting at frame zero. It returns the total frame count seen and how many
// frames were handed to the visitor. Frames between samples are decoded and
// discarded so the stream position stays exact.
func sampleFrames(ctx context.Context, src VideoSource, rate int, visit frameVisitor) (total, analyzed int, err error) {
	if rate < 1 {
		rate = 1
	}
	for index := 0; ; index++ {
		if err := ctx.Err(); err != nil {
			return total, analyzed, err
		}
		img, err := src.Next()
		if errors.Is(err, io.EOF) {
			return total, analyzed, nil
		}
		if err != nil {
			return total, analyzed, err
		}
		total++
		if index%rate != 0 {
			continue
		}
		if err := visit(ctx, index, img); err != nil {
			return total, analyzed, err
		}
		analyzed++
	}
}

// majorityLabel picks the most frequent label. Ties between preferred and any
// other label resolve to preferred; remaining ties resolve alphabetically so
// the verdict is deterministic.
func majorityLabel(freq map[string]int, preferred string) string {
	best, bestCount := "", -1
	labels := make([]string, 0, len(freq))
	for label := range freq {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		count := freq[label]
		if count > bestCount || (count == bestCount && label == preferred) {
			best, bestCount = label, count
		}
	}
	return best
}

// meanConfidence averages per-frame confidences, zero when empty.
func meanConfidence(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
