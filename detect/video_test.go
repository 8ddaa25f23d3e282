package detect

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"
)

type fakeClassifier struct {
	id      string
	labels  []string
	conf    []float64
	calls   int
	failErr error
}

func (c *fakeClassifier) ModelID() string { return c.id }

func (c *fakeClassifier) Classify(_ context.Context, _ image.Image) (Classification, error) {
	if c.failErr != nil {
		return Classification{}, c.failErr
	}
	i := c.calls % len(c.labels)
	c.calls++
	conf := 0.9
	if len(c.conf) > 0 {
		conf = c.conf[i%len(c.conf)]
	}
	return Classification{Label: c.labels[i], Confidence: conf}, nil
}

type fakeObjectModel struct {
	id         string
	detections [][]Detection
	calls      int
}

func (m *fakeObjectModel) ModelID() string { return m.id }

func (m *fakeObjectModel) Detect(_ context.Context, _ image.Image) ([]Detection, error) {
	if len(m.detections) == 0 {
		return nil, nil
	}
	d := m.detections[m.calls%len(m.detections)]
	m.calls++
	return d, nil
}

type fakeLoader struct {
	classifier *fakeClassifier
	object     *fakeObjectModel
	loads      int
}

func (l *fakeLoader) Classifier(string) (ImageClassifier, error) {
	l.loads++
	if l.classifier == nil {
		return nil, errors.New("no classifier configured")
	}
	return l.classifier, nil
}

func (l *fakeLoader) ObjectModel(string) (ObjectModel, error) {
	l.loads++
	if l.object == nil {
		return nil, errors.New("no object model configured")
	}
	return l.object, nil
}

// fakeVideo yields n synthetic frames then io.EOF.
type fakeVideo struct {
	frames int
	served int
	fps    float64
	closed bool
}

func (v *fakeVideo) TotalFrames() int { return v.frames }
func (v *fakeVideo) FPS() float64     { return v.fps }
func (v *fakeVideo) Close() error     { v.closed = true; return nil }

func (v *fakeVideo) Next() (image.Image, error) {
	if v.served >= v.frames {
		return nil, io.EOF
	}
	v.served++
	return image.NewRGBA(image.Rect(0, 0, 2, 2)), nil
}

func openerFor(v *fakeVideo) VideoOpener {
	return func(string) (VideoSource, error) { return v, nil }
}

func writePNG(t *testing.T, name string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		img.Set(x, x, color.RGBA{R: 200, A: 255})
	}
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSampleFramesEveryNth(t *testing.T) {
	src := &fakeVideo{frames: 10}
	var visited []int
	total, analyzed, err := sampleFrames(context.Background(), src, 3, func(_ context.Context, index int, _ image.Image) error {
		visited = append(visited, index)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if total != 10 || analyzed != 4 {
		t.Fatalf("total=%d analyzed=%d", total, analyzed)
	}
	want := []int{0, 3, 6, 9}
	for i, idx := range want {
		if visited[i] != idx {
			t.Fatalf("visited = %v, want %v", visited, want)
		}
	}
}

func TestSampleFramesCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := sampleFrames(ctx, &fakeVideo{frames: 5}, 1, func(context.Context, int, image.Image) error {
		t.Fatal("visitor should not run after cancellation")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
}

func TestDeepfakeImage(t *testing.T) {
	path := writePNG(t, "face.png")
	loader := &fakeLoader{classifier: &fakeClassifier{id: "model-a", labels: []string{"Fake"}, conf: []float64{0.87}}}
	d := NewDeepfakeDetector(NewModelCache(loader), "model-a", "model-b", 30, nil)

	env := d.Detect(context.Background(), path)
	if env.Error != "" {
		t.Fatalf("unexpected error: %s", env.Error)
	}
	if env.Type != TypeImage || env.Prediction != labelFake {
		t.Fatalf("got %+v", env)
	}
	if env.Confidence != 0.87 {
		t.Fatalf("confidence = %v", env.Confidence)
	}
	if env.ModelVersion != "model-a" || env.DetectionMethod != "image_classification" {
		t.Fatalf("metadata = %s / %s", env.ModelVersion, env.DetectionMethod)
	}
}

func TestDeepfakeVideoVerdicts(t *testing.T) {
	cases := []struct {
		name   string
		frames int
		rate   int
		labels []string
		want   string
		fake   int
		real   int
	}{
		{"majority fake", 10, 2, []string{"fake", "real", "fake", "real", "fake"}, labelFake, 3, 2},
		{"majority real", 10, 2, []string{"real", "real", "fake", "real", "real"}, labelReal, 1, 4},
		{"tie counts as fake", 4, 2, []string{"fake", "real"}, labelFake, 1, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "clip.mp4")
			if err := os.WriteFile(path, []byte("stub"), 0o644); err != nil {
				t.Fatal(err)
			}
			video := &fakeVideo{frames: tc.frames, fps: 30}
			loader := &fakeLoader{classifier: &fakeClassifier{id: "v", labels: tc.labels}}
			d := NewDeepfakeDetector(NewModelCache(loader), "i", "v", tc.rate, openerFor(video))

			env := d.Detect(context.Background(), path)
			if env.Error != "" {
				t.Fatalf("unexpected error: %s", env.Error)
			}
			if env.Prediction != tc.want {
				t.Fatalf("prediction = %s, want %s", env.Prediction, tc.want)
			}
			if env.Video == nil {
				t.Fatal("missing video stats")
			}
			if env.Video.FakeFrames != tc.fake || env.Video.RealFrames != tc.real {
				t.Fatalf("frame counts = %+v", env.Video)
			}
			if env.Video.TotalFrames != tc.frames {
				t.Fatalf("total frames = %d", env.Video.TotalFrames)
			}
			if !video.closed {
				t.Fatal("video source not closed")
			}
		})
	}
}

func TestDeepfakeVideoNoFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.mp4")
	if err := os.WriteFile(path, []byte("stub"), 0o644); err != nil {
		t.Fatal(err)
	}
	loader := &fakeLoader{classifier: &fakeClassifier{id: "v", labels: []string{"fake"}}}
	d := NewDeepfakeDetector(NewModelCache(loader), "i", "v", 30, openerFor(&fakeVideo{frames: 0}))

	env := d.Detect(context.Background(), path)
	if env.Type != TypeError || env.Error != ErrNoFrames.Error() {
		t.Fatalf("got %+v", env)
	}
}

func TestDeepfakeUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("text"), 0o644); err != nil {
		t.Fatal(err)
	}
	d := NewDeepfakeDetector(NewModelCache(&fakeLoader{}), "i", "v", 30, nil)
	env := d.Detect(context.Background(), path)
	if env.Type != TypeError || env.Error != ErrUnsupportedFormat.Error() {
		t.Fatalf("got %+v", env)
	}
}

func TestDeepfakeRejectsMismatchedMagic(t *testing.T) {
	// a PDF body wearing a .png extension must not reach the classifier
	path := filepath.Join(t.TempDir(), "disguised.png")
	if err := os.WriteFile(path, []byte("%PDF-1.4 not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	d := NewDeepfakeDetector(NewModelCache(&fakeLoader{classifier: &fakeClassifier{id: "m", labels: []string{"fake"}}}), "m", "v", 30, nil)
	env := d.Detect(context.Background(), path)
	if env.Type != TypeError || env.Error != ErrUnsupportedFormat.Error() {
		t.Fatalf("got %+v", env)
	}
}

func TestObjectImage(t *testing.T) {
	path := writePNG(t, "scene.png")
	model := &fakeObjectModel{id: "det-1", detections: [][]Detection{{
		{Class: "car", Confidence: 0.7, BBox: [4]float64{0, 0, 10, 10}},
		{Class: "person", Confidence: 0.95, BBox: [4]float64{5, 5, 8, 9}},
		{Class: "car", Confidence: 0.6, BBox: [4]float64{20, 20, 30, 30}},
	}}}
	d := NewObjectDetector(NewModelCache(&fakeLoader{object: model}), "det-1", 30, nil)

	env := d.Detect(context.Background(), path)
	if env.Error != "" {
		t.Fatalf("unexpected error: %s", env.Error)
	}
	if env.Prediction != "person" || env.Confidence != 0.95 {
		t.Fatalf("primary = %s/%v", env.Prediction, env.Confidence)
	}
	if env.Objects.ObjectCount != 3 {
		t.Fatalf("object count = %d", env.Objects.ObjectCount)
	}
	want := []string{"car", "person"}
	if len(env.Objects.AllClasses) != 2 || env.Objects.AllClasses[0] != want[0] || env.Objects.AllClasses[1] != want[1] {
		t.Fatalf("classes = %v", env.Objects.AllClasses)
	}
}

func TestObjectImageEmpty(t *testing.T) {
	path := writePNG(t, "blank.png")
	d := NewObjectDetector(NewModelCache(&fakeLoader{object: &fakeObjectModel{id: "det-1"}}), "det-1", 30, nil)

	env := d.Detect(context.Background(), path)
	if env.Prediction != "no_objects" || env.Confidence != 0 {
		t.Fatalf("got %+v", env)
	}
	if env.Objects.ObjectCount != 0 {
		t.Fatalf("object count = %d", env.Objects.ObjectCount)
	}
}

func TestObjectVideoMostFrequentClass(t *testing.T) {
	path := filepath.Join(t.TempDir(), "traffic.mp4")
	if err := os.WriteFile(path, []byte("stub"), 0o644); err != nil {
		t.Fatal(err)
	}
	model := &fakeObjectModel{id: "det-1", detections: [][]Detection{
		{{Class: "car", Confidence: 0.8}, {Class: "person", Confidence: 0.6}},
		{{Class: "car", Confidence: 0.9}},
		{{Class: "bicycle", Confidence: 0.5}},
	}}
	video := &fakeVideo{frames: 6, fps: 30}
	d := NewObjectDetector(NewModelCache(&fakeLoader{object: model}), "det-1", 2, openerFor(video))

	env := d.Detect(context.Background(), path)
	if env.Error != "" {
		t.Fatalf("unexpected error: %s", env.Error)
	}
	if env.Prediction != "car" {
		t.Fatalf("prediction = %s", env.Prediction)
	}
	if env.Video.ClassFrequency["car"] != 2 {
		t.Fatalf("frequency = %v", env.Video.ClassFrequency)
	}
	if env.Objects.TotalDetections != 4 {
		t.Fatalf("total detections = %d", env.Objects.TotalDetections)
	}
	if len(env.Objects.FrameAnalysis) != 3 {
		t.Fatalf("frame analysis = %+v", env.Objects.FrameAnalysis)
	}
}

func TestModelCacheReuseAndReload(t *testing.T) {
	loader := &fakeLoader{classifier: &fakeClassifier{id: "a", labels: []string{"real"}}}
	cache := NewModelCache(loader)

	if _, err := cache.Classifier("deepfake-image", "model-a"); err != nil {
		t.Fatal(err)
	}
	if _, err := cache.Classifier("deepfake-image", "model-a"); err != nil {
		t.Fatal(err)
	}
	if loader.loads != 1 {
		t.Fatalf("loads = %d, want 1", loader.loads)
	}

	// switching the identifier replaces the slot's handle
	if _, err := cache.Classifier("deepfake-image", "model-b"); err != nil {
		t.Fatal(err)
	}
	if loader.loads != 2 {
		t.Fatalf("loads = %d, want 2", loader.loads)
	}
	if cache.Loads() != 2 {
		t.Fatalf("cache loads = %d", cache.Loads())
	}
}

func TestModelCacheNoLoader(t *testing.T) {
	cache := NewModelCache(nil)
	if _, err := cache.Classifier("deepfake-image", "m"); !errors.Is(err, ErrNoBackend) {
		t.Fatalf("err = %v", err)
	}
}
