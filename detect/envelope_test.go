package detect

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestNewEnvelopeClampsConfidence(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{-0.5, 0},
		{0, 0},
		{0.42, 0.42},
		{1, 1},
		{1.3, 1},
	}
	for _, tc := range cases {
		env := NewEnvelope(TypeImage, "x.png", "real", tc.in)
		if env.Confidence != tc.want {
			t.Fatalf("confidence(%v) = %v, want %v", tc.in, env.Confidence, tc.want)
		}
	}
}

func TestErrorEnvelopeShape(t *testing.T) {
	env := ErrorEnvelope("bad.bin", errors.New("boom"))
	if env.Type != TypeError || env.Error != "boom" {
		t.Fatalf("got %+v", env)
	}
	if env.Prediction != "" || env.Confidence != 0 {
		t.Fatalf("verdict fields set on error: %+v", env)
	}
	if _, err := time.Parse(time.RFC3339, env.Timestamp); err != nil {
		t.Fatalf("timestamp %q not RFC3339: %v", env.Timestamp, err)
	}

	if got := ErrorEnvelope("x", nil); got.Error != "detection failed" {
		t.Fatalf("nil error message = %q", got.Error)
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	env := NewEnvelope(TypeVideo, "clip.mp4", "fake", 0.91)
	env.ModelVersion = "m-1"
	env.DetectionMethod = "frame_sampling"
	env.Video = &VideoStats{TotalFrames: 120, AnalyzedFrames: 4, FPS: 30, FakeFrames: 3, RealFrames: 1, FakeRatio: 0.75}

	data, err := env.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	back, err := UnmarshalEnvelope(data)
	if err != nil {
		t.Fatal(err)
	}
	if back.Prediction != env.Prediction || back.Confidence != env.Confidence || back.Type != env.Type {
		t.Fatalf("base fields changed: %+v", back)
	}
	if back.Video == nil || !reflect.DeepEqual(*back.Video, *env.Video) {
		t.Fatalf("video stats changed: %+v", back.Video)
	}
	if back.Fraud != nil || back.Batch != nil || back.Objects != nil {
		t.Fatal("unrelated sections populated")
	}
}

func TestParseKind(t *testing.T) {
	for _, ok := range []string{"deepfake", "object", "fraud"} {
		if _, valid := ParseKind(ok); !valid {
			t.Fatalf("%s should parse", ok)
		}
	}
	if _, valid := ParseKind("sentiment"); valid {
		t.Fatal("unknown kind accepted")
	}
}
