package detect

import (
	"context"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testFrame() image.Image {
	return image.NewRGBA(image.Rect(0, 0, 2, 2))
}

func TestRemoteClassifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/classify" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("model"); got != "model/a b" {
			t.Errorf("model = %q", got)
		}
		if ct := r.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("content type = %s", ct)
		}
		w.Write([]byte(`{"label":"fake","confidence":1.7}`))
	}))
	defer srv.Close()

	backend := NewRemoteBackend(srv.URL, 5*time.Second)
	clf, err := backend.Classifier("model/a b")
	if err != nil {
		t.Fatal(err)
	}
	verdict, err := clf.Classify(context.Background(), testFrame())
	if err != nil {
		t.Fatal(err)
	}
	if verdict.Label != "fake" {
		t.Fatalf("label = %s", verdict.Label)
	}
	// out-of-range confidences from the service are clamped at the edge
	if verdict.Confidence != 1.0 {
		t.Fatalf("confidence = %v", verdict.Confidence)
	}
}

func TestRemoteObjectModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/detect" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Write([]byte(`{"detections":[{"class":"car","confidence":0.8,"bbox":[0,0,10,20]}]}`))
	}))
	defer srv.Close()

	backend := NewRemoteBackend(srv.URL, 5*time.Second)
	model, err := backend.ObjectModel("det")
	if err != nil {
		t.Fatal(err)
	}
	dets, err := model.Detect(context.Background(), testFrame())
	if err != nil {
		t.Fatal(err)
	}
	if len(dets) != 1 || dets[0].Class != "car" {
		t.Fatalf("detections = %+v", dets)
	}
	if dets[0].Center != [2]float64{5, 10} {
		t.Fatalf("center = %v", dets[0].Center)
	}
}

func TestRemoteErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	backend := NewRemoteBackend(srv.URL, 5*time.Second)
	clf, _ := backend.Classifier("missing")
	if _, err := clf.Classify(context.Background(), testFrame()); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestRemoteBackendUnconfigured(t *testing.T) {
	backend := NewRemoteBackend("", time.Second)
	if _, err := backend.Classifier("m"); err != ErrNoBackend {
		t.Fatalf("err = %v", err)
	}
	if _, err := backend.ObjectModel("m"); err != ErrNoBackend {
		t.Fatalf("err = %v", err)
	}
}
