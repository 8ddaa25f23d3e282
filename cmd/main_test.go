package main

import (
	"context"
	"flag"
	"path/filepath"
	"strings"
	"testing"

	"exhibit/config"
)

func TestBuildDetectorsCoversAllKinds(t *testing.T) {
	cfg := &config.Config{
		DeepfakeImageModel: "img",
		DeepfakeVideoModel: "vid",
		ObjectModel:        "obj",
		SampleRate:         30,
		RiskThreshold:      0.7,
	}
	detectors, cache := buildDetectors(cfg)
	defer cache.Close()
	if len(detectors) != 3 {
		t.Fatalf("detectors = %d, want 3", len(detectors))
	}
	seen := map[string]bool{}
	for _, d := range detectors {
		seen[string(d.Kind())] = true
	}
	for _, kind := range []string{"deepfake", "object", "fraud"} {
		if !seen[kind] {
			t.Fatalf("missing %s detector", kind)
		}
	}
}

func TestCommandFlagsAfterSubcommand(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.jpg")
	if err := flag.CommandLine.Parse([]string{"detect", "--kind", "deepfake", "--file", missing}); err != nil {
		t.Fatal(err)
	}
	command, err := parseCommand(flag.CommandLine)
	if err != nil {
		t.Fatal(err)
	}
	if command != "detect" {
		t.Fatalf("command = %q", command)
	}
	if *kindFlag != "deepfake" || *fileFlag != missing {
		t.Fatalf("flags not parsed: kind=%q file=%q", *kindFlag, *fileFlag)
	}
	err = run(context.Background(), nil, command)
	if err == nil || !strings.Contains(err.Error(), "opening evidence file") {
		t.Fatalf("err = %v", err)
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	err := run(nil, nil, "scan")
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("err = %v", err)
	}
	if err := run(nil, nil, ""); err == nil || !strings.Contains(err.Error(), "no command") {
		t.Fatalf("err = %v", err)
	}
}
