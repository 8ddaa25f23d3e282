package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-json"

	"exhibit/config"
	"exhibit/detect"
	"exhibit/logger"
	"exhibit/pipeline"
	"exhibit/store"
	"exhibit/tracing"
)

var (
	kindFlag  = flag.String("kind", "deepfake", "Detector to run: deepfake, object, or fraud.")
	fileFlag  = flag.String("file", "", "Evidence file to analyze (detect command).")
	idFlag    = flag.Int64("id", 0, "Detection record ID (report command).")
	limitFlag = flag.Int("limit", 20, "Maximum records to list (list command).")
	typeFlag  = flag.String("type", "", "Restrict listing to one detection type (list command).")
)

func main() {
	if err := tracing.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start trace: %v\n", err)
	} else {
		defer tracing.Stop()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel)

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		logger.Fatalf("Failed to open database: %v", err)
	}
	defer st.Close()

	detectors, cache := buildDetectors(cfg)
	defer cache.Close()

	p, err := pipeline.New(cfg, st, detectors)
	if err != nil {
		logger.Fatalf("Failed to initialize pipeline: %v", err)
	}
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	command, err := parseCommand(flag.CommandLine)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	if err := run(ctx, p, command); err != nil {
		logger.Fatalf("%v", err)
	}
}

// parseCommand returns the subcommand and parses the flags that follow it.
// flag parsing stops at the first non-flag argument, so flags given after the
// command need a second pass over the remaining arguments.
func parseCommand(fs *flag.FlagSet) (string, error) {
	args := fs.Args()
	if len(args) == 0 {
		return "", nil
	}
	command := args[0]
	if len(args) > 1 {
		if err := fs.Parse(args[1:]); err != nil {
			return command, err
		}
	}
	return command, nil
}

// buildDetectors assembles the detector set from configuration. Without an
// inference endpoint the model-backed detectors still dispatch and record
// error envelopes explaining the missing backend.
func buildDetectors(cfg *config.Config) ([]detect.Detector, *detect.ModelCache) {
	var loader detect.ModelLoader
	if cfg.InferenceEndpoint != "" {
		loader = detect.NewRemoteBackend(cfg.InferenceEndpoint, cfg.InferenceTimeout)
	}
	cache := detect.NewModelCache(loader)
	watchlist := detect.NewWatchlist(cfg.MerchantWatchlist, cfg.DeviceDenylist)

	return []detect.Detector{
		detect.NewDeepfakeDetector(cache, cfg.DeepfakeImageModel, cfg.DeepfakeVideoModel, cfg.SampleRate, nil),
		detect.NewObjectDetector(cache, cfg.ObjectModel, cfg.SampleRate, nil),
		detect.NewFraudDetector(cfg.RiskThreshold, watchlist, nil, cfg.MetadataMaxBytes),
	}, cache
}

func run(ctx context.Context, p *pipeline.Pipeline, command string) error {
	switch command {
	case "detect":
		return runDetect(ctx, p)
	case "list":
		return runList(ctx, p)
	case "report":
		return runReport(ctx, p)
	case "":
		return fmt.Errorf("no command given; expected detect, list, or report (see --help)")
	default:
		return fmt.Errorf("unknown command %q; expected detect, list, or report", command)
	}
}

func runDetect(ctx context.Context, p *pipeline.Pipeline) error {
	kind, ok := detect.ParseKind(*kindFlag)
	if !ok {
		return fmt.Errorf("invalid --kind %q; expected deepfake, object, or fraud", *kindFlag)
	}
	if *fileFlag == "" {
		return fmt.Errorf("detect requires --file")
	}
	f, err := os.Open(*fileFlag)
	if err != nil {
		return fmt.Errorf("opening evidence file: %w", err)
	}
	defer f.Close()

	rec, err := p.Submit(ctx, kind, f.Name(), f)
	if err != nil {
		return err
	}
	return printJSON(struct {
		DetectionID int64           `json:"detection_id"`
		Result      detect.Envelope `json:"result"`
	}{rec.ID, rec.Result})
}

func runList(ctx context.Context, p *pipeline.Pipeline) error {
	records, err := p.Recent(ctx, store.ListFilter{
		DetectionType: *typeFlag,
		Limit:         *limitFlag,
	})
	if err != nil {
		return err
	}
	for _, rec := range records {
		fmt.Printf("%6d  %-8s  %-22s  %.2f  %s\n",
			rec.ID, rec.DetectionType, rec.Result.Prediction, rec.Confidence,
			rec.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	if len(records) == 0 {
		fmt.Println("no detections recorded")
	}
	return nil
}

func runReport(ctx context.Context, p *pipeline.Pipeline) error {
	if *idFlag <= 0 {
		return fmt.Errorf("report requires --id")
	}
	rep, err := p.GenerateReport(ctx, *idFlag)
	if err != nil {
		return err
	}
	return printJSON(struct {
		ReportID    int64  `json:"report_id"`
		DetectionID int64  `json:"detection_id"`
		ReportHash  string `json:"report_hash"`
		PDFPath     string `json:"pdf_path"`
		Status      string `json:"status"`
	}{rep.ID, rep.DetectionID, rep.ReportHash, rep.PDFPath, rep.Status})
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func handleSignals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("Interrupt signal received. Shutting down...")
	cancel()
}
