package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"exhibit/version"
)

type Config struct {
	UploadDir          string            `json:"upload_dir"`
	ReportsDir         string            `json:"reports_dir"`
	DatabasePath       string            `json:"database_path"`
	AllowedExtensions  []string          `json:"allowed_extensions"`
	MaxFileSize        int64             `json:"max_file_size"`
	SampleRate         int               `json:"sample_rate"`
	RiskThreshold      float64           `json:"risk_threshold"`
	DeepfakeImageModel string            `json:"deepfake_image_model"`
	DeepfakeVideoModel string            `json:"deepfake_video_model"`
	ObjectModel        string            `json:"object_model"`
	InferenceEndpoint  string            `json:"inference_endpoint"`
	InferenceTimeout   time.Duration     `json:"inference_timeout"`
	HashAlgorithms     []string          `json:"hash_algorithms"`
	FuzzyHash          bool              `json:"fuzzy_hash"`
	FuzzyAlgorithms    []string          `json:"fuzzy_algorithms"`
	MetadataMaxBytes   int64             `json:"metadata_max_bytes"`
	MerchantWatchlist  []string          `json:"merchant_watchlist"`
	DeviceDenylist     []string          `json:"device_denylist"`
	MaxPerSecond       int               `json:"max_detections_per_second"`
	DemoUserID         int64             `json:"demo_user_id"`
	LogLevel           string            `json:"log_level"`
	ConfigFile         string            `json:"config_file"`
	OtelEndpoint       string            `json:"otel_endpoint"`
	OtelFromEnv        bool              `json:"otel_from_env"`
	OtelHeaders        map[string]string `json:"otel_headers"`
	OtelServiceName    string            `json:"otel_service_name"`
	OtelTimeout        time.Duration     `json:"otel_timeout"`
	OtelExportPaths    bool              `json:"otel_export_paths"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		UploadDir:          "uploads",
		ReportsDir:         "reports",
		DatabasePath:       "exhibit.db",
		AllowedExtensions:  []string{"png", "jpg", "jpeg", "gif", "mp4", "avi", "mov", "pdf", "doc", "docx"},
		MaxFileSize:        16 * 1024 * 1024,
		SampleRate:         30,
		RiskThreshold:      0.7,
		DeepfakeImageModel: "dima806/deepfake_vs_real_image_detection",
		DeepfakeVideoModel: "Naman712/Deep-fake-detection",
		ObjectModel:        "yolov8n",
		InferenceEndpoint:  "",
		InferenceTimeout:   2 * time.Minute,
		HashAlgorithms:     []string{"sha256"},
		FuzzyHash:          true,
		FuzzyAlgorithms:    []string{"tlsh"},
		MetadataMaxBytes:   1 * 1024 * 1024,
		MerchantWatchlist:  []string{},
		DeviceDenylist:     []string{},
		MaxPerSecond:       0,
		DemoUserID:         1,
		LogLevel:           "info",
		OtelHeaders:        map[string]string{},
		OtelServiceName:    "exhibit",
		OtelTimeout:        5 * time.Second,
	}

	uploadDir := flag.String("upload-dir", cfg.UploadDir, fmt.Sprintf("Directory where uploaded evidence files are stored (default: %s).", cfg.UploadDir))
	reportsDir := flag.String("reports-dir", cfg.ReportsDir, fmt.Sprintf("Directory where rendered evidence reports are written (default: %s).", cfg.ReportsDir))
	databasePath := flag.String("database", cfg.DatabasePath, fmt.Sprintf("Path to the detection database (default: %s).", cfg.DatabasePath))
	allowedExts := flag.String("allowed-extensions", strings.Join(cfg.AllowedExtensions, ","), "Comma-separated list of accepted file extensions.")
	maxFileSize := flag.Int64("max-file-size", cfg.MaxFileSize, fmt.Sprintf("Maximum upload size in bytes (default: %d).", cfg.MaxFileSize))
	sampleRate := flag.Int("sample-rate", cfg.SampleRate, fmt.Sprintf("Analyze every Nth video frame (default: %d).", cfg.SampleRate))
	riskThreshold := flag.Float64("risk-threshold", cfg.RiskThreshold, fmt.Sprintf("Fraud risk score above which a transaction is flagged (default: %.2f).", cfg.RiskThreshold))
	deepfakeImageModel := flag.String("deepfake-image-model", cfg.DeepfakeImageModel, "Model identifier for single-image deepfake classification.")
	deepfakeVideoModel := flag.String("deepfake-video-model", cfg.DeepfakeVideoModel, "Model identifier for per-frame video deepfake classification.")
	objectModel := flag.String("object-model", cfg.ObjectModel, "Model identifier for object detection.")
	inferenceEndpoint := flag.String("inference-endpoint", cfg.InferenceEndpoint, "Base URL of the model inference service (default: none).")
	inferenceTimeout := flag.Duration("inference-timeout", cfg.InferenceTimeout, "Upper bound on a single detection call (default: 2m).")
	hashes := flag.String("hashes", strings.Join(cfg.HashAlgorithms, ","), "Comma-separated list of evidence hash algorithms (md5, sha1, sha256, blake3).")
	fuzzyHash := flag.Bool("fuzzy-hash", cfg.FuzzyHash, "Compute fuzzy fingerprints of uploaded evidence (default: true).")
	fuzzyAlgos := flag.String("fuzzy-algorithms", strings.Join(cfg.FuzzyAlgorithms, ","), "Comma-separated list of fuzzy hash algorithms (default: tlsh).")
	metadataMaxBytes := flag.Int64("metadata-max-bytes", cfg.MetadataMaxBytes, "Maximum bytes metadata parsers may read per file (0 means unlimited).")
	merchantWatch := flag.String("merchant-watchlist", "", "Comma-separated merchant descriptor terms that raise fraud risk (default: none).")
	deviceDeny := flag.String("device-denylist", "", "Comma-separated device identifiers treated as known bad (default: none).")
	maxPerSecond := flag.Int("max-detections-per-second", cfg.MaxPerSecond, "Maximum detection calls per second (0 means unlimited).")
	demoUser := flag.Int64("user", cfg.DemoUserID, "Acting user ID recorded on detections (default: 1).")
	logLevel := flag.String("log-level", cfg.LogLevel, fmt.Sprintf("Log level: debug, info, warn, error, fatal, or panic (default: %s).", cfg.LogLevel))
	configFile := flag.String("config", "", "Path to a JSON configuration file (default: none).")
	otelEndpoint := flag.String("otel-endpoint", cfg.OtelEndpoint, "OTLP logs endpoint URL for audit event export (default: none).")
	otelFromEnv := flag.Bool("otel-from-env", cfg.OtelFromEnv, "Resolve the OTLP endpoint from OTEL_EXPORTER_OTLP(_LOGS)_ENDPOINT (default: false).")
	otelHeaders := flag.String("otel-headers", "", "Comma-separated key=value headers for the OTLP exporter (default: none).")
	otelServiceName := flag.String("otel-service-name", cfg.OtelServiceName, "Service name reported with exported events.")
	otelTimeout := flag.Duration("otel-timeout", cfg.OtelTimeout, "OTLP export timeout (default: 5s).")
	otelExportPaths := flag.Bool("otel-export-paths", cfg.OtelExportPaths, "Include evidence file paths in exported events (default: false).")
	help := flag.Bool("help", false, "Display help information.")
	showVersion := flag.Bool("version", false, "Display version information.")

	flag.Parse()

	if *help {
		displayHelp()
		os.Exit(0)
	}
	if *showVersion {
		fmt.Printf("exhibit %s\n", version.Version)
		os.Exit(0)
	}

	if *configFile != "" {
		cfg.ConfigFile = *configFile
		if err := cfg.loadFromFile(*configFile); err != nil {
			return nil, err
		}
	}

	// Flags explicitly set on the command line win over config file values.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "upload-dir":
			cfg.UploadDir = *uploadDir
		case "reports-dir":
			cfg.ReportsDir = *reportsDir
		case "database":
			cfg.DatabasePath = *databasePath
		case "allowed-extensions":
			cfg.AllowedExtensions = parseCommaSeparated(*allowedExts)
		case "max-file-size":
			cfg.MaxFileSize = *maxFileSize
		case "sample-rate":
			cfg.SampleRate = *sampleRate
		case "risk-threshold":
			cfg.RiskThreshold = *riskThreshold
		case "deepfake-image-model":
			cfg.DeepfakeImageModel = strings.TrimSpace(*deepfakeImageModel)
		case "deepfake-video-model":
			cfg.DeepfakeVideoModel = strings.TrimSpace(*deepfakeVideoModel)
		case "object-model":
			cfg.ObjectModel = strings.TrimSpace(*objectModel)
		case "inference-endpoint":
			cfg.InferenceEndpoint = strings.TrimSpace(*inferenceEndpoint)
		case "inference-timeout":
			cfg.InferenceTimeout = *inferenceTimeout
		case "hashes":
			cfg.HashAlgorithms = parseCommaSeparated(*hashes)
		case "fuzzy-hash":
			cfg.FuzzyHash = *fuzzyHash
		case "fuzzy-algorithms":
			cfg.FuzzyAlgorithms = parseCommaSeparated(*fuzzyAlgos)
		case "metadata-max-bytes":
			cfg.MetadataMaxBytes = *metadataMaxBytes
		case "merchant-watchlist":
			cfg.MerchantWatchlist = parseCommaSeparated(*merchantWatch)
		case "device-denylist":
			cfg.DeviceDenylist = parseCommaSeparated(*deviceDeny)
		case "max-detections-per-second":
			cfg.MaxPerSecond = *maxPerSecond
		case "user":
			cfg.DemoUserID = *demoUser
		case "log-level":
			cfg.LogLevel = strings.ToLower(strings.TrimSpace(*logLevel))
		case "otel-endpoint":
			cfg.OtelEndpoint = strings.TrimSpace(*otelEndpoint)
		case "otel-from-env":
			cfg.OtelFromEnv = *otelFromEnv
		case "otel-headers":
			cfg.OtelHeaders = parseHeaders(*otelHeaders)
		case "otel-service-name":
			cfg.OtelServiceName = strings.TrimSpace(*otelServiceName)
		case "otel-timeout":
			cfg.OtelTimeout = *otelTimeout
		case "otel-export-paths":
			cfg.OtelExportPaths = *otelExportPaths
		}
	})

	cfg.AllowedExtensions = normalizeExtensions(cfg.AllowedExtensions)
	cfg.HashAlgorithms = normalizeAlgorithms(cfg.HashAlgorithms)
	cfg.FuzzyAlgorithms = normalizeAlgorithms(cfg.FuzzyAlgorithms)
	if !containsString(cfg.HashAlgorithms, "sha256") {
		cfg.HashAlgorithms = append(cfg.HashAlgorithms, "sha256")
	}
	if cfg.FuzzyHash && len(cfg.FuzzyAlgorithms) == 0 {
		cfg.FuzzyAlgorithms = []string{"tlsh"}
	}
	if len(cfg.FuzzyAlgorithms) > 0 {
		cfg.FuzzyHash = true
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func displayHelp() {
	fmt.Println("Exhibit - Multi-Modal Detection and Evidence Reporting")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  exhibit <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  detect   Run a detector against a file and persist the result")
	fmt.Println("  list     List stored detection records")
	fmt.Println("  report   Build and render an evidence report for a record")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  exhibit detect --kind deepfake --file suspect.jpg")
	fmt.Println("  exhibit report --id 7")
}

func (cfg *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read config file: %v", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("invalid config file format: %v", err)
	}
	return nil
}

func (cfg *Config) validate() error {
	if strings.TrimSpace(cfg.UploadDir) == "" {
		return fmt.Errorf("upload-dir must not be empty")
	}
	if strings.TrimSpace(cfg.ReportsDir) == "" {
		return fmt.Errorf("reports-dir must not be empty")
	}
	if strings.TrimSpace(cfg.DatabasePath) == "" {
		return fmt.Errorf("database path must not be empty")
	}
	if len(cfg.AllowedExtensions) == 0 {
		return fmt.Errorf("at least one allowed extension is required")
	}
	if cfg.MaxFileSize <= 0 {
		return fmt.Errorf("max-file-size must be positive")
	}
	if cfg.SampleRate <= 0 {
		return fmt.Errorf("sample-rate must be positive")
	}
	if cfg.RiskThreshold <= 0 || cfg.RiskThreshold >= 1 {
		return fmt.Errorf("risk-threshold must be between 0 and 1 exclusive")
	}
	if cfg.InferenceTimeout <= 0 {
		return fmt.Errorf("inference-timeout must be positive")
	}
	for _, algo := range cfg.HashAlgorithms {
		switch algo {
		case "md5", "sha1", "sha256", "blake3":
		default:
			return fmt.Errorf("unsupported hash algorithm: %s", algo)
		}
	}
	if cfg.MetadataMaxBytes < 0 {
		return fmt.Errorf("metadata-max-bytes must be zero or positive")
	}
	if cfg.MaxPerSecond < 0 {
		return fmt.Errorf("max-detections-per-second must be zero or positive")
	}
	if cfg.LogLevel != "debug" && cfg.LogLevel != "info" && cfg.LogLevel != "warn" &&
		cfg.LogLevel != "error" && cfg.LogLevel != "fatal" && cfg.LogLevel != "panic" {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if cfg.OtelTimeout < 0 {
		return fmt.Errorf("otel-timeout must be zero or positive")
	}
	if cfg.OtelEndpoint != "" {
		if !strings.HasPrefix(cfg.OtelEndpoint, "http://") && !strings.HasPrefix(cfg.OtelEndpoint, "https://") {
			return fmt.Errorf("otel-endpoint must include scheme (http or https)")
		}
	}
	return nil
}

// ExtensionAllowed reports whether the file extension (with or without the
// leading dot) is on the upload allow-list. Comparison is case-insensitive.
func (cfg *Config) ExtensionAllowed(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	return containsString(cfg.AllowedExtensions, ext)
}

func parseCommaSeparated(input string) []string {
	if input == "" {
		return []string{}
	}
	items := strings.Split(input, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

func parseHeaders(input string) map[string]string {
	headers := make(map[string]string)
	if input == "" {
		return headers
	}
	for _, item := range strings.Split(input, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.SplitN(item, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		headers[key] = strings.TrimSpace(parts[1])
	}
	return headers
}

func normalizeExtensions(items []string) []string {
	normalized := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(item, ".")))
		if item == "" {
			continue
		}
		normalized = append(normalized, item)
	}
	return normalized
}

func normalizeAlgorithms(items []string) []string {
	normalized := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.ToLower(strings.TrimSpace(item))
		if item == "" {
			continue
		}
		normalized = append(normalized, item)
	}
	return normalized
}

func containsString(items []string, value string) bool {
	for _, item := range items {
		if item == value {
			return true
		}
	}
	return false
}
