package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	otelLog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"exhibit/config"
	"exhibit/detect"
	"exhibit/logger"
	"exhibit/store"
)

// otelEmitter exports pipeline events as OTLP log records. A nil emitter is
// valid and drops everything.
type otelEmitter struct {
	provider     *sdklog.LoggerProvider
	logger       otelLog.Logger
	timeout      time.Duration
	endpoint     string
	includePaths bool
}

func newOtelEmitter(cfg *config.Config) (*otelEmitter, error) {
	if cfg == nil {
		return nil, nil
	}
	endpoint := resolveOtelEndpoint(cfg)
	if endpoint == "" {
		return nil, nil
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return nil, fmt.Errorf("otel endpoint must include scheme (http or https)")
	}

	opts := []otlploghttp.Option{otlploghttp.WithEndpointURL(endpoint)}
	if len(cfg.OtelHeaders) > 0 {
		opts = append(opts, otlploghttp.WithHeaders(cfg.OtelHeaders))
	}
	if cfg.OtelTimeout > 0 {
		opts = append(opts, otlploghttp.WithTimeout(cfg.OtelTimeout))
	}

	exp, err := otlploghttp.New(context.Background(), opts...)
	if err != nil {
		return nil, err
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(cfg.OtelServiceName),
	)
	provider := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exp)),
		sdklog.WithResource(res),
	)

	return &otelEmitter{
		provider:     provider,
		logger:       provider.Logger("exhibit"),
		timeout:      cfg.OtelTimeout,
		endpoint:     endpoint,
		includePaths: cfg.OtelExportPaths,
	}, nil
}

func resolveOtelEndpoint(cfg *config.Config) string {
	if endpoint := strings.TrimSpace(cfg.OtelEndpoint); endpoint != "" {
		return endpoint
	}
	if !cfg.OtelFromEnv {
		return ""
	}
	if endpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT")); endpoint != "" {
		return endpoint
	}
	return strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
}

// EmitDetection exports one completed detection. Evidence paths are withheld
// unless the operator opted in.
func (o *otelEmitter) EmitDetection(rec *store.DetectionRecord) {
	if o == nil || o.logger == nil {
		return
	}
	attrs := []otelLog.KeyValue{
		otelLog.Int64("exhibit.detection.id", rec.ID),
		otelLog.Int64("exhibit.detection.user_id", rec.UserID),
		otelLog.String("exhibit.detection.type", rec.DetectionType),
		otelLog.String("exhibit.detection.result_type", string(rec.Result.Type)),
		otelLog.Float64("exhibit.detection.confidence", rec.Confidence),
	}
	if rec.Result.Prediction != "" {
		attrs = append(attrs, otelLog.String("exhibit.detection.prediction", rec.Result.Prediction))
	}
	if rec.Result.Error != "" {
		attrs = append(attrs, otelLog.String("exhibit.detection.error", rec.Result.Error))
	}
	if o.includePaths {
		attrs = append(attrs, otelLog.String(string(semconv.FilePathKey), rec.FilePath))
	}
	if sha, ok := rec.FileHashes["sha256"]; ok && sha != "" {
		attrs = append(attrs, otelLog.String("exhibit.detection.file_sha256", sha))
	}
	o.emit("detection_completed", attrs)
}

// EmitReport exports one generated evidence report.
func (o *otelEmitter) EmitReport(rep *store.EvidenceReport, reportID string) {
	if o == nil || o.logger == nil {
		return
	}
	o.emit("report_generated", []otelLog.KeyValue{
		otelLog.Int64("exhibit.report.id", rep.ID),
		otelLog.Int64("exhibit.report.detection_id", rep.DetectionID),
		otelLog.String("exhibit.report.report_id", reportID),
		otelLog.String("exhibit.report.hash", rep.ReportHash),
		otelLog.String("exhibit.report.status", rep.Status),
	})
}

// EmitRejection exports a submission that never reached a detector.
func (o *otelEmitter) EmitRejection(kind detect.Kind, reason string) {
	if o == nil || o.logger == nil {
		return
	}
	o.emit("submission_rejected", []otelLog.KeyValue{
		otelLog.String("exhibit.detection.type", string(kind)),
		otelLog.String("exhibit.rejection.reason", reason),
	})
}

func (o *otelEmitter) emit(eventType string, attrs []otelLog.KeyValue) {
	var record otelLog.Record
	now := time.Now()
	record.SetTimestamp(now)
	record.SetObservedTimestamp(now)
	record.SetEventName("exhibit.event")
	record.AddAttributes(otelLog.String("event_type", eventType))
	record.AddAttributes(attrs...)
	record.SetBody(otelLog.StringValue(eventType))
	o.logger.Emit(context.Background(), record)
}

func (o *otelEmitter) Shutdown() {
	if o == nil || o.provider == nil {
		return
	}
	timeout := o.timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := o.provider.Shutdown(ctx); err != nil {
		logger.Debugf("otel shutdown failed: %v", err)
	}
}
