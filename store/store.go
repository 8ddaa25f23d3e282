package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/goccy/go-json"

	"exhibit/detect"
	"exhibit/logger"
)

// ErrNotFound is returned when a record or report id does not exist.
var ErrNotFound = errors.New("record not found")

// Report lifecycle states.
const (
	ReportGenerated = "generated"
	ReportVerified  = "verified"
	ReportSubmitted = "submitted"
)

// DetectionRecord is one persisted detection outcome. Result holds the full
// envelope; Confidence and DetectionType are denormalized for filtering.
type DetectionRecord struct {
	ID            int64
	UserID        int64
	FilePath      string
	OriginalName  string
	DetectionType string
	Result        detect.Envelope
	Confidence    float64
	FileHashes    map[string]string
	FuzzyHashes   map[string]string
	CreatedAt     time.Time
}

// EvidenceReport is one persisted court report.
type EvidenceReport struct {
	ID          int64
	DetectionID int64
	Body        json.RawMessage
	ReportHash  string
	PDFPath     string
	Status      string
	GeneratedAt time.Time
}

// AuditEntry is one row of the append-only audit trail.
type AuditEntry struct {
	ID        int64
	UserID    int64
	Action    string
	Details   string
	CreatedAt time.Time
}

// ListFilter narrows List queries. Zero values mean no constraint; Limit
// defaults to 50.
type ListFilter struct {
	UserID        int64
	DetectionType string
	Limit         int
}

// Store persists detection records, evidence reports, and the audit trail in
// DuckDB.
type Store struct {
	db *sql.DB
}

// Open connects to the database at path (empty for in-memory) and creates the
// schema if missing.
func Open(path string) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Debugf("database ready at %q", path)
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE SEQUENCE IF NOT EXISTS detection_records_seq`,
		`CREATE TABLE IF NOT EXISTS detection_records (
			id BIGINT PRIMARY KEY DEFAULT nextval('detection_records_seq'),
			user_id BIGINT NOT NULL,
			file_path VARCHAR NOT NULL,
			original_name VARCHAR NOT NULL DEFAULT '',
			detection_type VARCHAR NOT NULL,
			result JSON NOT NULL,
			confidence DOUBLE NOT NULL DEFAULT 0,
			file_hashes JSON,
			fuzzy_hashes JSON,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE SEQUENCE IF NOT EXISTS evidence_reports_seq`,
		`CREATE TABLE IF NOT EXISTS evidence_reports (
			id BIGINT PRIMARY KEY DEFAULT nextval('evidence_reports_seq'),
			detection_id BIGINT NOT NULL,
			body JSON NOT NULL,
			report_hash VARCHAR NOT NULL,
			pdf_path VARCHAR NOT NULL DEFAULT '',
			status VARCHAR NOT NULL,
			generated_at TIMESTAMP NOT NULL
		)`,
		`CREATE SEQUENCE IF NOT EXISTS audit_log_seq`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id BIGINT PRIMARY KEY DEFAULT nextval('audit_log_seq'),
			user_id BIGINT NOT NULL,
			action VARCHAR NOT NULL,
			details VARCHAR NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

// InsertDetection stores a detection record and returns its assigned id.
func (s *Store) InsertDetection(ctx context.Context, rec *DetectionRecord) (int64, error) {
	result, err := rec.Result.Marshal()
	if err != nil {
		return 0, fmt.Errorf("encoding result: %w", err)
	}
	fileHashes, err := json.Marshal(rec.FileHashes)
	if err != nil {
		return 0, fmt.Errorf("encoding file hashes: %w", err)
	}
	fuzzyHashes, err := json.Marshal(rec.FuzzyHashes)
	if err != nil {
		return 0, fmt.Errorf("encoding fuzzy hashes: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO detection_records
			(user_id, file_path, original_name, detection_type, result, confidence, file_hashes, fuzzy_hashes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		rec.UserID, rec.FilePath, rec.OriginalName, rec.DetectionType,
		string(result), rec.Confidence, string(fileHashes), string(fuzzyHashes), rec.CreatedAt,
	)
	if err := row.Scan(&rec.ID); err != nil {
		return 0, fmt.Errorf("inserting detection record: %w", err)
	}
	return rec.ID, nil
}

// GetDetection fetches one detection record by id.
func (s *Store) GetDetection(ctx context.Context, id int64) (*DetectionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, file_path, original_name, detection_type, result, confidence, file_hashes, fuzzy_hashes, created_at
		FROM detection_records WHERE id = ?`, id)

	rec, err := scanDetection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching detection %d: %w", id, err)
	}
	return rec, nil
}

// ListDetections returns records newest first, narrowed by the filter.
func (s *Store) ListDetections(ctx context.Context, filter ListFilter) ([]DetectionRecord, error) {
	query := `
		SELECT id, user_id, file_path, original_name, detection_type, result, confidence, file_hashes, fuzzy_hashes, created_at
		FROM detection_records WHERE 1=1`
	var args []interface{}
	if filter.UserID != 0 {
		query += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.DetectionType != "" {
		query += " AND detection_type = ?"
		args = append(args, filter.DetectionType)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing detections: %w", err)
	}
	defer rows.Close()

	var records []DetectionRecord
	for rows.Next() {
		rec, err := scanDetection(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning detection row: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDetection(scanner rowScanner) (*DetectionRecord, error) {
	// DuckDB hands JSON columns back as decoded values, so scan through
	// interface{} and re-marshal before typed decoding.
	var (
		rec         DetectionRecord
		result      interface{}
		fileHashes  interface{}
		fuzzyHashes interface{}
	)
	if err := scanner.Scan(
		&rec.ID, &rec.UserID, &rec.FilePath, &rec.OriginalName, &rec.DetectionType,
		&result, &rec.Confidence, &fileHashes, &fuzzyHashes, &rec.CreatedAt,
	); err != nil {
		return nil, err
	}

	raw, err := jsonColumnBytes(result)
	if err != nil {
		return nil, fmt.Errorf("decoding stored result: %w", err)
	}
	env, err := detect.UnmarshalEnvelope(raw)
	if err != nil {
		return nil, fmt.Errorf("decoding stored result: %w", err)
	}
	rec.Result = env

	if err := decodeJSONColumn(fileHashes, &rec.FileHashes); err != nil {
		return nil, fmt.Errorf("decoding file hashes: %w", err)
	}
	if err := decodeJSONColumn(fuzzyHashes, &rec.FuzzyHashes); err != nil {
		return nil, fmt.Errorf("decoding fuzzy hashes: %w", err)
	}
	return &rec, nil
}

// jsonColumnBytes normalizes a scanned JSON column to raw JSON text.
func jsonColumnBytes(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

func decodeJSONColumn(value interface{}, dst interface{}) error {
	raw, err := jsonColumnBytes(value)
	if err != nil {
		return err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// InsertReport stores an evidence report and returns its assigned id.
func (s *Store) InsertReport(ctx context.Context, rep *EvidenceReport) (int64, error) {
	if rep.Status == "" {
		rep.Status = ReportGenerated
	}
	if rep.GeneratedAt.IsZero() {
		rep.GeneratedAt = time.Now().UTC()
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO evidence_reports (detection_id, body, report_hash, pdf_path, status, generated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`,
		rep.DetectionID, string(rep.Body), rep.ReportHash, rep.PDFPath, rep.Status, rep.GeneratedAt,
	)
	if err := row.Scan(&rep.ID); err != nil {
		return 0, fmt.Errorf("inserting evidence report: %w", err)
	}
	return rep.ID, nil
}

// GetReport fetches one evidence report by id.
func (s *Store) GetReport(ctx context.Context, id int64) (*EvidenceReport, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, detection_id, body, report_hash, pdf_path, status, generated_at
		FROM evidence_reports WHERE id = ?`, id)

	var (
		rep  EvidenceReport
		body interface{}
	)
	err := row.Scan(&rep.ID, &rep.DetectionID, &body, &rep.ReportHash, &rep.PDFPath, &rep.Status, &rep.GeneratedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching report %d: %w", id, err)
	}
	raw, err := jsonColumnBytes(body)
	if err != nil {
		return nil, fmt.Errorf("decoding report body: %w", err)
	}
	rep.Body = json.RawMessage(raw)
	return &rep, nil
}

// ListReports returns reports for a detection, newest first.
func (s *Store) ListReports(ctx context.Context, detectionID int64) ([]EvidenceReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, detection_id, body, report_hash, pdf_path, status, generated_at
		FROM evidence_reports WHERE detection_id = ?
		ORDER BY generated_at DESC, id DESC`, detectionID)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	var reports []EvidenceReport
	for rows.Next() {
		var (
			rep  EvidenceReport
			body interface{}
		)
		if err := rows.Scan(&rep.ID, &rep.DetectionID, &body, &rep.ReportHash, &rep.PDFPath, &rep.Status, &rep.GeneratedAt); err != nil {
			return nil, fmt.Errorf("scanning report row: %w", err)
		}
		raw, err := jsonColumnBytes(body)
		if err != nil {
			return nil, fmt.Errorf("decoding report body: %w", err)
		}
		rep.Body = json.RawMessage(raw)
		reports = append(reports, rep)
	}
	return reports, rows.Err()
}

// UpdateReportStatus advances a report's lifecycle state.
func (s *Store) UpdateReportStatus(ctx context.Context, id int64, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE evidence_reports SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("updating report status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetReportPDF records where the rendered PDF landed.
func (s *Store) SetReportPDF(ctx context.Context, id int64, pdfPath string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE evidence_reports SET pdf_path = ? WHERE id = ?`, pdfPath, id)
	if err != nil {
		return fmt.Errorf("updating report pdf path: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendAudit appends one audit trail entry.
func (s *Store) AppendAudit(ctx context.Context, userID int64, action, details string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (user_id, action, details, created_at)
		VALUES (?, ?, ?, ?)`,
		userID, action, details, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}
	return nil
}

// RecentAudit returns the latest audit entries, newest first.
func (s *Store) RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, action, details, created_at
		FROM audit_log ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
