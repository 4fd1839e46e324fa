package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/catalog/internal/logging"
	"github.com/JonMunkholm/catalog/internal/tabular"
)

var (
	// ErrNoRows is returned when an import carries no data rows.
	ErrNoRows = errors.New("no product rows to import")

	// ErrFileTooLarge is returned for uploads above the configured size.
	ErrFileTooLarge = errors.New("file too large")
)

// DefaultCommitTimeout bounds one commit stage once it has started.
const DefaultCommitTimeout = 10 * time.Minute

// Store is everything the import pipeline needs from persistence.
type Store interface {
	TaxonomyStore
	ProductStore
}

// GateError rejects a whole file because some rows failed validation.
type GateError struct {
	Errors []ValidationError
}

func (e *GateError) Error() string {
	rows := make(map[int]struct{})
	for _, v := range e.Errors {
		rows[v.Row] = struct{}{}
	}
	return fmt.Sprintf("validation failed for %d rows", len(rows))
}

// ServiceConfig tunes the import service.
type ServiceConfig struct {
	MaxFileSize     int64
	MaxConcurrent   int
	MaxWait         time.Duration
	CommitTimeout   time.Duration
	TaxonomyFailure TaxonomyFailurePolicy
	// StrictGate refuses files with any invalid row unless the request
	// explicitly allows partial commits.
	StrictGate bool
	Mapper     *Mapper
}

// Service runs the import pipeline: extract, normalize, validate, resolve
// taxonomy, commit and report.
type Service struct {
	store         Store
	mapper        *Mapper
	resolver      *TaxonomyResolver
	executor      *CommitExecutor
	limiter       *ImportLimiter
	maxFileSize   int64
	commitTimeout time.Duration
	strictGate    bool
}

// NewService builds a Service over store.
func NewService(store Store, cfg ServiceConfig) (*Service, error) {
	if store == nil {
		return nil, errors.New("core: nil store")
	}
	mapper := cfg.Mapper
	if mapper == nil {
		mapper = NewMapper()
	}
	timeout := cfg.CommitTimeout
	if timeout <= 0 {
		timeout = DefaultCommitTimeout
	}

	return &Service{
		store:         store,
		mapper:        mapper,
		resolver:      NewTaxonomyResolver(store, cfg.TaxonomyFailure),
		executor:      NewCommitExecutor(store),
		limiter:       NewImportLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		maxFileSize:   cfg.MaxFileSize,
		commitTimeout: timeout,
		strictGate:    cfg.StrictGate,
	}, nil
}

// Mapper returns the column mapper in use.
func (s *Service) Mapper() *Mapper {
	return s.mapper
}

// Limiter exposes the import limiter for status and shutdown.
func (s *Service) Limiter() *ImportLimiter {
	return s.limiter
}

func (s *Service) checkSize(data []byte) error {
	if s.maxFileSize > 0 && int64(len(data)) > s.maxFileSize {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFileTooLarge, len(data), s.maxFileSize)
	}
	return nil
}

// ListSheets returns workbook sheet names in order. Delimited files have no
// sheets and return an empty list.
func (s *Service) ListSheets(ctx context.Context, filename string, data []byte) ([]string, error) {
	if err := s.checkSize(data); err != nil {
		return nil, err
	}
	src, err := tabular.SourceFor(filename, "")
	if err != nil {
		return nil, err
	}
	if src.Format != tabular.FormatWorkbook {
		return []string{}, nil
	}
	return tabular.ListSheets(data)
}

// Extract returns the raw table of a file without mapping or validating it.
func (s *Service) Extract(ctx context.Context, filename string, data []byte, sheet string) (*tabular.Table, error) {
	if err := s.checkSize(data); err != nil {
		return nil, err
	}
	src, err := tabular.SourceFor(filename, sheet)
	if err != nil {
		return nil, err
	}
	table, err := tabular.Extract(data, src)
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Debug("file extracted",
		slog.String("file", filename),
		slog.String("format", src.Format.String()),
		slog.String("sheet", table.Sheet),
		slog.Int("rows", len(table.Rows)),
	)
	return table, nil
}

// Preview is a dry run of an import.
type Preview struct {
	Sheet   string            `json:"sheet,omitempty"`
	Headers []string          `json:"headers"`
	Rows    []CanonicalRow    `json:"rows"`
	Errors  []ValidationError `json:"errors"`
}

// Valid reports whether the previewed file would pass the gate.
func (p *Preview) Valid() bool {
	return len(p.Errors) == 0
}

// Preview extracts, normalizes and validates a file. Nothing is written.
func (s *Service) Preview(ctx context.Context, filename string, data []byte, sheet string) (*Preview, error) {
	table, err := s.Extract(ctx, filename, data, sheet)
	if err != nil {
		return nil, err
	}
	rows := s.mapper.NormalizeAll(table.Rows)
	errs := ValidateRows(rows)
	if errs == nil {
		errs = []ValidationError{}
	}
	return &Preview{Sheet: table.Sheet, Headers: table.Headers, Rows: rows, Errors: errs}, nil
}

// ImportRequest is one uploaded file to import.
type ImportRequest struct {
	Filename string
	Data     []byte
	Sheet    string
	// AllowPartial overrides the configured gate when set.
	AllowPartial *bool
}

// ImportFile runs the whole pipeline on an uploaded file.
//
// With the gate active, any validation error returns a *GateError and
// nothing is written. With partial commits allowed, invalid rows are
// reported as failed outcomes and valid rows are committed.
func (s *Service) ImportFile(ctx context.Context, req ImportRequest) (*ImportReport, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	table, err := s.Extract(ctx, req.Filename, req.Data, req.Sheet)
	if err != nil {
		return nil, err
	}
	if len(table.Rows) == 0 {
		return nil, ErrNoRows
	}

	rows := s.mapper.NormalizeAll(table.Rows)
	errs := ValidateRows(rows)

	allowPartial := !s.strictGate
	if req.AllowPartial != nil {
		allowPartial = *req.AllowPartial
	}
	if len(errs) > 0 && !allowPartial {
		logging.FromContext(ctx).Info("import rejected by validation gate",
			slog.String("file", req.Filename),
			slog.Int("errors", len(errs)),
		)
		return nil, &GateError{Errors: errs}
	}

	report, err := s.commit(ctx, rows, errs)
	if err != nil {
		return nil, err
	}
	report.Sheet = table.Sheet
	return report, nil
}

// Commit validates already-mapped rows and commits the valid ones. Row
// numbers are reassigned as position + 2. Invalid rows never block the
// others.
func (s *Service) Commit(ctx context.Context, rows []CanonicalRow) (*ImportReport, error) {
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	numbered := make([]CanonicalRow, len(rows))
	for i, row := range rows {
		row.Row = i + 2
		numbered[i] = row
	}
	return s.commit(ctx, numbered, ValidateRows(numbered))
}

// commit resolves taxonomy and writes products. It is detached from the
// caller's cancellation: once started it runs to completion or until the
// commit timeout.
func (s *Service) commit(ctx context.Context, rows []CanonicalRow, errs []ValidationError) (*ImportReport, error) {
	importID := uuid.NewString()
	ctx = logging.WithImportID(ctx, importID)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.commitTimeout)
	defer cancel()

	log := logging.FromContext(ctx)
	start := time.Now()

	rejected := groupByRow(errs)
	valid := make([]CanonicalRow, 0, len(rows))
	for _, row := range rows {
		if _, bad := rejected[row.Row]; !bad {
			valid = append(valid, row)
		}
	}

	log.Info("commit started",
		slog.Int("rows", len(rows)),
		slog.Int("valid", len(valid)),
		slog.String("ip", IPAddressFromContext(ctx)),
		slog.String("user_agent", UserAgentFromContext(ctx)),
		slog.String("api_key", APIKeyIDFromContext(ctx)),
	)

	var index *TaxonomyIndex
	if len(valid) > 0 {
		var err error
		index, err = s.resolver.Resolve(ctx, valid)
		if err != nil {
			log.Error("taxonomy resolution failed", slog.String("error", err.Error()))
			return nil, err
		}
	}

	outcomes := s.executor.Execute(ctx, rows, rejected, index)
	report, err := Aggregate(rows, outcomes)
	if err != nil {
		return nil, err
	}
	report.ImportID = importID

	log.Info("commit finished",
		slog.Int("total", report.Summary.Total),
		slog.Int("successful", report.Summary.Successful),
		slog.Int("failed", report.Summary.Failed),
		slog.Duration("duration", time.Since(start)),
	)
	return report, nil
}
