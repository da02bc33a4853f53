package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-hostel-api/internal/billing"
	"github.com/noah-isme/campus-hostel-api/internal/models"
	appErrors "github.com/noah-isme/campus-hostel-api/pkg/errors"
	"github.com/noah-isme/campus-hostel-api/pkg/export"
)

// Ledger export formats.
const (
	LedgerFormatCSV = "csv"
	LedgerFormatPDF = "pdf"
)

type ledgerRepository interface {
	ListAll(ctx context.Context) ([]models.LedgerEntry, error)
	ListByUID(ctx context.Context, uid int64) ([]models.LedgerEntry, error)
}

type ledgerStudentRepository interface {
	ListLabels(ctx context.Context) ([]models.LedgerStudent, error)
}

type ledgerCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
}

type snapshotStore interface {
	Put(name string, data []byte) error
	Get(name string) ([]byte, error)
	Prune(retention time.Duration) ([]string, error)
}

type linkSigner interface {
	Sign(name string) (string, time.Time, error)
	Verify(token string) (string, error)
}

// LedgerSnapshot is an archived export reachable through a signed token.
type LedgerSnapshot struct {
	Name      string    `json:"name"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExportFile is a rendered download.
type ExportFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// LedgerService folds ledger entries into per-student balances.
type LedgerService struct {
	entries      ledgerRepository
	students     ledgerStudentRepository
	cache        ledgerCache
	cacheTTL     time.Duration
	csv          *export.CSVExporter
	pdf          *export.PDFExporter
	logger       *zap.Logger
	storeTimeout time.Duration
	now          func() time.Time

	archive   snapshotStore
	signer    linkSigner
	retention time.Duration
}

// NewLedgerService constructs the ledger service. cache may be nil.
func NewLedgerService(entries ledgerRepository, students ledgerStudentRepository, cache ledgerCache, cacheTTL time.Duration, logger *zap.Logger, storeTimeout time.Duration) *LedgerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{
		entries:      entries,
		students:     students,
		cache:        cache,
		cacheTTL:     cacheTTL,
		csv:          export.NewCSVExporter(),
		pdf:          export.NewPDFExporter(),
		logger:       logger,
		storeTimeout: storeTimeout,
		now:          time.Now,
	}
}

// WithArchive enables snapshots. Files older than retention are removed by
// PruneSnapshots.
func (s *LedgerService) WithArchive(archive snapshotStore, signer linkSigner, retention time.Duration) *LedgerService {
	s.archive = archive
	s.signer = signer
	s.retention = retention
	return s
}

func ledgerCacheKey(view models.LedgerView) string {
	return "ledger:balances:" + string(view)
}

// Balances returns the net position of every student. The pending view
// keeps only students who owe money.
func (s *LedgerService) Balances(ctx context.Context, view models.LedgerView) ([]models.LedgerBalance, error) {
	balances, _, err := s.BalancesWithSource(ctx, view)
	return balances, err
}

// BalancesWithSource is Balances that also reports whether the result came
// from the cache.
func (s *LedgerService) BalancesWithSource(ctx context.Context, view models.LedgerView) ([]models.LedgerBalance, bool, error) {
	if view == "" {
		view = models.LedgerViewPending
	}
	if !view.Valid() {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "view must be pending or all")
	}

	key := ledgerCacheKey(view)
	var cached []models.LedgerBalance
	if s.cache != nil && s.cache.Get(ctx, key, &cached) {
		return cached, true, nil
	}

	callCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()
	entries, err := s.entries.ListAll(callCtx)
	if err != nil {
		return nil, false, appErrors.Store(err, "failed to load ledger")
	}
	students, err := s.students.ListLabels(callCtx)
	if err != nil {
		return nil, false, appErrors.Store(err, "failed to load students")
	}

	balances := billing.FilterBalances(billing.ProjectBalances(entries, students), view)
	if balances == nil {
		balances = []models.LedgerBalance{}
	}
	if s.cache != nil {
		s.cache.Set(ctx, key, balances, s.cacheTTL)
	}
	return balances, false, nil
}

// Entries returns one student's ledger, newest first.
func (s *LedgerService) Entries(ctx context.Context, uid int64) ([]models.LedgerEntry, error) {
	callCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()
	entries, err := s.entries.ListByUID(callCtx, uid)
	if err != nil {
		return nil, appErrors.Store(err, "failed to load ledger entries")
	}
	billing.SortEntries(entries)
	if entries == nil {
		entries = []models.LedgerEntry{}
	}
	return entries, nil
}

// Export renders the balance table as CSV or PDF.
func (s *LedgerService) Export(ctx context.Context, view models.LedgerView, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = LedgerFormatCSV
	}
	if format != LedgerFormatCSV && format != LedgerFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	balances, err := s.Balances(ctx, view)
	if err != nil {
		return nil, err
	}
	if view == "" {
		view = models.LedgerViewPending
	}

	data := balanceDataset(balances)
	name := fmt.Sprintf("ledger-%s-%s.%s", view, s.now().Format("20060102"), format)
	switch format {
	case LedgerFormatPDF:
		out, err := s.pdf.Render(data, "Ledger balances ("+string(view)+")")
		if err != nil {
			return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to render ledger pdf")
		}
		return &ExportFile{Name: name, ContentType: "application/pdf", Data: out}, nil
	default:
		out, err := s.csv.Render(data)
		if err != nil {
			return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to render ledger csv")
		}
		return &ExportFile{Name: name, ContentType: "text/csv", Data: out}, nil
	}
}

const (
	colStudent = "Room-Student"
	colTotal   = "Rent Balance"
	colDeposit = "Deposit"
)

func balanceDataset(balances []models.LedgerBalance) export.Dataset {
	rows := make([]map[string]string, 0, len(balances))
	var total, deposit int64
	for _, b := range balances {
		rows = append(rows, map[string]string{
			colStudent: b.Label,
			colTotal:   strconv.FormatInt(b.Total, 10),
			colDeposit: strconv.FormatInt(b.Deposit, 10),
		})
		total += b.Total
		deposit += b.Deposit
	}
	return export.Dataset{
		Headers: []string{colStudent, colTotal, colDeposit},
		Rows:    rows,
		Numeric: map[string]bool{colTotal: true, colDeposit: true},
		Footer: map[string]string{
			colStudent: "Total",
			colTotal:   strconv.FormatInt(total, 10),
			colDeposit: strconv.FormatInt(deposit, 10),
		},
	}
}

// Snapshot renders an export, stores it and returns a signed download token.
func (s *LedgerService) Snapshot(ctx context.Context, view models.LedgerView, format string) (*LedgerSnapshot, error) {
	if s.archive == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "ledger archive is not configured")
	}
	file, err := s.Export(ctx, view, format)
	if err != nil {
		return nil, err
	}
	name := path.Join("ledger", s.now().UTC().Format("150405")+"-"+file.Name)
	if err := s.archive.Put(name, file.Data); err != nil {
		s.logger.Error("failed to archive ledger snapshot", zap.String("name", name), zap.Error(err))
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to archive ledger export")
	}
	token, expiresAt, err := s.signer.Sign(name)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to sign download link")
	}
	s.logger.Info("ledger snapshot archived", zap.String("name", name), zap.Time("expires_at", expiresAt))
	return &LedgerSnapshot{Name: path.Base(name), Token: token, ExpiresAt: expiresAt}, nil
}

// OpenSnapshot resolves a download token to the archived file.
func (s *LedgerService) OpenSnapshot(token string) (*ExportFile, error) {
	if s.archive == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "snapshot not found")
	}
	name, err := s.signer.Verify(token)
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrForbidden, err, "download link is invalid or expired")
	}
	data, err := s.archive.Get(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "snapshot not found")
		}
		return nil, appErrors.WrapAs(appErrors.ErrInternal, err, "failed to read snapshot")
	}
	contentType := "text/csv"
	if path.Ext(name) == "."+LedgerFormatPDF {
		contentType = "application/pdf"
	}
	return &ExportFile{Name: path.Base(name), ContentType: contentType, Data: data}, nil
}

// PruneSnapshots deletes archived files past the retention window.
func (s *LedgerService) PruneSnapshots() (int, error) {
	if s.archive == nil {
		return 0, nil
	}
	removed, err := s.archive.Prune(s.retention)
	if err != nil {
		s.logger.Warn("ledger snapshot prune failed", zap.Error(err))
		return 0, err
	}
	if len(removed) > 0 {
		s.logger.Info("ledger snapshots pruned", zap.Int("count", len(removed)))
	}
	return len(removed), nil
}
