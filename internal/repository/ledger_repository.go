package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-hostel-api/internal/models"
)

const ledgerColumns = `id, uid, year, month, type, total, deposit, reference, entry_date, created_at`

// LedgerRepository reads the append-only ledger. Writes happen inside the
// bill and collection transactions through appendLedgerEntry.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository constructs a LedgerRepository.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// ListAll returns every entry ordered newest period first.
func (r *LedgerRepository) ListAll(ctx context.Context) ([]models.LedgerEntry, error) {
	query := "SELECT " + ledgerColumns + " FROM ledger ORDER BY year DESC, month DESC, type DESC, entry_date DESC"
	var entries []models.LedgerEntry
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	return entries, nil
}

// ListByUID returns one student's entries.
func (r *LedgerRepository) ListByUID(ctx context.Context, uid int64) ([]models.LedgerEntry, error) {
	query := "SELECT " + ledgerColumns + " FROM ledger WHERE uid = $1 ORDER BY year DESC, month DESC, type DESC, entry_date DESC"
	var entries []models.LedgerEntry
	if err := r.db.SelectContext(ctx, &entries, query, uid); err != nil {
		return nil, fmt.Errorf("list ledger for %d: %w", uid, err)
	}
	return entries, nil
}

func appendLedgerEntry(ctx context.Context, tx *sqlx.Tx, entry *models.LedgerEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.EntryDate.IsZero() {
		entry.EntryDate = now
	}
	entry.CreatedAt = now
	const query = `INSERT INTO ledger (id, uid, year, month, type, total, deposit, reference, entry_date, created_at)
        VALUES (:id, :uid, :year, :month, :type, :total, :deposit, :reference, :entry_date, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}
