package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-hostel-api/internal/models"
	"github.com/noah-isme/campus-hostel-api/pkg/database"
)

const collectionColumns = `invoice_key, uid, year, month, room_name, receipt_no, monthly_charge, security_deposit,
        total_amount, payment_date, payment_method, approved, created_at, updated_at`

// CollectionRepository persists payments.
type CollectionRepository struct {
	db *sqlx.DB
}

// NewCollectionRepository constructs a CollectionRepository.
func NewCollectionRepository(db *sqlx.DB) *CollectionRepository {
	return &CollectionRepository{db: db}
}

// InvoiceKeysByUID lists every invoice key ever issued to a student.
func (r *CollectionRepository) InvoiceKeysByUID(ctx context.Context, uid int64) ([]string, error) {
	const query = `SELECT invoice_key FROM collection WHERE uid = $1`
	var keys []string
	if err := r.db.SelectContext(ctx, &keys, query, uid); err != nil {
		return nil, fmt.Errorf("list invoice keys: %w", err)
	}
	return keys, nil
}

// FindByInvoiceKey loads one payment. sql.ErrNoRows is returned unwrapped.
func (r *CollectionRepository) FindByInvoiceKey(ctx context.Context, key string) (*models.Collection, error) {
	query := "SELECT " + collectionColumns + " FROM collection WHERE invoice_key = $1"
	var c models.Collection
	if err := r.db.GetContext(ctx, &c, query, key); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find collection: %w", err)
	}
	return &c, nil
}

// Create inserts a payment and its ledger entry atomically. A reused
// invoice key yields ErrDuplicate.
func (r *CollectionRepository) Create(ctx context.Context, c *models.Collection, entry models.LedgerEntry) error {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	return database.WithTx(ctx, r.db, "create collection", func(tx *sqlx.Tx) error {
		const query = `INSERT INTO collection (invoice_key, uid, year, month, room_name, receipt_no, monthly_charge,
            security_deposit, total_amount, payment_date, payment_method, approved, created_at, updated_at)
            VALUES (:invoice_key, :uid, :year, :month, :room_name, :receipt_no, :monthly_charge,
            :security_deposit, :total_amount, :payment_date, :payment_method, :approved, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, query, c); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("insert collection: %w", err)
		}
		return appendLedgerEntry(ctx, tx, &entry)
	})
}

// Update rewrites a payment and appends the adjustment when amounts moved.
func (r *CollectionRepository) Update(ctx context.Context, c *models.Collection, adjustment *models.LedgerEntry) error {
	c.UpdatedAt = time.Now().UTC()
	return database.WithTx(ctx, r.db, "update collection", func(tx *sqlx.Tx) error {
		const query = `UPDATE collection SET year = :year, month = :month, room_name = :room_name, receipt_no = :receipt_no,
            monthly_charge = :monthly_charge, security_deposit = :security_deposit, total_amount = :total_amount,
            payment_date = :payment_date, payment_method = :payment_method, approved = :approved, updated_at = :updated_at
            WHERE invoice_key = :invoice_key`
		res, err := tx.NamedExecContext(ctx, query, c)
		if err != nil {
			return fmt.Errorf("update collection: %w", err)
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return sql.ErrNoRows
		}
		if adjustment == nil {
			return nil
		}
		return appendLedgerEntry(ctx, tx, adjustment)
	})
}

// List returns the payments of a month, sorted by room.
func (r *CollectionRepository) List(ctx context.Context, filter models.CollectionFilter) ([]models.Collection, error) {
	conditions, args := collectionConditions(filter)
	query := fmt.Sprintf("SELECT %s FROM collection WHERE %s ORDER BY room_name, invoice_key", collectionColumns, strings.Join(conditions, " AND "))
	var items []models.Collection
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return items, nil
}

// Rooms returns the distinct rooms that have payments in the month.
func (r *CollectionRepository) Rooms(ctx context.Context, year, month int) ([]string, error) {
	const query = `SELECT DISTINCT room_name FROM collection WHERE year = $1 AND month = $2 ORDER BY room_name`
	var rooms []string
	if err := r.db.SelectContext(ctx, &rooms, query, year, month); err != nil {
		return nil, fmt.Errorf("list collection rooms: %w", err)
	}
	return rooms, nil
}

func collectionConditions(filter models.CollectionFilter) ([]string, []interface{}) {
	conditions := []string{"1=1"}
	var args []interface{}
	if filter.Year != 0 {
		conditions = append(conditions, fmt.Sprintf("year = $%d", len(args)+1))
		args = append(args, filter.Year)
	}
	if filter.Month != 0 {
		conditions = append(conditions, fmt.Sprintf("month = $%d", len(args)+1))
		args = append(args, filter.Month)
	}
	if filter.Room != "" {
		conditions = append(conditions, fmt.Sprintf("room_name = $%d", len(args)+1))
		args = append(args, filter.Room)
	}
	return conditions, args
}
