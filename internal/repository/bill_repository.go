package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-hostel-api/internal/models"
	"github.com/noah-isme/campus-hostel-api/pkg/database"
)

const billColumns = `b.uid, b.year, b.month, b.room_name, b.monthly_rent, b.electricity_charge, b.laundry_charge,
        b.other_charge, b.security_deposit, b.bill_date, b.approved, b.created_at, b.updated_at`

// errBillExists aborts the insert transaction when the month is already billed.
var errBillExists = errors.New("bill exists")

// BillRepository persists generated bills.
type BillRepository struct {
	db *sqlx.DB
}

// NewBillRepository constructs a BillRepository.
func NewBillRepository(db *sqlx.DB) *BillRepository {
	return &BillRepository{db: db}
}

// Insert writes a bill and its ledger entry in one transaction. It returns
// false without error when a bill for the same student and month exists.
func (r *BillRepository) Insert(ctx context.Context, bill *models.Bill, entry models.LedgerEntry) (bool, error) {
	now := time.Now().UTC()
	bill.CreatedAt = now
	bill.UpdatedAt = now

	const query = `INSERT INTO billing (uid, year, month, room_name, monthly_rent, electricity_charge, laundry_charge,
        other_charge, security_deposit, bill_date, approved, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
        ON CONFLICT (uid, year, month) DO NOTHING RETURNING uid`
	err := database.WithTx(ctx, r.db, "insert bill", func(tx *sqlx.Tx) error {
		var inserted int64
		err := tx.QueryRowxContext(ctx, query, bill.UID, bill.Year, bill.Month, bill.RoomName, bill.MonthlyRent,
			bill.ElectricityCharge, bill.LaundryCharge, bill.OtherCharge, bill.SecurityDeposit, bill.BillDate,
			bill.Approved, bill.CreatedAt, bill.UpdatedAt).Scan(&inserted)
		if err != nil {
			if err == sql.ErrNoRows || isUniqueViolation(err) {
				return errBillExists
			}
			return fmt.Errorf("insert bill: %w", err)
		}
		return appendLedgerEntry(ctx, tx, &entry)
	})
	switch {
	case err == errBillExists:
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// List returns the bills of one month joined with the student name.
func (r *BillRepository) List(ctx context.Context, filter models.BillFilter) ([]models.BillDetail, error) {
	conditions := []string{"b.year = $1", "b.month = $2"}
	args := []interface{}{filter.Year, filter.Month}
	if filter.Room != "" {
		conditions = append(conditions, fmt.Sprintf("b.room_name = $%d", len(args)+1))
		args = append(args, filter.Room)
	}
	query := fmt.Sprintf(`SELECT %s, COALESCE(s.first_name || ' ' || s.last_name, '') AS student_name
        FROM billing b LEFT JOIN student_details s ON s.uid = b.uid
        WHERE %s ORDER BY b.room_name, b.uid`, billColumns, strings.Join(conditions, " AND "))
	var bills []models.BillDetail
	if err := r.db.SelectContext(ctx, &bills, query, args...); err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	return bills, nil
}

// Find loads one bill. sql.ErrNoRows is returned unwrapped.
func (r *BillRepository) Find(ctx context.Context, uid int64, year, month int) (*models.Bill, error) {
	query := "SELECT " + billColumns + " FROM billing b WHERE b.uid = $1 AND b.year = $2 AND b.month = $3"
	var bill models.Bill
	if err := r.db.GetContext(ctx, &bill, query, uid, year, month); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find bill: %w", err)
	}
	return &bill, nil
}

// Update writes corrected amounts and, when given, the matching ledger adjustment.
func (r *BillRepository) Update(ctx context.Context, bill *models.Bill, adjustment *models.LedgerEntry) error {
	bill.UpdatedAt = time.Now().UTC()

	const query = `UPDATE billing SET monthly_rent = $4, electricity_charge = $5, laundry_charge = $6, other_charge = $7,
        security_deposit = $8, approved = $9, updated_at = $10 WHERE uid = $1 AND year = $2 AND month = $3`
	return database.WithTx(ctx, r.db, "update bill", func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, query, bill.UID, bill.Year, bill.Month, bill.MonthlyRent, bill.ElectricityCharge,
			bill.LaundryCharge, bill.OtherCharge, bill.SecurityDeposit, bill.Approved, bill.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update bill: %w", err)
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
