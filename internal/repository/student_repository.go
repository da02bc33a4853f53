package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/campus-hostel-api/internal/models"
)

const studentColumns = `uid, original_room, room_name, first_name, last_name, father_name, course, institute,
        student_mobile, email, parent_mobile, guardian_mobile, address, remarks, monthly_rent, laundry_charge,
        other_charge, security_deposit, start_date, end_date, active, approved, created_at, updated_at`

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.Room != "" {
		conditions = append(conditions, fmt.Sprintf("room_name = $%d", len(args)+1))
		args = append(args, filter.Room)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(first_name || ' ' || last_name) LIKE $%d OR student_mobile LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	base := fmt.Sprintf("FROM student_details WHERE %s", strings.Join(conditions, " AND "))

	allowedSorts := map[string]string{
		"first_name":    "first_name",
		"room_name":     "room_name",
		"original_room": "original_room",
		"start_date":    "start_date",
		"created_at":    "created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "original_room"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", studentColumns, base, column, order, size, offset)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByUID fetches a student by id. sql.ErrNoRows is returned unwrapped.
func (r *StudentRepository) FindByUID(ctx context.Context, uid int64) (*models.Student, error) {
	query := "SELECT " + studentColumns + " FROM student_details WHERE uid = $1"
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, uid); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &student, nil
}

// ExistsByMobile checks whether a student mobile is taken, optionally ignoring one uid.
func (r *StudentRepository) ExistsByMobile(ctx context.Context, mobile string, excludeUID int64) (bool, error) {
	query := "SELECT 1 FROM student_details WHERE student_mobile = $1"
	args := []interface{}{mobile}
	if excludeUID != 0 {
		query += " AND uid <> $2"
		args = append(args, excludeUID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check student mobile: %w", err)
	}
	return true, nil
}

// Create inserts a student and fills in the generated uid.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO student_details (original_room, room_name, first_name, last_name, father_name, course, institute,
        student_mobile, email, parent_mobile, guardian_mobile, address, remarks, monthly_rent, laundry_charge,
        other_charge, security_deposit, start_date, end_date, active, approved, created_at, updated_at)
        VALUES (:original_room, :room_name, :first_name, :last_name, :father_name, :course, :institute,
        :student_mobile, :email, :parent_mobile, :guardian_mobile, :address, :remarks, :monthly_rent, :laundry_charge,
        :other_charge, :security_deposit, :start_date, :end_date, :active, :approved, :created_at, :updated_at)
        RETURNING uid`
	rows, err := r.db.NamedQueryContext(ctx, query, student)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create student: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&student.UID); err != nil {
			return fmt.Errorf("scan student uid: %w", err)
		}
	}
	return rows.Err()
}

// Update overwrites the mutable columns of a student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE student_details SET original_room = :original_room, room_name = :room_name, first_name = :first_name,
        last_name = :last_name, father_name = :father_name, course = :course, institute = :institute,
        student_mobile = :student_mobile, email = :email, parent_mobile = :parent_mobile, guardian_mobile = :guardian_mobile,
        address = :address, remarks = :remarks, monthly_rent = :monthly_rent, laundry_charge = :laundry_charge,
        other_charge = :other_charge, security_deposit = :security_deposit, start_date = :start_date, end_date = :end_date,
        active = :active, approved = :approved, updated_at = :updated_at WHERE uid = :uid`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// Deactivate marks a student as inactive.
func (r *StudentRepository) Deactivate(ctx context.Context, uid int64) error {
	const query = `UPDATE student_details SET active = false, updated_at = $2 WHERE uid = $1`
	if _, err := r.db.ExecContext(ctx, query, uid, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate student: %w", err)
	}
	return nil
}

// ListResidentBetween returns students whose stay overlaps [windowStart, windowEnd).
func (r *StudentRepository) ListResidentBetween(ctx context.Context, windowStart, windowEnd time.Time) ([]models.Student, error) {
	query := "SELECT " + studentColumns + " FROM student_details WHERE start_date < $1 AND end_date >= $2 ORDER BY uid"
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, windowEnd, windowStart); err != nil {
		return nil, fmt.Errorf("list resident students: %w", err)
	}
	return students, nil
}

// ListLabels returns the fields used to label ledger balances.
func (r *StudentRepository) ListLabels(ctx context.Context) ([]models.LedgerStudent, error) {
	const query = `SELECT uid, first_name, original_room FROM student_details`
	var students []models.LedgerStudent
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list student labels: %w", err)
	}
	return students, nil
}
