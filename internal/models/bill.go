package models

import "time"

// Bill is the charge row generated for one student and billing month.
type Bill struct {
	UID               int64     `db:"uid" json:"uid"`
	Year              int       `db:"year" json:"year"`
	Month             int       `db:"month" json:"month"`
	RoomName          string    `db:"room_name" json:"room_name"`
	MonthlyRent       int64     `db:"monthly_rent" json:"monthly_rent"`
	ElectricityCharge int64     `db:"electricity_charge" json:"electricity_charge"`
	LaundryCharge     int64     `db:"laundry_charge" json:"laundry_charge"`
	OtherCharge       int64     `db:"other_charge" json:"other_charge"`
	SecurityDeposit   int64     `db:"security_deposit" json:"security_deposit"`
	BillDate          time.Time `db:"bill_date" json:"bill_date"`
	Approved          bool      `db:"approved" json:"approved"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Total is everything the bill charges, deposit included.
func (b Bill) Total() int64 {
	return b.MonthlyRent + b.ElectricityCharge + b.LaundryCharge + b.OtherCharge + b.SecurityDeposit
}

// BillDetail is a bill joined with the student's display name.
type BillDetail struct {
	Bill
	StudentName string `db:"student_name" json:"student_name"`
}

// BillFilter narrows bill listings to one month and optionally one room.
type BillFilter struct {
	Year  int
	Month int
	Room  string
}

// BillPatch holds operator corrections. Nil fields are left untouched.
type BillPatch struct {
	MonthlyRent       *int64 `json:"monthly_rent" validate:"omitempty,min=0"`
	ElectricityCharge *int64 `json:"electricity_charge" validate:"omitempty,min=0"`
	LaundryCharge     *int64 `json:"laundry_charge" validate:"omitempty,min=0"`
	OtherCharge       *int64 `json:"other_charge" validate:"omitempty,min=0"`
	SecurityDeposit   *int64 `json:"security_deposit" validate:"omitempty,min=0"`
	Approved          *bool  `json:"approved"`
}

// BillUpdateResult carries the row after an update attempt. When the write
// failed, Bill holds the re-fetched stored row and Reverted is set.
type BillUpdateResult struct {
	Bill     *Bill `json:"bill"`
	Reverted bool  `json:"reverted"`
}

// BillWindowResult reports one billing month of a run.
type BillWindowResult struct {
	Period   string `json:"period"`
	Selected int    `json:"selected"`
	Created  int    `json:"created"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
	Error    string `json:"error,omitempty"`
}

// BillRunSummary aggregates a bill generation run.
type BillRunSummary struct {
	ReferenceDate string             `json:"reference_date"`
	Windows       []BillWindowResult `json:"windows"`
	Created       int                `json:"created"`
	Skipped       int                `json:"skipped"`
	Failed        int                `json:"failed"`
}

// Add folds a window into the totals.
func (s *BillRunSummary) Add(w BillWindowResult) {
	s.Windows = append(s.Windows, w)
	s.Created += w.Created
	s.Skipped += w.Skipped
	s.Failed += w.Failed
}

// RecalculateSummary reports a recalculation pass over one month.
type RecalculateSummary struct {
	Period    string `json:"period"`
	Checked   int    `json:"checked"`
	Updated   int    `json:"updated"`
	Unchanged int    `json:"unchanged"`
	Failed    int    `json:"failed"`
}

// ChangesAmounts reports whether the patch touches any money field.
func (p BillPatch) ChangesAmounts() bool {
	return p.MonthlyRent != nil || p.ElectricityCharge != nil || p.LaundryCharge != nil ||
		p.OtherCharge != nil || p.SecurityDeposit != nil
}
