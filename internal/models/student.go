package models

import "time"

// Student is a hostel resident. UID is the store-assigned serial id.
type Student struct {
	UID             int64     `db:"uid" json:"uid"`
	OriginalRoom    int       `db:"original_room" json:"original_room"`
	RoomName        string    `db:"room_name" json:"room_name"`
	FirstName       string    `db:"first_name" json:"first_name"`
	LastName        string    `db:"last_name" json:"last_name"`
	FatherName      string    `db:"father_name" json:"father_name"`
	Course          string    `db:"course" json:"course"`
	Institute       string    `db:"institute" json:"institute"`
	StudentMobile   string    `db:"student_mobile" json:"student_mobile"`
	Email           string    `db:"email" json:"email"`
	ParentMobile    string    `db:"parent_mobile" json:"parent_mobile"`
	GuardianMobile  string    `db:"guardian_mobile" json:"guardian_mobile"`
	Address         string    `db:"address" json:"address"`
	Remarks         string    `db:"remarks" json:"remarks"`
	MonthlyRent     int64     `db:"monthly_rent" json:"monthly_rent"`
	LaundryCharge   int64     `db:"laundry_charge" json:"laundry_charge"`
	OtherCharge     int64     `db:"other_charge" json:"other_charge"`
	SecurityDeposit int64     `db:"security_deposit" json:"security_deposit"`
	StartDate       time.Time `db:"start_date" json:"start_date"`
	EndDate         time.Time `db:"end_date" json:"end_date"`
	Active          bool      `db:"active" json:"active"`
	Approved        bool      `db:"approved" json:"approved"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name.
func (s Student) FullName() string {
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// MonthlyCharge is the recurring amount collected each month.
func (s Student) MonthlyCharge() int64 {
	return s.MonthlyRent + s.LaundryCharge + s.OtherCharge
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Room      string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
