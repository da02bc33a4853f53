package models

import "time"

// LedgerEntryType classifies ledger rows.
type LedgerEntryType string

const (
	LedgerBill       LedgerEntryType = "bill"
	LedgerPayment    LedgerEntryType = "payment"
	LedgerAdjustment LedgerEntryType = "adjustment"
)

// LedgerEntry is an append-only balance delta. A positive Total is money
// owed by the student; Deposit is the change in deposit held.
type LedgerEntry struct {
	ID        string          `db:"id" json:"id"`
	UID       int64           `db:"uid" json:"uid"`
	Year      int             `db:"year" json:"year"`
	Month     int             `db:"month" json:"month"`
	Type      LedgerEntryType `db:"type" json:"type"`
	Total     int64           `db:"total" json:"total"`
	Deposit   int64           `db:"deposit" json:"deposit"`
	Reference string          `db:"reference" json:"reference"`
	EntryDate time.Time       `db:"entry_date" json:"entry_date"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// LedgerStudent is the slice of a student needed to label balances.
type LedgerStudent struct {
	UID          int64  `db:"uid" json:"uid"`
	FirstName    string `db:"first_name" json:"first_name"`
	OriginalRoom int    `db:"original_room" json:"original_room"`
}

// LedgerBalance is the net position of one student.
type LedgerBalance struct {
	UID     int64  `json:"uid"`
	Label   string `json:"label"`
	Total   int64  `json:"total"`
	Deposit int64  `json:"deposit"`
}

// LedgerView selects which balances are listed.
type LedgerView string

const (
	LedgerViewPending LedgerView = "pending"
	LedgerViewAll     LedgerView = "all"
)

// Valid reports whether v is a known view.
func (v LedgerView) Valid() bool {
	return v == LedgerViewPending || v == LedgerViewAll
}
