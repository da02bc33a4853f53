package models

import "time"

// PaymentMethod is how a collection was paid.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "Cash"
	PaymentPhPayC PaymentMethod = "PhPay-C"
	PaymentPhPayM PaymentMethod = "PhPay-M"
	PaymentCheque PaymentMethod = "Cheque"
)

// PaymentMethods lists the accepted methods in display order.
var PaymentMethods = []PaymentMethod{PaymentCash, PaymentPhPayC, PaymentPhPayM, PaymentCheque}

// Valid reports whether m is a known method.
func (m PaymentMethod) Valid() bool {
	for _, known := range PaymentMethods {
		if m == known {
			return true
		}
	}
	return false
}

// Collection is one recorded payment.
type Collection struct {
	InvoiceKey      string        `db:"invoice_key" json:"invoice_key"`
	UID             int64         `db:"uid" json:"uid"`
	Year            int           `db:"year" json:"year"`
	Month           int           `db:"month" json:"month"`
	RoomName        string        `db:"room_name" json:"room_name"`
	ReceiptNo       string        `db:"receipt_no" json:"receipt_no"`
	MonthlyCharge   int64         `db:"monthly_charge" json:"monthly_charge"`
	SecurityDeposit int64         `db:"security_deposit" json:"security_deposit"`
	TotalAmount     int64         `db:"total_amount" json:"total_amount"`
	PaymentDate     time.Time     `db:"payment_date" json:"payment_date"`
	PaymentMethod   PaymentMethod `db:"payment_method" json:"payment_method"`
	Approved        bool          `db:"approved" json:"approved"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// CollectionFilter narrows collection listings.
type CollectionFilter struct {
	Year  int
	Month int
	Room  string
}

// PaymentTotals sums total_amount per payment method.
type PaymentTotals map[PaymentMethod]int64

// CollectionList is a month of collections with its aggregates.
type CollectionList struct {
	Items      []Collection  `json:"items"`
	Totals     PaymentTotals `json:"totals"`
	GrandTotal int64         `json:"grand_total"`
	Rooms      []string      `json:"rooms"`
}

// PaymentSuggestion pre-fills a new payment for a student.
type PaymentSuggestion struct {
	UID             int64  `json:"uid"`
	InvoiceKey      string `json:"invoice_key"`
	ReceiptNo       string `json:"receipt_no"`
	RoomName        string `json:"room_name"`
	Year            int    `json:"year"`
	Month           int    `json:"month"`
	MonthlyCharge   int64  `json:"monthly_charge"`
	SecurityDeposit int64  `json:"security_deposit"`
}

// FieldChange is one old to new value pair reported after an edit.
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// PaymentResult is the outcome of recording a payment. Saved is true once
// the row is durable; a mail failure afterwards only clears EmailSent.
type PaymentResult struct {
	Collection *Collection   `json:"collection"`
	Created    bool          `json:"created"`
	Saved      bool          `json:"saved"`
	EmailSent  bool          `json:"email_sent"`
	EmailError string        `json:"email_error,omitempty"`
	Changes    []FieldChange `json:"changes,omitempty"`
}
