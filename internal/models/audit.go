package models

import "time"

// Audit actions recorded for operator activity.
const (
	AuditActionLogin           = "LOGIN"
	AuditActionStudentCreate   = "STUDENT_CREATE"
	AuditActionStudentUpdate   = "STUDENT_UPDATE"
	AuditActionStudentDelete   = "STUDENT_DEACTIVATE"
	AuditActionBillRun         = "BILL_RUN"
	AuditActionBillRecalculate = "BILL_RECALCULATE"
	AuditActionBillUpdate      = "BILL_UPDATE"
	AuditActionPaymentRecord   = "PAYMENT_RECORD"
	AuditActionPaymentUpdate   = "PAYMENT_UPDATE"
	AuditActionLedgerSnapshot  = "LEDGER_SNAPSHOT"
	AuditActionUserCreate      = "USER_CREATE"
	AuditActionUserUpdate      = "USER_UPDATE"
	AuditActionUserDeactivate  = "USER_DEACTIVATE"
)

// AuditLog is one operator action.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
