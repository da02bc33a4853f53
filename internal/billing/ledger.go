package billing

import (
	"fmt"
	"sort"

	"github.com/noah-isme/campus-hostel-api/internal/models"
)

// UnknownStudentLabel labels balances whose student row is missing.
const UnknownStudentLabel = "Unknown"

// SortEntries orders entries newest period first: year, month and type
// descending, then entry date descending.
func SortEntries(entries []models.LedgerEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Year != b.Year {
			return a.Year > b.Year
		}
		if a.Month != b.Month {
			return a.Month > b.Month
		}
		if a.Type != b.Type {
			return a.Type > b.Type
		}
		return a.EntryDate.After(b.EntryDate)
	})
}

// ProjectBalances sums total and deposit per student. The result keeps the
// order in which students first appear in entries.
func ProjectBalances(entries []models.LedgerEntry, students []models.LedgerStudent) []models.LedgerBalance {
	byUID := make(map[int64]models.LedgerStudent, len(students))
	for _, s := range students {
		byUID[s.UID] = s
	}

	index := make(map[int64]int)
	balances := make([]models.LedgerBalance, 0)
	for _, e := range entries {
		i, ok := index[e.UID]
		if !ok {
			i = len(balances)
			index[e.UID] = i
			balances = append(balances, models.LedgerBalance{UID: e.UID, Label: StudentLabel(byUID, e.UID)})
		}
		balances[i].Total += e.Total
		balances[i].Deposit += e.Deposit
	}
	return balances
}

// FilterBalances applies a view: pending keeps only students who owe money.
func FilterBalances(balances []models.LedgerBalance, view models.LedgerView) []models.LedgerBalance {
	if view != models.LedgerViewPending {
		return balances
	}
	out := make([]models.LedgerBalance, 0, len(balances))
	for _, b := range balances {
		if b.Total > 0 {
			out = append(out, b)
		}
	}
	return out
}

// StudentLabel renders "{original_room}-{first_name}".
func StudentLabel(students map[int64]models.LedgerStudent, uid int64) string {
	s, ok := students[uid]
	if !ok {
		return UnknownStudentLabel
	}
	return fmt.Sprintf("%d-%s", s.OriginalRoom, s.FirstName)
}

// BillEntry is the ledger delta of a newly generated bill.
func BillEntry(b models.Bill) models.LedgerEntry {
	return models.LedgerEntry{
		UID:       b.UID,
		Year:      b.Year,
		Month:     b.Month,
		Type:      models.LedgerBill,
		Total:     b.Total(),
		Reference: FormatBillKey(b.UID, b.Year, b.Month),
		EntryDate: b.BillDate,
	}
}

// PaymentEntry is the ledger delta of a newly recorded payment: the amount
// paid reduces what is owed and any deposit paid is held.
func PaymentEntry(c models.Collection) models.LedgerEntry {
	return models.LedgerEntry{
		UID:       c.UID,
		Year:      c.Year,
		Month:     c.Month,
		Type:      models.LedgerPayment,
		Total:     -c.TotalAmount,
		Deposit:   c.SecurityDeposit,
		Reference: c.InvoiceKey,
		EntryDate: c.PaymentDate,
	}
}

// BillAdjustment is the delta between two versions of a bill. ok is false
// when the amounts did not change.
func BillAdjustment(old, updated models.Bill) (models.LedgerEntry, bool) {
	delta := updated.Total() - old.Total()
	if delta == 0 {
		return models.LedgerEntry{}, false
	}
	return models.LedgerEntry{
		UID:       updated.UID,
		Year:      updated.Year,
		Month:     updated.Month,
		Type:      models.LedgerAdjustment,
		Total:     delta,
		Reference: FormatBillKey(updated.UID, updated.Year, updated.Month),
		EntryDate: updated.UpdatedAt,
	}, true
}

// PaymentAdjustment is the delta between two versions of a payment.
func PaymentAdjustment(old, updated models.Collection) (models.LedgerEntry, bool) {
	total := -(updated.TotalAmount - old.TotalAmount)
	deposit := updated.SecurityDeposit - old.SecurityDeposit
	if total == 0 && deposit == 0 {
		return models.LedgerEntry{}, false
	}
	return models.LedgerEntry{
		UID:       updated.UID,
		Year:      updated.Year,
		Month:     updated.Month,
		Type:      models.LedgerAdjustment,
		Total:     total,
		Deposit:   deposit,
		Reference: updated.InvoiceKey,
		EntryDate: updated.UpdatedAt,
	}, true
}
