package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-hostel-api/internal/models"
)

func TestProjectBalancesSumsPerStudent(t *testing.T) {
	entries := []models.LedgerEntry{
		{UID: 1, Year: 2024, Month: 3, Type: models.LedgerBill, Total: 500},
		{UID: 2, Year: 2024, Month: 3, Type: models.LedgerBill, Total: 700},
		{UID: 1, Year: 2024, Month: 3, Type: models.LedgerPayment, Total: -200, Deposit: 1000},
		{UID: 9, Year: 2024, Month: 3, Type: models.LedgerBill, Total: -50},
	}
	students := []models.LedgerStudent{
		{UID: 1, FirstName: "Asha", OriginalRoom: 101},
		{UID: 2, FirstName: "Ravi", OriginalRoom: 102},
	}

	balances := ProjectBalances(entries, students)
	require.Len(t, balances, 3)
	assert.Equal(t, models.LedgerBalance{UID: 1, Label: "101-Asha", Total: 300, Deposit: 1000}, balances[0])
	assert.Equal(t, models.LedgerBalance{UID: 2, Label: "102-Ravi", Total: 700}, balances[1])
	assert.Equal(t, UnknownStudentLabel, balances[2].Label)

	pending := FilterBalances(balances, models.LedgerViewPending)
	require.Len(t, pending, 2)
	assert.Len(t, FilterBalances(balances, models.LedgerViewAll), 3)
}

func TestProjectBalancesEmpty(t *testing.T) {
	assert.Empty(t, ProjectBalances(nil, nil))
}

func TestSortEntries(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }
	entries := []models.LedgerEntry{
		{ID: "a", Year: 2023, Month: 12, Type: models.LedgerBill},
		{ID: "b", Year: 2024, Month: 3, Type: models.LedgerBill, EntryDate: day(1)},
		{ID: "c", Year: 2024, Month: 3, Type: models.LedgerPayment, EntryDate: day(5)},
		{ID: "d", Year: 2024, Month: 3, Type: models.LedgerPayment, EntryDate: day(9)},
		{ID: "e", Year: 2024, Month: 1, Type: models.LedgerAdjustment},
	}
	SortEntries(entries)
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"d", "c", "b", "e", "a"}, ids)
}

func TestEntriesFromBillAndPayment(t *testing.T) {
	bill := models.Bill{UID: 3, Year: 2024, Month: 3, MonthlyRent: 6000, LaundryCharge: 300, SecurityDeposit: 6000}
	be := BillEntry(bill)
	assert.Equal(t, int64(12300), be.Total)
	assert.Zero(t, be.Deposit)
	assert.Equal(t, "3-2024-3", be.Reference)

	pay := models.Collection{UID: 3, Year: 2024, Month: 3, InvoiceKey: "2024-3-1", MonthlyCharge: 6300, SecurityDeposit: 6000, TotalAmount: 12300}
	pe := PaymentEntry(pay)
	assert.Equal(t, int64(-12300), pe.Total)
	assert.Equal(t, int64(6000), pe.Deposit)

	balances := ProjectBalances([]models.LedgerEntry{be, pe}, nil)
	assert.Zero(t, balances[0].Total)
	assert.Equal(t, int64(6000), balances[0].Deposit)
}

func TestAdjustments(t *testing.T) {
	old := models.Bill{UID: 3, Year: 2024, Month: 3, MonthlyRent: 6000}
	updated := old
	updated.ElectricityCharge = 450
	adj, ok := BillAdjustment(old, updated)
	require.True(t, ok)
	assert.Equal(t, int64(450), adj.Total)
	assert.Equal(t, models.LedgerAdjustment, adj.Type)

	_, ok = BillAdjustment(old, old)
	assert.False(t, ok)

	oldPay := models.Collection{UID: 3, TotalAmount: 6000}
	newPay := models.Collection{UID: 3, TotalAmount: 6500, SecurityDeposit: 500}
	padj, ok := PaymentAdjustment(oldPay, newPay)
	require.True(t, ok)
	assert.Equal(t, int64(-500), padj.Total)
	assert.Equal(t, int64(500), padj.Deposit)
}
