package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-hostel-api/internal/models"
)

func TestLedgerRepositoryListByUID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewLedgerRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "uid", "year", "month", "type", "total", "deposit", "reference", "entry_date", "created_at"}).
		AddRow("e2", 1, 2024, 3, "payment", -200, 1000, "2024-1-1", now, now).
		AddRow("e1", 1, 2024, 3, "bill", 500, 0, "1-2024-3", now, now)
	mock.ExpectQuery("FROM ledger WHERE uid = \\$1 ORDER BY year DESC, month DESC, type DESC, entry_date DESC").
		WithArgs(int64(1)).
		WillReturnRows(rows)

	entries, err := repo.ListByUID(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.LedgerPayment, entries[0].Type)
	assert.Equal(t, int64(-200), entries[0].Total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryListLabels(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("SELECT uid, first_name, original_room FROM student_details").
		WillReturnRows(sqlmock.NewRows([]string{"uid", "first_name", "original_room"}).AddRow(1, "Asha", 101))

	labels, err := repo.ListLabels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.LedgerStudent{{UID: 1, FirstName: "Asha", OriginalRoom: 101}}, labels)
}
