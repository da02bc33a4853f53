package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDifferCollectsOnlyChangedFields(t *testing.T) {
	var d Differ
	d.String("room_name", "101", "102")
	d.String("email", "a@b.c", "a@b.c")
	d.Int("monthly_rent", 6000, 6500)
	d.Bool("active", true, true)
	d.Date("end_date", FarFuture, time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC))
	d.Date("start_date", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))

	assert.False(t, d.Empty())
	assert.Equal(t, []Change{
		{Field: "room_name", Old: "101", New: "102"},
		{Field: "monthly_rent", Old: "6000", New: "6500"},
		{Field: "end_date", Old: "2099-12-31", New: "2024-06-30"},
	}, d.Changes())
}

func TestDifferEmpty(t *testing.T) {
	var d Differ
	d.Int("monthly_charge", 1, 1)
	assert.True(t, d.Empty())
	assert.Empty(t, d.Changes())
}
