package billing

import (
	"strconv"
	"time"

	"github.com/noah-isme/campus-hostel-api/internal/models"
)

// Change is one field whose value differs between two versions of a record.
type Change = models.FieldChange

// Differ collects changes field by field. Callers list the fields they care
// about explicitly; nothing is discovered by reflection.
type Differ struct {
	changes []Change
}

func (d *Differ) String(field, old, new string) {
	if old != new {
		d.changes = append(d.changes, Change{Field: field, Old: old, New: new})
	}
}

func (d *Differ) Int(field string, old, new int64) {
	if old != new {
		d.changes = append(d.changes, Change{Field: field, Old: strconv.FormatInt(old, 10), New: strconv.FormatInt(new, 10)})
	}
}

func (d *Differ) Bool(field string, old, new bool) {
	if old != new {
		d.changes = append(d.changes, Change{Field: field, Old: strconv.FormatBool(old), New: strconv.FormatBool(new)})
	}
}

// Date compares calendar dates only.
func (d *Differ) Date(field string, old, new time.Time) {
	o, n := FormatDate(old), FormatDate(new)
	if o != n {
		d.changes = append(d.changes, Change{Field: field, Old: o, New: n})
	}
}

// Changes returns the collected changes in the order they were checked.
func (d *Differ) Changes() []Change {
	return d.changes
}

// Empty reports whether no field changed.
func (d *Differ) Empty() bool {
	return len(d.changes) == 0
}
