package export

// Dataset is a rendered table: ordered headers, rows keyed by header.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
	// Numeric lists headers whose cells are right-aligned in the PDF.
	Numeric map[string]bool
	// Footer is an optional totals row keyed by header.
	Footer map[string]string
}

func (d Dataset) records() [][]string {
	out := make([][]string, 0, len(d.Rows)+1)
	for _, row := range d.Rows {
		out = append(out, d.project(row))
	}
	if len(d.Footer) > 0 {
		out = append(out, d.project(d.Footer))
	}
	return out
}

func (d Dataset) project(row map[string]string) []string {
	record := make([]string, len(d.Headers))
	for i, header := range d.Headers {
		record[i] = row[header]
	}
	return record
}
