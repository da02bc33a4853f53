package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ledgerDataset() Dataset {
	return Dataset{
		Headers: []string{"Room-Student", "Rent Balance", "Deposit"},
		Rows: []map[string]string{
			{"Room-Student": "101-Asha", "Rent Balance": "300", "Deposit": "1000"},
			{"Room-Student": "102-Ravi", "Rent Balance": "0"},
		},
		Numeric: map[string]bool{"Rent Balance": true, "Deposit": true},
		Footer:  map[string]string{"Room-Student": "Total", "Rent Balance": "300", "Deposit": "1000"},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(ledgerDataset())
	require.NoError(t, err)
	assert.Equal(t, "Room-Student,Rent Balance,Deposit\n101-Asha,300,1000\n102-Ravi,0,\nTotal,300,1000\n", string(out))
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.ErrorIs(t, err, errNoHeaders)
}

func TestCSVExporterWriteCRLF(t *testing.T) {
	var buf bytes.Buffer
	exp := &CSVExporter{CRLF: true}
	require.NoError(t, exp.Write(&buf, Dataset{
		Headers: []string{"Room-Student", "Rent Balance"},
		Rows:    []map[string]string{{"Room-Student": "101-Asha, Jr", "Rent Balance": "-50"}},
	}))
	assert.Equal(t, "Room-Student,Rent Balance\r\n\"101-Asha, Jr\",-50\r\n", buf.String())
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(ledgerDataset(), "Ledger")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
