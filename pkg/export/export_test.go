package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"Protocolo", "Status", "Motivo"},
		Rows: []map[string]string{
			{"Protocolo": "CR-20250610-A1B2C3", "Status": "DEFERIDO", "Motivo": "Força maior"},
			{"Protocolo": "CR-20250611-D4E5F6", "Status": "EM_ANALISE", "Motivo": "Consulta, urgente"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	out, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Protocolo", "Status", "Motivo"}, records[0])
	assert.Equal(t, "CR-20250610-A1B2C3", records[1][0])
	// embedded comma survives quoting
	assert.Equal(t, "Consulta, urgente", records[2][2])
}

func TestCSVExporterMissingColumnValue(t *testing.T) {
	data := Dataset{
		Headers: []string{"A", "B"},
		Rows:    []map[string]string{{"A": "1"}},
	}
	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"1", ""}, records[1])
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	out, err := NewPDFExporter().Render(sampleDataset(), "Relatório de cancelamentos")
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestPDFExporterRequiresHeaders(t *testing.T) {
	_, err := NewPDFExporter().Render(Dataset{}, "empty")
	require.Error(t, err)
}
