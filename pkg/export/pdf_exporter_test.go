package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTable(t *testing.T) {
	out, err := NewPDFExporter().Render(Dataset{
		Headers: []string{"student", "balance"},
		Rows:    []map[string]string{{"student": "Ana", "balance": "250.00"}},
	}, "Overdue")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))

	_, err = NewPDFExporter().Render(Dataset{}, "empty")
	assert.Error(t, err)
}

func TestRenderCertificate(t *testing.T) {
	end := time.Date(2026, time.September, 30, 0, 0, 0, 0, time.UTC)
	out, err := NewPDFExporter().RenderCertificate(Certificate{
		Institution:  "SMA Academy",
		StudentName:  "Ana Putri",
		BatchCode:    "BATCH-26A",
		ClassEndDate: &end,
		ClearedAt:    time.Date(2026, time.October, 16, 9, 0, 0, 0, time.UTC),
		Reference:    "s1/c1",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRenderCertificateRequiresFields(t *testing.T) {
	_, err := NewPDFExporter().RenderCertificate(Certificate{ClearedAt: time.Now()})
	assert.Error(t, err)

	_, err = NewPDFExporter().RenderCertificate(Certificate{StudentName: "Ana"})
	assert.Error(t, err)
}
