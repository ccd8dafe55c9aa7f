package xlsx

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/eatwise/labelscan/internal/core/domain"
)

func TestExportWritesHeaderAndRows(t *testing.T) {
	reports := []domain.Report{
		{
			ID:          "r1",
			Title:       "Choco Bar",
			Explanation: "Allergy risk: peanuts",
			CreatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			Record: domain.AnalysisRecord{
				Grade:            "D",
				IsAllergic:       true,
				AllergensMatched: []string{"peanuts"},
				Ingredients:      []string{"sugar", "peanut butter"},
			},
		},
		{ID: "r2", Title: "Water", CreatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
	}

	var buf bytes.Buffer
	exporter := New()
	require.NoError(t, exporter.Export(&buf, reports))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Date", rows[0][0])
	assert.Equal(t, "Image URL", rows[0][len(header)-1])
	assert.Equal(t, []string{"2026-03-01T12:00:00Z", "Choco Bar", "D", "yes", "peanuts", "", "", "sugar, peanut butter", "Allergy risk: peanuts"}, rows[1])
	assert.Equal(t, "no", rows[2][3])
}

func TestExportEmptyHistoryHasHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New().Export(&buf, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, ".xlsx", New().FileExtension())
}
