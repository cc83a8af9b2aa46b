package query

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/xuri/excelize/v2"

	"github.com/schoolhub/progress-hub/config"
	"github.com/schoolhub/progress-hub/internal/domain/shared"
)

func TestExportStudents_CSV(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s := env.addStudent(t, "Aigerim Seitova", "7A")
	env.addProgress(t, s.ID, "math", 80, now)
	env.addProgress(t, s.ID, "physics", 90, now)

	handler := NewExportStudentsHandler(env.students, nil, nil)
	result, err := handler.Handle(env.ctx, ExportStudentsQuery{})

	assert.NoError(t, err)
	assert.Equal(t, 1, result.RowCount)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.True(t, strings.HasPrefix(result.FileName, "students_"))
	assert.True(t, strings.HasSuffix(result.FileName, ".csv"))

	records, err := csv.NewReader(bytes.NewReader(result.Data)).ReadAll()
	assert.NoError(t, err)
	if assert.Len(t, records, 2) {
		assert.Equal(t, exportHeader, records[0])

		row := records[1]
		assert.Equal(t, s.ID, row[0])
		assert.Equal(t, "Aigerim Seitova", row[1])
		assert.Equal(t, "7A", row[2])
		assert.Equal(t, "2", row[3])
		assert.Equal(t, "85.00", row[4])
		assert.Equal(t, "85.00", row[5])
		// Two records of 30 minutes each.
		assert.Equal(t, "60", row[6])
	}
}

func TestExportStudents_StudentWithoutProgressGetsZeroAggregates(t *testing.T) {
	env := newTestEnv(t)

	env.addStudent(t, "Dias", "8B")

	handler := NewExportStudentsHandler(env.students, nil, nil)
	result, err := handler.Handle(env.ctx, ExportStudentsQuery{Format: ExportFormatCSV})

	assert.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(result.Data)).ReadAll()
	assert.NoError(t, err)
	if assert.Len(t, records, 2) {
		row := records[1]
		assert.Equal(t, "0", row[3])
		assert.Equal(t, "0.00", row[4])
		assert.Equal(t, "0.00", row[5])
		assert.Equal(t, "0", row[6])
	}
}

func TestExportStudents_XLSX(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s := env.addStudent(t, "Madina", "9V")
	env.addProgress(t, s.ID, "math", 100, now)

	handler := NewExportStudentsHandler(env.students, nil, nil)
	result, err := handler.Handle(env.ctx, ExportStudentsQuery{Format: ExportFormatXLSX})

	assert.NoError(t, err)
	assert.Equal(t, 1, result.RowCount)
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		result.ContentType)
	assert.True(t, strings.HasSuffix(result.FileName, ".xlsx"))

	f, err := excelize.OpenReader(bytes.NewReader(result.Data))
	assert.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Students")
	assert.NoError(t, err)
	if assert.Len(t, rows, 2) {
		assert.Equal(t, exportHeader, rows[0])
		assert.Equal(t, "Madina", rows[1][1])
		assert.Equal(t, "100.00", rows[1][4])
	}
}

func TestExportStudents_UnsupportedFormat(t *testing.T) {
	env := newTestEnv(t)

	handler := NewExportStudentsHandler(env.students, nil, nil)
	_, err := handler.Handle(env.ctx, ExportStudentsQuery{Format: "pdf"})

	assert.Error(t, err)
}

func TestExportStudents_DisabledFormatRejected(t *testing.T) {
	env := newTestEnv(t)
	env.addStudent(t, "Dias", "8B")

	flags := config.LoadFeatureFlags()
	assert.NoError(t, flags.DisableFeature(config.FeatureExportXLSX))

	gate := func(f ExportFormat) bool {
		switch f {
		case ExportFormatXLSX:
			return flags.IsEnabled(config.FeatureExportXLSX, nil)
		default:
			return flags.IsEnabled(config.FeatureExportCSV, nil)
		}
	}
	handler := NewExportStudentsHandler(env.students, nil, gate)

	_, err := handler.Handle(env.ctx, ExportStudentsQuery{Format: ExportFormatXLSX})
	assert.ErrorIs(t, err, shared.ErrValidation)

	result, err := handler.Handle(env.ctx, ExportStudentsQuery{Format: ExportFormatCSV})
	assert.NoError(t, err)
	assert.Equal(t, 1, result.RowCount)
}
