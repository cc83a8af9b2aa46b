// Package query contains read operations following CQRS pattern.
package query

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/schoolhub/progress-hub/internal/domain/shared"
	"github.com/schoolhub/progress-hub/internal/domain/student"
	"github.com/schoolhub/progress-hub/pkg/logger"
	"github.com/schoolhub/progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXPORT STUDENTS QUERY
// Выгрузка студентов с агрегатами прогресса в CSV или XLSX.
// Экспорт читает актуальные данные напрямую, минуя кеш отчётов.
// ══════════════════════════════════════════════════════════════════════════════

// ExportFormat определяет формат выгрузки.
type ExportFormat string

const (
	// ExportFormatCSV - выгрузка в CSV.
	ExportFormatCSV ExportFormat = "csv"

	// ExportFormatXLSX - выгрузка в XLSX.
	ExportFormatXLSX ExportFormat = "xlsx"
)

// ExportStudentsQuery содержит параметры выгрузки студентов.
type ExportStudentsQuery struct {
	// Format - формат файла (по умолчанию CSV).
	Format ExportFormat
}

// Validate проверяет корректность параметров запроса.
func (q *ExportStudentsQuery) Validate() error {
	switch q.Format {
	case "":
		q.Format = ExportFormatCSV
	case ExportFormatCSV, ExportFormatXLSX:
	default:
		return fmt.Errorf("unsupported export format: %s", q.Format)
	}
	return nil
}

// ExportStudentsResult содержит готовый файл выгрузки.
type ExportStudentsResult struct {
	// FileName - предлагаемое имя файла.
	FileName string `json:"file_name"`

	// ContentType - MIME-тип содержимого.
	ContentType string `json:"content_type"`

	// Data - байты файла.
	Data []byte `json:"-"`

	// RowCount - количество строк данных (без заголовка).
	RowCount int `json:"row_count"`
}

// exportHeader - колонки выгрузки в порядке следования.
var exportHeader = []string{
	"id", "full_name", "grade",
	"subjects", "avg_completion", "avg_performance", "total_time_minutes",
}

// ExportStudentsHandler обрабатывает выгрузку студентов.
type ExportStudentsHandler struct {
	students *student.Repository
	log      *logger.Logger

	// formatEnabled позволяет отключать форматы выгрузки (feature-флаги).
	// nil - разрешены все форматы.
	formatEnabled func(ExportFormat) bool
}

// NewExportStudentsHandler создаёт новый обработчик выгрузки.
// formatEnabled может быть nil - тогда разрешены все форматы.
func NewExportStudentsHandler(students *student.Repository, log *logger.Logger, formatEnabled func(ExportFormat) bool) *ExportStudentsHandler {
	if log == nil {
		log = logger.Default()
	}
	return &ExportStudentsHandler{students: students, log: log, formatEnabled: formatEnabled}
}

// Handle выполняет выгрузку студентов.
func (h *ExportStudentsHandler) Handle(ctx context.Context, query ExportStudentsQuery) (*ExportStudentsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, shared.WrapError("query", "ExportStudents", shared.ErrValidation, err.Error(), err)
	}
	if h.formatEnabled != nil && !h.formatEnabled(query.Format) {
		return nil, shared.NewDomainError("query", "ExportStudents", shared.ErrValidation,
			fmt.Sprintf("export format %s is disabled", query.Format))
	}

	students, err := h.students.GetAllWithProgress(ctx)
	if err != nil {
		return nil, shared.WrapError("query", "ExportStudents", shared.ErrPersistence,
			"failed to load students with progress", err)
	}

	rows := make([][]string, 0, len(students))
	for _, st := range students {
		rows = append(rows, exportRow(st))
	}

	var data []byte
	var contentType string
	switch query.Format {
	case ExportFormatXLSX:
		data, err = renderXLSX(rows)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		data, err = renderCSV(rows)
		contentType = "text/csv"
	}
	if err != nil {
		return nil, shared.WrapError("query", "ExportStudents", shared.ErrComputation,
			"failed to render export", err)
	}

	fileName := fmt.Sprintf("students_%s.%s",
		timeutil.Now().Format("20060102_150405"), query.Format)

	h.log.Info("students exported",
		logger.String("format", string(query.Format)),
		logger.Int("rows", len(rows)),
	)

	return &ExportStudentsResult{
		FileName:    fileName,
		ContentType: contentType,
		Data:        data,
		RowCount:    len(rows),
	}, nil
}

// exportRow собирает строку выгрузки: идентификация студента и агрегаты
// по его записям прогресса.
func exportRow(st *student.Student) []string {
	var sumCompletion, sumScore float64
	var totalTime time.Duration
	count := len(st.ProgressRecords)
	for _, p := range st.ProgressRecords {
		sumCompletion += p.CompletionPercent
		sumScore += p.PerformanceScore
		totalTime += p.TimeSpent
	}

	avgCompletion, avgScore := 0.0, 0.0
	if count > 0 {
		avgCompletion = sumCompletion / float64(count)
		avgScore = sumScore / float64(count)
	}

	return []string{
		st.ID,
		st.FullName,
		st.Grade,
		strconv.Itoa(count),
		strconv.FormatFloat(avgCompletion, 'f', 2, 64),
		strconv.FormatFloat(avgScore, 'f', 2, 64),
		strconv.FormatFloat(timeutil.Minutes(totalTime), 'f', 0, 64),
	}
}

func renderCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func renderXLSX(rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const sheet = "Students"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	writeRow := func(rowIdx int, values []string) error {
		for colIdx, v := range values {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
		return nil
	}

	if err := writeRow(1, exportHeader); err != nil {
		return nil, err
	}
	for i, row := range rows {
		if err := writeRow(i+2, row); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
