// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/schoolhub/progress-hub/internal/domain/student"
	"github.com/schoolhub/progress-hub/pkg/logger"
	"github.com/schoolhub/progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECORD PROGRESS COMMAND
// Appends a progress record for a subject to an existing student. Time spent
// arrives in minutes, matching how callers track study sessions.
// ══════════════════════════════════════════════════════════════════════════════

// RecordProgressCommand contains the data to record subject progress.
type RecordProgressCommand struct {
	// StudentID is the identifier of the owning student.
	StudentID string

	// Subject is the subject label.
	Subject string

	// CompletionPercent is the completion percentage (expected 0-100).
	CompletionPercent float64

	// PerformanceScore is the performance score.
	PerformanceScore float64

	// TimeSpentMinutes is the time spent on the subject, in minutes.
	TimeSpentMinutes float64

	// LastActivity is when the student last worked on the subject
	// (defaults to now if zero).
	LastActivity time.Time
}

// Validate validates the command.
func (c RecordProgressCommand) Validate() error {
	if c.StudentID == "" {
		return errors.New("record_progress: student_id is required")
	}
	if strings.TrimSpace(c.Subject) == "" {
		return errors.New("record_progress: subject is required")
	}
	if c.TimeSpentMinutes < 0 {
		return errors.New("record_progress: time_spent_minutes cannot be negative")
	}
	return nil
}

// RecordProgressResult contains the result of recording progress.
type RecordProgressResult struct {
	// Recorded is false when no student with the given id exists.
	Recorded bool

	// ProgressID is the identifier assigned by the repository.
	ProgressID string

	// StudentID is the identifier of the owning student.
	StudentID string

	// RecordedAt is the audit creation timestamp.
	RecordedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RecordProgressHandler handles the RecordProgressCommand.
type RecordProgressHandler struct {
	students *student.Repository
	progress *student.ProgressRepository
	log      *logger.Logger
}

// NewRecordProgressHandler creates a new RecordProgressHandler.
func NewRecordProgressHandler(
	students *student.Repository,
	progress *student.ProgressRepository,
	log *logger.Logger,
) *RecordProgressHandler {
	if log == nil {
		log = logger.Default()
	}
	return &RecordProgressHandler{students: students, progress: progress, log: log}
}

// Handle executes the record progress command.
func (h *RecordProgressHandler) Handle(ctx context.Context, cmd RecordProgressCommand) (*RecordProgressResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("record_progress: validation failed: %w", err)
	}

	st, err := h.students.GetByID(ctx, cmd.StudentID)
	if err != nil {
		return nil, fmt.Errorf("record_progress: failed to get student: %w", err)
	}
	if st == nil {
		h.log.Warn("progress skipped: student not found", logger.StudentID(cmd.StudentID))
		return &RecordProgressResult{Recorded: false, StudentID: cmd.StudentID}, nil
	}

	lastActivity := cmd.LastActivity
	if lastActivity.IsZero() {
		lastActivity = timeutil.Now()
	}

	p := &student.Progress{
		StudentID:         cmd.StudentID,
		Subject:           strings.TrimSpace(cmd.Subject),
		CompletionPercent: cmd.CompletionPercent,
		PerformanceScore:  cmd.PerformanceScore,
		TimeSpent:         timeutil.FromMinutes(cmd.TimeSpentMinutes),
		LastActivity:      lastActivity.UTC(),
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("record_progress: %w", err)
	}

	if err := h.progress.Add(ctx, p); err != nil {
		return nil, fmt.Errorf("record_progress: failed to stage progress: %w", err)
	}
	if err := h.progress.Save(ctx); err != nil {
		return nil, fmt.Errorf("record_progress: failed to save: %w", err)
	}

	h.log.Info("progress recorded",
		logger.StudentID(cmd.StudentID),
		logger.Subject(p.Subject),
		logger.Float64("completion_percent", p.CompletionPercent),
	)

	return &RecordProgressResult{
		Recorded:   true,
		ProgressID: p.ID,
		StudentID:  cmd.StudentID,
		RecordedAt: p.InsertedAt,
	}, nil
}
