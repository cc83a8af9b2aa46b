// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/schoolhub/progress-hub/internal/domain/student"
	"github.com/schoolhub/progress-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REMOVE STUDENT COMMAND
// Soft-deletes a student together with their progress records, so the
// student stops contributing to reads and freshly computed reports.
// Removing an absent student is a no-op.
// ══════════════════════════════════════════════════════════════════════════════

// RemoveStudentCommand contains the data to remove a student.
type RemoveStudentCommand struct {
	// StudentID is the identifier of the student to remove.
	StudentID string
}

// Validate validates the command.
func (c RemoveStudentCommand) Validate() error {
	if c.StudentID == "" {
		return errors.New("remove_student: student_id is required")
	}
	return nil
}

// RemoveStudentResult contains the result of removing a student.
type RemoveStudentResult struct {
	// Removed is false when no student with the given id existed.
	Removed bool

	// StudentID is the identifier of the affected student.
	StudentID string

	// ProgressRemoved is the number of progress records soft-deleted
	// alongside the student.
	ProgressRemoved int
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RemoveStudentHandler handles the RemoveStudentCommand.
type RemoveStudentHandler struct {
	students *student.Repository
	progress *student.ProgressRepository
	log      *logger.Logger
}

// NewRemoveStudentHandler creates a new RemoveStudentHandler.
func NewRemoveStudentHandler(
	students *student.Repository,
	progress *student.ProgressRepository,
	log *logger.Logger,
) *RemoveStudentHandler {
	if log == nil {
		log = logger.Default()
	}
	return &RemoveStudentHandler{students: students, progress: progress, log: log}
}

// Handle executes the remove student command.
func (h *RemoveStudentHandler) Handle(ctx context.Context, cmd RemoveStudentCommand) (*RemoveStudentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("remove_student: validation failed: %w", err)
	}

	st, err := h.students.GetByID(ctx, cmd.StudentID)
	if err != nil {
		return nil, fmt.Errorf("remove_student: failed to get student: %w", err)
	}
	if st == nil {
		return &RemoveStudentResult{Removed: false, StudentID: cmd.StudentID}, nil
	}

	owned, err := h.progress.Find(ctx, func(p *student.Progress) bool {
		return p.StudentID == cmd.StudentID
	})
	if err != nil {
		return nil, fmt.Errorf("remove_student: failed to find progress records: %w", err)
	}

	if err := h.students.Delete(ctx, cmd.StudentID); err != nil {
		return nil, fmt.Errorf("remove_student: failed to stage delete: %w", err)
	}
	for _, p := range owned {
		if err := h.progress.Delete(ctx, p.ID); err != nil {
			return nil, fmt.Errorf("remove_student: failed to stage progress delete: %w", err)
		}
	}

	if err := h.students.Save(ctx); err != nil {
		return nil, fmt.Errorf("remove_student: failed to save: %w", err)
	}
	if err := h.progress.Save(ctx); err != nil {
		return nil, fmt.Errorf("remove_student: failed to save progress: %w", err)
	}

	h.log.Info("student removed",
		logger.StudentID(cmd.StudentID),
		logger.Int("progress_removed", len(owned)),
	)

	return &RemoveStudentResult{
		Removed:         true,
		StudentID:       cmd.StudentID,
		ProgressRemoved: len(owned),
	}, nil
}
