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
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE STUDENT COMMAND
// Full-row update of an existing student. A missing student is reported in
// the result, never as an error.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateStudentCommand contains the data to update a student.
type UpdateStudentCommand struct {
	// StudentID is the identifier of the student to update.
	StudentID string

	// FullName is the new full name.
	FullName string

	// Grade is the new class label.
	Grade string

	// TeacherID is the new supervising teacher reference (nil clears it).
	TeacherID *string
}

// Validate validates the command.
func (c UpdateStudentCommand) Validate() error {
	if c.StudentID == "" {
		return errors.New("update_student: student_id is required")
	}
	if strings.TrimSpace(c.FullName) == "" {
		return errors.New("update_student: full_name is required")
	}
	if strings.TrimSpace(c.Grade) == "" {
		return errors.New("update_student: grade is required")
	}
	return nil
}

// UpdateStudentResult contains the result of updating a student.
type UpdateStudentResult struct {
	// Updated is false when no student with the given id exists.
	Updated bool

	// StudentID is the identifier of the affected student.
	StudentID string

	// UpdatedAt is the audit timestamp of the mutation.
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// UpdateStudentHandler handles the UpdateStudentCommand.
type UpdateStudentHandler struct {
	students *student.Repository
	log      *logger.Logger
}

// NewUpdateStudentHandler creates a new UpdateStudentHandler.
func NewUpdateStudentHandler(students *student.Repository, log *logger.Logger) *UpdateStudentHandler {
	if log == nil {
		log = logger.Default()
	}
	return &UpdateStudentHandler{students: students, log: log}
}

// Handle executes the update student command.
func (h *UpdateStudentHandler) Handle(ctx context.Context, cmd UpdateStudentCommand) (*UpdateStudentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("update_student: validation failed: %w", err)
	}

	st, err := h.students.GetByID(ctx, cmd.StudentID)
	if err != nil {
		return nil, fmt.Errorf("update_student: failed to get student: %w", err)
	}
	if st == nil {
		h.log.Warn("update skipped: student not found", logger.StudentID(cmd.StudentID))
		return &UpdateStudentResult{Updated: false, StudentID: cmd.StudentID}, nil
	}

	st.FullName = strings.TrimSpace(cmd.FullName)
	st.Grade = strings.TrimSpace(cmd.Grade)
	st.TeacherID = cmd.TeacherID
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("update_student: %w", err)
	}

	if err := h.students.Update(ctx, st); err != nil {
		return nil, fmt.Errorf("update_student: failed to stage update: %w", err)
	}
	if err := h.students.Save(ctx); err != nil {
		return nil, fmt.Errorf("update_student: failed to save: %w", err)
	}

	h.log.Info("student updated",
		logger.StudentID(st.ID),
		logger.Grade(st.Grade),
	)

	return &UpdateStudentResult{
		Updated:   true,
		StudentID: st.ID,
		UpdatedAt: st.UpdatedAt,
	}, nil
}
