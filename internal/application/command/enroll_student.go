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
// ENROLL STUDENT COMMAND
// Creates a new student record. The repository assigns the identifier and
// the audit stamp; the command only carries domain attributes.
// ══════════════════════════════════════════════════════════════════════════════

// EnrollStudentCommand contains the data to enroll a student.
type EnrollStudentCommand struct {
	// FullName is the student's full name.
	FullName string

	// Grade is the class label (e.g. "7A").
	Grade string

	// TeacherID is an optional reference to the supervising teacher.
	TeacherID *string
}

// Validate validates the command.
func (c EnrollStudentCommand) Validate() error {
	if strings.TrimSpace(c.FullName) == "" {
		return errors.New("enroll_student: full_name is required")
	}
	if strings.TrimSpace(c.Grade) == "" {
		return errors.New("enroll_student: grade is required")
	}
	return nil
}

// EnrollStudentResult contains the result of enrolling a student.
type EnrollStudentResult struct {
	// StudentID is the identifier assigned by the repository.
	StudentID string

	// EnrolledAt is the audit creation timestamp.
	EnrolledAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// EnrollStudentHandler handles the EnrollStudentCommand.
type EnrollStudentHandler struct {
	students *student.Repository
	log      *logger.Logger
}

// NewEnrollStudentHandler creates a new EnrollStudentHandler.
func NewEnrollStudentHandler(students *student.Repository, log *logger.Logger) *EnrollStudentHandler {
	if log == nil {
		log = logger.Default()
	}
	return &EnrollStudentHandler{students: students, log: log}
}

// Handle executes the enroll student command.
func (h *EnrollStudentHandler) Handle(ctx context.Context, cmd EnrollStudentCommand) (*EnrollStudentResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("enroll_student: validation failed: %w", err)
	}

	st := &student.Student{
		FullName:  strings.TrimSpace(cmd.FullName),
		Grade:     strings.TrimSpace(cmd.Grade),
		TeacherID: cmd.TeacherID,
	}
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("enroll_student: %w", err)
	}

	if err := h.students.Add(ctx, st); err != nil {
		return nil, fmt.Errorf("enroll_student: failed to stage student: %w", err)
	}
	if err := h.students.Save(ctx); err != nil {
		return nil, fmt.Errorf("enroll_student: failed to save: %w", err)
	}

	h.log.Info("student enrolled",
		logger.StudentID(st.ID),
		logger.Grade(st.Grade),
	)

	return &EnrollStudentResult{
		StudentID:  st.ID,
		EnrolledAt: st.InsertedAt,
	}, nil
}
