// Package postgres implements the PostgreSQL record store for Progress Hub.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE STUDENTS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create students table
-- Version: 001

CREATE TABLE IF NOT EXISTS students (
    id UUID PRIMARY KEY,
    full_name VARCHAR(200) NOT NULL,
    grade VARCHAR(30) NOT NULL,
    teacher_id VARCHAR(100),

    -- Audit trail. inserted_at is set exactly once; updated_at moves on every write.
    is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
    inserted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    inserted_by VARCHAR(100),
    updated_by VARCHAR(100),
    tenant_id VARCHAR(100)
);

-- Reads always exclude soft-deleted rows, so the indexes are partial.
CREATE INDEX IF NOT EXISTS idx_students_grade
    ON students(grade) WHERE is_deleted = FALSE;
CREATE INDEX IF NOT EXISTS idx_students_tenant
    ON students(tenant_id) WHERE is_deleted = FALSE;
CREATE INDEX IF NOT EXISTS idx_students_order
    ON students(inserted_at, id) WHERE is_deleted = FALSE;
`

const migration001Down = `
DROP INDEX IF EXISTS idx_students_order;
DROP INDEX IF EXISTS idx_students_tenant;
DROP INDEX IF EXISTS idx_students_grade;
DROP TABLE IF EXISTS students;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create progress_records table
-- Version: 002

CREATE TABLE IF NOT EXISTS progress_records (
    id UUID PRIMARY KEY,
    student_id UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
    subject VARCHAR(100) NOT NULL,
    completion_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
    performance_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    -- Stored in minutes; the domain converts to a duration on scan.
    time_spent_minutes DOUBLE PRECISION NOT NULL DEFAULT 0,
    last_activity TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
    inserted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    inserted_by VARCHAR(100),
    updated_by VARCHAR(100),
    tenant_id VARCHAR(100)
);

CREATE INDEX IF NOT EXISTS idx_progress_student
    ON progress_records(student_id) WHERE is_deleted = FALSE;
CREATE INDEX IF NOT EXISTS idx_progress_tenant
    ON progress_records(tenant_id) WHERE is_deleted = FALSE;
CREATE INDEX IF NOT EXISTS idx_progress_last_activity
    ON progress_records(last_activity) WHERE is_deleted = FALSE;
CREATE INDEX IF NOT EXISTS idx_progress_order
    ON progress_records(inserted_at, id) WHERE is_deleted = FALSE;
`

const migration002Down = `
DROP INDEX IF EXISTS idx_progress_order;
DROP INDEX IF EXISTS idx_progress_last_activity;
DROP INDEX IF EXISTS idx_progress_tenant;
DROP INDEX IF EXISTS idx_progress_student;
DROP TABLE IF EXISTS progress_records;
`
