package fixture

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/querypilot/querypilot/internal/config"
	"github.com/querypilot/querypilot/internal/store"
)

const (
	sqliteTimestampLayout = "2006-01-02 15:04:05"
	sqliteDateLayout      = "2006-01-02"
)

// Seed inserts ds in a single transaction unless students already has rows.
// It reports whether anything was written.
func Seed(ctx context.Context, db *sql.DB, dialect store.Dialect, ds Dataset) (bool, error) {
	if db == nil {
		return false, fmt.Errorf("database is required")
	}
	if !dialect.SupportsMigrations() {
		return false, fmt.Errorf("seeding is not supported for %s stores", dialect.Driver)
	}
	if err := ds.Validate(); err != nil {
		return false, err
	}

	var existing int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM students`).Scan(&existing); err != nil {
		return false, fmt.Errorf("count students: %w", err)
	}
	if existing > 0 {
		return false, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insertStudent := `INSERT INTO students (id, name, grade, created_at) VALUES (` + dialect.Placeholders(4) + `)`
	for _, student := range ds.Students {
		createdAt := student.CreatedAt
		if createdAt.IsZero() {
			createdAt = defaultCreatedAt
		}
		if _, err := tx.ExecContext(ctx, insertStudent, student.ID, student.Name, student.Grade, timeValue(dialect, createdAt, sqliteTimestampLayout)); err != nil {
			return false, fmt.Errorf("insert student %d: %w", student.ID, err)
		}
	}

	insertCourse := `INSERT INTO courses (id, name, category) VALUES (` + dialect.Placeholders(3) + `)`
	for _, course := range ds.Courses {
		if _, err := tx.ExecContext(ctx, insertCourse, course.ID, course.Name, course.Category); err != nil {
			return false, fmt.Errorf("insert course %d: %w", course.ID, err)
		}
	}

	insertEnrollment := `INSERT INTO enrollments (id, student_id, course_id, enrolled_at) VALUES (` + dialect.Placeholders(4) + `)`
	for _, enrollment := range ds.Enrollments {
		enrolledAt := timeValue(dialect, enrollment.EnrolledAt, sqliteDateLayout)
		if _, err := tx.ExecContext(ctx, insertEnrollment, enrollment.ID, enrollment.StudentID, enrollment.CourseID, enrolledAt); err != nil {
			return false, fmt.Errorf("insert enrollment %d: %w", enrollment.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit seed: %w", err)
	}
	return true, nil
}

// SQLite has no native time type; its date functions expect ISO-8601 text.
func timeValue(dialect store.Dialect, value time.Time, sqliteLayout string) any {
	if dialect.Driver == config.DriverSQLite {
		return value.UTC().Format(sqliteLayout)
	}
	return value.UTC()
}
