package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/kozaktomas/roll-call/internal/database"
)

const (
	uniqueViolation    = pq.ErrorCode("23505")
	dailyKeyConstraint = "attendance_records_daily_key"
)

// AttendanceRepository provides PostgreSQL-backed attendance storage
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

// InsertAttendance stores a record. A violation of the daily uniqueness
// constraint is reported as database.ErrDuplicateKey; every other failure,
// including other unique violations, is returned wrapped.
func (r *AttendanceRepository) InsertAttendance(ctx context.Context, rec *database.AttendanceRecord) error {
	query := `
		INSERT INTO attendance_records
			(id, session_id, class_id, student_id, roll_number, status, attendance_date, marked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.SessionID,
		rec.ClassID,
		rec.StudentID,
		rec.RollNumber,
		rec.Status,
		rec.AttendanceDate.Format(database.DateLayout),
		rec.MarkedAt.UTC(),
	)
	if err != nil {
		if isDailyDuplicate(err) {
			return database.ErrDuplicateKey
		}
		return fmt.Errorf("insert attendance: %w", err)
	}
	return nil
}

func isDailyDuplicate(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == uniqueViolation && pqErr.Constraint == dailyKeyConstraint
}

// ListBySession returns the records of a session ordered by roll number
func (r *AttendanceRepository) ListBySession(ctx context.Context, sessionID string) ([]database.AttendanceRecord, error) {
	query := `
		SELECT id, session_id, class_id, student_id, roll_number, status,
		       to_char(attendance_date, 'YYYY-MM-DD'), marked_at
		FROM attendance_records
		WHERE session_id = $1
		ORDER BY roll_number, marked_at
	`

	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	var records []database.AttendanceRecord
	for rows.Next() {
		var rec database.AttendanceRecord
		var day string
		if err := rows.Scan(
			&rec.ID,
			&rec.SessionID,
			&rec.ClassID,
			&rec.StudentID,
			&rec.RollNumber,
			&rec.Status,
			&day,
			&rec.MarkedAt,
		); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		rec.AttendanceDate, err = time.Parse(database.DateLayout, day)
		if err != nil {
			return nil, fmt.Errorf("parse attendance date %q: %w", day, err)
		}
		rec.MarkedAt = rec.MarkedAt.UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return records, nil
}
