package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/kozaktomas/roll-call/internal/database"
)

func newMockPool(t *testing.T) (*Pool, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPoolFromDB(db), mock
}

func TestRosterRepository_LookupRolls(t *testing.T) {
	pool, mock := newMockPool(t)
	repo := NewRosterRepository(pool)

	rows := sqlmock.NewRows([]string{"id", "roll_no", "face_image_path"}).
		AddRow("s-1", 1, "faces/1.jpg").
		AddRow("s-2a", 2, "faces/2a.jpg").
		AddRow("s-2b", 2, "")
	mock.ExpectQuery(regexp.QuoteMeta("FROM profiles")).
		WithArgs("class-a", pq.Array([]int64{1, 2, 3})).
		WillReturnRows(rows)

	got, err := repo.LookupRolls(context.Background(), "class-a", []int{1, 2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got[1]) != 1 || got[1][0].StudentID != "s-1" || got[1][0].FaceImagePath != "faces/1.jpg" {
		t.Errorf("unexpected roll 1 entries: %+v", got[1])
	}
	if len(got[2]) != 2 {
		t.Errorf("expected both roll 2 rows, got %+v", got[2])
	}
	if _, ok := got[3]; ok {
		t.Error("expected roll 3 to be missing")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestRosterRepository_LookupRolls_Empty(t *testing.T) {
	pool, mock := newMockPool(t)

	got, err := NewRosterRepository(pool).LookupRolls(context.Background(), "class-a", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expected no queries: %v", err)
	}
}

func TestRosterRepository_LookupRolls_QueryError(t *testing.T) {
	pool, mock := newMockPool(t)
	mock.ExpectQuery("FROM profiles").WillReturnError(errors.New("connection reset"))

	_, err := NewRosterRepository(pool).LookupRolls(context.Background(), "class-a", []int{1})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestRosterRepository_ClassRoster(t *testing.T) {
	pool, mock := newMockPool(t)
	mock.ExpectQuery("FROM profiles").
		WithArgs("class-a").
		WillReturnRows(sqlmock.NewRows([]string{"id", "roll_no", "face_image_path"}).
			AddRow("s-1", 1, "faces/1.jpg").
			AddRow("s-3", 3, "faces/3.jpg"))

	got, err := NewRosterRepository(pool).ClassRoster(context.Background(), "class-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[1].RollNumber != 3 {
		t.Errorf("unexpected roster: %+v", got)
	}
}

func testRecord() *database.AttendanceRecord {
	return &database.AttendanceRecord{
		ID:             "rec-1",
		SessionID:      "session-1",
		ClassID:        "class-a",
		StudentID:      "s-1",
		RollNumber:     1,
		Status:         "present",
		AttendanceDate: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		MarkedAt:       time.Date(2026, 3, 14, 8, 30, 0, 0, time.UTC),
	}
}

func TestAttendanceRepository_InsertAttendance(t *testing.T) {
	pool, mock := newMockPool(t)
	rec := testRecord()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO attendance_records")).
		WithArgs("rec-1", "session-1", "class-a", "s-1", 1, "present", "2026-03-14", rec.MarkedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := NewAttendanceRepository(pool).InsertAttendance(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestAttendanceRepository_InsertAttendance_Errors(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantDuplicate bool
	}{
		{"daily key violation", &pq.Error{Code: "23505", Constraint: "attendance_records_daily_key"}, true},
		{"primary key violation", &pq.Error{Code: "23505", Constraint: "attendance_records_pkey"}, false},
		{"foreign key violation", &pq.Error{Code: "23503", Constraint: "attendance_records_student_id_fkey"}, false},
		{"connection error", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool, mock := newMockPool(t)
			mock.ExpectExec("INSERT INTO attendance_records").WillReturnError(tt.err)

			err := NewAttendanceRepository(pool).InsertAttendance(context.Background(), testRecord())
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, database.ErrDuplicateKey); got != tt.wantDuplicate {
				t.Errorf("errors.Is(ErrDuplicateKey) = %v, want %v (err: %v)", got, tt.wantDuplicate, err)
			}
		})
	}
}

func TestAttendanceRepository_ListBySession(t *testing.T) {
	pool, mock := newMockPool(t)
	marked := time.Date(2026, 3, 14, 8, 30, 0, 0, time.UTC)

	mock.ExpectQuery("FROM attendance_records").
		WithArgs("session-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "session_id", "class_id", "student_id", "roll_number", "status", "attendance_date", "marked_at",
		}).
			AddRow("rec-1", "session-1", "class-a", "s-1", 1, "present", "2026-03-14", marked).
			AddRow("rec-2", "session-1", "class-a", "s-4", 4, "present", "2026-03-14", marked))

	records, err := NewAttendanceRepository(pool).ListBySession(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[1].RollNumber != 4 || records[1].StudentID != "s-4" {
		t.Errorf("unexpected second record: %+v", records[1])
	}
	if records[0].AttendanceDate.Format(database.DateLayout) != "2026-03-14" {
		t.Errorf("unexpected date: %v", records[0].AttendanceDate)
	}
}

func TestAttendanceRepository_ListBySession_BadDate(t *testing.T) {
	pool, mock := newMockPool(t)
	mock.ExpectQuery("FROM attendance_records").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "session_id", "class_id", "student_id", "roll_number", "status", "attendance_date", "marked_at",
		}).AddRow("rec-1", "session-1", "class-a", "s-1", 1, "present", "14/03/2026", time.Now()))

	if _, err := NewAttendanceRepository(pool).ListBySession(context.Background(), "session-1"); err == nil {
		t.Fatal("expected error for unparseable date")
	}
}
