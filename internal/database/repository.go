package database

import (
	"context"
	"errors"
)

// ErrDuplicateKey is returned when a student is already marked for the class on that day.
var ErrDuplicateKey = errors.New("attendance already recorded")

// RosterReader resolves roll numbers to registered students
type RosterReader interface {
	// LookupRolls returns every registration row for the given rolls in a class,
	// keyed by roll number. Rolls without a row are absent from the map.
	LookupRolls(ctx context.Context, classID string, rolls []int) (map[int][]RosterEntry, error)
	// ClassRoster returns all registration rows of a class ordered by roll number
	ClassRoster(ctx context.Context, classID string) ([]RosterEntry, error)
}

// AttendanceWriter persists attendance marks
type AttendanceWriter interface {
	// InsertAttendance stores a single record. Returns ErrDuplicateKey when the
	// (class, student, date) mark already exists.
	InsertAttendance(ctx context.Context, rec *AttendanceRecord) error
}

// AttendanceReader provides read-only access to attendance marks
type AttendanceReader interface {
	// ListBySession returns the records written for a session ordered by roll number
	ListBySession(ctx context.Context, sessionID string) ([]AttendanceRecord, error)
}

// AttendanceStore combines reading and writing attendance
type AttendanceStore interface {
	AttendanceWriter
	AttendanceReader
}
