package database

import (
	"time"
)

// RosterEntry is one registration row from the profiles table.
type RosterEntry struct {
	StudentID     string
	RollNumber    int
	FaceImagePath string
}

// AttendanceRecord is a persisted present mark for a student on a given day.
type AttendanceRecord struct {
	ID             string
	SessionID      string
	ClassID        string
	StudentID      string
	RollNumber     int
	Status         string
	AttendanceDate time.Time // calendar day in the attendance timezone
	MarkedAt       time.Time // UTC
}

// DateLayout is how attendance dates are written to and read from storage.
const DateLayout = "2006-01-02"
