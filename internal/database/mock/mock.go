// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/kozaktomas/roll-call/internal/database"
)

// MockRosterReader is a mock implementation of database.RosterReader
type MockRosterReader struct {
	mu      sync.RWMutex
	entries map[string][]database.RosterEntry // by class

	// Error injection
	LookupError error
	RosterError error
}

// NewMockRosterReader creates a new mock roster reader
func NewMockRosterReader() *MockRosterReader {
	return &MockRosterReader{
		entries: make(map[string][]database.RosterEntry),
	}
}

// AddEntry registers a student in a class. Adding the same roll twice creates a duplicate registration.
func (m *MockRosterReader) AddEntry(classID string, entry database.RosterEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[classID] = append(m.entries[classID], entry)
}

// LookupRolls returns the entries of the requested rolls keyed by roll number
func (m *MockRosterReader) LookupRolls(ctx context.Context, classID string, rolls []int) (map[int][]database.RosterEntry, error) {
	if m.LookupError != nil {
		return nil, m.LookupError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[int]bool, len(rolls))
	for _, r := range rolls {
		wanted[r] = true
	}

	result := make(map[int][]database.RosterEntry)
	for _, e := range m.entries[classID] {
		if wanted[e.RollNumber] {
			result[e.RollNumber] = append(result[e.RollNumber], e)
		}
	}
	return result, nil
}

// ClassRoster returns all entries of a class ordered by roll number
func (m *MockRosterReader) ClassRoster(ctx context.Context, classID string) ([]database.RosterEntry, error) {
	if m.RosterError != nil {
		return nil, m.RosterError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := slices.Clone(m.entries[classID])
	slices.SortStableFunc(entries, func(a, b database.RosterEntry) int {
		return cmp.Compare(a.RollNumber, b.RollNumber)
	})
	return entries, nil
}

type dailyKey struct {
	classID   string
	studentID string
	date      string
}

// MockAttendanceStore is a mock implementation of database.AttendanceStore.
// It enforces the same (class, student, date) uniqueness as the real table.
type MockAttendanceStore struct {
	mu      sync.Mutex
	records []database.AttendanceRecord
	keys    map[dailyKey]bool

	// Error injection
	InsertError  error
	InsertErrors map[string]error // by student id
	ListError    error

	InsertCalls int
}

// NewMockAttendanceStore creates a new mock attendance store
func NewMockAttendanceStore() *MockAttendanceStore {
	return &MockAttendanceStore{
		keys:         make(map[dailyKey]bool),
		InsertErrors: make(map[string]error),
	}
}

// InsertAttendance stores a record or returns database.ErrDuplicateKey
func (m *MockAttendanceStore) InsertAttendance(ctx context.Context, rec *database.AttendanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertCalls++

	if m.InsertError != nil {
		return m.InsertError
	}
	if err := m.InsertErrors[rec.StudentID]; err != nil {
		return err
	}

	key := dailyKey{classID: rec.ClassID, studentID: rec.StudentID, date: rec.AttendanceDate.Format(database.DateLayout)}
	if m.keys[key] {
		return database.ErrDuplicateKey
	}
	m.keys[key] = true
	m.records = append(m.records, *rec)
	return nil
}

// ListBySession returns the records of a session ordered by roll number
func (m *MockAttendanceStore) ListBySession(ctx context.Context, sessionID string) ([]database.AttendanceRecord, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var records []database.AttendanceRecord
	for _, r := range m.records {
		if r.SessionID == sessionID {
			records = append(records, r)
		}
	}
	slices.SortStableFunc(records, func(a, b database.AttendanceRecord) int {
		return cmp.Compare(a.RollNumber, b.RollNumber)
	})
	return records, nil
}

// Records returns a copy of every stored record
func (m *MockAttendanceStore) Records() []database.AttendanceRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.records)
}
