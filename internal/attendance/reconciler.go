// Package attendance turns match decisions into persisted attendance marks.
package attendance

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/roll-call/internal/constants"
	"github.com/kozaktomas/roll-call/internal/database"
	"github.com/kozaktomas/roll-call/internal/facematch"
)

// Batch is the input of one reconciliation.
type Batch struct {
	SessionID  string
	ClassID    string
	Decisions  []facematch.Decision
	StudentIDs map[int]string // roll number -> student id
}

// Outcome reports what happened to every present roll. The sets are disjoint.
type Outcome struct {
	Inserted   []int
	Skipped    []int         // already marked for the day
	Unresolved []int         // present but no student id
	Failed     map[int]error // insert failed for another reason
}

// Reconciler writes one attendance record per present roll.
type Reconciler struct {
	writer database.AttendanceWriter
	loc    *time.Location
	now    func() time.Time
	newID  func() string
}

// NewReconciler creates a reconciler that dates records in loc (UTC when nil).
func NewReconciler(writer database.AttendanceWriter, loc *time.Location) *Reconciler {
	if loc == nil {
		loc = time.UTC
	}
	return &Reconciler{
		writer: writer,
		loc:    loc,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Today returns the attendance date for t in the reconciler's timezone.
func (r *Reconciler) Today(t time.Time) time.Time {
	local := t.In(r.loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// Reconcile inserts a record for every present roll that resolves to a student.
// Absent rolls are never written. The daily uniqueness constraint is the only
// "already marked" check, so concurrent submissions settle in storage.
func (r *Reconciler) Reconcile(ctx context.Context, b Batch) Outcome {
	out := Outcome{Failed: make(map[int]error)}

	now := r.now().UTC()
	day := r.Today(now)

	for _, roll := range facematch.PresentRolls(b.Decisions) {
		studentID := b.StudentIDs[roll]
		if studentID == "" {
			log.Printf("Warning: session %s: roll %d matched but has no student id, not recorded", b.SessionID, roll)
			out.Unresolved = append(out.Unresolved, roll)
			continue
		}

		rec := &database.AttendanceRecord{
			ID:             r.newID(),
			SessionID:      b.SessionID,
			ClassID:        b.ClassID,
			StudentID:      studentID,
			RollNumber:     roll,
			Status:         constants.StatusPresent,
			AttendanceDate: day,
			MarkedAt:       now,
		}

		err := r.writer.InsertAttendance(ctx, rec)
		switch {
		case err == nil:
			out.Inserted = append(out.Inserted, roll)
		case errors.Is(err, database.ErrDuplicateKey):
			out.Skipped = append(out.Skipped, roll)
		default:
			log.Printf("Error: session %s: failed to record roll %d: %v", b.SessionID, roll, err)
			out.Failed[roll] = err
		}
	}

	return out
}
